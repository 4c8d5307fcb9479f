package web

import (
	"sync"

	"compass-ng/internal/heading"
)

// HeadingBroadcaster fans out heading estimates to any listeners (e.g. the
// WebSocket stream). It keeps the most recent value so new subscribers get
// an immediate sample, and drops on slow consumers instead of blocking the
// pipeline.
type HeadingBroadcaster struct {
	mu       sync.RWMutex
	subs     map[int]chan heading.Estimate
	nextID   int
	last     heading.Estimate
	haveLast bool

	available         bool
	unavailableReason string
}

func NewHeadingBroadcaster() *HeadingBroadcaster {
	return &HeadingBroadcaster{
		subs:      make(map[int]chan heading.Estimate),
		available: true,
	}
}

// SetUnavailable records that the sample source has no magnetometer; the
// reason is surfaced on the status API.
func (b *HeadingBroadcaster) SetUnavailable(reason string) {
	if b == nil {
		return
	}
	b.mu.Lock()
	b.available = false
	b.unavailableReason = reason
	b.mu.Unlock()
}

// Available reports whether estimates are flowing, and if not, why.
func (b *HeadingBroadcaster) Available() (bool, string) {
	if b == nil {
		return false, ""
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.available, b.unavailableReason
}

func (b *HeadingBroadcaster) Subscribe(buffer int) (int, <-chan heading.Estimate) {
	if b == nil {
		return 0, nil
	}
	if buffer <= 0 {
		buffer = 2
	}
	ch := make(chan heading.Estimate, buffer)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	last := b.last
	have := b.haveLast
	b.mu.Unlock()
	if have {
		select {
		case ch <- last:
		default:
		}
	}
	return id, ch
}

func (b *HeadingBroadcaster) Unsubscribe(id int) {
	if b == nil {
		return
	}
	b.mu.Lock()
	ch, ok := b.subs[id]
	if ok {
		delete(b.subs, id)
		close(ch)
	}
	b.mu.Unlock()
}

func (b *HeadingBroadcaster) Publish(est heading.Estimate) {
	if b == nil {
		return
	}
	b.mu.RLock()
	subs := make([]chan heading.Estimate, 0, len(b.subs))
	for _, ch := range b.subs {
		subs = append(subs, ch)
	}
	b.mu.RUnlock()
	for _, ch := range subs {
		select {
		case ch <- est:
		default:
		}
	}
	b.mu.Lock()
	b.last = est
	b.haveLast = true
	b.mu.Unlock()
}

// Last returns the most recent estimate, if any.
func (b *HeadingBroadcaster) Last() (heading.Estimate, bool) {
	if b == nil {
		return heading.Estimate{}, false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.last, b.haveLast
}
