package mqtt

import (
	"sync"

	"compass-ng/internal/heading"
)

// FakePublisher records published estimates for test assertions.
type FakePublisher struct {
	mu sync.Mutex

	// Estimates contains all estimates that were published.
	Estimates []heading.Estimate

	// PublishError, if set, is returned by PublishEstimate.
	PublishError error

	// Closed tracks whether Close was called.
	Closed bool
}

func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

func (f *FakePublisher) PublishEstimate(est heading.Estimate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Estimates = append(f.Estimates, est)
	return nil
}

func (f *FakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// Published returns a copy of the recorded estimates.
func (f *FakePublisher) Published() []heading.Estimate {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]heading.Estimate, len(f.Estimates))
	copy(out, f.Estimates)
	return out
}
