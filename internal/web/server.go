package web

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"compass-ng/internal/calibration"
)

// CalibrationController exposes the guided-setup actions to the API.
// Implementations must be safe to call concurrently.
type CalibrationController interface {
	Start() string
	Reset()
	Snapshot() calibration.Snapshot
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Estimates are not sensitive; the daemon serves a local UI.
	CheckOrigin: func(*http.Request) bool { return true },
}

func Handler(status *Status, broadcaster *HeadingBroadcaster, cal CalibrationController) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		available, reason := broadcaster.Available()
		snap := status.Snapshot(time.Now().UTC(), available, reason)
		writeJSON(w, snap)
	})

	mux.HandleFunc("/api/estimate", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		est, ok := broadcaster.Last()
		if !ok {
			http.Error(w, "no estimate yet", http.StatusNotFound)
			return
		}
		writeJSON(w, est)
	})

	mux.HandleFunc("/api/calibration", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if cal == nil {
			http.Error(w, "calibration unavailable", http.StatusNotFound)
			return
		}
		writeJSON(w, cal.Snapshot())
	})

	mux.HandleFunc("/api/calibration/start", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if cal == nil {
			http.Error(w, "calibration unavailable", http.StatusNotFound)
			return
		}
		id := cal.Start()
		writeJSON(w, map[string]string{"session_id": id})
	})

	mux.HandleFunc("/api/calibration/reset", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if cal == nil {
			http.Error(w, "calibration unavailable", http.StatusNotFound)
			return
		}
		cal.Reset()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("{\"ok\":true}\n"))
	})

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the error response.
			return
		}
		serveEstimateStream(conn, broadcaster)
	})

	return mux
}

// serveEstimateStream pushes broadcast estimates over one WebSocket until
// the peer goes away.
func serveEstimateStream(conn *websocket.Conn, broadcaster *HeadingBroadcaster) {
	defer conn.Close()

	id, ch := broadcaster.Subscribe(8)
	defer broadcaster.Unsubscribe(id)

	// Drain (and detect close from) the peer; we never expect messages.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case est, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(est); err != nil {
				log.Printf("web: ws write: %v", err)
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(b)
	_, _ = w.Write([]byte("\n"))
}
