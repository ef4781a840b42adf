package server

import (
	"fmt"
	"net/http"
	"time"
)

// StreamHandler serves the snapshots of one stage as an MJPEG stream,
// pushing a new part whenever the detector processed a frame.
type StreamHandler struct {
	snapshots *SnapshotSink
	poll      time.Duration
}

// NewStreamHandler creates a new StreamHandler over the snapshot sink.
func NewStreamHandler(snapshots *SnapshotSink) *StreamHandler {
	return &StreamHandler{snapshots: snapshots, poll: 500 * time.Millisecond}
}

// ServeHTTP streams MJPEG frames to connected clients.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stage, ok := parseStage(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(h.poll)
	defer ticker.Stop()

	var last time.Time
	for {
		if data, updated, ok := h.snapshots.Get(stage); ok && updated.After(last) {
			last = updated

			fmt.Fprintf(w, "--frame\r\n")
			fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
			fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(data))
			w.Write(data)
			fmt.Fprintf(w, "\r\n")

			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
