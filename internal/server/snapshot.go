package server

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// SnapshotSink keeps the last JPEG of every pipeline stage. It is fed as a
// debug sink by the detector, so the camera keeps a single owner.
type SnapshotSink struct {
	mu      sync.RWMutex
	frames  map[int][]byte
	updated time.Time
}

// NewSnapshotSink creates an empty sink.
func NewSnapshotSink() *SnapshotSink {
	return &SnapshotSink{frames: make(map[int][]byte)}
}

// Emit encodes img as JPEG and stores it for stage.
func (s *SnapshotSink) Emit(stage int, img gocv.Mat) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
	if err != nil {
		return
	}
	data := append([]byte(nil), buf.GetBytes()...)
	buf.Close()

	s.mu.Lock()
	s.frames[stage] = data
	s.updated = time.Now()
	s.mu.Unlock()
}

// Get returns the last JPEG of stage and when the sink was last updated.
func (s *SnapshotSink) Get(stage int) ([]byte, time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.frames[stage]
	return data, s.updated, ok
}

// ServeHTTP handles GET /api/snapshot?stage=N. Stage defaults to 0, the crop.
func (s *SnapshotSink) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stage, ok := parseStage(w, r)
	if !ok {
		return
	}

	data, updated, ok := s.Get(stage)
	if !ok {
		http.Error(w, "No snapshot yet", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Last-Modified", updated.UTC().Format(http.TimeFormat))
	w.Write(data)
}

func parseStage(w http.ResponseWriter, r *http.Request) (int, bool) {
	v := r.URL.Query().Get("stage")
	if v == "" {
		return 0, true
	}
	stage, err := strconv.Atoi(v)
	if err != nil || stage < 0 {
		http.Error(w, "Invalid stage", http.StatusBadRequest)
		return 0, false
	}
	return stage, true
}
