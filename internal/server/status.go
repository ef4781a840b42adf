package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/ayusman/ledwatch/internal/decision"
)

// Status is the live view of the current run.
type Status struct {
	RunID    string           `json:"run_id,omitempty"`
	Verdict  decision.Verdict `json:"verdict"`
	Ticks    int              `json:"ticks"`
	Elapsed  string           `json:"elapsed"`
	LastTick *decision.Tick   `json:"last_tick,omitempty"`
	Updated  time.Time        `json:"updated"`
}

// StatusTracker keeps the latest tick of the running watch.
type StatusTracker struct {
	mu     sync.RWMutex
	status Status
}

// NewStatusTracker creates an empty tracker.
func NewStatusTracker() *StatusTracker {
	return &StatusTracker{}
}

// ObserveTick records the tick as the latest one.
func (t *StatusTracker) ObserveTick(tick decision.Tick) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.status = Status{
		RunID:    tick.RunID,
		Verdict:  tick.Verdict,
		Ticks:    tick.Index,
		Elapsed:  tick.Elapsed.String(),
		LastTick: &tick,
		Updated:  time.Now(),
	}
}

// Status returns a copy of the current status.
func (t *StatusTracker) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// ServeHTTP handles GET /api/status.
func (t *StatusTracker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(t.Status()); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
