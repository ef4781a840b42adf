package decision

import (
	"time"

	"github.com/ayusman/ledwatch/internal/ledstate"
)

// Tick records one iteration of the watch loop.
type Tick struct {
	RunID          string                  `json:"run_id,omitempty"`
	Index          int                     `json:"index"`
	At             time.Time               `json:"at"`
	Classification ledstate.Classification `json:"classification"`
	State          State                   `json:"state"`
	Verdict        Verdict                 `json:"verdict"`
	Elapsed        time.Duration           `json:"elapsed_ns"`
	Err            string                  `json:"error,omitempty"`
}

// Elapsed is the monitored time after ticks ticks of the given interval.
func Elapsed(ticks int, interval time.Duration) time.Duration {
	return time.Duration(ticks) * interval
}
