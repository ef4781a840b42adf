package tray

import (
	"testing"
	"time"

	"github.com/ayusman/ledwatch/internal/decision"
	"github.com/ayusman/ledwatch/internal/ledstate"
)

func TestDescribe(t *testing.T) {
	tests := []struct {
		name      string
		tick      decision.Tick
		wantLabel string
		wantLast  string
	}{
		{
			name:      "running",
			tick:      decision.Tick{Index: 3, Classification: ledstate.Single(1, 50, 0.5)},
			wantLabel: "Watching (tick 3)",
			wantLast:  "Last: state 1 (50.000000,0.500000)",
		},
		{
			name: "ending",
			tick: decision.Tick{
				Index:          5,
				Verdict:        decision.EndingDetected,
				Elapsed:        150 * time.Second,
				Classification: ledstate.Single(1, 50, 0.5),
			},
			wantLabel: "Cycle ended after 2m30s",
			wantLast:  "Last: state 1 (50.000000,0.500000)",
		},
		{
			name: "panel off",
			tick: decision.Tick{
				Index:          5,
				Verdict:        decision.NoLedDetected,
				Elapsed:        time.Minute,
				Classification: ledstate.NoLedDetected(),
			},
			wantLabel: "Panel off after 1m0s",
			wantLast:  "Last: no leds detected",
		},
		{
			name:      "error",
			tick:      decision.Tick{Index: 2, Classification: ledstate.AmbiguousCount(0), Err: "frame acquisition failed"},
			wantLabel: "Watching (tick 2)",
			wantLast:  "Last: error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			label, last := describe(tt.tick)
			if label != tt.wantLabel {
				t.Errorf("label = %q, want %q", label, tt.wantLabel)
			}
			if last != tt.wantLast {
				t.Errorf("last = %q, want %q", last, tt.wantLast)
			}
		})
	}
}

func TestTray_ObserveTickBeforeReady(t *testing.T) {
	tr := New()
	if tr.Label() != "Waiting for first tick" {
		t.Errorf("unexpected initial label %q", tr.Label())
	}

	tr.ObserveTick(decision.Tick{Index: 1, Classification: ledstate.NoLedDetected()})
	if tr.Label() != "Watching (tick 1)" {
		t.Errorf("unexpected label %q", tr.Label())
	}
}

func TestTray_StopOnce(t *testing.T) {
	tr := New()
	calls := 0
	tr.OnStop(func() { calls++ })

	tr.handleStop()
	tr.handleStop()

	if calls != 1 {
		t.Errorf("expected stop callback once, got %d", calls)
	}
	if !tr.IsStopped() {
		t.Error("IsStopped() should be true")
	}
}

func TestTray_StatusCallback(t *testing.T) {
	tr := New()
	opened := false
	tr.OnStatus(func() { opened = true })

	tr.handleStatus()
	if !opened {
		t.Error("status callback not called")
	}
}
