// Package notify delivers the terminal verdict of a watch run. The watch loop
// emits exactly one Event per run; sinks decide how it leaves the process.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ayusman/ledwatch/internal/decision"
)

// Event is the single terminal event of a run.
type Event struct {
	RunID   string           `json:"run_id,omitempty"`
	Verdict decision.Verdict `json:"verdict"`
	Elapsed time.Duration    `json:"-"`
	Ticks   int              `json:"ticks"`
	At      time.Time        `json:"at"`
}

// ElapsedSeconds returns Elapsed in seconds.
func (e Event) ElapsedSeconds() float64 {
	return e.Elapsed.Seconds()
}

// Sink receives terminal events.
type Sink interface {
	Deliver(ctx context.Context, ev Event) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(ctx context.Context, ev Event) error

// Deliver implements Sink.
func (f SinkFunc) Deliver(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// LogSink logs the event with the standard logger.
type LogSink struct{}

// Deliver implements Sink.
func (LogSink) Deliver(ctx context.Context, ev Event) error {
	log.Printf("Cycle ended: %s after %v (%d ticks, run %s)", ev.Verdict, ev.Elapsed, ev.Ticks, ev.RunID)
	return nil
}

// Multi delivers to every sink and joins their errors.
// A failing sink does not prevent delivery to the others.
type Multi []Sink

// Deliver implements Sink.
func (m Multi) Deliver(ctx context.Context, ev Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Deliver(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps delivered events in memory.
type Recorder struct {
	Events []Event
}

// Deliver implements Sink.
func (r *Recorder) Deliver(ctx context.Context, ev Event) error {
	r.Events = append(r.Events, ev)
	return nil
}

func validate(ev Event) error {
	if !ev.Verdict.Terminal() {
		return fmt.Errorf("notify: verdict %s is not terminal", ev.Verdict)
	}
	return nil
}
