package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ayusman/ledwatch/internal/capture"
	"github.com/ayusman/ledwatch/internal/decision"
	"github.com/ayusman/ledwatch/internal/detector"
	"github.com/ayusman/ledwatch/internal/ledstate"
	"github.com/ayusman/ledwatch/internal/notify"
)

// Run executes ticks until a terminal verdict is reached or ctx is done.
//
// Loop logic:
// 1. Validate calibration and parameters, open the frame source
// 2. Acquire a frame and classify it
// 3. Feed the classification to decision.Step
// 4. Report the tick to the recorder and observers
// 5. On a terminal verdict deliver one event and return
// 6. Otherwise wait one interval and go back to 2
//
// Per-tick failures degrade the tick to Ambiguous and the loop continues.
// An invalid region on the very first tick, or an exhausted replay
// source, ends the run with an error.
func (w *Watcher) Run(ctx context.Context) (decision.Verdict, error) {
	if !w.acquire() {
		return decision.Running, ErrAlreadyRunning
	}
	defer w.release()

	if err := w.validate(); err != nil {
		return decision.Running, err
	}

	cam := w.config.Camera
	if !cam.IsOpen() {
		if err := cam.Open(); err != nil {
			return decision.Running, fmt.Errorf("failed to open frame source: %w", err)
		}
		defer func() {
			if err := cam.Close(); err != nil {
				log.Printf("Error closing frame source: %v", err)
			}
		}()
	}

	var (
		state     decision.State
		runID     = w.runID()
		started   = time.Now()
		endingIdx = w.config.Calibration.EndingIndex
		observers = w.observers()
	)

	finish := func(v decision.Verdict, runErr error) {
		if w.config.Recorder == nil {
			return
		}
		if err := w.config.Recorder.Finish(v, state.TotalTicks, time.Since(started), runErr); err != nil {
			log.Printf("Failed to record run outcome: %v", err)
		}
	}

	log.Printf("run %s started", runID)

	for {
		if err := ctx.Err(); err != nil {
			finish(decision.Running, err)
			return decision.Running, err
		}

		c, tickErr := w.classify()
		if tickErr != nil && state.TotalTicks == 0 && errors.Is(tickErr, detector.ErrInvalidRegion) {
			finish(decision.Running, tickErr)
			return decision.Running, tickErr
		}
		if errors.Is(tickErr, capture.ErrNoMoreFrames) {
			finish(decision.Running, tickErr)
			return decision.Running, tickErr
		}

		next, verdict := decision.Step(state, c, endingIdx, w.config.Thresholds)
		state = next

		tick := decision.Tick{
			RunID:          runID,
			Index:          state.TotalTicks,
			At:             time.Now(),
			Classification: c,
			State:          state,
			Verdict:        verdict,
			Elapsed:        decision.Elapsed(state.TotalTicks, w.config.Interval),
		}
		if tickErr != nil {
			tick.Err = tickErr.Error()
			log.Printf("tick %d -> error: %v", tick.Index, tickErr)
		} else {
			log.Printf("tick %d -> %s", tick.Index, c)
		}

		if w.config.Recorder != nil {
			if err := w.config.Recorder.ObserveTick(tick); err != nil {
				log.Printf("Failed to record tick %d: %v", tick.Index, err)
			}
		}
		for _, o := range observers {
			o.ObserveTick(tick)
		}

		if verdict.Terminal() {
			ev := notify.Event{
				RunID:   runID,
				Verdict: verdict,
				Elapsed: tick.Elapsed,
				Ticks:   state.TotalTicks,
				At:      tick.At,
			}
			if err := w.config.Sink.Deliver(ctx, ev); err != nil {
				log.Printf("Failed to deliver %s event: %v", verdict, err)
			}
			finish(verdict, nil)
			return verdict, nil
		}

		timer := time.NewTimer(w.config.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			finish(decision.Running, ctx.Err())
			return decision.Running, ctx.Err()
		case <-timer.C:
		}
	}
}

// classify acquires one frame and runs the detector on it.
// Any failure yields an Ambiguous classification alongside the error.
func (w *Watcher) classify() (ledstate.Classification, error) {
	frame, err := w.config.Camera.ReadFrame()
	if err != nil {
		return ledstate.AmbiguousCount(0), err
	}
	defer frame.Close()

	c, err := w.config.Detector.Detect(frame)
	if err != nil {
		return ledstate.AmbiguousCount(0), err
	}
	return c, nil
}
