// Package app drives the LED watch loop: acquire a frame, classify it,
// debounce the result and emit a single terminal event.
package app

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/ledwatch/internal/calib"
	"github.com/ayusman/ledwatch/internal/capture"
	"github.com/ayusman/ledwatch/internal/config"
	"github.com/ayusman/ledwatch/internal/decision"
	"github.com/ayusman/ledwatch/internal/detector"
	"github.com/ayusman/ledwatch/internal/notify"
)

// ErrAlreadyRunning is returned when Run is called on a running watcher.
var ErrAlreadyRunning = errors.New("watcher is already running")

// TickObserver is notified after every tick, terminal or not.
// ObserveTick must not block the loop for long.
type TickObserver interface {
	ObserveTick(tick decision.Tick)
}

// ObserverFunc adapts a function to TickObserver.
type ObserverFunc func(tick decision.Tick)

// ObserveTick calls f(tick).
func (f ObserverFunc) ObserveTick(tick decision.Tick) {
	f(tick)
}

// Recorder persists a run. *store.Recorder implements it.
type Recorder interface {
	RunID() string
	ObserveTick(tick decision.Tick) error
	Finish(verdict decision.Verdict, ticks int, elapsed time.Duration, runErr error) error
}

// Config holds the collaborators and parameters of a watcher.
type Config struct {
	Camera      capture.Camera
	Detector    detector.Detector
	Calibration *calib.Calibration
	Thresholds  decision.Thresholds
	Interval    time.Duration

	// Sink receives the terminal event. Nil logs it.
	Sink notify.Sink
	// Recorder is optional.
	Recorder  Recorder
	Observers []TickObserver
}

// Watcher runs the debounce decision loop.
type Watcher struct {
	config  Config
	mu      sync.Mutex
	running bool
}

// New creates a watcher. Missing parameters are reported by Run.
func New(cfg Config) *Watcher {
	if cfg.Sink == nil {
		cfg.Sink = notify.LogSink{}
	}
	return &Watcher{config: cfg}
}

// AddObserver registers an observer for the next run.
func (w *Watcher) AddObserver(o TickObserver) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.config.Observers = append(w.config.Observers, o)
}

// IsRunning reports whether Run is in progress.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// validate checks everything that must hold before the first tick.
func (w *Watcher) validate() error {
	c := w.config
	if c.Camera == nil {
		return fmt.Errorf("%w: no frame source", config.ErrConfiguration)
	}
	if c.Detector == nil {
		return fmt.Errorf("%w: no detector", config.ErrConfiguration)
	}
	if c.Calibration == nil {
		return fmt.Errorf("%w: no calibration", calib.ErrCalibration)
	}
	if err := c.Calibration.Validate(); err != nil {
		return err
	}
	if err := c.Thresholds.Validate(); err != nil {
		return fmt.Errorf("%w: %v", config.ErrConfiguration, err)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("%w: tick interval must be > 0, got %s", config.ErrConfiguration, c.Interval)
	}
	return nil
}

func (w *Watcher) runID() string {
	if w.config.Recorder != nil {
		return w.config.Recorder.RunID()
	}
	return uuid.NewString()
}

func (w *Watcher) acquire() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return false
	}
	w.running = true
	return true
}

func (w *Watcher) release() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.running = false
}

func (w *Watcher) observers() []TickObserver {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]TickObserver(nil), w.config.Observers...)
}
