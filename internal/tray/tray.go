// Package tray provides a system tray status display for the LED watcher.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/ledwatch/internal/decision"
)

// Tray represents the system tray application.
type Tray struct {
	onStop   func()
	onStatus func()
	onQuit   func()
	label    string
	stopped  bool
	mu       sync.RWMutex

	// Menu items stored for later updates
	menuState *systray.MenuItem
	menuTick  *systray.MenuItem
	menuStop  *systray.MenuItem
}

// New creates a new Tray instance.
func New() *Tray {
	return &Tray{label: "Waiting for first tick"}
}

// OnStop sets the callback invoked when the Stop item is clicked.
func (t *Tray) OnStop(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onStop = fn
}

// OnStatus sets the callback invoked when the status page item is clicked.
func (t *Tray) OnStatus(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onStatus = fn
}

// OnQuit sets the callback invoked when the quit item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until Quit is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("LED")
	systray.SetTooltip("LED watcher")

	t.mu.Lock()
	t.menuState = systray.AddMenuItem(t.label, "Current verdict")
	t.menuState.Disable()
	t.menuTick = systray.AddMenuItem("Last: none", "Last classification")
	t.menuTick.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuStatus := systray.AddMenuItem("Open Status...", "Open the status page in a browser")
	t.menuStop = systray.AddMenuItem("Stop Watching", "Stop the current run")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit the LED watcher")

	go func() {
		for {
			select {
			case <-t.menuStop.ClickedCh:
				t.handleStop()
			case <-menuStatus.ClickedCh:
				t.handleStatus()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

func (t *Tray) handleStop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	if t.menuStop != nil {
		t.menuStop.Disable()
	}
	callback := t.onStop
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback()
	}
}

func (t *Tray) handleStatus() {
	t.mu.RLock()
	callback := t.onStatus
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// ObserveTick shows the tick outcome in the menu.
func (t *Tray) ObserveTick(tick decision.Tick) {
	label, last := describe(tick)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.label = label
	if t.menuState != nil {
		t.menuState.SetTitle(label)
		t.menuTick.SetTitle(last)
		systray.SetTooltip("LED watcher: " + label)
	}
}

// Label returns the current status line.
func (t *Tray) Label() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.label
}

// IsStopped reports whether Stop was clicked.
func (t *Tray) IsStopped() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.stopped
}

// describe returns the status line and the last-classification line.
func describe(tick decision.Tick) (string, string) {
	var label string
	switch tick.Verdict {
	case decision.EndingDetected:
		label = fmt.Sprintf("Cycle ended after %s", tick.Elapsed)
	case decision.NoLedDetected:
		label = fmt.Sprintf("Panel off after %s", tick.Elapsed)
	default:
		label = fmt.Sprintf("Watching (tick %d)", tick.Index)
	}

	if tick.Err != "" {
		return label, "Last: error"
	}
	return label, "Last: " + tick.Classification.String()
}
