package state

import (
	"log/slog"
	"sync"
	"time"
)

// writeBehind coalesces a burst of rapid state changes into a single
// delayed write: every Schedule resets the deadline, and only the latest
// full state is persisted when the quiet period elapses. Flush fires a
// pending write synchronously.
type writeBehind struct {
	window time.Duration
	save   func() error
	logger *slog.Logger

	mu      sync.Mutex
	timer   *time.Timer
	dirty   bool
	stopped bool
}

func newWriteBehind(window time.Duration, save func() error, logger *slog.Logger) *writeBehind {
	return &writeBehind{
		window: window,
		save:   save,
		logger: logger,
	}
}

// Schedule marks the state dirty and arms (or re-arms) the deadline timer.
func (w *writeBehind) Schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}
	w.dirty = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.window, w.fire)
}

// fire runs on the timer goroutine when the quiet period elapses.
func (w *writeBehind) fire() {
	w.mu.Lock()
	if w.stopped || !w.dirty {
		w.mu.Unlock()
		return
	}
	w.dirty = false
	w.timer = nil
	w.mu.Unlock()

	if err := w.save(); err != nil {
		w.logger.Warn("debounced state write failed", "error", err)
	}
}

// Flush writes pending state immediately, cancelling the timer.
func (w *writeBehind) Flush() {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	dirty := w.dirty
	w.dirty = false
	w.mu.Unlock()

	if !dirty {
		return
	}
	if err := w.save(); err != nil {
		w.logger.Warn("state flush failed", "error", err)
	}
}

// Stop prevents any further scheduled writes. Flush first if the final
// state must survive.
func (w *writeBehind) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}
