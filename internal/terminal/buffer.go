// Package terminal implements the pseudoterminal session manager: it
// spawns interactive shells behind each project's terminal tabs, relays
// their output to an attached UI surface, and buffers output while no
// surface is attached so that closing and reopening the host window never
// loses what a session printed in between.
package terminal

import "sync"

// DefaultBufferSize is the cap on bytes retained per detached session.
const DefaultBufferSize = 100 * 1024

// TailBuffer is a thread-safe byte buffer with a fixed cap that keeps the
// most recent bytes written. When an append would exceed the cap, the
// oldest bytes are discarded first. Detached sessions can run indefinitely
// (a long build, a tail -f), so the buffer must not grow unbounded.
type TailBuffer struct {
	mu   sync.Mutex
	data []byte
	max  int
}

// NewTailBuffer creates a tail buffer retaining at most max bytes.
// If max <= 0, DefaultBufferSize is used.
func NewTailBuffer(max int) *TailBuffer {
	if max <= 0 {
		max = DefaultBufferSize
	}
	return &TailBuffer{max: max}
}

// Write appends p, discarding the oldest bytes when the cap is exceeded.
func (b *TailBuffer) Write(p []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(p) >= b.max {
		// Chunk alone exceeds the cap: only its tail survives.
		b.data = append(b.data[:0], p[len(p)-b.max:]...)
		return
	}

	b.data = append(b.data, p...)
	if over := len(b.data) - b.max; over > 0 {
		// Shift in place instead of reslicing so the discarded prefix
		// does not pin the backing array.
		b.data = append(b.data[:0], b.data[over:]...)
	}
}

// Drain returns the buffered bytes and empties the buffer. The contents of
// a session's buffer are delivered exactly once: callers own the returned
// slice.
func (b *TailBuffer) Drain() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := b.data
	b.data = nil
	return out
}

// Len returns the number of currently buffered bytes.
func (b *TailBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// Reset discards all buffered bytes.
func (b *TailBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = nil
}
