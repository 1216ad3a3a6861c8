package ctrlflow

import "sync"

// LevelFlag is a level-triggered boolean latch: once Set, it stays set until
// Clear is called. Used for ev_abort and ev_interrupt, which are monotonic
// within a job/process lifetime (spec §5).
type LevelFlag struct {
	mu  sync.Mutex
	set bool
}

// NewLevelFlag returns a LevelFlag that starts clear.
func NewLevelFlag() *LevelFlag {
	return &LevelFlag{}
}

// Set latches the flag.
func (f *LevelFlag) Set() {
	f.mu.Lock()
	f.set = true
	f.mu.Unlock()
}

// Clear resets the flag, for job reuse between runs of the same Events set.
func (f *LevelFlag) Clear() {
	f.mu.Lock()
	f.set = false
	f.mu.Unlock()
}

// IsSet reports the current state without consuming it.
func (f *LevelFlag) IsSet() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.set
}

// EdgeFlag is an edge-triggered boolean latch: Set marks a single pending
// occurrence, and TestAndClear consumes it. Used for ev_skip, which fires
// once per "skip this file" keypress and must not re-fire on the next item
// (spec §5).
type EdgeFlag struct {
	mu  sync.Mutex
	set bool
}

// NewEdgeFlag returns an EdgeFlag that starts clear.
func NewEdgeFlag() *EdgeFlag {
	return &EdgeFlag{}
}

// Set marks one pending edge.
func (f *EdgeFlag) Set() {
	f.mu.Lock()
	f.set = true
	f.mu.Unlock()
}

// TestAndClear reports whether an edge was pending and clears it atomically.
func (f *EdgeFlag) TestAndClear() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	wasSet := f.set
	f.set = false

	return wasSet
}

// Latch is a level-triggered gate used for ev_suspend: while closed, Wait
// blocks; Open releases every blocked and future waiter until Close is
// called again. Built on a channel rather than sync.Cond so Wait can be
// combined with cancellation in future callers without a wrapper goroutine.
type Latch struct {
	mu   sync.Mutex
	open bool
	ch   chan struct{}
}

// NewLatch returns a Latch, initially open if startOpen is true.
func NewLatch(startOpen bool) *Latch {
	l := &Latch{ch: make(chan struct{})}
	if startOpen {
		l.open = true
		close(l.ch)
	}

	return l
}

// Open releases all waiters and lets future Wait calls return immediately.
func (l *Latch) Open() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.open {
		l.open = true
		close(l.ch)
	}
}

// Close makes future Wait calls block again.
func (l *Latch) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.open {
		l.open = false
		l.ch = make(chan struct{})
	}
}

// Wait blocks until the latch is open.
func (l *Latch) Wait() {
	l.mu.Lock()
	ch := l.ch
	l.mu.Unlock()

	<-ch
}

// IsOpen reports the current state without blocking.
func (l *Latch) IsOpen() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.open
}
