// Package ctrlflow replaces the original implementation's exception-driven
// control flow (InterruptError/AbortedError/SkippedError in
// original_source/rnr/utils.py) with a tagged result type inspected at each
// suspension point, per Design Note §9 ("Exception-driven control flow").
// Workers call Check at every suspension point named in spec §5 and act on
// the returned Signal without needing a try/except-shaped control structure.
package ctrlflow

import "errors"

// Signal is the outcome of checking the cooperative control-flow events at
// a suspension point.
type Signal int

const (
	// SignalNone means proceed normally.
	SignalNone Signal = iota
	// SignalInterrupt means the process is shutting down; the worker must
	// exit without touching DB state so the job remains resumable.
	SignalInterrupt
	// SignalAbort means the whole job is being cancelled; remaining items
	// become ABORTED.
	SignalAbort
	// SignalSkip means the current item only should be skipped; the flag is
	// edge-triggered and is consumed by the act of observing it.
	SignalSkip
)

// ErrInterrupted, ErrAborted and ErrSkipped are sentinel errors so callers
// that prefer error-shaped control flow (e.g. returning up a call stack from
// within the block-copy loop) can use errors.Is instead of switching on a
// Signal directly.
var (
	ErrInterrupted = errors.New("interrupted")
	ErrAborted = errors.New("aborted")
	ErrSkipped = errors.New("skipped")
)

// SignalError wraps a Signal as an error, carrying an optional reason
// (mirroring SkippedError(str) in the original, e.g. "Target exists",
// "Same file").
type SignalError struct {
	Signal Signal
	Reason string
}

func (e *SignalError) Error() string {
	switch e.Signal {
	case SignalInterrupt:
		return "interrupted"
	case SignalAbort:
		return "aborted"
	case SignalSkip:
		if e.Reason != "" {
			return e.Reason
		}

		return "skipped"
	default:
		return "ok"
	}
}

func (e *SignalError) Unwrap() error {
	switch e.Signal {
	case SignalInterrupt:
		return ErrInterrupted
	case SignalAbort:
		return ErrAborted
	case SignalSkip:
		return ErrSkipped
	default:
		return nil
	}
}

// Skipped builds a SignalError carrying a user-visible reason, mirroring
// `raise SkippedError('Target exists')` / `raise SkippedError('Same file')`.
func Skipped(reason string) error {
	return &SignalError{Signal: SignalSkip, Reason: reason}
}

// Aborted builds a SignalError for whole-job cancellation.
func Aborted() error {
	return &SignalError{Signal: SignalAbort}
}

// Interrupted builds a SignalError for process-wide shutdown.
func Interrupted() error {
	return &SignalError{Signal: SignalInterrupt}
}

// Events is the set of cooperative control-flow latches a worker consults at
// every suspension point (spec §4.D, §5). Suspend is a wait-style latch
// (clear blocks); the rest are level/edge latches inspected without
// blocking.
type Events struct {
	Suspend *Latch
	Skip    *EdgeFlag
	Abort   *LevelFlag
	// Interrupt is process-wide (one per Controller, not per job); it is a
	// LevelFlag like Abort but is never cleared for the lifetime of the
	// process once set.
	Interrupt *LevelFlag
	// NoDB lets the Executor's caller disable JPL writes mid-run (ev_nodb).
	NoDB *LevelFlag
}

// NewEvents builds a fresh set of control events, Suspend initially open
// (not suspended).
func NewEvents() *Events {
	return &Events{
		Suspend:   NewLatch(true),
		Skip:      NewEdgeFlag(),
		Abort:     NewLevelFlag(),
		Interrupt: NewLevelFlag(),
		NoDB:      NewLevelFlag(),
	}
}

// Check waits on Suspend, then inspects Interrupt, Abort and Skip in that
// priority order (interrupt wins over abort wins over skip, since an
// interrupted process cannot safely continue even to record an abort), and
// returns SignalNone if none are set. Only the Signal is returned: the time
// spent blocked on Suspend is not reported to the caller.
func (e *Events) Check() Signal {
	e.Suspend.Wait()

	if e.Interrupt.IsSet() {
		return SignalInterrupt
	}

	if e.Abort.IsSet() {
		return SignalAbort
	}

	if e.Skip.TestAndClear() {
		return SignalSkip
	}

	return SignalNone
}

// CheckErr is Check wrapped as an error for call sites that prefer to
// propagate a single error value (e.g. "if err := events.CheckErr(); err !=
// nil { return err }").
func (e *Events) CheckErr() error {
	switch e.Check() {
	case SignalInterrupt:
		return Interrupted()
	case SignalAbort:
		return Aborted()
	case SignalSkip:
		return &SignalError{Signal: SignalSkip}
	default:
		return nil
	}
}
