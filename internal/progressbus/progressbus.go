// Package progressbus implements the Progress Bus (spec §4.D): a
// single-producer/single-consumer channel paired with an OS pipe wake byte,
// grounded on the (fd, q) pairs threaded through every worker function in
// original_source/rnr/rnr_dirscan.py, rnr_cpmv.py and rnr_delete.py. A
// worker goroutine owns the producer side and pushes throttled Sample
// messages plus one terminal Done message; the controller goroutine owns
// the consumer side and drains Messages while also being able to multiplex
// the wake pipe's read end into a select/poll loop built around other fds
// (the original's motivation for using an fd instead of a bare condition
// variable: the panel's event loop already selects on stdin and timers).
package progressbus

import (
	"os"
	"sync"
	"time"
)

// MessageKind distinguishes the two message shapes pushed onto a Bus.
type MessageKind int

const (
	// KindSample is a throttled in-progress update.
	KindSample MessageKind = iota
	// KindDone is the single terminal message a worker sends before closing
	// its producer side.
	KindDone
)

// Sample is an in-progress status update. It is a superset of the distinct
// dict shapes the original pushes per worker (rnr_dirscan's {'current',
// 'files', 'bytes'} vs rnr_cpmv/rnr_delete's {'cur_file', 'cur_size', ...});
// a consumer reads only the fields its producer actually populates, same as
// a Python caller would only look at the keys it expects.
type Sample struct {
	// Populated by the Scanner, and by the Delete executor (the file being
	// removed and its running totals).
	CurrentDir   string
	FilesScanned int64
	BytesScanned int64

	// Populated by the Copy/Move executor.
	CurFile     string
	CurSize     int64
	CurTarget   int64
	TotalSize   int64
	TotalTarget int64
}

// Done is the terminal message a worker pushes exactly once before it
// finishes, mirroring the final {'result': ..., 'error': ..., 'skipped':
// ...} dict pushed by rnr_dirscan / rnr_cpmv / rnr_delete.
type Done struct {
	Error   error
	Skipped bool
}

// Message is one item on the Bus: exactly one of Sample or Done is
// meaningful, selected by Kind.
type Message struct {
	Kind   MessageKind
	Sample Sample
	Done   Done
}

// Bus is a single-producer/single-consumer progress channel with an
// attached wake pipe. The channel alone would suffice for a consumer that
// only ever ranges over Messages(); the wake pipe exists for a consumer
// (e.g. a terminal UI) that must multiplex this bus alongside other file
// descriptors in one select/poll call, exactly as the original threads a
// raw fd through to its main loop's selector.
type Bus struct {
	messages  chan Message
	wakeRead  *os.File
	wakeWrite *os.File

	closeOnce sync.Once
}

// New creates a Bus with the given channel buffer depth (the original
// leaves its queue unbounded; a small buffer here just avoids forcing a
// rendezvous on every throttled sample).
func New(bufferDepth int) (*Bus, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}

	return &Bus{
		messages:  make(chan Message, bufferDepth),
		wakeRead:  r,
		wakeWrite: w,
	}, nil
}

// WakeFD returns the read end of the wake pipe, for a consumer's
// select/poll loop. One byte is written to it per pushed Message; the
// consumer is expected to drain the pipe (ReadByte) each time it wakes, the
// same one-byte-per-notification convention the original's modal dialogs
// use around an alarm-driven poll.
func (b *Bus) WakeFD() *os.File {
	return b.wakeRead
}

// Messages returns the receive side of the message channel.
func (b *Bus) Messages() <-chan Message {
	return b.messages
}

func (b *Bus) push(msg Message) {
	b.messages <- msg

	// Best-effort wake byte: a full wake pipe only means the consumer
	// hasn't drained its previous wakeups yet, not that this message was
	// lost (it is still sitting in the channel).
	_, _ = b.wakeWrite.Write([]byte{0})
}

// PushSample pushes a throttled progress update.
func (b *Bus) PushSample(s Sample) {
	b.push(Message{Kind: KindSample, Sample: s})
}

// PushDone pushes the terminal message and closes the producer side. A Bus
// must receive exactly one PushDone call; calling it twice panics on the
// closed channel, which is intentional (it mirrors the original's single
// terminal dict push that ends the worker thread).
func (b *Bus) PushDone(d Done) {
	b.push(Message{Kind: KindDone, Done: d})
	b.closeOnce.Do(func() {
		close(b.messages)
	})
}

// Close releases the wake pipe. Safe to call once the consumer has
// observed KindDone.
func (b *Bus) Close() error {
	werr := b.wakeWrite.Close()
	rerr := b.wakeRead.Close()

	if werr != nil {
		return werr
	}

	return rerr
}

// Throttle is a small helper workers use to decide whether enough time has
// passed to push another Sample, mirroring the 0.04s/0.05s intervals
// hardcoded in rnr_copyfile and recursive_dirscan.
type Throttle struct {
	interval time.Duration
	last     time.Time
}

// NewThrottle builds a Throttle that allows a push immediately, then no
// more than once per interval.
func NewThrottle(interval time.Duration) *Throttle {
	return &Throttle{interval: interval}
}

// Ready reports whether interval has elapsed since the last Ready call that
// returned true, and if so records now as the new baseline.
func (t *Throttle) Ready(now time.Time) bool {
	if t.last.IsZero() || now.Sub(t.last) >= t.interval {
		t.last = now

		return true
	}

	return false
}
