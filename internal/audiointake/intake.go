// Package audiointake implements AudioIntake: validation and per-session
// enqueueing of framed audio units (§4.1).
package audiointake

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/voicecore/assistant/pkg/wav"
)

// ErrInvalidFrame is returned when a frame fails WAV validation (§7).
var ErrInvalidFrame = errors.New("audiointake: invalid frame")

// FrameUnit is the internal representation both inbound shapes (raw binary,
// or base64 text envelope) are normalized into (§4.1).
type FrameUnit struct {
	SessionID  string
	Bytes      []byte
	ReceivedAt time.Time
}

// OverflowFunc is called with the session id whenever the high-water mark
// is breached and a frame is dropped (§7 Overflow).
type OverflowFunc func(sessionID string)

// Intake validates inbound frames and fans them out into per-session
// bounded FIFOs. The queue is unbounded from the caller's perspective: Push
// never blocks the inbound socket reader, matching §4.1's invariant.
// Internally each per-session queue has a soft high-water mark; on overflow
// the oldest queued frame is discarded.
type Intake struct {
	sampleRate int
	highWater  int
	onOverflow OverflowFunc

	mu     sync.Mutex
	queues map[string]*queue
}

type queue struct {
	mu    sync.Mutex
	items []FrameUnit
	ch    chan struct{}
}

// Option configures an Intake.
type Option func(*Intake)

// WithHighWaterMark sets the soft per-session queue length at which the
// oldest frame is discarded. Default 100.
func WithHighWaterMark(n int) Option {
	return func(in *Intake) { in.highWater = n }
}

// WithOverflowFunc sets the callback invoked on overflow.
func WithOverflowFunc(f OverflowFunc) Option {
	return func(in *Intake) { in.onOverflow = f }
}

// New creates an Intake validating frames at sampleRate (Hz), mono, 16-bit
// PCM (§4.1).
func New(sampleRate int, opts ...Option) *Intake {
	in := &Intake{
		sampleRate: sampleRate,
		highWater:  100,
		queues:     make(map[string]*queue),
	}
	for _, o := range opts {
		o(in)
	}
	return in
}

// Push validates raw and, if well-formed, enqueues a FrameUnit for
// sessionID. Returns ErrInvalidFrame if raw fails WAV validation — the
// caller publishes the InvalidFrame client event and drops the frame, but
// the session is not torn down (§4.1, §7).
func (in *Intake) Push(sessionID string, raw []byte) error {
	if _, err := wav.Validate(raw, in.sampleRate); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFrame, err)
	}

	fu := FrameUnit{SessionID: sessionID, Bytes: raw, ReceivedAt: time.Now()}

	q := in.queueFor(sessionID)
	q.mu.Lock()
	q.items = append(q.items, fu)
	overflowed := false
	if len(q.items) > in.highWater {
		q.items = q.items[1:]
		overflowed = true
	}
	q.mu.Unlock()

	select {
	case q.ch <- struct{}{}:
	default:
	}

	if overflowed && in.onOverflow != nil {
		in.onOverflow(sessionID)
	}
	return nil
}

// Pop blocks until a frame is available for sessionID or stop is closed,
// returning the oldest frame in arrival order. Ok is false if stop fired
// first.
func (in *Intake) Pop(sessionID string, stop <-chan struct{}) (FrameUnit, bool) {
	q := in.queueFor(sessionID)
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			fu := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return fu, true
		}
		q.mu.Unlock()

		select {
		case <-q.ch:
			continue
		case <-stop:
			return FrameUnit{}, false
		}
	}
}

// TryPop returns the oldest queued frame for sessionID without blocking.
// Ok is false if the queue is currently empty.
func (in *Intake) TryPop(sessionID string) (FrameUnit, bool) {
	q := in.queueFor(sessionID)
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return FrameUnit{}, false
	}
	fu := q.items[0]
	q.items = q.items[1:]
	return fu, true
}

// Notify returns the channel Push signals on when a frame is enqueued for
// sessionID, for callers that need to select alongside other timers instead
// of blocking inside Pop.
func (in *Intake) Notify(sessionID string) <-chan struct{} {
	return in.queueFor(sessionID).ch
}

func (in *Intake) queueFor(sessionID string) *queue {
	in.mu.Lock()
	defer in.mu.Unlock()
	q, ok := in.queues[sessionID]
	if !ok {
		q = &queue{ch: make(chan struct{}, 1)}
		in.queues[sessionID] = q
	}
	return q
}

// Drop removes the per-session queue, e.g. when a TranscriptionWorker
// retires after its idle timeout (§4.2).
func (in *Intake) Drop(sessionID string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	delete(in.queues, sessionID)
}

// QueueLen returns the current queue length for sessionID, for tests and
// diagnostics.
func (in *Intake) QueueLen(sessionID string) int {
	q := in.queueFor(sessionID)
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
