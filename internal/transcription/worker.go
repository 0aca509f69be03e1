// Package transcription implements the TranscriptionWorker: one worker per
// session draining AudioIntake, batching frames, invoking the Transcriber,
// persisting results, and publishing on the SessionBus (§4.2, §12 batching).
package transcription

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/voicecore/assistant/internal/audiointake"
	"github.com/voicecore/assistant/internal/bus"
	"github.com/voicecore/assistant/internal/observe"
	"github.com/voicecore/assistant/internal/settings"
	"github.com/voicecore/assistant/pkg/provider/stt"
	"github.com/voicecore/assistant/pkg/store"
	"github.com/voicecore/assistant/pkg/wav"
)

// forceFlushInterval is how long a partial batch waits, counted from its
// oldest unflushed frame, before it is flushed even if FramesPerBatch has
// not been reached (§12).
const forceFlushInterval = 30 * time.Second

// idleRetireTimeout retires a session's worker goroutine when no frame has
// arrived for this long (§9 "adds an idle-timeout retirement for
// transcription workers so dormant sessions do not pin goroutines").
const idleRetireTimeout = 5 * time.Minute

// NewTranscriptFunc is called after a non-empty transcript is persisted,
// signalling PipelineOrchestrator (§4.2 "posts a NewTranscript signal").
type NewTranscriptFunc func(sessionID string, transcriptID int64)

// Pool manages one TranscriptionWorker per session, spawned on first frame
// and retired after idle timeout, using a mutex-guarded per-session
// goroutine registry.
type Pool struct {
	intake      *audiointake.Intake
	transcriber stt.Transcriber
	store       store.Store
	bus         *bus.Bus
	resolver    *settings.Resolver
	onNew       NewTranscriptFunc

	mu      sync.Mutex
	workers map[string]*worker
}

// NewPool creates a Pool wiring the given collaborators.
func NewPool(in *audiointake.Intake, tr stt.Transcriber, st store.Store, b *bus.Bus, r *settings.Resolver, onNew NewTranscriptFunc) *Pool {
	return &Pool{
		intake:      in,
		transcriber: tr,
		store:       st,
		bus:         b,
		resolver:    r,
		onNew:       onNew,
		workers:     make(map[string]*worker),
	}
}

// Ensure spawns a worker for sessionID if one is not already running.
func (p *Pool) Ensure(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.workers[sessionID]; ok {
		return
	}
	w := &worker{pool: p, sessionID: sessionID, stop: make(chan struct{})}
	p.workers[sessionID] = w
	go w.run()
}

// Stop retires the worker for sessionID, if any.
func (p *Pool) Stop(sessionID string) {
	p.mu.Lock()
	w, ok := p.workers[sessionID]
	delete(p.workers, sessionID)
	p.mu.Unlock()
	if ok {
		close(w.stop)
	}
}

func (p *Pool) retire(sessionID string) {
	p.mu.Lock()
	delete(p.workers, sessionID)
	p.mu.Unlock()
	p.intake.Drop(sessionID)
}

type worker struct {
	pool      *Pool
	sessionID string
	stop      chan struct{}

	mu    sync.Mutex
	batch [][]byte
}

func (w *worker) run() {
	idle := time.NewTimer(idleRetireTimeout)
	defer idle.Stop()

	flushTimer := time.NewTimer(forceFlushInterval)
	defer flushTimer.Stop()

	notify := w.pool.intake.Notify(w.sessionID)

	for {
		select {
		case <-w.stop:
			w.flush(context.Background())
			return
		case <-idle.C:
			w.flush(context.Background())
			w.pool.retire(w.sessionID)
			return
		case <-flushTimer.C:
			w.flush(context.Background())
			resetTimer(flushTimer, forceFlushInterval)
		case <-notify:
			resetTimer(idle, idleRetireTimeout)

			for {
				fu, ok := w.pool.intake.TryPop(w.sessionID)
				if !ok {
					break
				}
				w.mu.Lock()
				w.batch = append(w.batch, fu.Bytes)
				n := len(w.batch)
				w.mu.Unlock()
				if n == 1 {
					resetTimer(flushTimer, forceFlushInterval)
				}

				eff, err := w.pool.resolver.Resolve(context.Background())
				if err != nil {
					slog.Error("transcription: resolve settings", "session_id", w.sessionID, "error", err)
					continue
				}
				if n >= eff.FramesPerBatch {
					w.flush(context.Background())
					resetTimer(flushTimer, forceFlushInterval)
				}
			}
		}
	}
}

// resetTimer safely resets a timer that may have already fired, draining
// its channel first if needed.
func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

// flush concatenates the current batch into one WAV container, runs
// transcription, persists, and publishes — or no-ops if the batch is
// empty.
func (w *worker) flush(ctx context.Context) {
	w.mu.Lock()
	batch := w.batch
	w.batch = nil
	w.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	merged, _, err := mergePCM(batch)
	if err != nil {
		slog.Error("transcription: merge batch", "session_id", w.sessionID, "error", err)
		w.publishError("TranscriberError", err.Error())
		return
	}

	eff, err := w.pool.resolver.Resolve(ctx)
	if err != nil {
		slog.Error("transcription: resolve settings", "session_id", w.sessionID, "error", err)
		return
	}

	tctx, span := observe.StartSpan(ctx, "transcription.flush")
	defer span.End()
	tctx, cancel := context.WithTimeout(tctx, 60*time.Second)
	defer cancel()

	metrics := observe.DefaultMetrics()
	start := time.Now()
	result, err := w.pool.transcriber.Transcribe(tctx, merged, eff.WhisperLanguage, eff.WhisperModel)
	metrics.STTDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		kind := "TranscriberError"
		if tctx.Err() != nil {
			kind = "TranscriberTimeout"
		}
		metrics.RecordProviderError(ctx, "stt", eff.WhisperModel)
		observe.Logger(tctx).Error("transcription: transcribe", "session_id", w.sessionID, "error", err)
		w.publishError(kind, err.Error())
		return
	}
	metrics.RecordProviderRequest(ctx, "stt", eff.WhisperModel, "ok")

	if strings.TrimSpace(result.Text) == "" {
		w.pool.bus.Publish(w.sessionID, bus.Event{
			Type: bus.EventTranscriptionResult,
			Transcription: &bus.TranscriptionResult{
				Success: true, SessionID: w.sessionID, Language: result.Language,
			},
		})
		return
	}

	t, err := w.pool.store.AppendTranscript(ctx, store.Transcript{
		SessionID: w.sessionID,
		Text:      result.Text,
		Language:  result.Language,
		Model:     eff.WhisperModel,
		CreatedAt: time.Now(),
	})
	if err != nil {
		slog.Error("transcription: append transcript", "session_id", w.sessionID, "error", err)
		return
	}
	_ = w.pool.store.BumpActivity(ctx, w.sessionID)

	w.pool.bus.Publish(w.sessionID, bus.Event{
		Type: bus.EventTranscriptionResult,
		Transcription: &bus.TranscriptionResult{
			Success: true, Text: t.Text, Language: t.Language, Model: t.Model,
			SessionID: w.sessionID, TranscriptID: t.ID,
		},
	})

	if w.pool.onNew != nil {
		w.pool.onNew(w.sessionID, t.ID)
	}
}

func (w *worker) publishError(kind, message string) {
	w.pool.bus.Publish(w.sessionID, bus.Event{
		Type:  bus.EventError,
		Error: &bus.ErrorEvent{SessionID: w.sessionID, Kind: kind, Message: message},
	})
}

// mergePCM decodes each WAV frame in batch, concatenates their PCM payload
// (they share a sample rate by construction — AudioIntake validates this),
// and re-wraps it as a single WAV container for the Transcriber.
func mergePCM(batch [][]byte) ([]byte, int, error) {
	var pcm []byte
	sampleRate := 0
	for i, raw := range batch {
		f, err := wav.Decode(raw)
		if err != nil {
			return nil, 0, fmt.Errorf("transcription: decode frame %d: %w", i, err)
		}
		if sampleRate == 0 {
			sampleRate = f.SampleRate
		}
		pcm = append(pcm, f.PCM...)
	}
	return wav.Encode(pcm, sampleRate, 1), sampleRate, nil
}
