// Package orchestrator implements the PipelineOrchestrator: on every
// NewTranscript signal, it independently dispatches the summary and
// mind-map pipelines for a session, gated through a ProcessingStateManager
// and bounded by a worker pool (§4.4).
package orchestrator

import (
	"context"
	"log/slog"
	"sync"

	"github.com/voicecore/assistant/internal/bus"
	"github.com/voicecore/assistant/internal/pipeline"
	"github.com/voicecore/assistant/internal/settings"
	"github.com/voicecore/assistant/internal/state"
	"github.com/voicecore/assistant/pkg/provider/llm"
	"github.com/voicecore/assistant/pkg/store"
)

// Orchestrator wires the ProcessingStateManager, SettingsResolver, and the
// Summary/MindMap pipeline functions behind a bounded worker pool.
type Orchestrator struct {
	store    store.Store
	invoker  llm.Invoker
	bus      *bus.Bus
	resolver *settings.Resolver
	state    *state.Manager
	pool     *workerPool
}

// Option configures an Orchestrator during construction.
type Option func(*Orchestrator)

// WithPoolSize sets the maximum number of pipeline runs allowed to execute
// concurrently across all sessions. Defaults to 2 (§5).
func WithPoolSize(n int) Option {
	return func(o *Orchestrator) { o.pool = newWorkerPool(n) }
}

// New creates an Orchestrator wiring the given collaborators.
func New(st store.Store, invoker llm.Invoker, b *bus.Bus, resolver *settings.Resolver, mgr *state.Manager, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:    st,
		invoker:  invoker,
		bus:      b,
		resolver: resolver,
		state:    mgr,
		pool:     newWorkerPool(2),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// OnNewTranscript is the TranscriptionWorker callback (§4.2 "posts a
// NewTranscript signal"): for each pipeline kind, resolve settings, skip if
// the kind's model is the "none" sentinel, try to acquire the
// ProcessingStateManager slot, and either schedule the run on the worker
// pool or publish a ProcessingStatus event if the slot is already reserved.
//
// transcriptID is accepted to match the TranscriptionWorker callback shape
// but is not otherwise used: both pipelines reload the full transcript
// history from the store rather than operating on a single new row. Once
// both kinds have considered the session's current unprocessed transcripts —
// run to completion or explicitly disabled, but not merely skipped because
// the pool slot was busy — those transcripts' ProcessedAt is stamped
// (§3 "set when both summary and mind-map pipelines have considered this
// transcript").
func (o *Orchestrator) OnNewTranscript(sessionID string, transcriptID int64) {
	ctx := context.Background()

	eff, err := o.resolver.Resolve(ctx)
	if err != nil {
		slog.Error("orchestrator: resolve settings", "session_id", sessionID, "error", err)
		return
	}

	pending := o.unprocessedIDs(ctx, sessionID)
	tracker := &completionTracker{remaining: 2}

	// Each kind is dispatched independently — no shared errgroup here: one
	// kind being skipped, delayed, or failing must never hold up or cancel
	// the other (§4.3 invariant 2, §12 "independent mind-map dispatch").
	o.dispatch(ctx, sessionID, state.KindSummary, eff, tracker, pending, func(ctx context.Context) error {
		return pipeline.Summary(ctx, o.store, o.invoker, o.bus, sessionID, eff)
	})
	o.dispatch(ctx, sessionID, state.KindMindMap, eff, tracker, pending, func(ctx context.Context) error {
		return pipeline.MindMap(ctx, o.store, o.invoker, o.bus, sessionID, eff)
	})
}

// unprocessedIDs returns the ids of sessionID's transcripts that have not
// yet been marked processed. Errors are logged and treated as "none", since
// ProcessedAt bookkeeping must never block a pipeline dispatch.
func (o *Orchestrator) unprocessedIDs(ctx context.Context, sessionID string) []int64 {
	transcripts, err := o.store.ListTranscripts(ctx, sessionID)
	if err != nil {
		slog.Error("orchestrator: list transcripts for processed tracking", "session_id", sessionID, "error", err)
		return nil
	}
	var ids []int64
	for _, t := range transcripts {
		if t.ProcessedAt == nil {
			ids = append(ids, t.ID)
		}
	}
	return ids
}

// completionTracker waits for both pipeline kinds dispatched from one
// OnNewTranscript call to finish before the transcripts they considered are
// marked processed. A kind skipped because its slot was already busy does
// not count as "considered": it will be retried on the next signal, so
// marking must wait for it rather than stamping ProcessedAt early.
type completionTracker struct {
	mu        sync.Mutex
	remaining int
	busySkip  bool
}

func (t *completionTracker) complete(busySkip bool) (done, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.remaining--
	if busySkip {
		t.busySkip = true
	}
	return t.remaining == 0, !t.busySkip
}

func (o *Orchestrator) dispatch(ctx context.Context, sessionID string, kind state.Kind, eff settings.Effective, tracker *completionTracker, pending []int64, run func(context.Context) error) {
	if eff.Disabled(string(kind)) {
		o.finishKind(ctx, sessionID, tracker, pending, false)
		return
	}

	if !o.state.TryStart(sessionID, kind) {
		st := o.state.Status(sessionID)
		o.bus.Publish(sessionID, bus.Event{
			Type: bus.EventProcessingStatus,
			Status: &bus.ProcessingStatus{
				SessionID:         sessionID,
				SummaryProcessing: st.SummaryBusy,
				MindMapProcessing: st.MindMapBusy,
			},
		})
		o.finishKind(ctx, sessionID, tracker, pending, true)
		return
	}

	o.pool.submit(func() {
		defer o.state.Stop(sessionID, kind)
		// Only now — at actual dequeue, not at the submit above — does the
		// slot become busy with a real startedAt (§5): a saturated pool must
		// never make Status() lie about a job that is still queued.
		o.state.MarkRunning(sessionID, kind)
		if err := run(ctx); err != nil {
			slog.Error("orchestrator: pipeline run failed", "session_id", sessionID, "kind", kind, "error", err)
		}
		o.finishKind(ctx, sessionID, tracker, pending, false)
	})
}

// finishKind records one kind's completion against tracker and, once both
// kinds are done and neither was skipped for being busy, marks pending
// processed.
func (o *Orchestrator) finishKind(ctx context.Context, sessionID string, tracker *completionTracker, pending []int64, busySkip bool) {
	done, clean := tracker.complete(busySkip)
	if !done || !clean || len(pending) == 0 {
		return
	}
	if err := o.store.MarkTranscriptsProcessed(ctx, pending); err != nil {
		slog.Error("orchestrator: mark transcripts processed", "session_id", sessionID, "error", err)
	}
}
