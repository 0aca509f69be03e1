package orchestrator_test

import (
	"context"
	"testing"
	"time"

	"github.com/voicecore/assistant/internal/bus"
	"github.com/voicecore/assistant/internal/orchestrator"
	"github.com/voicecore/assistant/internal/settings"
	"github.com/voicecore/assistant/internal/state"
	"github.com/voicecore/assistant/pkg/provider/llm"
	"github.com/voicecore/assistant/pkg/provider/llm/mock"
	"github.com/voicecore/assistant/pkg/store"
	"github.com/voicecore/assistant/pkg/store/memstore"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestOnNewTranscript_DispatchesBothPipelinesAndReleasesSlots(t *testing.T) {
	st := memstore.New()
	st.AppendTranscript(context.Background(), store.Transcript{SessionID: "s1", Text: "hello world"})

	b := bus.New()
	h := b.Subscribe("s1")
	defer h.Close()

	inv := &mock.Invoker{Response: llm.Response{Text: `{"nodes":[{"id":"1","label":"Dragon"}],"edges":[]}`}}
	resolver := settings.NewResolver(st)
	mgr := state.NewManager()

	o := orchestrator.New(st, inv, b, resolver, mgr)
	o.OnNewTranscript("s1", 1)

	waitFor(t, time.Second, func() bool { return mgr.SessionCount() == 0 })

	seenAnalysis, seenMindMap := false, false
	deadline := time.After(time.Second)
	for !seenAnalysis || !seenMindMap {
		select {
		case ev := <-h.Events():
			switch ev.Type {
			case bus.EventSessionAnalysis:
				seenAnalysis = true
			case bus.EventMindMapResult:
				seenMindMap = true
			}
		case <-deadline:
			t.Fatalf("timed out waiting for events; analysis=%v mindmap=%v", seenAnalysis, seenMindMap)
		}
	}
}

func TestOnNewTranscript_MarksTranscriptsProcessedOnceBothPipelinesFinish(t *testing.T) {
	st := memstore.New()
	tr, _ := st.AppendTranscript(context.Background(), store.Transcript{SessionID: "s1", Text: "hello world"})

	b := bus.New()
	h := b.Subscribe("s1")
	defer h.Close()

	inv := &mock.Invoker{Response: llm.Response{Text: `{"nodes":[{"id":"1","label":"Dragon"}],"edges":[]}`}}
	resolver := settings.NewResolver(st)
	mgr := state.NewManager()

	o := orchestrator.New(st, inv, b, resolver, mgr)
	o.OnNewTranscript("s1", tr.ID)

	waitFor(t, time.Second, func() bool {
		list, err := st.ListTranscripts(context.Background(), "s1")
		return err == nil && len(list) == 1 && list[0].ProcessedAt != nil
	})
}

func TestOnNewTranscript_BusySlotLeavesTranscriptsUnprocessed(t *testing.T) {
	st := memstore.New()
	st.AppendTranscript(context.Background(), store.Transcript{SessionID: "s1", Text: "hello"})

	b := bus.New()
	h := b.Subscribe("s1")
	defer h.Close()

	resolver := settings.NewResolver(st)
	mgr := state.NewManager()
	mgr.TryStart("s1", state.KindSummary)
	mgr.TryStart("s1", state.KindMindMap)
	defer mgr.Stop("s1", state.KindSummary)
	defer mgr.Stop("s1", state.KindMindMap)

	inv := &mock.Invoker{Response: llm.Response{Text: "irrelevant"}}
	o := orchestrator.New(st, inv, b, resolver, mgr)
	o.OnNewTranscript("s1", 1)

	deadline := time.After(200 * time.Millisecond)
	for {
		select {
		case ev := <-h.Events():
			if ev.Type == bus.EventProcessingStatus {
				list, err := st.ListTranscripts(context.Background(), "s1")
				if err != nil {
					t.Fatalf("ListTranscripts: %v", err)
				}
				if list[0].ProcessedAt != nil {
					t.Fatal("expected transcript to remain unprocessed while both slots are busy")
				}
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for ProcessingStatus event")
		}
	}
}

func TestOnNewTranscript_SkipsBusySlotAndPublishesProcessingStatus(t *testing.T) {
	st := memstore.New()
	st.AppendTranscript(context.Background(), store.Transcript{SessionID: "s1", Text: "hello"})

	b := bus.New()
	h := b.Subscribe("s1")
	defer h.Close()

	resolver := settings.NewResolver(st)
	mgr := state.NewManager()
	mgr.TryStart("s1", state.KindSummary)
	mgr.TryStart("s1", state.KindMindMap)
	defer mgr.Stop("s1", state.KindSummary)
	defer mgr.Stop("s1", state.KindMindMap)

	inv := &mock.Invoker{Response: llm.Response{Text: "irrelevant"}}
	o := orchestrator.New(st, inv, b, resolver, mgr)
	o.OnNewTranscript("s1", 1)

	statusCount := 0
	deadline := time.After(500 * time.Millisecond)
loop:
	for {
		select {
		case ev := <-h.Events():
			if ev.Type == bus.EventProcessingStatus {
				statusCount++
				if statusCount == 2 {
					break loop
				}
			}
		case <-deadline:
			t.Fatalf("expected 2 ProcessingStatus events, got %d", statusCount)
		}
	}

	if inv.CallCount() != 0 {
		t.Errorf("expected no LLM invocation while slots are busy, got %d", inv.CallCount())
	}
}

// TestDispatch_SaturatedPoolKeepsStatusTruthful saturates a pool of size 1
// with one session's summary run and checks that a second session's run,
// still waiting in the pool queue, reads as not-busy with a zero StartedAt
// until the worker actually dequeues it (§5).
func TestDispatch_SaturatedPoolKeepsStatusTruthful(t *testing.T) {
	st := memstore.New()
	st.AppendTranscript(context.Background(), store.Transcript{SessionID: "s1", Text: "hello"})
	st.AppendTranscript(context.Background(), store.Transcript{SessionID: "s2", Text: "world"})

	s, _ := st.GetSettings(context.Background())
	s.MindMapModel = store.ModelNone
	st.PutSettings(context.Background(), s)

	b := bus.New()
	h1 := b.Subscribe("s1")
	defer h1.Close()
	h2 := b.Subscribe("s2")
	defer h2.Close()

	block := make(chan struct{})
	inv := &mock.Invoker{Response: llm.Response{Text: "a summary"}, Block: block}
	resolver := settings.NewResolver(st)
	mgr := state.NewManager()

	o := orchestrator.New(st, inv, b, resolver, mgr, orchestrator.WithPoolSize(1))

	o.OnNewTranscript("s1", 1)
	waitFor(t, time.Second, func() bool { return mgr.IsBusy("s1", state.KindSummary) })

	o.OnNewTranscript("s2", 2)

	// s2's job is sitting in the pool's job channel behind s1's still-running
	// (blocked) job: the pool has exactly one worker, and it won't be free
	// until block is closed below. Status for s2 must not lie in the
	// meantime.
	if mgr.IsBusy("s2", state.KindSummary) {
		t.Error("expected s2's queued-but-not-dequeued job to not read as busy")
	}
	st2 := mgr.Status("s2")
	if st2.SummaryBusy {
		t.Error("expected Status(s2).SummaryBusy false while job is still queued")
	}
	if !st2.SummaryStartedAt.IsZero() {
		t.Error("expected zero StartedAt for s2 while job is still queued")
	}

	close(block)
	waitFor(t, time.Second, func() bool { return mgr.SessionCount() == 0 })
}

func TestOnNewTranscript_DisabledModelSkipsSilently(t *testing.T) {
	st := memstore.New()
	st.AppendTranscript(context.Background(), store.Transcript{SessionID: "s1", Text: "hello"})

	s, _ := st.GetSettings(context.Background())
	s.SummaryModel = store.ModelNone
	s.MindMapModel = store.ModelNone
	st.PutSettings(context.Background(), s)

	b := bus.New()
	h := b.Subscribe("s1")
	defer h.Close()

	resolver := settings.NewResolver(st)
	mgr := state.NewManager()
	inv := &mock.Invoker{}

	o := orchestrator.New(st, inv, b, resolver, mgr)
	o.OnNewTranscript("s1", 1)

	select {
	case ev := <-h.Events():
		t.Fatalf("expected no event for disabled pipelines, got %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
	if inv.CallCount() != 0 {
		t.Errorf("expected no LLM invocation for disabled pipelines, got %d", inv.CallCount())
	}
}
