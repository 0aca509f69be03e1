package state_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/voicecore/assistant/internal/state"
)

func TestTryStart_MutualExclusion(t *testing.T) {
	m := state.NewManager()
	if !m.TryStart("s1", state.KindSummary) {
		t.Fatal("expected first TryStart to succeed")
	}
	if m.TryStart("s1", state.KindSummary) {
		t.Fatal("expected second TryStart on busy slot to fail")
	}
	m.Stop("s1", state.KindSummary)
	if !m.TryStart("s1", state.KindSummary) {
		t.Fatal("expected TryStart to succeed after Stop")
	}
}

func TestTryStart_IndependentKinds(t *testing.T) {
	m := state.NewManager()
	if !m.TryStart("s1", state.KindSummary) {
		t.Fatal("expected summary TryStart to succeed")
	}
	if !m.TryStart("s1", state.KindMindMap) {
		t.Fatal("expected mind_map TryStart to succeed while summary busy")
	}
}

func TestStop_RemovesSessionWhenAllSlotsIdle(t *testing.T) {
	m := state.NewManager()
	m.TryStart("s1", state.KindSummary)
	m.TryStart("s1", state.KindMindMap)
	m.Stop("s1", state.KindSummary)
	if m.SessionCount() != 1 {
		t.Fatalf("expected session still tracked (mind_map busy), got count %d", m.SessionCount())
	}
	m.Stop("s1", state.KindMindMap)
	if m.SessionCount() != 0 {
		t.Fatalf("expected no sessions tracked after all slots idle, got count %d", m.SessionCount())
	}
}

func TestStop_Idempotent(t *testing.T) {
	m := state.NewManager()
	m.Stop("s1", state.KindSummary)
	m.TryStart("s1", state.KindSummary)
	m.Stop("s1", state.KindSummary)
	m.Stop("s1", state.KindSummary)
	if m.IsBusy("s1", state.KindSummary) {
		t.Fatal("expected slot to be free after Stop")
	}
}

func TestStatus_ReflectsBusySlots(t *testing.T) {
	m := state.NewManager()
	m.TryStart("s1", state.KindSummary)
	m.MarkRunning("s1", state.KindSummary)
	st := m.Status("s1")
	if !st.SummaryBusy {
		t.Error("expected SummaryBusy true")
	}
	if st.MindMapBusy {
		t.Error("expected MindMapBusy false")
	}
	if st.SummaryStartedAt.IsZero() {
		t.Error("expected non-zero SummaryStartedAt")
	}
}

func TestStatus_ReservedButNotRunningIsNotBusy(t *testing.T) {
	m := state.NewManager()
	if !m.TryStart("s1", state.KindSummary) {
		t.Fatal("expected TryStart to succeed")
	}
	if m.IsBusy("s1", state.KindSummary) {
		t.Error("a reserved slot that has not been MarkRunning'd must not read as busy")
	}
	st := m.Status("s1")
	if st.SummaryBusy {
		t.Error("Status must not report a queued-but-not-dequeued job as busy")
	}
	if !st.SummaryStartedAt.IsZero() {
		t.Error("expected zero SummaryStartedAt before MarkRunning")
	}

	m.MarkRunning("s1", state.KindSummary)
	if !m.IsBusy("s1", state.KindSummary) {
		t.Error("expected slot to read busy once MarkRunning has been called")
	}
}

// TestTryStart_Adversarial is the property-1 test from §8: thousands of
// concurrent TryStart calls for the same (session, kind) must yield exactly
// one winner per round.
func TestTryStart_Adversarial(t *testing.T) {
	m := state.NewManager()
	const rounds = 50
	const goroutines = 200

	for round := 0; round < rounds; round++ {
		var wins int32
		var wg sync.WaitGroup
		wg.Add(goroutines)
		for i := 0; i < goroutines; i++ {
			go func() {
				defer wg.Done()
				if m.TryStart("adversarial", state.KindSummary) {
					atomic.AddInt32(&wins, 1)
				}
			}()
		}
		wg.Wait()
		if wins != 1 {
			t.Fatalf("round %d: expected exactly 1 winner, got %d", round, wins)
		}
		m.Stop("adversarial", state.KindSummary)
	}
	if m.SessionCount() != 0 {
		t.Fatalf("expected no sessions tracked after all rounds, got count %d", m.SessionCount())
	}
}
