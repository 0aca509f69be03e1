package resilience_test

import (
	"context"
	"errors"
	"testing"

	"github.com/voicecore/assistant/internal/resilience"
	"github.com/voicecore/assistant/pkg/provider/llm"
)

type stubInvoker struct {
	resp llm.Response
	err  error
	n    int
}

func (s *stubInvoker) Invoke(ctx context.Context, req llm.Request) (llm.Response, error) {
	s.n++
	return s.resp, s.err
}

func TestBreakerInvoker_PassesThroughOnSuccess(t *testing.T) {
	stub := &stubInvoker{resp: llm.Response{Text: "ok"}}
	inv := resilience.NewBreakerInvoker(stub, resilience.CircuitBreakerConfig{Name: "llm"})

	resp, err := inv.Invoke(context.Background(), llm.Request{Model: "m", Prompt: "p"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != "ok" {
		t.Errorf("resp.Text = %q, want %q", resp.Text, "ok")
	}
	if stub.n != 1 {
		t.Errorf("backend called %d times, want 1", stub.n)
	}
}

func TestBreakerInvoker_OpensAfterConsecutiveFailures(t *testing.T) {
	stub := &stubInvoker{err: errors.New("boom")}
	inv := resilience.NewBreakerInvoker(stub, resilience.CircuitBreakerConfig{Name: "llm", MaxFailures: 2})

	for i := 0; i < 2; i++ {
		if _, err := inv.Invoke(context.Background(), llm.Request{}); err == nil {
			t.Fatal("expected an error from the failing backend")
		}
	}

	// Third call should be rejected by the open breaker without reaching the
	// backend.
	calledBefore := stub.n
	_, err := inv.Invoke(context.Background(), llm.Request{})
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if stub.n != calledBefore {
		t.Errorf("backend was called while breaker open")
	}
}
