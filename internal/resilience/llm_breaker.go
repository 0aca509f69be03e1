package resilience

import (
	"context"

	"github.com/voicecore/assistant/pkg/provider/llm"
)

// BreakerInvoker wraps an llm.Invoker with a CircuitBreaker so a faulting LLM
// backend is not hammered by every summary/mind-map run once it starts
// failing.
type BreakerInvoker struct {
	invoker llm.Invoker
	breaker *CircuitBreaker
}

// Compile-time interface assertion.
var _ llm.Invoker = (*BreakerInvoker)(nil)

// NewBreakerInvoker wraps invoker with a CircuitBreaker configured per cfg.
func NewBreakerInvoker(invoker llm.Invoker, cfg CircuitBreakerConfig) *BreakerInvoker {
	return &BreakerInvoker{invoker: invoker, breaker: NewCircuitBreaker(cfg)}
}

// Invoke runs the wrapped Invoker through the circuit breaker. When the
// breaker is open it returns ErrCircuitOpen without calling the backend.
func (b *BreakerInvoker) Invoke(ctx context.Context, req llm.Request) (llm.Response, error) {
	var resp llm.Response
	err := b.breaker.Execute(func() error {
		var innerErr error
		resp, innerErr = b.invoker.Invoke(ctx, req)
		return innerErr
	})
	return resp, err
}
