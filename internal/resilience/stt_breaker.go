package resilience

import (
	"context"

	"github.com/voicecore/assistant/pkg/provider/stt"
)

// BreakerTranscriber wraps an stt.Transcriber with a CircuitBreaker so a
// faulting speech-to-text backend is not hammered by every worker flush once
// it starts failing.
type BreakerTranscriber struct {
	transcriber stt.Transcriber
	breaker     *CircuitBreaker
}

// Compile-time interface assertion.
var _ stt.Transcriber = (*BreakerTranscriber)(nil)

// NewBreakerTranscriber wraps transcriber with a CircuitBreaker configured
// per cfg.
func NewBreakerTranscriber(transcriber stt.Transcriber, cfg CircuitBreakerConfig) *BreakerTranscriber {
	return &BreakerTranscriber{transcriber: transcriber, breaker: NewCircuitBreaker(cfg)}
}

// Transcribe runs the wrapped Transcriber through the circuit breaker. When
// the breaker is open it returns ErrCircuitOpen without calling the backend.
func (b *BreakerTranscriber) Transcribe(ctx context.Context, wav []byte, language, model string) (stt.Result, error) {
	var res stt.Result
	err := b.breaker.Execute(func() error {
		var innerErr error
		res, innerErr = b.transcriber.Transcribe(ctx, wav, language, model)
		return innerErr
	})
	return res, err
}
