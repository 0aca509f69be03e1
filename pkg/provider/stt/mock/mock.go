// Package mock provides a configurable in-memory test double for
// [stt.Transcriber], following the call-recording mock idiom used
// throughout this codebase's test doubles.
//
// Example:
//
//	m := &mock.Transcriber{Result: stt.Result{Text: "hello"}}
//	res, _ := m.Transcribe(ctx, wavBytes, "en", "base")
package mock

import (
	"context"
	"sync"

	"github.com/voicecore/assistant/pkg/provider/stt"
)

// Call records the arguments of a single Transcribe invocation.
type Call struct {
	WAV      []byte
	Language string
	Model    string
}

// Transcriber is a configurable test double for [stt.Transcriber].
type Transcriber struct {
	mu sync.Mutex

	calls []Call

	// Result is returned by Transcribe when Err is nil.
	Result stt.Result

	// Err is returned by Transcribe when non-nil.
	Err error
}

var _ stt.Transcriber = (*Transcriber)(nil)

// Transcribe implements [stt.Transcriber].
func (m *Transcriber) Transcribe(_ context.Context, wav []byte, language, model string) (stt.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{WAV: wav, Language: language, Model: model})
	if m.Err != nil {
		return stt.Result{}, m.Err
	}
	return m.Result, nil
}

// Calls returns a copy of all recorded invocations.
func (m *Transcriber) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of Transcribe invocations so far.
func (m *Transcriber) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
