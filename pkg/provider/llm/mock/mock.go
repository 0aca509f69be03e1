// Package mock provides a configurable in-memory test double for
// [llm.Invoker].
//
// Example:
//
//	p := &mock.Invoker{Response: llm.Response{Text: "a summary"}}
//	resp, err := p.Invoke(ctx, req)
package mock

import (
	"context"
	"sync"

	"github.com/voicecore/assistant/pkg/provider/llm"
)

// Call records a single invocation of Invoke.
type Call struct {
	Req llm.Request
}

// Invoker is a mock implementation of [llm.Invoker]. Zero value returns a
// zero Response and nil error; set Err to inject a failure.
type Invoker struct {
	mu sync.Mutex

	// Response is returned by Invoke when Err is nil.
	Response llm.Response

	// Err, if non-nil, is returned as the error from Invoke.
	Err error

	// Block, if non-nil, makes Invoke wait until it is closed (or ctx is
	// done) before returning. Used by tests that need to hold a worker pool
	// slot occupied for a controlled window.
	Block <-chan struct{}

	// Calls records every invocation of Invoke in order.
	Calls []Call
}

var _ llm.Invoker = (*Invoker)(nil)

// Invoke records the call, optionally waits on Block, then returns
// Response, Err.
func (p *Invoker) Invoke(ctx context.Context, req llm.Request) (llm.Response, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, Call{Req: req})
	block := p.Block
	p.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return llm.Response{}, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return llm.Response{}, p.Err
	}
	return p.Response, nil
}

// CallCount returns the number of Invoke invocations so far.
func (p *Invoker) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// Reset clears all recorded calls.
func (p *Invoker) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = nil
}
