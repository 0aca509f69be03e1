// Package llm defines the Invoker port: a single blocking prompt-to-text
// call used by the summary and mind-map pipelines (§4.6, §4.7).
//
// Invoker is a pure prompt→completion black box: no tool-calling loop, no
// token budget tracking, no streaming. Model selection happens per-call so
// a single Invoker instance can serve both the summary and mind-map
// pipelines, each configured with its own model string.
package llm

import "context"

// Usage holds token accounting information returned by the LLM backend, for
// observability only — no budget enforcement is performed on it.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Request carries a single prompt to completion.
type Request struct {
	// Model selects which backend model to run (provider-specific name).
	Model string

	// Prompt is the full text sent to the model. Callers are responsible
	// for composing it (see internal/pipeline's prompt templates).
	Prompt string

	// Temperature controls output randomness in [0.0, 2.0]. Zero uses the
	// provider default.
	Temperature float64
}

// Response is the outcome of one Invoke call.
type Response struct {
	Text  string
	Usage Usage
}

// Invoker is the abstraction over any LLM backend.
//
// Implementations must be safe for concurrent use: the orchestrator may
// invoke Invoke from multiple pipeline goroutines at once, potentially
// across different sessions.
type Invoker interface {
	// Invoke sends req to the model and waits for the full response.
	// Returns an error if the request fails or ctx is cancelled first.
	Invoke(ctx context.Context, req Request) (Response, error)
}
