// Package store defines the persistence port for sessions, transcripts,
// analyses, and mind-maps, and the concrete types that flow through it.
//
// Store is the single owner of all persisted rows (§3 of the design spec).
// Implementations must be safe for concurrent use; callers treat every
// method as safe to invoke from multiple pipeline goroutines at once.
package store

import "time"

// Session is a logical conversation with its own transcript history and
// derived artifacts. Mutated only by rename, deactivate, and activity bump;
// destroyed only by explicit delete, which cascades to all child entities.
type Session struct {
	ID           string
	Name         string
	CreatedAt    time.Time
	LastActivity time.Time
	Active       bool
}

// Transcript belongs to exactly one Session. Once created, Text and
// Language are immutable. ProcessedAt is set once both the summary and
// mind-map pipelines have considered this transcript (nil until then).
type Transcript struct {
	ID          int64
	SessionID   string
	Text        string
	Language    string
	Model       string
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// Analysis is an LLM summary result. Append-only: a session may accumulate
// many analyses, one per SummaryPipeline run.
type Analysis struct {
	ID             int64
	SessionID      string
	Prompt         string
	Response       string
	Model          string
	ProcessingTime time.Duration
	CreatedAt      time.Time
}

// MindMapNode is a single labeled concept in a MindMap. ID is unique within
// the map it belongs to.
type MindMapNode struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Type  string `json:"type,omitempty"`
}

// MindMapEdge connects two nodes of the same MindMap. Source and Target must
// reference node IDs present in the same map.
type MindMapEdge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label,omitempty"`
	Type   string `json:"type,omitempty"`
}

// MindMap is a small labeled graph of concepts derived from a session's
// transcripts. Append-only. Invariant: every edge endpoint resolves to a
// node in the same map, and node IDs are unique within the map.
type MindMap struct {
	ID        int64
	SessionID string
	Nodes     []MindMapNode
	Edges     []MindMapEdge
	Model     string
	CreatedAt time.Time
}

// Settings is the persisted singleton settings row (§6 "Persisted layout").
// EffectiveSettings is derived from Settings plus any TemporaryOverride; see
// the internal/settings package.
type Settings struct {
	WhisperLanguage    string
	WhisperModel       string
	SummaryModel       string
	MindMapModel       string
	SummaryPrompt      string
	MindMapPrompt      string
	FrameLengthMs      int
	FramesPerBatch     int
	ActiveSessionID    string
}

// DefaultSettings mirrors the original service's seed values (see
// SPEC_FULL.md §12, grounded on settings_service.py's defaults), used the
// first time a Store reports no existing settings row.
func DefaultSettings() Settings {
	return Settings{
		WhisperLanguage: "auto",
		WhisperModel:    "base",
		SummaryModel:    "artifish/llama3.2-uncensored:latest",
		MindMapModel:    "artifish/llama3.2-uncensored:latest",
		SummaryPrompt:   "Summarize the following session transcript:\n\n{transcript}",
		MindMapPrompt:   "Extract a mind map (nodes and edges, JSON only) from the following session transcript:\n\n{transcript}",
		FrameLengthMs:   500,
		FramesPerBatch:  10,
	}
}

// ModelNone is the reserved sentinel meaning "this pipeline is disabled"
// when assigned to a model-selection field.
const ModelNone = "none"
