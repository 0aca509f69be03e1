package bus

import "time"

// EventType identifies the kind of event carried on a SessionBus (§4.8).
type EventType string

const (
	EventTranscriptionResult EventType = "transcription_result"
	EventSessionAnalysis     EventType = "session_analysis"
	EventMindMapResult       EventType = "mind_map_result"
	EventProcessingStatus    EventType = "processing_status"
	EventError               EventType = "error"
)

// Event is the envelope published on a SessionBus. Exactly one of the
// payload fields is populated, matching Type.
type Event struct {
	Type      EventType
	SessionID string
	Timestamp time.Time

	Transcription *TranscriptionResult
	Analysis      *SessionAnalysis
	MindMap       *MindMapResult
	Status        *ProcessingStatus
	Error         *ErrorEvent
}

// TranscriptionResult is published by TranscriptionWorker after a batch is
// transcribed successfully (§4.2); an empty Text means no speech was
// recognised. Transcriber failures are published as an ErrorEvent instead.
type TranscriptionResult struct {
	Success      bool
	Text         string
	Language     string
	Model        string
	SessionID    string
	TranscriptID int64
}

// SessionAnalysis is published by SummaryPipeline on success (§4.5).
type SessionAnalysis struct {
	SessionID      string
	AnalysisID     int64
	ProcessingTime time.Duration
	Analysis       string
}

// MindMapResult is published by MindMapPipeline on success (§4.6).
type MindMapResult struct {
	SessionID string
	MindMapID int64
	NodeCount int
	EdgeCount int
}

// ProcessingStatus is published when a pipeline run is skipped because its
// slot is already busy (§4.4), or on request via the HTTP surface (§6).
type ProcessingStatus struct {
	SessionID         string
	SummaryProcessing bool
	MindMapProcessing bool
}

// ErrorEvent carries one of the §7 error kinds to the client.
type ErrorEvent struct {
	SessionID string
	Kind      string
	Message   string
	Raw       string // populated for InvalidMindMap (§4.6 step 5)
}
