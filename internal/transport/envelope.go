package transport

import "encoding/json"

// MessageType identifies the outer envelope's type field (§6). Inbound
// connections use audio_chunk/status; every other value is outbound-only.
type MessageType string

const (
	TypeAudioChunk          MessageType = "audio_chunk"
	TypeStatus              MessageType = "status"
	TypeTranscriptionResult MessageType = "transcription_result"
	TypeAudioLevel          MessageType = "audio_level"
	TypeSessionAnalysis     MessageType = "session_analysis"
	TypeMindMapResult       MessageType = "mind_map_result"
	TypeProcessingStatus    MessageType = "processing_status"
	TypeError               MessageType = "error"
)


// Envelope is the text-message wire frame (§6):
// { type, data, timestamp, sessionId? }.
type Envelope struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
	SessionID string          `json:"sessionId,omitempty"`
}

// StatusEnvelope is the decoded Data payload for a status message.
type StatusEnvelope struct {
	Action    string `json:"action"`
	SessionID string `json:"sessionId,omitempty"`
}

const (
	ActionStartStream = "start_stream"
	ActionStopStream  = "stop_stream"
)

// AudioChunkData is the decoded Data payload for an audio_chunk message
// (§6): a base64-encoded WAV file plus its own timestamp/sessionId.
type AudioChunkData struct {
	Data      string `json:"data"`
	Timestamp int64  `json:"timestamp"`
	SessionID string `json:"sessionId,omitempty"`
}
