package audiointake

import (
	"encoding/base64"
	"fmt"
)

// AudioChunkEnvelope is the text-envelope shape for audio_chunk messages
// (§6): `{ data: base64-string, timestamp, sessionId? }`.
type AudioChunkEnvelope struct {
	Data      string `json:"data"`
	Timestamp int64  `json:"timestamp"`
	SessionID string `json:"sessionId,omitempty"`
}

// DecodeBytes base64-decodes the envelope's Data field into the raw WAV
// bytes Push expects.
func (e AudioChunkEnvelope) DecodeBytes() ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(e.Data)
	if err != nil {
		return nil, fmt.Errorf("audiointake: decode base64 payload: %w", err)
	}
	return raw, nil
}
