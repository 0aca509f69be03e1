// Package httpapi exposes the settings and processing-status HTTP surface
// (§6): temporary-override management for EffectiveSettings, and a
// per-session snapshot of the ProcessingStateManager. Styled after
// internal/health.Handler's JSON-helper/ServeMux approach.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/voicecore/assistant/internal/settings"
	"github.com/voicecore/assistant/internal/state"
)

// SettingsAPI serves the /settings/* endpoints over a shared
// settings.Resolver.
type SettingsAPI struct {
	resolver *settings.Resolver
}

// NewSettingsAPI creates a SettingsAPI backed by r.
func NewSettingsAPI(r *settings.Resolver) *SettingsAPI {
	return &SettingsAPI{resolver: r}
}

// applyTemporaryRequest mirrors settings_service.py's get_settings_dict
// camelCase field names (SPEC_FULL.md §12). ollamaModel is a legacy alias
// applied to both model fields when the specific ones are absent.
type applyTemporaryRequest struct {
	OllamaSummaryModel *string `json:"ollamaSummaryModel"`
	OllamaMindMapModel *string `json:"ollamaMindMapModel"`
	OllamaModel        *string `json:"ollamaModel"`
	OllamaTaskPrompt   *string `json:"ollamaTaskPrompt"`
	OllamaMindMapPrompt *string `json:"ollamaMindMapPrompt"`
}

// effectiveSettingsResponse is the wire shape for a resolved
// EffectiveSettings snapshot, using the same field names as
// applyTemporaryRequest plus the read-only whisper fields.
type effectiveSettingsResponse struct {
	WhisperLanguage    string `json:"whisperLanguage"`
	WhisperModel       string `json:"whisperModel"`
	OllamaSummaryModel string `json:"ollamaSummaryModel"`
	OllamaMindMapModel string `json:"ollamaMindMapModel"`
	OllamaTaskPrompt   string `json:"ollamaTaskPrompt"`
	OllamaMindMapPrompt string `json:"ollamaMindMapPrompt"`
	FrameLengthMs      int    `json:"frameLengthMs"`
	FramesPerBatch     int    `json:"framesPerBatch"`
}

func toResponse(eff settings.Effective) effectiveSettingsResponse {
	return effectiveSettingsResponse{
		WhisperLanguage:     eff.WhisperLanguage,
		WhisperModel:        eff.WhisperModel,
		OllamaSummaryModel:  eff.SummaryModel,
		OllamaMindMapModel:  eff.MindMapModel,
		OllamaTaskPrompt:    eff.SummaryPrompt,
		OllamaMindMapPrompt: eff.MindMapPrompt,
		FrameLengthMs:       eff.FrameLengthMs,
		FramesPerBatch:      eff.FramesPerBatch,
	}
}

// overrideResponse is the wire shape for the current temporary override;
// absent fields are omitted rather than reported as empty strings.
type overrideResponse struct {
	OllamaSummaryModel  *string `json:"ollamaSummaryModel,omitempty"`
	OllamaMindMapModel  *string `json:"ollamaMindMapModel,omitempty"`
	OllamaTaskPrompt    *string `json:"ollamaTaskPrompt,omitempty"`
	OllamaMindMapPrompt *string `json:"ollamaMindMapPrompt,omitempty"`
}

// ApplyTemporary handles POST /settings/apply-temporary: decodes the patch,
// applies ollamaModel as a fallback for both model fields per §12, sets it
// as the resolver's override, and returns the newly resolved effective
// settings.
func (a *SettingsAPI) ApplyTemporary(w http.ResponseWriter, r *http.Request) {
	var req applyTemporaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}

	patch := settings.Override{
		SummaryPrompt: req.OllamaTaskPrompt,
		MindMapPrompt: req.OllamaMindMapPrompt,
	}
	if req.OllamaModel != nil {
		patch.SummaryModel = req.OllamaModel
		patch.MindMapModel = req.OllamaModel
	}
	if req.OllamaSummaryModel != nil {
		patch.SummaryModel = req.OllamaSummaryModel
	}
	if req.OllamaMindMapModel != nil {
		patch.MindMapModel = req.OllamaMindMapModel
	}
	a.resolver.Set(patch)

	eff, err := a.resolver.Resolve(r.Context())
	if err != nil {
		slog.Error("httpapi: resolve settings", "error", err)
		writeError(w, http.StatusInternalServerError, "StoreError", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toResponse(eff))
}

// GetTemporary handles GET /settings/temporary-settings: returns the
// current override, which may be empty.
func (a *SettingsAPI) GetTemporary(w http.ResponseWriter, _ *http.Request) {
	ov := a.resolver.Get()
	writeJSON(w, http.StatusOK, overrideResponse{
		OllamaSummaryModel:  ov.SummaryModel,
		OllamaMindMapModel:  ov.MindMapModel,
		OllamaTaskPrompt:    ov.SummaryPrompt,
		OllamaMindMapPrompt: ov.MindMapPrompt,
	})
}

// ClearTemporary handles DELETE /settings/temporary-settings: clears the
// override, reverting all resolution sites to persisted settings.
func (a *SettingsAPI) ClearTemporary(w http.ResponseWriter, _ *http.Request) {
	a.resolver.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// Register adds the /settings/* routes to mux.
func (a *SettingsAPI) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /settings/apply-temporary", a.ApplyTemporary)
	mux.HandleFunc("GET /settings/temporary-settings", a.GetTemporary)
	mux.HandleFunc("DELETE /settings/temporary-settings", a.ClearTemporary)
}

// StatusAPI serves GET /processing-status/{session_id} over a shared
// state.Manager.
type StatusAPI struct {
	state *state.Manager
}

// NewStatusAPI creates a StatusAPI backed by m.
func NewStatusAPI(m *state.Manager) *StatusAPI {
	return &StatusAPI{state: m}
}

type processingStatusResponse struct {
	SummaryProcessing bool   `json:"summary_processing"`
	MindMapProcessing bool   `json:"mind_map_processing"`
	AnyProcessing     bool   `json:"any_processing"`
	SummaryStartTime  *int64 `json:"summary_start_time,omitempty"`
	MindMapStartTime  *int64 `json:"mind_map_start_time,omitempty"`
}

// Status handles GET /processing-status/{session_id}.
func (a *StatusAPI) Status(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "session_id is required")
		return
	}

	st := a.state.Status(sessionID)
	resp := processingStatusResponse{
		SummaryProcessing: st.SummaryBusy,
		MindMapProcessing: st.MindMapBusy,
		AnyProcessing:     st.SummaryBusy || st.MindMapBusy,
	}
	if st.SummaryBusy {
		ms := st.SummaryStartedAt.UnixMilli()
		resp.SummaryStartTime = &ms
	}
	if st.MindMapBusy {
		ms := st.MindMapStartedAt.UnixMilli()
		resp.MindMapStartTime = &ms
	}
	writeJSON(w, http.StatusOK, resp)
}

// Register adds the /processing-status/{session_id} route to mux.
func (a *StatusAPI) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /processing-status/{session_id}", a.Status)
}

type errorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorResponse{Kind: kind, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"kind":"EncodeError"}`, http.StatusInternalServerError)
	}
}
