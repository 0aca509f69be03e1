package settings

// ApplyRequest is the wire shape of POST /settings/apply-temporary (§6),
// using the exact camelCase field names from settings_service.py's
// get_settings_dict (§12).
type ApplyRequest struct {
	OllamaSummaryModel  *string `json:"ollamaSummaryModel,omitempty"`
	OllamaMindMapModel  *string `json:"ollamaMindMapModel,omitempty"`
	OllamaModel         *string `json:"ollamaModel,omitempty"`
	OllamaTaskPrompt    *string `json:"ollamaTaskPrompt,omitempty"`
	OllamaMindMapPrompt *string `json:"ollamaMindMapPrompt,omitempty"`
}

// ToOverride converts the wire request into an Override, applying the
// legacy-alias fallback from §12: when ollamaModel is present without the
// more specific ollamaSummaryModel/ollamaMindMapModel, it seeds both; the
// specific fields, when also present, take precedence.
func (r ApplyRequest) ToOverride() Override {
	var o Override
	if r.OllamaModel != nil {
		o.SummaryModel = r.OllamaModel
		o.MindMapModel = r.OllamaModel
	}
	if r.OllamaSummaryModel != nil {
		o.SummaryModel = r.OllamaSummaryModel
	}
	if r.OllamaMindMapModel != nil {
		o.MindMapModel = r.OllamaMindMapModel
	}
	if r.OllamaTaskPrompt != nil {
		o.SummaryPrompt = r.OllamaTaskPrompt
	}
	if r.OllamaMindMapPrompt != nil {
		o.MindMapPrompt = r.OllamaMindMapPrompt
	}
	return o
}
