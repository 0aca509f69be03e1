// Package settings implements the SettingsResolver: effective-settings
// lookup combining the persisted settings row with a process-wide
// temporary override (§4.7).
package settings

import (
	"context"
	"fmt"
	"sync"

	"github.com/voicecore/assistant/pkg/store"
)

// Effective is the derived, never-persisted settings snapshot a pipeline
// resolves once at job start (§3 EffectiveSettings).
type Effective struct {
	WhisperLanguage string
	WhisperModel    string
	SummaryModel    string
	MindMapModel    string
	SummaryPrompt   string
	MindMapPrompt   string
	FrameLengthMs   int
	FramesPerBatch  int
}

// Disabled reports whether the model assigned to kind is the reserved
// sentinel "none".
func (e Effective) Disabled(kind string) bool {
	switch kind {
	case "summary":
		return e.SummaryModel == store.ModelNone
	case "mind_map":
		return e.MindMapModel == store.ModelNone
	default:
		return false
	}
}

// Override is a shallow patch over persisted settings (§3
// TemporaryOverride). Present fields overwrite their counterparts; absent
// (nil) fields fall through to the persisted row.
type Override struct {
	SummaryModel  *string
	MindMapModel  *string
	SummaryPrompt *string
	MindMapPrompt *string
}

// apply returns eff with every non-nil field in o substituted in.
func (o Override) apply(eff Effective) Effective {
	if o.SummaryModel != nil {
		eff.SummaryModel = *o.SummaryModel
	}
	if o.MindMapModel != nil {
		eff.MindMapModel = *o.MindMapModel
	}
	if o.SummaryPrompt != nil {
		eff.SummaryPrompt = *o.SummaryPrompt
	}
	if o.MindMapPrompt != nil {
		eff.MindMapPrompt = *o.MindMapPrompt
	}
	return eff
}

// Resolver resolves EffectiveSettings by combining the persisted Store row
// with a single shared, process-wide Override. Writes serialize under mu and
// install a fresh *Override instead of mutating the current one in place;
// reads hold mu only long enough to copy that pointer, then apply the
// snapshot outside the lock. Reads are not lock-free: they wait for any
// Set or Clear in progress.
type Resolver struct {
	store store.Store

	mu       sync.Mutex
	override *Override
}

// NewResolver creates a Resolver backed by s, with no override applied.
func NewResolver(s store.Store) *Resolver {
	return &Resolver{store: s, override: &Override{}}
}

// Resolve implements §4.7: load persisted settings, apply the current
// override by field-wise replacement, and return an immutable snapshot.
func (r *Resolver) Resolve(ctx context.Context) (Effective, error) {
	s, err := r.store.GetSettings(ctx)
	if err != nil {
		return Effective{}, fmt.Errorf("settings: resolve: load persisted settings: %w", err)
	}

	eff := Effective{
		WhisperLanguage: s.WhisperLanguage,
		WhisperModel:    s.WhisperModel,
		SummaryModel:    s.SummaryModel,
		MindMapModel:    s.MindMapModel,
		SummaryPrompt:   s.SummaryPrompt,
		MindMapPrompt:   s.MindMapPrompt,
		FrameLengthMs:   s.FrameLengthMs,
		FramesPerBatch:  s.FramesPerBatch,
	}

	r.mu.Lock()
	ov := r.override
	r.mu.Unlock()

	return ov.apply(eff), nil
}

// Set replaces the current override with patch, field-wise: callers build
// patch from only the fields present in an apply-temporary request.
func (r *Resolver) Set(patch Override) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.override = &patch
}

// Clear removes the current override.
func (r *Resolver) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.override = &Override{}
}

// Get returns a copy of the current override.
func (r *Resolver) Get() Override {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.override
}
