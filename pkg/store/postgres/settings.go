package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/voicecore/assistant/pkg/store"
)

// GetSettings implements [store.Store], seeding the singleton row with
// [store.DefaultSettings] on first access.
func (s *Store) GetSettings(ctx context.Context) (store.Settings, error) {
	cfg, err := scanSettings(s.pool.QueryRow(ctx, selectSettingsQ))
	if errors.Is(err, pgx.ErrNoRows) {
		return s.seedSettings(ctx)
	}
	if err != nil {
		return store.Settings{}, fmt.Errorf("postgres store: get settings: %w", err)
	}
	return cfg, nil
}

// PutSettings implements [store.Store].
func (s *Store) PutSettings(ctx context.Context, cfg store.Settings) error {
	const q = `
		INSERT INTO settings
		    (id, whisper_language, whisper_model, summary_model, mindmap_model,
		     summary_prompt, mindmap_prompt, frame_length_ms, frames_per_batch, active_session_id)
		VALUES (true, $1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
		    whisper_language  = EXCLUDED.whisper_language,
		    whisper_model     = EXCLUDED.whisper_model,
		    summary_model     = EXCLUDED.summary_model,
		    mindmap_model     = EXCLUDED.mindmap_model,
		    summary_prompt    = EXCLUDED.summary_prompt,
		    mindmap_prompt    = EXCLUDED.mindmap_prompt,
		    frame_length_ms   = EXCLUDED.frame_length_ms,
		    frames_per_batch  = EXCLUDED.frames_per_batch,
		    active_session_id = EXCLUDED.active_session_id`

	_, err := s.pool.Exec(ctx, q,
		cfg.WhisperLanguage, cfg.WhisperModel, cfg.SummaryModel, cfg.MindMapModel,
		cfg.SummaryPrompt, cfg.MindMapPrompt, cfg.FrameLengthMs, cfg.FramesPerBatch, cfg.ActiveSessionID,
	)
	if err != nil {
		return fmt.Errorf("postgres store: put settings: %w", err)
	}
	return nil
}

func (s *Store) seedSettings(ctx context.Context) (store.Settings, error) {
	defaults := store.DefaultSettings()
	if err := s.PutSettings(ctx, defaults); err != nil {
		return store.Settings{}, fmt.Errorf("postgres store: seed settings: %w", err)
	}
	return defaults, nil
}

const selectSettingsQ = `
	SELECT whisper_language, whisper_model, summary_model, mindmap_model,
	       summary_prompt, mindmap_prompt, frame_length_ms, frames_per_batch, active_session_id
	FROM   settings
	WHERE  id = true`

func scanSettings(row pgx.Row) (store.Settings, error) {
	var cfg store.Settings
	err := row.Scan(
		&cfg.WhisperLanguage, &cfg.WhisperModel, &cfg.SummaryModel, &cfg.MindMapModel,
		&cfg.SummaryPrompt, &cfg.MindMapPrompt, &cfg.FrameLengthMs, &cfg.FramesPerBatch, &cfg.ActiveSessionID,
	)
	return cfg, err
}
