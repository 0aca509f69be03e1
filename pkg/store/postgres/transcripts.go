package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/voicecore/assistant/pkg/store"
)

// AppendTranscript implements [store.Store].
func (s *Store) AppendTranscript(ctx context.Context, t store.Transcript) (store.Transcript, error) {
	const q = `
		INSERT INTO transcripts (session_id, text, language, model)
		VALUES ($1, $2, $3, $4)
		RETURNING id, session_id, text, language, model, created_at, processed_at`

	row := s.pool.QueryRow(ctx, q, t.SessionID, t.Text, t.Language, t.Model)
	out, err := scanTranscript(row)
	if err != nil {
		return store.Transcript{}, fmt.Errorf("postgres store: append transcript: %w", err)
	}
	return out, nil
}

// ListTranscripts implements [store.Store].
func (s *Store) ListTranscripts(ctx context.Context, sessionID string) ([]store.Transcript, error) {
	const q = `
		SELECT id, session_id, text, language, model, created_at, processed_at
		FROM   transcripts
		WHERE  session_id = $1
		ORDER  BY created_at`

	rows, err := s.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list transcripts: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.Transcript, error) {
		return scanTranscript(row)
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan transcripts: %w", err)
	}
	if out == nil {
		out = []store.Transcript{}
	}
	return out, nil
}

// MarkTranscriptsProcessed implements [store.Store].
func (s *Store) MarkTranscriptsProcessed(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	const q = `UPDATE transcripts SET processed_at = now() WHERE id = ANY($1)`
	if _, err := s.pool.Exec(ctx, q, ids); err != nil {
		return fmt.Errorf("postgres store: mark transcripts processed: %w", err)
	}
	return nil
}

func scanTranscript(row pgx.Row) (store.Transcript, error) {
	var t store.Transcript
	err := row.Scan(&t.ID, &t.SessionID, &t.Text, &t.Language, &t.Model, &t.CreatedAt, &t.ProcessedAt)
	return t, err
}
