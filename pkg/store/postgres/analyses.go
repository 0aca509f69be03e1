package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/voicecore/assistant/pkg/store"
)

// AppendAnalysis implements [store.Store].
func (s *Store) AppendAnalysis(ctx context.Context, a store.Analysis) (store.Analysis, error) {
	const q = `
		INSERT INTO analyses (session_id, prompt, response, model, processing_ns)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, session_id, prompt, response, model, processing_ns, created_at`

	row := s.pool.QueryRow(ctx, q, a.SessionID, a.Prompt, a.Response, a.Model, a.ProcessingTime.Nanoseconds())
	out, err := scanAnalysis(row)
	if err != nil {
		return store.Analysis{}, fmt.Errorf("postgres store: append analysis: %w", err)
	}
	return out, nil
}

// ListAnalyses implements [store.Store].
func (s *Store) ListAnalyses(ctx context.Context, sessionID string) ([]store.Analysis, error) {
	const q = `
		SELECT id, session_id, prompt, response, model, processing_ns, created_at
		FROM   analyses
		WHERE  session_id = $1
		ORDER  BY created_at`

	rows, err := s.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list analyses: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.Analysis, error) {
		return scanAnalysis(row)
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan analyses: %w", err)
	}
	if out == nil {
		out = []store.Analysis{}
	}
	return out, nil
}

func scanAnalysis(row pgx.Row) (store.Analysis, error) {
	var (
		a            store.Analysis
		processingNS int64
	)
	if err := row.Scan(&a.ID, &a.SessionID, &a.Prompt, &a.Response, &a.Model, &processingNS, &a.CreatedAt); err != nil {
		return store.Analysis{}, err
	}
	a.ProcessingTime = time.Duration(processingNS)
	return a, nil
}
