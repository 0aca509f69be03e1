package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/voicecore/assistant/pkg/store"
)

// CreateSession implements [store.Store].
func (s *Store) CreateSession(ctx context.Context, sess store.Session) error {
	const q = `
		INSERT INTO sessions (id, name, created_at, last_activity, active)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.pool.Exec(ctx, q, sess.ID, sess.Name, sess.CreatedAt, sess.LastActivity, sess.Active)
	if err != nil {
		return fmt.Errorf("postgres store: create session: %w", err)
	}
	return nil
}

// SessionOrCreate implements [store.Store].
func (s *Store) SessionOrCreate(ctx context.Context, id string) (store.Session, error) {
	const q = `
		INSERT INTO sessions (id, active)
		VALUES ($1, true)
		ON CONFLICT (id) DO UPDATE SET id = sessions.id
		RETURNING id, name, created_at, last_activity, active`

	row := s.pool.QueryRow(ctx, q, id)
	sess, err := scanSession(row)
	if err != nil {
		return store.Session{}, fmt.Errorf("postgres store: session or create: %w", err)
	}
	return sess, nil
}

// GetSession implements [store.Store].
func (s *Store) GetSession(ctx context.Context, id string) (store.Session, error) {
	const q = `
		SELECT id, name, created_at, last_activity, active
		FROM   sessions
		WHERE  id = $1`

	sess, err := scanSession(s.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Session{}, store.ErrNotFound
	}
	if err != nil {
		return store.Session{}, fmt.Errorf("postgres store: get session: %w", err)
	}
	return sess, nil
}

// RenameSession implements [store.Store].
func (s *Store) RenameSession(ctx context.Context, id, name string) error {
	return s.updateSession(ctx, "rename session", `UPDATE sessions SET name = $2 WHERE id = $1`, id, name)
}

// SetSessionActive implements [store.Store].
func (s *Store) SetSessionActive(ctx context.Context, id string, active bool) error {
	return s.updateSession(ctx, "set session active", `UPDATE sessions SET active = $2 WHERE id = $1`, id, active)
}

// BumpActivity implements [store.Store].
func (s *Store) BumpActivity(ctx context.Context, id string) error {
	return s.updateSession(ctx, "bump activity", `UPDATE sessions SET last_activity = now() WHERE id = $1`, id)
}

// DeleteSession implements [store.Store]. Child rows cascade via FK.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres store: delete session: %w", err)
	}
	return nil
}

func (s *Store) updateSession(ctx context.Context, op, q string, args ...any) error {
	tag, err := s.pool.Exec(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("postgres store: %s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func scanSession(row pgx.Row) (store.Session, error) {
	var sess store.Session
	err := row.Scan(&sess.ID, &sess.Name, &sess.CreatedAt, &sess.LastActivity, &sess.Active)
	return sess, err
}
