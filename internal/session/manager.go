// Package session implements Session entity lifecycle management: creation
// on first contact, rename, activity tracking, and deletion (§3 "Created on
// first inbound audio referencing a previously unknown id, or via explicit
// API. Mutated only by: rename, deactivate, activity bump on each received
// frame. Destroyed only by explicit delete, which cascades to all child
// entities").
//
// Manager is a thin service layer over store.Store: it owns no state of its
// own beyond what the Store already persists, mirroring internal/app's
// mutex-guarded-lifecycle shape without the Store-side bookkeeping that
// shape was built for.
package session

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/voicecore/assistant/internal/observe"
	"github.com/voicecore/assistant/pkg/store"
)

// Manager exposes the Session lifecycle operations over a Store.
type Manager struct {
	store store.Store
}

// NewManager creates a Manager backed by st.
func NewManager(st store.Store) *Manager {
	return &Manager{store: st}
}

// Create creates a new session with an explicitly generated id (§3 "or via
// explicit API"), returning the created Session.
func (m *Manager) Create(ctx context.Context, name string) (store.Session, error) {
	s := store.Session{ID: uuid.NewString(), Name: name}
	if err := m.store.CreateSession(ctx, s); err != nil {
		return store.Session{}, fmt.Errorf("session: create: %w", err)
	}
	return m.store.GetSession(ctx, s.ID)
}

// EnsureFromAudio implements "Created on first inbound audio referencing a
// previously unknown id": returns the existing session for id, creating it
// if absent. ClientTransport's start_stream handling marks the result
// active immediately afterward.
func (m *Manager) EnsureFromAudio(ctx context.Context, id string) (store.Session, error) {
	s, err := m.store.SessionOrCreate(ctx, id)
	if err != nil {
		return store.Session{}, fmt.Errorf("session: ensure from audio: %w", err)
	}
	return s, nil
}

// Get returns the session with id. Returns store.ErrNotFound if absent,
// which callers map to the SessionNotFound API error (§7).
func (m *Manager) Get(ctx context.Context, id string) (store.Session, error) {
	s, err := m.store.GetSession(ctx, id)
	if err != nil {
		return store.Session{}, fmt.Errorf("session: get: %w", err)
	}
	return s, nil
}

// Rename sets the session's human-readable name.
func (m *Manager) Rename(ctx context.Context, id, name string) error {
	if err := m.store.RenameSession(ctx, id, name); err != nil {
		return fmt.Errorf("session: rename: %w", err)
	}
	return nil
}

// SetActive updates the active flag, called on start_stream/stop_stream
// (§4.8).
func (m *Manager) SetActive(ctx context.Context, id string, active bool) error {
	if err := m.store.SetSessionActive(ctx, id, active); err != nil {
		return fmt.Errorf("session: set active: %w", err)
	}
	delta := int64(-1)
	if active {
		delta = 1
	}
	observe.DefaultMetrics().ActiveSessions.Add(ctx, delta)
	return nil
}

// BumpActivity updates last-activity to now. Called on each received frame
// (§3).
func (m *Manager) BumpActivity(ctx context.Context, id string) error {
	if err := m.store.BumpActivity(ctx, id); err != nil {
		return fmt.Errorf("session: bump activity: %w", err)
	}
	return nil
}

// Delete destroys the session, cascading to all child entities (§3).
func (m *Manager) Delete(ctx context.Context, id string) error {
	if err := m.store.DeleteSession(ctx, id); err != nil {
		return fmt.Errorf("session: delete: %w", err)
	}
	return nil
}
