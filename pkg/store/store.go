package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by lookup methods when the referenced row does not
// exist. Callers map this to the SessionNotFound error kind at the API
// boundary (§7).
var ErrNotFound = errors.New("store: not found")

// Store is the persistence port. Every persisted row (§6 "Persisted
// layout") is owned exclusively by the Store; pipelines and workers never
// cache authoritative state beyond the lifetime of a single call.
//
// Implementations are expected to serialize writes internally; callers
// treat every method as concurrent-safe.
type Store interface {
	// CreateSession creates a new session row. Creating a session whose ID
	// already exists is an upsert-free error; callers should check
	// GetSession first when the ID may already be known (e.g., first audio
	// frame for a previously-unknown ID, which should create rather than
	// error — see SessionOrCreate).
	CreateSession(ctx context.Context, s Session) error

	// SessionOrCreate returns the session with id, creating it as active
	// if it does not yet exist. This backs "Created on
	// first inbound audio referencing a previously unknown id" (§3).
	SessionOrCreate(ctx context.Context, id string) (Session, error)

	// GetSession returns the session with id. Returns ErrNotFound if absent.
	GetSession(ctx context.Context, id string) (Session, error)

	// RenameSession sets the session's human-readable name.
	RenameSession(ctx context.Context, id, name string) error

	// SetSessionActive updates the active flag.
	SetSessionActive(ctx context.Context, id string, active bool) error

	// BumpActivity updates last-activity to now. Called on each received
	// frame (§3).
	BumpActivity(ctx context.Context, id string) error

	// DeleteSession destroys the session and cascades to all child
	// entities (transcripts, analyses, mind maps).
	DeleteSession(ctx context.Context, id string) error

	// AppendTranscript persists a new Transcript row and returns it with its
	// assigned monotonic ID.
	AppendTranscript(ctx context.Context, t Transcript) (Transcript, error)

	// ListTranscripts returns all transcripts for sessionID ordered by
	// creation time ascending.
	ListTranscripts(ctx context.Context, sessionID string) ([]Transcript, error)

	// MarkTranscriptsProcessed sets ProcessedAt = now for the given
	// transcript IDs, once both pipelines have considered them.
	MarkTranscriptsProcessed(ctx context.Context, ids []int64) error

	// AppendAnalysis persists a new Analysis row.
	AppendAnalysis(ctx context.Context, a Analysis) (Analysis, error)

	// ListAnalyses returns all analyses for sessionID ordered by creation
	// time ascending.
	ListAnalyses(ctx context.Context, sessionID string) ([]Analysis, error)

	// AppendMindMap persists a new MindMap row.
	AppendMindMap(ctx context.Context, m MindMap) (MindMap, error)

	// ListMindMaps returns all mind maps for sessionID ordered by creation
	// time ascending.
	ListMindMaps(ctx context.Context, sessionID string) ([]MindMap, error)

	// GetSettings returns the singleton settings row, seeding it with
	// DefaultSettings on first access.
	GetSettings(ctx context.Context) (Settings, error)

	// PutSettings overwrites the singleton settings row.
	PutSettings(ctx context.Context, s Settings) error

	// Ping verifies connectivity for health checks.
	Ping(ctx context.Context) error
}
