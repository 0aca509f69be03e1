package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlSessions = `
CREATE TABLE IF NOT EXISTS sessions (
    id            TEXT         PRIMARY KEY,
    name          TEXT         NOT NULL DEFAULT '',
    created_at    TIMESTAMPTZ  NOT NULL DEFAULT now(),
    last_activity TIMESTAMPTZ  NOT NULL DEFAULT now(),
    active        BOOLEAN      NOT NULL DEFAULT true
);
`

const ddlTranscripts = `
CREATE TABLE IF NOT EXISTS transcripts (
    id           BIGSERIAL    PRIMARY KEY,
    session_id   TEXT         NOT NULL REFERENCES sessions (id) ON DELETE CASCADE,
    text         TEXT         NOT NULL,
    language     TEXT         NOT NULL DEFAULT '',
    model        TEXT         NOT NULL DEFAULT '',
    created_at   TIMESTAMPTZ  NOT NULL DEFAULT now(),
    processed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_transcripts_session_id ON transcripts (session_id);
CREATE INDEX IF NOT EXISTS idx_transcripts_session_created ON transcripts (session_id, created_at);
CREATE INDEX IF NOT EXISTS idx_transcripts_unprocessed ON transcripts (session_id) WHERE processed_at IS NULL;
`

const ddlAnalyses = `
CREATE TABLE IF NOT EXISTS analyses (
    id              BIGSERIAL    PRIMARY KEY,
    session_id      TEXT         NOT NULL REFERENCES sessions (id) ON DELETE CASCADE,
    prompt          TEXT         NOT NULL,
    response        TEXT         NOT NULL,
    model           TEXT         NOT NULL DEFAULT '',
    processing_ns   BIGINT       NOT NULL DEFAULT 0,
    created_at      TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_analyses_session_created ON analyses (session_id, created_at);
`

const ddlMindMaps = `
CREATE TABLE IF NOT EXISTS mind_maps (
    id          BIGSERIAL    PRIMARY KEY,
    session_id  TEXT         NOT NULL REFERENCES sessions (id) ON DELETE CASCADE,
    nodes       JSONB        NOT NULL DEFAULT '[]',
    edges       JSONB        NOT NULL DEFAULT '[]',
    model       TEXT         NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_mind_maps_session_created ON mind_maps (session_id, created_at);
`

const ddlSettings = `
CREATE TABLE IF NOT EXISTS settings (
    id                 BOOLEAN      PRIMARY KEY DEFAULT true CHECK (id),
    whisper_language   TEXT         NOT NULL DEFAULT 'auto',
    whisper_model      TEXT         NOT NULL DEFAULT 'base',
    summary_model      TEXT         NOT NULL DEFAULT '',
    mindmap_model      TEXT         NOT NULL DEFAULT '',
    summary_prompt     TEXT         NOT NULL DEFAULT '',
    mindmap_prompt     TEXT         NOT NULL DEFAULT '',
    frame_length_ms    INT          NOT NULL DEFAULT 500,
    frames_per_batch   INT          NOT NULL DEFAULT 10,
    active_session_id  TEXT         NOT NULL DEFAULT ''
);
`

// Migrate creates or ensures all required tables and indexes exist. It is
// idempotent and safe to call on every application start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{ddlSessions, ddlTranscripts, ddlAnalyses, ddlMindMaps, ddlSettings}
	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres store: migrate: %w", err)
		}
	}
	return nil
}
