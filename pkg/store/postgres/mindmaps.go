package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/voicecore/assistant/pkg/store"
)

// AppendMindMap implements [store.Store]. Nodes and edges are stored as
// JSONB columns.
func (s *Store) AppendMindMap(ctx context.Context, m store.MindMap) (store.MindMap, error) {
	nodes, err := json.Marshal(m.Nodes)
	if err != nil {
		return store.MindMap{}, fmt.Errorf("postgres store: marshal mind map nodes: %w", err)
	}
	edges, err := json.Marshal(m.Edges)
	if err != nil {
		return store.MindMap{}, fmt.Errorf("postgres store: marshal mind map edges: %w", err)
	}

	const q = `
		INSERT INTO mind_maps (session_id, nodes, edges, model)
		VALUES ($1, $2, $3, $4)
		RETURNING id, session_id, nodes, edges, model, created_at`

	row := s.pool.QueryRow(ctx, q, m.SessionID, json.RawMessage(nodes), json.RawMessage(edges), m.Model)
	out, err := scanMindMap(row)
	if err != nil {
		return store.MindMap{}, fmt.Errorf("postgres store: append mind map: %w", err)
	}
	return out, nil
}

// ListMindMaps implements [store.Store].
func (s *Store) ListMindMaps(ctx context.Context, sessionID string) ([]store.MindMap, error) {
	const q = `
		SELECT id, session_id, nodes, edges, model, created_at
		FROM   mind_maps
		WHERE  session_id = $1
		ORDER  BY created_at`

	rows, err := s.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list mind maps: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.MindMap, error) {
		return scanMindMap(row)
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan mind maps: %w", err)
	}
	if out == nil {
		out = []store.MindMap{}
	}
	return out, nil
}

func scanMindMap(row pgx.Row) (store.MindMap, error) {
	var (
		m        store.MindMap
		nodesRaw json.RawMessage
		edgesRaw json.RawMessage
	)
	if err := row.Scan(&m.ID, &m.SessionID, &nodesRaw, &edgesRaw, &m.Model, &m.CreatedAt); err != nil {
		return store.MindMap{}, err
	}
	if err := json.Unmarshal(nodesRaw, &m.Nodes); err != nil {
		return store.MindMap{}, fmt.Errorf("unmarshal mind map nodes: %w", err)
	}
	if err := json.Unmarshal(edgesRaw, &m.Edges); err != nil {
		return store.MindMap{}, fmt.Errorf("unmarshal mind map edges: %w", err)
	}
	return m, nil
}
