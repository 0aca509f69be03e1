// Package memstore is an in-memory [store.Store] implementation used by
// tests and local development. It is a real, ordering-correct store (not a
// call-recording mock) guarded by a single mutex, in the same
// mutex-over-map style as internal/resilience's circuit breaker.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/voicecore/assistant/pkg/store"
)

// Store is an in-memory implementation of [store.Store]. Safe for
// concurrent use.
type Store struct {
	mu sync.Mutex

	sessions    map[string]store.Session
	transcripts map[string][]store.Transcript
	analyses    map[string][]store.Analysis
	mindMaps    map[string][]store.MindMap
	settings    *store.Settings

	nextTranscriptID int64
	nextAnalysisID   int64
	nextMindMapID    int64
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		sessions:    make(map[string]store.Session),
		transcripts: make(map[string][]store.Transcript),
		analyses:    make(map[string][]store.Analysis),
		mindMaps:    make(map[string][]store.MindMap),
	}
}

var _ store.Store = (*Store)(nil)

func (s *Store) CreateSession(_ context.Context, sess store.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; ok {
		return fmt.Errorf("memstore: session %q already exists", sess.ID)
	}
	s.sessions[sess.ID] = sess
	return nil
}

func (s *Store) SessionOrCreate(_ context.Context, id string) (store.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		return sess, nil
	}
	now := time.Now()
	sess := store.Session{ID: id, CreatedAt: now, LastActivity: now, Active: true}
	s.sessions[id] = sess
	return sess, nil
}

func (s *Store) GetSession(_ context.Context, id string) (store.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return store.Session{}, store.ErrNotFound
	}
	return sess, nil
}

func (s *Store) RenameSession(_ context.Context, id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return store.ErrNotFound
	}
	sess.Name = name
	s.sessions[id] = sess
	return nil
}

func (s *Store) SetSessionActive(_ context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return store.ErrNotFound
	}
	sess.Active = active
	s.sessions[id] = sess
	return nil
}

func (s *Store) BumpActivity(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return store.ErrNotFound
	}
	sess.LastActivity = time.Now()
	s.sessions[id] = sess
	return nil
}

func (s *Store) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	delete(s.transcripts, id)
	delete(s.analyses, id)
	delete(s.mindMaps, id)
	return nil
}

func (s *Store) AppendTranscript(_ context.Context, t store.Transcript) (store.Transcript, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTranscriptID++
	t.ID = s.nextTranscriptID
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	s.transcripts[t.SessionID] = append(s.transcripts[t.SessionID], t)
	return t, nil
}

func (s *Store) ListTranscripts(_ context.Context, sessionID string) ([]store.Transcript, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.Transcript, len(s.transcripts[sessionID]))
	copy(out, s.transcripts[sessionID])
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) MarkTranscriptsProcessed(_ context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idSet := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		idSet[id] = struct{}{}
	}
	now := time.Now()
	for sessionID, list := range s.transcripts {
		for i := range list {
			if _, ok := idSet[list[i].ID]; ok {
				t := now
				list[i].ProcessedAt = &t
			}
		}
		s.transcripts[sessionID] = list
	}
	return nil
}

func (s *Store) AppendAnalysis(_ context.Context, a store.Analysis) (store.Analysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextAnalysisID++
	a.ID = s.nextAnalysisID
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	s.analyses[a.SessionID] = append(s.analyses[a.SessionID], a)
	return a, nil
}

func (s *Store) ListAnalyses(_ context.Context, sessionID string) ([]store.Analysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.Analysis, len(s.analyses[sessionID]))
	copy(out, s.analyses[sessionID])
	return out, nil
}

func (s *Store) AppendMindMap(_ context.Context, m store.MindMap) (store.MindMap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextMindMapID++
	m.ID = s.nextMindMapID
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	s.mindMaps[m.SessionID] = append(s.mindMaps[m.SessionID], m)
	return m, nil
}

func (s *Store) ListMindMaps(_ context.Context, sessionID string) ([]store.MindMap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.MindMap, len(s.mindMaps[sessionID]))
	copy(out, s.mindMaps[sessionID])
	return out, nil
}

func (s *Store) GetSettings(_ context.Context) (store.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settings == nil {
		defaults := store.DefaultSettings()
		s.settings = &defaults
	}
	return *s.settings, nil
}

func (s *Store) PutSettings(_ context.Context, cfg store.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = &cfg
	return nil
}

func (s *Store) Ping(_ context.Context) error {
	return nil
}
