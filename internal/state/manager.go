// Package state implements the ProcessingStateManager: the central
// concurrency gate enforcing at-most-one in-flight LLM operation of each
// kind per session (§4.3).
package state

import (
	"sync"
	"time"
)

// Kind identifies a pipeline operation kind.
type Kind string

const (
	KindSummary Kind = "summary"
	KindMindMap Kind = "mind_map"
)

// slot separates the act of reserving a (session, kind) pair from the act of
// actually running it. reserved is set by TryStart and gates against a
// second concurrent dispatch for the same pair; busy/startedAt are set later
// by MarkRunning, once a worker has actually dequeued the job, so that
// Status()/IsBusy() never report a still-queued job as running (§5).
type slot struct {
	reserved  bool
	busy      bool
	startedAt time.Time
}

// Status is a snapshot of both slots for a session (§4.3 status()).
type Status struct {
	SummaryBusy      bool
	MindMapBusy      bool
	SummaryStartedAt time.Time
	MindMapStartedAt time.Time
}

// Manager is the ProcessingStateManager: a single mutex over a
// session->kind->slot map, following internal/resilience/circuitbreaker.go's
// mutex-guarded struct style generalized to a nested map. Hold duration is
// O(1) (§5): never hold this lock across an LLM call.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]map[Kind]*slot
}

// NewManager creates an empty ProcessingStateManager.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]map[Kind]*slot)}
}

// TryStart atomically checks that no slot for (sessionID, kind) is already
// reserved; if free, reserves it and returns true. Otherwise returns false
// without side effects. A reserved slot is not yet busy: if the pool is
// saturated the caller's job waits in the queue, and Status()/IsBusy() must
// not report it as running until MarkRunning is called at dequeue time.
func (m *Manager) TryStart(sessionID string, kind Kind) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	kinds, ok := m.sessions[sessionID]
	if !ok {
		kinds = make(map[Kind]*slot)
		m.sessions[sessionID] = kinds
	}
	s, ok := kinds[kind]
	if ok && s.reserved {
		return false
	}
	kinds[kind] = &slot{reserved: true}
	return true
}

// MarkRunning flips a reserved slot to busy and stamps startedAt with now.
// Called by the worker pool job immediately before the pipeline run starts,
// i.e. at dequeue time rather than at submit time, so that Status() reads
// remain truthful for jobs still waiting in the pool queue (§5). A no-op if
// the slot was already stopped or was never reserved.
func (m *Manager) MarkRunning(sessionID string, kind Kind) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kinds, ok := m.sessions[sessionID]
	if !ok {
		return
	}
	s, ok := kinds[kind]
	if !ok {
		return
	}
	s.busy = true
	s.startedAt = time.Now()
}

// Stop clears the slot for (sessionID, kind), whether or not it ever reached
// the running state. If no slots remain reserved for the session afterward,
// the session's state is removed entirely. Stop is idempotent: calling it on
// an already-clear slot is a no-op. Callers must guarantee Stop runs on
// every exit path of a pipeline (§4.3 invariant 3).
func (m *Manager) Stop(sessionID string, kind Kind) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kinds, ok := m.sessions[sessionID]
	if !ok {
		return
	}
	delete(kinds, kind)
	if len(kinds) == 0 {
		delete(m.sessions, sessionID)
	}
}

// IsBusy reports whether the given (sessionID, kind) slot is currently busy.
func (m *Manager) IsBusy(sessionID string, kind Kind) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	kinds, ok := m.sessions[sessionID]
	if !ok {
		return false
	}
	s, ok := kinds[kind]
	return ok && s.busy
}

// Status returns a snapshot of both slots for sessionID.
func (m *Manager) Status(sessionID string) Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	var st Status
	kinds, ok := m.sessions[sessionID]
	if !ok {
		return st
	}
	if s, ok := kinds[KindSummary]; ok && s.busy {
		st.SummaryBusy = true
		st.SummaryStartedAt = s.startedAt
	}
	if s, ok := kinds[KindMindMap]; ok && s.busy {
		st.MindMapBusy = true
		st.MindMapStartedAt = s.startedAt
	}
	return st
}

// SessionCount returns the number of sessions with at least one reserved or
// running slot. Exposed for the "clean release" property test (§8 property 8).
func (m *Manager) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
