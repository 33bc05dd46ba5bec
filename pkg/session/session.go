// Package session implements the per-session conversation history
// store (spec §4.4). History is append-only and never truncated by
// capability topology changes; a session is created lazily on first
// access.
package session

import (
	"sync"
	"time"

	"github.com/a2afabric/agentrt/pkg/a2aproto"
	"github.com/a2afabric/agentrt/pkg/clock"
)

// Session is one conversation's state: its ordered history and a
// free-form metadata bag.
//
// Two distinct locks are kept deliberately separate:
//   - turnMu is held by the Turn Executor for the entire duration of
//     one turn (spec §5: "the N-th user message's full turn
//     completes... before the N+1-th is admitted"). It is coarse and
//     long-lived.
//   - historyMu protects the history slice itself for the brief
//     Append/Snapshot critical sections, which the executor calls
//     *while already holding turnMu*. Collapsing these into one lock
//     would deadlock the executor against itself.
type Session struct {
	ID            string
	CreatedAt     time.Time
	LastTouchedAt time.Time
	Metadata      map[string]any

	turnMu sync.Mutex

	historyMu sync.Mutex
	history   []a2aproto.ChatTurn
}

// Lock serializes one full turn against this session.
func (s *Session) Lock()   { s.turnMu.Lock() }
func (s *Session) Unlock() { s.turnMu.Unlock() }

// snapshotLocked returns a defensive copy of the current history.
// Caller must hold historyMu.
func (s *Session) snapshotLocked() []a2aproto.ChatTurn {
	out := make([]a2aproto.ChatTurn, len(s.history))
	copy(out, s.history)
	return out
}

// Store is the process-wide session table (spec §4.4).
type Store struct {
	clock clock.Clock

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewStore creates an empty, unbounded Store. Eviction is
// deliberately not built in here — spec §4.4: "the boundary must
// default to unbounded within process lifetime for correctness
// testing."
func NewStore(c clock.Clock) *Store {
	if c == nil {
		c = clock.Real{}
	}
	return &Store{clock: c, sessions: make(map[string]*Session)}
}

// GetOrCreate returns the Session for id, creating an empty one on
// first access.
func (st *Store) GetOrCreate(id string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	if sess, ok := st.sessions[id]; ok {
		return sess
	}
	now := st.clock.Now()
	sess := &Session{
		ID:            id,
		CreatedAt:     now,
		LastTouchedAt: now,
		Metadata:      make(map[string]any),
	}
	st.sessions[id] = sess
	return sess
}

// Append adds one turn to id's history, creating the session if
// needed. It takes only the session's historyMu, never the turn-level
// lock, so the executor can call it while holding Lock for the whole
// turn without deadlocking; callers that hold no lock may call it too.
func (st *Store) Append(id string, turn a2aproto.ChatTurn) {
	sess := st.GetOrCreate(id)
	sess.historyMu.Lock()
	defer sess.historyMu.Unlock()
	if turn.Timestamp.IsZero() {
		turn.Timestamp = st.clock.Now()
	}
	sess.history = append(sess.history, turn)
	sess.LastTouchedAt = turn.Timestamp
}

// Snapshot returns an ordered copy of id's history without creating
// the session if it doesn't exist.
func (st *Store) Snapshot(id string) []a2aproto.ChatTurn {
	st.mu.Lock()
	sess, ok := st.sessions[id]
	st.mu.Unlock()
	if !ok {
		return nil
	}
	sess.historyMu.Lock()
	defer sess.historyMu.Unlock()
	return sess.snapshotLocked()
}
