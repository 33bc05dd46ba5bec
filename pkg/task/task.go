// Package task implements the task lifecycle manager (spec §4.5): a
// process-wide table mapping task id to its lifecycle record, with a
// closed 5-state machine and linearizable transitions per task id.
package task

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/a2afabric/agentrt/pkg/a2aproto"
	"github.com/a2afabric/agentrt/pkg/clock"
)

// CancelOutcome distinguishes a fresh cancellation from a no-op on an
// already-terminal task (spec §3, §4.5).
type CancelOutcome string

const (
	Cancelled       CancelOutcome = "cancelled"
	AlreadyTerminal CancelOutcome = "already_terminal"
)

// Manager owns every Task created in this process.
type Manager struct {
	clock clock.Clock

	mu      sync.Mutex
	tasks   map[string]*a2aproto.Task
	cancels map[string]context.CancelFunc
}

// NewManager creates an empty task table.
func NewManager(c clock.Clock) *Manager {
	if c == nil {
		c = clock.Real{}
	}
	return &Manager{
		clock:   c,
		tasks:   make(map[string]*a2aproto.Task),
		cancels: make(map[string]context.CancelFunc),
	}
}

// Create starts a new task in state submitted for the given session
// and inbound message, returning its id and a context the caller
// should run the turn under. Cancelling the returned context is how
// Cancel signals the in-flight Turn Executor cooperatively (spec §5).
func (m *Manager) Create(parent context.Context, sessionID, inboundMessage string) (string, context.Context) {
	now := m.clock.Now()
	t := &a2aproto.Task{
		ID:             uuid.New().String(),
		SessionID:      sessionID,
		Status:         a2aproto.TaskSubmitted,
		CreatedAt:      now,
		UpdatedAt:      now,
		InboundMessage: inboundMessage,
	}
	ctx, cancel := context.WithCancel(parent)

	m.mu.Lock()
	m.tasks[t.ID] = t
	m.cancels[t.ID] = cancel
	m.mu.Unlock()

	return t.ID, ctx
}

// Transition moves taskID to newState. Only submitted->working,
// working->{completed,failed}, and {submitted,working}->cancelled are
// legal; anything else is a programming error and panics, matching
// spec §4.5: "Any other transition is a programming error."
func (m *Manager) Transition(taskID string, newState a2aproto.TaskState, reply string, errorKind string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[taskID]
	if !ok {
		return a2aproto.New(a2aproto.KindNotFound, "task", "Transition", "unknown task id "+taskID, nil)
	}
	if !legalTransition(t.Status, newState) {
		panic("task: illegal transition " + string(t.Status) + " -> " + string(newState))
	}

	t.Status = newState
	t.UpdatedAt = m.clock.Now()
	if reply != "" {
		t.OutboundReply = reply
	}
	if errorKind != "" {
		t.ErrorKind = errorKind
	}
	if newState.IsTerminal() {
		m.releaseLocked(taskID)
	}
	return nil
}

// releaseLocked cancels and forgets taskID's context, releasing its
// transport resources on every exit path. Caller must hold m.mu.
func (m *Manager) releaseLocked(taskID string) {
	if cancel, ok := m.cancels[taskID]; ok {
		cancel()
		delete(m.cancels, taskID)
	}
}

func legalTransition(from, to a2aproto.TaskState) bool {
	switch from {
	case a2aproto.TaskSubmitted:
		return to == a2aproto.TaskWorking || to == a2aproto.TaskCancelled
	case a2aproto.TaskWorking:
		return to == a2aproto.TaskCompleted || to == a2aproto.TaskFailed || to == a2aproto.TaskCancelled
	default:
		return false
	}
}

// IDs returns a snapshot of every task id currently known to this
// Manager, in no particular order. Intended for diagnostics (and for
// racing tasks/cancel against an in-flight task in tests) rather than
// the request path.
func (m *Manager) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.tasks))
	for id := range m.tasks {
		out = append(out, id)
	}
	return out
}

// Get returns a copy of taskID's current record.
func (m *Manager) Get(taskID string) (a2aproto.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[taskID]
	if !ok {
		return a2aproto.Task{}, a2aproto.New(a2aproto.KindNotFound, "task", "Get", "unknown task id "+taskID, nil)
	}
	return *t, nil
}

// Cancel requests cancellation of taskID. Idempotent: cancelling an
// already-terminal task is a no-op returning AlreadyTerminal (spec
// §3, §4.5, §8 property 4).
func (m *Manager) Cancel(taskID string) (CancelOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[taskID]
	if !ok {
		return "", a2aproto.New(a2aproto.KindNotFound, "task", "Cancel", "unknown task id "+taskID, nil)
	}
	if t.Status.IsTerminal() {
		return AlreadyTerminal, nil
	}
	t.Status = a2aproto.TaskCancelled
	t.UpdatedAt = m.clock.Now()
	m.releaseLocked(taskID)
	return Cancelled, nil
}
