package task_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a2afabric/agentrt/pkg/a2aproto"
	"github.com/a2afabric/agentrt/pkg/task"
)

func TestLifecycle_SubmittedToCompleted(t *testing.T) {
	m := task.NewManager(nil)
	id, _ := m.Create(context.Background(), "s1", "hello")

	got, err := m.Get(id)
	require.NoError(t, err)
	assert.Equal(t, a2aproto.TaskSubmitted, got.Status)

	require.NoError(t, m.Transition(id, a2aproto.TaskWorking, "", ""))
	require.NoError(t, m.Transition(id, a2aproto.TaskCompleted, "hi there", ""))

	got, err = m.Get(id)
	require.NoError(t, err)
	assert.Equal(t, a2aproto.TaskCompleted, got.Status)
	assert.Equal(t, "hi there", got.OutboundReply)
}

func TestCancel_OnTerminalTaskIsAlreadyTerminal(t *testing.T) {
	m := task.NewManager(nil)
	id, _ := m.Create(context.Background(), "s1", "hello")
	require.NoError(t, m.Transition(id, a2aproto.TaskWorking, "", ""))
	require.NoError(t, m.Transition(id, a2aproto.TaskCompleted, "done", ""))

	outcome, err := m.Cancel(id)
	require.NoError(t, err)
	assert.Equal(t, task.AlreadyTerminal, outcome)
}

func TestCancel_OnWorkingTaskCancelsAndSignalsContext(t *testing.T) {
	m := task.NewManager(nil)
	id, ctx := m.Create(context.Background(), "s1", "hello")
	require.NoError(t, m.Transition(id, a2aproto.TaskWorking, "", ""))

	outcome, err := m.Cancel(id)
	require.NoError(t, err)
	assert.Equal(t, task.Cancelled, outcome)

	select {
	case <-ctx.Done():
	default:
		t.Fatal("expected task context to be cancelled")
	}

	got, err := m.Get(id)
	require.NoError(t, err)
	assert.Equal(t, a2aproto.TaskCancelled, got.Status)
}

func TestGet_UnknownTaskReturnsNotFound(t *testing.T) {
	m := task.NewManager(nil)
	_, err := m.Get("ghost")
	require.Error(t, err)
	var coreErr *a2aproto.CoreError
	require.ErrorAs(t, err, &coreErr)
	assert.Equal(t, a2aproto.KindNotFound, coreErr.Kind)
}

func TestTransition_IllegalFromTerminalPanics(t *testing.T) {
	m := task.NewManager(nil)
	id, _ := m.Create(context.Background(), "s1", "hello")
	require.NoError(t, m.Transition(id, a2aproto.TaskWorking, "", ""))
	require.NoError(t, m.Transition(id, a2aproto.TaskCompleted, "done", ""))

	assert.Panics(t, func() {
		_ = m.Transition(id, a2aproto.TaskWorking, "", "")
	})
}
