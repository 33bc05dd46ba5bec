package session_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a2afabric/agentrt/pkg/a2aproto"
	"github.com/a2afabric/agentrt/pkg/session"
)

func TestGetOrCreate_FreshSessionHasEmptyHistory(t *testing.T) {
	store := session.NewStore(nil)
	sess := store.GetOrCreate("s1")
	require.NotNil(t, sess)
	assert.Empty(t, store.Snapshot("s1"))
}

func TestAppend_IsOrderPreservingAndPrefixPreserving(t *testing.T) {
	store := session.NewStore(nil)
	for i := 0; i < 5; i++ {
		store.Append("s1", a2aproto.ChatTurn{Role: a2aproto.RoleUser, Content: fmt.Sprintf("m%d", i)})
	}
	hist := store.Snapshot("s1")
	require.Len(t, hist, 5)
	for i, turn := range hist {
		assert.Equal(t, fmt.Sprintf("m%d", i), turn.Content)
	}
}

func TestConcurrentSessionsAreIndependent(t *testing.T) {
	store := session.NewStore(nil)
	var wg sync.WaitGroup
	for s := 0; s < 10; s++ {
		sid := fmt.Sprintf("session-%d", s)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				store.Append(sid, a2aproto.ChatTurn{Role: a2aproto.RoleUser, Content: fmt.Sprintf("%s-%d", sid, i)})
			}
		}()
	}
	wg.Wait()

	for s := 0; s < 10; s++ {
		sid := fmt.Sprintf("session-%d", s)
		hist := store.Snapshot(sid)
		require.Len(t, hist, 20)
		for i, turn := range hist {
			assert.Equal(t, fmt.Sprintf("%s-%d", sid, i), turn.Content)
		}
	}
}

func TestSnapshot_UnknownSessionReturnsNilWithoutCreating(t *testing.T) {
	store := session.NewStore(nil)
	assert.Nil(t, store.Snapshot("ghost"))
}
