package executor_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a2afabric/agentrt/pkg/a2aproto"
	"github.com/a2afabric/agentrt/pkg/agentconfig"
	"github.com/a2afabric/agentrt/pkg/clock"
	"github.com/a2afabric/agentrt/pkg/executor"
	"github.com/a2afabric/agentrt/pkg/llm"
	"github.com/a2afabric/agentrt/pkg/registry"
	"github.com/a2afabric/agentrt/pkg/session"
)

// scriptedAdapter replays a fixed sequence of responses, one per call,
// honoring the adapter contract's "no hidden state" only in that it
// never looks at its own prior output — it is driven purely by call
// count, which is observable state a real adapter wouldn't have.
type scriptedAdapter struct {
	responses []llm.Response
	calls     int
}

func (a *scriptedAdapter) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	resp := a.responses[a.calls]
	a.calls++
	return resp, nil
}

func newToolServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			// Not a peer agent: the registry's agent-card probe gets a 404.
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var req a2aproto.Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		switch req.Method {
		case "tools/list":
			_ = json.NewEncoder(w).Encode(a2aproto.Response{JSONRPC: "2.0", ID: req.ID, Result: map[string]any{
				"tools": []any{map[string]any{"name": "search", "description": "web search"}},
			}})
		case "tools/call":
			_ = json.NewEncoder(w).Encode(a2aproto.Response{JSONRPC: "2.0", ID: req.ID, Result: map[string]any{"hits": 3}})
		default:
			_ = json.NewEncoder(w).Encode(a2aproto.Response{JSONRPC: "2.0", ID: req.ID, Result: map[string]any{}})
		}
	}))
}

func TestRunTurn_DirectAnswerWithNoCapabilityCalls(t *testing.T) {
	reg := registry.New("http://self", clock.Real{})
	adapter := &scriptedAdapter{responses: []llm.Response{{FinalText: "hi there"}}}
	cfg := agentconfig.New("a1", "Agent One")
	exec := executor.New(session.NewStore(nil), reg, adapter, cfg)

	reply, err := exec.RunTurn(context.Background(), "s1", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hi there", reply)
}

func TestRunTurn_OneCapabilityCallThenFinalAnswer(t *testing.T) {
	srv := newToolServer(t)
	defer srv.Close()

	reg := registry.New("http://self", clock.Real{})
	_, err := reg.Add(context.Background(), srv.URL)
	require.NoError(t, err)

	adapter := &scriptedAdapter{responses: []llm.Response{
		{Call: &llm.FunctionCall{Name: "search", Arguments: map[string]any{"q": "go"}}},
		{FinalText: "found 3 hits"},
	}}
	cfg := agentconfig.New("a1", "Agent One")
	exec := executor.New(session.NewStore(nil), reg, adapter, cfg)

	reply, err := exec.RunTurn(context.Background(), "s1", "search for go")
	require.NoError(t, err)
	assert.Equal(t, "found 3 hits", reply)
}

func TestRunTurn_UnknownCapabilityIsFedBackNotFatal(t *testing.T) {
	reg := registry.New("http://self", clock.Real{})
	adapter := &scriptedAdapter{responses: []llm.Response{
		{Call: &llm.FunctionCall{Name: "ghost", Arguments: map[string]any{}}},
		{FinalText: "sorry, couldn't do that"},
	}}
	cfg := agentconfig.New("a1", "Agent One")
	exec := executor.New(session.NewStore(nil), reg, adapter, cfg)

	reply, err := exec.RunTurn(context.Background(), "s1", "do the ghost thing")
	require.NoError(t, err)
	assert.Equal(t, "sorry, couldn't do that", reply)
}

func TestRunTurn_ExceedingCallBudgetIsFatal(t *testing.T) {
	srv := newToolServer(t)
	defer srv.Close()

	reg := registry.New("http://self", clock.Real{})
	_, err := reg.Add(context.Background(), srv.URL)
	require.NoError(t, err)

	responses := make([]llm.Response, 0, 3)
	for i := 0; i < 3; i++ {
		responses = append(responses, llm.Response{Call: &llm.FunctionCall{Name: "search", Arguments: map[string]any{"q": "go"}}})
	}
	adapter := &scriptedAdapter{responses: responses}
	cfg := agentconfig.New("a1", "Agent One", agentconfig.WithMaxToolCallsPerTurn(2))
	exec := executor.New(session.NewStore(nil), reg, adapter, cfg)

	_, err = exec.RunTurn(context.Background(), "s1", "search forever")
	require.Error(t, err)
	var coreErr *a2aproto.CoreError
	require.ErrorAs(t, err, &coreErr)
	assert.Equal(t, a2aproto.KindCapacityExceeded, coreErr.Kind)
}

func TestRunTurn_CancelledContextStopsAtNextSuspensionPoint(t *testing.T) {
	reg := registry.New("http://self", clock.Real{})
	adapter := &scriptedAdapter{responses: []llm.Response{{FinalText: "too late"}}}
	cfg := agentconfig.New("a1", "Agent One")
	exec := executor.New(session.NewStore(nil), reg, adapter, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := exec.RunTurn(ctx, "s1", "hello")
	require.Error(t, err)
	var coreErr *a2aproto.CoreError
	require.ErrorAs(t, err, &coreErr)
	assert.Equal(t, a2aproto.KindCancelled, coreErr.Kind)
}
