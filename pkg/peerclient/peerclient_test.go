package peerclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a2afabric/agentrt/pkg/a2aproto"
	"github.com/a2afabric/agentrt/pkg/peerclient"
)

func TestFetchAgentCard_DecodesDiscoveryDocument(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/.well-known/agent-card.json", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(a2aproto.AgentCard{Name: "librarian", AgentID: "librarian-1"})
	}))
	defer server.Close()

	c := peerclient.New(server.URL)
	card, err := c.FetchAgentCard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "librarian", card.Name)
	assert.Equal(t, "librarian-1", card.AgentID)
}

func TestSendMessage_ReturnsReply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req a2aproto.Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "message/send", req.Method)

		var params struct {
			SessionID string `json:"sessionId"`
			Message   struct {
				Content string `json:"content"`
			} `json:"message"`
		}
		require.NoError(t, json.Unmarshal(req.Params, &params))
		assert.Equal(t, "s1", params.SessionID)
		assert.Equal(t, "hello", params.Message.Content)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(a2aproto.Response{JSONRPC: "2.0", ID: req.ID, Result: map[string]any{
			"taskId": "t1", "status": "completed",
			"result": map[string]any{"message": map[string]any{"role": "agent", "content": "hi back"}},
		}})
	}))
	defer server.Close()

	c := peerclient.New(server.URL)
	reply, err := c.SendMessage(context.Background(), "s1", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hi back", reply)
}

func TestSendMessage_FailedTurnMapsToKindRemote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req a2aproto.Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(a2aproto.Response{JSONRPC: "2.0", ID: req.ID, Result: map[string]any{
			"taskId": "t1", "status": "failed",
			"result": map[string]any{"message": map[string]any{"role": "agent", "content": "sorry, that request failed"}},
		}})
	}))
	defer server.Close()

	c := peerclient.New(server.URL)
	_, err := c.SendMessage(context.Background(), "s1", "hello")
	require.Error(t, err)
	var coreErr *a2aproto.CoreError
	require.ErrorAs(t, err, &coreErr)
	assert.Equal(t, a2aproto.KindRemote, coreErr.Kind)
}

func TestSendMessage_RemoteErrorMapsToKindRemote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req a2aproto.Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(a2aproto.Response{
			JSONRPC: "2.0", ID: req.ID,
			Error: &a2aproto.RPCError{Code: -32000, Message: "peer overloaded"},
		})
	}))
	defer server.Close()

	c := peerclient.New(server.URL)
	_, err := c.SendMessage(context.Background(), "s1", "hello")
	require.Error(t, err)
	var coreErr *a2aproto.CoreError
	require.ErrorAs(t, err, &coreErr)
	assert.Equal(t, a2aproto.KindRemote, coreErr.Kind)
}
