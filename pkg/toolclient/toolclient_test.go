package toolclient_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a2afabric/agentrt/pkg/a2aproto"
	"github.com/a2afabric/agentrt/pkg/logging"
	"github.com/a2afabric/agentrt/pkg/toolclient"
)

func decodeRequest(t *testing.T, r *http.Request) a2aproto.Request {
	t.Helper()
	var req a2aproto.Request
	require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
	return req
}

func writeJSONRPCResult(w http.ResponseWriter, id any, result any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(a2aproto.Response{JSONRPC: "2.0", ID: id, Result: result})
}

func TestOpenSession_CapturesAndCarriesSessionHeader(t *testing.T) {
	var seenOnSecondCall string
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeRequest(t, r)
		calls++
		switch req.Method {
		case "initialize":
			w.Header().Set("Mcp-Session-Id", "sess-123")
			writeJSONRPCResult(w, req.ID, map[string]any{})
		case "notifications/initialized":
			seenOnSecondCall = r.Header.Get("Mcp-Session-Id")
			writeJSONRPCResult(w, req.ID, map[string]any{})
		default:
			t.Fatalf("unexpected method %s", req.Method)
		}
	}))
	defer server.Close()

	c := toolclient.New(server.URL)
	require.NoError(t, c.OpenSession(context.Background()))
	assert.Equal(t, "sess-123", seenOnSecondCall)
	assert.Equal(t, 2, calls)
}

func TestListTools_ParsesDescriptors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeRequest(t, r)
		require.Equal(t, "tools/list", req.Method)
		writeJSONRPCResult(w, req.ID, map[string]any{
			"tools": []any{
				map[string]any{"name": "search", "description": "web search", "inputSchema": map[string]any{"type": "object"}},
			},
		})
	}))
	defer server.Close()

	c := toolclient.New(server.URL)
	tools, err := c.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "search", tools[0].Name)
	assert.Equal(t, "web search", tools[0].Description)
}

func TestCallTool_ReturnsResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeRequest(t, r)
		require.Equal(t, "tools/call", req.Method)
		writeJSONRPCResult(w, req.ID, map[string]any{"ok": true})
	}))
	defer server.Close()

	c := toolclient.New(server.URL)
	result, err := c.CallTool(context.Background(), "search", map[string]any{"q": "go"})
	require.NoError(t, err)
	assert.Equal(t, true, result["ok"])
}

func TestCallTool_RemoteErrorMapsToKindRemote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeRequest(t, r)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(a2aproto.Response{
			JSONRPC: "2.0", ID: req.ID,
			Error: &a2aproto.RPCError{Code: -32000, Message: "boom"},
		})
	}))
	defer server.Close()

	c := toolclient.New(server.URL)
	_, err := c.CallTool(context.Background(), "search", nil)
	require.Error(t, err)
	var coreErr *a2aproto.CoreError
	require.ErrorAs(t, err, &coreErr)
	assert.Equal(t, a2aproto.KindRemote, coreErr.Kind)
}

func TestCallTool_SSEResponseIsDecoded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeRequest(t, r)
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		payload, _ := json.Marshal(a2aproto.Response{JSONRPC: "2.0", ID: req.ID, Result: map[string]any{"ok": true}})
		fmt.Fprintf(w, "data: %s\n\n", payload)
	}))
	defer server.Close()

	c := toolclient.New(server.URL)
	result, err := c.CallTool(context.Background(), "search", nil)
	require.NoError(t, err)
	assert.Equal(t, true, result["ok"])
}

func TestCallTool_DebugLoggerTracesWithoutAlteringResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeRequest(t, r)
		writeJSONRPCResult(w, req.ID, map[string]any{"ok": true})
	}))
	defer server.Close()

	c := toolclient.New(server.URL, toolclient.WithDebugLogger(logging.NewHCLogShim(logging.New(logging.ParseLevel("error")))))
	result, err := c.CallTool(context.Background(), "search", map[string]any{"q": "go"})
	require.NoError(t, err)
	assert.Equal(t, true, result["ok"])
}

func TestCall_NonOKStatusIsTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("oops"))
	}))
	defer server.Close()

	c := toolclient.New(server.URL)
	_, err := c.ListTools(context.Background())
	require.Error(t, err)
	var coreErr *a2aproto.CoreError
	require.ErrorAs(t, err, &coreErr)
	assert.Equal(t, a2aproto.KindTransport, coreErr.Kind)
}
