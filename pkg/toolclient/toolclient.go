// Package toolclient implements the streaming-HTTP capability client for
// tool-provider capabilities (spec §4.1). It speaks plain JSON-RPC 2.0
// over HTTP, with an optional single Server-Sent Events frame in place
// of a bare JSON body, and carries the MCP-style stateful-session
// handshake: initialize -> capture Mcp-Session-Id -> notifications/
// initialized -> carry the header on every later call.
//
// Deliberately not reused from the teacher's httpclient.Client: that
// client retries every request unconditionally (see
// pkg/httpclient/errors.go: IsRetryable always returns true), but spec
// §4.1 requires that "the client issues no implicit retries — retry
// policy, if any, is the caller's concern." This client performs each
// call exactly once.
package toolclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/a2afabric/agentrt/pkg/a2aproto"
)

// DefaultSSEReadTimeout bounds how long a call waits for the first
// complete SSE frame before giving up with a Timeout error.
const DefaultSSEReadTimeout = 5 * time.Minute

// Client talks to one tool-provider endpoint identified by a base URL.
// It is safe for concurrent use; the session handshake is internally
// synchronized.
type Client struct {
	baseURL    string
	httpClient *http.Client
	sseTimeout time.Duration

	sessionMu sync.RWMutex
	sessionID string

	nextIDMu sync.Mutex
	nextID   int64

	debugLog hclog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying *http.Client (timeouts,
// transport, TLS config).
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.httpClient = hc } }

// WithSSEReadTimeout overrides DefaultSSEReadTimeout.
func WithSSEReadTimeout(d time.Duration) Option { return func(c *Client) { c.sseTimeout = d } }

// WithDebugLogger attaches an hclog.Logger that traces every call's
// method, session id, and framing (plain JSON vs SSE). Wrap a
// *slog.Logger with logging.NewHCLogShim to supply one.
func WithDebugLogger(l hclog.Logger) Option { return func(c *Client) { c.debugLog = l } }

// New creates a Client bound to baseURL. It does not touch the
// network; the session handshake happens only when OpenSession is
// called.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		sseTimeout: DefaultSSEReadTimeout,
		debugLog:   hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OpenSession performs the MCP-style handshake: an "initialize" call
// captures the server's Mcp-Session-Id response header (if any), then
// a "notifications/initialized" call is sent carrying that header.
// Stateless servers that never set the header leave the client to
// operate session-less, which is a legal outcome, not an error.
func (c *Client) OpenSession(ctx context.Context) error {
	resp, err := c.call(ctx, "initialize", map[string]any{
		"protocolVersion": "2024-11-05",
		"clientInfo":      map[string]any{"name": "agentrt", "version": "0.1.0"},
		"capabilities":    map[string]any{},
	})
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return a2aproto.NewErrorFromRPC(resp.Error)
	}

	if _, err := c.call(ctx, "notifications/initialized", nil); err != nil {
		return err
	}
	return nil
}

// CloseSession forgets any captured session id. It does not notify the
// server; spec §4.1 does not define a session-teardown call.
func (c *Client) CloseSession() {
	c.sessionMu.Lock()
	c.sessionID = ""
	c.sessionMu.Unlock()
}

// ListTools returns the descriptors this provider currently exposes.
func (c *Client) ListTools(ctx context.Context) ([]a2aproto.ToolDescriptor, error) {
	resp, err := c.call(ctx, "tools/list", nil)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, a2aproto.NewErrorFromRPC(resp.Error)
	}

	resultMap, ok := resp.Result.(map[string]any)
	if !ok {
		return nil, a2aproto.New(a2aproto.KindProtocol, "toolclient", "ListTools", "tools/list result is not an object", nil)
	}
	rawTools, ok := resultMap["tools"].([]any)
	if !ok {
		return nil, a2aproto.New(a2aproto.KindProtocol, "toolclient", "ListTools", "tools/list result missing tools array", nil)
	}

	out := make([]a2aproto.ToolDescriptor, 0, len(rawTools))
	for _, raw := range rawTools {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := m["name"].(string)
		desc, _ := m["description"].(string)
		var schema map[string]any
		if s, ok := m["inputSchema"].(map[string]any); ok {
			schema = s
		}
		out = append(out, a2aproto.ToolDescriptor{Name: name, Description: desc, InputSchema: schema})
	}
	return out, nil
}

// CallTool invokes name with args and returns the raw JSON-RPC result.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	resp, err := c.call(ctx, "tools/call", map[string]any{
		"name":      name,
		"arguments": args,
	})
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, a2aproto.NewErrorFromRPC(resp.Error)
	}
	result, ok := resp.Result.(map[string]any)
	if !ok {
		return nil, a2aproto.New(a2aproto.KindProtocol, "toolclient", "CallTool", "tools/call result is not an object", nil)
	}
	return result, nil
}

func (c *Client) call(ctx context.Context, method string, params any) (*a2aproto.Response, error) {
	c.nextIDMu.Lock()
	c.nextID++
	id := c.nextID
	c.nextIDMu.Unlock()

	var rawParams json.RawMessage
	if params != nil {
		encoded, err := json.Marshal(params)
		if err != nil {
			return nil, a2aproto.New(a2aproto.KindProtocol, "toolclient", "call", "encode params", err)
		}
		rawParams = encoded
	}
	req := a2aproto.Request{JSONRPC: "2.0", ID: id, Method: method, Params: rawParams}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, a2aproto.New(a2aproto.KindProtocol, "toolclient", "call", "encode request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, a2aproto.New(a2aproto.KindTransport, "toolclient", "call", "build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json, text/event-stream")

	c.sessionMu.RLock()
	sessionID := c.sessionID
	c.sessionMu.RUnlock()
	if sessionID != "" {
		httpReq.Header.Set("Mcp-Session-Id", sessionID)
	}

	c.debugLog.Trace("dispatching capability call", "method", method, "url", c.baseURL, "sessionId", sessionID)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, a2aproto.New(a2aproto.KindTimeout, "toolclient", "call", "request context ended", ctx.Err())
		}
		return nil, a2aproto.New(a2aproto.KindTransport, "toolclient", "call", fmt.Sprintf("%s request failed", method), err)
	}
	defer httpResp.Body.Close()

	if newSessionID := httpResp.Header.Get("Mcp-Session-Id"); newSessionID != "" {
		c.sessionMu.Lock()
		c.sessionID = newSessionID
		c.sessionMu.Unlock()
	}

	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(httpResp.Body)
		return nil, a2aproto.New(a2aproto.KindTransport, "toolclient", "call",
			fmt.Sprintf("unexpected status %d: %s", httpResp.StatusCode, string(respBody)), nil)
	}

	contentType := httpResp.Header.Get("Content-Type")
	if strings.Contains(contentType, "text/event-stream") {
		c.debugLog.Trace("decoding SSE-framed response", "method", method)
		return c.readSSEResponse(httpResp)
	}

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, a2aproto.New(a2aproto.KindTransport, "toolclient", "call", "read response body", err)
	}
	var resp a2aproto.Response
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, a2aproto.New(a2aproto.KindProtocol, "toolclient", "call", "decode JSON-RPC response", err)
	}
	return &resp, nil
}

// readSSEResponse reads data: lines until a blank line terminates the
// first event, decodes it as one JSON-RPC response, and gives up after
// sseTimeout. Only the first complete event is consumed; a second
// event in the same stream (if any) is left unread.
func (c *Client) readSSEResponse(httpResp *http.Response) (*a2aproto.Response, error) {
	type outcome struct {
		resp *a2aproto.Response
		err  error
	}
	done := make(chan outcome, 1)

	go func() {
		defer httpResp.Body.Close()
		reader := bufio.NewReader(httpResp.Body)
		var data strings.Builder

		for {
			line, err := reader.ReadBytes('\n')
			if err != nil {
				break
			}
			text := strings.TrimSpace(string(line))
			if text == "" {
				if data.Len() > 0 {
					var resp a2aproto.Response
					if json.Unmarshal([]byte(data.String()), &resp) == nil {
						done <- outcome{resp: &resp}
						return
					}
					data.Reset()
				}
				continue
			}
			if strings.HasPrefix(text, "data:") {
				data.WriteString(strings.TrimSpace(strings.TrimPrefix(text, "data:")))
			}
		}

		if data.Len() > 0 {
			var resp a2aproto.Response
			if json.Unmarshal([]byte(data.String()), &resp) == nil {
				done <- outcome{resp: &resp}
				return
			}
		}
		done <- outcome{err: a2aproto.New(a2aproto.KindProtocol, "toolclient", "readSSEResponse", "SSE stream ended without a complete event", nil)}
	}()

	select {
	case o := <-done:
		return o.resp, o.err
	case <-time.After(c.sseTimeout):
		return nil, a2aproto.New(a2aproto.KindTimeout, "toolclient", "readSSEResponse", "timed out waiting for SSE response", nil)
	}
}
