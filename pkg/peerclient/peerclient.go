// Package peerclient implements the capability client used to talk to
// a peer agent capability (spec §4.2): fetching its agent card and
// forwarding a message to it over the same JSON-RPC+SSE wire contract
// as pkg/toolclient. It is a second, independent leaf client rather
// than a toolclient wrapper because a peer agent speaks method/result
// vocabulary ("message/send", an AgentCard payload) distinct from an
// MCP tool provider's ("tools/list", "tools/call").
package peerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/a2afabric/agentrt/pkg/a2aproto"
)

// DefaultSSEReadTimeout mirrors pkg/toolclient's default.
const DefaultSSEReadTimeout = 5 * time.Minute

// Client talks to one peer agent identified by its base URL.
type Client struct {
	baseURL    string
	httpClient *http.Client
	sseTimeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.httpClient = hc } }

// WithSSEReadTimeout overrides DefaultSSEReadTimeout.
func WithSSEReadTimeout(d time.Duration) Option { return func(c *Client) { c.sseTimeout = d } }

// New creates a Client bound to baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		sseTimeout: DefaultSSEReadTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchAgentCard performs a plain GET on baseURL's well-known
// discovery document. This is the one call in this client that isn't
// JSON-RPC, matching the discovery contract in spec §1.
func (c *Client) FetchAgentCard(ctx context.Context) (a2aproto.AgentCard, error) {
	url := strings.TrimRight(c.baseURL, "/") + "/.well-known/agent-card.json"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return a2aproto.AgentCard{}, a2aproto.New(a2aproto.KindTransport, "peerclient", "FetchAgentCard", "build request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return a2aproto.AgentCard{}, a2aproto.New(a2aproto.KindTransport, "peerclient", "FetchAgentCard", "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return a2aproto.AgentCard{}, a2aproto.New(a2aproto.KindTransport, "peerclient", "FetchAgentCard",
			fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, string(body)), nil)
	}

	var card a2aproto.AgentCard
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		return a2aproto.AgentCard{}, a2aproto.New(a2aproto.KindProtocol, "peerclient", "FetchAgentCard", "decode agent card", err)
	}
	return card, nil
}

// SendMessage forwards content under sessionID to the peer's
// "message/send" JSON-RPC method and returns its reply text, matching
// the {taskId, status, result:{message:{content}}} response shape
// pkg/server's own dispatcher produces (spec §4.2: peers speak the
// same A2A endpoint contract as any other agent).
func (c *Client) SendMessage(ctx context.Context, sessionID, content string) (string, error) {
	resp, err := c.call(ctx, "message/send", map[string]any{
		"sessionId": sessionID,
		"message":   map[string]any{"content": content},
	})
	if err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", a2aproto.NewErrorFromRPC(resp.Error)
	}

	result, ok := resp.Result.(map[string]any)
	if !ok {
		return "", a2aproto.New(a2aproto.KindProtocol, "peerclient", "SendMessage", "message/send result is not an object", nil)
	}
	if status, _ := result["status"].(string); status == string(a2aproto.TaskFailed) {
		return "", a2aproto.New(a2aproto.KindRemote, "peerclient", "SendMessage", "peer agent's turn failed", nil)
	}
	inner, ok := result["result"].(map[string]any)
	if !ok {
		return "", a2aproto.New(a2aproto.KindProtocol, "peerclient", "SendMessage", "message/send result missing result object", nil)
	}
	msg, ok := inner["message"].(map[string]any)
	if !ok {
		return "", a2aproto.New(a2aproto.KindProtocol, "peerclient", "SendMessage", "message/send result missing message object", nil)
	}
	content, _ = msg["content"].(string)
	return content, nil
}

func (c *Client) call(ctx context.Context, method string, params any) (*a2aproto.Response, error) {
	var rawParams json.RawMessage
	if params != nil {
		encoded, err := json.Marshal(params)
		if err != nil {
			return nil, a2aproto.New(a2aproto.KindProtocol, "peerclient", "call", "encode params", err)
		}
		rawParams = encoded
	}
	req := a2aproto.Request{JSONRPC: "2.0", ID: 1, Method: method, Params: rawParams}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, a2aproto.New(a2aproto.KindProtocol, "peerclient", "call", "encode request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, a2aproto.New(a2aproto.KindTransport, "peerclient", "call", "build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json, text/event-stream")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, a2aproto.New(a2aproto.KindTimeout, "peerclient", "call", "request context ended", ctx.Err())
		}
		return nil, a2aproto.New(a2aproto.KindTransport, "peerclient", "call", fmt.Sprintf("%s request failed", method), err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(httpResp.Body)
		return nil, a2aproto.New(a2aproto.KindTransport, "peerclient", "call",
			fmt.Sprintf("unexpected status %d: %s", httpResp.StatusCode, string(respBody)), nil)
	}

	if strings.Contains(httpResp.Header.Get("Content-Type"), "text/event-stream") {
		return readSSEResponse(httpResp, c.sseTimeout)
	}

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, a2aproto.New(a2aproto.KindTransport, "peerclient", "call", "read response body", err)
	}
	var resp a2aproto.Response
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, a2aproto.New(a2aproto.KindProtocol, "peerclient", "call", "decode JSON-RPC response", err)
	}
	return &resp, nil
}

// readSSEResponse reads the first complete SSE data: event and decodes
// it as a JSON-RPC response, mirroring pkg/toolclient's framing.
func readSSEResponse(httpResp *http.Response, timeout time.Duration) (*a2aproto.Response, error) {
	type outcome struct {
		resp *a2aproto.Response
		err  error
	}
	done := make(chan outcome, 1)

	go func() {
		defer httpResp.Body.Close()
		raw, err := io.ReadAll(httpResp.Body)
		if err != nil {
			done <- outcome{err: a2aproto.New(a2aproto.KindTransport, "peerclient", "readSSEResponse", "read stream", err)}
			return
		}
		for _, line := range strings.Split(string(raw), "\n") {
			line = strings.TrimSpace(line)
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			var resp a2aproto.Response
			if json.Unmarshal([]byte(data), &resp) == nil {
				done <- outcome{resp: &resp}
				return
			}
		}
		done <- outcome{err: a2aproto.New(a2aproto.KindProtocol, "peerclient", "readSSEResponse", "SSE stream ended without a complete event", nil)}
	}()

	select {
	case o := <-done:
		return o.resp, o.err
	case <-time.After(timeout):
		return nil, a2aproto.New(a2aproto.KindTimeout, "peerclient", "readSSEResponse", "timed out waiting for SSE response", nil)
	}
}
