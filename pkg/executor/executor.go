// Package executor implements the Turn Executor (spec §4.6): the loop
// that turns one inbound user message into an assistant reply,
// bouncing through the LLM Adapter and the Capability Registry as
// many times as the model asks, bounded by a tool-call budget and the
// turn's external deadline.
package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/a2afabric/agentrt/pkg/a2aproto"
	"github.com/a2afabric/agentrt/pkg/agentconfig"
	"github.com/a2afabric/agentrt/pkg/llm"
	"github.com/a2afabric/agentrt/pkg/registry"
	"github.com/a2afabric/agentrt/pkg/session"
)

// Executor runs turns for one agent process.
type Executor struct {
	sessions *session.Store
	registry *registry.Registry
	adapter  llm.Adapter
	cfg      *agentconfig.Config
}

// New builds an Executor wiring together the session store, capability
// registry, and LLM adapter of one agent.
func New(sessions *session.Store, reg *registry.Registry, adapter llm.Adapter, cfg *agentconfig.Config) *Executor {
	return &Executor{sessions: sessions, registry: reg, adapter: adapter, cfg: cfg}
}

// RunTurn executes the full algorithm of spec §4.6 for one inbound
// message and returns the assistant's reply text. The caller is
// expected to have already transitioned the owning Task to working;
// ctx should carry the turn's deadline and be cancelled cooperatively
// by tasks/cancel (spec §5).
func (e *Executor) RunTurn(ctx context.Context, sessionID, userText string) (string, error) {
	sess := e.sessions.GetOrCreate(sessionID)
	sess.Lock()
	defer sess.Unlock()

	e.sessions.Append(sessionID, a2aproto.ChatTurn{Role: a2aproto.RoleUser, Content: userText})

	systemPrompt := e.buildSystemPrompt()

	calls := 0
	for {
		if err := ctx.Err(); err != nil {
			return "", a2aproto.New(a2aproto.KindCancelled, "executor", "RunTurn", "turn cancelled at suspension point", err)
		}

		history := e.toLLMHistory(e.sessions.Snapshot(sessionID))
		resp, err := e.adapter.Complete(ctx, llm.Request{
			SystemPrompt: systemPrompt,
			History:      history,
			Functions:    e.functionSignatures(),
		})
		if err != nil {
			return "", a2aproto.New(a2aproto.KindLLM, "executor", "RunTurn", "LLM adapter failed", err)
		}

		if resp.Done() {
			e.sessions.Append(sessionID, a2aproto.ChatTurn{Role: a2aproto.RoleAssistant, Content: resp.FinalText})
			return resp.FinalText, nil
		}

		calls++
		if calls > e.cfg.MaxToolCallsPerTurn {
			return "", a2aproto.New(a2aproto.KindCapacityExceeded, "executor", "RunTurn",
				fmt.Sprintf("exceeded %d capability invocations in one turn", e.cfg.MaxToolCallsPerTurn), nil)
		}

		e.sessions.Append(sessionID, a2aproto.ChatTurn{
			Role:          a2aproto.RoleCapabilityCall,
			CapabilityKey: resp.Call.Name,
			Arguments:     resp.Call.Arguments,
		})

		result, invokeErr := e.invoke(ctx, sessionID, resp.Call.Name, resp.Call.Arguments)
		resultTurn := a2aproto.ChatTurn{Role: a2aproto.RoleCapabilityResult, CapabilityKey: resp.Call.Name}
		if invokeErr != nil {
			if coreErr, ok := invokeErr.(*a2aproto.CoreError); ok && coreErr.Kind == a2aproto.KindCancelled {
				return "", invokeErr
			}
			resultTurn.Error = invokeErr.Error()
		} else {
			resultTurn.Result = result
		}
		e.sessions.Append(sessionID, resultTurn)
	}
}

// invoke dispatches one capability call by its registry-global
// function name, per spec §4.3 invoke(). sessionID is the local
// caller's session, threaded through so a peer delegation gets its own
// per-session remote conversation instead of sharing one across every
// local session that calls the same peer.
func (e *Executor) invoke(ctx context.Context, sessionID, capabilityKey string, args map[string]any) (any, error) {
	handle, ok := e.registry.Lookup(capabilityKey)
	if !ok {
		return nil, a2aproto.New(a2aproto.KindUnknownCapability, "executor", "invoke",
			"no capability registered under "+capabilityKey, nil)
	}

	switch handle.Kind {
	case registry.KindToolProvider:
		return e.invokeTool(ctx, handle, capabilityKey, args)
	case registry.KindPeerAgent:
		return e.invokePeer(ctx, handle, sessionID, args)
	default:
		return nil, a2aproto.New(a2aproto.KindUnknownCapability, "executor", "invoke", "handle has no recognized kind", nil)
	}
}

func (e *Executor) invokeTool(ctx context.Context, handle *registry.Handle, capabilityKey string, args map[string]any) (any, error) {
	originalName := capabilityKey
	for i, name := range handle.Names() {
		if name == capabilityKey {
			originalName = handle.Tool.Tools[i].Name
			break
		}
	}
	return handle.Tool.Client.CallTool(ctx, originalName, args)
}

// invokePeer forwards to the peer under the local caller's own
// session id, not the peer's fixed AddressableAs namespacing
// identifier: two distinct local sessions delegating to the same peer
// must land in two distinct remote conversations (spec §4.2, "does not
// share sessions across peers").
func (e *Executor) invokePeer(ctx context.Context, handle *registry.Handle, sessionID string, args map[string]any) (any, error) {
	message, _ := args["message"].(string)
	reply, err := handle.Peer.Client.SendMessage(ctx, sessionID, message)
	if err != nil {
		return nil, err
	}
	return map[string]any{"reply": reply}, nil
}

func (e *Executor) buildSystemPrompt() string {
	var b strings.Builder
	b.WriteString(e.cfg.SystemPrompt())

	summaries := e.registry.List()
	if len(summaries) == 0 {
		return b.String()
	}

	b.WriteString("\n\nAvailable capabilities:")
	for _, s := range summaries {
		for i, name := range s.Names {
			b.WriteString(fmt.Sprintf("\n- %s: %s", name, s.Descriptions[i]))
		}
	}
	return b.String()
}

func (e *Executor) functionSignatures() []llm.FunctionSignature {
	var out []llm.FunctionSignature
	for _, s := range e.registry.List() {
		for i, name := range s.Names {
			var params map[string]any
			if i < len(s.Parameters) {
				params = s.Parameters[i]
			}
			out = append(out, llm.FunctionSignature{
				Name:        name,
				Description: s.Descriptions[i],
				Parameters:  params,
			})
		}
	}
	return out
}

func (e *Executor) toLLMHistory(turns []a2aproto.ChatTurn) []llm.Message {
	out := make([]llm.Message, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case a2aproto.RoleUser:
			out = append(out, llm.Message{Role: llm.RoleUser, Content: t.Content})
		case a2aproto.RoleAssistant:
			out = append(out, llm.Message{Role: llm.RoleAssistant, Content: t.Content})
		case a2aproto.RoleCapabilityCall:
			args, _ := t.Arguments.(map[string]any)
			out = append(out, llm.Message{
				Role: llm.RoleFunctionCall,
				Call: &llm.FunctionCall{Name: t.CapabilityKey, Arguments: args},
			})
		case a2aproto.RoleCapabilityResult:
			content := t.Error
			if content == "" {
				content = fmt.Sprintf("%v", t.Result)
			}
			out = append(out, llm.Message{
				Role:         llm.RoleFunctionResult,
				Content:      content,
				FunctionName: t.CapabilityKey,
			})
		}
	}
	return out
}
