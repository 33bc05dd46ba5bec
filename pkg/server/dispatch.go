package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/a2afabric/agentrt/pkg/a2aproto"
)

// handleRPC decodes one JSON-RPC 2.0 envelope and routes it through
// the method table (spec §4.7, §6).
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	var req a2aproto.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusOK, a2aproto.Response{JSONRPC: "2.0", Error: &a2aproto.RPCError{
			Code: a2aproto.CodeParseError, Message: "malformed JSON-RPC request",
		}})
		return
	}

	handler, ok := s.methods()[req.Method]
	if !ok {
		respondJSON(w, http.StatusOK, a2aproto.Response{JSONRPC: "2.0", ID: req.ID, Error: &a2aproto.RPCError{
			Code: a2aproto.CodeMethodNotFound, Message: "unknown method " + req.Method,
		}})
		return
	}

	result, rpcErr := handler(r.Context(), req.Params)
	if rpcErr != nil {
		respondJSON(w, http.StatusOK, a2aproto.Response{JSONRPC: "2.0", ID: req.ID, Error: rpcErr})
		return
	}
	respondJSON(w, http.StatusOK, a2aproto.Response{JSONRPC: "2.0", ID: req.ID, Result: result})
}

type methodHandler func(ctx context.Context, params json.RawMessage) (any, *a2aproto.RPCError)

func (s *Server) methods() map[string]methodHandler {
	return map[string]methodHandler{
		"message/send": s.handleMessageSend,
		"send-task":    s.handleMessageSend,
		"tasks/get":    s.handleTasksGet,
		"tasks/cancel": s.handleTasksCancel,

		"tools/add":     s.handleCapabilityAdd,
		"tools/remove":  s.handleCapabilityRemove,
		"tools/list":    s.handleCapabilityList,
		"tools/history": s.handleCapabilityHistory,

		"agents/add":     s.handleCapabilityAdd,
		"agents/remove":  s.handleCapabilityRemove,
		"agents/list":    s.handleCapabilityList,
		"agents/history": s.handleCapabilityHistory,
	}
}

func rejectError(message string) *a2aproto.RPCError {
	return &a2aproto.RPCError{Code: a2aproto.JSONRPCCodeForKind(a2aproto.KindReject), Message: message}
}

func coreErrorToRPC(err error) *a2aproto.RPCError {
	coreErr, ok := err.(*a2aproto.CoreError)
	if !ok {
		return &a2aproto.RPCError{Code: a2aproto.CodeInternalError, Message: err.Error()}
	}
	return &a2aproto.RPCError{Code: a2aproto.JSONRPCCodeForKind(coreErr.Kind), Message: coreErr.Error()}
}

// sendMessageParams covers both message/send's {message:{content}} and
// the legacy send-task's {message:{role, parts:[{text}]}} shapes,
// canonicalized to a single string at this decode boundary (spec §9
// open question decision).
type sendMessageParams struct {
	SessionID string `json:"sessionId"`
	Message   struct {
		Content string `json:"content"`
		Parts   []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"message"`
}

func (p sendMessageParams) text() string {
	if p.Message.Content != "" {
		return p.Message.Content
	}
	var parts []string
	for _, part := range p.Message.Parts {
		if part.Text != "" {
			parts = append(parts, part.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func (s *Server) handleMessageSend(ctx context.Context, raw json.RawMessage) (any, *a2aproto.RPCError) {
	var params sendMessageParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, rejectError("malformed message/send params")
		}
	}
	text := params.text()
	if params.SessionID == "" || text == "" {
		return nil, rejectError("message/send requires sessionId and non-empty message text")
	}

	taskID, taskCtx := s.tasks.Create(ctx, params.SessionID, text)
	if err := s.tasks.Transition(taskID, a2aproto.TaskWorking, "", ""); err != nil {
		return nil, &a2aproto.RPCError{Code: a2aproto.CodeInternalError, Message: err.Error()}
	}

	turnCtx, cancel := context.WithTimeout(taskCtx, s.cfg.TurnDeadline)
	defer cancel()

	reply, runErr := s.executor.RunTurn(turnCtx, params.SessionID, text)
	if runErr != nil {
		errKind := "InternalError"
		if coreErr, ok := runErr.(*a2aproto.CoreError); ok {
			errKind = string(coreErr.Kind)
		}

		// A concurrent tasks/cancel may already have moved this task
		// straight to Cancelled (task.go's Cancel sets status directly,
		// bypassing Transition's legality check), which makes the
		// submitted/working-only Failed transition illegal and panics.
		// Re-read the task and only attempt the transition if it's
		// still non-terminal.
		t, getErr := s.tasks.Get(taskID)
		if getErr == nil && !t.Status.IsTerminal() {
			_ = s.tasks.Transition(taskID, a2aproto.TaskFailed, "", errKind)
			t, _ = s.tasks.Get(taskID)
		}
		return map[string]any{
			"taskId": taskID,
			"status": t.Status,
			"result": map[string]any{"message": map[string]any{"role": "agent", "content": "sorry, that request failed: " + errKind}},
		}, nil
	}

	if err := s.tasks.Transition(taskID, a2aproto.TaskCompleted, reply, ""); err != nil {
		return nil, &a2aproto.RPCError{Code: a2aproto.CodeInternalError, Message: err.Error()}
	}
	return map[string]any{
		"taskId": taskID,
		"status": a2aproto.TaskCompleted,
		"result": map[string]any{"message": map[string]any{"role": "agent", "content": reply}},
	}, nil
}

type taskIDParams struct {
	TaskID string `json:"taskId"`
}

func (s *Server) handleTasksGet(ctx context.Context, raw json.RawMessage) (any, *a2aproto.RPCError) {
	var params taskIDParams
	if err := json.Unmarshal(raw, &params); err != nil || params.TaskID == "" {
		return nil, rejectError("tasks/get requires taskId")
	}
	t, err := s.tasks.Get(params.TaskID)
	if err != nil {
		return nil, coreErrorToRPC(err)
	}
	return t, nil
}

func (s *Server) handleTasksCancel(ctx context.Context, raw json.RawMessage) (any, *a2aproto.RPCError) {
	var params taskIDParams
	if err := json.Unmarshal(raw, &params); err != nil || params.TaskID == "" {
		return nil, rejectError("tasks/cancel requires taskId")
	}
	outcome, err := s.tasks.Cancel(params.TaskID)
	if err != nil {
		return nil, coreErrorToRPC(err)
	}
	return map[string]any{"taskId": params.TaskID, "status": outcome}, nil
}

type urlParams struct {
	URL string `json:"url"`
}

func (s *Server) handleCapabilityAdd(ctx context.Context, raw json.RawMessage) (any, *a2aproto.RPCError) {
	var params urlParams
	if err := json.Unmarshal(raw, &params); err != nil || params.URL == "" {
		return nil, rejectError("add requires url")
	}
	outcome, err := s.registry.Add(ctx, params.URL)
	if err != nil {
		return nil, coreErrorToRPC(err)
	}
	return map[string]any{
		"url":       params.URL,
		"kind":      string(outcome.Handle.Kind),
		"functions": outcome.Handle.Names(),
	}, nil
}

func (s *Server) handleCapabilityRemove(ctx context.Context, raw json.RawMessage) (any, *a2aproto.RPCError) {
	var params urlParams
	if err := json.Unmarshal(raw, &params); err != nil || params.URL == "" {
		return nil, rejectError("remove requires url")
	}
	outcome := s.registry.Remove(params.URL)
	return map[string]any{"url": params.URL, "removed": outcome.Found}, nil
}

func (s *Server) handleCapabilityList(ctx context.Context, raw json.RawMessage) (any, *a2aproto.RPCError) {
	return s.registry.List(), nil
}

func (s *Server) handleCapabilityHistory(ctx context.Context, raw json.RawMessage) (any, *a2aproto.RPCError) {
	return s.registry.History(), nil
}
