package main

import (
	"context"

	"github.com/a2afabric/agentrt/pkg/llm"
)

// echoAdapter is a placeholder llm.Adapter satisfying the process
// wiring until a concrete provider is plugged in: concrete LLM
// providers are out of scope for this module (pkg/llm is the
// adapter's contract boundary only). It never requests a capability
// call; it replies with the most recent user message, which is enough
// to exercise the full message/send -> Turn Executor -> Task path end
// to end without a live model.
type echoAdapter struct{}

func (echoAdapter) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	for i := len(req.History) - 1; i >= 0; i-- {
		if req.History[i].Role == llm.RoleUser {
			return llm.Response{FinalText: "echo: " + req.History[i].Content}, nil
		}
	}
	return llm.Response{FinalText: "(no user message found)"}, nil
}
