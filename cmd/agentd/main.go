// Command agentd is the illustrative composition root for one A2A
// agent process: it wires AgentConfig, the session store, the task
// manager, the capability registry, an LLM adapter, the turn
// executor, and the HTTP endpoint together, then serves until signaled
// to stop (teacher: cmd/hector's ServeCmd.Run wiring and shutdown
// style, stripped of config-file loading and hot-reload, which are
// out of scope here — this module builds its Config in-process).
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/a2afabric/agentrt/pkg/agentconfig"
	"github.com/a2afabric/agentrt/pkg/clock"
	"github.com/a2afabric/agentrt/pkg/executor"
	"github.com/a2afabric/agentrt/pkg/logging"
	"github.com/a2afabric/agentrt/pkg/registry"
	"github.com/a2afabric/agentrt/pkg/server"
	"github.com/a2afabric/agentrt/pkg/session"
	"github.com/a2afabric/agentrt/pkg/task"
)

func main() {
	var (
		agentID      = flag.String("agent-id", "agent-1", "stable identifier for this agent, used for self-loop detection")
		displayName  = flag.String("display-name", "Agent", "human-facing name served on the agent card")
		instructions = flag.String("instructions", "You are a helpful agent.", "base system prompt")
		greeting     = flag.String("greeting", "", "optional greeting shown on the agent card")
		port         = flag.Int("port", 8080, "HTTP port to listen on")
		maxCalls     = flag.Int("max-tool-calls", agentconfig.DefaultMaxToolCallsPerTurn, "capability invocations allowed per turn before CapacityExceeded")
		turnDeadline = flag.Duration("turn-deadline", agentconfig.DefaultTurnDeadline, "wall-clock budget for one full turn")
		logLevel     = flag.String("log-level", "info", "debug, info, warn, or error")
		capURLs      = flag.String("capabilities", "", "comma-separated tool-provider/peer-agent URLs to attach at startup")
	)
	flag.Parse()

	logger := logging.New(logging.ParseLevel(*logLevel))

	cfg := agentconfig.New(*agentID, *displayName,
		agentconfig.WithInstructions(*instructions),
		agentconfig.WithBaseSystemPrompt(*instructions),
		agentconfig.WithGreeting(*greeting),
		agentconfig.WithPort(*port),
		agentconfig.WithMaxToolCallsPerTurn(*maxCalls),
		agentconfig.WithTurnDeadline(*turnDeadline),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	realClock := clock.Real{}
	sessions := session.NewStore(realClock)
	tasks := task.NewManager(realClock)
	reg := registry.New(cfg.AgentID, realClock)

	for _, url := range splitNonEmpty(*capURLs) {
		if _, err := reg.Add(ctx, url); err != nil {
			logger.Warn("failed to attach startup capability", "url", url, "error", err)
		}
	}

	exec := executor.New(sessions, reg, echoAdapter{}, cfg)
	srv := server.New(cfg, tasks, reg, exec, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server exited", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
		}
	}
}

func splitNonEmpty(csv string) []string {
	var out []string
	for _, part := range strings.Split(csv, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
