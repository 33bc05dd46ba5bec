// Package server implements the A2A Endpoint, JSON-RPC Dispatcher, and
// Agent Card Builder (spec §4.7): the HTTP surface one agent exposes
// for discovery and inbound message routing. Route registration and
// middleware style are grounded on the teacher's a2a/server.go
// (corsMiddleware/loggingMiddleware, respondJSON), generalized onto
// chi (already the teacher's router of choice in
// pkg/transport/http_metrics_middleware.go) instead of the teacher's
// bare http.ServeMux, since chi's route tree is a better fit for the
// JSON-RPC single-POST-endpoint-plus-discovery-GET shape here.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/a2afabric/agentrt/pkg/a2aproto"
	"github.com/a2afabric/agentrt/pkg/agentconfig"
	"github.com/a2afabric/agentrt/pkg/executor"
	"github.com/a2afabric/agentrt/pkg/registry"
	"github.com/a2afabric/agentrt/pkg/task"
)

// supportedMethods is the enumerated method list advertised on the
// agent card (spec §3 AgentCard.supported_methods).
var supportedMethods = []string{
	"message/send", "send-task",
	"tasks/get", "tasks/cancel",
	"tools/add", "tools/remove", "tools/list", "tools/history",
	"agents/add", "agents/remove", "agents/list", "agents/history",
}

// Server is one agent's HTTP surface.
type Server struct {
	cfg      *agentconfig.Config
	tasks    *task.Manager
	registry *registry.Registry
	executor *executor.Executor
	logger   *slog.Logger

	httpServer *http.Server

	cardMu     sync.Mutex
	cardDirty  bool
	cachedCard a2aproto.AgentCard
}

// New wires a Server around the given components. It subscribes to
// RegistryChanged so the cached agent card is invalidated the moment a
// capability is added or removed (spec §4.7, §8 property 5).
func New(cfg *agentconfig.Config, tasks *task.Manager, reg *registry.Registry, exec *executor.Executor, logger *slog.Logger) *Server {
	s := &Server{cfg: cfg, tasks: tasks, registry: reg, executor: exec, logger: logger, cardDirty: true}
	reg.OnChange(func(a2aproto.HistoryEntry) {
		s.cardMu.Lock()
		s.cardDirty = true
		s.cardMu.Unlock()
	})
	return s
}

// Handler returns the routed http.Handler, exported so it can be
// wrapped in an httptest.Server without binding a real port.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.loggingMiddleware)
	r.Use(s.corsMiddleware)
	r.Get("/.well-known/agent-card.json", s.handleAgentCard)
	r.Post("/", s.handleRPC)
	r.Get("/ws/console", s.handleDevConsole)
	return r
}

// Start binds the configured port and serves until the process is
// asked to stop. It blocks, matching http.Server.ListenAndServe's
// contract.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Port),
		Handler: s.Handler(),
	}
	s.logger.Info("agent listening", "agent_id", s.cfg.AgentID, "port", s.cfg.Port)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests until ctx's deadline, then closes
// listeners forcibly (spec §5: "Process shutdown drains in-flight
// turns up to a grace deadline, then cancels forcibly and releases all
// transport state").
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Warn("graceful shutdown deadline exceeded, closing forcibly", "error", err)
		return s.httpServer.Close()
	}
	return nil
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("http request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleAgentCard(w http.ResponseWriter, r *http.Request) {
	s.cardMu.Lock()
	if s.cardDirty {
		s.cachedCard = s.buildCard()
		s.cardDirty = false
	}
	card := s.cachedCard
	s.cardMu.Unlock()

	respondJSON(w, http.StatusOK, card)
}

// buildCard projects skills from the current registry snapshot. Each
// tool's declared name becomes one skill; each peer agent contributes
// one skill per entry in its own cached card, already namespaced by
// the registry's collision-resolution prefixing (spec §4.7).
func (s *Server) buildCard() a2aproto.AgentCard {
	var skills []a2aproto.Skill
	for _, summary := range s.registry.List() {
		for i, name := range summary.Names {
			skills = append(skills, a2aproto.Skill{Name: name, Description: summary.Descriptions[i]})
		}
	}
	return a2aproto.AgentCard{
		Name:              s.cfg.DisplayName,
		AgentID:           s.cfg.AgentID,
		Description:       s.cfg.Instructions,
		Greeting:          s.cfg.Greeting,
		Version:           s.cfg.Version,
		Skills:            skills,
		Transport:         "http+json-rpc",
		Auth:              "none",
		SupportsStreaming: false,
		SupportedMethods:  supportedMethods,
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
