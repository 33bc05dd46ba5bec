// Package a2aproto defines the wire-level vocabulary of the A2A
// protocol: agent cards, tasks, messages, and conversation turns. It
// holds no behavior of its own — it is the shared noun set that
// pkg/session, pkg/task, pkg/registry, and pkg/server build on.
package a2aproto

import "time"

// AgentCard is an agent's public self-description, served at
// /.well-known/agent-card.json.
type AgentCard struct {
	Name              string   `json:"name"`
	AgentID           string   `json:"agentId"`
	Description       string   `json:"description"`
	Greeting          string   `json:"greeting,omitempty"`
	Version           string   `json:"version,omitempty"`
	Skills            []Skill  `json:"skills"`
	Transport         string   `json:"transport"`
	Auth              string   `json:"auth"`
	SupportsStreaming bool     `json:"supportsStreaming"`
	SupportedMethods  []string `json:"supportedMethods"`
}

// Skill is one capability advertised on an AgentCard, projected from
// either a tool provider's tool descriptors or a peer agent's own
// card.
type Skill struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// TaskState is the lifecycle state of a Task.
type TaskState string

const (
	TaskSubmitted TaskState = "submitted"
	TaskWorking   TaskState = "working"
	TaskCompleted TaskState = "completed"
	TaskFailed    TaskState = "failed"
	TaskCancelled TaskState = "cancelled"
)

// IsTerminal reports whether no further transition of this state is
// legal.
func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskCancelled:
		return true
	}
	return false
}

// Task is the lifecycle record of one inbound request.
type Task struct {
	ID             string    `json:"taskId"`
	SessionID      string    `json:"sessionId"`
	Status         TaskState `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
	InboundMessage string    `json:"inboundMessage"`
	OutboundReply  string    `json:"outboundReply,omitempty"`
	ErrorKind      string    `json:"errorKind,omitempty"`
}

// Role identifies the speaker of a ChatTurn.
type Role string

const (
	RoleUser             Role = "user"
	RoleAssistant        Role = "assistant"
	RoleCapabilityCall   Role = "capability-call"
	RoleCapabilityResult Role = "capability-result"
)

// ChatTurn is one entry in a session's append-only history.
type ChatTurn struct {
	Role          Role      `json:"role"`
	Content       string    `json:"content,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	CapabilityKey string    `json:"capabilityKey,omitempty"`
	Arguments     any       `json:"arguments,omitempty"`
	Result        any       `json:"result,omitempty"`
	Error         string    `json:"error,omitempty"`
}

// HistoryAction identifies a registry mutation kind.
type HistoryAction string

const (
	HistoryAdd    HistoryAction = "add"
	HistoryRemove HistoryAction = "remove"
)

// HistoryEntry is one append-only record in the capability audit log.
type HistoryEntry struct {
	Action            HistoryAction     `json:"action"`
	URL               string            `json:"url"`
	Timestamp         time.Time         `json:"timestamp"`
	SessionPreserved  bool              `json:"sessionPreserved"`
	CapabilitySummary map[string]string `json:"capabilitySummary,omitempty"`
}

// CapabilitySummary is the projection of one attached capability
// returned by list().
type CapabilitySummary struct {
	URL          string           `json:"url"`
	Kind         string           `json:"kind"` // "tool" or "peer"
	Names        []string         `json:"names"`
	Descriptions []string         `json:"descriptions"`
	Parameters   []map[string]any `json:"parameters,omitempty"` // JSON Schema per name, nil where unknown (e.g. peer skills)
}

// ToolDescriptor describes one callable function exposed by a tool
// provider.
type ToolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema,omitempty"`
}
