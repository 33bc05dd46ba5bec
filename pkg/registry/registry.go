// Package registry implements the Capability Registry (spec §4.3): the
// single in-process source of truth for what one agent currently knows
// how to call, holding two kinds of handle (tool provider, peer agent)
// in insertion order behind one mutex, with RegistryChanged delivered
// synchronously before add/remove returns.
//
// Generalizes the teacher's map-only registry.BaseRegistry[T] (see
// pkg/registry/registry.go) into an order-preserving table — the
// teacher's BaseRegistry never promised iteration order, but spec §4.3
// requires the function-name list exposed to the LLM to be
// deterministic insertion order, so List/History here walk a parallel
// slice rather than ranging a map.
package registry

import (
	"context"
	"regexp"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/a2afabric/agentrt/pkg/a2aproto"
	"github.com/a2afabric/agentrt/pkg/clock"
	"github.com/a2afabric/agentrt/pkg/peerclient"
	"github.com/a2afabric/agentrt/pkg/toolclient"
)

// Kind distinguishes the two capability variants a Handle can hold.
type Kind string

const (
	KindToolProvider Kind = "tool"
	KindPeerAgent    Kind = "peer"
)

// ToolProviderHandle is the installed state of a tool-provider
// capability.
type ToolProviderHandle struct {
	DeclaredName string
	Tools        []a2aproto.ToolDescriptor
	Client       *toolclient.Client
}

// PeerAgentHandle is the installed state of a peer-agent capability.
type PeerAgentHandle struct {
	Card          a2aproto.AgentCard
	AddressableAs string
	Client        *peerclient.Client
}

// Handle is one entry in the registry: exactly one of Tool or Peer is
// set, selected by Kind.
type Handle struct {
	URL  string
	Kind Kind
	Tool *ToolProviderHandle
	Peer *PeerAgentHandle

	// names are the capability-scoped function names this handle
	// injects into the turn executor, in declaration order.
	names []string
}

// Names returns the callable function names this handle contributes.
func (h *Handle) Names() []string { return h.names }

// release drops this handle's transport-level state on every exit
// path (spec §4.3: handles expose synchronous release() semantics). A
// tool provider forgets its captured session id; a peer agent holds no
// session state of its own to release.
func (h *Handle) release() {
	if h.Kind == KindToolProvider && h.Tool != nil && h.Tool.Client != nil {
		h.Tool.Client.CloseSession()
	}
}

// AddOutcome is the result of a successful Add call.
type AddOutcome struct {
	Changed bool
	Handle  Handle
}

// RemoveOutcome is the result of a successful Remove call.
type RemoveOutcome struct {
	Found bool
}

// Listener is notified synchronously after every successful add or
// remove, before the call returns to its own caller (spec §4.3
// "Listener contract").
type Listener func(a2aproto.HistoryEntry)

// Registry is the process-wide capability table for one agent.
type Registry struct {
	selfAgentID string
	clock       clock.Clock

	newToolClient func(url string) *toolclient.Client
	newPeerClient func(url string) *peerclient.Client

	group singleflight.Group

	mu        sync.Mutex
	order     []string
	handles   map[string]*Handle
	nameOwner map[string]string // function name -> owning url, for collision detection
	history   []a2aproto.HistoryEntry
	listeners []Listener
}

// Option configures a Registry.
type Option func(*Registry)

// WithToolClientFactory overrides how toolclient.Client values are
// constructed, for testing.
func WithToolClientFactory(f func(url string) *toolclient.Client) Option {
	return func(r *Registry) { r.newToolClient = f }
}

// WithPeerClientFactory overrides how peerclient.Client values are
// constructed, for testing.
func WithPeerClientFactory(f func(url string) *peerclient.Client) Option {
	return func(r *Registry) { r.newPeerClient = f }
}

// New creates an empty Registry for the agent identified by
// selfAgentID. A probed peer whose own card reports this same
// agent_id is a self-loop and is rejected with Reject (spec §9
// open-question decision).
func New(selfAgentID string, c clock.Clock, opts ...Option) *Registry {
	if c == nil {
		c = clock.Real{}
	}
	r := &Registry{
		selfAgentID:   selfAgentID,
		clock:         c,
		handles:       make(map[string]*Handle),
		nameOwner:     make(map[string]string),
		newToolClient: func(url string) *toolclient.Client { return toolclient.New(url) },
		newPeerClient: func(url string) *peerclient.Client { return peerclient.New(url) },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnChange subscribes to RegistryChanged notifications.
func (r *Registry) OnChange(l Listener) {
	r.mu.Lock()
	r.listeners = append(r.listeners, l)
	r.mu.Unlock()
}

// Add resolves url against the remote endpoint and installs it as a
// PeerAgent if it answers agent-card discovery, else as a
// ToolProvider if it answers tools/list, else fails with
// TransportError. Concurrent Add calls for the same url are collapsed
// by singleflight so only one probe round-trip happens; every caller
// observes the same outcome.
func (r *Registry) Add(ctx context.Context, url string) (AddOutcome, error) {
	v, err, _ := r.group.Do(url, func() (any, error) {
		return r.doAdd(ctx, url)
	})
	if err != nil {
		return AddOutcome{}, err
	}
	return v.(AddOutcome), nil
}

func (r *Registry) doAdd(ctx context.Context, url string) (AddOutcome, error) {
	r.mu.Lock()
	if existing, ok := r.handles[url]; ok {
		out := AddOutcome{Changed: false, Handle: *existing}
		r.appendHistoryLocked(a2aproto.HistoryAdd, url, summarize(existing))
		r.notifyLocked(r.history[len(r.history)-1])
		r.mu.Unlock()
		return out, nil
	}
	r.mu.Unlock()

	if handle, ok := r.probePeer(ctx, url); ok {
		if handle.Peer.Card.AgentID == r.selfAgentID {
			return AddOutcome{}, a2aproto.New(a2aproto.KindReject, "registry", "Add",
				"refusing to add self-loop peer "+url, nil)
		}
		return r.install(handle)
	}
	if handle, ok := r.probeTool(ctx, url); ok {
		return r.install(handle)
	}

	return AddOutcome{}, a2aproto.New(a2aproto.KindTransport, "registry", "Add",
		"url "+url+" answered neither agent-card discovery nor tools/list within the deadline", nil)
}

func (r *Registry) probePeer(ctx context.Context, url string) (*Handle, bool) {
	client := r.newPeerClient(url)
	card, err := client.FetchAgentCard(ctx)
	if err != nil || card.AgentID == "" {
		return nil, false
	}
	addressable := addressableName(card.Name)
	names := make([]string, 0, len(card.Skills))
	for _, s := range card.Skills {
		names = append(names, s.Name)
	}
	return &Handle{
		URL:  url,
		Kind: KindPeerAgent,
		Peer: &PeerAgentHandle{
			Card:          card,
			AddressableAs: addressable,
			Client:        client,
		},
		names: names,
	}, true
}

func (r *Registry) probeTool(ctx context.Context, url string) (*Handle, bool) {
	client := r.newToolClient(url)
	tools, err := client.ListTools(ctx)
	if err != nil {
		return nil, false
	}
	if openErr := client.OpenSession(ctx); openErr != nil {
		// Stateless servers may not implement initialize at all; a
		// failed handshake here does not abort the add, only the
		// session id carry-forward (spec §4.3 step 2: handshake "if
		// and only if the server returned a session id").
		client.CloseSession()
	}
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.Name)
	}
	return &Handle{
		URL:  url,
		Kind: KindToolProvider,
		Tool: &ToolProviderHandle{
			Tools:  tools,
			Client: client,
		},
		names: names,
	}, true
}

// install assigns collision-free capability-scoped names, appends the
// handle to the registry in insertion order, and fires a
// RegistryChanged notification.
func (r *Registry) install(handle *Handle) (AddOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	scope := scopeKey(handle.URL)
	resolved := make([]string, len(handle.names))
	for i, name := range handle.names {
		final := name
		if owner, taken := r.nameOwner[final]; taken && owner != handle.URL {
			final = scope + "__" + name
		}
		resolved[i] = final
		r.nameOwner[final] = handle.URL
	}
	handle.names = resolved

	r.handles[handle.URL] = handle
	r.order = append(r.order, handle.URL)

	r.appendHistoryLocked(a2aproto.HistoryAdd, handle.URL, summarize(handle))
	r.notifyLocked(r.history[len(r.history)-1])

	return AddOutcome{Changed: true, Handle: *handle}, nil
}

// Remove detaches url's handle if present and releases its names.
// Removing an absent url is a no-op that still records history (spec
// §4.3).
func (r *Registry) Remove(url string) RemoveOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	handle, ok := r.handles[url]
	if ok {
		delete(r.handles, url)
		for i, u := range r.order {
			if u == url {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
		for _, name := range handle.names {
			delete(r.nameOwner, name)
		}
		handle.release()
	}

	r.appendHistoryLocked(a2aproto.HistoryRemove, url, nil)
	r.notifyLocked(r.history[len(r.history)-1])

	return RemoveOutcome{Found: ok}
}

// List returns an insertion-ordered snapshot of every installed
// capability.
func (r *Registry) List() []a2aproto.CapabilitySummary {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]a2aproto.CapabilitySummary, 0, len(r.order))
	for _, url := range r.order {
		h := r.handles[url]
		out = append(out, *summarize(h))
	}
	return out
}

// History returns the full append-only audit log.
func (r *Registry) History() []a2aproto.HistoryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]a2aproto.HistoryEntry, len(r.history))
	copy(out, r.history)
	return out
}

// Lookup resolves a capability-scoped function name to its owning
// Handle, for the Turn Executor's invoke step.
func (r *Registry) Lookup(name string) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	url, ok := r.nameOwner[name]
	if !ok {
		return nil, false
	}
	h := r.handles[url]
	return h, h != nil
}

func (r *Registry) appendHistoryLocked(action a2aproto.HistoryAction, url string, summary *a2aproto.CapabilitySummary) {
	entry := a2aproto.HistoryEntry{
		Action:           action,
		URL:              url,
		Timestamp:        r.clock.Now(),
		SessionPreserved: true,
	}
	if summary != nil {
		entry.CapabilitySummary = make(map[string]string, len(summary.Names))
		for i, name := range summary.Names {
			entry.CapabilitySummary[name] = summary.Descriptions[i]
		}
	}
	r.history = append(r.history, entry)
}

func (r *Registry) notifyLocked(entry a2aproto.HistoryEntry) {
	for _, l := range r.listeners {
		l(entry)
	}
}

func summarize(h *Handle) *a2aproto.CapabilitySummary {
	s := &a2aproto.CapabilitySummary{URL: h.URL}
	switch h.Kind {
	case KindToolProvider:
		s.Kind = "tool"
		for i, t := range h.Tool.Tools {
			s.Names = append(s.Names, h.names[i])
			s.Descriptions = append(s.Descriptions, t.Description)
			s.Parameters = append(s.Parameters, t.InputSchema)
		}
	case KindPeerAgent:
		s.Kind = "peer"
		for i, sk := range h.Peer.Card.Skills {
			s.Names = append(s.Names, h.names[i])
			s.Descriptions = append(s.Descriptions, sk.Description)
			s.Parameters = append(s.Parameters, nil)
		}
	}
	return s
}

var nonIdentifierChar = regexp.MustCompile(`[^A-Za-z0-9_]`)

// addressableName derives a valid identifier from a peer's display
// name by replacing every character outside [A-Za-z0-9_] with an
// underscore (spec §4.3 step 1).
func addressableName(displayName string) string {
	return nonIdentifierChar.ReplaceAllString(displayName, "_")
}

// scopeKey derives the capability-scoped disambiguation prefix used to
// resolve function-name collisions (spec §3 invariant), grounded on
// the teacher's extractAgentType convention of deriving a short key
// from an identifier (pkg/agent/registry.go).
func scopeKey(url string) string {
	return nonIdentifierChar.ReplaceAllString(url, "_")
}
