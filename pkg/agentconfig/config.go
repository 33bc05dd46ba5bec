// Package agentconfig holds the immutable per-process configuration
// of one agent. It is deliberately not YAML- or file-driven: process
// launchers and config loaders are out of scope for this module (see
// SPEC_FULL.md §4.3) — callers build a Config in-process with New.
package agentconfig

import "time"

// Config is the immutable configuration of one agent process (spec
// §3 AgentConfig, §6 configuration surface).
type Config struct {
	AgentID               string
	DisplayName           string
	Version               string
	Greeting              string
	Instructions          string
	Personality           string
	LLMModel              string
	BaseSystemPrompt      string
	Port                  int
	InitialCapabilityURLs []string
	MaxToolCallsPerTurn   int
	TurnDeadline          time.Duration
}

// DefaultMaxToolCallsPerTurn is the recommended default from spec §6.
const DefaultMaxToolCallsPerTurn = 16

// DefaultTurnDeadline bounds a turn when the caller doesn't set one.
const DefaultTurnDeadline = 60 * time.Second

// Option mutates a Config under construction.
type Option func(*Config)

// New builds a Config for agentID, applying options over sane
// defaults.
func New(agentID, displayName string, opts ...Option) *Config {
	cfg := &Config{
		AgentID:             agentID,
		DisplayName:         displayName,
		Version:             "0.1.0",
		MaxToolCallsPerTurn: DefaultMaxToolCallsPerTurn,
		TurnDeadline:        DefaultTurnDeadline,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func WithVersion(v string) Option             { return func(c *Config) { c.Version = v } }
func WithGreeting(g string) Option            { return func(c *Config) { c.Greeting = g } }
func WithInstructions(i string) Option        { return func(c *Config) { c.Instructions = i } }
func WithPersonality(p string) Option         { return func(c *Config) { c.Personality = p } }
func WithLLMModel(m string) Option            { return func(c *Config) { c.LLMModel = m } }
func WithBaseSystemPrompt(p string) Option     { return func(c *Config) { c.BaseSystemPrompt = p } }
func WithPort(p int) Option                   { return func(c *Config) { c.Port = p } }
func WithMaxToolCallsPerTurn(n int) Option     { return func(c *Config) { c.MaxToolCallsPerTurn = n } }
func WithTurnDeadline(d time.Duration) Option  { return func(c *Config) { c.TurnDeadline = d } }
func WithInitialCapabilityURLs(urls ...string) Option {
	return func(c *Config) { c.InitialCapabilityURLs = append([]string{}, urls...) }
}

// SystemPrompt composes the full system prompt: base + personality,
// per spec §4.6 step 2 (the "Available capabilities" clause is
// appended by the Turn Executor, which has the registry snapshot).
func (c *Config) SystemPrompt() string {
	prompt := c.BaseSystemPrompt
	if c.Personality != "" {
		if prompt != "" {
			prompt += "\n\n"
		}
		prompt += c.Personality
	}
	return prompt
}
