package a2aproto

import "fmt"

// Kind is the closed taxonomy of error kinds a core component can
// produce (spec §7). It is not an `error` itself so that callers can
// switch on it without an `errors.As` round trip when they already
// hold a *CoreError.
type Kind string

const (
	KindTransport         Kind = "TransportError"
	KindRemote            Kind = "RemoteError"
	KindProtocol          Kind = "ProtocolError"
	KindUnknownCapability Kind = "UnknownCapability"
	KindLLM               Kind = "LLMError"
	KindTimeout           Kind = "Timeout"
	KindCancelled         Kind = "Cancelled"
	KindCapacityExceeded  Kind = "CapacityExceeded"
	KindNotFound          Kind = "NotFound"
	KindReject            Kind = "Reject"
)

// CoreError is the single error type every component in this module
// returns. Component and Op name where the error originated (mirrors
// the teacher's AgentRegistryError{Component,Action,Message,Err}
// shape); Code/Data carry remote JSON-RPC error detail when Kind is
// KindRemote.
type CoreError struct {
	Kind      Kind
	Component string
	Op        string
	Message   string
	Code      int
	Data      any
	Err       error
}

func (e *CoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s:%s] %s: %s: %v", e.Component, e.Op, e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s:%s] %s: %s", e.Component, e.Op, e.Kind, e.Message)
}

func (e *CoreError) Unwrap() error { return e.Err }

// New builds a CoreError. err may be nil.
func New(kind Kind, component, op, message string, err error) *CoreError {
	return &CoreError{Kind: kind, Component: component, Op: op, Message: message, Err: err}
}

// Is allows errors.Is(err, ErrKind(k)) style matching against kind
// alone, without comparing Component/Op/Message.
func (e *CoreError) Is(target error) bool {
	other, ok := target.(*CoreError)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// ErrKind builds a sentinel CoreError carrying only a Kind, suitable
// for errors.Is comparisons.
func ErrKind(k Kind) *CoreError { return &CoreError{Kind: k} }
