package models

import "strings"

// Message represents a single message in the conversation history
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Action is the single step the agent takes for a decision point.
type Action string

const (
	ActionExtractDetails  Action = "EXTRACT_DETAILS"
	ActionQueryStatus     Action = "QUERY_STATUS"
	ActionHandleException Action = "HANDLE_EXCEPTION"
	ActionRespondDirectly Action = "RESPOND_DIRECTLY"
)

// Valid reports whether a is one of the four known actions.
func (a Action) Valid() bool {
	switch a {
	case ActionExtractDetails, ActionQueryStatus, ActionHandleException, ActionRespondDirectly:
		return true
	}
	return false
}

// Decision is the output of the decision policy for one turn.
type Decision struct {
	Action    Action `json:"action"`
	Reasoning string `json:"reasoning"`
}

// ConversationContext accumulates order details across turns.
// It is owned and mutated only by the orchestrator; capabilities and the
// decision policy read snapshots of it.
type ConversationContext struct {
	OrderNumber      string        `json:"order_number,omitempty"`
	OrderType        string        `json:"order_type,omitempty"`
	LastErrorDetails *StatusResult `json:"last_error_details,omitempty"`
}

// HasOrderDetails reports whether both fields needed for a status query are known.
func (c ConversationContext) HasOrderDetails() bool {
	return c.OrderNumber != "" && c.OrderType != ""
}

// Status values reported by the status-query capability.
const (
	StatusSuccess  = "success"
	StatusError    = "error"
	StatusNotFound = "not_found"
)

// ExtractResult is the outcome of the detail-extraction capability.
// A failure inside the capability is reported via Err, never as a Go error.
type ExtractResult struct {
	OrderNumber   string `json:"order_number,omitempty"`
	OrderType     string `json:"order_type,omitempty"`
	StatusMessage string `json:"status_message,omitempty"`
	Err           string `json:"error,omitempty"`
}

// StatusResult is the outcome of the status-query capability.
type StatusResult struct {
	Status        string         `json:"status"`
	OrderNumber   string         `json:"order_number,omitempty"`
	OrderType     string         `json:"order_type,omitempty"`
	BackendStatus string         `json:"order_status_from_backend,omitempty"`
	Data          map[string]any `json:"data,omitempty"`
	ErrorType     string         `json:"error_type,omitempty"`
	Message       string         `json:"message,omitempty"`
	Err           string         `json:"error,omitempty"`
}

// ExceptionResult is the outcome of the exception-handling capability.
// UserMessage is always populated, falling back to a fixed message when the
// model path fails; Err then carries the internal failure.
type ExceptionResult struct {
	UserMessage      string   `json:"user_message"`
	SuggestedActions []string `json:"suggested_actions,omitempty"`
	Err              string   `json:"error,omitempty"`
	RawResponse      string   `json:"raw_response,omitempty"`
}

// CapabilityUnavailableMarker tags Err strings that mean the capability
// itself cannot run (model client missing, backend unreachable), as opposed
// to an ordinary negative result. The transport layer treats these as a
// degraded-service condition.
const CapabilityUnavailableMarker = "capability unavailable"

// IsCapabilityUnavailable reports whether an Err string marks a structural
// capability failure rather than a domain-level problem.
func IsCapabilityUnavailable(errStr string) bool {
	return strings.Contains(errStr, CapabilityUnavailableMarker)
}
