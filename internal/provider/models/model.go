package models

import (
	"github.com/orderdeskai/orderdesk/internal/orchestrator/models"
)

// GenerateRequest encapsulates all parameters for a generation request.
type GenerateRequest struct {
	// Prompt is the input for this call. For structured calls it carries the
	// full composed directive; for direct responses it may be empty with the
	// conversation carried in History.
	Prompt string

	// History contains prior conversation turns, oldest first.
	History []models.Message

	// SystemInstruction steers the model independently of the conversation.
	SystemInstruction string

	// Config contains optional generation parameters.
	Config *GenerateConfig
}

// GenerateConfig contains optional generation parameters.
// Pointer fields distinguish "not set" from a zero value.
type GenerateConfig struct {
	Temperature   *float32
	TopP          *float32
	StopSequences []string

	// ResponseMIMEType requests a structured output mode, e.g.
	// "application/json" for machine-parseable replies.
	ResponseMIMEType string

	// ResponseSchema constrains structured output when ResponseMIMEType is
	// "application/json".
	ResponseSchema *ParameterSchema
}

// GenerateResponse contains the model's response and metadata.
type GenerateResponse struct {
	// Text is the generated response body.
	Text string

	// Metadata contains information about the generation.
	Metadata ResponseMetadata
}

// ResponseMetadata contains information about the generation.
type ResponseMetadata struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	ModelUsed        string
}

// ParameterSchema maps directly to standard JSON Schema.
type ParameterSchema struct {
	Type       string                    `json:"type"`
	Properties map[string]PropertySchema `json:"properties"`
	Required   []string                  `json:"required,omitempty"`
}

// PropertySchema defines a single parameter property.
type PropertySchema struct {
	Type        string          `json:"type"`
	Description string          `json:"description,omitempty"`
	Enum        []string        `json:"enum,omitempty"`
	Items       *PropertySchema `json:"items,omitempty"`
	Nullable    bool            `json:"nullable,omitempty"`
}
