package capability

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/orderdeskai/orderdesk/internal/orchestrator/models"
	provider "github.com/orderdeskai/orderdesk/internal/provider/models"
	"github.com/rs/zerolog"
)

const exceptionSystemPrompt = `You are a helpful assistant for resolving order issues.
You always respond in the specified JSON format.`

// ModelExceptionHandler implements ExceptionHandler using a structured
// language-model call, with fixed fallback messages when the model path
// is unavailable or its output cannot be parsed.
type ModelExceptionHandler struct {
	provider provider.Provider
	logger   zerolog.Logger
}

// NewModelExceptionHandler creates a handler backed by the given provider.
func NewModelExceptionHandler(p provider.Provider, logger zerolog.Logger) *ModelExceptionHandler {
	return &ModelExceptionHandler{provider: p, logger: logger}
}

// Handle generates a user-friendly explanation and suggested actions for a
// failed status query. It always returns a usable UserMessage.
func (h *ModelExceptionHandler) Handle(ctx context.Context, orderNumber, orderType string, details *models.StatusResult) models.ExceptionResult {
	detailsJSON, _ := json.MarshalIndent(details, "", "  ")

	if h.provider == nil {
		return models.ExceptionResult{
			UserMessage: fmt.Sprintf("I'm having trouble providing detailed assistance for order %s due to a configuration issue on my end. Please try again later or contact support directly.", orderNumber),
			SuggestedActions: []string{
				"Try your request again in a few minutes.",
				"Contact customer support if the issue persists.",
			},
			Err: fmt.Sprintf("handle_order_exception %s: model client not initialized", models.CapabilityUnavailableMarker),
		}
	}

	prompt := fmt.Sprintf(`An issue was encountered while processing an order query for Order Number: '%s', Type: '%s'.
The details of the issue are: %s

Generate a user-friendly message explaining this issue and suggest actions the user or support team could take.
The tone should be helpful and empathetic.
If the error indicates missing inventory, suggest checking back later or contacting support for alternatives.
If it is a pending-payment issue, suggest completing the payment.
If the error is a 'type_mismatch', explain that the order was found but the type given does not match the record, and ask the user to verify.
For generic errors, 'not_found', or simulated backend errors, suggest re-checking the order details or contacting support.

Respond ONLY in JSON with two keys: "user_message" (a string to display to the user)
and "suggested_actions" (a list of strings).`, orderNumber, orderType, string(detailsJSON))

	req := &provider.GenerateRequest{
		Prompt:            prompt,
		SystemInstruction: exceptionSystemPrompt,
		Config: &provider.GenerateConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   exceptionResponseSchema(),
		},
	}

	resp, err := h.provider.Generate(ctx, req)
	if err != nil {
		h.logger.Warn().Err(err).Msg("exception handling model call failed")
		return models.ExceptionResult{
			UserMessage: fmt.Sprintf("Sorry, I ran into a problem while trying to get help for order %s. The details are: %s", orderNumber, string(detailsJSON)),
			SuggestedActions: []string{
				"Please try your request again in a moment.",
				"If it still doesn't work, customer support might be able to help directly.",
			},
			Err: fmt.Sprintf("failed to generate exception handling message: %v", err),
		}
	}

	var parsed models.ExceptionResult
	if err := json.Unmarshal([]byte(StripJSONFences(resp.Text)), &parsed); err != nil || parsed.UserMessage == "" {
		h.logger.Warn().Str("response", resp.Text).Msg("exception handler output is not the expected JSON")
		return models.ExceptionResult{
			UserMessage: fmt.Sprintf("I encountered an unexpected issue while trying to understand the problem with order %s. Please try again, or contact support if the problem continues.", orderNumber),
			SuggestedActions: []string{
				"Retry your request.",
				fmt.Sprintf("Contact customer support with order number %s.", orderNumber),
			},
			Err:         "failed to parse exception handling result from model",
			RawResponse: resp.Text,
		}
	}

	return parsed
}

func exceptionResponseSchema() *provider.ParameterSchema {
	return &provider.ParameterSchema{
		Type: "object",
		Properties: map[string]provider.PropertySchema{
			"user_message": {Type: "string", Description: "Message to display to the user."},
			"suggested_actions": {
				Type:  "array",
				Items: &provider.PropertySchema{Type: "string"},
			},
		},
		Required: []string{"user_message", "suggested_actions"},
	}
}
