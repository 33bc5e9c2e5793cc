package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/orderdeskai/orderdesk/internal/orchestrator/models"
	provider "github.com/orderdeskai/orderdesk/internal/provider/models"
	"github.com/rs/zerolog"
)

const extractSystemPrompt = `You are an expert at extracting order details from user queries.
Your task is to identify the order number and the order type.
The order number is usually a sequence of digits, possibly with letters.
The order type could be categories like 'electronics', 'clothing', 'books', 'groceries', etc.
If the user only provides an order number but no type, explicitly state that the order type is missing.
If the user provides both, extract both.
If the user provides neither, state that both are missing.
Respond in JSON with the keys "order_number", "order_type", "status_message".
Use null for any field that is missing. "status_message" should indicate whether
details are missing or successfully extracted.`

// ModelExtractor implements Extractor using a structured language-model call.
type ModelExtractor struct {
	provider provider.Provider
	logger   zerolog.Logger
}

// NewModelExtractor creates an extractor backed by the given provider.
// A nil provider yields a capability that reports itself unavailable.
func NewModelExtractor(p provider.Provider, logger zerolog.Logger) *ModelExtractor {
	return &ModelExtractor{provider: p, logger: logger}
}

// Extract runs the model over the single current-turn utterance. History is
// intentionally excluded: the capability reasons over one utterance only.
func (e *ModelExtractor) Extract(ctx context.Context, query string) models.ExtractResult {
	if e.provider == nil {
		return models.ExtractResult{
			Err: fmt.Sprintf("extract_order_details %s: model client not initialized", models.CapabilityUnavailableMarker),
		}
	}

	req := &provider.GenerateRequest{
		Prompt:            query,
		SystemInstruction: extractSystemPrompt,
		Config: &provider.GenerateConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   extractResponseSchema(),
		},
	}

	resp, err := e.provider.Generate(ctx, req)
	if err != nil {
		e.logger.Warn().Err(err).Msg("extraction model call failed")
		return models.ExtractResult{
			Err: fmt.Sprintf("failed to extract details using the model: %v", err),
		}
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(StripJSONFences(resp.Text)), &raw); err != nil {
		e.logger.Warn().Str("response", resp.Text).Msg("extraction output is not valid JSON")
		return models.ExtractResult{
			Err: "failed to parse extraction result: model response was not valid JSON",
		}
	}

	var result models.ExtractResult
	if err := decodeResult(raw, &result); err != nil {
		return models.ExtractResult{
			Err: fmt.Sprintf("failed to decode extraction result: %v", err),
		}
	}

	return result
}

// decodeResult decodes a loosely-typed model output map into a result struct,
// matching fields by their json tags and tolerating nulls for missing fields.
func decodeResult(raw map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(raw)
}

func extractResponseSchema() *provider.ParameterSchema {
	return &provider.ParameterSchema{
		Type: "object",
		Properties: map[string]provider.PropertySchema{
			"order_number":   {Type: "string", Nullable: true, Description: "The order number, or null when missing."},
			"order_type":     {Type: "string", Nullable: true, Description: "The order category, or null when missing."},
			"status_message": {Type: "string", Description: "Whether details were extracted or are missing."},
		},
		Required: []string{"status_message"},
	}
}

// StripJSONFences removes a markdown code fence around a JSON body, which
// models occasionally emit even in JSON mode.
func StripJSONFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
