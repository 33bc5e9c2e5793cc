package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/orderdeskai/orderdesk/internal/capability"
	"github.com/orderdeskai/orderdesk/internal/orchestrator/models"
	provider "github.com/orderdeskai/orderdesk/internal/provider/models"
	"github.com/rs/zerolog"
)

// decisionService implements models.DecisionService
type decisionService struct {
	provider provider.Provider
	logger   zerolog.Logger
}

// NewDecisionService creates a DecisionService. With a nil provider every
// decision comes from the fixed rule set.
func NewDecisionService(p provider.Provider, logger zerolog.Logger) models.DecisionService {
	return &decisionService{provider: p, logger: logger}
}

// Decide selects the next action. Model or parse failures degrade to
// ActionRespondDirectly; the failure is logged, never raised to the caller.
func (d *decisionService) Decide(ctx context.Context, query string, history []models.Message, convCtx models.ConversationContext) models.Decision {
	if d.provider == nil {
		return ruleBasedDecision(query, convCtx)
	}

	req := &provider.GenerateRequest{
		Prompt:            query,
		SystemInstruction: buildDecisionPrompt(query, history, convCtx),
		Config: &provider.GenerateConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   decisionResponseSchema(),
		},
	}

	resp, err := d.provider.Generate(ctx, req)
	if err != nil {
		d.logger.Warn().Err(err).Msg("decision model call failed, falling back to direct response")
		return models.Decision{
			Action:    models.ActionRespondDirectly,
			Reasoning: "model decision unavailable",
		}
	}

	var decision models.Decision
	if err := json.Unmarshal([]byte(capability.StripJSONFences(resp.Text)), &decision); err != nil || !decision.Action.Valid() {
		d.logger.Warn().Str("response", resp.Text).Msg("decision output is not a valid action")
		return models.Decision{
			Action:    models.ActionRespondDirectly,
			Reasoning: "model decision could not be parsed",
		}
	}

	return decision
}

// ruleBasedDecision is the fixed fallback used when the model dependency is
// degraded. It can never select ActionHandleException as a first choice; that
// action stays reachable only through the in-turn chain from a status query.
func ruleBasedDecision(query string, convCtx models.ConversationContext) models.Decision {
	if convCtx.HasOrderDetails() {
		return models.Decision{
			Action:    models.ActionQueryStatus,
			Reasoning: "Rule-based: order details known, try querying status.",
		}
	}

	q := strings.ToLower(query)
	if strings.Contains(q, "order number") || strings.Contains(q, "order id") ||
		(convCtx.OrderNumber != "" && convCtx.OrderType == "") {
		return models.Decision{
			Action:    models.ActionExtractDetails,
			Reasoning: "Rule-based: query likely contains or needs order details.",
		}
	}

	return models.Decision{
		Action:    models.ActionRespondDirectly,
		Reasoning: "Rule-based: default to direct response or clarification.",
	}
}

// buildDecisionPrompt composes the action-selection directive shown to the
// model. History is limited by the caller to the read-side window.
func buildDecisionPrompt(query string, history []models.Message, convCtx models.ConversationContext) string {
	historyJSON, _ := json.MarshalIndent(history, "", "  ")
	contextJSON, _ := json.Marshal(convCtx)

	return fmt.Sprintf(`You are an AI assistant helping with order inquiries. Your goal is to guide the user through checking their order.
Conversation history (most recent exchanges):
%s

Current user query: %q

Current known context about the order (if any): %s

Based ONLY on the current user query and current known context, decide the single best immediate action:
1. "EXTRACT_DETAILS": The query provides new order information (number or type) OR order number/type is clearly missing and needed.
2. "QUERY_STATUS": Sufficient order number AND type are ALREADY in the known context AND the user wants to know the status.
3. "HANDLE_EXCEPTION": The known context contains "last_error_details" indicating a problem with a previous query.
4. "RESPOND_DIRECTLY": Greetings, general questions, or clarification before any other action. Do NOT choose this if details are present and status is desired.

Respond with a JSON object: {"action": "CHOSEN_ACTION", "reasoning": "Your brief reasoning."}`,
		string(historyJSON), query, string(contextJSON))
}

func decisionResponseSchema() *provider.ParameterSchema {
	return &provider.ParameterSchema{
		Type: "object",
		Properties: map[string]provider.PropertySchema{
			"action": {
				Type: "string",
				Enum: []string{
					string(models.ActionExtractDetails),
					string(models.ActionQueryStatus),
					string(models.ActionHandleException),
					string(models.ActionRespondDirectly),
				},
			},
			"reasoning": {Type: "string"},
		},
		Required: []string{"action", "reasoning"},
	}
}
