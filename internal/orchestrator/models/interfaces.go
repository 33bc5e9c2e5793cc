package models

import (
	"context"
)

// DecisionService selects the next action for a turn.
// It is read-only over the history and context it is given.
type DecisionService interface {
	// Decide picks exactly one action for the current query. It never fails:
	// model or parse errors degrade to ActionRespondDirectly with the failure
	// recorded for diagnostics only.
	Decide(ctx context.Context, query string, history []Message, convCtx ConversationContext) Decision
}
