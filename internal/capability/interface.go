// Package capability implements the three order-support capabilities the
// orchestrator dispatches to: detail extraction, status query, and exception
// handling. Each one converts every internal failure into its result struct;
// none of them returns a Go error across the dispatch boundary.
package capability

import (
	"context"

	"github.com/orderdeskai/orderdesk/internal/orchestrator/models"
)

// Extractor pulls order details out of a single raw utterance.
type Extractor interface {
	Extract(ctx context.Context, query string) models.ExtractResult
}

// StatusQuerier looks up the backend status for a known order.
type StatusQuerier interface {
	Query(ctx context.Context, orderNumber, orderType string) models.StatusResult
}

// ExceptionHandler turns a failed status query into a user-facing
// explanation with suggested actions.
type ExceptionHandler interface {
	Handle(ctx context.Context, orderNumber, orderType string, details *models.StatusResult) models.ExceptionResult
}
