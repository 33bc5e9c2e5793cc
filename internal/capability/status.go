package capability

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"github.com/orderdeskai/orderdesk/internal/backend"
	"github.com/orderdeskai/orderdesk/internal/orchestrator/models"
	"github.com/rs/zerolog"
)

// OrderStore is the slice of the backend store the status capability needs.
type OrderStore interface {
	GetOrder(ctx context.Context, number string) (*backend.Order, error)
}

// BackendStatusQuerier implements StatusQuerier against the order store.
type BackendStatusQuerier struct {
	store     OrderStore
	faultProb float64
	rng       *rand.Rand
	logger    zerolog.Logger
}

// NewBackendStatusQuerier creates a querier over the given store. faultProb
// is the probability that an unknown order reports a simulated backend error
// instead of not_found; pass 0 to disable fault injection.
func NewBackendStatusQuerier(store OrderStore, faultProb float64, rng *rand.Rand, logger zerolog.Logger) *BackendStatusQuerier {
	return &BackendStatusQuerier{store: store, faultProb: faultProb, rng: rng, logger: logger}
}

// Query looks up an order and classifies the outcome. Type comparison is
// case-insensitive; a mismatch is an error result naming the recorded type.
func (q *BackendStatusQuerier) Query(ctx context.Context, orderNumber, orderType string) models.StatusResult {
	if q.store == nil {
		return models.StatusResult{
			Status:      models.StatusError,
			OrderNumber: orderNumber,
			OrderType:   orderType,
			Err:         fmt.Sprintf("query_order_status %s: order store not initialized", models.CapabilityUnavailableMarker),
		}
	}

	order, err := q.store.GetOrder(ctx, orderNumber)
	if err != nil && !errors.Is(err, backend.ErrNotFound) {
		q.logger.Error().Err(err).Str("order_number", orderNumber).Msg("order store query failed")
		return models.StatusResult{
			Status:      models.StatusError,
			OrderNumber: orderNumber,
			OrderType:   orderType,
			Err:         fmt.Sprintf("query_order_status %s: %v", models.CapabilityUnavailableMarker, err),
		}
	}

	if order == nil || errors.Is(err, backend.ErrNotFound) {
		if q.faultProb > 0 && q.rng != nil && q.rng.Float64() < q.faultProb {
			return models.StatusResult{
				Status:      models.StatusError,
				ErrorType:   "simulated_backend_error",
				OrderNumber: orderNumber,
				OrderType:   orderType,
				Message:     "A simulated backend error occurred while fetching order status.",
			}
		}
		return models.StatusResult{
			Status:      models.StatusNotFound,
			OrderNumber: orderNumber,
			OrderType:   orderType,
			Message:     fmt.Sprintf("Order '%s' of type '%s' not found.", orderNumber, orderType),
		}
	}

	if !strings.EqualFold(order.Type, orderType) {
		return models.StatusResult{
			Status:      models.StatusError,
			ErrorType:   "type_mismatch",
			OrderNumber: orderNumber,
			OrderType:   orderType,
			Message: fmt.Sprintf("Order '%s' found, but type mismatch. Backend has type '%s', query was for '%s'.",
				orderNumber, order.Type, orderType),
		}
	}

	return models.StatusResult{
		Status:        models.StatusSuccess,
		OrderNumber:   orderNumber,
		OrderType:     orderType,
		BackendStatus: order.Status,
		Data:          order.Details,
	}
}
