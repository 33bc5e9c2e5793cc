package orchestrator

import (
	"context"
	"testing"

	"github.com/orderdeskai/orderdesk/internal/orchestrator/models"
	provider "github.com/orderdeskai/orderdesk/internal/provider/models"
	"github.com/orderdeskai/orderdesk/internal/session"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockProvider implements provider.Provider
type mockProvider struct {
	GenerateFunc func(ctx context.Context, req *provider.GenerateRequest) (*provider.GenerateResponse, error)
}

func (m *mockProvider) Generate(ctx context.Context, req *provider.GenerateRequest) (*provider.GenerateResponse, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	return &provider.GenerateResponse{Text: "mock response"}, nil
}

func (m *mockProvider) GetModel() string { return "mock-model" }

// mockDecider implements models.DecisionService
type mockDecider struct {
	DecideFunc func(ctx context.Context, query string, history []models.Message, convCtx models.ConversationContext) models.Decision
}

func (m *mockDecider) Decide(ctx context.Context, query string, history []models.Message, convCtx models.ConversationContext) models.Decision {
	if m.DecideFunc != nil {
		return m.DecideFunc(ctx, query, history, convCtx)
	}
	return models.Decision{Action: models.ActionRespondDirectly}
}

type mockExtractor struct {
	calls       int
	ExtractFunc func(ctx context.Context, query string) models.ExtractResult
}

func (m *mockExtractor) Extract(ctx context.Context, query string) models.ExtractResult {
	m.calls++
	if m.ExtractFunc != nil {
		return m.ExtractFunc(ctx, query)
	}
	return models.ExtractResult{}
}

type mockStatusQuerier struct {
	calls     int
	QueryFunc func(ctx context.Context, orderNumber, orderType string) models.StatusResult
}

func (m *mockStatusQuerier) Query(ctx context.Context, orderNumber, orderType string) models.StatusResult {
	m.calls++
	if m.QueryFunc != nil {
		return m.QueryFunc(ctx, orderNumber, orderType)
	}
	return models.StatusResult{Status: models.StatusSuccess}
}

type mockExceptionHandler struct {
	calls      int
	HandleFunc func(ctx context.Context, orderNumber, orderType string, details *models.StatusResult) models.ExceptionResult
}

func (m *mockExceptionHandler) Handle(ctx context.Context, orderNumber, orderType string, details *models.StatusResult) models.ExceptionResult {
	m.calls++
	if m.HandleFunc != nil {
		return m.HandleFunc(ctx, orderNumber, orderType, details)
	}
	return models.ExceptionResult{UserMessage: "mock exception advice"}
}

type fixture struct {
	orch       *Orchestrator
	sessions   *session.Store
	decider    *mockDecider
	extractor  *mockExtractor
	status     *mockStatusQuerier
	exceptions *mockExceptionHandler
}

func newFixture(p provider.Provider) *fixture {
	f := &fixture{
		sessions:   session.NewStore(),
		decider:    &mockDecider{},
		extractor:  &mockExtractor{},
		status:     &mockStatusQuerier{},
		exceptions: &mockExceptionHandler{},
	}
	f.orch = New(p, f.decider, f.extractor, f.status, f.exceptions, f.sessions, 5, zerolog.Nop())
	return f
}

func decide(action models.Action) func(context.Context, string, []models.Message, models.ConversationContext) models.Decision {
	return func(context.Context, string, []models.Message, models.ConversationContext) models.Decision {
		return models.Decision{Action: action, Reasoning: "test"}
	}
}

func TestProcessRequestExtractThenStatusChain(t *testing.T) {
	f := newFixture(&mockProvider{})
	f.decider.DecideFunc = decide(models.ActionExtractDetails)
	f.extractor.ExtractFunc = func(ctx context.Context, query string) models.ExtractResult {
		return models.ExtractResult{OrderNumber: "12345", OrderType: "electronics", StatusMessage: "Extracted successfully."}
	}
	f.status.QueryFunc = func(ctx context.Context, orderNumber, orderType string) models.StatusResult {
		return models.StatusResult{
			Status:        models.StatusSuccess,
			OrderNumber:   orderNumber,
			OrderType:     orderType,
			BackendStatus: "Shipped",
			Data:          map[string]any{"carrier": "FedEx"},
		}
	}

	res := f.orch.ProcessRequest(context.Background(), "s1", "My order number is 12345, it's electronics. Status?")

	require.NotNil(t, res)
	assert.Empty(t, res.Err)
	assert.Contains(t, res.Response, "Status is 'Shipped'")
	assert.Contains(t, res.Response, "carrier")
	assert.Equal(t, "12345", res.Context.OrderNumber)
	assert.Equal(t, "electronics", res.Context.OrderType)
	require.NotNil(t, res.Data)
	assert.Equal(t, "Shipped", res.Data.BackendStatus)
	assert.Equal(t, 1, f.extractor.calls)
	assert.Equal(t, 1, f.status.calls)
	assert.Equal(t, 0, f.exceptions.calls)
}

func TestProcessRequestExtractPartialAsksForMissing(t *testing.T) {
	f := newFixture(&mockProvider{})
	f.decider.DecideFunc = decide(models.ActionExtractDetails)
	f.extractor.ExtractFunc = func(ctx context.Context, query string) models.ExtractResult {
		return models.ExtractResult{OrderNumber: "98765", StatusMessage: "Order number extracted."}
	}

	res := f.orch.ProcessRequest(context.Background(), "s1", "my order number is 98765")

	assert.Contains(t, res.Response, "Order Type.")
	assert.NotContains(t, res.Response, "Order Number.")
	assert.Equal(t, "98765", res.Context.OrderNumber)
	assert.Empty(t, res.Context.OrderType)
	assert.Equal(t, 0, f.status.calls)
}

func TestProcessRequestStatusFailureChainsToException(t *testing.T) {
	f := newFixture(&mockProvider{})
	f.decider.DecideFunc = decide(models.ActionQueryStatus)
	f.status.QueryFunc = func(ctx context.Context, orderNumber, orderType string) models.StatusResult {
		return models.StatusResult{
			Status:      models.StatusNotFound,
			OrderNumber: orderNumber,
			OrderType:   orderType,
			ErrorType:   "not_found",
			Message:     "Order 'ZZZZZ' of type 'books' not found.",
		}
	}
	f.exceptions.HandleFunc = func(ctx context.Context, orderNumber, orderType string, details *models.StatusResult) models.ExceptionResult {
		require.NotNil(t, details)
		assert.Equal(t, "not_found", details.ErrorType)
		return models.ExceptionResult{
			UserMessage:      "Please double-check the order number.",
			SuggestedActions: []string{"Verify the order number"},
		}
	}

	sess := f.sessions.GetOrCreate("s1")
	sess.Context.OrderNumber = "ZZZZZ"
	sess.Context.OrderType = "books"

	res := f.orch.ProcessRequest(context.Background(), "s1", "what's the status?")

	assert.Equal(t, "Please double-check the order number.", res.Response)
	require.NotNil(t, res.ExceptionInfo)
	assert.Equal(t, []string{"Verify the order number"}, res.ExceptionInfo.SuggestedActions)
	assert.Equal(t, 1, f.status.calls)
	assert.Equal(t, 1, f.exceptions.calls)
	require.NotNil(t, res.Context.LastErrorDetails)
	assert.Equal(t, "not_found", res.Context.LastErrorDetails.ErrorType)
}

func TestProcessRequestChainBudgetStopsSecondHop(t *testing.T) {
	// extract chains into status; a failing status may not chain further
	// within the same turn. The transitional note becomes the response and
	// the stored error details leave exception handling for the next turn.
	f := newFixture(&mockProvider{})
	f.decider.DecideFunc = decide(models.ActionExtractDetails)
	f.extractor.ExtractFunc = func(ctx context.Context, query string) models.ExtractResult {
		return models.ExtractResult{OrderNumber: "ERR01", OrderType: "books", StatusMessage: "Extracted."}
	}
	f.status.QueryFunc = func(ctx context.Context, orderNumber, orderType string) models.StatusResult {
		return models.StatusResult{
			Status:    models.StatusError,
			ErrorType: "type_mismatch",
			Message:   "Order 'ERR01' found, but type mismatch.",
		}
	}

	res := f.orch.ProcessRequest(context.Background(), "s1", "order number ERR01, books")

	assert.Contains(t, res.Response, "Let me try to find a solution")
	assert.Equal(t, 0, f.exceptions.calls)
	assert.LessOrEqual(t, f.extractor.calls+f.status.calls+f.exceptions.calls, 2)
	require.NotNil(t, res.Context.LastErrorDetails)
	assert.Equal(t, "type_mismatch", res.Context.LastErrorDetails.ErrorType)
}

func TestProcessRequestRespondDirectly(t *testing.T) {
	f := newFixture(&mockProvider{
		GenerateFunc: func(ctx context.Context, req *provider.GenerateRequest) (*provider.GenerateResponse, error) {
			assert.NotEmpty(t, req.History)
			return &provider.GenerateResponse{Text: "Hello! How can I help with your order today?"}, nil
		},
	})
	f.decider.DecideFunc = decide(models.ActionRespondDirectly)

	res := f.orch.ProcessRequest(context.Background(), "s1", "hi there")

	assert.Equal(t, "Hello! How can I help with your order today?", res.Response)
	assert.Empty(t, res.Err)
	assert.Equal(t, 0, f.extractor.calls)
	assert.Equal(t, 0, f.status.calls)
}

func TestProcessRequestDegradedMode(t *testing.T) {
	f := newFixture(nil)

	res := f.orch.ProcessRequest(context.Background(), "s1", "where is my order?")

	assert.True(t, f.orch.Degraded())
	assert.Contains(t, res.Response, "configuration issue")
	assert.Equal(t, ErrModelUnavailable, res.Err)
	assert.Equal(t, 0, f.extractor.calls)
	assert.Equal(t, 0, f.status.calls)
	assert.Equal(t, 0, f.exceptions.calls)
}

func TestProcessRequestStatusSuccessClearsErrorState(t *testing.T) {
	f := newFixture(&mockProvider{})
	f.decider.DecideFunc = decide(models.ActionQueryStatus)
	f.status.QueryFunc = func(ctx context.Context, orderNumber, orderType string) models.StatusResult {
		return models.StatusResult{Status: models.StatusSuccess, BackendStatus: "Delivered"}
	}

	sess := f.sessions.GetOrCreate("s1")
	sess.Context.OrderNumber = "ABCDE"
	sess.Context.OrderType = "books"
	sess.Context.LastErrorDetails = &models.StatusResult{Status: models.StatusError, ErrorType: "type_mismatch"}

	res := f.orch.ProcessRequest(context.Background(), "s1", "try again please")

	assert.Contains(t, res.Response, "Delivered")
	assert.Nil(t, res.Context.LastErrorDetails)
}

func TestProcessRequestContextMergeIsAdditive(t *testing.T) {
	f := newFixture(&mockProvider{})
	f.decider.DecideFunc = decide(models.ActionExtractDetails)
	f.extractor.ExtractFunc = func(ctx context.Context, query string) models.ExtractResult {
		return models.ExtractResult{OrderNumber: "12345", StatusMessage: "Order number extracted."}
	}
	f.status.QueryFunc = func(ctx context.Context, orderNumber, orderType string) models.StatusResult {
		assert.Equal(t, "12345", orderNumber)
		assert.Equal(t, "electronics", orderType)
		return models.StatusResult{Status: models.StatusSuccess, BackendStatus: "Processing"}
	}

	sess := f.sessions.GetOrCreate("s1")
	sess.Context.OrderType = "electronics"

	res := f.orch.ProcessRequest(context.Background(), "s1", "the number is 12345")

	// The earlier-known type survives a turn that only adds the number; the
	// completed pair chains straight into a status query.
	assert.Equal(t, "electronics", res.Context.OrderType)
	assert.Equal(t, "12345", res.Context.OrderNumber)
	assert.Equal(t, 1, f.status.calls)
	assert.Contains(t, res.Response, "Processing")
}

func TestProcessRequestStatusWithoutDetailsAsks(t *testing.T) {
	f := newFixture(&mockProvider{})
	f.decider.DecideFunc = decide(models.ActionQueryStatus)

	res := f.orch.ProcessRequest(context.Background(), "s1", "status please")

	assert.Contains(t, res.Response, "What is the order number?")
	assert.Contains(t, res.Response, "What is the order type?")
	assert.Equal(t, 0, f.status.calls)
}

func TestProcessRequestExceptionWithoutStoredError(t *testing.T) {
	f := newFixture(&mockProvider{})
	f.decider.DecideFunc = decide(models.ActionHandleException)

	res := f.orch.ProcessRequest(context.Background(), "s1", "fix it")

	assert.Contains(t, res.Response, "lost the specific details")
	assert.Equal(t, "missing last_error_details for HANDLE_EXCEPTION", res.Err)
	assert.Equal(t, 0, f.exceptions.calls)
}

func TestProcessRequestExtractUnavailablePropagatesError(t *testing.T) {
	f := newFixture(&mockProvider{})
	f.decider.DecideFunc = decide(models.ActionExtractDetails)
	f.extractor.ExtractFunc = func(ctx context.Context, query string) models.ExtractResult {
		return models.ExtractResult{Err: "extract_order_details capability unavailable: model client not initialized"}
	}

	res := f.orch.ProcessRequest(context.Background(), "s1", "order number 12345")

	assert.Contains(t, res.Response, "state the order number and type clearly")
	assert.Contains(t, res.Err, "capability unavailable")
	assert.Equal(t, 0, f.status.calls)
}

func TestProcessRequestDirectResponseModelFailure(t *testing.T) {
	f := newFixture(&mockProvider{
		GenerateFunc: func(ctx context.Context, req *provider.GenerateRequest) (*provider.GenerateResponse, error) {
			return nil, &provider.ProviderError{Code: provider.ErrorCodeUnavailable, Message: "service unavailable"}
		},
	})
	f.decider.DecideFunc = decide(models.ActionRespondDirectly)

	res := f.orch.ProcessRequest(context.Background(), "s1", "hello")

	assert.Contains(t, res.Response, "technical difficulties")
	assert.Contains(t, res.Err, "failed to get direct response")
}

func TestProcessRequestSessionIsolation(t *testing.T) {
	f := newFixture(&mockProvider{})
	f.decider.DecideFunc = decide(models.ActionExtractDetails)
	f.extractor.ExtractFunc = func(ctx context.Context, query string) models.ExtractResult {
		return models.ExtractResult{OrderNumber: "12345", StatusMessage: "Order number extracted."}
	}

	resA := f.orch.ProcessRequest(context.Background(), "session-a", "my order number is 12345")
	assert.Equal(t, "12345", resA.Context.OrderNumber)

	f.decider.DecideFunc = decide(models.ActionRespondDirectly)
	resB := f.orch.ProcessRequest(context.Background(), "session-b", "hello")
	assert.Empty(t, resB.Context.OrderNumber)
	assert.Equal(t, 2, f.sessions.Len())
}

func TestProcessRequestGeneratesSessionID(t *testing.T) {
	f := newFixture(&mockProvider{})
	f.decider.DecideFunc = decide(models.ActionRespondDirectly)

	res := f.orch.ProcessRequest(context.Background(), "", "hi")

	assert.NotEmpty(t, res.SessionID)
}

func TestProcessRequestHistoryAccumulates(t *testing.T) {
	f := newFixture(&mockProvider{})
	f.decider.DecideFunc = decide(models.ActionRespondDirectly)

	f.orch.ProcessRequest(context.Background(), "s1", "first")
	f.orch.ProcessRequest(context.Background(), "s1", "second")

	sess := f.sessions.GetOrCreate("s1")
	require.Len(t, sess.History, 4)
	assert.Equal(t, "user", sess.History[0].Role)
	assert.Equal(t, "first", sess.History[0].Content)
	assert.Equal(t, "assistant", sess.History[1].Role)
	assert.Equal(t, "second", sess.History[2].Content)
}
