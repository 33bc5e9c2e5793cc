// Package orchestrator contains the agent core: the per-turn decision policy
// and the dispatch loop that routes a query through the order-support
// capabilities while accumulating conversation context.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/orderdeskai/orderdesk/internal/capability"
	"github.com/orderdeskai/orderdesk/internal/orchestrator/models"
	provider "github.com/orderdeskai/orderdesk/internal/provider/models"
	"github.com/orderdeskai/orderdesk/internal/session"
	"github.com/rs/zerolog"
)

// maxChainHops bounds in-turn transitions: one hop from the originally
// selected action, so a turn executes at most two capability calls.
const maxChainHops = 1

// chainTable is the full set of permitted in-turn transitions. Guards live at
// the dispatch sites (extraction chains only when both fields became known;
// status chains only on a non-success result).
var chainTable = map[models.Action]models.Action{
	models.ActionExtractDetails: models.ActionQueryStatus,
	models.ActionQueryStatus:    models.ActionHandleException,
}

// ErrModelUnavailable is the out-of-band error string reported when the
// language-model dependency was absent at construction time. The transport
// layer matches on the "missing or dummy" condition.
const ErrModelUnavailable = "model API key missing or dummy"

const degradedServiceMessage = "I'm currently unable to connect to my core services due to a configuration issue (API key). Please try again later or contact support."

const directResponseSystemPrompt = "You are a helpful order-support assistant. The user's last query did not result in a specific capability action, or a previous action completed and a direct response is needed. Provide a relevant response based on the conversation history."

// Result is the outcome of one turn. Response and Context are always set;
// Err is an out-of-band signal for the transport layer, never a substitute
// for a response.
type Result struct {
	Response      string                     `json:"response"`
	SessionID     string                     `json:"session_id"`
	Context       models.ConversationContext `json:"context"`
	Data          *models.StatusResult       `json:"data,omitempty"`
	ExceptionInfo *models.ExceptionResult    `json:"exception_info,omitempty"`
	Err           string                     `json:"error,omitempty"`
}

// Orchestrator runs the turn loop: decide, dispatch, update context, and
// chain at most once within the turn.
type Orchestrator struct {
	provider      provider.Provider
	decider       models.DecisionService
	extractor     capability.Extractor
	status        capability.StatusQuerier
	exceptions    capability.ExceptionHandler
	sessions      *session.Store
	historyWindow int
	logger        zerolog.Logger
}

// New creates a new Orchestrator instance. A nil provider puts the agent in
// degraded mode: every turn short-circuits with a fixed message and no
// capability is invoked.
func New(
	p provider.Provider,
	decider models.DecisionService,
	extractor capability.Extractor,
	status capability.StatusQuerier,
	exceptions capability.ExceptionHandler,
	sessions *session.Store,
	historyWindow int,
	logger zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		provider:      p,
		decider:       decider,
		extractor:     extractor,
		status:        status,
		exceptions:    exceptions,
		sessions:      sessions,
		historyWindow: historyWindow,
		logger:        logger,
	}
}

// Degraded reports whether the agent runs without its model dependency.
func (o *Orchestrator) Degraded() bool {
	return o.provider == nil
}

// step is the outcome of dispatching one action. Exactly one of result or
// chain is meaningful: a terminal result ends the turn; a chain request names
// the next action with a fallback response for when the hop budget is spent.
type step struct {
	result   *Result
	chain    models.Action
	fallback string
}

// ProcessRequest runs one turn to completion and returns its result. It
// always returns a non-nil Result carrying a response and the session's
// current context.
func (o *Orchestrator) ProcessRequest(ctx context.Context, sessionID, userQuery string) *Result {
	sess := o.sessions.GetOrCreate(sessionID)
	sess.Append("user", userQuery)

	if o.provider == nil {
		sess.Append("assistant", degradedServiceMessage)
		return o.finish(sess, &Result{Response: degradedServiceMessage, Err: ErrModelUnavailable})
	}

	decision := o.decider.Decide(ctx, userQuery, sess.Window(o.historyWindow), sess.Context)
	o.logger.Info().
		Str("session_id", sess.ID).
		Str("action", string(decision.Action)).
		Str("reasoning", decision.Reasoning).
		Msg("action selected")

	action := decision.Action
	for hops := 0; ; hops++ {
		st := o.dispatch(ctx, sess, action, userQuery)
		if st.chain == "" {
			return o.finish(sess, st.result)
		}
		next, ok := chainTable[action]
		if !ok || next != st.chain || hops >= maxChainHops {
			// Chain denied: the transitional note becomes the terminal
			// response; stored context lets the next turn pick it up.
			return o.finish(sess, &Result{Response: st.fallback})
		}
		action = st.chain
	}
}

// finish stamps the session identity and context snapshot onto a result.
func (o *Orchestrator) finish(sess *session.Session, res *Result) *Result {
	res.SessionID = sess.ID
	res.Context = sess.Context
	return res
}

// dispatch routes one action to its capability. The action set is closed;
// anything unrecognized falls through to a direct response.
func (o *Orchestrator) dispatch(ctx context.Context, sess *session.Session, action models.Action, userQuery string) step {
	switch action {
	case models.ActionExtractDetails:
		return o.dispatchExtract(ctx, sess, userQuery)
	case models.ActionQueryStatus:
		return o.dispatchStatus(ctx, sess)
	case models.ActionHandleException:
		return o.dispatchException(ctx, sess)
	default:
		return step{result: o.respondDirectly(ctx, sess)}
	}
}

// dispatchExtract calls the extraction capability with only the raw
// current-turn text and merges any recovered fields into the context.
func (o *Orchestrator) dispatchExtract(ctx context.Context, sess *session.Session, userQuery string) step {
	res := o.extractor.Extract(ctx, userQuery)

	if res.Err != "" {
		detail := res.StatusMessage
		if detail == "" {
			detail = res.Err
		}
		msg := fmt.Sprintf("I encountered an issue while trying to process the order details (%s). Could you please state the order number and type clearly?", detail)
		sess.Append("assistant", msg)
		out := &Result{Response: msg}
		if models.IsCapabilityUnavailable(res.Err) {
			out.Err = res.Err
		}
		return step{result: out}
	}

	// Additive merge: a present field is never erased by an absent one.
	if res.OrderNumber != "" {
		sess.Context.OrderNumber = res.OrderNumber
	}
	if res.OrderType != "" {
		sess.Context.OrderType = res.OrderType
	}

	if sess.Context.HasOrderDetails() {
		note := fmt.Sprintf("Okay, I have your order number as %s and type as %s. Let me check the status now.",
			sess.Context.OrderNumber, sess.Context.OrderType)
		sess.Append("assistant", note)
		return step{chain: models.ActionQueryStatus, fallback: note}
	}

	msg := res.StatusMessage
	if msg == "" {
		msg = "Details processed."
	}
	msg += " Please provide the missing information: "
	if sess.Context.OrderNumber == "" {
		msg += "Order Number. "
	}
	if sess.Context.OrderType == "" {
		msg += "Order Type."
	}
	sess.Append("assistant", msg)
	return step{result: &Result{Response: msg}}
}

// dispatchStatus queries the backend for the order in context. A non-success
// result is stored as last_error_details and chains into exception handling.
func (o *Orchestrator) dispatchStatus(ctx context.Context, sess *session.Session) step {
	if !sess.Context.HasOrderDetails() {
		msg := "I need both the order number and type to check the status. "
		if sess.Context.OrderNumber == "" {
			msg += "What is the order number? "
		}
		if sess.Context.OrderType == "" {
			msg += "What is the order type? "
		}
		sess.Append("assistant", msg)
		return step{result: &Result{Response: msg}}
	}

	orderNumber := sess.Context.OrderNumber
	orderType := sess.Context.OrderType
	res := o.status.Query(ctx, orderNumber, orderType)

	if models.IsCapabilityUnavailable(res.Err) {
		msg := "I'm currently unable to query order status due to an internal issue. Please try again later."
		sess.Append("assistant", msg)
		return step{result: &Result{Response: msg, Err: res.Err}}
	}

	if res.Status == models.StatusSuccess {
		msg := fmt.Sprintf("Order %s (%s): Status is '%s'.", orderNumber, orderType, res.BackendStatus)
		if len(res.Data) > 0 {
			data, _ := json.Marshal(res.Data)
			msg += fmt.Sprintf(" Additional details: %s", string(data))
		}
		sess.Append("assistant", msg)
		// Successful recovery erases prior error state.
		sess.Context.LastErrorDetails = nil
		return step{result: &Result{Response: msg, Data: &res}}
	}

	// error, not_found, or anything unrecognized
	details := res
	sess.Context.LastErrorDetails = &details
	reason := res.Message
	if reason == "" {
		reason = "Unknown error from the status query"
	}
	note := fmt.Sprintf("There was an issue with order %s (%s): %s. Let me try to find a solution.",
		orderNumber, orderType, reason)
	sess.Append("assistant", note)
	return step{chain: models.ActionHandleException, fallback: note}
}

// dispatchException explains the stored error. Missing last_error_details is
// an internal-consistency fault and is reported explicitly.
func (o *Orchestrator) dispatchException(ctx context.Context, sess *session.Session) step {
	details := sess.Context.LastErrorDetails
	if details == nil {
		msg := "I'm sorry, I encountered an issue but lost the specific details. Could you please try your query again?"
		sess.Append("assistant", msg)
		return step{result: &Result{Response: msg, Err: "missing last_error_details for HANDLE_EXCEPTION"}}
	}

	orderNumber := sess.Context.OrderNumber
	if orderNumber == "" {
		orderNumber = "N/A"
	}
	orderType := sess.Context.OrderType
	if orderType == "" {
		orderType = "N/A"
	}

	res := o.exceptions.Handle(ctx, orderNumber, orderType, details)

	final := res.UserMessage
	if final == "" {
		final = fmt.Sprintf("I've processed the error information for order %s, but couldn't generate specific advice right now.", orderNumber)
	}
	// A "not initialized" note would only restate what the fallback message
	// already implies, so it is suppressed.
	if res.Err != "" && !strings.Contains(res.Err, "not initialized") {
		final += fmt.Sprintf(" (Note: %s)", res.Err)
	}
	sess.Append("assistant", final)

	out := &Result{Response: final, ExceptionInfo: &res}
	if res.Err != "" {
		out.Err = res.Err
	}
	return step{result: out}
}

// respondDirectly composes a response over the full history with a
// general-purpose model call.
func (o *Orchestrator) respondDirectly(ctx context.Context, sess *session.Session) *Result {
	req := &provider.GenerateRequest{
		SystemInstruction: directResponseSystemPrompt,
		History:           sess.History,
	}

	resp, err := o.provider.Generate(ctx, req)
	if err != nil {
		o.logger.Error().Err(err).Str("session_id", sess.ID).Msg("direct response model call failed")
		msg := "I'm having some technical difficulties processing your request. Please try again in a moment."
		sess.Append("assistant", msg)
		return &Result{Response: msg, Err: fmt.Sprintf("failed to get direct response from model: %v", err)}
	}

	sess.Append("assistant", resp.Text)
	return &Result{Response: resp.Text}
}
