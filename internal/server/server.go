// Package server exposes the agent over HTTP: a chat endpoint driving the
// turn loop and a health endpoint reporting degraded mode.
package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/orderdeskai/orderdesk/internal/orchestrator"
	"github.com/rs/zerolog"
)

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	UserQuery string `json:"user_query"`
	SessionID string `json:"session_id,omitempty"`
}

// ChatResponse is the success envelope of POST /api/chat.
type ChatResponse struct {
	Data    *orchestrator.Result `json:"data"`
	Message string               `json:"message"`
}

// errorBody is the error envelope for non-2xx responses.
type errorBody struct {
	Detail string `json:"detail"`
}

// healthBody is the body of GET /api/health.
type healthBody struct {
	Status string `json:"status"`
	Model  string `json:"model,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Server serves the chat API over an orchestrator.
type Server struct {
	agent     *orchestrator.Orchestrator
	modelName string
	logger    zerolog.Logger
}

// New creates a Server over the given orchestrator. modelName appears in
// health output; pass "" when the model dependency is absent.
func New(agent *orchestrator.Orchestrator, modelName string, logger zerolog.Logger) *Server {
	return &Server{agent: agent, modelName: modelName, logger: logger}
}

// Handler returns the routed HTTP handler with request logging applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	return s.requestLogger(mux)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: "Invalid request body."})
		return
	}

	if strings.TrimSpace(req.UserQuery) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: "Query cannot be empty."})
		return
	}

	result := s.agent.ProcessRequest(r.Context(), req.SessionID, req.UserQuery)

	if result.Err != "" {
		s.logger.Error().Str("error", result.Err).Str("session_id", result.SessionID).Msg("turn ended with error")
		if result.Err == orchestrator.ErrModelUnavailable {
			writeJSON(w, http.StatusServiceUnavailable, errorBody{Detail: result.Err})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorBody{Detail: result.Err})
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{Data: result, Message: "Processed successfully"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := healthBody{Status: "healthy", Model: s.modelName}
	if s.agent.Degraded() {
		body.Status = "degraded"
		body.Model = ""
		body.Reason = "model API key missing or placeholder"
	}
	writeJSON(w, http.StatusOK, body)
}

// requestLogger tags each request with an id and logs method, path, status
// and latency.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		start := time.Now()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request handled")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
