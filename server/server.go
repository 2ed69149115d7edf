// Package server provides the HTTP boundary for StudySprint: chat
// submission, resume text ingestion, health, and metrics. Transport stays
// thin; request semantics live in the agent package.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/studysprint/studysprint/agent"
)

// maxChatBodySize limits chat request bodies.
const maxChatBodySize = 1 << 20 // 1 MB

// maxResumeBytes limits resume uploads.
const maxResumeBytes = 2 << 20 // 2 MB

// minResumeChars is the minimum useful extraction length.
const minResumeChars = 50

// ChatHandler is the session contract the server dispatches to.
type ChatHandler interface {
	Handle(ctx context.Context, mode string, messages []agent.Message, resumeText string) (*agent.AgentResponse, error)
}

// Server is the HTTP boundary.
type Server struct {
	chat           ChatHandler
	logger         *slog.Logger
	metrics        *Metrics
	maxResumeChars int
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMaxResumeChars bounds cleaned resume text size.
func WithMaxResumeChars(n int) Option {
	return func(s *Server) {
		s.maxResumeChars = n
	}
}

// WithMetrics shares an externally created Metrics, so generation-side
// observations land on the same registry the server exposes.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// New creates a Server over a session handler.
func New(chat ChatHandler, opts ...Option) *Server {
	s := &Server{
		chat:           chat,
		logger:         slog.Default(),
		metrics:        NewMetrics(),
		maxResumeChars: agent.DefaultSessionConfig().MaxResumeChars,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the route mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("POST /api/upload_resume", s.handleUploadResume)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())
	return mux
}

// ChatRequest is the chat submission payload.
type ChatRequest struct {
	Mode       string          `json:"mode"`
	Messages   []agent.Message `json:"messages"`
	ResumeText string          `json:"resume_text,omitempty"`
}

// apiError is the error payload. Detail is human-readable and tells the
// caller whether to fix their input or retry.
type apiError struct {
	Error     string `json:"error"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := uuid.New().String()

	var req ChatRequest
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxChatBodySize))
	if err := decoder.Decode(&req); err != nil {
		s.metrics.ChatRequests.WithLabelValues("invalid").Inc()
		s.writeError(w, http.StatusBadRequest, apiError{
			Error:     "invalid_request",
			Detail:    "request body must be JSON with 'mode' and 'messages'",
			RequestID: requestID,
		})
		return
	}

	resp, err := s.chat.Handle(r.Context(), req.Mode, req.Messages, req.ResumeText)
	if err != nil {
		if agent.IsInvalidRequest(err) {
			s.metrics.ChatRequests.WithLabelValues("invalid").Inc()
			s.writeError(w, http.StatusBadRequest, apiError{
				Error:     "invalid_request",
				Detail:    err.Error(),
				RequestID: requestID,
			})
			return
		}

		// Generation-side failures degrade inside the agent; reaching
		// here means a programmer error.
		s.metrics.ChatRequests.WithLabelValues("error").Inc()
		s.logger.Error("Chat request failed",
			"request_id", requestID,
			"mode", req.Mode,
			"error", err)
		s.writeError(w, http.StatusInternalServerError, apiError{
			Error:     "internal_error",
			Detail:    "Something went wrong. Try again.",
			RequestID: requestID,
		})
		return
	}

	s.metrics.ChatRequests.WithLabelValues("ok").Inc()
	s.metrics.ChatDuration.Observe(time.Since(start).Seconds())
	s.logger.Info("Chat request served",
		"request_id", requestID,
		"mode", req.Mode,
		"messages", len(req.Messages),
		"warnings", len(resp.Warnings),
		"duration_ms", time.Since(start).Milliseconds())

	s.writeJSON(w, http.StatusOK, resp)
}

// UploadResumeResponse is the resume ingestion payload. The text is the
// cleaned extraction the UI should send back with subsequent chat turns.
type UploadResumeResponse struct {
	OK    bool   `json:"ok"`
	Text  string `json:"text"`
	Chars int    `json:"chars"`
}

// handleUploadResume ingests already-extracted resume text. Binary format
// parsing happens upstream; this boundary only cleans and bounds the text.
func (s *Server) handleUploadResume(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxResumeBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, apiError{
				Error:     "invalid_request",
				Detail:    "File too large. Max 2MB.",
				RequestID: requestID,
			})
			return
		}
		s.writeError(w, http.StatusBadRequest, apiError{
			Error:     "invalid_request",
			Detail:    "could not read request body",
			RequestID: requestID,
		})
		return
	}

	text := agent.CleanResumeText(string(body), s.maxResumeChars)
	if len(strings.TrimSpace(text)) < minResumeChars {
		s.writeError(w, http.StatusUnprocessableEntity, apiError{
			Error:     "invalid_request",
			Detail:    "Could not extract enough text from this file. Try another resume (non-scanned).",
			RequestID: requestID,
		})
		return
	}

	s.logger.Info("Resume ingested",
		"request_id", requestID,
		"bytes", len(body),
		"chars", len(text))

	s.writeJSON(w, http.StatusOK, UploadResumeResponse{OK: true, Text: text, Chars: len(text)})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("Failed to write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, payload apiError) {
	s.writeJSON(w, status, payload)
}
