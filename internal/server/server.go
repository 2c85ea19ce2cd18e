// Package server exposes the orchestration protocol over HTTP. Chat turns
// stream as server-sent events: one data frame per orchestration event,
// then a terminal frame carrying the final message snapshot.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/lancet-ai/lancet/internal/config"
	lancetErrors "github.com/lancet-ai/lancet/internal/errors"
	"github.com/lancet-ai/lancet/internal/logger"
	"github.com/lancet-ai/lancet/internal/model/contract"
	"github.com/lancet-ai/lancet/internal/orchestrator"
	"github.com/lancet-ai/lancet/internal/sandbox"
	"github.com/lancet-ai/lancet/internal/store"
)

type Server struct {
	orch        *orchestrator.Orchestrator
	sandbox     *sandbox.Client
	sessions    *store.Store
	cfg         *config.ServerConfig
	server      *http.Server
	shutdownTTL time.Duration
}

func New(cfg *config.ServerConfig, orch *orchestrator.Orchestrator, sandboxClient *sandbox.Client, sessions *store.Store) (*Server, error) {
	s := &Server{
		orch:     orch,
		sandbox:  sandboxClient,
		sessions: sessions,
		cfg:      cfg,
	}

	readTimeout, err := config.DurationOrDefault(cfg.ReadTimeout, config.DefaultServerReadTimeout)
	if err != nil {
		return nil, fmt.Errorf("parse server read timeout: %w", err)
	}
	writeTimeout, err := config.DurationOrDefault(cfg.WriteTimeout, config.DefaultServerWriteTimeout)
	if err != nil {
		return nil, fmt.Errorf("parse server write timeout: %w", err)
	}
	idleTimeout, err := config.DurationOrDefault(cfg.IdleTimeout, config.DefaultServerIdleTimeout)
	if err != nil {
		return nil, fmt.Errorf("parse server idle timeout: %w", err)
	}
	shutdownTimeout, err := config.DurationOrDefault(cfg.ShutdownTimeout, config.DefaultServerShutdownTimeout)
	if err != nil {
		return nil, fmt.Errorf("parse server shutdown timeout: %w", err)
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
	s.shutdownTTL = shutdownTimeout
	return s, nil
}

// Handler builds the route table. Exposed separately so tests can drive the
// mux without binding a port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/sessions", s.handleSessions)
	return mux
}

// Start starts the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		slog.Info("HTTP server listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed", "error", err)
		}
	}()
}

// Stop stops the HTTP server gracefully.
func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, s.shutdownTTL)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	SessionID       string        `json:"session_id"`
	Messages        []chatMessage `json:"messages"`
	Model           string        `json:"model"`
	Temperature     *float32      `json:"temperature"`
	MaxOutputTokens int           `json:"max_output_tokens"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Messages) == 0 {
		http.Error(w, "Missing required field: messages", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	history := make([]contract.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		history = append(history, contract.Message{Role: m.Role, Content: m.Content})
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// The request context cancels the turn when the client disconnects.
	ctx := r.Context()
	if req.SessionID != "" {
		ctx = logger.WithSessionID(ctx, req.SessionID)
	}

	msg, err := s.orch.RunTurn(ctx, history, orchestrator.Options{
		Model:           req.Model,
		Temperature:     req.Temperature,
		MaxOutputTokens: req.MaxOutputTokens,
		OnEvent: func(ev contract.Event) {
			writeFrame(w, flusher, sseFrame{Type: "event", Event: &ev})
		},
	})
	if err != nil {
		slog.Warn("Chat turn failed", "error", err)
	}

	writeFrame(w, flusher, sseFrame{Type: "message", Message: msg})

	if s.sessions != nil && req.SessionID != "" {
		for _, m := range req.Messages[len(req.Messages)-1:] {
			if appendErr := s.sessions.AppendRecord(req.SessionID, m); appendErr != nil {
				slog.Warn("Failed to persist user message", "session", req.SessionID, "error", appendErr)
			}
		}
		if appendErr := s.sessions.AppendRecord(req.SessionID, msg); appendErr != nil {
			slog.Warn("Failed to persist assistant message", "session", req.SessionID, "error", appendErr)
		}
	}
}

type sseFrame struct {
	Type    string          `json:"type"`
	Event   *contract.Event `json:"event,omitempty"`
	Message interface{}     `json:"message,omitempty"`
}

func writeFrame(w http.ResponseWriter, flusher http.Flusher, frame sseFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		slog.Error("Failed to marshal SSE frame", "error", err)
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

type healthResponse struct {
	Status  string                `json:"status"`
	Sandbox *sandboxHealthSummary `json:"sandbox,omitempty"`
}

type sandboxHealthSummary struct {
	Status         string `json:"status"`
	ModalConnected bool   `json:"modal_connected"`
	Message        string `json:"message,omitempty"`
}

// handleHealth reports service health and passes through the sandbox
// health check. Sandbox state is informational; it never fails the check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := healthResponse{Status: "ok"}
	if s.sandbox != nil {
		status, err := s.sandbox.Health(r.Context())
		if err != nil {
			resp.Sandbox = &sandboxHealthSummary{Status: "unreachable", Message: err.Error()}
		} else {
			resp.Sandbox = &sandboxHealthSummary{
				Status:         status.Status,
				ModalConnected: status.ModalConnected,
				Message:        status.Message,
			}
		}
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

type createSessionRequest struct {
	Title string `json:"title"`
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		http.Error(w, "Session store disabled", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")

	switch r.Method {
	case http.MethodGet:
		json.NewEncoder(w).Encode(map[string]interface{}{"sessions": s.sessions.Sessions()})
	case http.MethodPost:
		var req createSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		meta, err := s.sessions.CreateSession(req.Title)
		if err != nil {
			if lancetErrors.Is(err, lancetErrors.ErrConflict) {
				http.Error(w, err.Error(), http.StatusConflict)
				return
			}
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(meta)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
