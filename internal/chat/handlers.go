package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/smartbeauty/skincare-rag/internal/advisor"
	"github.com/smartbeauty/skincare-rag/internal/retriever"
	"github.com/smartbeauty/skincare-rag/internal/storage"
)

// Advisor is the orchestrator surface the endpoint calls into.
type Advisor interface {
	Ask(ctx context.Context, sessionID, message string) (*advisor.Turn, error)
	Reset(sessionID string)
	Sessions() *advisor.SessionStore
}

// Store is the read-only introspection surface for health and stats.
type Store interface {
	Health(ctx context.Context) error
	CountDocuments(ctx context.Context, collection string) (int, error)
}

// Handler serves the chat API.
type Handler struct {
	advisor     Advisor
	store       Store
	model       string
	timeout     time.Duration
	useFallback bool
	logger      *slog.Logger
}

// Config holds handler dependencies and options.
type Config struct {
	Advisor Advisor
	Store   Store
	Model   string        // chat model name, reported by health/stats
	Timeout time.Duration // per-request bound on ask calls
	// Fallback enables keyword-matched canned answers when generation fails.
	Fallback bool
	Logger   *slog.Logger
}

// NewHandler creates the chat API handler.
func NewHandler(cfg Config) *Handler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Handler{
		advisor:     cfg.Advisor,
		store:       cfg.Store,
		model:       cfg.Model,
		timeout:     cfg.Timeout,
		useFallback: cfg.Fallback,
		logger:      cfg.Logger,
	}
}

// Register mounts the API routes on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/chat", h.handleChat)
	mux.HandleFunc("/api/reset", h.handleReset)
	mux.HandleFunc("/api/health", h.handleHealth)
	mux.HandleFunc("/api/stats", h.handleStats)
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	turn, err := h.advisor.Ask(ctx, sessionID, req.Message)
	if err != nil {
		h.respondAskError(w, req.Message, sessionID, err)
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Answer:           turn.Answer,
		Sources:          toSources(turn.Retrieved),
		Tokens:           Tokens{InputTokens: turn.Tokens.Input, OutputTokens: turn.Tokens.Output, TotalTokens: turn.Tokens.Total},
		UsingMemory:      turn.UsingMemory,
		ConversationTurn: turn.Index,
		SessionID:        sessionID,
		Timestamp:        turn.Timestamp.Format(time.RFC3339),
	})
}

// respondAskError maps orchestrator errors onto HTTP responses. Validation
// errors are the caller's to fix; generation and configuration failures get
// an apologetic message, optionally substituted by a keyword-matched canned
// answer when fallback mode is on.
func (h *Handler) respondAskError(w http.ResponseWriter, message, sessionID string, err error) {
	switch {
	case errors.Is(err, advisor.ErrEmptyMessage), errors.Is(err, advisor.ErrMessageTooLong):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		writeError(w, http.StatusGatewayTimeout, "request timed out")
	case errors.Is(err, advisor.ErrGeneration), errors.Is(err, retriever.ErrModelMismatch):
		h.logger.Error("Ask failed", "session", sessionID, "error", err)
		if !h.useFallback {
			writeError(w, http.StatusBadGateway, "answer generation failed")
			return
		}
		answer, sources := fallbackAnswer(message)
		writeJSON(w, http.StatusOK, Response{
			Answer:    answer,
			Sources:   sources,
			Tokens:    Tokens{},
			SessionID: sessionID,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	default:
		h.logger.Error("Ask failed", "session", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	h.advisor.Reset(req.SessionID)

	writeJSON(w, http.StatusOK, ResetResponse{
		Status:    "conversation_reset",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := HealthResponse{
		Model:     h.model,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if err := h.store.Health(ctx); err != nil {
		resp.Status = "unhealthy"
		resp.Qdrant = "disconnected"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	resp.Status = "healthy"
	resp.Qdrant = "connected"
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	collections := make(map[string]int)
	for _, collection := range []string{storage.CollectionProducts, storage.CollectionConditions} {
		count, err := h.store.CountDocuments(ctx, collection)
		if err != nil {
			h.logger.Warn("Failed to count collection", "collection", collection, "error", err)
			continue
		}
		collections[collection] = count
	}

	writeJSON(w, http.StatusOK, StatsResponse{
		Collections: collections,
		Sessions:    h.advisor.Sessions().Count(),
		Model:       h.model,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	})
}

func toSources(results retriever.Results) []Source {
	sources := make([]Source, 0, len(results))
	for _, result := range results {
		sources = append(sources, Source{
			Content:    result.Document.Content,
			Similarity: result.Similarity,
			Name:       result.Document.Metadata.DisplayName,
			Type:       result.Document.Metadata.Type,
			Rank:       result.Rank,
		})
	}
	return sources
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
