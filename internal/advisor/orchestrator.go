// Package advisor holds the conversational orchestrator: per-session memory,
// grounded prompt assembly, generation, and token accounting.
package advisor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/smartbeauty/skincare-rag/internal/llm"
	"github.com/smartbeauty/skincare-rag/internal/retriever"
	"github.com/smartbeauty/skincare-rag/internal/storage"
)

// Retriever fetches grounding documents for a user message.
type Retriever interface {
	Search(ctx context.Context, collection, query string, k int, typeFilter string) (retriever.Results, error)
}

// Generator produces an answer with token usage for a prompt.
type Generator interface {
	Complete(ctx context.Context, messages []llm.Message) (*llm.Completion, error)
}

// Config tunes the orchestrator.
type Config struct {
	Collection    string // collection to retrieve from; defaults to products
	TopK          int    // documents retrieved per turn
	MemoryWindow  int    // prior turns included in the prompt
	MaxMessageLen int    // validation bound on user messages
}

// withDefaults fills zero fields.
func (c Config) withDefaults() Config {
	if c.Collection == "" {
		c.Collection = storage.CollectionProducts
	}
	if c.TopK <= 0 {
		c.TopK = 5
	}
	if c.MemoryWindow <= 0 {
		c.MemoryWindow = 5
	}
	if c.MaxMessageLen <= 0 {
		c.MaxMessageLen = 2000
	}
	return c
}

// Orchestrator coordinates retrieval, memory, and generation for chat turns.
// Turns addressed to the same session are serialized for the duration of Ask;
// different sessions proceed in parallel.
type Orchestrator struct {
	retriever Retriever
	model     Generator
	sessions  *SessionStore
	cfg       Config
	logger    *slog.Logger
}

// New creates an orchestrator with its own session store.
func New(ret Retriever, model Generator, cfg Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		retriever: ret,
		model:     model,
		sessions:  NewSessionStore(),
		cfg:       cfg.withDefaults(),
		logger:    logger,
	}
}

// Sessions exposes the session store for eviction timers and stats.
func (o *Orchestrator) Sessions() *SessionStore {
	return o.sessions
}

// Ask runs one conversation turn: validate, retrieve grounding context, build
// the prompt from the memory window, generate, and append the turn.
//
// A retrieval failure degrades the turn to ungrounded rather than failing it;
// a generation failure surfaces as ErrGeneration with the session unchanged.
// The turn append happens only after generation succeeds, so a cancelled call
// never leaves a partially-recorded turn.
func (o *Orchestrator) Ask(ctx context.Context, sessionID, message string) (*Turn, error) {
	if strings.TrimSpace(message) == "" {
		return nil, ErrEmptyMessage
	}
	if len(message) > o.cfg.MaxMessageLen {
		return nil, fmt.Errorf("%w: %d > %d", ErrMessageTooLong, len(message), o.cfg.MaxMessageLen)
	}

	sess := o.sessions.Acquire(sessionID)
	defer sess.mu.Unlock()

	retrieved, err := o.retriever.Search(ctx, o.cfg.Collection, message, o.cfg.TopK, "")
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Vector store unreachable: proceed without grounding context.
		o.logger.Warn("Retrieval unavailable, answering ungrounded",
			"session", sessionID, "error", err)
		retrieved = retriever.Results{}
	}

	messages := buildMessages(sess.History, o.cfg.MemoryWindow, retrieved, message)

	completion, err := o.model.Complete(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	turn := Turn{
		Index:       sess.TurnCount,
		UserMessage: message,
		Retrieved:   retrieved,
		Answer:      completion.Content,
		Tokens: TokenUsage{
			Input:  completion.Usage.InputTokens,
			Output: completion.Usage.OutputTokens,
			Total:  completion.Usage.InputTokens + completion.Usage.OutputTokens,
		},
		UsingMemory: sess.TurnCount > 0,
		Timestamp:   time.Now().UTC(),
	}

	sess.History = append(sess.History, turn)
	sess.TurnCount++
	sess.LastActive = turn.Timestamp

	o.logger.Info("Completed turn",
		"session", sessionID,
		"turn", turn.Index,
		"grounded", len(retrieved) > 0,
		"tokens", turn.Tokens.Total,
	)

	return &turn, nil
}

// Reset clears the session's memory. Idempotent; unknown sessions succeed.
func (o *Orchestrator) Reset(sessionID string) {
	o.sessions.Reset(sessionID)
	o.logger.Info("Reset session", "session", sessionID)
}
