// Package main provides the chat server entry point for the skincare advisor.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/smartbeauty/skincare-rag/internal/advisor"
	"github.com/smartbeauty/skincare-rag/internal/chat"
	"github.com/smartbeauty/skincare-rag/internal/embedding"
	"github.com/smartbeauty/skincare-rag/internal/llm"
	mcpserver "github.com/smartbeauty/skincare-rag/internal/mcp"
	"github.com/smartbeauty/skincare-rag/internal/retriever"
	"github.com/smartbeauty/skincare-rag/internal/storage"
)

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Create context that cancels on SIGTERM/SIGINT
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// Configuration from environment
	qdrantHost := getEnv("QDRANT_HOST", "localhost")
	qdrantPort := getEnvInt("QDRANT_PORT", 6334)
	port := getEnv("PORT", "8080")
	chatModel := getEnv("CHAT_MODEL", llm.DefaultModel)

	// Initialize storage
	store, err := storage.NewQdrantStorage(qdrantHost, qdrantPort)
	if err != nil {
		log.Fatalf("failed to connect to Qdrant: %v", err)
	}
	defer store.Close()

	// Initialize OpenAI clients
	openaiClient, err := embedding.NewClient()
	if err != nil {
		log.Fatalf("failed to create OpenAI client: %v", err)
	}
	embedder := embedding.NewEmbedder(openaiClient, 0) // Use default batch size
	model := llm.NewClient(openaiClient, chatModel)

	// Wire the retrieval and conversation pipeline
	ret := retriever.New(embedder, store, nil)
	orchestrator := advisor.New(ret, model, advisor.Config{
		Collection:    getEnv("CHAT_COLLECTION", storage.CollectionProducts),
		TopK:          getEnvInt("TOP_K", 5),
		MemoryWindow:  getEnvInt("MEMORY_WINDOW", 5),
		MaxMessageLen: getEnvInt("MAX_MESSAGE_LEN", 2000),
	}, nil)

	// Evict sessions idle longer than the TTL
	sessionTTL := getEnvDuration("SESSION_TTL", 30*time.Minute)
	go func() {
		ticker := time.NewTicker(sessionTTL / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if reaped := orchestrator.Sessions().Reap(sessionTTL); reaped > 0 {
					log.Printf("reaped %d idle sessions", reaped)
				}
			}
		}
	}()

	// Chat API routes
	mux := http.NewServeMux()
	handler := chat.NewHandler(chat.Config{
		Advisor:  orchestrator,
		Store:    store,
		Model:    chatModel,
		Timeout:  getEnvDuration("REQUEST_TIMEOUT", 60*time.Second),
		Fallback: getEnv("CHAT_FALLBACK", "false") == "true",
	})
	handler.Register(mux)

	// MCP tool surface for agent clients
	mcpSrv := mcpserver.NewServer(&mcpserver.Config{
		Retriever: ret,
		Storage:   store,
	})
	mux.Handle("/mcp", mcpserver.NewHTTPHandler(mcpSrv))

	addr := "0.0.0.0:" + port
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Printf("Starting chat server on %s (API at /api/chat, MCP at /mcp)", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("HTTP server error: %v", err)
	}
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		var i int
		if _, err := fmt.Sscanf(v, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}
