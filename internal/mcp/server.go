package mcp

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/smartbeauty/skincare-rag/internal/retriever"
	"github.com/smartbeauty/skincare-rag/internal/storage"
)

// Searcher is the retrieval surface the tools call into.
type Searcher interface {
	Search(ctx context.Context, collection, query string, k int, typeFilter string) (retriever.Results, error)
}

// Counter reports per-collection document counts.
type Counter interface {
	CountDocuments(ctx context.Context, collection string) (int, error)
}

// Server wraps the MCP server with dependencies.
type Server struct {
	server *mcp.Server
}

// Config holds server dependencies.
type Config struct {
	Retriever Searcher
	Storage   Counter
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg *Config) *Server {
	impl := &mcp.Implementation{
		Name:    "skincare-catalog-server",
		Version: "v0.1.0",
	}

	server := mcp.NewServer(impl, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_catalog",
		Description: "Search the skincare product and condition catalog semantically. Returns matching documents with similarity scores.",
	}, makeSearchHandler(cfg.Retriever))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_index_status",
		Description: "Get document counts for the products and skin_conditions collections.",
	}, makeStatusHandler(cfg.Storage))

	return &Server{server: server}
}

// Run starts the server with stdio transport (blocks until client disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// NewHTTPHandler returns a Streamable HTTP handler for the server, mountable
// on any mux path (e.g. "/mcp").
func NewHTTPHandler(server *Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return server.server
	}, &mcp.StreamableHTTPOptions{Stateless: true})
}

// makeSearchHandler creates the search_catalog tool handler.
func makeSearchHandler(ret Searcher) func(
	context.Context, *mcp.CallToolRequest, SearchCatalogInput,
) (*mcp.CallToolResult, SearchCatalogOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchCatalogInput) (
		*mcp.CallToolResult, SearchCatalogOutput, error,
	) {
		collection := input.Collection
		if collection == "" {
			collection = storage.CollectionProducts
		}
		maxResults := input.MaxResults
		if maxResults <= 0 {
			maxResults = 5
		}

		results, err := ret.Search(ctx, collection, input.Query, maxResults, input.Type)
		if err != nil {
			return nil, SearchCatalogOutput{}, fmt.Errorf("search failed: %w", err)
		}

		out := SearchCatalogOutput{Results: make([]SearchResult, 0, len(results))}
		for _, result := range results {
			out.Results = append(out.Results, SearchResult{
				Name:       result.Document.Metadata.DisplayName,
				Type:       result.Document.Metadata.Type,
				Content:    result.Document.Content,
				Similarity: result.Similarity,
				Rank:       result.Rank,
			})
		}

		if len(out.Results) == 0 {
			out.Message = "No matching documents found. Try broader search terms."
		}

		return nil, out, nil
	}
}

// makeStatusHandler creates the get_index_status tool handler.
func makeStatusHandler(store Counter) func(
	context.Context, *mcp.CallToolRequest, StatusInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input StatusInput) (
		*mcp.CallToolResult, StatusOutput, error,
	) {
		out := StatusOutput{
			Collections: make(map[string]int),
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
		}

		for _, collection := range []string{storage.CollectionProducts, storage.CollectionConditions} {
			count, err := store.CountDocuments(ctx, collection)
			if err != nil {
				return nil, StatusOutput{}, fmt.Errorf("failed to count %s: %w", collection, err)
			}
			out.Collections[collection] = count
			out.TotalDocs += count
		}

		return nil, out, nil
	}
}
