// Package mcp exposes the catalog index to MCP clients as read-only tools.
package mcp

// SearchCatalogInput defines the input parameters for the search_catalog tool.
type SearchCatalogInput struct {
	// Query is the semantic search query.
	Query string `json:"query" jsonschema:"required,description=The semantic search query for finding relevant products or skin conditions"`
	// Collection selects the index to search: "products" or "skin_conditions".
	Collection string `json:"collection,omitempty" jsonschema:"description=Collection to search (products or skin_conditions; default products)"`
	// MaxResults is the maximum number of documents to return.
	MaxResults int `json:"max_results,omitempty" jsonschema:"minimum=1,maximum=20,default=5,description=Maximum number of documents to return"`
	// Type optionally restricts results to one record kind.
	Type string `json:"type,omitempty" jsonschema:"description=Optional metadata type filter (product or condition)"`
}

// SearchCatalogOutput contains the search results.
type SearchCatalogOutput struct {
	Results []SearchResult `json:"results"`
	Message string         `json:"message,omitempty"`
}

// SearchResult is a single catalog match from semantic search.
type SearchResult struct {
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
	Rank       int     `json:"rank"`
}

// StatusInput defines the input for the get_index_status tool. No parameters.
type StatusInput struct{}

// StatusOutput reports document counts per collection.
type StatusOutput struct {
	Collections map[string]int `json:"collections"`
	TotalDocs   int            `json:"total_docs"`
	Timestamp   string         `json:"timestamp"`
}
