// Package chat exposes the HTTP endpoint that maps requests onto the
// conversational orchestrator.
package chat

// Request is the chat request body. SessionID is optional; the handler
// generates one when absent and returns it so the client can continue the
// conversation.
type Request struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// Source is one retrieved document attributed in the answer.
type Source struct {
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	Rank       int     `json:"rank"`
}

// Tokens is the model-reported accounting for the turn.
type Tokens struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Response is the chat response body.
type Response struct {
	Answer           string   `json:"answer"`
	Sources          []Source `json:"sources"`
	Tokens           Tokens   `json:"tokens"`
	UsingMemory      bool     `json:"using_memory"`
	ConversationTurn int      `json:"conversation_turn"`
	SessionID        string   `json:"session_id"`
	Timestamp        string   `json:"timestamp"`
}

// ErrorResponse carries an error message and nothing else.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ResetResponse acknowledges a session reset.
type ResetResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// HealthResponse reports endpoint and vector store health.
type HealthResponse struct {
	Status    string `json:"status"`
	Qdrant    string `json:"qdrant"`
	Model     string `json:"model"`
	Timestamp string `json:"timestamp"`
}

// StatsResponse exposes read-only index and session introspection.
type StatsResponse struct {
	Collections map[string]int `json:"collections"`
	Sessions    int            `json:"sessions"`
	Model       string         `json:"model"`
	Timestamp   string         `json:"timestamp"`
}
