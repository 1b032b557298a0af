// Package llm wraps chat-completion calls to the language model, surfacing
// the model's own token accounting alongside the answer.
package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"

	"github.com/smartbeauty/skincare-rag/internal/embedding"
)

// DefaultModel is the chat model used when none is configured.
const DefaultModel = "gpt-4o"

// Message is one chat message in a completion request.
type Message struct {
	Role    string // "system", "user", or "assistant"
	Content string
}

// Usage is the model's reported token accounting for one completion.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Completion is a generated answer with its usage.
type Completion struct {
	Content string
	Usage   Usage
}

// Client calls the chat-completion API.
type Client struct {
	client *openai.Client
	model  string
}

// NewClient creates a chat client sharing the embedding package's OpenAI client.
// An empty model selects DefaultModel.
func NewClient(shared *embedding.Client, model string) *Client {
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		client: shared.Client(),
		model:  model,
	}
}

// Model returns the configured chat model name.
func (c *Client) Model() string { return c.model }

// Complete sends the messages to the model and returns the answer with token
// usage. Token counts come from the API response, never estimated locally.
func (c *Client) Complete(ctx context.Context, messages []Message) (*Completion, error) {
	params := openai.ChatCompletionNewParams{
		Messages: make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)),
		Model:    openai.ChatModel(c.model),
	}

	for _, msg := range messages {
		switch msg.Role {
		case "system":
			params.Messages = append(params.Messages, openai.SystemMessage(msg.Content))
		case "assistant":
			params.Messages = append(params.Messages, openai.AssistantMessage(msg.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(msg.Content))
		}
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	return &Completion{
		Content: resp.Choices[0].Message.Content,
		Usage: Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
		},
	}, nil
}
