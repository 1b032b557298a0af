package advisor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartbeauty/skincare-rag/internal/llm"
	"github.com/smartbeauty/skincare-rag/internal/retriever"
	"github.com/smartbeauty/skincare-rag/internal/storage"
)

type fakeRetriever struct {
	results retriever.Results
	err     error
}

func (f *fakeRetriever) Search(ctx context.Context, collection, query string, k int, typeFilter string) (retriever.Results, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type fakeGenerator struct {
	mu      sync.Mutex
	prompts [][]llm.Message
	err     error
	answer  string
	input   int
	output  int
}

func (f *fakeGenerator) Complete(ctx context.Context, messages []llm.Message) (*llm.Completion, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, messages)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	answer := f.answer
	if answer == "" {
		answer = fmt.Sprintf("answer %d", len(f.prompts))
	}
	return &llm.Completion{
		Content: answer,
		Usage:   llm.Usage{InputTokens: f.input, OutputTokens: f.output},
	}, nil
}

func (f *fakeGenerator) lastPrompt() []llm.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prompts[len(f.prompts)-1]
}

func sampleResults() retriever.Results {
	return retriever.Results{
		{
			Document: &storage.Document{
				Content: "Product Name: Clarifying Cleanser\nDescription: For oily skin.",
				Metadata: storage.DocumentMetadata{
					SourceTable: "product", SourceID: "1",
					DisplayName: "Clarifying Cleanser", Type: "product",
				},
			},
			Similarity: 0.91,
			Rank:       1,
		},
	}
}

func newTestOrchestrator(ret Retriever, gen Generator) *Orchestrator {
	return New(ret, gen, Config{}, nil)
}

func TestAsk_FirstTurn(t *testing.T) {
	gen := &fakeGenerator{input: 120, output: 45}
	o := newTestOrchestrator(&fakeRetriever{results: sampleResults()}, gen)

	turn, err := o.Ask(context.Background(), "s1", "What helps oily skin?")
	require.NoError(t, err)

	assert.Equal(t, 0, turn.Index)
	assert.False(t, turn.UsingMemory, "first turn has no prior memory")
	assert.Equal(t, "What helps oily skin?", turn.UserMessage)
	require.Len(t, turn.Retrieved, 1)
	assert.Equal(t, 120, turn.Tokens.Input)
	assert.Equal(t, 45, turn.Tokens.Output)
	assert.Equal(t, 165, turn.Tokens.Total, "total must equal input plus output")

	prompt := gen.lastPrompt()
	require.NotEmpty(t, prompt)
	assert.Equal(t, "system", prompt[0].Role)
	last := prompt[len(prompt)-1]
	assert.Equal(t, "user", last.Role)
	assert.Contains(t, last.Content, "Clarifying Cleanser")
	assert.Contains(t, last.Content, "What helps oily skin?")
}

func TestAsk_TurnIndexesAreMonotonic(t *testing.T) {
	o := newTestOrchestrator(&fakeRetriever{results: sampleResults()}, &fakeGenerator{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		turn, err := o.Ask(ctx, "s1", fmt.Sprintf("question %d", i))
		require.NoError(t, err)
		assert.Equal(t, i, turn.Index)
		assert.Equal(t, i > 0, turn.UsingMemory)
	}
}

func TestAsk_MemoryWindowCarriesPriorTurns(t *testing.T) {
	gen := &fakeGenerator{answer: "Try the Clarifying Cleanser."}
	o := newTestOrchestrator(&fakeRetriever{results: sampleResults()}, gen)
	ctx := context.Background()

	_, err := o.Ask(ctx, "s1", "What helps oily skin?")
	require.NoError(t, err)
	_, err = o.Ask(ctx, "s1", "Is it safe for daily use?")
	require.NoError(t, err)

	prompt := gen.lastPrompt()
	// system + prior user/assistant pair + current grounded question
	require.Len(t, prompt, 4)
	assert.Equal(t, "What helps oily skin?", prompt[1].Content, "history carries the original user text")
	assert.Equal(t, "Try the Clarifying Cleanser.", prompt[2].Content)
	assert.Equal(t, "assistant", prompt[2].Role)
}

func TestAsk_MemoryWindowIsBounded(t *testing.T) {
	gen := &fakeGenerator{}
	o := New(&fakeRetriever{results: sampleResults()}, gen, Config{MemoryWindow: 2}, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := o.Ask(ctx, "s1", fmt.Sprintf("question %d", i))
		require.NoError(t, err)
	}

	prompt := gen.lastPrompt()
	// system + 2 windowed pairs + current question
	require.Len(t, prompt, 6)
	assert.Equal(t, "question 2", prompt[1].Content, "turns older than the window are dropped")
	assert.Equal(t, "question 3", prompt[3].Content)
}

func TestAsk_SessionsAreIsolated(t *testing.T) {
	gen := &fakeGenerator{}
	o := newTestOrchestrator(&fakeRetriever{results: sampleResults()}, gen)
	ctx := context.Background()

	_, err := o.Ask(ctx, "alice", "What helps oily skin?")
	require.NoError(t, err)

	turn, err := o.Ask(ctx, "bob", "What helps redness?")
	require.NoError(t, err)
	assert.Equal(t, 0, turn.Index)
	assert.False(t, turn.UsingMemory)

	// system + bob's grounded question only; alice's turn must not appear as
	// a history pair in bob's prompt.
	prompt := gen.lastPrompt()
	require.Len(t, prompt, 2)
	assert.Contains(t, prompt[1].Content, "What helps redness?")
	assert.NotEqual(t, "What helps oily skin?", prompt[1].Content)
}

func TestAsk_EmptyMessage(t *testing.T) {
	o := newTestOrchestrator(&fakeRetriever{}, &fakeGenerator{})

	_, err := o.Ask(context.Background(), "s1", "   \n\t ")
	require.ErrorIs(t, err, ErrEmptyMessage)
}

func TestAsk_MessageTooLong(t *testing.T) {
	o := New(&fakeRetriever{}, &fakeGenerator{}, Config{MaxMessageLen: 10}, nil)

	_, err := o.Ask(context.Background(), "s1", strings.Repeat("x", 11))
	require.ErrorIs(t, err, ErrMessageTooLong)
}

func TestAsk_RetrievalFailureDegradesToUngrounded(t *testing.T) {
	gen := &fakeGenerator{}
	o := newTestOrchestrator(&fakeRetriever{err: storage.ErrStoreUnreachable}, gen)

	turn, err := o.Ask(context.Background(), "s1", "What helps oily skin?")
	require.NoError(t, err, "an unreachable store degrades the turn, it does not fail it")
	assert.Empty(t, turn.Retrieved)

	last := gen.lastPrompt()[len(gen.lastPrompt())-1]
	assert.Contains(t, last.Content, "could not consult the product catalog")
}

func TestAsk_GenerationFailureLeavesSessionUnchanged(t *testing.T) {
	genErr := errors.New("model overloaded")
	o := newTestOrchestrator(&fakeRetriever{results: sampleResults()}, &fakeGenerator{err: genErr})
	ctx := context.Background()

	_, err := o.Ask(ctx, "s1", "What helps oily skin?")
	require.ErrorIs(t, err, ErrGeneration)

	sess := o.Sessions().GetOrCreate("s1")
	assert.Equal(t, 0, sess.TurnCount, "a failed turn must not be recorded")
	assert.Empty(t, sess.History)
}

func TestAsk_ConcurrentTurnsSameSession(t *testing.T) {
	o := newTestOrchestrator(&fakeRetriever{results: sampleResults()}, &fakeGenerator{})
	ctx := context.Background()

	var wg sync.WaitGroup
	indexes := make(chan int, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			turn, err := o.Ask(ctx, "s1", "hello")
			if assert.NoError(t, err) {
				indexes <- turn.Index
			}
		}()
	}
	wg.Wait()
	close(indexes)

	seen := make(map[int]bool)
	for idx := range indexes {
		assert.False(t, seen[idx], "turn index %d assigned twice", idx)
		seen[idx] = true
	}
	assert.Len(t, seen, 10)
}

func TestReset_ClearsMemory(t *testing.T) {
	gen := &fakeGenerator{}
	o := newTestOrchestrator(&fakeRetriever{results: sampleResults()}, gen)
	ctx := context.Background()

	_, err := o.Ask(ctx, "s1", "What helps oily skin?")
	require.NoError(t, err)

	o.Reset("s1")

	turn, err := o.Ask(ctx, "s1", "What about redness?")
	require.NoError(t, err)
	assert.Equal(t, 0, turn.Index, "turn count restarts after reset")
	assert.False(t, turn.UsingMemory)

	// system + current question only; the pre-reset turn is gone
	require.Len(t, gen.lastPrompt(), 2)
}

func TestReset_UnknownSessionIsNoOp(t *testing.T) {
	o := newTestOrchestrator(&fakeRetriever{}, &fakeGenerator{})
	o.Reset("never-seen") // must not panic or create state
	assert.Equal(t, 0, o.Sessions().Count())
}
