package rag

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research/internal/llm"
	"research/internal/store"
)

const testDim = 4

// tokenLLM streams a fixed token sequence and records the prompt it saw.
type tokenLLM struct {
	tokens     []string
	completion string
	failStream bool
	lastPrompt []llm.Message
}

func (c *tokenLLM) Complete(_ context.Context, messages []llm.Message) (string, error) {
	c.lastPrompt = messages
	if c.completion == "" {
		return strings.Join(c.tokens, ""), nil
	}
	return c.completion, nil
}

func (c *tokenLLM) StreamComplete(ctx context.Context, messages []llm.Message) (<-chan string, <-chan error) {
	c.lastPrompt = messages
	tokens := make(chan string)
	errs := make(chan error, 1)
	go func() {
		defer close(tokens)
		defer close(errs)
		if c.failStream {
			errs <- fmt.Errorf("model connection lost")
			return
		}
		for _, tok := range c.tokens {
			select {
			case tokens <- tok:
			case <-ctx.Done():
				return
			}
		}
	}()
	return tokens, errs
}

type fakeEmbedder struct {
	fail bool
}

func (e fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if e.fail {
		return nil, fmt.Errorf("embedder offline")
	}
	vec := make([]float32, testDim)
	for i := range vec {
		vec[i] = float32((len(text) + i) % 5)
	}
	return vec, nil
}

func (e fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (fakeEmbedder) Dimensions() int { return testDim }
func (fakeEmbedder) Name() string    { return "fake" }

func newTestEngine(t *testing.T, chat llm.Client, embedder fakeEmbedder) (*Engine, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "library.db"), testDim, nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return NewEngine(st, embedder, chat, nil), st
}

// seedChunk writes one searchable chunk node with metadata, body, and vector.
func seedChunk(t *testing.T, st *store.Store, title, text, url string) *store.Node {
	t.Helper()
	n, err := st.CreateNode(store.NodeParams{
		Type:     store.TypeChunk,
		Title:    title,
		Metadata: map[string]any{"text": text, "url": url},
	})
	require.NoError(t, err)
	require.NoError(t, st.SetContentBody(n.ID, text))
	require.NoError(t, st.UpsertEmbedding(n.ID, []float32{1, 0, 0, 0}))
	return n
}

func collect(events <-chan Event) []Event {
	var out []Event
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func TestChatStreamTokensCitationsDone(t *testing.T) {
	chat := &tokenLLM{tokens: []string{"The ", "answer ", "[1]"}}
	engine, st := newTestEngine(t, chat, fakeEmbedder{})
	seedChunk(t, st, "Electrolytes", "electrolyte chemistry is central to batteries", "https://src.example")

	events := collect(engine.ChatStream(context.Background(), "electrolyte chemistry", nil, ""))
	require.NotEmpty(t, events)

	var tokens []string
	var citations []Citation
	for _, ev := range events {
		if ev.Type == EventToken {
			tokens = append(tokens, ev.Text)
		}
		if ev.Type == EventCitation {
			citations = ev.Nodes
		}
	}

	assert.Equal(t, []string{"The ", "answer ", "[1]"}, tokens)
	require.Len(t, citations, 1)
	assert.Equal(t, "Electrolytes", citations[0].Title)
	assert.Equal(t, "https://src.example", citations[0].URL)

	// The citation payload arrives after the last token; done is terminal.
	assert.Equal(t, EventCitation, events[len(events)-2].Type)
	assert.Equal(t, EventDone, events[len(events)-1].Type)

	// The system prompt lists retrieved chunks as [i] text.
	require.NotEmpty(t, chat.lastPrompt)
	system := chat.lastPrompt[0]
	assert.Equal(t, llm.RoleSystem, system.Role)
	assert.Contains(t, system.Content, "[1] electrolyte chemistry is central to batteries")
}

func TestChatStreamNoSources(t *testing.T) {
	chat := &tokenLLM{tokens: []string{"Sorry."}}
	engine, _ := newTestEngine(t, chat, fakeEmbedder{})

	events := collect(engine.ChatStream(context.Background(), "anything at all", nil, ""))

	// No citation event when nothing was retrieved.
	for _, ev := range events {
		assert.NotEqual(t, EventCitation, ev.Type)
	}
	assert.Equal(t, EventDone, events[len(events)-1].Type)
	assert.Contains(t, chat.lastPrompt[0].Content, "No relevant sources")
}

func TestChatStreamHistoryTrimmed(t *testing.T) {
	chat := &tokenLLM{tokens: []string{"ok"}}
	engine, _ := newTestEngine(t, chat, fakeEmbedder{})

	var history []store.Message
	for i := 0; i < 30; i++ {
		history = append(history,
			store.Message{Role: "user", Content: fmt.Sprintf("u%d", i)},
			store.Message{Role: "assistant", Content: fmt.Sprintf("a%d", i)},
		)
	}

	collect(engine.ChatStream(context.Background(), "question", history, ""))

	// system + 10 trimmed turns (20 messages) + current question.
	require.Len(t, chat.lastPrompt, 1+maxHistoryTurns*2+1)
	assert.Equal(t, "u20", chat.lastPrompt[1].Content, "oldest turns dropped")
	assert.Equal(t, "question", chat.lastPrompt[len(chat.lastPrompt)-1].Content)
}

func TestChatStreamModelErrorEmitsErrorEvent(t *testing.T) {
	chat := &tokenLLM{failStream: true}
	engine, _ := newTestEngine(t, chat, fakeEmbedder{})

	events := collect(engine.ChatStream(context.Background(), "question", nil, ""))
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, EventError, last.Type)
	assert.Contains(t, last.Detail, "connection lost")
}

func TestChatStreamCancellation(t *testing.T) {
	chat := &tokenLLM{tokens: make([]string, 1000)}
	for i := range chat.tokens {
		chat.tokens[i] = "tok "
	}
	engine, _ := newTestEngine(t, chat, fakeEmbedder{})

	ctx, cancel := context.WithCancel(context.Background())
	events := engine.ChatStream(ctx, "question", nil, "")

	// Read a couple of tokens, then cancel the consumer.
	<-events
	cancel()
	for range events {
	}
}

func TestChatStreamProjectScope(t *testing.T) {
	chat := &tokenLLM{tokens: []string{"ok"}}
	engine, st := newTestEngine(t, chat, fakeEmbedder{})

	project, _ := st.CreateProject("p")
	inScope := seedChunk(t, st, "in scope", "shared topic text", "")
	seedChunk(t, st, "out of scope", "shared topic text", "")
	require.NoError(t, st.LinkToProject(project.ID, inScope.ID, store.RelHasSource))

	events := collect(engine.ChatStream(context.Background(), "shared topic", nil, project.ID))

	var citations []Citation
	for _, ev := range events {
		if ev.Type == EventCitation {
			citations = ev.Nodes
		}
	}
	require.Len(t, citations, 1)
	assert.Equal(t, inScope.ID, citations[0].ID)
}

func TestRecall(t *testing.T) {
	chat := &tokenLLM{completion: "Grounded answer [1]."}
	engine, st := newTestEngine(t, chat, fakeEmbedder{})
	seedChunk(t, st, "Electrolytes", "electrolyte chemistry is central", "")

	answer, err := engine.Recall(context.Background(), "electrolyte chemistry", "")
	require.NoError(t, err)
	assert.Contains(t, answer, "Grounded answer [1].")
	assert.Contains(t, answer, "Sources:")
	assert.Contains(t, answer, "[1] Electrolytes")
}

func TestRecallEmptyStore(t *testing.T) {
	chat := &tokenLLM{completion: "should not be called"}
	engine, _ := newTestEngine(t, chat, fakeEmbedder{})

	answer, err := engine.Recall(context.Background(), "anything", "")
	require.NoError(t, err)
	assert.Equal(t, "No relevant sources found in the knowledge base.", answer)
}

func TestRecallEmbedderDownFallsBackToKeyword(t *testing.T) {
	chat := &tokenLLM{completion: "keyword-grounded"}
	engine, st := newTestEngine(t, chat, fakeEmbedder{fail: true})
	seedChunk(t, st, "Electrolytes", "electrolyte chemistry is central", "")

	answer, err := engine.Recall(context.Background(), "electrolyte", "")
	require.NoError(t, err)
	assert.Contains(t, answer, "keyword-grounded")
}
