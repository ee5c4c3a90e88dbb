package rag

import (
	"context"
	"fmt"
	"strings"

	"research/internal/llm"
	"research/internal/store"
)

// maxHistoryTurns bounds how much prior conversation enters the prompt.
const maxHistoryTurns = 10

// Event types emitted by ChatStream.
const (
	EventToken    = "token"
	EventCitation = "citation"
	EventDone     = "done"
	EventError    = "error"
)

// Citation identifies one retrieved node backing the answer.
type Citation struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Event is one frame of a streamed chat turn. Token events carry Text;
// the citation event carries Nodes; an error event carries Detail. The
// stream ends with either a done or an error event, unless ctx is cancelled
// first, in which case it closes without either.
type Event struct {
	Type   string     `json:"event"`
	Text   string     `json:"text,omitempty"`
	Nodes  []Citation `json:"nodes,omitempty"`
	Detail string     `json:"detail,omitempty"`
}

// ChatStream runs one retrieval-grounded chat turn and streams the model's
// tokens. The citation payload follows the last token; a done event closes
// the stream. Cancelling ctx cancels the underlying model stream.
func (e *Engine) ChatStream(ctx context.Context, question string, history []store.Message, projectID string) <-chan Event {
	events := make(chan Event)

	go func() {
		defer close(events)

		emit := func(ev Event) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		fail := func(err error) {
			emit(Event{Type: EventError, Detail: err.Error()})
		}

		scope, err := e.resolveScope(projectID)
		if err != nil {
			fail(err)
			return
		}

		results, err := e.retrieve(ctx, question, scope, DefaultTopK)
		if err != nil {
			fail(err)
			return
		}

		var contextParts []string
		var citations []Citation
		for i, node := range results {
			display := node.MetaString("text")
			if display == "" {
				display = node.Title
			}
			contextParts = append(contextParts, fmt.Sprintf("[%d] %s", i+1, display))
			citations = append(citations, Citation{
				ID:    node.ID,
				Title: node.Title,
				URL:   node.MetaString("url"),
			})
		}

		var system string
		if len(contextParts) > 0 {
			system = "You are a research assistant. Answer the user's question using " +
				"ONLY the provided sources. Cite sources by their number " +
				"(e.g. [1], [2]). If the sources do not contain enough " +
				"information to answer, say so.\n\n" +
				"Sources:\n" + strings.Join(contextParts, "\n\n")
		} else {
			system = "You are a research assistant. " +
				"No relevant sources were found in the knowledge base for this " +
				"question. Politely let the user know and offer general guidance " +
				"if possible."
		}

		messages := []llm.Message{llm.System(system)}
		trimmed := history
		if len(trimmed) > maxHistoryTurns*2 {
			trimmed = trimmed[len(trimmed)-maxHistoryTurns*2:]
		}
		for _, turn := range trimmed {
			if turn.Role == llm.RoleAssistant {
				messages = append(messages, llm.Assistant(turn.Content))
			} else {
				messages = append(messages, llm.User(turn.Content))
			}
		}
		messages = append(messages, llm.User(question))

		tokens, errs := e.chat.StreamComplete(ctx, messages)
		for token := range tokens {
			if !emit(Event{Type: EventToken, Text: token}) {
				return
			}
		}
		if err := <-errs; err != nil {
			fail(err)
			return
		}

		if len(citations) > 0 {
			if !emit(Event{Type: EventCitation, Nodes: citations}) {
				return
			}
		}
		emit(Event{Type: EventDone})
	}()

	return events
}
