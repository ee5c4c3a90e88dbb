package store

import (
	"testing"
)

func TestConversationLifecycle(t *testing.T) {
	s := newTestStore(t)
	project, _ := s.CreateProject("p")

	conv, err := s.CreateConversation(project.ID, "First chat")
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}
	if conv.Type != TypeChat {
		t.Fatalf("Expected Chat node, got %s", conv.Type)
	}

	// The Chat -> Project edge exists.
	edges, _ := s.GetEdges(conv.ID)
	if len(edges) != 1 || edges[0].RelationType != RelConversationIn || edges[0].TargetID != project.ID {
		t.Fatalf("Missing CONVERSATION_IN edge: %+v", edges)
	}

	convs, err := s.ListConversations(project.ID)
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	if len(convs) != 1 || convs[0].ID != conv.ID {
		t.Fatalf("Conversation not listed: %+v", convs)
	}
}

func TestAppendMessages(t *testing.T) {
	s := newTestStore(t)
	project, _ := s.CreateProject("p")
	conv, _ := s.CreateConversation(project.ID, "")

	updated, err := s.AppendMessages(conv.ID, []Message{
		{Role: "user", Content: "hello", TS: 100},
		{Role: "assistant", Content: "hi there", TS: 101},
	})
	if err != nil {
		t.Fatalf("AppendMessages failed: %v", err)
	}

	msgs := ConversationMessages(updated)
	if len(msgs) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != "user" || msgs[1].Content != "hi there" || msgs[1].TS != 101 {
		t.Fatalf("Messages did not round-trip: %+v", msgs)
	}

	// Appending again accumulates.
	updated, _ = s.AppendMessages(conv.ID, []Message{{Role: "user", Content: "more", TS: 102}})
	if got := len(ConversationMessages(updated)); got != 3 {
		t.Fatalf("Expected 3 messages after second append, got %d", got)
	}
}

func TestGetConversationWrongType(t *testing.T) {
	s := newTestStore(t)

	node, _ := s.CreateNode(NodeParams{Type: TypeSource, Title: "not a chat"})
	conv, err := s.GetConversation(node.ID)
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if conv != nil {
		t.Fatal("Source node must not resolve as a conversation")
	}
}

func TestAppendMessagesMissing(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.AppendMessages("nope", []Message{{Role: "user", Content: "x"}}); err == nil {
		t.Fatal("Expected error for unknown conversation")
	}
}
