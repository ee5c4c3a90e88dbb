package store

import (
	"fmt"
)

// A Chat node holds a conversation transcript in metadata["messages"] and is
// bound to its project by a CONVERSATION_IN edge (Chat → Project).

// Message is one turn of a conversation transcript.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	TS      int64  `json:"ts"`
}

// CreateConversation creates a Chat node linked to the given project.
func (s *Store) CreateConversation(projectID, title string) (*Node, error) {
	if title == "" {
		title = "New conversation"
	}
	node, err := s.CreateNode(NodeParams{
		Type:     TypeChat,
		Title:    title,
		Metadata: map[string]any{"messages": []any{}},
	})
	if err != nil {
		return nil, err
	}
	if err := s.ConnectNodes(node.ID, projectID, RelConversationIn); err != nil {
		return nil, err
	}
	return node, nil
}

// GetConversation fetches a Chat node. Returns (nil, nil) when the id is
// unknown or names a node of another type.
func (s *Store) GetConversation(convID string) (*Node, error) {
	node, err := s.GetNode(convID)
	if err != nil {
		return nil, err
	}
	if node == nil || node.Type != TypeChat {
		return nil, nil
	}
	return node, nil
}

// ListConversations returns the Chat nodes of a project, most recently
// active first.
func (s *Store) ListConversations(projectID string) ([]*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT n.id, n.node_type, n.title, n.content_path, n.metadata, n.created_at, n.updated_at
		FROM   nodes n
		JOIN   edges e ON e.source_id = n.id
		WHERE  n.node_type     = ?
		  AND  e.relation_type = ?
		  AND  e.target_id     = ?
		ORDER  BY n.updated_at DESC`,
		TypeChat, RelConversationIn, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	convs := []*Node{}
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, n)
	}
	return convs, rows.Err()
}

// AppendMessages merges new turns into metadata["messages"] and refreshes
// updated_at. Returns ErrNotFound when convID is not a Chat node.
func (s *Store) AppendMessages(convID string, messages []Message) (*Node, error) {
	node, err := s.GetConversation(convID)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, fmt.Errorf("%w: chat %s", ErrNotFound, convID)
	}

	existing, _ := node.Metadata["messages"].([]any)
	merged := make([]any, 0, len(existing)+len(messages))
	merged = append(merged, existing...)
	for _, m := range messages {
		merged = append(merged, map[string]any{"role": m.Role, "content": m.Content, "ts": m.TS})
	}

	meta := make(map[string]any, len(node.Metadata))
	for k, v := range node.Metadata {
		meta[k] = v
	}
	meta["messages"] = merged

	return s.UpdateNode(convID, map[string]any{"metadata": meta})
}

// ConversationMessages decodes the transcript out of a Chat node's metadata.
func ConversationMessages(node *Node) []Message {
	raw, _ := node.Metadata["messages"].([]any)
	msgs := make([]Message, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		msg := Message{}
		msg.Role, _ = m["role"].(string)
		msg.Content, _ = m["content"].(string)
		switch ts := m["ts"].(type) {
		case float64:
			msg.TS = int64(ts)
		case int64:
			msg.TS = ts
		}
		msgs = append(msgs, msg)
	}
	return msgs
}

// DeleteConversation removes a Chat node and, via cascade, its edges.
// Unknown ids are a no-op.
func (s *Store) DeleteConversation(convID string) error {
	return s.DeleteNode(convID)
}
