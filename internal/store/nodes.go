package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NodeParams describes a node to create. ID is optional; a fresh UUID is
// assigned when empty.
type NodeParams struct {
	ID          string
	Type        string
	Title       string
	ContentPath string
	Metadata    map[string]any
}

// CreateNode inserts a new node and returns the materialised row. The
// nodes_ai trigger inserts the companion blank lexical-index row.
func (s *Store) CreateNode(p NodeParams) (*Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := s.now()

	metaJSON, err := marshalMeta(p.Metadata)
	if err != nil {
		return nil, err
	}

	var contentPath any
	if p.ContentPath != "" {
		contentPath = p.ContentPath
	}

	if _, err := s.db.Exec(`
		INSERT INTO nodes (id, node_type, title, content_path, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, p.Type, p.Title, contentPath, metaJSON, now, now,
	); err != nil {
		return nil, fmt.Errorf("failed to insert node: %w", err)
	}

	s.log.Debug("node created", zap.String("id", id), zap.String("type", p.Type))
	return s.getNode(id)
}

// GetNode fetches a node by id. Returns (nil, nil) when the id is unknown:
// a missing node is a meaningful answer, not an error.
func (s *Store) GetNode(id string) (*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getNode(id)
}

func (s *Store) getNode(id string) (*Node, error) {
	row := s.db.QueryRow("SELECT id, node_type, title, content_path, metadata, created_at, updated_at FROM nodes WHERE id = ?", id)
	n, err := scanNode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch node: %w", err)
	}
	return n, nil
}

// Updatable node fields. Anything else is a validation error.
var allowedUpdateFields = map[string]bool{
	"title":        true,
	"node_type":    true,
	"content_path": true,
	"metadata":     true,
}

// UpdateNode applies a partial field update. Unknown field names return
// ErrInvalidField; an unknown id returns ErrNotFound. updated_at always
// refreshes. The update and the timestamp land in one statement, so a crash
// mid-write leaves no partial row.
func (s *Store) UpdateNode(id string, fields map[string]any) (*Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.getNode(id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no fields provided", ErrInvalidField)
	}

	setClause := ""
	values := make([]any, 0, len(fields)+2)
	for key, value := range fields {
		if !allowedUpdateFields[key] {
			return nil, fmt.Errorf("%w: cannot update %q", ErrInvalidField, key)
		}
		if key == "metadata" {
			meta, ok := value.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: metadata must be a map", ErrInvalidField)
			}
			metaJSON, err := marshalMeta(meta)
			if err != nil {
				return nil, err
			}
			value = metaJSON
		}
		if setClause != "" {
			setClause += ", "
		}
		setClause += key + " = ?"
		values = append(values, value)
	}

	setClause += ", updated_at = ?"
	values = append(values, s.now(), id)

	if _, err := s.db.Exec("UPDATE nodes SET "+setClause+" WHERE id = ?", values...); err != nil {
		return nil, fmt.Errorf("failed to update node: %w", err)
	}

	return s.getNode(id)
}

// DeleteNode removes a node; every incident edge vanishes through the FK
// cascade and the shadow index rows through the nodes_ad trigger. Unknown
// ids are a no-op.
func (s *Store) DeleteNode(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM nodes WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete node: %w", err)
	}
	s.log.Debug("node deleted", zap.String("id", id))
	return nil
}

// ListNodes returns all nodes, newest first, optionally filtered by type.
func (s *Store) ListNodes(nodeType string) ([]*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows *sql.Rows
	var err error
	if nodeType != "" {
		rows, err = s.db.Query(
			"SELECT id, node_type, title, content_path, metadata, created_at, updated_at FROM nodes WHERE node_type = ? ORDER BY created_at DESC",
			nodeType)
	} else {
		rows, err = s.db.Query(
			"SELECT id, node_type, title, content_path, metadata, created_at, updated_at FROM nodes ORDER BY created_at DESC")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}
	defer rows.Close()

	var nodes []*Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// SetContentBody writes the lexical-index body for a node. The blank row is
// guaranteed to exist by the insert trigger.
func (s *Store) SetContentBody(id, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("UPDATE nodes_fts SET content_body = ? WHERE id = ?", body, id); err != nil {
		return fmt.Errorf("failed to write content body: %w", err)
	}
	return nil
}

// ContentBody reads back the lexical-index body for a node ("" when absent).
func (s *Store) ContentBody(id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var body string
	err := s.db.QueryRow("SELECT content_body FROM nodes_fts WHERE id = ?", id).Scan(&body)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read content body: %w", err)
	}
	return body, nil
}
