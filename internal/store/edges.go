package store

import (
	"fmt"

	"go.uber.org/zap"
)

// ConnectNodes creates a directed edge. INSERT OR IGNORE makes the call
// idempotent on the (source, target, relation) triple.
func (s *Store) ConnectNodes(sourceID, targetID, relationType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if relationType == "" {
		relationType = RelRelatedTo
	}

	if _, err := s.db.Exec(`
		INSERT OR IGNORE INTO edges (source_id, target_id, relation_type, created_at)
		VALUES (?, ?, ?, ?)`,
		sourceID, targetID, relationType, s.now(),
	); err != nil {
		return fmt.Errorf("failed to connect nodes: %w", err)
	}

	s.log.Debug("edge connected",
		zap.String("source", sourceID), zap.String("target", targetID), zap.String("relation", relationType))
	return nil
}

// GetEdges returns every edge where the node is either endpoint.
func (s *Store) GetEdges(nodeID string) ([]Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT source_id, target_id, relation_type, created_at
		FROM   edges
		WHERE  source_id = ? OR target_id = ?`,
		nodeID, nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch edges: %w", err)
	}
	defer rows.Close()

	edges := []Edge{}
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.SourceID, &e.TargetID, &e.RelationType, &e.CreatedAt); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// GetGraph returns every node and edge in the store.
func (s *Store) GetGraph() (*Graph, error) {
	nodes, err := s.ListNodes("")
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT source_id, target_id, relation_type, created_at FROM edges")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch edges: %w", err)
	}
	defer rows.Close()

	edges := []Edge{}
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.SourceID, &e.TargetID, &e.RelationType, &e.CreatedAt); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	if nodes == nil {
		nodes = []*Node{}
	}
	return &Graph{Nodes: nodes, Edges: edges}, rows.Err()
}
