package store

import (
	"fmt"
	"sort"
)

// A Project is a node of type Project. Membership is by reachability: every
// node reachable from the project root along outgoing edges within the hop
// budget belongs to the project.

// DefaultScopeDepth is the hop budget for reachability queries.
const DefaultScopeDepth = 2

// CreateProject creates a new Project node.
func (s *Store) CreateProject(name string) (*Node, error) {
	return s.CreateNode(NodeParams{Type: TypeProject, Title: name})
}

// ListProjects returns all Project nodes, newest first.
func (s *Store) ListProjects() ([]*Node, error) {
	return s.ListNodes(TypeProject)
}

// LinkToProject connects a node into a project's subgraph.
func (s *Store) LinkToProject(projectID, nodeID, relation string) error {
	if relation == "" {
		relation = RelHasSource
	}
	return s.ConnectNodes(projectID, nodeID, relation)
}

// ProjectNodes returns the content nodes of a project: everything reachable
// from the root along outgoing edges within depth hops. A recursive CTE does
// the directed BFS; DISTINCT handles cycles. The root itself is excluded.
func (s *Store) ProjectNodes(projectID string, depth int) ([]*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if depth <= 0 {
		depth = DefaultScopeDepth
	}

	rows, err := s.db.Query(`
		WITH RECURSIVE reachable(id, depth) AS (
			SELECT ?, 0
			UNION ALL
			SELECT e.target_id, r.depth + 1
			FROM   edges e
			JOIN   reachable r ON e.source_id = r.id
			WHERE  r.depth < ?
		)
		SELECT DISTINCT n.id, n.node_type, n.title, n.content_path, n.metadata, n.created_at, n.updated_at
		FROM   nodes n
		JOIN   reachable r ON n.id = r.id
		WHERE  n.id != ?`,
		projectID, depth, projectID)
	if err != nil {
		return nil, fmt.Errorf("project traversal failed: %w", err)
	}
	defer rows.Close()

	nodes := []*Node{}
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// ProjectScope resolves the id set used to scope search to a project.
func (s *Store) ProjectScope(projectID string, depth int) ([]string, error) {
	nodes, err := s.ProjectNodes(projectID, depth)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return ids, nil
}

// ProjectSummary aggregates a project's contents.
type ProjectSummary struct {
	TotalNodes      int            `json:"total_nodes"`
	ByType          map[string]int `json:"by_type"`
	RecentArtifacts []string       `json:"recent_artifacts"`
}

// GetProjectSummary computes per-type counts and the titles of the five most
// recent artifacts, newest first.
func (s *Store) GetProjectSummary(projectID string) (*ProjectSummary, error) {
	nodes, err := s.ProjectNodes(projectID, DefaultScopeDepth)
	if err != nil {
		return nil, err
	}

	summary := &ProjectSummary{ByType: map[string]int{}, RecentArtifacts: []string{}}
	summary.TotalNodes = len(nodes)
	var artifacts []*Node
	for _, n := range nodes {
		summary.ByType[n.Type]++
		if n.Type == TypeArtifact {
			artifacts = append(artifacts, n)
		}
	}
	sort.SliceStable(artifacts, func(i, j int) bool { return artifacts[i].CreatedAt > artifacts[j].CreatedAt })
	for i, n := range artifacts {
		if i >= 5 {
			break
		}
		summary.RecentArtifacts = append(summary.RecentArtifacts, n.Title)
	}
	return summary, nil
}

// ProjectExport is the serialised subgraph of one project.
type ProjectExport struct {
	Project *Node   `json:"project"`
	Nodes   []*Node `json:"nodes"`
	Edges   []Edge  `json:"edges"`
}

// ExportProject serialises the project subgraph: the root, the reachable
// content nodes, and every edge whose endpoints both fall inside the set.
func (s *Store) ExportProject(projectID string) (*ProjectExport, error) {
	root, err := s.GetNode(projectID)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, fmt.Errorf("%w: project %s", ErrNotFound, projectID)
	}

	nodes, err := s.ProjectNodes(projectID, DefaultScopeDepth)
	if err != nil {
		return nil, err
	}

	inScope := map[string]bool{root.ID: true}
	for _, n := range nodes {
		inScope[n.ID] = true
	}

	type edgeKey struct{ s, t, r string }
	seen := map[edgeKey]bool{}
	edges := []Edge{}
	for id := range inScope {
		nodeEdges, err := s.GetEdges(id)
		if err != nil {
			return nil, err
		}
		for _, e := range nodeEdges {
			if !inScope[e.SourceID] || !inScope[e.TargetID] {
				continue
			}
			key := edgeKey{e.SourceID, e.TargetID, e.RelationType}
			if seen[key] {
				continue
			}
			seen[key] = true
			edges = append(edges, e)
		}
	}

	return &ProjectExport{Project: root, Nodes: nodes, Edges: edges}, nil
}
