package store

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Search modes over the knowledge base:
//
//	FTSSearch    — FTS5 keyword match (porter-stemmed), bm25-ranked.
//	VectorSearch — k-nearest-neighbour by L2 distance.
//	HybridSearch — both, fused by Reciprocal Rank Fusion.
//
// Each accepts an optional scope: a set of candidate node ids resolved from a
// project root. Results are always a subset of the scope when one is given.

var ftsTokenRe = regexp.MustCompile(`[A-Za-z0-9]{3,}`)

// SanitizeFTSQuery converts free-form text into a safe FTS5 match expression.
// FTS5 treats commas, apostrophes, hyphens, colons, and quotes as query
// operators, so a raw sentence triggers a syntax error. Word tokens of at
// least 3 characters are extracted, case-insensitively deduplicated, quoted
// as phrase literals, and joined with implicit AND. Returns "" when no
// tokens survive; callers treat that as match-everything.
func SanitizeFTSQuery(text string) string {
	tokens := ftsTokenRe.FindAllString(text, -1)
	seen := make(map[string]bool)
	var quoted []string
	for _, t := range tokens {
		lower := strings.ToLower(t)
		if seen[lower] {
			continue
		}
		seen[lower] = true
		quoted = append(quoted, `"`+t+`"`)
	}
	return strings.Join(quoted, " ")
}

// FTSSearch returns up to k nodes whose indexed text matches query, best
// lexical relevance first.
func (s *Store) FTSSearch(query string, k int, scope []string) ([]*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if k <= 0 {
		k = 10
	}

	ftsQuery := SanitizeFTSQuery(query)

	var sb strings.Builder
	args := []any{}

	sb.WriteString(`
		SELECT n.id, n.node_type, n.title, n.content_path, n.metadata, n.created_at, n.updated_at
		FROM   nodes n
		JOIN   nodes_fts f ON n.id = f.id`)
	if ftsQuery != "" {
		sb.WriteString(" WHERE nodes_fts MATCH ?")
		args = append(args, ftsQuery)
	} else {
		// Empty token set degrades to match-everything rather than erroring.
		sb.WriteString(" WHERE 1=1")
	}

	if scope != nil {
		if len(scope) == 0 {
			return []*Node{}, nil
		}
		sb.WriteString(" AND n.id IN (" + placeholders(len(scope)) + ")")
		for _, id := range scope {
			args = append(args, id)
		}
	}

	if ftsQuery != "" {
		sb.WriteString(" ORDER BY bm25(nodes_fts)")
	} else {
		sb.WriteString(" ORDER BY n.created_at DESC")
	}
	sb.WriteString(" LIMIT ?")
	args = append(args, k)

	rows, err := s.db.Query(sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("fts search failed: %w", err)
	}
	defer rows.Close()

	results := []*Node{}
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, n)
	}
	return results, rows.Err()
}

// VectorSearch returns the k nodes nearest to embedding, closest first.
//
// The k-NN scan satisfies its limit before any scope filter applies, so a
// scoped query over-fetches 4k candidates and post-filters; the exact-scan
// fallback behaves the same way for symmetry.
func (s *Store) VectorSearch(embedding []float32, k int, scope []string) ([]*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if k <= 0 {
		k = 10
	}
	if scope != nil && len(scope) == 0 {
		return []*Node{}, nil
	}

	limit := k
	var scopeSet map[string]bool
	if scope != nil {
		limit = k * 4
		scopeSet = make(map[string]bool, len(scope))
		for _, id := range scope {
			scopeSet[id] = true
		}
	}

	candidates, err := s.knn(embedding, limit)
	if err != nil {
		return nil, err
	}

	results := []*Node{}
	for _, c := range candidates {
		if scopeSet != nil && !scopeSet[c.id] {
			continue
		}
		n, err := s.getNode(c.id)
		if err != nil {
			return nil, err
		}
		if n == nil {
			continue
		}
		results = append(results, n)
		if len(results) >= k {
			break
		}
	}
	return results, nil
}

// DefaultRRFConst is the standard reciprocal-rank-fusion smoothing constant.
const DefaultRRFConst = 60

// HybridSearch merges FTS and vector results by Reciprocal Rank Fusion:
// score(n) = Σ 1/(rrfConst + rank) over the lists n appears in (1-based
// ranks). Both sub-searches run with 2k so the fused head is well fed.
// Ties break by lexical rank first, then insertion order.
func (s *Store) HybridSearch(query string, embedding []float32, k int, scope []string) ([]*Node, error) {
	return s.HybridSearchRRF(query, embedding, k, DefaultRRFConst, scope)
}

// HybridSearchRRF is HybridSearch with an explicit fusion constant.
func (s *Store) HybridSearchRRF(query string, embedding []float32, k int, rrfConst int, scope []string) ([]*Node, error) {
	if k <= 0 {
		k = 10
	}
	if rrfConst <= 0 {
		rrfConst = DefaultRRFConst
	}

	ftsResults, err := s.FTSSearch(query, k*2, scope)
	if err != nil {
		return nil, err
	}
	vecResults, err := s.VectorSearch(embedding, k*2, scope)
	if err != nil {
		return nil, err
	}

	scores := make(map[string]float64)
	byID := make(map[string]*Node)
	var order []string // insertion order: lexical list first

	for rank, n := range ftsResults {
		if _, seen := scores[n.ID]; !seen {
			order = append(order, n.ID)
			byID[n.ID] = n
		}
		scores[n.ID] += 1.0 / float64(rrfConst+rank+1)
	}
	for rank, n := range vecResults {
		if _, seen := scores[n.ID]; !seen {
			order = append(order, n.ID)
			byID[n.ID] = n
		}
		scores[n.ID] += 1.0 / float64(rrfConst+rank+1)
	}

	// Stable sort over insertion order: equal scores keep lexical-first
	// ordering, and within the lexical list the better rank comes first.
	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] > scores[order[j]]
	})

	if len(order) > k {
		order = order[:k]
	}
	results := make([]*Node, 0, len(order))
	for _, id := range order {
		results = append(results, byID[id])
	}
	return results, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
