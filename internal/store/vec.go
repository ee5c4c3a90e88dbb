package store

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

// serializeFloat32 packs a vector as little-endian float32, the wire format
// sqlite-vec expects for embedding blobs.
func serializeFloat32(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func deserializeFloat32(blob []byte) []float32 {
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec
}

// l2Distance is the fixed distance metric for the vector index; vec0's
// float[] columns default to the same metric, so both paths rank identically.
func l2Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i] - b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// UpsertEmbedding writes the vector-index row for a node. Idempotent on id.
func (s *Store) UpsertEmbedding(id string, embedding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(embedding) != s.dim {
		return fmt.Errorf("embedding has %d dimensions, store expects %d", len(embedding), s.dim)
	}

	blob := serializeFloat32(embedding)
	if s.vectorExt {
		// vec0 virtual tables reject INSERT OR REPLACE; delete-then-insert
		// inside a transaction gives the same idempotency.
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin embedding upsert: %w", err)
		}
		if _, err := tx.Exec("DELETE FROM nodes_vec WHERE id = ?", id); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to clear embedding: %w", err)
		}
		if _, err := tx.Exec("INSERT INTO nodes_vec(id, embedding) VALUES (?, ?)", id, blob); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert embedding: %w", err)
		}
		return tx.Commit()
	}

	if _, err := s.db.Exec("INSERT OR REPLACE INTO nodes_vec(id, embedding) VALUES (?, ?)", id, blob); err != nil {
		return fmt.Errorf("failed to upsert embedding: %w", err)
	}
	return nil
}

// vecCandidate is one (id, distance) pair out of the k-NN scan.
type vecCandidate struct {
	id       string
	distance float64
}

// knn returns candidate ids ordered by ascending distance. With vec0 the
// virtual table does the scan; otherwise every stored vector is compared
// exactly. limit bounds the candidate count, not the caller's k — callers
// over-fetch when a scope filter will discard rows afterwards.
func (s *Store) knn(embedding []float32, limit int) ([]vecCandidate, error) {
	if s.vectorExt {
		rows, err := s.db.Query(`
			SELECT id, distance
			FROM   nodes_vec
			WHERE  embedding MATCH ? AND k = ?
			ORDER  BY distance`,
			serializeFloat32(embedding), limit)
		if err != nil {
			return nil, fmt.Errorf("vector scan failed: %w", err)
		}
		defer rows.Close()

		var out []vecCandidate
		for rows.Next() {
			var c vecCandidate
			if err := rows.Scan(&c.id, &c.distance); err != nil {
				return nil, err
			}
			out = append(out, c)
		}
		return out, rows.Err()
	}

	rows, err := s.db.Query("SELECT id, embedding FROM nodes_vec")
	if err != nil {
		return nil, fmt.Errorf("vector scan failed: %w", err)
	}
	defer rows.Close()

	var out []vecCandidate
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, err
		}
		vec := deserializeFloat32(blob)
		if len(vec) != len(embedding) {
			continue
		}
		out = append(out, vecCandidate{id: id, distance: l2Distance(embedding, vec)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].distance < out[j].distance })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
