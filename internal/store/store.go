// Package store implements the persistent knowledge graph: typed nodes,
// directed labelled edges with cascade delete, and the two shadow indexes
// (FTS5 lexical, sqlite-vec vector) that mirror them.
//
// The store is the sole owner of every row it manages. One process writes;
// concurrent readers are safe under WAL. All writes take the store's write
// lock, reads take the read lock.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Reserved node types. node_type is an open tag; these are the values the
// core itself creates.
const (
	TypeProject  = "Project"
	TypeSource   = "Source"
	TypeChunk    = "Chunk"
	TypeArtifact = "Artifact"
	TypeChat     = "Chat"
	TypeConcept  = "Concept"
)

// Reserved relation types.
const (
	RelHasSource      = "HAS_SOURCE"
	RelHasArtifact    = "HAS_ARTIFACT"
	RelHasChunk       = "has_chunk"
	RelCites          = "CITES"
	RelConversationIn = "CONVERSATION_IN"
	RelRelatedTo      = "RELATED_TO"
	RelSupports       = "SUPPORTS"
	RelContradicts    = "CONTRADICTS"
	RelExtends        = "EXTENDS"
)

var (
	// ErrNotFound reports an unknown node or conversation id.
	ErrNotFound = errors.New("node not found")
	// ErrInvalidField reports an unknown field name passed to UpdateNode.
	ErrInvalidField = errors.New("invalid field")
)

// Node is a typed vertex of the content graph.
type Node struct {
	ID          string         `json:"id"`
	Type        string         `json:"node_type"`
	Title       string         `json:"title"`
	ContentPath string         `json:"content_path,omitempty"`
	Metadata    map[string]any `json:"metadata"`
	CreatedAt   int64          `json:"created_at"`
	UpdatedAt   int64          `json:"updated_at"`
}

// MetaString returns metadata[key] as a string ("" when absent or not a string).
func (n *Node) MetaString(key string) string {
	if n.Metadata == nil {
		return ""
	}
	s, _ := n.Metadata[key].(string)
	return s
}

// Edge is a directed labelled relation between two nodes.
type Edge struct {
	SourceID     string `json:"source_id"`
	TargetID     string `json:"target_id"`
	RelationType string `json:"relation_type"`
	CreatedAt    int64  `json:"created_at"`
}

// Graph bundles every node and edge, for export and visualisation.
type Graph struct {
	Nodes []*Node `json:"nodes"`
	Edges []Edge  `json:"edges"`
}

// Store owns the SQLite database and its shadow indexes.
type Store struct {
	db        *sql.DB
	mu        sync.RWMutex
	dbPath    string
	dim       int
	vectorExt bool
	log       *zap.Logger
	now       func() int64
}

// Open initialises the database at path with vectors of the given
// dimensionality. The schema is created idempotently; pending migrations run
// before the store is returned.
func Open(path string, dim int, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if dim <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", dim)
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db, dbPath: path, dim: dim, log: log, now: func() int64 { return time.Now().Unix() }}

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			log.Debug("pragma failed", zap.String("pragma", pragma), zap.Error(err))
		}
	}

	s.detectVecExtension()
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if s.vectorExt {
		log.Info("store ready", zap.String("path", path), zap.Int("dim", dim), zap.String("vector_index", "vec0"))
	} else {
		log.Info("store ready", zap.String("path", path), zap.Int("dim", dim), zap.String("vector_index", "exact-scan"))
	}
	return s, nil
}

// initialize creates tables, indexes, triggers, and the two shadow indexes.
// Every statement uses IF NOT EXISTS so re-opening an existing database is safe.
func (s *Store) initialize() error {
	nodesTable := `
	CREATE TABLE IF NOT EXISTS nodes (
		id           TEXT PRIMARY KEY,
		node_type    TEXT NOT NULL,
		title        TEXT NOT NULL,
		content_path TEXT,
		metadata     TEXT NOT NULL DEFAULT '{}',
		created_at   INTEGER NOT NULL,
		updated_at   INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_nodes_type ON nodes(node_type);
	CREATE INDEX IF NOT EXISTS idx_nodes_created ON nodes(created_at);
	`

	edgesTable := `
	CREATE TABLE IF NOT EXISTS edges (
		source_id     TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
		target_id     TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
		relation_type TEXT NOT NULL,
		created_at    INTEGER NOT NULL,
		UNIQUE(source_id, target_id, relation_type)
	);
	CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_id);
	CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_id);
	`

	ftsTable := `
	CREATE VIRTUAL TABLE IF NOT EXISTS nodes_fts USING fts5(
		id UNINDEXED,
		content_body,
		tokenize = 'porter unicode61'
	);
	`

	// Triggers keep the lexical shadow in lock-step with nodes: a blank row
	// appears on insert and vanishes on delete. The body itself is written by
	// the owning component (the ingest pipeline) via SetContentBody.
	triggers := `
	CREATE TRIGGER IF NOT EXISTS nodes_ai AFTER INSERT ON nodes BEGIN
		INSERT INTO nodes_fts(id, content_body) VALUES (new.id, '');
	END;
	CREATE TRIGGER IF NOT EXISTS nodes_ad AFTER DELETE ON nodes BEGIN
		DELETE FROM nodes_fts WHERE id = old.id;
		DELETE FROM nodes_vec WHERE id = old.id;
	END;
	`

	for _, stmt := range []string{nodesTable, edgesTable, ftsTable} {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	if err := s.initVectorTable(); err != nil {
		return err
	}

	if _, err := s.db.Exec(triggers); err != nil {
		return fmt.Errorf("failed to create triggers: %w", err)
	}

	return nil
}

// initVectorTable creates the vector shadow index: a vec0 virtual table when
// sqlite-vec is available, a plain BLOB table otherwise. Both are keyed by
// node id and searched through VectorSearch, which picks the matching path.
func (s *Store) initVectorTable() error {
	if s.vectorExt {
		stmt := fmt.Sprintf(
			"CREATE VIRTUAL TABLE IF NOT EXISTS nodes_vec USING vec0(id TEXT PRIMARY KEY, embedding float[%d])", s.dim)
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create vec0 table: %w", err)
		}
		return nil
	}
	stmt := `
	CREATE TABLE IF NOT EXISTS nodes_vec (
		id        TEXT PRIMARY KEY,
		embedding BLOB NOT NULL
	);
	`
	if _, err := s.db.Exec(stmt); err != nil {
		return fmt.Errorf("failed to create vector table: %w", err)
	}
	return nil
}

// detectVecExtension probes for vec0 virtual table support.
func (s *Store) detectVecExtension() {
	if _, err := s.db.Exec("CREATE VIRTUAL TABLE IF NOT EXISTS vec_probe USING vec0(embedding float[4])"); err == nil {
		s.vectorExt = true
		_, _ = s.db.Exec("DROP TABLE IF EXISTS vec_probe")
		return
	}
	s.vectorExt = false
}

// HasVectorExt reports whether the sqlite-vec extension backs the vector index.
func (s *Store) HasVectorExt() bool {
	return s.vectorExt
}

// Dimensions returns the fixed vector dimensionality D.
func (s *Store) Dimensions() int {
	return s.dim
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.log.Debug("closing store", zap.String("path", s.dbPath))
	return s.db.Close()
}

// Stats returns row counts per table.
func (s *Store) Stats() (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]int64)
	for _, table := range []string{"nodes", "edges", "nodes_fts", "nodes_vec"} {
		var count int64
		if err := s.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
			continue
		}
		stats[table] = count
	}
	return stats, nil
}

func marshalMeta(meta map[string]any) (string, error) {
	if meta == nil {
		return "{}", nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("failed to serialise metadata: %w", err)
	}
	return string(data), nil
}

func scanNode(scanner interface{ Scan(...any) error }) (*Node, error) {
	var n Node
	var contentPath sql.NullString
	var metaJSON string
	if err := scanner.Scan(&n.ID, &n.Type, &n.Title, &contentPath, &metaJSON, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	n.ContentPath = contentPath.String
	n.Metadata = map[string]any{}
	if metaJSON != "" {
		if err := json.Unmarshal([]byte(metaJSON), &n.Metadata); err != nil {
			return nil, fmt.Errorf("corrupt metadata for node %s: %w", n.ID, err)
		}
	}
	return &n, nil
}
