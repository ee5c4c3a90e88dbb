//go:build !(sqlite_vec && cgo)

package store

import (
	_ "modernc.org/sqlite"
)

// The pure-Go driver ships FTS5 but not sqlite-vec; vector search falls back
// to the exact scan over the plain nodes_vec table.
const driverName = "sqlite"
