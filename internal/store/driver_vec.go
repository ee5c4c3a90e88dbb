//go:build sqlite_vec && cgo

package store

import (
	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

// Builds tagged sqlite_vec use the cgo driver with the vec0 extension
// auto-registered, enabling true ANN search through the virtual table.
const driverName = "sqlite3"

func init() {
	vec.Auto()
}
