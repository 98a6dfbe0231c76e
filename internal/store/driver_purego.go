//go:build !cgo_sqlite

package store

// Pure Go SQLite. No C toolchain needed.
import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the database/sql driver registered for this build.
	DriverName = "sqlite"
	// BuildMode describes the SQLite build in logs.
	BuildMode = "purego"
)
