//go:build cgo_sqlite

package store

// Build with:
//   CGO_ENABLED=1 go build -tags cgo_sqlite ./...
import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the database/sql driver registered for this build.
	DriverName = "sqlite3"
	// BuildMode describes the SQLite build in logs.
	BuildMode = "cgo"
)
