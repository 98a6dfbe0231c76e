// Package store persists documents, their chunks, and extracted triplets in
// SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dgallion1/kgest/internal/chunker"
	"github.com/dgallion1/kgest/internal/kg"
)

// ErrNotFound is returned when a requested document doesn't exist.
var ErrNotFound = errors.New("not found")

// Document is the stored record for one ingested file.
type Document struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Filename     string    `json:"filename"`
	ContentHash  string    `json:"content_hash"`
	Instructions string    `json:"instructions"`
	CreatedAt    time.Time `json:"created_at"`
	ChunkCount   int       `json:"chunk_count"`
	TripletCount int       `json:"triplet_count"`
}

// Store is a SQLite-backed document store. It is safe for concurrent use.
type Store struct {
	db *sql.DB
}

var now = func() time.Time { return time.Now().UTC() }

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func openDatabase(path string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	// One connection: a single writer, and ":memory:" stays one database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return db, nil
}

// Open opens (creating if needed) the database at path and migrates it.
// Use ":memory:" for a throwaway store.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := openDatabase(path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := applyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveDocument inserts d. CreatedAt defaults to now.
func (s *Store) SaveDocument(ctx context.Context, d *Document) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, title, filename, content_hash, instructions, created_at, chunk_count, triplet_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Title, d.Filename, d.ContentHash, d.Instructions, formatTime(d.CreatedAt), d.ChunkCount, d.TripletCount)
	if err != nil {
		return fmt.Errorf("insert document %s: %w", d.ID, err)
	}
	return nil
}

const documentColumns = `id, title, filename, content_hash, instructions, created_at, chunk_count, triplet_count`

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*Document, error) {
	var d Document
	var created string
	if err := row.Scan(&d.ID, &d.Title, &d.Filename, &d.ContentHash, &d.Instructions, &created, &d.ChunkCount, &d.TripletCount); err != nil {
		return nil, err
	}
	d.CreatedAt = parseTime(created)
	return &d, nil
}

// GetDocument returns the document with id or ErrNotFound.
func (s *Store) GetDocument(ctx context.Context, id string) (*Document, error) {
	d, err := scanDocument(s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", id, err)
	}
	return d, nil
}

// FindByHash returns the oldest document with the given content hash and
// extraction instructions, or ErrNotFound.
func (s *Store) FindByHash(ctx context.Context, hash, instructions string) (*Document, error) {
	d, err := scanDocument(s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents
		 WHERE content_hash = ? AND instructions = ?
		 ORDER BY created_at ASC LIMIT 1`, hash, instructions))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find document by hash: %w", err)
	}
	return d, nil
}

// ListDocuments returns all documents, newest first.
func (s *Store) ListDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// DeleteDocument removes a document together with its chunks and triplets.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveChunks replaces the stored chunks of a document and updates its chunk
// count.
func (s *Store) SaveChunks(ctx context.Context, docID string, chunks []chunker.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE doc_id = ?`, docID); err != nil {
		return fmt.Errorf("clear chunks: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (doc_id, chunk_index, chunk_type, header_context, content)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		var hc sql.NullString
		if c.HeaderContext != nil {
			hc = sql.NullString{String: *c.HeaderContext, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, docID, c.Index, string(c.Type), hc, c.Content); err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.Index, err)
		}
	}
	res, err := tx.ExecContext(ctx, `UPDATE documents SET chunk_count = ? WHERE id = ?`, len(chunks), docID)
	if err != nil {
		return fmt.Errorf("update chunk count: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// Chunks returns a document's chunks in index order.
func (s *Store) Chunks(ctx context.Context, docID string) ([]chunker.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_index, chunk_type, header_context, content
		FROM chunks WHERE doc_id = ? ORDER BY chunk_index`, docID)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var out []chunker.Chunk
	for rows.Next() {
		var c chunker.Chunk
		var typ string
		var hc sql.NullString
		if err := rows.Scan(&c.Index, &typ, &hc, &c.Content); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		c.Type = chunker.ChunkType(typ)
		if hc.Valid {
			v := hc.String
			c.HeaderContext = &v
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// AddTriplets appends triplets extracted from one chunk and bumps the
// document's triplet count.
func (s *Store) AddTriplets(ctx context.Context, docID string, chunkIndex int, triplets []kg.Triplet) error {
	if len(triplets) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO triplets (doc_id, chunk_index, subject, predicate, object)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare triplet insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range triplets {
		if _, err := stmt.ExecContext(ctx, docID, chunkIndex, t.Subject, t.Predicate, t.Object); err != nil {
			return fmt.Errorf("insert triplet: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET triplet_count = triplet_count + ? WHERE id = ?`, len(triplets), docID); err != nil {
		return fmt.Errorf("update triplet count: %w", err)
	}
	return tx.Commit()
}

// Triplets returns a document's triplets in insertion order.
func (s *Store) Triplets(ctx context.Context, docID string) ([]kg.Triplet, error) {
	return s.queryTriplets(ctx, `SELECT subject, predicate, object FROM triplets WHERE doc_id = ? ORDER BY id`, docID)
}

// AllTriplets returns every stored triplet across documents.
func (s *Store) AllTriplets(ctx context.Context) ([]kg.Triplet, error) {
	return s.queryTriplets(ctx, `SELECT subject, predicate, object FROM triplets ORDER BY id`)
}

func (s *Store) queryTriplets(ctx context.Context, query string, args ...any) ([]kg.Triplet, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query triplets: %w", err)
	}
	defer rows.Close()

	var out []kg.Triplet
	for rows.Next() {
		var t kg.Triplet
		if err := rows.Scan(&t.Subject, &t.Predicate, &t.Object); err != nil {
			return nil, fmt.Errorf("scan triplet: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
