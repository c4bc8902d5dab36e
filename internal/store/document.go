package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/catalogops/internal/remote"
)

// DocumentStore keeps documents as JSON rows in SQLite. It implements
// remote.DocumentStore for the local backend.
type DocumentStore struct {
	db *sql.DB
}

func NewDocumentStore(db *sql.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// splitPath validates a document path (an even number of non-empty
// segments) and returns its collection and id.
func splitPath(path string) (collection, id string, err error) {
	parts := strings.Split(path, "/")
	if len(parts) < 2 || len(parts)%2 != 0 {
		return "", "", fmt.Errorf("invalid document path %q", path)
	}
	for _, p := range parts {
		if p == "" {
			return "", "", fmt.Errorf("invalid document path %q", path)
		}
	}
	i := strings.LastIndex(path, "/")
	return path[:i], path[i+1:], nil
}

func validCollection(collection string) error {
	parts := strings.Split(collection, "/")
	if len(parts)%2 != 1 {
		return fmt.Errorf("invalid collection path %q", collection)
	}
	for _, p := range parts {
		if p == "" {
			return fmt.Errorf("invalid collection path %q", collection)
		}
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func get(ctx context.Context, q queryer, path string) (map[string]any, error) {
	var raw string
	err := q.QueryRowContext(ctx, `SELECT data FROM documents WHERE path = ?`, path).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, remote.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", path, err)
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", path, err)
	}
	return data, nil
}

func put(ctx context.Context, q queryer, path string, data map[string]any) error {
	collection, id, err := splitPath(path)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", path, err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = q.ExecContext(ctx,
		`INSERT INTO documents (path, collection, doc_id, data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		path, collection, id, string(raw), now, now,
	)
	if err != nil {
		return fmt.Errorf("write document %s: %w", path, err)
	}
	return nil
}

func (s *DocumentStore) Get(ctx context.Context, path string) (map[string]any, error) {
	return get(ctx, s.db, path)
}

// Set replaces the document, or merges data into it when merge is true.
func (s *DocumentStore) Set(ctx context.Context, path string, data map[string]any, merge bool) error {
	if !merge {
		return put(ctx, s.db, path, data)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	cur, err := get(ctx, tx, path)
	if err != nil && !errors.Is(err, remote.ErrNotFound) {
		return err
	}
	if err := put(ctx, tx, path, remote.MergeFields(cur, normalize(data))); err != nil {
		return err
	}
	return tx.Commit()
}

// normalize round-trips data through JSON so merged values have the same
// shape as values read back from the table.
func normalize(data map[string]any) map[string]any {
	raw, err := json.Marshal(data)
	if err != nil {
		return data
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return data
	}
	return out
}

func (s *DocumentStore) Create(ctx context.Context, collection string, data map[string]any) (string, error) {
	if err := validCollection(collection); err != nil {
		return "", err
	}
	id := uuid.NewString()
	if err := put(ctx, s.db, collection+"/"+id, data); err != nil {
		return "", err
	}
	return id, nil
}

// List returns the documents directly inside collection, ordered by id.
func (s *DocumentStore) List(ctx context.Context, collection string) ([]remote.Document, error) {
	return s.query(ctx, `SELECT path, data FROM documents WHERE collection = ? ORDER BY doc_id`, collection)
}

// Dump returns every stored document ordered by path.
func (s *DocumentStore) Dump(ctx context.Context) ([]remote.Document, error) {
	return s.query(ctx, `SELECT path, data FROM documents ORDER BY path`)
}

func (s *DocumentStore) query(ctx context.Context, query string, args ...any) ([]remote.Document, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []remote.Document
	for rows.Next() {
		var path, raw string
		if err := rows.Scan(&path, &raw); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		var data map[string]any
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			return nil, fmt.Errorf("decode document %s: %w", path, err)
		}
		docs = append(docs, remote.Document{Path: path, Data: data})
	}
	return docs, rows.Err()
}

// BulkWrite applies each write on its own; one failure does not affect the
// others.
func (s *DocumentStore) BulkWrite(ctx context.Context, writes []remote.Write) []error {
	errs := make([]error, len(writes))
	for i, w := range writes {
		errs[i] = s.Set(ctx, w.Path, w.Data, w.Merge)
	}
	return errs
}

// Count returns the number of stored documents.
func (s *DocumentStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}
