// Package remote defines the contract the orchestration core uses to reach the
// managed document database and the backup object store. Concrete clients live
// in the subpackages.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// ErrNotFound is returned when a document or object does not exist.
var ErrNotFound = errors.New("not found")

// Object describes one stored blob.
type Object struct {
	Name    string
	Size    int64
	Updated time.Time
}

// ObjectStore is a single bucket of the blob store.
type ObjectStore interface {
	List(ctx context.Context, prefix string) ([]Object, error)
	// DeletePrefix removes every object under prefix. A *DeleteError is
	// returned when only some objects could be removed.
	DeletePrefix(ctx context.Context, prefix string) error
	Put(ctx context.Context, name string, r io.Reader) error
	Get(ctx context.Context, name string) (io.ReadCloser, error)
	Location() Location
}

// Document is a stored document addressed by its slash-separated path.
type Document struct {
	Path string
	Data map[string]any
}

// Write is one operation of a bulk write.
type Write struct {
	Path  string
	Data  map[string]any
	Merge bool
}

// DocumentStore is the document database.
type DocumentStore interface {
	// Get returns ErrNotFound when the document is absent.
	Get(ctx context.Context, path string) (map[string]any, error)
	Set(ctx context.Context, path string, data map[string]any, merge bool) error
	// Create appends a document with a generated ID to collection.
	Create(ctx context.Context, collection string, data map[string]any) (string, error)
	List(ctx context.Context, collection string) ([]Document, error)
	// BulkWrite applies writes independently. The returned slice is aligned
	// with writes; a nil entry means that write succeeded.
	BulkWrite(ctx context.Context, writes []Write) []error
}

type Direction string

const (
	Export Direction = "export"
	Import Direction = "import"
)

// OperationError is the terminal error of a failed long-running operation.
type OperationError struct {
	Code    int
	Message string
}

// Operation is a snapshot of a long-running export/import job as reported by
// the database. It is read-only from the caller's side.
type Operation struct {
	Name     string
	Done     bool
	Metadata map[string]any
	Response map[string]any
	Error    *OperationError
}

// MetadataString returns a string metadata value, or "" when absent.
func (o Operation) MetadataString(key string) string {
	if o.Metadata == nil {
		return ""
	}
	s, _ := o.Metadata[key].(string)
	return s
}

// OperationClient starts and observes long-running operations.
type OperationClient interface {
	Start(ctx context.Context, dir Direction, uri string) (Operation, error)
	Get(ctx context.Context, name string) (Operation, error)
}

// StatusError is a request the remote service refused.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("remote status %d", e.Code)
	}
	return fmt.Sprintf("remote status %d: %s", e.Code, e.Body)
}

// DeleteError reports objects that could not be removed by DeletePrefix.
type DeleteError struct {
	Prefix string
	Failed []string
	Err    error
}

func (e *DeleteError) Error() string {
	return fmt.Sprintf("delete %s: %d objects failed: %v", e.Prefix, len(e.Failed), e.Err)
}

func (e *DeleteError) Unwrap() error { return e.Err }

// Location identifies a bucket, e.g. gs://backups.
type Location struct {
	Scheme string
	Bucket string
}

// URI returns the full URI of an object name or prefix.
func (l Location) URI(name string) string {
	return l.Scheme + "://" + l.Bucket + "/" + strings.TrimPrefix(name, "/")
}

// Resolve converts a URI in this bucket back into an object name.
func (l Location) Resolve(uri string) (string, bool) {
	head := l.Scheme + "://" + l.Bucket + "/"
	if !strings.HasPrefix(uri, head) {
		return "", false
	}
	return strings.TrimPrefix(uri, head), true
}

func (l Location) String() string {
	return l.Scheme + "://" + l.Bucket
}

// MergeFields merges src into dst the way a merge write does: nested maps are
// merged key by key, every other value replaces what was there.
func MergeFields(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		sub, ok := v.(map[string]any)
		if !ok {
			dst[k] = v
			continue
		}
		cur, _ := dst[k].(map[string]any)
		dst[k] = MergeFields(cur, sub)
	}
	return dst
}
