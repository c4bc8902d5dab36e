// Package localops runs export and import operations for the SQLite
// backend. Exports are written to the backup object store as newline
// delimited JSON so the local backend shares snapshot layout, retention and
// restore with the managed database.
package localops

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/dukerupert/catalogops/internal/remote"
)

const (
	DocumentsObject = "documents.ndjson"
	SealedObject    = "documents.ndjson.enc"
	MetadataObject  = "export_metadata.json"

	// codeInternal mirrors the status code the managed database reports for
	// failed jobs.
	codeInternal = 13
)

// Store is a document store that can enumerate everything it holds.
type Store interface {
	remote.DocumentStore
	Dump(ctx context.Context) ([]remote.Document, error)
}

type exportMetadata struct {
	Documents int       `json:"documents"`
	Object    string    `json:"object"`
	Encrypted bool      `json:"encrypted"`
	CreatedAt time.Time `json:"createdAt"`
}

type line struct {
	Path string         `json:"path"`
	Data map[string]any `json:"data"`
}

// Runner implements remote.OperationClient. Each started operation runs on
// its own goroutine and is observed through Get.
type Runner struct {
	store      Store
	objects    remote.ObjectStore
	passphrase string
	logger     *slog.Logger

	mu  sync.Mutex
	ops map[string]*remote.Operation
	wg  sync.WaitGroup
}

// New creates a Runner. Exports are encrypted when passphrase is set.
func New(store Store, objects remote.ObjectStore, passphrase string, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		store:      store,
		objects:    objects,
		passphrase: passphrase,
		logger:     logger,
		ops:        make(map[string]*remote.Operation),
	}
}

func (r *Runner) Start(ctx context.Context, dir remote.Direction, uri string) (remote.Operation, error) {
	prefix, ok := r.objects.Location().Resolve(uri)
	if !ok {
		return remote.Operation{}, &remote.StatusError{Code: http.StatusBadRequest, Body: fmt.Sprintf("%s is not in %s", uri, r.objects.Location())}
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
		uri += "/"
	}

	meta := map[string]any{
		"operationType": string(dir),
		"startTime":     time.Now().UTC().Format(time.RFC3339),
	}
	switch dir {
	case remote.Export:
		meta["outputUriPrefix"] = uri
	case remote.Import:
		rc, err := r.objects.Get(ctx, prefix+MetadataObject)
		if errors.Is(err, remote.ErrNotFound) {
			return remote.Operation{}, &remote.StatusError{Code: http.StatusNotFound, Body: "no export found at " + uri}
		}
		if err != nil {
			return remote.Operation{}, fmt.Errorf("check import source: %w", err)
		}
		rc.Close()
		meta["inputUriPrefix"] = uri
	default:
		return remote.Operation{}, &remote.StatusError{Code: http.StatusBadRequest, Body: "unknown direction " + string(dir)}
	}

	op := &remote.Operation{Name: "operations/" + uuid.NewString(), Metadata: meta}
	r.mu.Lock()
	r.ops[op.Name] = op
	snapshot := copyOp(op)
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		// The job is not tied to the caller's request.
		r.run(context.Background(), op.Name, dir, prefix)
	}()

	return snapshot, nil
}

func (r *Runner) Get(_ context.Context, name string) (remote.Operation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	op, ok := r.ops[name]
	if !ok {
		return remote.Operation{}, remote.ErrNotFound
	}
	return copyOp(op), nil
}

// Wait blocks until every started operation has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) run(ctx context.Context, name string, dir remote.Direction, prefix string) {
	start := time.Now()
	var n int
	var err error
	if dir == remote.Export {
		n, err = r.export(ctx, prefix)
	} else {
		n, err = r.restore(ctx, prefix)
	}

	r.mu.Lock()
	op := r.ops[name]
	op.Done = true
	op.Metadata["progressDocuments"] = n
	op.Metadata["endTime"] = time.Now().UTC().Format(time.RFC3339)
	if err != nil {
		op.Error = &remote.OperationError{Code: codeInternal, Message: err.Error()}
	} else {
		op.Response = map[string]any{"documents": n}
	}
	r.mu.Unlock()

	if err != nil {
		r.logger.Error("local operation failed", "operation", name, "type", dir, "error", err)
		return
	}
	r.logger.Info("local operation finished", "operation", name, "type", dir, "documents", n, "duration", time.Since(start))
}

func (r *Runner) export(ctx context.Context, prefix string) (int, error) {
	docs, err := r.store.Dump(ctx)
	if err != nil {
		return 0, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, d := range docs {
		if err := enc.Encode(line{Path: d.Path, Data: d.Data}); err != nil {
			return 0, fmt.Errorf("encode %s: %w", d.Path, err)
		}
	}

	payload, object := buf.Bytes(), DocumentsObject
	if r.passphrase != "" {
		if payload, err = Seal(payload, r.passphrase); err != nil {
			return 0, fmt.Errorf("encrypt export: %w", err)
		}
		object = SealedObject
	}
	if err := r.objects.Put(ctx, prefix+object, bytes.NewReader(payload)); err != nil {
		return 0, fmt.Errorf("upload %s: %w", object, err)
	}

	meta, err := json.Marshal(exportMetadata{
		Documents: len(docs),
		Object:    object,
		Encrypted: r.passphrase != "",
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return 0, fmt.Errorf("encode export metadata: %w", err)
	}
	if err := r.objects.Put(ctx, prefix+MetadataObject, bytes.NewReader(meta)); err != nil {
		return 0, fmt.Errorf("upload %s: %w", MetadataObject, err)
	}

	r.logger.Debug("export written", "prefix", prefix, "documents", len(docs), "size", humanize.Bytes(uint64(len(payload))))
	return len(docs), nil
}

func (r *Runner) restore(ctx context.Context, prefix string) (int, error) {
	var meta exportMetadata
	if err := r.readJSON(ctx, prefix+MetadataObject, &meta); err != nil {
		return 0, err
	}

	payload, err := r.read(ctx, prefix+meta.Object)
	if err != nil {
		return 0, err
	}
	if meta.Encrypted {
		if r.passphrase == "" {
			return 0, errors.New("export is encrypted and no passphrase is configured")
		}
		if payload, err = Open(payload, r.passphrase); err != nil {
			return 0, err
		}
	}

	var writes []remote.Write
	sc := bufio.NewScanner(bytes.NewReader(payload))
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		if len(bytes.TrimSpace(sc.Bytes())) == 0 {
			continue
		}
		var l line
		if err := json.Unmarshal(sc.Bytes(), &l); err != nil {
			return 0, fmt.Errorf("decode line %d: %w", len(writes)+1, err)
		}
		writes = append(writes, remote.Write{Path: l.Path, Data: l.Data})
	}
	if err := sc.Err(); err != nil {
		return 0, fmt.Errorf("read export: %w", err)
	}

	var failed []error
	for i, err := range r.store.BulkWrite(ctx, writes) {
		if err != nil {
			failed = append(failed, fmt.Errorf("%s: %w", writes[i].Path, err))
		}
	}
	if len(failed) > 0 {
		return len(writes) - len(failed), errors.Join(failed...)
	}
	return len(writes), nil
}

func (r *Runner) read(ctx context.Context, name string) ([]byte, error) {
	rc, err := r.objects.Get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

func (r *Runner) readJSON(ctx context.Context, name string, v any) error {
	data, err := r.read(ctx, name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

func copyOp(op *remote.Operation) remote.Operation {
	out := *op
	out.Metadata = remote.MergeFields(nil, op.Metadata)
	if op.Response != nil {
		out.Response = remote.MergeFields(nil, op.Response)
	}
	if op.Error != nil {
		e := *op.Error
		out.Error = &e
	}
	return out
}
