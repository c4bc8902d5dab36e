package remotetest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dukerupert/catalogops/internal/remote"
)

// ErrInjected is returned for writes configured to fail.
var ErrInjected = errors.New("injected write failure")

// Documents is an in-memory remote.DocumentStore.
type Documents struct {
	mu    sync.Mutex
	docs  map[string]map[string]any
	seq   int
	write int

	// FailWrites makes the next n writes to a path fail.
	FailWrites map[string]int
	// GetErr is returned by Get when set.
	GetErr error
}

func NewDocuments() *Documents {
	return &Documents{
		docs:       make(map[string]map[string]any),
		FailWrites: make(map[string]int),
	}
}

// Put seeds a document without counting it as a write.
func (d *Documents) Put(path string, data map[string]any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.docs[path] = data
}

// Writes returns the number of successful writes.
func (d *Documents) Writes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.write
}

// Paths returns stored document paths under a collection, sorted.
func (d *Documents) Paths(collection string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []string
	for p := range d.docs {
		if strings.HasPrefix(p, collection+"/") {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

func (d *Documents) Get(_ context.Context, path string) (map[string]any, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.GetErr != nil {
		return nil, d.GetErr
	}
	doc, ok := d.docs[path]
	if !ok {
		return nil, remote.ErrNotFound
	}
	return remote.MergeFields(nil, doc), nil
}

func (d *Documents) Set(_ context.Context, path string, data map[string]any, merge bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setLocked(path, data, merge)
}

func (d *Documents) setLocked(path string, data map[string]any, merge bool) error {
	if n := d.FailWrites[path]; n > 0 {
		d.FailWrites[path] = n - 1
		return fmt.Errorf("%s: %w", path, ErrInjected)
	}
	if merge {
		d.docs[path] = remote.MergeFields(d.docs[path], data)
	} else {
		d.docs[path] = remote.MergeFields(nil, data)
	}
	d.write++
	return nil
}

func (d *Documents) Create(_ context.Context, collection string, data map[string]any) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	id := fmt.Sprintf("doc%04d", d.seq)
	if err := d.setLocked(collection+"/"+id, data, false); err != nil {
		return "", err
	}
	return id, nil
}

func (d *Documents) List(_ context.Context, collection string) ([]remote.Document, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []remote.Document
	for p, doc := range d.docs {
		rest, ok := strings.CutPrefix(p, collection+"/")
		if !ok || strings.Contains(rest, "/") {
			continue
		}
		out = append(out, remote.Document{Path: p, Data: remote.MergeFields(nil, doc)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (d *Documents) BulkWrite(_ context.Context, writes []remote.Write) []error {
	d.mu.Lock()
	defer d.mu.Unlock()
	errs := make([]error, len(writes))
	for i, w := range writes {
		errs[i] = d.setLocked(w.Path, w.Data, w.Merge)
	}
	return errs
}
