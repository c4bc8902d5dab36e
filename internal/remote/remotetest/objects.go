// Package remotetest provides in-memory implementations of the remote
// contracts for tests.
package remotetest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dukerupert/catalogops/internal/remote"
)

// Objects is an in-memory remote.ObjectStore.
type Objects struct {
	mu      sync.Mutex
	loc     remote.Location
	objects map[string][]byte
	updated map[string]time.Time

	// ListErr is returned by List when set.
	ListErr error
	// DeleteErrs makes DeletePrefix fail for the given prefixes.
	DeleteErrs map[string]error
	// Deleted records every prefix passed to DeletePrefix.
	Deleted []string
}

func NewObjects(bucket string) *Objects {
	return &Objects{
		loc:        remote.Location{Scheme: "gs", Bucket: bucket},
		objects:    make(map[string][]byte),
		updated:    make(map[string]time.Time),
		DeleteErrs: make(map[string]error),
	}
}

// Add stores an object with the given size filled with zero bytes.
func (o *Objects) Add(name string, size int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.objects[name] = make([]byte, size)
	o.updated[name] = time.Now().UTC()
}

// Has reports whether an object exists.
func (o *Objects) Has(name string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.objects[name]
	return ok
}

func (o *Objects) List(_ context.Context, prefix string) ([]remote.Object, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ListErr != nil {
		return nil, o.ListErr
	}
	var out []remote.Object
	for name, data := range o.objects {
		if strings.HasPrefix(name, prefix) {
			out = append(out, remote.Object{Name: name, Size: int64(len(data)), Updated: o.updated[name]})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (o *Objects) DeletePrefix(_ context.Context, prefix string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Deleted = append(o.Deleted, prefix)
	if err := o.DeleteErrs[prefix]; err != nil {
		return &remote.DeleteError{Prefix: prefix, Err: err}
	}
	for name := range o.objects {
		if strings.HasPrefix(name, prefix) {
			delete(o.objects, name)
			delete(o.updated, name)
		}
	}
	return nil
}

func (o *Objects) Put(_ context.Context, name string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.objects[name] = data
	o.updated[name] = time.Now().UTC()
	return nil
}

func (o *Objects) Get(_ context.Context, name string) (io.ReadCloser, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	data, ok := o.objects[name]
	if !ok {
		return nil, remote.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (o *Objects) Location() remote.Location { return o.loc }

// DeletedPrefixes returns a copy of the prefixes passed to DeletePrefix.
func (o *Objects) DeletedPrefixes() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.Deleted...)
}
