// Package gcs implements remote.ObjectStore on Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/dukerupert/catalogops/internal/remote"
)

type Store struct {
	client *storage.Client
	bucket *storage.BucketHandle
	name   string
}

// New opens a storage client for bucket. Credentials come from the
// environment unless opts say otherwise.
func New(ctx context.Context, bucket string, opts ...option.ClientOption) (*Store, error) {
	if bucket == "" {
		return nil, errors.New("gcs bucket is required")
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("new storage client: %w", err)
	}
	return &Store{client: client, bucket: client.Bucket(bucket), name: bucket}, nil
}

// Close releases resources associated with the client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Location() remote.Location {
	return remote.Location{Scheme: "gs", Bucket: s.name}
}

func (s *Store) List(ctx context.Context, prefix string) ([]remote.Object, error) {
	q := &storage.Query{Prefix: prefix}
	if err := q.SetAttrSelection([]string{"Name", "Size", "Updated"}); err != nil {
		return nil, err
	}

	var out []remote.Object
	it := s.bucket.Objects(ctx, q)
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list gs://%s/%s: %w", s.name, prefix, translate(err))
		}
		out = append(out, remote.Object{Name: attrs.Name, Size: attrs.Size, Updated: attrs.Updated})
	}
	return out, nil
}

// DeletePrefix deletes objects one by one. Objects that fail are collected
// and reported together; the rest are still removed.
func (s *Store) DeletePrefix(ctx context.Context, prefix string) error {
	objects, err := s.List(ctx, prefix)
	if err != nil {
		return err
	}

	var failed []string
	var firstErr error
	for _, o := range objects {
		err := s.bucket.Object(o.Name).Delete(ctx)
		if err == nil || errors.Is(err, storage.ErrObjectNotExist) {
			continue
		}
		failed = append(failed, o.Name)
		if firstErr == nil {
			firstErr = translate(err)
		}
	}
	if len(failed) > 0 {
		return &remote.DeleteError{Prefix: prefix, Failed: failed, Err: firstErr}
	}
	return nil
}

func (s *Store) Put(ctx context.Context, name string, r io.Reader) error {
	w := s.bucket.Object(name).NewWriter(ctx)
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("upload gs://%s/%s: %w", s.name, name, translate(err))
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("upload gs://%s/%s: %w", s.name, name, translate(err))
	}
	return nil
}

func (s *Store) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	rc, err := s.bucket.Object(name).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("download gs://%s/%s: %w", s.name, name, translate(err))
	}
	return rc, nil
}

func translate(err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return remote.ErrNotFound
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &remote.StatusError{Code: gerr.Code, Body: gerr.Message}
	}
	return err
}
