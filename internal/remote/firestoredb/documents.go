// Package firestoredb connects the orchestration core to Cloud Firestore:
// document reads through the Firestore client library, document writes
// through the BatchWrite RPC and long-running export/import operations
// through the Firestore Admin REST API.
package firestoredb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"cloud.google.com/go/firestore"
	vkit "cloud.google.com/go/firestore/apiv1"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/dukerupert/catalogops/internal/remote"
)

// DefaultDatabase is the id of a project's default Firestore database.
const DefaultDatabase = "(default)"

// Documents implements remote.DocumentStore.
type Documents struct {
	client   *firestore.Client
	writes   *vkit.Client
	database string
}

func NewDocuments(ctx context.Context, project, database string, opts ...option.ClientOption) (*Documents, error) {
	if project == "" {
		return nil, errors.New("firestore project id is required")
	}
	if database == "" {
		database = DefaultDatabase
	}
	client, err := firestore.NewClientWithDatabase(ctx, project, database, opts...)
	if err != nil {
		return nil, fmt.Errorf("new firestore client: %w", err)
	}
	if host := os.Getenv("FIRESTORE_EMULATOR_HOST"); host != "" {
		opts = append([]option.ClientOption{
			option.WithEndpoint(host),
			option.WithoutAuthentication(),
			option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		}, opts...)
	}
	writes, err := vkit.NewClient(ctx, opts...)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("new firestore write client: %w", err)
	}
	return &Documents{
		client:   client,
		writes:   writes,
		database: "projects/" + project + "/databases/" + database,
	}, nil
}

func (d *Documents) Close() error {
	return errors.Join(d.writes.Close(), d.client.Close())
}

func (d *Documents) doc(path string) (*firestore.DocumentRef, error) {
	ref := d.client.Doc(path)
	if ref == nil {
		return nil, fmt.Errorf("invalid document path %q", path)
	}
	return ref, nil
}

func (d *Documents) Get(ctx context.Context, path string) (map[string]any, error) {
	ref, err := d.doc(path)
	if err != nil {
		return nil, err
	}
	snap, err := ref.Get(ctx)
	if err != nil {
		return nil, translate(err)
	}
	return snap.Data(), nil
}

// Set writes a single document. It makes exactly one attempt.
func (d *Documents) Set(ctx context.Context, path string, data map[string]any, merge bool) error {
	return d.BulkWrite(ctx, []remote.Write{{Path: path, Data: data, Merge: merge}})[0]
}

func (d *Documents) Create(ctx context.Context, collection string, data map[string]any) (string, error) {
	col := d.client.Collection(collection)
	if col == nil {
		return "", fmt.Errorf("invalid collection path %q", collection)
	}
	ref, _, err := col.Add(ctx, data)
	if err != nil {
		return "", fmt.Errorf("add to %s: %w", collection, translate(err))
	}
	return ref.ID, nil
}

func (d *Documents) List(ctx context.Context, collection string) ([]remote.Document, error) {
	col := d.client.Collection(collection)
	if col == nil {
		return nil, fmt.Errorf("invalid collection path %q", collection)
	}
	snaps, err := col.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, translate(err))
	}
	out := make([]remote.Document, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, remote.Document{Path: relativePath(s.Ref.Path), Data: s.Data()})
	}
	return out, nil
}

// BulkWrite sends the writes through BatchWrite, which applies each one
// independently and reports a status per write. Every write is attempted
// exactly once; repeating failures is left to the caller.
func (d *Documents) BulkWrite(ctx context.Context, writes []remote.Write) []error {
	errs := make([]error, len(writes))
	for start := 0; start < len(writes); start += maxBatchWrites {
		end := min(start+maxBatchWrites, len(writes))
		d.batchWrite(ctx, writes[start:end], errs[start:end])
	}
	return errs
}

func (d *Documents) batchWrite(ctx context.Context, writes []remote.Write, errs []error) {
	req := &firestorepb.BatchWriteRequest{Database: d.database}
	idx := make([]int, 0, len(writes))
	for i, w := range writes {
		pw, err := d.encodeWrite(w)
		if err != nil {
			errs[i] = err
			continue
		}
		req.Writes = append(req.Writes, pw)
		idx = append(idx, i)
	}
	if len(req.Writes) == 0 {
		return
	}

	resp, err := d.writes.BatchWrite(ctx, req, noRetry)
	if err != nil {
		err = translate(err)
		for _, i := range idx {
			errs[i] = fmt.Errorf("write %s: %w", writes[i].Path, err)
		}
		return
	}
	for n, i := range idx {
		if n >= len(resp.GetStatus()) {
			errs[i] = fmt.Errorf("write %s: no status returned", writes[i].Path)
			continue
		}
		if err := status.ErrorProto(resp.GetStatus()[n]); err != nil {
			errs[i] = fmt.Errorf("write %s: %w", writes[i].Path, translate(err))
		}
	}
}

// relativePath strips the "projects/p/databases/d/documents/" prefix.
func relativePath(full string) string {
	const marker = "/documents/"
	if i := strings.Index(full, marker); i >= 0 {
		return full[i+len(marker):]
	}
	return full
}

func translate(err error) error {
	s, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch s.Code() {
	case codes.NotFound:
		return remote.ErrNotFound
	case codes.OK:
		return err
	}
	return &remote.StatusError{Code: httpStatus(s.Code()), Body: s.Message()}
}

// httpStatus maps gRPC codes to the HTTP statuses the REST API would return.
func httpStatus(c codes.Code) int {
	switch c {
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return 400
	case codes.Unauthenticated:
		return 401
	case codes.PermissionDenied:
		return 403
	case codes.NotFound:
		return 404
	case codes.AlreadyExists, codes.Aborted:
		return 409
	case codes.ResourceExhausted:
		return 429
	case codes.Canceled:
		return 499
	case codes.Unimplemented:
		return 501
	case codes.Unavailable:
		return 503
	case codes.DeadlineExceeded:
		return 504
	}
	return 500
}
