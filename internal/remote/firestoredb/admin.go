package firestoredb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	firestoreadmin "google.golang.org/api/firestore/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/dukerupert/catalogops/internal/remote"
)

// Operations implements remote.OperationClient with the Firestore Admin API
// exportDocuments, importDocuments and operations.get calls.
type Operations struct {
	svc      *firestoreadmin.Service
	database string
}

func NewOperations(ctx context.Context, project, database string, opts ...option.ClientOption) (*Operations, error) {
	if project == "" {
		return nil, errors.New("firestore project id is required")
	}
	if database == "" {
		database = DefaultDatabase
	}
	svc, err := firestoreadmin.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("new firestore admin service: %w", err)
	}
	return &Operations{
		svc:      svc,
		database: fmt.Sprintf("projects/%s/databases/%s", project, database),
	}, nil
}

func (o *Operations) Start(ctx context.Context, dir remote.Direction, uri string) (remote.Operation, error) {
	var (
		op  *firestoreadmin.GoogleLongrunningOperation
		err error
	)
	switch dir {
	case remote.Export:
		op, err = o.svc.Projects.Databases.ExportDocuments(o.database,
			&firestoreadmin.GoogleFirestoreAdminV1ExportDocumentsRequest{OutputUriPrefix: uri},
		).Context(ctx).Do()
	case remote.Import:
		op, err = o.svc.Projects.Databases.ImportDocuments(o.database,
			&firestoreadmin.GoogleFirestoreAdminV1ImportDocumentsRequest{InputUriPrefix: uri},
		).Context(ctx).Do()
	default:
		return remote.Operation{}, fmt.Errorf("unknown direction %q", dir)
	}
	if err != nil {
		return remote.Operation{}, translateAPI(err)
	}
	return convert(op)
}

func (o *Operations) Get(ctx context.Context, name string) (remote.Operation, error) {
	op, err := o.svc.Projects.Databases.Operations.Get(name).Context(ctx).Do()
	if err != nil {
		return remote.Operation{}, translateAPI(err)
	}
	return convert(op)
}

func convert(op *firestoreadmin.GoogleLongrunningOperation) (remote.Operation, error) {
	out := remote.Operation{Name: op.Name, Done: op.Done}
	if len(op.Metadata) > 0 {
		if err := json.Unmarshal(op.Metadata, &out.Metadata); err != nil {
			return out, fmt.Errorf("decode operation metadata: %w", err)
		}
	}
	if len(op.Response) > 0 {
		if err := json.Unmarshal(op.Response, &out.Response); err != nil {
			return out, fmt.Errorf("decode operation response: %w", err)
		}
	}
	if op.Error != nil {
		out.Error = &remote.OperationError{Code: int(op.Error.Code), Message: op.Error.Message}
	}
	return out, nil
}

func translateAPI(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		body := gerr.Message
		if body == "" {
			body = gerr.Body
		}
		return &remote.StatusError{Code: gerr.Code, Body: body}
	}
	return err
}
