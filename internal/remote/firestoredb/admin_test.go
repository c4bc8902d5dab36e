package firestoredb

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/api/option"

	"github.com/dukerupert/catalogops/internal/optracker"
	"github.com/dukerupert/catalogops/internal/remote"
)

func newTestOperations(t *testing.T, h http.HandlerFunc) *Operations {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	ops, err := NewOperations(context.Background(), "demo", "",
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
	)
	if err != nil {
		t.Fatalf("new operations: %v", err)
	}
	return ops
}

func TestStartExport(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	ops := newTestOperations(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"name": "projects/demo/databases/(default)/operations/op-1",
			"metadata": {"operationState": "PROCESSING", "outputUriPrefix": "gs://backups/firestore/2024-01-01/0300"}
		}`))
	})

	op, err := ops.Start(context.Background(), remote.Export, "gs://backups/firestore/2024-01-01/0300/")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !strings.HasSuffix(gotPath, "/databases/(default):exportDocuments") {
		t.Errorf("path = %q", gotPath)
	}
	if gotBody["outputUriPrefix"] != "gs://backups/firestore/2024-01-01/0300/" {
		t.Errorf("body = %v", gotBody)
	}
	if op.Name != "projects/demo/databases/(default)/operations/op-1" || op.Done {
		t.Errorf("op = %+v", op)
	}
	if op.MetadataString("outputUriPrefix") != "gs://backups/firestore/2024-01-01/0300" {
		t.Errorf("metadata = %v", op.Metadata)
	}
}

func TestStartImport(t *testing.T) {
	var gotBody map[string]any
	ops := newTestOperations(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ":importDocuments") {
			http.NotFound(w, r)
			return
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name": "projects/demo/databases/(default)/operations/op-2"}`))
	})

	op, err := ops.Start(context.Background(), remote.Import, "gs://backups/firestore/2024-01-02/0300/")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if gotBody["inputUriPrefix"] != "gs://backups/firestore/2024-01-02/0300/" {
		t.Errorf("body = %v", gotBody)
	}
	if op.Name == "" {
		t.Error("expected operation name")
	}
}

func TestStartRejected(t *testing.T) {
	ops := newTestOperations(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error": {"code": 403, "message": "caller lacks datastore.databases.export", "status": "PERMISSION_DENIED"}}`))
	})

	tracker := optracker.New(ops, nil)
	_, err := tracker.Start(context.Background(), "gs://backups/x/", remote.Export)
	var rejected *optracker.RemoteRejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("err = %v, want *RemoteRejectedError", err)
	}
	if rejected.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rejected.StatusCode)
	}
	if !strings.Contains(rejected.Body, "datastore.databases.export") {
		t.Errorf("body = %q", rejected.Body)
	}
}

func TestGetOperation(t *testing.T) {
	ops := newTestOperations(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || !strings.HasSuffix(r.URL.Path, "/operations/op-3") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"name": "projects/demo/databases/(default)/operations/op-3",
			"done": true,
			"error": {"code": 9, "message": "bucket missing"}
		}`))
	})

	op, err := ops.Get(context.Background(), "projects/demo/databases/(default)/operations/op-3")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !op.Done || op.Error == nil || op.Error.Code != 9 {
		t.Errorf("op = %+v, want done with error code 9", op)
	}
}

func TestUnknownDirection(t *testing.T) {
	ops := newTestOperations(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	if _, err := ops.Start(context.Background(), remote.Direction("copy"), "gs://b/x/"); err == nil {
		t.Error("expected error")
	}
}

func TestNewRequiresProject(t *testing.T) {
	if _, err := NewOperations(context.Background(), "", ""); err == nil {
		t.Error("expected error without project")
	}
	if _, err := NewDocuments(context.Background(), "", ""); err == nil {
		t.Error("expected error without project")
	}
}

func TestRelativePath(t *testing.T) {
	got := relativePath("projects/demo/databases/(default)/documents/categories/fibra")
	if got != "categories/fibra" {
		t.Errorf("relativePath = %q", got)
	}
}
