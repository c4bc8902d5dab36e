package firestoredb

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/google/go-cmp/cmp"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/dukerupert/catalogops/internal/migrate"
	"github.com/dukerupert/catalogops/internal/remote"
)

const testDocPrefix = "projects/demo/databases/(default)/documents/"

// fakeFirestore serves document reads and BatchWrite from memory. Writes to
// documents listed in failing are answered with that status every time.
type fakeFirestore struct {
	firestorepb.UnimplementedFirestoreServer

	mu       sync.Mutex
	docs     map[string]*firestorepb.Document
	failing  map[string]codes.Code
	attempts map[string]int
	writes   []*firestorepb.Write
}

func (f *fakeFirestore) BatchGetDocuments(req *firestorepb.BatchGetDocumentsRequest, stream firestorepb.Firestore_BatchGetDocumentsServer) error {
	for _, name := range req.GetDocuments() {
		f.mu.Lock()
		doc, ok := f.docs[name]
		f.mu.Unlock()

		resp := &firestorepb.BatchGetDocumentsResponse{ReadTime: timestamppb.Now()}
		if ok {
			resp.Result = &firestorepb.BatchGetDocumentsResponse_Found{Found: doc}
		} else {
			resp.Result = &firestorepb.BatchGetDocumentsResponse_Missing{Missing: name}
		}
		if err := stream.Send(resp); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeFirestore) BatchWrite(_ context.Context, req *firestorepb.BatchWriteRequest) (*firestorepb.BatchWriteResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	resp := &firestorepb.BatchWriteResponse{}
	for _, w := range req.GetWrites() {
		f.writes = append(f.writes, w)
		doc := w.GetUpdate()
		f.attempts[doc.GetName()]++
		resp.WriteResults = append(resp.WriteResults, &firestorepb.WriteResult{})

		if code, ok := f.failing[doc.GetName()]; ok {
			resp.Status = append(resp.Status, status.New(code, "injected failure").Proto())
			continue
		}

		stored := &firestorepb.Document{Name: doc.GetName(), Fields: map[string]*firestorepb.Value{}, CreateTime: timestamppb.Now(), UpdateTime: timestamppb.Now()}
		if w.GetUpdateMask() != nil {
			if cur, ok := f.docs[doc.GetName()]; ok {
				for k, v := range cur.GetFields() {
					stored.Fields[k] = v
				}
			}
			for _, path := range w.GetUpdateMask().GetFieldPaths() {
				top, _, _ := strings.Cut(path, ".")
				top = strings.Trim(top, "`")
				stored.Fields[top] = doc.GetFields()[top]
			}
		} else {
			stored.Fields = doc.GetFields()
		}
		f.docs[doc.GetName()] = stored
		resp.Status = append(resp.Status, status.New(codes.OK, "").Proto())
	}
	return resp, nil
}

func (f *fakeFirestore) put(t *testing.T, path string, data map[string]any) {
	t.Helper()
	fields, err := encodeFields(data)
	if err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[testDocPrefix+path] = &firestorepb.Document{Name: testDocPrefix + path, Fields: fields, CreateTime: timestamppb.Now(), UpdateTime: timestamppb.Now()}
}

func (f *fakeFirestore) attemptsFor(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts[testDocPrefix+path]
}

func (f *fakeFirestore) stored(path string) (*firestorepb.Document, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[testDocPrefix+path]
	return doc, ok
}

func (f *fakeFirestore) lastWrite() *firestorepb.Write {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes[len(f.writes)-1]
}

func newFakeDocuments(t *testing.T) (*Documents, *fakeFirestore) {
	t.Helper()
	fake := &fakeFirestore{
		docs:     map[string]*firestorepb.Document{},
		failing:  map[string]codes.Code{},
		attempts: map[string]int{},
	}

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := grpc.NewServer()
	firestorepb.RegisterFirestoreServer(srv, fake)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial fake firestore: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	d, err := NewDocuments(context.Background(), "demo", "", option.WithGRPCConn(conn))
	if err != nil {
		t.Fatalf("new documents: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d, fake
}

func TestBulkWriteAttemptsOnce(t *testing.T) {
	d, fake := newFakeDocuments(t)
	fake.failing[testDocPrefix+"items/flaky"] = codes.Unavailable

	errs := d.BulkWrite(context.Background(), []remote.Write{
		{Path: "items/flaky", Data: map[string]any{"name": "x"}},
		{Path: "items/steady", Data: map[string]any{"name": "y"}},
		{Path: "items", Data: map[string]any{"name": "bad path"}},
	})

	var se *remote.StatusError
	if !errors.As(errs[0], &se) || se.Code != 503 {
		t.Errorf("flaky err = %v, want 503", errs[0])
	}
	if errs[1] != nil {
		t.Errorf("steady err = %v", errs[1])
	}
	if errs[2] == nil {
		t.Error("invalid path should fail")
	}
	if got := fake.attemptsFor("items/flaky"); got != 1 {
		t.Errorf("flaky attempts = %d, want 1", got)
	}
	if _, ok := fake.stored("items/steady"); !ok {
		t.Error("steady item not stored")
	}
}

func TestSetMergeKeepsEmptyMap(t *testing.T) {
	d, fake := newFakeDocuments(t)

	if err := d.Set(context.Background(), "items/y", map[string]any{"name": "y", "features": map[string]any{}}, true); err != nil {
		t.Fatalf("set: %v", err)
	}

	w := fake.lastWrite()
	if diff := cmp.Diff([]string{"features", "name"}, w.GetUpdateMask().GetFieldPaths()); diff != "" {
		t.Errorf("update mask mismatch (-want +got):\n%s", diff)
	}
	doc, _ := fake.stored("items/y")
	if doc.GetFields()["features"].GetMapValue() == nil {
		t.Errorf("features = %v, want an empty map", doc.GetFields()["features"])
	}
}

func TestMigrationAttemptsEachItemThreeTimes(t *testing.T) {
	d, fake := newFakeDocuments(t)
	fake.put(t, migrate.LegacyPath, map[string]any{
		"tarifas": []any{
			map[string]any{"nombre": "Flaky", "precio": "10"},
			map[string]any{"nombre": "Steady", "precio": "12,50"},
		},
	})
	fake.failing[testDocPrefix+"items/flaky"] = codes.Unavailable

	m := migrate.New(d, migrate.RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond}, slog.Default(), nil)
	res, err := m.Run(context.Background(), false)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if res.ItemsMigrated != 1 || res.ItemsFailed != 1 {
		t.Errorf("stats = %+v, want 1 migrated and 1 failed", res.MigrationStats)
	}
	if got := fake.attemptsFor("items/flaky"); got != 3 {
		t.Errorf("flaky attempts = %d, want 3", got)
	}

	steady, ok := fake.stored("items/steady")
	if !ok {
		t.Fatal("steady item not stored")
	}
	if steady.GetFields()["features"].GetMapValue() == nil {
		t.Errorf("item fields = %v, want a features map", steady.GetFields())
	}
	if _, ok := fake.stored(migrate.VersionPath); !ok {
		t.Error("schema marker not written")
	}
}

func TestMergeMask(t *testing.T) {
	got := mergeMask(nil, map[string]any{
		"name":     "y",
		"features": map[string]any{},
		"theme":    map[string]any{"dark": true, "accent": map[string]any{"hue": 3}},
		"a b":      1,
	})
	want := []string{"`a b`", "features", "name", "theme.accent.hue", "theme.dark"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mergeMask mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeValue(t *testing.T) {
	ts := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	fields, err := encodeFields(map[string]any{
		"n":    nil,
		"b":    true,
		"i":    42,
		"f":    30.95,
		"s":    "x",
		"t":    ts,
		"list": []string{"a", "b"},
		"m":    map[string]int{"k": 1},
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if fields["n"].GetNullValue() != 0 || fields["n"].GetValueType() == nil {
		t.Errorf("n = %v", fields["n"])
	}
	if !fields["b"].GetBooleanValue() || fields["i"].GetIntegerValue() != 42 || fields["f"].GetDoubleValue() != 30.95 {
		t.Errorf("scalars = %v %v %v", fields["b"], fields["i"], fields["f"])
	}
	if fields["s"].GetStringValue() != "x" || !fields["t"].GetTimestampValue().AsTime().Equal(ts) {
		t.Errorf("s, t = %v %v", fields["s"], fields["t"])
	}
	if len(fields["list"].GetArrayValue().GetValues()) != 2 {
		t.Errorf("list = %v", fields["list"])
	}
	if fields["m"].GetMapValue().GetFields()["k"].GetIntegerValue() != 1 {
		t.Errorf("m = %v", fields["m"])
	}

	if _, err := encodeValue(make(chan int)); err == nil {
		t.Error("channel should not encode")
	}
}
