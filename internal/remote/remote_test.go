package remote

import (
	"errors"
	"testing"
)

func TestLocationURIRoundTrip(t *testing.T) {
	loc := Location{Scheme: "gs", Bucket: "catalog-backups"}

	uri := loc.URI("firestore/2024-05-01/0300/")
	if uri != "gs://catalog-backups/firestore/2024-05-01/0300/" {
		t.Fatalf("uri = %q", uri)
	}

	name, ok := loc.Resolve(uri)
	if !ok {
		t.Fatal("expected uri to resolve")
	}
	if name != "firestore/2024-05-01/0300/" {
		t.Errorf("name = %q, want %q", name, "firestore/2024-05-01/0300/")
	}
}

func TestLocationResolveOtherBucket(t *testing.T) {
	loc := Location{Scheme: "gs", Bucket: "a"}
	if _, ok := loc.Resolve("gs://b/firestore/x/"); ok {
		t.Error("uri in another bucket should not resolve")
	}
	if _, ok := loc.Resolve("s3://a/firestore/x/"); ok {
		t.Error("uri with another scheme should not resolve")
	}
}

func TestDeleteErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := error(&DeleteError{Prefix: "p/", Failed: []string{"p/a"}, Err: cause})
	if !errors.Is(err, cause) {
		t.Error("DeleteError should unwrap to its cause")
	}
}

func TestOperationMetadataString(t *testing.T) {
	op := Operation{Metadata: map[string]any{"outputUriPrefix": "gs://b/p/", "n": 3}}
	if got := op.MetadataString("outputUriPrefix"); got != "gs://b/p/" {
		t.Errorf("outputUriPrefix = %q", got)
	}
	if got := op.MetadataString("n"); got != "" {
		t.Errorf("non-string metadata = %q, want empty", got)
	}
	if got := (Operation{}).MetadataString("x"); got != "" {
		t.Errorf("nil metadata = %q, want empty", got)
	}
}

func TestMergeFields(t *testing.T) {
	dst := map[string]any{
		"name":  "old",
		"flags": map[string]any{"a": true, "b": true},
		"keep":  1,
	}
	src := map[string]any{
		"name":  "new",
		"flags": map[string]any{"b": false, "c": true},
	}

	got := MergeFields(dst, src)

	if got["name"] != "new" {
		t.Errorf("name = %v, want new", got["name"])
	}
	if got["keep"] != 1 {
		t.Errorf("keep = %v, want 1", got["keep"])
	}
	flags := got["flags"].(map[string]any)
	if flags["a"] != true || flags["b"] != false || flags["c"] != true {
		t.Errorf("flags = %v", flags)
	}
}

func TestMergeFieldsNilDestination(t *testing.T) {
	got := MergeFields(nil, map[string]any{"x": map[string]any{"y": 1}})
	if got["x"].(map[string]any)["y"] != 1 {
		t.Errorf("got %v", got)
	}
}
