package firestoredb

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/dukerupert/catalogops/internal/remote"
)

// maxBatchWrites is the BatchWrite request limit.
const maxBatchWrites = 500

// noRetry turns off the client's RPC-level retries.
var noRetry = gax.WithRetry(func() gax.Retryer { return nil })

var simpleField = regexp.MustCompile(`^[_a-zA-Z][_a-zA-Z0-9]*$`)

func (d *Documents) encodeWrite(w remote.Write) (*firestorepb.Write, error) {
	if _, err := d.doc(w.Path); err != nil {
		return nil, err
	}
	fields, err := encodeFields(w.Data)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", w.Path, err)
	}
	pw := &firestorepb.Write{
		Operation: &firestorepb.Write_Update{Update: &firestorepb.Document{
			Name:   d.database + "/documents/" + w.Path,
			Fields: fields,
		}},
	}
	if w.Merge {
		pw.UpdateMask = &firestorepb.DocumentMask{FieldPaths: mergeMask(nil, w.Data)}
	}
	return pw, nil
}

// mergeMask lists the field paths a merge write touches: every leaf value,
// with empty maps counted as leaves so they are written rather than skipped.
func mergeMask(parent []string, data map[string]any) []string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var paths []string
	for _, k := range keys {
		path := append(append([]string(nil), parent...), k)
		if m, ok := data[k].(map[string]any); ok && len(m) > 0 {
			paths = append(paths, mergeMask(path, m)...)
			continue
		}
		paths = append(paths, fieldPath(path))
	}
	return paths
}

func fieldPath(parts []string) string {
	quoted := make([]string, len(parts))
	for i, p := range parts {
		if simpleField.MatchString(p) {
			quoted[i] = p
			continue
		}
		p = strings.ReplaceAll(p, `\`, `\\`)
		quoted[i] = "`" + strings.ReplaceAll(p, "`", "\\`") + "`"
	}
	return strings.Join(quoted, ".")
}

func encodeFields(data map[string]any) (map[string]*firestorepb.Value, error) {
	fields := make(map[string]*firestorepb.Value, len(data))
	for k, v := range data {
		pv, err := encodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		fields[k] = pv
	}
	return fields, nil
}

func encodeValue(v any) (*firestorepb.Value, error) {
	switch x := v.(type) {
	case nil:
		return &firestorepb.Value{ValueType: &firestorepb.Value_NullValue{NullValue: structpb.NullValue_NULL_VALUE}}, nil
	case time.Time:
		return &firestorepb.Value{ValueType: &firestorepb.Value_TimestampValue{TimestampValue: timestamppb.New(x)}}, nil
	case []byte:
		return &firestorepb.Value{ValueType: &firestorepb.Value_BytesValue{BytesValue: x}}, nil
	case map[string]any:
		fields, err := encodeFields(x)
		if err != nil {
			return nil, err
		}
		return &firestorepb.Value{ValueType: &firestorepb.Value_MapValue{MapValue: &firestorepb.MapValue{Fields: fields}}}, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return &firestorepb.Value{ValueType: &firestorepb.Value_BooleanValue{BooleanValue: rv.Bool()}}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return &firestorepb.Value{ValueType: &firestorepb.Value_IntegerValue{IntegerValue: rv.Int()}}, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > 1<<63-1 {
			return nil, fmt.Errorf("integer %d overflows int64", u)
		}
		return &firestorepb.Value{ValueType: &firestorepb.Value_IntegerValue{IntegerValue: int64(u)}}, nil
	case reflect.Float32, reflect.Float64:
		return &firestorepb.Value{ValueType: &firestorepb.Value_DoubleValue{DoubleValue: rv.Float()}}, nil
	case reflect.String:
		return &firestorepb.Value{ValueType: &firestorepb.Value_StringValue{StringValue: rv.String()}}, nil
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return encodeValue(nil)
		}
		return encodeValue(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		values := make([]*firestorepb.Value, rv.Len())
		for i := range values {
			pv, err := encodeValue(rv.Index(i).Interface())
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			values[i] = pv
		}
		return &firestorepb.Value{ValueType: &firestorepb.Value_ArrayValue{ArrayValue: &firestorepb.ArrayValue{Values: values}}}, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("map key type %s is not a string", rv.Type().Key())
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return encodeValue(m)
	}
	return nil, fmt.Errorf("unsupported value type %T", v)
}
