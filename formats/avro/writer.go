package avro

import (
	"fmt"
	"io"
	"math"

	"github.com/hamba/avro/v2"
	"github.com/hamba/avro/v2/ocf"

	"tributary.dev/tributary/formats"
	"tributary.dev/tributary/rows"
)

// BulkWriterFactory writes rows as generic records into Avro object
// container files.
type BulkWriterFactory struct {
	schema *Schema
}

func NewBulkWriterFactory(schema *Schema) *BulkWriterFactory {
	return &BulkWriterFactory{schema: schema}
}

func (f *BulkWriterFactory) Create(w io.Writer) (formats.BulkWriter, error) {
	record, err := f.schema.recordSchema()
	if err != nil {
		return nil, err
	}
	enc, err := ocf.NewEncoderWithSchema(f.schema.schema, w)
	if err != nil {
		return nil, fmt.Errorf("creating avro container encoder: %w", err)
	}
	return &bulkWriter{enc: enc, record: record}, nil
}

var _ formats.BulkWriterFactory = (*BulkWriterFactory)(nil)

type bulkWriter struct {
	enc    *ocf.Encoder
	record *avro.RecordSchema
}

func (w *bulkWriter) AddElement(row *rows.Row) error {
	value, err := wrapValue(w.record, row.AsMap())
	if err != nil {
		return err
	}
	if err := w.enc.Encode(value); err != nil {
		return fmt.Errorf("encoding avro record: %w", err)
	}
	return nil
}

func (w *bulkWriter) Flush() error {
	return w.enc.Flush()
}

func (w *bulkWriter) Finish() error {
	return w.enc.Close()
}

// wrapValue converts a plain Go value into the generic representation
// hamba expects for the schema: union values gain a {branchName: value}
// wrapper and numbers are coerced to the schema's width.
func wrapValue(schema avro.Schema, value any) (any, error) {
	switch s := schema.(type) {
	case *avro.UnionSchema:
		if value == nil {
			if !s.Nullable() && !containsNull(s) {
				return nil, fmt.Errorf("nil value for non-nullable union")
			}
			return nil, nil
		}
		// Two-branch nullable unions use the bare value, no branch wrapper.
		if s.Nullable() {
			for _, branch := range s.Types() {
				if branch.Type() != avro.Null {
					return wrapValue(branch, value)
				}
			}
		}
		branch, err := pickBranch(s, value)
		if err != nil {
			return nil, err
		}
		inner, err := wrapValue(branch, value)
		if err != nil {
			return nil, err
		}
		return map[string]any{branchKey(branch): inner}, nil
	case *avro.RecordSchema:
		fields, err := valueAsMap(value)
		if err != nil {
			return nil, err
		}
		out := make(map[string]any, len(s.Fields()))
		for _, field := range s.Fields() {
			wrapped, err := wrapValue(field.Type(), fields[field.Name()])
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", field.Name(), err)
			}
			out[field.Name()] = wrapped
		}
		return out, nil
	case *avro.ArraySchema:
		items, ok := value.([]any)
		if !ok {
			return nil, fmt.Errorf("expected array value, got %T", value)
		}
		out := make([]any, len(items))
		for i, item := range items {
			wrapped, err := wrapValue(s.Items(), item)
			if err != nil {
				return nil, err
			}
			out[i] = wrapped
		}
		return out, nil
	case *avro.MapSchema:
		entries, ok := value.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected map value, got %T", value)
		}
		out := make(map[string]any, len(entries))
		for k, v := range entries {
			wrapped, err := wrapValue(s.Values(), v)
			if err != nil {
				return nil, err
			}
			out[k] = wrapped
		}
		return out, nil
	case *avro.RefSchema:
		return wrapValue(s.Schema(), value)
	default:
		return coercePrimitive(schema.Type(), value)
	}
}

func valueAsMap(value any) (map[string]any, error) {
	switch v := value.(type) {
	case map[string]any:
		return v, nil
	case *rows.Row:
		return v.AsMap(), nil
	default:
		return nil, fmt.Errorf("expected record value, got %T", value)
	}
}

func containsNull(s *avro.UnionSchema) bool {
	for _, t := range s.Types() {
		if t.Type() == avro.Null {
			return true
		}
	}
	return false
}

// pickBranch finds the union branch matching a Go value's type.
func pickBranch(s *avro.UnionSchema, value any) (avro.Schema, error) {
	var want avro.Type
	switch value.(type) {
	case int, int8, int16, int32, int64:
		want = avro.Int
	case float32, float64:
		want = avro.Double
	case string:
		want = avro.String
	case bool:
		want = avro.Boolean
	case []byte:
		want = avro.Bytes
	case []any:
		want = avro.Array
	case map[string]any, *rows.Row:
		want = avro.Record
	default:
		return nil, fmt.Errorf("no union branch for %T", value)
	}

	// Integers prefer int then long branches; floats double then float.
	preference := map[avro.Type][]avro.Type{
		avro.Int:     {avro.Int, avro.Long, avro.Double, avro.Float},
		avro.Double:  {avro.Double, avro.Float},
		avro.String:  {avro.String, avro.Enum},
		avro.Boolean: {avro.Boolean},
		avro.Bytes:   {avro.Bytes, avro.Fixed},
		avro.Array:   {avro.Array},
		avro.Record:  {avro.Record, avro.Map},
	}
	for _, wantType := range preference[want] {
		for _, branch := range s.Types() {
			t := branch
			if ref, ok := branch.(*avro.RefSchema); ok {
				t = ref.Schema()
			}
			if t.Type() == wantType {
				return branch, nil
			}
		}
	}
	return nil, fmt.Errorf("no union branch for %T among %s", value, s)
}

func coercePrimitive(t avro.Type, value any) (any, error) {
	if value == nil {
		if t == avro.Null {
			return nil, nil
		}
		return nil, fmt.Errorf("nil value for %s field", t)
	}
	switch t {
	case avro.Int:
		v, ok := asInt64(value)
		if !ok || v > math.MaxInt32 || v < math.MinInt32 {
			return nil, fmt.Errorf("cannot encode %T(%v) as int", value, value)
		}
		return int(v), nil
	case avro.Long:
		v, ok := asInt64(value)
		if !ok {
			return nil, fmt.Errorf("cannot encode %T as long", value)
		}
		return v, nil
	case avro.Float:
		v, ok := asFloat64(value)
		if !ok {
			return nil, fmt.Errorf("cannot encode %T as float", value)
		}
		return float32(v), nil
	case avro.Double:
		v, ok := asFloat64(value)
		if !ok {
			return nil, fmt.Errorf("cannot encode %T as double", value)
		}
		return v, nil
	case avro.String, avro.Enum:
		v, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("cannot encode %T as %s", value, t)
		}
		return v, nil
	case avro.Boolean:
		v, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("cannot encode %T as boolean", value)
		}
		return v, nil
	case avro.Bytes, avro.Fixed:
		v, ok := value.([]byte)
		if !ok {
			return nil, fmt.Errorf("cannot encode %T as %s", value, t)
		}
		return v, nil
	default:
		return value, nil
	}
}

func asInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if v == math.Trunc(v) {
			return int64(v), true
		}
		return 0, false
	default:
		return 0, false
	}
}

func asFloat64(value any) (float64, bool) {
	switch v := value.(type) {
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
