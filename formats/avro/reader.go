package avro

import (
	"fmt"
	"io"

	"github.com/hamba/avro/v2"
	"github.com/hamba/avro/v2/ocf"

	"tributary.dev/tributary/formats"
	"tributary.dev/tributary/rows"
)

// InputFormat decodes Avro object container files into rows. The schema
// fixes the field order and drives union unwrapping.
type InputFormat struct {
	schema *Schema
}

func NewInputFormat(schema *Schema) *InputFormat {
	return &InputFormat{schema: schema}
}

func (f *InputFormat) Open(r io.Reader) (formats.RecordReader, error) {
	dec, err := ocf.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("opening avro container file: %w", err)
	}
	record, err := f.schema.recordSchema()
	if err != nil {
		return nil, err
	}
	return &recordReader{dec: dec, record: record}, nil
}

var _ formats.RecordFormat = (*InputFormat)(nil)

type recordReader struct {
	dec    *ocf.Decoder
	record *avro.RecordSchema
}

func (r *recordReader) Read() (*rows.Row, error) {
	if !r.dec.HasNext() {
		if err := r.dec.Error(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}

	var value any
	if err := r.dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("decoding avro record: %w", err)
	}
	fields, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected record value, got %T", value)
	}

	row := rows.NewRow()
	for _, field := range r.record.Fields() {
		row.Set(field.Name(), unwrapValue(field.Type(), fields[field.Name()]))
	}
	return row, nil
}

func (r *recordReader) Close() error { return nil }

// unwrapValue turns hamba's generic representation into the row value
// model: union branches lose their {branchName: value} wrapper and nested
// containers are unwrapped recursively.
func unwrapValue(schema avro.Schema, value any) any {
	if value == nil {
		return nil
	}
	switch s := schema.(type) {
	case *avro.UnionSchema:
		// Nullable two-branch unions decode to the bare value already.
		if s.Nullable() {
			for _, branch := range s.Types() {
				if branch.Type() != avro.Null {
					return unwrapValue(branch, value)
				}
			}
		}
		wrapper, ok := value.(map[string]any)
		if !ok || len(wrapper) != 1 {
			return value
		}
		for _, branch := range s.Types() {
			if inner, ok := wrapper[branchKey(branch)]; ok {
				return unwrapValue(branch, inner)
			}
		}
		return value
	case *avro.RecordSchema:
		fields, ok := value.(map[string]any)
		if !ok {
			return value
		}
		out := make(map[string]any, len(fields))
		for _, field := range s.Fields() {
			out[field.Name()] = unwrapValue(field.Type(), fields[field.Name()])
		}
		return out
	case *avro.ArraySchema:
		items, ok := value.([]any)
		if !ok {
			return value
		}
		for i := range items {
			items[i] = unwrapValue(s.Items(), items[i])
		}
		return items
	case *avro.MapSchema:
		entries, ok := value.(map[string]any)
		if !ok {
			return value
		}
		for k := range entries {
			entries[k] = unwrapValue(s.Values(), entries[k])
		}
		return entries
	case *avro.RefSchema:
		return unwrapValue(s.Schema(), value)
	default:
		return value
	}
}
