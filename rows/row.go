package rows

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
)

// Row is an ordered set of named values. Field order is preserved through
// JSON encoding so that downstream consumers see columns as declared.
type Row struct {
	names  []string
	values map[string]any
}

func NewRow() *Row {
	return &Row{values: make(map[string]any)}
}

// NewRowWithNames creates a row with a fixed field order where every value
// starts as nil.
func NewRowWithNames(names []string) *Row {
	r := &Row{
		names:  make([]string, len(names)),
		values: make(map[string]any, len(names)),
	}
	copy(r.names, names)
	for _, n := range names {
		r.values[n] = nil
	}
	return r
}

func (r *Row) Set(name string, value any) {
	if _, ok := r.values[name]; !ok {
		r.names = append(r.names, name)
	}
	r.values[name] = value
}

func (r *Row) Get(name string) any {
	return r.values[name]
}

// Has reports whether the field exists, even when its value is nil.
func (r *Row) Has(name string) bool {
	_, ok := r.values[name]
	return ok
}

func (r *Row) Len() int {
	return len(r.names)
}

func (r *Row) FieldNames() []string {
	names := make([]string, len(r.names))
	copy(names, r.names)
	return names
}

// AsMap returns the row's values keyed by field name. The map does not
// preserve field order.
func (r *Row) AsMap() map[string]any {
	m := make(map[string]any, len(r.values))
	for k, v := range r.values {
		m[k] = v
	}
	return m
}

func (r *Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range r.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyJSON, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(keyJSON)
		buf.WriteByte(':')
		valueJSON, err := json.Marshal(r.values[name])
		if err != nil {
			return nil, fmt.Errorf("marshaling field %s: %w", name, err)
		}
		buf.Write(valueJSON)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (r *Row) UnmarshalJSON(data []byte) error {
	r.names = nil
	r.values = make(map[string]any)

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("row JSON must be an object, got %v", tok)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key := keyTok.(string)

		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("decoding field %s: %w", key, err)
		}
		r.Set(key, normalizeJSON(value))
	}

	// Consume the closing brace.
	_, err = dec.Token()
	return err
}

// normalizeJSON converts json.Number values into int64 where possible,
// float64 otherwise, recursing through containers.
func normalizeJSON(v any) any {
	switch v := v.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		f, _ := v.Float64()
		return f
	case []any:
		for i := range v {
			v[i] = normalizeJSON(v[i])
		}
		return v
	case map[string]any:
		for k := range v {
			v[k] = normalizeJSON(v[k])
		}
		return v
	default:
		return v
	}
}
