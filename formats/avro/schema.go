// Package avro reads and writes Avro object container files as generic
// records.
package avro

import (
	"fmt"

	"github.com/hamba/avro/v2"
)

// Schema wraps a parsed Avro schema.
type Schema struct {
	schema avro.Schema
}

func ParseSchema(s string) (*Schema, error) {
	parsed, err := avro.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("parsing avro schema: %w", err)
	}
	return &Schema{schema: parsed}, nil
}

func (s *Schema) String() string {
	return s.schema.String()
}

// Raw returns the underlying hamba schema.
func (s *Schema) Raw() avro.Schema {
	return s.schema
}

// recordSchema returns the schema as a record schema or an error, since
// container files of non-record types have no field structure to map to
// rows.
func (s *Schema) recordSchema() (*avro.RecordSchema, error) {
	rec, ok := s.schema.(*avro.RecordSchema)
	if !ok {
		return nil, fmt.Errorf("avro schema must be a record, got %s", s.schema.Type())
	}
	return rec, nil
}

// branchKey is the union branch name hamba uses for generic values: the
// full name for named types, the type name otherwise.
func branchKey(s avro.Schema) string {
	if named, ok := s.(avro.NamedSchema); ok {
		return named.FullName()
	}
	return string(s.Type())
}
