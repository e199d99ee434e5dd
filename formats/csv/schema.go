// Package csv reads and writes delimited text files against a typed column
// schema. The dialect (separators, quoting, escaping, comments, headers) is
// part of the schema so readers and writers agree on it.
package csv

import (
	"fmt"

	"tributary.dev/tributary/rows"
)

type Column struct {
	Name string
	Type rows.Type
	// ElementSeparator splits array cells into elements. Only set for array
	// columns.
	ElementSeparator string
}

type Schema struct {
	columns         []Column
	columnSeparator rune
	quoteChar       rune
	escapeChar      rune // 0 means no escape char
	allowComments   bool
	useHeader       bool
	strictHeaders   bool
}

func (s *Schema) Columns() []Column {
	cols := make([]Column, len(s.columns))
	copy(cols, s.columns)
	return cols
}

func (s *Schema) ColumnNames() []string {
	names := make([]string, len(s.columns))
	for i, c := range s.columns {
		names[i] = c.Name
	}
	return names
}

type SchemaBuilder struct {
	schema Schema
	err    error
}

func NewSchemaBuilder() *SchemaBuilder {
	return &SchemaBuilder{
		schema: Schema{
			columnSeparator: ',',
			quoteChar:       '"',
		},
	}
}

// AddNumberColumn adds a column of any numeric type including decimals.
func (b *SchemaBuilder) AddNumberColumn(name string, t rows.Type) *SchemaBuilder {
	switch t.Kind {
	case rows.KindTinyInt, rows.KindSmallInt, rows.KindInt, rows.KindBigInt,
		rows.KindFloat, rows.KindDouble, rows.KindDecimal:
	default:
		b.setErr(fmt.Errorf("column %s: %s is not a number type", name, t))
		return b
	}
	b.schema.columns = append(b.schema.columns, Column{Name: name, Type: t})
	return b
}

func (b *SchemaBuilder) AddBooleanColumn(name string) *SchemaBuilder {
	b.schema.columns = append(b.schema.columns, Column{Name: name, Type: rows.Boolean()})
	return b
}

func (b *SchemaBuilder) AddStringColumn(name string) *SchemaBuilder {
	b.schema.columns = append(b.schema.columns, Column{Name: name, Type: rows.String()})
	return b
}

// AddArrayColumn adds a column whose cell holds elements of elementType
// joined by separator.
func (b *SchemaBuilder) AddArrayColumn(name string, separator string, elementType rows.Type) *SchemaBuilder {
	if separator == "" {
		b.setErr(fmt.Errorf("column %s: array element separator cannot be empty", name))
		return b
	}
	b.schema.columns = append(b.schema.columns, Column{
		Name:             name,
		Type:             rows.Array(elementType),
		ElementSeparator: separator,
	})
	return b
}

func (b *SchemaBuilder) SetColumnSeparator(sep rune) *SchemaBuilder {
	b.schema.columnSeparator = sep
	return b
}

func (b *SchemaBuilder) SetQuoteChar(q rune) *SchemaBuilder {
	b.schema.quoteChar = q
	return b
}

func (b *SchemaBuilder) SetEscapeChar(e rune) *SchemaBuilder {
	b.schema.escapeChar = e
	return b
}

// SetAllowComments makes the reader skip lines starting with '#'.
func (b *SchemaBuilder) SetAllowComments() *SchemaBuilder {
	b.schema.allowComments = true
	return b
}

// SetUseHeader makes the reader skip the first line of each file.
func (b *SchemaBuilder) SetUseHeader() *SchemaBuilder {
	b.schema.useHeader = true
	return b
}

// SetStrictHeaders makes the reader verify that the header names match the
// schema's column names in order. Implies nothing without SetUseHeader.
func (b *SchemaBuilder) SetStrictHeaders() *SchemaBuilder {
	b.schema.strictHeaders = true
	return b
}

func (b *SchemaBuilder) setErr(err error) {
	if b.err == nil {
		b.err = err
	}
}

func (b *SchemaBuilder) Build() (*Schema, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.schema.columns) == 0 {
		return nil, fmt.Errorf("csv schema needs at least one column")
	}
	if b.schema.strictHeaders && !b.schema.useHeader {
		return nil, fmt.Errorf("strict headers require reading a header line")
	}
	names := make(map[string]struct{}, len(b.schema.columns))
	for _, c := range b.schema.columns {
		if _, dup := names[c.Name]; dup {
			return nil, fmt.Errorf("duplicate column name %q", c.Name)
		}
		names[c.Name] = struct{}{}
	}
	schema := b.schema
	return &schema, nil
}
