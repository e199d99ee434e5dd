// Package parquet reads and writes Parquet files as rows, generically
// against the file's own schema or projected against a declared row type.
package parquet

import (
	"fmt"
	"strings"

	hambaavro "github.com/hamba/avro/v2"

	"tributary.dev/tributary/formats/avro"
	"tributary.dev/tributary/rows"
)

// jsonSchemaNode mirrors the parquet-go JSON schema document:
// {"Tag": "name=..., type=...", "Fields": [...]}.
type jsonSchemaNode struct {
	Tag    string            `json:"Tag"`
	Fields []*jsonSchemaNode `json:"Fields,omitempty"`
}

// schemaFromRowType builds the parquet-go JSON schema for a row type. All
// fields are optional so nil values can be written.
func schemaFromRowType(rowType rows.Type) (*jsonSchemaNode, error) {
	if rowType.Kind != rows.KindRow {
		return nil, fmt.Errorf("parquet schema needs a row type, got %s", rowType)
	}
	root := &jsonSchemaNode{Tag: "name=parquet_go_root, repetitiontype=REQUIRED"}
	for _, field := range rowType.Fields {
		node, err := schemaNode(field.Name, field.Type)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field.Name, err)
		}
		root.Fields = append(root.Fields, node)
	}
	return root, nil
}

func schemaNode(name string, t rows.Type) (*jsonSchemaNode, error) {
	tag := func(parts ...string) string {
		return "name=" + name + ", " + strings.Join(parts, ", ") + ", repetitiontype=OPTIONAL"
	}
	switch t.Kind {
	case rows.KindTinyInt, rows.KindSmallInt, rows.KindInt:
		return &jsonSchemaNode{Tag: tag("type=INT32")}, nil
	case rows.KindBigInt:
		return &jsonSchemaNode{Tag: tag("type=INT64")}, nil
	case rows.KindFloat:
		return &jsonSchemaNode{Tag: tag("type=FLOAT")}, nil
	case rows.KindDouble, rows.KindDecimal:
		return &jsonSchemaNode{Tag: tag("type=DOUBLE")}, nil
	case rows.KindBoolean:
		return &jsonSchemaNode{Tag: tag("type=BOOLEAN")}, nil
	case rows.KindString:
		return &jsonSchemaNode{Tag: tag("type=BYTE_ARRAY", "convertedtype=UTF8")}, nil
	case rows.KindArray:
		element, err := schemaNode("element", *t.Element)
		if err != nil {
			return nil, err
		}
		return &jsonSchemaNode{
			Tag:    tag("type=LIST"),
			Fields: []*jsonSchemaNode{element},
		}, nil
	case rows.KindMap:
		key, err := schemaNode("key", rows.String())
		if err != nil {
			return nil, err
		}
		value, err := schemaNode("value", *t.Element)
		if err != nil {
			return nil, err
		}
		return &jsonSchemaNode{
			Tag:    tag("type=MAP"),
			Fields: []*jsonSchemaNode{key, value},
		}, nil
	case rows.KindRow:
		group := &jsonSchemaNode{Tag: "name=" + name + ", repetitiontype=OPTIONAL"}
		for _, field := range t.Fields {
			node, err := schemaNode(field.Name, field.Type)
			if err != nil {
				return nil, err
			}
			group.Fields = append(group.Fields, node)
		}
		return group, nil
	default:
		return nil, fmt.Errorf("no parquet mapping for %s", t)
	}
}

// RowTypeFromAvro maps an Avro record schema onto a row type so Avro-shaped
// data can be written as Parquet.
func RowTypeFromAvro(schema *avro.Schema) (rows.Type, error) {
	record, ok := schema.Raw().(*hambaavro.RecordSchema)
	if !ok {
		return rows.Type{}, fmt.Errorf("avro schema must be a record, got %s", schema.Raw().Type())
	}
	return rowTypeFromAvroRecord(record)
}

func rowTypeFromAvroRecord(record *hambaavro.RecordSchema) (rows.Type, error) {
	fields := make([]rows.Field, 0, len(record.Fields()))
	for _, field := range record.Fields() {
		t, err := typeFromAvro(field.Type())
		if err != nil {
			return rows.Type{}, fmt.Errorf("field %s: %w", field.Name(), err)
		}
		fields = append(fields, rows.NewField(field.Name(), t))
	}
	return rows.RowOf(fields...), nil
}

func typeFromAvro(schema hambaavro.Schema) (rows.Type, error) {
	switch s := schema.(type) {
	case *hambaavro.RecordSchema:
		return rowTypeFromAvroRecord(s)
	case *hambaavro.ArraySchema:
		element, err := typeFromAvro(s.Items())
		if err != nil {
			return rows.Type{}, err
		}
		return rows.Array(element), nil
	case *hambaavro.MapSchema:
		value, err := typeFromAvro(s.Values())
		if err != nil {
			return rows.Type{}, err
		}
		return rows.Map(value), nil
	case *hambaavro.EnumSchema:
		return rows.String(), nil
	case *hambaavro.FixedSchema:
		return rows.String(), nil
	case *hambaavro.RefSchema:
		return typeFromAvro(s.Schema())
	case *hambaavro.UnionSchema:
		// A union maps to its widest non-null branch.
		var result rows.Type
		var found bool
		for _, branch := range s.Types() {
			if branch.Type() == hambaavro.Null {
				continue
			}
			t, err := typeFromAvro(branch)
			if err != nil {
				return rows.Type{}, err
			}
			if !found || wider(t, result) {
				result = t
				found = true
			}
		}
		if !found {
			// A pure null union holds nothing but nil; store as string.
			return rows.String(), nil
		}
		return result, nil
	default:
		switch schema.Type() {
		case hambaavro.Int:
			return rows.Int(), nil
		case hambaavro.Long:
			return rows.BigInt(), nil
		case hambaavro.Float:
			return rows.Float(), nil
		case hambaavro.Double:
			return rows.Double(), nil
		case hambaavro.Boolean:
			return rows.Boolean(), nil
		case hambaavro.String, hambaavro.Bytes:
			return rows.String(), nil
		case hambaavro.Null:
			return rows.String(), nil
		default:
			return rows.Type{}, fmt.Errorf("no row type mapping for avro %s", schema.Type())
		}
	}
}

// wider reports whether a should replace b when collapsing union branches.
func wider(a, b rows.Type) bool {
	rank := map[rows.Kind]int{
		rows.KindBoolean:  0,
		rows.KindTinyInt:  1,
		rows.KindSmallInt: 2,
		rows.KindInt:      3,
		rows.KindBigInt:   4,
		rows.KindFloat:    5,
		rows.KindDouble:   6,
		rows.KindString:   7,
	}
	return rank[a.Kind] > rank[b.Kind]
}
