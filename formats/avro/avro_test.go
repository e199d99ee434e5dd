package avro_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tributary.dev/tributary/formats/avro"
	"tributary.dev/tributary/rows"
)

const basicSchema = `
{
    "type": "record",
    "name": "test",
    "fields": [
        { "name": "null", "type": "null" },
        { "name": "boolean", "type": "boolean" },
        { "name": "int", "type": "int" },
        { "name": "long", "type": "long" },
        { "name": "float", "type": "float" },
        { "name": "double", "type": "double" },
        { "name": "string", "type": "string" }
    ]
}
`

const enumSchema = `
{
    "type": "record",
    "name": "test",
    "fields": [
        {
            "name": "suit",
            "type": {
                "type": "enum",
                "name": "Suit",
                "symbols" : ["SPADES", "HEARTS", "DIAMONDS", "CLUBS"]
            }
        }
    ]
}
`

const unionSchema = `
{
    "type": "record",
    "name": "test",
    "fields": [
        {
            "name": "union",
            "type": [ "int", "double", "null" ]
        }
    ]
}
`

const arraySchema = `
{
    "type": "record",
    "name": "test",
    "fields": [
        {
            "name": "array",
            "type": {
                "type": "array",
                "items": {
                    "type": "record",
                    "name": "item",
                    "fields": [
                        { "name": "int", "type": "int" },
                        { "name": "double", "type": "double" }
                    ]
                }
            }
        }
    ]
}
`

const mapSchema = `
{
    "type": "record",
    "name": "test",
    "fields": [
        {
            "name": "map",
            "type": {
                "type": "map",
                "values": "long"
            }
        }
    ]
}
`

// writeThenRead round-trips rows through an in-memory container file.
func writeThenRead(t *testing.T, schemaJSON string, input []*rows.Row) []*rows.Row {
	t.Helper()
	schema, err := avro.ParseSchema(schemaJSON)
	require.NoError(t, err)

	var buf bytes.Buffer
	w, err := avro.NewBulkWriterFactory(schema).Create(&buf)
	require.NoError(t, err)
	for _, row := range input {
		require.NoError(t, w.AddElement(row))
	}
	require.NoError(t, w.Finish())

	reader, err := avro.NewInputFormat(schema).Open(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer reader.Close()

	var result []*rows.Row
	for {
		row, err := reader.Read()
		if err == io.EOF {
			return result
		}
		require.NoError(t, err)
		result = append(result, row)
	}
}

func basicRow(boolean bool, i, l int, f, d float64, s string) *rows.Row {
	row := rows.NewRow()
	row.Set("null", nil)
	row.Set("boolean", boolean)
	row.Set("int", i)
	row.Set("long", l)
	row.Set("float", f)
	row.Set("double", d)
	row.Set("string", s)
	return row
}

func TestBasicRecords(t *testing.T) {
	result := writeThenRead(t, basicSchema, []*rows.Row{
		basicRow(true, 0, 1, 2, 3, "s1"),
		basicRow(false, 4, 5, 6, 7, "s2"),
	})
	require.Len(t, result, 2)

	assert.Equal(t,
		[]string{"null", "boolean", "int", "long", "float", "double", "string"},
		result[0].FieldNames(), "row fields follow schema order")

	r1, r2 := result[0], result[1]
	assert.Nil(t, r1.Get("null"))
	assert.Equal(t, true, r1.Get("boolean"))
	assert.Equal(t, 0, r1.Get("int"))
	assert.Equal(t, int64(1), r1.Get("long"))
	assert.InDelta(t, 2, r1.Get("float"), 1e-3)
	assert.InDelta(t, 3, r1.Get("double"), 1e-3)
	assert.Equal(t, "s1", r1.Get("string"))

	assert.Nil(t, r2.Get("null"))
	assert.Equal(t, false, r2.Get("boolean"))
	assert.Equal(t, 4, r2.Get("int"))
	assert.Equal(t, int64(5), r2.Get("long"))
	assert.InDelta(t, 6, r2.Get("float"), 1e-3)
	assert.InDelta(t, 7, r2.Get("double"), 1e-3)
	assert.Equal(t, "s2", r2.Get("string"))
}

func TestEnumRecords(t *testing.T) {
	row1 := rows.NewRow()
	row1.Set("suit", "SPADES")
	row2 := rows.NewRow()
	row2.Set("suit", "DIAMONDS")

	result := writeThenRead(t, enumSchema, []*rows.Row{row1, row2})
	require.Len(t, result, 2)
	assert.Equal(t, "SPADES", result[0].Get("suit"))
	assert.Equal(t, "DIAMONDS", result[1].Get("suit"))
}

func TestUnionRecords(t *testing.T) {
	unionRow := func(v any) *rows.Row {
		row := rows.NewRow()
		row.Set("union", v)
		return row
	}

	result := writeThenRead(t, unionSchema, []*rows.Row{
		unionRow(1),
		unionRow(2.0),
		unionRow(nil),
	})
	require.Len(t, result, 3)
	assert.Equal(t, 1, result[0].Get("union"))
	assert.InDelta(t, 2.0, result[1].Get("union"), 1e-3)
	assert.Nil(t, result[2].Get("union"))
}

func TestArrayOfRecords(t *testing.T) {
	arrayRow := func(items ...map[string]any) *rows.Row {
		row := rows.NewRow()
		elements := make([]any, len(items))
		for i, item := range items {
			elements[i] = any(item)
		}
		row.Set("array", elements)
		return row
	}

	result := writeThenRead(t, arraySchema, []*rows.Row{
		arrayRow(map[string]any{"int": 1, "double": 2.0}, map[string]any{"int": 3, "double": 4.0}),
		arrayRow(map[string]any{"int": 5, "double": 6.0}, map[string]any{"int": 7, "double": 8.0}),
	})
	require.Len(t, result, 2)

	first := result[0].Get("array").([]any)
	require.Len(t, first, 2)
	assert.Equal(t, 1, first[0].(map[string]any)["int"])
	assert.InDelta(t, 2.0, first[0].(map[string]any)["double"], 1e-3)
	assert.Equal(t, 3, first[1].(map[string]any)["int"])

	second := result[1].Get("array").([]any)
	assert.Equal(t, 7, second[1].(map[string]any)["int"])
	assert.InDelta(t, 8.0, second[1].(map[string]any)["double"], 1e-3)
}

func TestMapRecords(t *testing.T) {
	mapRow := func(m map[string]any) *rows.Row {
		row := rows.NewRow()
		row.Set("map", m)
		return row
	}

	result := writeThenRead(t, mapSchema, []*rows.Row{
		mapRow(map[string]any{"a": 1, "b": 2}),
		mapRow(map[string]any{"c": 3, "d": 4}),
	})
	require.Len(t, result, 2)

	first := result[0].Get("map").(map[string]any)
	assert.Equal(t, int64(1), first["a"])
	assert.Equal(t, int64(2), first["b"])
	second := result[1].Get("map").(map[string]any)
	assert.Equal(t, int64(3), second["c"])
	assert.Equal(t, int64(4), second["d"])
}

func TestParseSchemaError(t *testing.T) {
	_, err := avro.ParseSchema(`{"type": "recordx"}`)
	assert.Error(t, err)
}

func TestNonRecordSchemaRejected(t *testing.T) {
	schema, err := avro.ParseSchema(`"string"`)
	require.NoError(t, err)
	_, err = avro.NewBulkWriterFactory(schema).Create(&bytes.Buffer{})
	assert.ErrorContains(t, err, "must be a record")
}
