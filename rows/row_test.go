package rows_test

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tributary.dev/tributary/rows"
)

func TestRowJSONPreservesFieldOrder(t *testing.T) {
	row := rows.NewRow()
	row.Set("zebra", int64(1))
	row.Set("apple", "two")
	row.Set("mango", nil)

	data, err := json.Marshal(row)
	require.NoError(t, err)
	assert.Equal(t, `{"zebra":1,"apple":"two","mango":null}`, string(data))
}

func TestRowJSONRoundTrip(t *testing.T) {
	row := rows.NewRow()
	row.Set("int", int64(42))
	row.Set("double", 1.5)
	row.Set("string", "s1")
	row.Set("array", []any{int64(1), int64(2)})

	data, err := json.Marshal(row)
	require.NoError(t, err)

	decoded := rows.NewRow()
	require.NoError(t, json.Unmarshal(data, decoded))

	assert.Equal(t, row.FieldNames(), decoded.FieldNames())
	assert.Equal(t, int64(42), decoded.Get("int"))
	assert.Equal(t, 1.5, decoded.Get("double"))
	assert.Equal(t, "s1", decoded.Get("string"))
	assert.Equal(t, []any{int64(1), int64(2)}, decoded.Get("array"))
}

func TestNewRowWithNames(t *testing.T) {
	row := rows.NewRowWithNames([]string{"a", "b"})
	assert.True(t, row.Has("a"))
	assert.Nil(t, row.Get("a"))
	assert.False(t, row.Has("c"))

	row.Set("b", "value")
	assert.Equal(t, []string{"a", "b"}, row.FieldNames(), "setting an existing field keeps order")
}
