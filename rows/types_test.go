package rows_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tributary.dev/tributary/rows"
)

func TestConvertString_IntegerRanges(t *testing.T) {
	v, err := rows.TinyInt().ConvertString("127")
	require.NoError(t, err)
	assert.Equal(t, int8(127), v)

	v, err = rows.SmallInt().ConvertString("-32767")
	require.NoError(t, err)
	assert.Equal(t, int16(-32767), v)

	v, err = rows.Int().ConvertString("2147483647")
	require.NoError(t, err)
	assert.Equal(t, int32(2147483647), v)

	v, err = rows.BigInt().ConvertString("-9223372036854775808")
	require.NoError(t, err)
	assert.Equal(t, int64(-9223372036854775808), v)
}

func TestConvertString_IntegerOverflow(t *testing.T) {
	_, err := rows.TinyInt().ConvertString("128")
	assert.Error(t, err, "128 does not fit in a tinyint")

	_, err = rows.SmallInt().ConvertString("40000")
	assert.Error(t, err)
}

func TestConvertString_FloatingPoint(t *testing.T) {
	v, err := rows.Float().ConvertString("3e38")
	require.NoError(t, err)
	assert.InDelta(t, float32(3e38), v, 1e31)

	v, err = rows.Double().ConvertString("2e-308")
	require.NoError(t, err)
	assert.InDelta(t, 2e-308, v, 2e-301)
}

func TestConvertString_DecimalRoundsToScale(t *testing.T) {
	v, err := rows.Decimal(2, 0).ConvertString("1.5")
	require.NoError(t, err)
	assert.Equal(t, float64(2), v)

	v, err = rows.Decimal(4, 2).ConvertString("1.005")
	require.NoError(t, err)
	assert.Equal(t, 1.01, v)

	v, err = rows.Decimal(2, 0).ConvertString("-1.5")
	require.NoError(t, err)
	assert.Equal(t, float64(-2), v, "decimal rounds half away from zero")
}

func TestConvertString_BooleanAndString(t *testing.T) {
	v, err := rows.Boolean().ConvertString("true")
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = rows.String().ConvertString("string")
	require.NoError(t, err)
	assert.Equal(t, "string", v)
}

func TestTypeString(t *testing.T) {
	assert.Equal(t, "decimal(2, 0)", rows.Decimal(2, 0).String())
	assert.Equal(t, "array<int>", rows.Array(rows.Int()).String())
	assert.Equal(t,
		"row<a int, b string>",
		rows.RowOf(rows.NewField("a", rows.Int()), rows.NewField("b", rows.String())).String())
}
