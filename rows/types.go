// Package rows defines the typed record model shared by the file formats.
package rows

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type Kind int

const (
	KindTinyInt Kind = iota
	KindSmallInt
	KindInt
	KindBigInt
	KindFloat
	KindDouble
	KindDecimal
	KindBoolean
	KindString
	KindArray
	KindMap
	KindRow
)

func (k Kind) String() string {
	switch k {
	case KindTinyInt:
		return "tinyint"
	case KindSmallInt:
		return "smallint"
	case KindInt:
		return "int"
	case KindBigInt:
		return "bigint"
	case KindFloat:
		return "float"
	case KindDouble:
		return "double"
	case KindDecimal:
		return "decimal"
	case KindBoolean:
		return "boolean"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	case KindRow:
		return "row"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Type describes the shape of a single value. Precision and Scale only apply
// to decimals, Element to arrays and Fields to rows.
type Type struct {
	Kind      Kind
	Precision int
	Scale     int
	Element   *Type
	Fields    []Field
}

type Field struct {
	Name string
	Type Type
}

func TinyInt() Type  { return Type{Kind: KindTinyInt} }
func SmallInt() Type { return Type{Kind: KindSmallInt} }
func Int() Type      { return Type{Kind: KindInt} }
func BigInt() Type   { return Type{Kind: KindBigInt} }
func Float() Type    { return Type{Kind: KindFloat} }
func Double() Type   { return Type{Kind: KindDouble} }
func Boolean() Type  { return Type{Kind: KindBoolean} }
func String() Type   { return Type{Kind: KindString} }

func Decimal(precision, scale int) Type {
	return Type{Kind: KindDecimal, Precision: precision, Scale: scale}
}

func Array(element Type) Type {
	return Type{Kind: KindArray, Element: &element}
}

// Map is a string-keyed map with values of the element type.
func Map(value Type) Type {
	return Type{Kind: KindMap, Element: &value}
}

func RowOf(fields ...Field) Type {
	return Type{Kind: KindRow, Fields: fields}
}

func NewField(name string, t Type) Field {
	return Field{Name: name, Type: t}
}

// FieldNames returns the names of a row type's fields in declaration order.
func (t Type) FieldNames() []string {
	names := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		names[i] = f.Name
	}
	return names
}

func (t Type) String() string {
	switch t.Kind {
	case KindDecimal:
		return fmt.Sprintf("decimal(%d, %d)", t.Precision, t.Scale)
	case KindArray:
		return fmt.Sprintf("array<%s>", t.Element)
	case KindMap:
		return fmt.Sprintf("map<string, %s>", t.Element)
	case KindRow:
		fields := make([]string, len(t.Fields))
		for i, f := range t.Fields {
			fields[i] = f.Name + " " + f.Type.String()
		}
		return "row<" + strings.Join(fields, ", ") + ">"
	default:
		return t.Kind.String()
	}
}

// ConvertString parses raw text into the Go value for this type. This is the
// conversion used for CSV cells.
func (t Type) ConvertString(raw string) (any, error) {
	switch t.Kind {
	case KindTinyInt:
		v, err := strconv.ParseInt(raw, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("parsing %q as tinyint: %w", raw, err)
		}
		return int8(v), nil
	case KindSmallInt:
		v, err := strconv.ParseInt(raw, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("parsing %q as smallint: %w", raw, err)
		}
		return int16(v), nil
	case KindInt:
		v, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("parsing %q as int: %w", raw, err)
		}
		return int32(v), nil
	case KindBigInt:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing %q as bigint: %w", raw, err)
		}
		return v, nil
	case KindFloat:
		v, err := strconv.ParseFloat(raw, 32)
		if err != nil {
			return nil, fmt.Errorf("parsing %q as float: %w", raw, err)
		}
		return float32(v), nil
	case KindDouble:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing %q as double: %w", raw, err)
		}
		return v, nil
	case KindDecimal:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing %q as decimal: %w", raw, err)
		}
		return roundToScale(v, t.Scale), nil
	case KindBoolean:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("parsing %q as boolean: %w", raw, err)
		}
		return v, nil
	case KindString:
		return raw, nil
	default:
		return nil, fmt.Errorf("cannot convert text to %s", t)
	}
}

// roundToScale rounds half away from zero at the given number of fractional
// digits, matching SQL decimal semantics.
func roundToScale(v float64, scale int) float64 {
	shift := math.Pow10(scale)
	return math.Round(v*shift) / shift
}
