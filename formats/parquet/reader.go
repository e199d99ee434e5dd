package parquet

import (
	"fmt"
	"io"
	"strings"

	"github.com/hangxie/parquet-go/v2/common"
	"github.com/hangxie/parquet-go/v2/marshal"
	pqt "github.com/hangxie/parquet-go/v2/parquet"
	"github.com/hangxie/parquet-go/v2/reader"
	"github.com/hangxie/parquet-go/v2/source/buffer"

	"tributary.dev/tributary/formats"
	"tributary.dev/tributary/rows"
)

const defaultBatchSize = 1000

// RowReaderFormat reads any Parquet file into rows using the file's own
// schema for field names and order.
type RowReaderFormat struct {
	// BatchSize is the number of rows fetched from the file per read page.
	BatchSize int
}

func NewRowReaderFormat() *RowReaderFormat {
	return &RowReaderFormat{BatchSize: defaultBatchSize}
}

func (f *RowReaderFormat) Open(r io.Reader) (formats.RecordReader, error) {
	pr, err := openReader(r)
	if err != nil {
		return nil, err
	}
	fieldNames, err := topLevelFieldNames(pr)
	if err != nil {
		return nil, err
	}
	batchSize := f.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &recordReader{
		pr:         pr,
		fieldNames: fieldNames,
		batchSize:  batchSize,
		remaining:  pr.GetNumRows(),
	}, nil
}

var _ formats.RecordFormat = (*RowReaderFormat)(nil)

// ColumnarFormat reads Parquet files projected onto a declared row type.
// Fields in the projection that are missing from a file read as nil.
type ColumnarFormat struct {
	rowType   rows.Type
	batchSize int
}

func NewColumnarFormat(rowType rows.Type, batchSize int) (*ColumnarFormat, error) {
	if rowType.Kind != rows.KindRow {
		return nil, fmt.Errorf("columnar projection needs a row type, got %s", rowType)
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &ColumnarFormat{rowType: rowType, batchSize: batchSize}, nil
}

func (f *ColumnarFormat) Open(r io.Reader) (formats.RecordReader, error) {
	pr, err := openReader(r)
	if err != nil {
		return nil, err
	}
	return &recordReader{
		pr:         pr,
		fieldNames: f.rowType.FieldNames(),
		projection: &f.rowType,
		batchSize:  f.batchSize,
		remaining:  pr.GetNumRows(),
	}, nil
}

var _ formats.RecordFormat = (*ColumnarFormat)(nil)

// openReader loads the file into memory; parquet needs random access to
// find the footer, which a streamed split cannot offer.
func openReader(r io.Reader) (*reader.ParquetReader, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	pr, err := reader.NewParquetReader(buffer.NewBufferReaderFromBytes(data), nil, 1)
	if err != nil {
		return nil, fmt.Errorf("opening parquet file: %w", err)
	}
	return pr, nil
}

type recordReader struct {
	pr         *reader.ParquetReader
	fieldNames []string
	projection *rows.Type // nil means use the file schema as-is
	batchSize  int
	remaining  int64
	batch      []map[string]any
	pos        int
}

func (r *recordReader) Read() (*rows.Row, error) {
	if r.pos >= len(r.batch) {
		if err := r.fill(); err != nil {
			return nil, err
		}
	}
	fields := r.batch[r.pos]
	r.pos++

	row := rows.NewRow()
	if r.projection != nil {
		for _, field := range r.projection.Fields {
			value, ok := fields[field.Name]
			if !ok {
				row.Set(field.Name, nil)
				continue
			}
			row.Set(field.Name, coerceToType(field.Type, value))
		}
	} else {
		for _, name := range r.fieldNames {
			row.Set(name, fields[name])
		}
	}
	return row, nil
}

func (r *recordReader) fill() error {
	if r.remaining <= 0 {
		return io.EOF
	}
	n := int64(r.batchSize)
	if n > r.remaining {
		n = r.remaining
	}
	raw, err := r.pr.ReadByNumber(int(n))
	if err != nil {
		return fmt.Errorf("reading parquet rows: %w", err)
	}
	if len(raw) == 0 {
		return io.EOF
	}
	r.remaining -= int64(len(raw))

	r.batch = r.batch[:0]
	r.pos = 0
	for _, v := range raw {
		friendly, err := marshal.ConvertToJSONFriendly(v, r.pr.SchemaHandler)
		if err != nil {
			return fmt.Errorf("converting parquet row: %w", err)
		}
		fields, ok := friendly.(map[string]any)
		if !ok {
			return fmt.Errorf("expected parquet row object, got %T", friendly)
		}
		r.batch = append(r.batch, fields)
	}
	return nil
}

func (r *recordReader) Close() error {
	r.pr.ReadStop()
	return nil
}

// topLevelFieldNames walks the flattened schema element list collecting the
// external names of the root's direct children in declaration order.
func topLevelFieldNames(pr *reader.ParquetReader) ([]string, error) {
	elements := pr.SchemaHandler.SchemaElements
	if len(elements) == 0 {
		return nil, fmt.Errorf("parquet file has an empty schema")
	}
	root := elements[0]

	names := make([]string, 0, root.GetNumChildren())
	pos := 1
	for range root.GetNumChildren() {
		if pos >= len(elements) {
			return nil, fmt.Errorf("malformed parquet schema")
		}
		inPath := root.Name + common.PAR_GO_PATH_DELIMITER + elements[pos].Name
		exPath, ok := pr.SchemaHandler.InPathToExPath[inPath]
		if !ok {
			return nil, fmt.Errorf("no external name for schema path %s", inPath)
		}
		segments := strings.Split(exPath, common.PAR_GO_PATH_DELIMITER)
		names = append(names, segments[len(segments)-1])
		pos += subtreeSize(elements, pos)
	}
	return names, nil
}

// subtreeSize returns the number of flattened schema elements rooted at pos.
func subtreeSize(elements []*pqt.SchemaElement, pos int) int {
	size := 1
	next := pos + 1
	for range elements[pos].GetNumChildren() {
		childSize := subtreeSize(elements, next)
		size += childSize
		next += childSize
	}
	return size
}

// coerceToType narrows the reader's generic values onto the projected type.
// Values that cannot be narrowed pass through unchanged.
func coerceToType(t rows.Type, value any) any {
	if value == nil {
		return nil
	}
	switch t.Kind {
	case rows.KindTinyInt:
		if v, ok := toInt64(value); ok {
			return int8(v)
		}
	case rows.KindSmallInt:
		if v, ok := toInt64(value); ok {
			return int16(v)
		}
	case rows.KindInt:
		if v, ok := toInt64(value); ok {
			return int32(v)
		}
	case rows.KindBigInt:
		if v, ok := toInt64(value); ok {
			return v
		}
	case rows.KindFloat:
		if v, ok := toFloat64(value); ok {
			return float32(v)
		}
	case rows.KindDouble, rows.KindDecimal:
		if v, ok := toFloat64(value); ok {
			return v
		}
	case rows.KindString:
		if v, ok := value.(string); ok {
			return v
		}
	case rows.KindBoolean:
		if v, ok := value.(bool); ok {
			return v
		}
	case rows.KindArray:
		if items, ok := value.([]any); ok {
			for i := range items {
				items[i] = coerceToType(*t.Element, items[i])
			}
			return items
		}
	case rows.KindMap:
		if entries, ok := value.(map[string]any); ok {
			for k := range entries {
				entries[k] = coerceToType(*t.Element, entries[k])
			}
			return entries
		}
	case rows.KindRow:
		if fields, ok := value.(map[string]any); ok {
			out := make(map[string]any, len(t.Fields))
			for _, field := range t.Fields {
				out[field.Name] = coerceToType(field.Type, fields[field.Name])
			}
			return out
		}
	}
	return value
}

func toInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	default:
		return 0, false
	}
}

func toFloat64(value any) (float64, bool) {
	switch v := value.(type) {
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
