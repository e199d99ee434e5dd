package csv

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"tributary.dev/tributary/formats"
	"tributary.dev/tributary/rows"
)

// BulkWriterFactory encodes rows as delimited text in schema column order.
type BulkWriterFactory struct {
	schema *Schema
	// WriteHeader writes the column names as the first line of each part file.
	WriteHeader bool
}

func NewBulkWriterFactory(schema *Schema) *BulkWriterFactory {
	return &BulkWriterFactory{schema: schema, WriteHeader: schema.useHeader}
}

func (f *BulkWriterFactory) Create(w io.Writer) (formats.BulkWriter, error) {
	bw := &bulkWriter{schema: f.schema, out: bufio.NewWriter(w)}
	if f.WriteHeader {
		if err := bw.writeCells(f.schema.ColumnNames()); err != nil {
			return nil, err
		}
	}
	return bw, nil
}

var _ formats.BulkWriterFactory = (*BulkWriterFactory)(nil)

type bulkWriter struct {
	schema *Schema
	out    *bufio.Writer
}

func (w *bulkWriter) AddElement(row *rows.Row) error {
	cells := make([]string, len(w.schema.columns))
	for i, col := range w.schema.columns {
		cell, err := formatCell(col, row.Get(col.Name))
		if err != nil {
			return fmt.Errorf("column %s: %w", col.Name, err)
		}
		cells[i] = cell
	}
	return w.writeCells(cells)
}

func (w *bulkWriter) writeCells(cells []string) error {
	for i, cell := range cells {
		if i > 0 {
			if _, err := w.out.WriteRune(w.schema.columnSeparator); err != nil {
				return err
			}
		}
		if _, err := w.out.WriteString(quoteCell(cell, w.schema)); err != nil {
			return err
		}
	}
	return w.out.WriteByte('\n')
}

func (w *bulkWriter) Flush() error {
	return w.out.Flush()
}

func (w *bulkWriter) Finish() error {
	return w.out.Flush()
}

func formatCell(col Column, value any) (string, error) {
	if col.Type.Kind == rows.KindArray {
		elements, ok := value.([]any)
		if !ok {
			return "", fmt.Errorf("expected array value, got %T", value)
		}
		parts := make([]string, len(elements))
		for i, el := range elements {
			s, err := formatScalar(el)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return strings.Join(parts, col.ElementSeparator), nil
	}
	return formatScalar(value)
}

func formatScalar(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case int8:
		return strconv.FormatInt(int64(v), 10), nil
	case int16:
		return strconv.FormatInt(int64(v), 10), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case int:
		return strconv.Itoa(v), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	default:
		return "", fmt.Errorf("cannot format %T as a csv cell", value)
	}
}

// quoteCell wraps a cell in quotes when it contains the column separator,
// the quote char or a newline. Contained quote chars are escaped with the
// escape char when one is set, doubled otherwise.
func quoteCell(cell string, schema *Schema) string {
	needsQuoting := strings.ContainsRune(cell, schema.columnSeparator) ||
		strings.ContainsRune(cell, schema.quoteChar) ||
		strings.ContainsAny(cell, "\r\n")
	if !needsQuoting {
		return cell
	}

	quote := string(schema.quoteChar)
	var replacement string
	if schema.escapeChar != 0 {
		replacement = string(schema.escapeChar) + quote
	} else {
		replacement = quote + quote
	}
	return quote + strings.ReplaceAll(cell, quote, replacement) + quote
}
