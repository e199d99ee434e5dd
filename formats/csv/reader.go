package csv

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"tributary.dev/tributary/formats"
	"tributary.dev/tributary/rows"
)

// ReaderFormat decodes delimited text into rows following a Schema.
type ReaderFormat struct {
	schema *Schema
}

func NewReaderFormat(schema *Schema) *ReaderFormat {
	return &ReaderFormat{schema: schema}
}

func (f *ReaderFormat) Open(r io.Reader) (formats.RecordReader, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &recordReader{schema: f.schema, scanner: scanner, expectHeader: f.schema.useHeader}, nil
}

var _ formats.RecordFormat = (*ReaderFormat)(nil)

const maxLineSize = 4 * 1024 * 1024

type recordReader struct {
	schema       *Schema
	scanner      *bufio.Scanner
	expectHeader bool
	line         int
}

func (r *recordReader) Read() (*rows.Row, error) {
	for {
		if !r.scanner.Scan() {
			if err := r.scanner.Err(); err != nil {
				return nil, err
			}
			return nil, io.EOF
		}
		r.line++
		line := r.scanner.Text()

		if r.expectHeader {
			r.expectHeader = false
			if r.schema.strictHeaders {
				if err := r.checkHeader(line); err != nil {
					return nil, err
				}
			}
			continue
		}
		if r.schema.allowComments && strings.HasPrefix(strings.TrimLeft(line, " \t"), "#") {
			continue
		}
		if line == "" {
			continue
		}

		cells, err := splitLine(line, r.schema)
		// A record whose quoted cell contains a newline spans physical
		// lines; keep consuming until the quote closes.
		for errors.Is(err, errUnterminatedQuote) {
			if !r.scanner.Scan() {
				if scanErr := r.scanner.Err(); scanErr != nil {
					return nil, scanErr
				}
				break
			}
			r.line++
			line += "\n" + r.scanner.Text()
			cells, err = splitLine(line, r.schema)
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", r.line, err)
		}
		if len(cells) != len(r.schema.columns) {
			return nil, fmt.Errorf("line %d: got %d columns, schema has %d", r.line, len(cells), len(r.schema.columns))
		}

		row := rows.NewRow()
		for i, col := range r.schema.columns {
			value, err := convertCell(col, cells[i])
			if err != nil {
				return nil, fmt.Errorf("line %d column %s: %w", r.line, col.Name, err)
			}
			row.Set(col.Name, value)
		}
		return row, nil
	}
}

func (r *recordReader) Close() error { return nil }

func (r *recordReader) checkHeader(line string) error {
	cells, err := splitLine(line, r.schema)
	if err != nil {
		return fmt.Errorf("header: %w", err)
	}
	names := r.schema.ColumnNames()
	if len(cells) != len(names) {
		return fmt.Errorf("header has %d columns, schema has %d", len(cells), len(names))
	}
	for i, name := range names {
		if cells[i] != name {
			return fmt.Errorf("header column %d is %q, schema expects %q", i, cells[i], name)
		}
	}
	return nil
}

func convertCell(col Column, cell string) (any, error) {
	if col.Type.Kind == rows.KindArray {
		if cell == "" {
			return []any{}, nil
		}
		parts := strings.Split(cell, col.ElementSeparator)
		elements := make([]any, len(parts))
		for i, part := range parts {
			v, err := col.Type.Element.ConvertString(part)
			if err != nil {
				return nil, err
			}
			elements[i] = v
		}
		return elements, nil
	}
	return col.Type.ConvertString(cell)
}

// errUnterminatedQuote reports a line that ends inside a quoted cell. The
// reader treats it as a record continuation when more lines remain.
var errUnterminatedQuote = errors.New("unterminated quote")

// splitLine splits one line into cells honoring the schema's quote char,
// escape char and column separator. An escape char makes the next rune
// literal whether quoted or not.
func splitLine(line string, schema *Schema) ([]string, error) {
	var (
		cells    []string
		cell     strings.Builder
		inQuotes bool
		escaped  bool
	)
	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case escaped:
			cell.WriteRune(r)
			escaped = false
		case schema.escapeChar != 0 && r == schema.escapeChar:
			escaped = true
		case r == schema.quoteChar:
			// A doubled quote inside a quoted cell is a literal quote.
			if inQuotes && i+1 < len(runes) && runes[i+1] == schema.quoteChar {
				cell.WriteRune(r)
				i++
				continue
			}
			inQuotes = !inQuotes
		case r == schema.columnSeparator && !inQuotes:
			cells = append(cells, cell.String())
			cell.Reset()
		default:
			cell.WriteRune(r)
		}
	}
	if escaped {
		return nil, fmt.Errorf("line ends with dangling escape char")
	}
	if inQuotes {
		return nil, errUnterminatedQuote
	}
	cells = append(cells, cell.String())
	return cells, nil
}
