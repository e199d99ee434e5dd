package parquet

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/hangxie/parquet-go/v2/source"
	"github.com/hangxie/parquet-go/v2/source/buffer"
	"github.com/hangxie/parquet-go/v2/writer"

	"tributary.dev/tributary/formats"
	"tributary.dev/tributary/formats/avro"
	"tributary.dev/tributary/rows"
)

// BulkWriterFactory writes rows into Parquet part files. Rows buffer into
// an in-memory parquet file that is copied to the target on Finish, since
// the parquet footer can only be written once.
type BulkWriterFactory struct {
	rowType rows.Type
	// CompressionCodec is a parquet-go codec name like "SNAPPY". Empty
	// uses the writer default.
	CompressionCodec string
}

// NewBulkWriterFactory writes rows of the given row type.
func NewBulkWriterFactory(rowType rows.Type) *BulkWriterFactory {
	return &BulkWriterFactory{rowType: rowType}
}

// NewBulkWriterFactoryForAvro writes Avro-shaped rows, mapping the record
// schema onto a parquet schema.
func NewBulkWriterFactoryForAvro(schema *avro.Schema) (*BulkWriterFactory, error) {
	rowType, err := RowTypeFromAvro(schema)
	if err != nil {
		return nil, err
	}
	return NewBulkWriterFactory(rowType), nil
}

func (f *BulkWriterFactory) Create(w io.Writer) (formats.BulkWriter, error) {
	schema, err := schemaFromRowType(f.rowType)
	if err != nil {
		return nil, err
	}
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}

	file := buffer.NewBufferWriter()
	pw, err := writer.NewJSONWriter(string(schemaJSON), file, 1)
	if err != nil {
		return nil, fmt.Errorf("creating parquet writer: %w", err)
	}
	return &bulkWriter{target: w, file: file, pw: pw}, nil
}

var _ formats.BulkWriterFactory = (*BulkWriterFactory)(nil)

// memoryFile is the in-memory parquet target. The buffer package returns
// unexported types, so the writer holds the file through this interface.
type memoryFile interface {
	source.ParquetFileWriter
	Bytes() []byte
}

type bulkWriter struct {
	target   io.Writer
	file     memoryFile
	pw       *writer.JSONWriter
	finished bool
}

func (w *bulkWriter) AddElement(row *rows.Row) error {
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("encoding row: %w", err)
	}
	if err := w.pw.Write(string(data)); err != nil {
		return fmt.Errorf("writing parquet row: %w", err)
	}
	return nil
}

// Flush is a no-op: parquet row groups only hit the buffer on WriteStop.
func (w *bulkWriter) Flush() error { return nil }

func (w *bulkWriter) Finish() error {
	if w.finished {
		return nil
	}
	w.finished = true

	if err := w.pw.WriteStop(); err != nil {
		return fmt.Errorf("finalizing parquet file: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return err
	}
	if _, err := w.target.Write(w.file.Bytes()); err != nil {
		return fmt.Errorf("copying parquet file to target: %w", err)
	}
	return nil
}
