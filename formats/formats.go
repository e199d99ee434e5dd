// Package formats defines how file connectors decode and encode records.
//
// A RecordFormat reads a file one record at a time which lets the source
// resume a split mid-file by record offset. A BulkWriterFactory produces
// writers that encode whole part files and can only be finalized, never
// resumed, so sinks roll them on checkpoints.
package formats

import (
	"io"

	"tributary.dev/tributary/rows"
)

type RecordFormat interface {
	// Open returns a reader over one file's content. Readers return io.EOF
	// after the last record.
	Open(r io.Reader) (RecordReader, error)
}

type RecordReader interface {
	Read() (*rows.Row, error)
	Close() error
}

type BulkWriterFactory interface {
	// Create starts a new part file writing to w.
	Create(w io.Writer) (BulkWriter, error)
}

type BulkWriter interface {
	AddElement(row *rows.Row) error
	// Flush writes buffered records through to the underlying writer.
	Flush() error
	// Finish flushes and writes any trailer. The writer is unusable after.
	Finish() error
}
