// Package filesystem implements a file-based source and sink. The source
// enumerates files in a directory and reads them as record splits. The sink
// writes rows into rolling part files staged as in-progress until finalized.
package filesystem

import (
	"fmt"
	"time"

	"tributary.dev/tributary/clocks"
	"tributary.dev/tributary/connectors"
	"tributary.dev/tributary/formats"
	"tributary.dev/tributary/storage/locations"
)

type SourceConfig struct {
	// Directory is a local path, file:// URL, or s3:// URL to read from.
	Directory string

	// Format decodes files into rows.
	Format formats.RecordFormat

	// Unbounded keeps the source reading after the initial files are
	// exhausted so newly discovered files can be assigned.
	Unbounded bool

	// MonitorInterval is how often an unbounded source looks for new files.
	MonitorInterval time.Duration

	// Storage overrides the location derived from Directory, used in tests.
	Storage locations.StorageLocation
}

func (c SourceConfig) Validate() error {
	if c.Directory == "" {
		return fmt.Errorf("filesystem source requires a directory")
	}
	if err := connectors.ValidateStorageURL(c.Directory); err != nil {
		return err
	}
	if c.Format == nil {
		return fmt.Errorf("filesystem source requires a record format")
	}
	return nil
}

func (c SourceConfig) NewSourceSplitter() connectors.SourceSplitter {
	return NewSourceSplitter(c)
}

func (c SourceConfig) NewSourceReader() connectors.SourceReader {
	return NewSourceReader(c)
}

func (c SourceConfig) location() locations.StorageLocation {
	if c.Storage != nil {
		return c.Storage
	}
	loc, err := locations.New(c.Directory)
	if err != nil {
		panic(fmt.Sprintf("creating storage location for %s: %v", c.Directory, err))
	}
	return loc
}

var _ connectors.SourceConfig = SourceConfig{}

type SinkConfig struct {
	// Directory is a local path, file:// URL, or s3:// URL to write to.
	Directory string

	// WriterFactory encodes rows into part files.
	WriterFactory formats.BulkWriterFactory

	// BucketAssigner routes rows to subdirectories. Defaults to writing
	// every row into the base path.
	BucketAssigner BucketAssigner

	// RollingPolicy decides when a part file is finalized. Defaults to
	// rolling on checkpoints only.
	RollingPolicy RollingPolicy

	// PartPrefix and PartSuffix name part files as
	// <prefix>-<uid>-<counter><suffix>. The prefix defaults to "part".
	PartPrefix string
	PartSuffix string

	// Storage overrides the location derived from Directory, used in tests.
	Storage locations.StorageLocation

	// Clock drives time-based rolling. Defaults to the system clock.
	Clock clocks.Clock
}

func (c SinkConfig) Validate() error {
	if c.Directory == "" {
		return fmt.Errorf("filesystem sink requires a directory")
	}
	if err := connectors.ValidateStorageURL(c.Directory); err != nil {
		return err
	}
	if c.WriterFactory == nil {
		return fmt.Errorf("filesystem sink requires a bulk writer factory")
	}
	return nil
}

func (c SinkConfig) NewSink() connectors.SinkWriter {
	return NewSink(c)
}

func (c SinkConfig) location() locations.StorageLocation {
	if c.Storage != nil {
		return c.Storage
	}
	loc, err := locations.New(c.Directory)
	if err != nil {
		panic(fmt.Sprintf("creating storage location for %s: %v", c.Directory, err))
	}
	return loc
}

var _ connectors.SinkConfig = SinkConfig{}
