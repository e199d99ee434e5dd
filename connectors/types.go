// Package connectors defines the interfaces that sources and sinks
// implement and shared plumbing for reading from sources.
package connectors

// SourceSplit is a unit of parallel reading from a source, such as one file
// in a directory. The cursor carries connector-specific resume state.
type SourceSplit struct {
	SourceID string `json:"source_id"`
	SplitID  string `json:"split_id"`
	Cursor   []byte `json:"cursor,omitempty"`
}

type SourceSplitter interface {
	IsSourceSplitter()

	// AssignSplits takes a list of IDs representing SourceReaders and returns a mapping
	// of SourceReader ID to a list of Splits.
	AssignSplits(ids []string) (map[string][]*SourceSplit, error)

	// LoadCheckpoints gets a list of all checkpoint documents that were created
	// by SourceReaders Checkpoint() method calls.
	LoadCheckpoints([][]byte) error
}

type SourceReader interface {
	ReadEvents() ([][]byte, error)
	SetSplits(splits []*SourceSplit) error
	Checkpoint() []byte
}

type ReadResult struct {
	Events [][]byte
	Err    error
}

type SinkWriter interface {
	Write([]byte) error
}

// CheckpointingSinkWriter is a SinkWriter that participates in checkpoints,
// publishing staged data when a checkpoint completes.
type CheckpointingSinkWriter interface {
	SinkWriter
	Checkpoint() error
}

type SourceConfig interface {
	Validate() error
	NewSourceSplitter() SourceSplitter
	NewSourceReader() SourceReader
}

type SinkConfig interface {
	Validate() error
	NewSink() SinkWriter
}
