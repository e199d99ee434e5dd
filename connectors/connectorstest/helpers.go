// Package connectorstest has helpers shared by connector tests.
package connectorstest

import (
	"tributary.dev/tributary/connectors"
)

// SplitAssignments builds the source's splitter and returns its split
// assignments for the given reader IDs.
func SplitAssignments(config connectors.SourceConfig, readerIDs []string) (map[string][]*connectors.SourceSplit, error) {
	return config.NewSourceSplitter().AssignSplits(readerIDs)
}

// RecordingSink collects written values in memory.
type RecordingSink struct {
	Values [][]byte
}

func (r *RecordingSink) Write(v []byte) error {
	r.Values = append(r.Values, v)
	return nil
}

var _ connectors.SinkWriter = (*RecordingSink)(nil)
