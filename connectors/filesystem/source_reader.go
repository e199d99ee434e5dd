package filesystem

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/VictoriaMetrics/metrics"
	"github.com/goccy/go-json"

	"tributary.dev/tributary/connectors"
	"tributary.dev/tributary/formats"
	"tributary.dev/tributary/storage/locations"
)

// maxBatchSize caps the number of records returned from one ReadEvents call.
const maxBatchSize = 1_000

var (
	recordsRead = metrics.NewCounter("filesystem_source_records_read")
	filesRead   = metrics.NewCounter("filesystem_source_files_read")
)

// splitState is the per-file resume state carried in checkpoints and split
// cursors.
type splitState struct {
	SplitID     string `json:"split_id"`
	RecordsRead int    `json:"records_read"`
	Done        bool   `json:"done"`
}

// SourceReader reads assigned file splits one at a time, decoding each file
// into rows and emitting them as JSON events.
type SourceReader struct {
	format    formats.RecordFormat
	location  locations.StorageLocation
	unbounded bool

	// mu guards splits and current. SetSplits and Checkpoint are called from
	// other goroutines while ReadEvents runs.
	mu      sync.Mutex
	splits  []*splitState
	current *openSplit
}

type openSplit struct {
	state  *splitState
	reader formats.RecordReader
}

func NewSourceReader(config SourceConfig) *SourceReader {
	return &SourceReader{
		format:    config.Format,
		location:  config.location(),
		unbounded: config.Unbounded,
	}
}

// SetSplits assigns new splits to the reader.
func (s *SourceReader) SetSplits(splits []*connectors.SourceSplit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sp := range splits {
		state := &splitState{SplitID: sp.SplitID}
		if len(sp.Cursor) != 0 {
			if err := json.Unmarshal(sp.Cursor, state); err != nil {
				return fmt.Errorf("decoding split cursor for %s: %w", sp.SplitID, err)
			}
			state.SplitID = sp.SplitID
		}
		s.splits = append(s.splits, state)
	}
	return nil
}

// ReadEvents returns the next batch of records. A bounded source returns
// ErrEndOfInput once every assigned file is fully read.
func (s *SourceReader) ReadEvents() ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		next, err := s.openNextSplit()
		if err != nil {
			return nil, err
		}
		if next == nil {
			if s.unbounded {
				// More files may be assigned later
				return nil, nil
			}
			return nil, connectors.ErrEndOfInput
		}
		s.current = next
	}

	events := make([][]byte, 0, maxBatchSize)
	for len(events) < maxBatchSize {
		row, err := s.current.reader.Read()
		if err == io.EOF {
			s.finishCurrentSplit()
			break
		}
		if err != nil {
			// A file that fails to decode will fail the same way on retry
			readErr := connectors.NewTerminalError(fmt.Errorf("reading %s: %w", s.current.state.SplitID, err))
			s.finishCurrentSplit()
			return nil, readErr
		}

		data, err := json.Marshal(row)
		if err != nil {
			return nil, connectors.NewTerminalError(fmt.Errorf("encoding row: %w", err))
		}
		events = append(events, data)
		s.current.state.RecordsRead++
	}

	recordsRead.Add(len(events))
	return events, nil
}

// Checkpoint returns the reader's split progress as a JSON document.
func (s *SourceReader) Checkpoint() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(s.splits)
	if err != nil {
		panic(fmt.Sprintf("BUG marshaling splits: %v", err))
	}
	return data
}

// openNextSplit opens the first assigned split that still has records to
// read, skipping past already-read records when resuming from a cursor.
func (s *SourceReader) openNextSplit() (*openSplit, error) {
	for _, state := range s.splits {
		if state.Done {
			continue
		}

		data, err := s.location.Read(state.SplitID)
		if err != nil {
			if errors.Is(err, locations.ErrNotFound) {
				return nil, connectors.NewTerminalError(err)
			}
			return nil, connectors.NewRetryableError(err)
		}

		reader, err := s.format.Open(bytes.NewReader(data))
		if err != nil {
			return nil, connectors.NewTerminalError(fmt.Errorf("opening %s: %w", state.SplitID, err))
		}

		// Skip records that were read before the checkpoint
		for skipped := 0; skipped < state.RecordsRead; skipped++ {
			if _, err := reader.Read(); err != nil {
				if err == io.EOF {
					break
				}
				reader.Close()
				return nil, connectors.NewTerminalError(fmt.Errorf("resuming %s: %w", state.SplitID, err))
			}
		}

		filesRead.Inc()
		return &openSplit{state: state, reader: reader}, nil
	}
	return nil, nil
}

func (s *SourceReader) finishCurrentSplit() {
	s.current.reader.Close()
	s.current.state.Done = true
	s.current = nil
}

var _ connectors.SourceReader = (*SourceReader)(nil)
