package filesystem

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"tributary.dev/tributary/connectors"
	"tributary.dev/tributary/storage/locations"
	"tributary.dev/tributary/util/sliceu"
)

// sourceID identifies splits created by this connector.
const sourceID = "filesystem"

// SourceSplitter lists the source directory and turns each file into one
// split. Repeated AssignSplits calls only assign files not seen before, so
// an unbounded source can poll for new files.
type SourceSplitter struct {
	location locations.StorageLocation

	// assignedSplits tracks files that were already handed to a reader.
	assignedSplits map[string]bool

	// checkpointedSplits holds resume state recovered from reader checkpoints.
	checkpointedSplits map[string]*splitState
}

func NewSourceSplitter(config SourceConfig) *SourceSplitter {
	return &SourceSplitter{
		location:           config.location(),
		assignedSplits:     make(map[string]bool),
		checkpointedSplits: make(map[string]*splitState),
	}
}

func (s *SourceSplitter) AssignSplits(ids []string) (map[string][]*connectors.SourceSplit, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("no source readers to assign splits to")
	}

	var sourceSplits []*connectors.SourceSplit
	for info, err := range s.location.List() {
		if err != nil {
			return nil, fmt.Errorf("listing source files: %w", err)
		}

		// Skip files a sink is still writing
		if strings.HasSuffix(info.URI, inProgressSuffix) {
			continue
		}
		if s.assignedSplits[info.URI] {
			continue
		}
		s.assignedSplits[info.URI] = true

		split := &connectors.SourceSplit{
			SourceID: sourceID,
			SplitID:  info.URI,
		}
		if state, ok := s.checkpointedSplits[info.URI]; ok {
			cursor, err := json.Marshal(state)
			if err != nil {
				return nil, fmt.Errorf("encoding split cursor: %w", err)
			}
			split.Cursor = cursor
		}
		sourceSplits = append(sourceSplits, split)
	}

	assignments := make(map[string][]*connectors.SourceSplit, len(ids))
	splitGroups := sliceu.Partition(sourceSplits, len(ids))
	for i, id := range ids {
		assignments[id] = splitGroups[i]
	}
	return assignments, nil
}

// LoadCheckpoints gets a list of checkpoint documents created by
// SourceReader Checkpoint() calls.
func (s *SourceSplitter) LoadCheckpoints(docs [][]byte) error {
	for _, doc := range docs {
		var states []*splitState
		if err := json.Unmarshal(doc, &states); err != nil {
			return fmt.Errorf("decoding source checkpoint: %w", err)
		}
		for _, state := range states {
			s.checkpointedSplits[state.SplitID] = state
		}
	}
	return nil
}

func (s *SourceSplitter) IsSourceSplitter() {}

var _ connectors.SourceSplitter = (*SourceSplitter)(nil)
