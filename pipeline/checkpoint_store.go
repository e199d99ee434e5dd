package pipeline

import (
	"bytes"
	"fmt"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"tributary.dev/tributary/storage/locations"
)

const (
	checkpointsPath = "checkpoints"
	checkpointExt   = ".checkpoint"

	// retainedCheckpoints is how many completed checkpoints stay in working
	// storage before older ones are removed.
	retainedCheckpoints = 3
)

// CheckpointDocument is the JSON document persisted for one checkpoint. It
// carries each source reader's checkpoint so a restarted job can resume
// reading where the previous run left off.
type CheckpointDocument struct {
	ID        uint64    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Sources   [][]byte  `json:"sources"`
}

// CheckpointStore persists checkpoint documents in a working storage location
// and prunes old checkpoints as new ones complete.
type CheckpointStore struct {
	location locations.StorageLocation
	lastID   uint64
}

func NewCheckpointStore(location locations.StorageLocation) *CheckpointStore {
	return &CheckpointStore{location: location}
}

// Save writes a new checkpoint document containing each source reader's
// checkpoint document.
func (s *CheckpointStore) Save(sources [][]byte) error {
	s.lastID++
	doc := &CheckpointDocument{
		ID:        s.lastID,
		CreatedAt: time.Now().UTC(),
		Sources:   sources,
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding checkpoint %d: %w", doc.ID, err)
	}

	if _, err := s.location.Write(s.pathForID(doc.ID), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("writing checkpoint %d: %w", doc.ID, err)
	}
	return s.prune()
}

// LoadLatest returns the most recent checkpoint document or nil when no
// checkpoint has completed yet.
func (s *CheckpointStore) LoadLatest() (*CheckpointDocument, error) {
	uris, err := s.listCheckpoints()
	if err != nil {
		return nil, err
	}
	if len(uris) == 0 {
		return nil, nil
	}

	latest := uris[len(uris)-1]
	data, err := s.location.Read(latest)
	if err != nil {
		return nil, fmt.Errorf("reading checkpoint %s: %w", latest, err)
	}

	var doc CheckpointDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding checkpoint %s: %w", latest, err)
	}
	s.lastID = max(s.lastID, doc.ID)
	return &doc, nil
}

func (s *CheckpointStore) pathForID(id uint64) string {
	return path.Join(checkpointsPath, fmt.Sprintf("%08d%s", id, checkpointExt))
}

// listCheckpoints returns checkpoint URIs sorted oldest first. IDs are
// zero-padded in file names so lexical order matches numeric order.
func (s *CheckpointStore) listCheckpoints() ([]string, error) {
	var uris []string
	for info, err := range s.location.List() {
		if err != nil {
			return nil, fmt.Errorf("listing checkpoints: %w", err)
		}
		if strings.HasSuffix(info.URI, checkpointExt) {
			uris = append(uris, info.URI)
		}
	}
	slices.Sort(uris)
	return uris, nil
}

func (s *CheckpointStore) prune() error {
	uris, err := s.listCheckpoints()
	if err != nil {
		return err
	}
	if len(uris) <= retainedCheckpoints {
		return nil
	}
	return s.location.Remove(uris[:len(uris)-retainedCheckpoints]...)
}
