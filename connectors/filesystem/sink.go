package filesystem

import (
	"bytes"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/goccy/go-json"
	"github.com/segmentio/ksuid"

	"tributary.dev/tributary/clocks"
	"tributary.dev/tributary/connectors"
	"tributary.dev/tributary/formats"
	"tributary.dev/tributary/rows"
	"tributary.dev/tributary/storage/locations"
)

// inProgressSuffix marks part files that are still being written. Sources
// skip these files when listing a directory.
const inProgressSuffix = ".inprogress"

// rollCheckInterval is how often the sink evaluates time-based rolling.
const rollCheckInterval = time.Minute

var (
	recordsWritten = metrics.NewCounter("filesystem_sink_records_written")
	partsFinalized = metrics.NewCounter("filesystem_sink_parts_finalized")
)

// Sink writes JSON row events into rolling part files. Rows are routed to
// buckets, encoded by a bulk writer, staged with an in-progress suffix, and
// renamed into place when the part rolls.
type Sink struct {
	location locations.StorageLocation
	factory  formats.BulkWriterFactory
	assigner BucketAssigner
	policy   RollingPolicy
	clock    clocks.Clock
	prefix   string
	suffix   string

	mu      sync.Mutex
	uid     string
	counter int
	buckets map[string]*partFile
	ticker  *clocks.Ticker
}

type partFile struct {
	bucket      string
	name        string
	buffer      *bytes.Buffer
	writer      formats.BulkWriter
	stagedSize  int64
	createdAt   time.Time
	lastWriteAt time.Time
}

func NewSink(config SinkConfig) *Sink {
	assigner := config.BucketAssigner
	if assigner == nil {
		assigner = NewBasePathBucketAssigner()
	}
	policy := config.RollingPolicy
	if policy == nil {
		policy = NewOnCheckpointRollingPolicy()
	}
	clock := config.Clock
	if clock == nil {
		clock = clocks.NewSystemClock()
	}
	prefix := config.PartPrefix
	if prefix == "" {
		prefix = "part"
	}

	s := &Sink{
		location: config.location(),
		factory:  config.WriterFactory,
		assigner: assigner,
		policy:   policy,
		clock:    clock,
		prefix:   prefix,
		suffix:   config.PartSuffix,
		uid:      ksuid.New().String(),
		buckets:  make(map[string]*partFile),
	}
	s.ticker = clock.Every(rollCheckInterval, func(ec *clocks.EveryContext) {
		if err := s.RollOnTime(); err != nil {
			// Parts stay buffered, try again shortly
			ec.RetryIn(10 * time.Second)
		}
	}, "filesystem-sink-roll")
	return s
}

// Write routes one JSON-encoded row to its bucket's open part file.
func (s *Sink) Write(event []byte) error {
	var row rows.Row
	if err := json.Unmarshal(event, &row); err != nil {
		return fmt.Errorf("decoding row event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	bucket := s.assigner.Bucket(&row, now)
	part, ok := s.buckets[bucket]
	if !ok {
		var err error
		part, err = s.openPart(bucket, now)
		if err != nil {
			return err
		}
		s.buckets[bucket] = part
	}

	if err := part.writer.AddElement(&row); err != nil {
		return fmt.Errorf("writing row to part %s: %w", part.name, err)
	}
	part.lastWriteAt = now
	recordsWritten.Inc()

	// Flush so the buffer length reflects this row before the policy sees
	// the part size. The part buffer is in memory, so this is cheap.
	if err := part.writer.Flush(); err != nil {
		return fmt.Errorf("flushing part %s: %w", part.name, err)
	}
	if s.policy.ShouldRollOnEvent(s.partInfo(part)) {
		return s.roll(part)
	}
	return nil
}

// Checkpoint stages all open part files and finalizes those the rolling
// policy rolls on checkpoints.
func (s *Sink) Checkpoint() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, part := range s.buckets {
		if s.policy.ShouldRollOnCheckpoint(s.partInfo(part)) {
			if err := s.roll(part); err != nil {
				return err
			}
			continue
		}
		if err := s.stage(part); err != nil {
			return err
		}
	}
	return nil
}

// RollOnTime finalizes part files that the rolling policy considers expired.
func (s *Sink) RollOnTime() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	for _, part := range s.buckets {
		if s.policy.ShouldRollOnProcessingTime(s.partInfo(part), now) {
			if err := s.roll(part); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close finalizes every open part file.
func (s *Sink) Close() error {
	s.ticker.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, part := range s.buckets {
		if err := s.roll(part); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sink) openPart(bucket string, now time.Time) (*partFile, error) {
	name := fmt.Sprintf("%s-%s-%d%s", s.prefix, s.uid, s.counter, s.suffix)
	s.counter++

	buffer := &bytes.Buffer{}
	writer, err := s.factory.Create(buffer)
	if err != nil {
		return nil, fmt.Errorf("creating part writer: %w", err)
	}
	return &partFile{
		bucket:      bucket,
		name:        name,
		buffer:      buffer,
		writer:      writer,
		createdAt:   now,
		lastWriteAt: now,
	}, nil
}

// stage flushes a part's buffered rows to its in-progress file so the data
// survives until the part rolls.
func (s *Sink) stage(part *partFile) error {
	if err := part.writer.Flush(); err != nil {
		return fmt.Errorf("flushing part %s: %w", part.name, err)
	}
	part.stagedSize = int64(part.buffer.Len())
	if _, err := s.location.Write(s.stagedPath(part), bytes.NewReader(part.buffer.Bytes())); err != nil {
		return fmt.Errorf("staging part %s: %w", part.name, err)
	}
	return nil
}

// roll finalizes a part file: the writer finishes the encoding, the full
// content is staged, and the staged file is renamed to its final path.
func (s *Sink) roll(part *partFile) error {
	if err := part.writer.Finish(); err != nil {
		return fmt.Errorf("finishing part %s: %w", part.name, err)
	}
	if _, err := s.location.Write(s.stagedPath(part), bytes.NewReader(part.buffer.Bytes())); err != nil {
		return fmt.Errorf("staging part %s: %w", part.name, err)
	}
	if err := s.location.Rename(s.stagedPath(part), path.Join(part.bucket, part.name)); err != nil {
		return fmt.Errorf("finalizing part %s: %w", part.name, err)
	}

	delete(s.buckets, part.bucket)
	partsFinalized.Inc()
	return nil
}

func (s *Sink) stagedPath(part *partFile) string {
	return path.Join(part.bucket, part.name+inProgressSuffix)
}

func (s *Sink) partInfo(part *partFile) PartFileInfo {
	size := int64(part.buffer.Len())
	if size < part.stagedSize {
		size = part.stagedSize
	}
	return PartFileInfo{
		Size:        size,
		CreatedAt:   part.createdAt,
		LastWriteAt: part.lastWriteAt,
	}
}

var _ connectors.SinkWriter = (*Sink)(nil)
var _ connectors.CheckpointingSinkWriter = (*Sink)(nil)
