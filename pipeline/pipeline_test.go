package pipeline_test

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tributary.dev/tributary/clocks"
	"tributary.dev/tributary/config"
	"tributary.dev/tributary/connectors/connectorstest"
	"tributary.dev/tributary/connectors/filesystem"
	"tributary.dev/tributary/formats/csv"
	"tributary.dev/tributary/pipeline"
	"tributary.dev/tributary/rows"
	"tributary.dev/tributary/storage/locations"
)

func numberAndWordSchema(t *testing.T) *csv.Schema {
	t.Helper()
	schema, err := csv.NewSchemaBuilder().
		AddNumberColumn("num", rows.Int()).
		AddStringColumn("word").
		Build()
	require.NoError(t, err)
	return schema
}

func writeSourceFile(t *testing.T, loc locations.StorageLocation, name, content string) {
	t.Helper()
	_, err := loc.Write(name, bytes.NewReader([]byte(content)))
	require.NoError(t, err)
}

func sourceConfig(t *testing.T, loc locations.StorageLocation) filesystem.SourceConfig {
	t.Helper()
	return filesystem.SourceConfig{
		Directory: "/events",
		Format:    csv.NewReaderFormat(numberAndWordSchema(t)),
		Storage:   loc,
	}
}

// words extracts the "word" field from each written event.
func words(t *testing.T, events [][]byte) []string {
	t.Helper()
	result := make([]string, len(events))
	for i, event := range events {
		var row rows.Row
		require.NoError(t, json.Unmarshal(event, &row))
		result[i] = row.Get("word").(string)
	}
	return result
}

// safeSink is a recording sink that can be inspected while the pipeline is
// still running.
type safeSink struct {
	mu     sync.Mutex
	values [][]byte
}

func (s *safeSink) Write(v []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = append(s.values, v)
	return nil
}

func (s *safeSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.values)
}

func TestPipeline_BoundedJobWritesAllRows(t *testing.T) {
	loc := locations.NewLocalDirectory(t.TempDir())
	writeSourceFile(t, loc, "one.csv", "1,a\n2,b\n")
	writeSourceFile(t, loc, "two.csv", "3,c\n")
	writeSourceFile(t, loc, "three.csv", "4,d\n")

	sink := &connectorstest.RecordingSink{}
	p := pipeline.New(&pipeline.NewPipelineParams{
		Source:      sourceConfig(t, loc),
		Sink:        sink,
		WorkerCount: 2,
		Clock:       clocks.NewFrozenClock(),
	})

	require.NoError(t, p.Run(t.Context()))
	assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, words(t, sink.Values))
}

func TestPipeline_RestartResumesFromCheckpoint(t *testing.T) {
	loc := locations.NewLocalDirectory(t.TempDir())
	writeSourceFile(t, loc, "one.csv", "1,a\n2,b\n")
	working := locations.NewLocalDirectory(t.TempDir())

	run := func() *connectorstest.RecordingSink {
		sink := &connectorstest.RecordingSink{}
		p := pipeline.New(&pipeline.NewPipelineParams{
			Source:         sourceConfig(t, loc),
			Sink:           sink,
			WorkingStorage: working,
			Clock:          clocks.NewFrozenClock(),
		})
		require.NoError(t, p.Run(t.Context()))
		return sink
	}

	first := run()
	assert.ElementsMatch(t, []string{"a", "b"}, words(t, first.Values))

	// A restarted job loads the final checkpoint and skips the finished file.
	second := run()
	assert.Empty(t, second.Values)
}

func TestPipeline_FileToFileConversion(t *testing.T) {
	source := locations.NewLocalDirectory(t.TempDir())
	writeSourceFile(t, source, "one.csv", "1,a\n2,b\n")
	writeSourceFile(t, source, "two.csv", "3,c\n")
	out := locations.NewLocalDirectory(t.TempDir())

	sinkConfig := filesystem.SinkConfig{
		Directory:     "/out",
		WriterFactory: csv.NewBulkWriterFactory(numberAndWordSchema(t)),
		PartSuffix:    ".csv",
		Storage:       out,
		Clock:         clocks.NewFrozenClock(),
	}
	p := pipeline.New(&pipeline.NewPipelineParams{
		Source: sourceConfig(t, source),
		Sink:   sinkConfig.NewSink(),
		Clock:  clocks.NewFrozenClock(),
	})
	require.NoError(t, p.Run(t.Context()))

	var content strings.Builder
	for info, err := range out.List() {
		require.NoError(t, err)
		data, err := out.Read(info.URI)
		require.NoError(t, err)
		content.Write(data)
	}
	assert.Equal(t, "1,a\n2,b\n3,c\n", content.String())
}

func TestPipeline_MonitorAssignsNewFiles(t *testing.T) {
	loc := locations.NewLocalDirectory(t.TempDir())
	writeSourceFile(t, loc, "one.csv", "1,a\n2,b\n")

	clock := clocks.NewFrozenClock()
	sourceConfig := sourceConfig(t, loc)
	sourceConfig.Unbounded = true
	sourceConfig.MonitorInterval = time.Minute

	sink := &safeSink{}
	p := pipeline.New(&pipeline.NewPipelineParams{
		Source:          sourceConfig,
		Sink:            sink,
		MonitorInterval: sourceConfig.MonitorInterval,
		Clock:           clock,
	})

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return sink.Len() == 2 }, 5*time.Second, 10*time.Millisecond)

	writeSourceFile(t, loc, "two.csv", "3,c\n")
	clock.TickEvery("pipeline-monitor")
	require.Eventually(t, func() bool { return sink.Len() == 3 }, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestFromConfig(t *testing.T) {
	cfg := &config.Config{
		WorkerCount: 2,
		Source: filesystem.SourceConfig{
			Directory: t.TempDir(),
			Format:    csv.NewReaderFormat(numberAndWordSchema(t)),
		},
		Sink: filesystem.SinkConfig{
			Directory:     t.TempDir(),
			WriterFactory: csv.NewBulkWriterFactory(numberAndWordSchema(t)),
		},
	}

	p, err := pipeline.FromConfig(cfg)
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestFromConfig_RequiresSink(t *testing.T) {
	cfg := &config.Config{
		WorkerCount: 1,
		Source: filesystem.SourceConfig{
			Directory: t.TempDir(),
			Format:    csv.NewReaderFormat(numberAndWordSchema(t)),
		},
	}

	_, err := pipeline.FromConfig(cfg)
	require.ErrorContains(t, err, "sink is required")
}

func TestCheckpointStore_RetainsRecentCheckpoints(t *testing.T) {
	loc := locations.NewLocalDirectory(t.TempDir())
	store := pipeline.NewCheckpointStore(loc)

	for range 5 {
		require.NoError(t, store.Save([][]byte{[]byte(`[]`)}))
	}

	var count int
	for _, err := range loc.List() {
		require.NoError(t, err)
		count++
	}
	assert.Equal(t, 3, count)

	doc, err := store.LoadLatest()
	require.NoError(t, err)
	assert.Equal(t, uint64(5), doc.ID)
}
