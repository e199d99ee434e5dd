package filesystem_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tributary.dev/tributary/connectors"
	"tributary.dev/tributary/connectors/connectorstest"
	"tributary.dev/tributary/connectors/filesystem"
	"tributary.dev/tributary/formats/csv"
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

// readUntilEOI drains a reader, returning every decoded row.
func readUntilEOI(t *testing.T, reader connectors.SourceReader) []*rows.Row {
	t.Helper()
	var result []*rows.Row
	for {
		events, err := reader.ReadEvents()
		for _, event := range events {
			var row rows.Row
			require.NoError(t, json.Unmarshal(event, &row))
			result = append(result, &row)
		}
		if errors.Is(err, connectors.ErrEndOfInput) {
			return result
		}
		require.NoError(t, err)
	}
}

func TestSourceReader_ReadsAllFiles(t *testing.T) {
	loc := locations.NewLocalDirectory(t.TempDir())
	writeSourceFile(t, loc, "one.csv", "1,a\n2,b\n")
	writeSourceFile(t, loc, "two.csv", "3,c\n")

	config := sourceConfig(t, loc)
	assignments, err := connectorstest.SplitAssignments(config, []string{"reader-1"})
	require.NoError(t, err)
	require.Len(t, assignments["reader-1"], 2)

	reader := config.NewSourceReader()
	require.NoError(t, reader.SetSplits(assignments["reader-1"]))

	result := readUntilEOI(t, reader)
	require.Len(t, result, 3)
	assert.Equal(t, int64(1), rowValue[int64](t, result[0], "num"))
	assert.Equal(t, "a", rowValue[string](t, result[0], "word"))
	assert.Equal(t, "c", rowValue[string](t, result[2], "word"))
}

func TestSourceSplitter_DistributesSplitsAcrossReaders(t *testing.T) {
	loc := locations.NewLocalDirectory(t.TempDir())
	writeSourceFile(t, loc, "a.csv", "1,a\n")
	writeSourceFile(t, loc, "b.csv", "2,b\n")
	writeSourceFile(t, loc, "c.csv", "3,c\n")

	assignments, err := connectorstest.SplitAssignments(sourceConfig(t, loc), []string{"r1", "r2"})
	require.NoError(t, err)
	assert.Len(t, assignments["r1"], 2)
	assert.Len(t, assignments["r2"], 1)
}

func TestSourceSplitter_SkipsInProgressFiles(t *testing.T) {
	loc := locations.NewLocalDirectory(t.TempDir())
	writeSourceFile(t, loc, "done.csv", "1,a\n")
	writeSourceFile(t, loc, "part-x-0.inprogress", "2,b\n")

	assignments, err := connectorstest.SplitAssignments(sourceConfig(t, loc), []string{"r1"})
	require.NoError(t, err)
	require.Len(t, assignments["r1"], 1)
	assert.Contains(t, assignments["r1"][0].SplitID, "done.csv")
}

func TestSourceSplitter_OnlyAssignsNewFiles(t *testing.T) {
	loc := locations.NewLocalDirectory(t.TempDir())
	writeSourceFile(t, loc, "first.csv", "1,a\n")

	config := sourceConfig(t, loc)
	splitter := config.NewSourceSplitter()

	assignments, err := splitter.AssignSplits([]string{"r1"})
	require.NoError(t, err)
	require.Len(t, assignments["r1"], 1)

	// A second listing with no new files assigns nothing
	assignments, err = splitter.AssignSplits([]string{"r1"})
	require.NoError(t, err)
	assert.Empty(t, assignments["r1"])

	// A new file results in one new split
	writeSourceFile(t, loc, "second.csv", "2,b\n")
	assignments, err = splitter.AssignSplits([]string{"r1"})
	require.NoError(t, err)
	require.Len(t, assignments["r1"], 1)
	assert.Contains(t, assignments["r1"][0].SplitID, "second.csv")
}

func TestSourceReader_CheckpointAndResume(t *testing.T) {
	loc := locations.NewLocalDirectory(t.TempDir())
	writeSourceFile(t, loc, "events.csv", "1,a\n2,b\n3,c\n")

	config := sourceConfig(t, loc)
	assignments, err := connectorstest.SplitAssignments(config, []string{"r1"})
	require.NoError(t, err)

	// Read everything then checkpoint
	reader := config.NewSourceReader()
	require.NoError(t, reader.SetSplits(assignments["r1"]))
	events, err := reader.ReadEvents()
	require.NoError(t, err)
	require.Len(t, events, 3)
	checkpoint := reader.Checkpoint()

	// A fresh splitter restores the checkpoint and hands out splits with
	// cursors marking the file as done.
	splitter := config.NewSourceSplitter()
	require.NoError(t, splitter.LoadCheckpoints([][]byte{checkpoint}))
	assignments, err = splitter.AssignSplits([]string{"r1"})
	require.NoError(t, err)
	require.Len(t, assignments["r1"], 1)

	resumed := config.NewSourceReader()
	require.NoError(t, resumed.SetSplits(assignments["r1"]))
	result := readUntilEOI(t, resumed)
	assert.Empty(t, result, "a fully read file should not replay records")
}

func TestSourceReader_ResumesMidFile(t *testing.T) {
	loc := locations.NewLocalDirectory(t.TempDir())
	writeSourceFile(t, loc, "events.csv", "1,a\n2,b\n3,c\n")

	uri, err := loc.URI("events.csv")
	require.NoError(t, err)

	config := sourceConfig(t, loc)
	reader := config.NewSourceReader()

	// Simulate resuming a split with two records already read
	cursor, err := json.Marshal(map[string]any{"split_id": uri, "records_read": 2})
	require.NoError(t, err)
	require.NoError(t, reader.SetSplits([]*connectors.SourceSplit{{
		SourceID: "filesystem",
		SplitID:  uri,
		Cursor:   cursor,
	}}))

	result := readUntilEOI(t, reader)
	require.Len(t, result, 1)
	assert.Equal(t, "c", rowValue[string](t, result[0], "word"))
}

func TestSourceReader_UnboundedWaitsForMoreFiles(t *testing.T) {
	loc := locations.NewLocalDirectory(t.TempDir())
	config := sourceConfig(t, loc)
	config.Unbounded = true

	reader := config.NewSourceReader()
	events, err := reader.ReadEvents()
	assert.NoError(t, err, "an unbounded source with no splits keeps waiting")
	assert.Empty(t, events)
}

func TestSourceReader_MissingFileIsTerminal(t *testing.T) {
	loc := locations.NewLocalDirectory(t.TempDir())
	config := sourceConfig(t, loc)

	reader := config.NewSourceReader()
	require.NoError(t, reader.SetSplits([]*connectors.SourceSplit{{
		SourceID: "filesystem",
		SplitID:  "/nowhere/gone.csv",
	}}))

	_, err := reader.ReadEvents()
	require.Error(t, err)
	assert.False(t, connectors.IsRetryable(err))
}

func TestSourceConfig_Validate(t *testing.T) {
	err := filesystem.SourceConfig{}.Validate()
	assert.ErrorContains(t, err, "directory")

	err = filesystem.SourceConfig{Directory: "/events"}.Validate()
	assert.ErrorContains(t, err, "format")

	err = filesystem.SourceConfig{Directory: "ftp://host/events"}.Validate()
	assert.ErrorContains(t, err, "scheme")
}

func rowValue[T any](t *testing.T, row *rows.Row, name string) T {
	t.Helper()
	value, ok := row.Get(name).(T)
	require.True(t, ok, "field %s has unexpected type %T", name, row.Get(name))
	return value
}
