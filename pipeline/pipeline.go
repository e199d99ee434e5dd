// Package pipeline runs a job: it assigns source splits to readers, moves
// events from the readers into the sink, and persists checkpoints to working
// storage so a restarted job resumes where it left off.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"tributary.dev/tributary/clocks"
	"tributary.dev/tributary/config"
	"tributary.dev/tributary/connectors"
	"tributary.dev/tributary/connectors/filesystem"
	"tributary.dev/tributary/storage/locations"
	"tributary.dev/tributary/telemetry"
)

const (
	// defaultCheckpointInterval is used when a job has working storage but no
	// configured checkpoint cadence.
	defaultCheckpointInterval = 30 * time.Second

	// defaultMonitorInterval is how often an unbounded source looks for new
	// splits when the job config doesn't say.
	defaultMonitorInterval = 10 * time.Second

	// idlePollInterval is how long a reader waits after an unbounded source
	// returns no events.
	idlePollInterval = 100 * time.Millisecond
)

type Pipeline struct {
	source             connectors.SourceConfig
	sink               connectors.SinkWriter
	workerCount        int
	store              *CheckpointStore
	checkpointInterval time.Duration
	monitorInterval    time.Duration
	clock              clocks.Clock
	log                *slog.Logger

	// sinkMu serializes writes from reader goroutines into the sink.
	sinkMu sync.Mutex

	readerIDs []string
	readers   map[string]connectors.SourceReader
}

type NewPipelineParams struct {
	Source connectors.SourceConfig
	Sink   connectors.SinkWriter

	// WorkerCount is the number of source readers to run. Defaults to 1.
	WorkerCount int

	// WorkingStorage enables checkpointing when set.
	WorkingStorage locations.StorageLocation

	// CheckpointInterval is how often checkpoints are taken when working
	// storage is configured.
	CheckpointInterval time.Duration

	// MonitorInterval re-runs split assignment on a timer for sources that
	// discover new input over time. Zero disables monitoring.
	MonitorInterval time.Duration

	Clock clocks.Clock
}

func New(params *NewPipelineParams) *Pipeline {
	clock := params.Clock
	if clock == nil {
		clock = clocks.NewSystemClock()
	}
	checkpointInterval := params.CheckpointInterval
	if checkpointInterval == 0 {
		checkpointInterval = defaultCheckpointInterval
	}
	var store *CheckpointStore
	if params.WorkingStorage != nil {
		store = NewCheckpointStore(params.WorkingStorage)
	}
	return &Pipeline{
		source:             params.Source,
		sink:               params.Sink,
		workerCount:        max(params.WorkerCount, 1),
		store:              store,
		checkpointInterval: checkpointInterval,
		monitorInterval:    params.MonitorInterval,
		clock:              clock,
		log:                slog.With("instanceID", "pipeline"),
	}
}

// FromConfig builds a pipeline from a job config.
func FromConfig(cfg *config.Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Sink == nil {
		return nil, fmt.Errorf("a sink is required to run a job")
	}

	params := &NewPipelineParams{
		Source:      cfg.Source,
		Sink:        cfg.Sink.NewSink(),
		WorkerCount: cfg.WorkerCount,
	}
	if fsSource, ok := cfg.Source.(filesystem.SourceConfig); ok && fsSource.Unbounded {
		params.MonitorInterval = fsSource.MonitorInterval
		if params.MonitorInterval == 0 {
			params.MonitorInterval = defaultMonitorInterval
		}
	}
	if cfg.WorkingStorageLocation != "" {
		storage, err := locations.New(cfg.WorkingStorageLocation)
		if err != nil {
			return nil, fmt.Errorf("working storage: %w", err)
		}
		params.WorkingStorage = storage
	}
	return New(params), nil
}

// Run executes the job until the source reaches end of input or the context
// is canceled. A bounded job takes a final checkpoint and closes the sink
// before returning.
func (p *Pipeline) Run(ctx context.Context) error {
	if p.source == nil {
		return fmt.Errorf("a source is required to run a job")
	}
	if p.sink == nil {
		return fmt.Errorf("a sink is required to run a job")
	}

	splitter := p.source.NewSourceSplitter()

	p.readerIDs = make([]string, p.workerCount)
	p.readers = make(map[string]connectors.SourceReader, p.workerCount)
	for i := range p.workerCount {
		id := fmt.Sprintf("reader-%d", i)
		p.readerIDs[i] = id
		p.readers[id] = p.source.NewSourceReader()
	}

	if p.store != nil {
		doc, err := p.store.LoadLatest()
		if err != nil {
			return err
		}
		if doc != nil {
			if err := splitter.LoadCheckpoints(doc.Sources); err != nil {
				return fmt.Errorf("loading checkpoint %d: %w", doc.ID, err)
			}
			p.log.Info("resuming from checkpoint", "id", doc.ID)
		}
	}

	if err := p.assignSplits(splitter); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, id := range p.readerIDs {
		g.Go(func() error {
			return p.consume(ctx, id, p.readers[id])
		})
	}

	var tickers []*clocks.Ticker
	if p.monitorInterval > 0 {
		tickers = append(tickers, p.clock.Every(p.monitorInterval, func(ec *clocks.EveryContext) {
			if err := p.assignSplits(splitter); err != nil {
				p.log.Error("assigning new splits", "err", err)
				ec.RetryIn(idlePollInterval)
			}
		}, "pipeline-monitor"))
	}
	if p.store != nil {
		tickers = append(tickers, p.clock.Every(p.checkpointInterval, func(ec *clocks.EveryContext) {
			if err := p.checkpoint(); err != nil {
				p.log.Error("taking checkpoint", "err", err)
				ec.RetryIn(idlePollInterval)
			}
		}, "pipeline-checkpoint"))
	}

	err := g.Wait()
	for _, ticker := range tickers {
		ticker.Stop()
	}
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	if err == nil && p.store != nil {
		err = p.checkpoint()
	}
	if closer, ok := p.sink.(io.Closer); ok {
		err = errors.Join(err, closer.Close())
	}
	return err
}

// consume moves events from one source reader into the sink until the reader
// reaches end of input or the context is canceled.
func (p *Pipeline) consume(ctx context.Context, id string, reader connectors.SourceReader) error {
	events := connectors.NewEventChannel(ctx, reader)
	for result := range events {
		if errors.Is(result.Err, connectors.ErrEndOfInput) {
			p.log.Info("source reached end of input", "reader", id)
			return nil
		}
		if result.Err != nil {
			if !connectors.IsRetryable(result.Err) {
				return fmt.Errorf("reader %s: %w", id, result.Err)
			}
			// The event channel backs off before the next read
			p.log.Error("retrying source read", "reader", id, "err", result.Err)
			continue
		}
		if len(result.Events) == 0 {
			// An idle unbounded source; wait before polling again
			if err := p.wait(ctx); err != nil {
				return err
			}
			continue
		}

		p.sinkMu.Lock()
		for _, event := range result.Events {
			if err := p.sink.Write(event); err != nil {
				p.sinkMu.Unlock()
				return fmt.Errorf("writing to sink: %w", err)
			}
		}
		p.sinkMu.Unlock()
	}
	return ctx.Err()
}

func (p *Pipeline) wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(idlePollInterval):
		return nil
	}
}

// assignSplits asks the splitter for new splits and hands them to the
// readers they were assigned to.
func (p *Pipeline) assignSplits(splitter connectors.SourceSplitter) error {
	assignments, err := splitter.AssignSplits(p.readerIDs)
	if err != nil {
		return fmt.Errorf("assigning splits: %w", err)
	}
	for id, splits := range assignments {
		if len(splits) == 0 {
			continue
		}
		if err := p.readers[id].SetSplits(splits); err != nil {
			return fmt.Errorf("setting splits on %s: %w", id, err)
		}
	}
	return nil
}

// checkpoint collects every reader's checkpoint document, flushes the sink,
// and persists the documents to working storage.
func (p *Pipeline) checkpoint() error {
	start := time.Now()
	docs := make([][]byte, 0, len(p.readerIDs))
	for _, id := range p.readerIDs {
		docs = append(docs, p.readers[id].Checkpoint())
	}

	if sink, ok := p.sink.(connectors.CheckpointingSinkWriter); ok {
		if err := sink.Checkpoint(); err != nil {
			return fmt.Errorf("sink checkpoint: %w", err)
		}
	}
	if err := p.store.Save(docs); err != nil {
		return err
	}
	telemetry.ObserveCheckpoint(time.Since(start))
	return nil
}
