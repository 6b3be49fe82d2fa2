// Package pipeline provisions the case collection, ingests synthetic records,
// builds its index, loads it and searches it.
//
// The stages run in a fixed order on the caller's goroutine, except index
// build and load, which are dispatched as background jobs. By default the
// orchestrator does not wait for those jobs before searching; set
// Options.AwaitReady to build, then load, then search in strict sequence.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mmga-lab/casebase/pkg/catalog"
	"github.com/mmga-lab/casebase/pkg/dataset"
	"github.com/mmga-lab/casebase/pkg/milvus"
	"github.com/mmga-lab/casebase/pkg/observability"
)

// State is the last completed pipeline stage.
type State int32

const (
	StateUninitialized State = iota
	StateProvisioned
	StateIngested
	StateIndexed
	StateLoaded
	StateReady
)

var stateNames = [...]string{"uninitialized", "provisioned", "ingested", "indexed", "loaded", "ready"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int32(s))
	}
	return stateNames[s]
}

// Stage names used in StageError.
const (
	StageProvision = "provision"
	StageIngest    = "ingest"
	StageIndex     = "build_index"
	StageLoad      = "load_collection"
	StageSearch    = "search"
)

// Options configures an Orchestrator.
type Options struct {
	Schema    catalog.Schema
	Partition catalog.Partition
	Tables    catalog.Tables
	// AwaitReady runs index build and load to completion, one after the
	// other, before searching.
	AwaitReady bool
	// IndexSync makes the index job wait for the build itself.
	IndexSync bool
}

// DefaultOptions returns options for the case collection.
func DefaultOptions() Options {
	return Options{
		Schema:    catalog.Default(),
		Partition: catalog.DefaultPartition(),
		Tables:    catalog.DefaultTables(),
	}
}

// GeneratorConfig derives the generator configuration from the schema's
// vector dimension and the lookup tables.
func GeneratorConfig(schema catalog.Schema, tables catalog.Tables) dataset.Config {
	return dataset.Config{
		Stations: tables.Stations,
		Actions:  tables.Actions,
		Profiles: tables.Profiles,
		Dim:      int(schema.VectorField().Dimension),
	}
}

// Orchestrator runs provision, ingest, build index, load and search in order.
// There is no rollback and no retry: the first failing stage stops the run.
type Orchestrator struct {
	backend     milvus.Backend
	generator   *dataset.Generator
	opts        Options
	logger      *slog.Logger
	provisioner *Provisioner
	indexer     *IndexBuilder
	loader      *Loader
	searcher    *Searcher

	state atomic.Int32

	mu       sync.Mutex
	indexJob *Job
	loadJob  *Job
}

// New wires an Orchestrator around one shared backend. A nil logger uses
// slog.Default().
func New(backend milvus.Backend, generator *dataset.Generator, opts Options, logger *slog.Logger) (*Orchestrator, error) {
	if err := opts.Schema.Validate(); err != nil {
		return nil, err
	}
	if generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		backend:     backend,
		generator:   generator,
		opts:        opts,
		logger:      logger,
		provisioner: NewProvisioner(backend, logger),
		indexer:     NewIndexBuilder(backend, logger),
		loader:      NewLoader(backend, logger),
		searcher:    NewSearcher(backend, opts.Schema, logger),
	}, nil
}

// State returns the last completed stage.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

func (o *Orchestrator) advance(s State, logger *slog.Logger) {
	o.state.Store(int32(s))
	observability.PipelineStage.Set(float64(s))
	logger.Info("pipeline state changed", "state", s.String())
}

// Searcher returns the searcher bound to the orchestrated collection.
func (o *Orchestrator) Searcher() *Searcher { return o.searcher }

// Health returns a probe on the orchestrated backend.
func (o *Orchestrator) Health() *HealthProbe { return NewHealthProbe(o.backend) }

// DemoQuery is the fixed query issued at the end of a run.
func (o *Orchestrator) DemoQuery() milvus.SearchRequest {
	return milvus.SearchRequest{
		Collection:   o.opts.Schema.Name,
		VectorField:  o.opts.Schema.VectorField().Name,
		MetricType:   o.opts.Tables.MetricType,
		TopK:         o.opts.Tables.TopK,
		Vectors:      [][]float32{o.opts.Tables.QueryVector},
		Params:       o.opts.Tables.SearchParams,
		OutputFields: []string{o.opts.Schema.PrimaryKey().Name},
	}
}

// Run executes the pipeline once and returns the ids of the first search.
func (o *Orchestrator) Run(ctx context.Context) ([]int64, error) {
	logger := o.logger.With("run_id", uuid.NewString(), "collection", o.opts.Schema.Name)
	logger.Info("pipeline started", "await_ready", o.opts.AwaitReady)

	if _, err := o.provisioner.EnsureProvisioned(ctx, o.opts.Schema, o.opts.Partition); err != nil {
		return nil, &StageError{Stage: StageProvision, Err: err}
	}
	o.advance(StateProvisioned, logger)

	if err := o.ingest(ctx, logger); err != nil {
		return nil, &StageError{Stage: StageIngest, Err: err}
	}
	o.advance(StateIngested, logger)

	indexJob := o.indexer.BuildIndex(ctx, milvus.IndexRequest{
		Collection: o.opts.Schema.Name,
		Field:      o.opts.Schema.VectorField().Name,
		IndexType:  o.opts.Tables.IndexType,
		MetricType: o.opts.Tables.MetricType,
		Params:     o.opts.Tables.IndexParams,
		Sync:       o.opts.IndexSync,
	})
	o.setJob(&o.indexJob, indexJob)
	// A collection cannot be loaded before its index exists, so with the
	// barrier the load is only dispatched once the build finished.
	if o.opts.AwaitReady {
		wait := indexJob.Await
		if o.opts.IndexSync {
			wait = indexJob.Wait
		}
		if err := wait(ctx); err != nil {
			return nil, &StageError{Stage: StageIndex, Err: err}
		}
	}
	o.advance(StateIndexed, logger)

	loadJob := o.loader.LoadCollection(ctx, o.opts.Schema.Name)
	o.setJob(&o.loadJob, loadJob)
	if o.opts.AwaitReady {
		if err := loadJob.Await(ctx); err != nil {
			return nil, &StageError{Stage: StageLoad, Err: err}
		}
	}
	o.advance(StateLoaded, logger)

	ids, err := o.searcher.SearchIDs(ctx, o.DemoQuery())
	if err != nil {
		return nil, &StageError{Stage: StageSearch, Err: err}
	}
	o.advance(StateReady, logger)
	logger.Info("pipeline finished", "ids", ids)
	return ids, nil
}

func (o *Orchestrator) ingest(ctx context.Context, logger *slog.Logger) error {
	batch, err := o.generator.Generate(o.opts.Tables.RecordCount)
	if err != nil {
		return err
	}
	n, err := o.backend.Insert(ctx, o.opts.Schema.Name, o.opts.Partition.Name, batch)
	if err != nil {
		return err
	}
	logger.Info("records inserted", "partition", o.opts.Partition.Name, "count", n)
	return nil
}

func (o *Orchestrator) setJob(slot **Job, j *Job) {
	o.mu.Lock()
	defer o.mu.Unlock()
	*slot = j
}

// Jobs returns the index and load jobs of the latest run, nil before they start.
func (o *Orchestrator) Jobs() (index, load *Job) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.indexJob, o.loadJob
}

// WaitSubmitted blocks until the index and load submissions of the latest
// run returned, without waiting for the backend to finish the work. Call it
// before closing the backend. Submission errors are joined.
func (o *Orchestrator) WaitSubmitted(ctx context.Context) error {
	indexJob, loadJob := o.Jobs()
	var errs []error
	for _, j := range []*Job{indexJob, loadJob} {
		if j == nil {
			continue
		}
		if err := j.Wait(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", j.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// AwaitReady waits until the index is built and the collection is loaded.
func (o *Orchestrator) AwaitReady(ctx context.Context) error {
	indexJob, loadJob := o.Jobs()
	if indexJob == nil || loadJob == nil {
		return ErrNotStarted
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, j := range []*Job{indexJob, loadJob} {
		g.Go(func() error {
			if err := j.Await(gctx); err != nil {
				return fmt.Errorf("%s: %w", j.Name(), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	o.logger.Info("collection ready", "collection", o.opts.Schema.Name)
	return nil
}
