// Package milvustest provides an in-memory milvus.Backend for tests.
package milvustest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mmga-lab/casebase/pkg/catalog"
	"github.com/mmga-lab/casebase/pkg/dataset"
	"github.com/mmga-lab/casebase/pkg/milvus"
)

var (
	// ErrCollectionNotFound is returned for operations on a missing collection.
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrCollectionNotLoaded is returned by Search before the load completes.
	ErrCollectionNotLoaded = errors.New("collection not loaded")
	// ErrIndexNotFound is returned by LoadCollection before any index was requested.
	ErrIndexNotFound = errors.New("index not found")
)

type row struct {
	id        int64
	partition string
	fields    map[string]any
	vector    []float32
}

type collection struct {
	schema     catalog.Schema
	partitions map[string]bool
	rows       []row
	hasIndex   bool // an index build was accepted
	indexed    bool // the build finished
	loaded     bool
}

// Backend is a fake milvus.Backend. Exported error fields make the matching
// operation fail; Calls records every operation name in order.
type Backend struct {
	mu          sync.Mutex
	collections map[string]*collection
	calls       []string
	hold        bool
	release     chan struct{}
	pending     []func()
	awaits      map[string]int

	Health  string
	Version string

	// CreateIndexDelay is slept before CreateIndex touches any state.
	CreateIndexDelay time.Duration

	HasCollectionErr    error
	CreateCollectionErr error
	CreatePartitionErr  error
	InsertErr           error
	CreateIndexErr      error
	LoadErr             error
	SearchErr           error
	HealthErr           error
	VersionErr          error
}

var _ milvus.Backend = (*Backend)(nil)

// New returns an empty fake whose tasks complete immediately.
func New() *Backend {
	return &Backend{
		collections: make(map[string]*collection),
		awaits:      make(map[string]int),
		release:     make(chan struct{}),
		Health:      "OK",
		Version:     "v2.5.4",
	}
}

// HoldTasks makes index and load tasks stay pending until Complete is called.
func (b *Backend) HoldTasks() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.hold {
		b.hold = true
		b.release = make(chan struct{})
	}
}

// Complete finishes all pending tasks.
func (b *Backend) Complete() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.hold {
		return
	}
	b.hold = false
	for _, finish := range b.pending {
		finish()
	}
	b.pending = nil
	close(b.release)
}

// Calls returns the recorded operation names.
func (b *Backend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

// CallCount returns how many times op was called.
func (b *Backend) CallCount(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		if c == op {
			n++
		}
	}
	return n
}

// Rows returns the number of rows stored in name.
func (b *Backend) Rows(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.collections[name]; ok {
		return len(c.rows)
	}
	return 0
}

// Loaded reports whether name finished loading.
func (b *Backend) Loaded(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.collections[name]
	return ok && c.loaded
}

// Indexed reports whether name finished its index build.
func (b *Backend) Indexed(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.collections[name]
	return ok && c.indexed
}

// AwaitCount returns how many times a task of op was awaited.
func (b *Backend) AwaitCount(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.awaits[op]
}

func (b *Backend) record(op string) {
	b.calls = append(b.calls, op)
}

func (b *Backend) HasCollection(_ context.Context, name string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("HasCollection")
	if b.HasCollectionErr != nil {
		return false, b.HasCollectionErr
	}
	_, ok := b.collections[name]
	return ok, nil
}

func (b *Backend) CreateCollection(_ context.Context, schema catalog.Schema) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("CreateCollection")
	if b.CreateCollectionErr != nil {
		return b.CreateCollectionErr
	}
	if _, ok := b.collections[schema.Name]; ok {
		return fmt.Errorf("collection %s already exists", schema.Name)
	}
	b.collections[schema.Name] = &collection{
		schema:     schema,
		partitions: map[string]bool{"_default": true},
	}
	return nil
}

func (b *Backend) CreatePartition(_ context.Context, name, partition string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("CreatePartition")
	if b.CreatePartitionErr != nil {
		return b.CreatePartitionErr
	}
	c, ok := b.collections[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	if c.partitions[partition] {
		return fmt.Errorf("partition %s already exists", partition)
	}
	c.partitions[partition] = true
	return nil
}

func (b *Backend) DropCollection(_ context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("DropCollection")
	if _, ok := b.collections[name]; !ok {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	delete(b.collections, name)
	return nil
}

func (b *Backend) Insert(_ context.Context, name, partition string, batch *dataset.Batch) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("Insert")
	if b.InsertErr != nil {
		return 0, b.InsertErr
	}
	if err := batch.Validate(); err != nil {
		return 0, err
	}
	c, ok := b.collections[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	if partition == "" {
		partition = "_default"
	}
	if !c.partitions[partition] {
		return 0, fmt.Errorf("partition %s not found", partition)
	}
	for _, r := range batch.Records() {
		c.rows = append(c.rows, row{
			id:        r.CaseID,
			partition: partition,
			vector:    r.Vector,
			fields: map[string]any{
				catalog.FieldCaseID:           r.CaseID,
				catalog.FieldAction:           r.Action,
				catalog.FieldDepartureStation: r.Departure,
				catalog.FieldArrivalStation:   r.Arrival,
				catalog.FieldProfile:          r.Profile,
			},
		})
	}
	return int64(batch.Len()), nil
}

// task returns a Task for finish. Held tasks finish when Complete is called.
func (b *Backend) task(op string, finish func(*collection), c *collection) milvus.Task {
	countAwait := func() {
		b.mu.Lock()
		b.awaits[op]++
		b.mu.Unlock()
	}
	if !b.hold {
		finish(c)
		return milvus.TaskFunc(func(context.Context) error {
			countAwait()
			return nil
		})
	}
	b.pending = append(b.pending, func() { finish(c) })
	release := b.release
	return milvus.TaskFunc(func(ctx context.Context) error {
		countAwait()
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

func (b *Backend) CreateIndex(ctx context.Context, req milvus.IndexRequest) (milvus.Task, error) {
	if b.CreateIndexDelay > 0 {
		select {
		case <-time.After(b.CreateIndexDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	b.mu.Lock()
	b.record("CreateIndex")
	if b.CreateIndexErr != nil {
		b.mu.Unlock()
		return nil, b.CreateIndexErr
	}
	c, ok := b.collections[req.Collection]
	if !ok {
		b.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, req.Collection)
	}
	c.hasIndex = true
	t := b.task("CreateIndex", func(c *collection) { c.indexed = true }, c)
	b.mu.Unlock()

	if req.Sync {
		if err := t.Await(ctx); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (b *Backend) LoadCollection(_ context.Context, name string) (milvus.Task, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("LoadCollection")
	if b.LoadErr != nil {
		return nil, b.LoadErr
	}
	c, ok := b.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	if !c.hasIndex {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, name)
	}
	return b.task("LoadCollection", func(c *collection) { c.loaded = true }, c), nil
}

func (b *Backend) ReleaseCollection(_ context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("ReleaseCollection")
	c, ok := b.collections[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	c.loaded = false
	return nil
}

// Search ranks stored rows by squared L2 distance to each query vector.
func (b *Backend) Search(_ context.Context, req milvus.SearchRequest) ([]milvus.ResultSet, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("Search")
	if b.SearchErr != nil {
		return nil, b.SearchErr
	}
	c, ok := b.collections[req.Collection]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, req.Collection)
	}
	if !c.loaded {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotLoaded, req.Collection)
	}

	partitions := make(map[string]bool, len(req.Partitions))
	for _, p := range req.Partitions {
		partitions[p] = true
	}

	out := make([]milvus.ResultSet, 0, len(req.Vectors))
	for _, q := range req.Vectors {
		type hit struct {
			row   row
			score float32
		}
		hits := make([]hit, 0, len(c.rows))
		for _, r := range c.rows {
			if len(partitions) > 0 && !partitions[r.partition] {
				continue
			}
			hits = append(hits, hit{row: r, score: l2(q, r.vector)})
		}
		sort.SliceStable(hits, func(i, j int) bool { return hits[i].score < hits[j].score })
		if len(hits) > req.TopK {
			hits = hits[:req.TopK]
		}

		set := milvus.ResultSet{Fields: make(map[string][]any)}
		for _, h := range hits {
			set.IDs = append(set.IDs, h.row.id)
			set.Scores = append(set.Scores, h.score)
			for _, f := range req.OutputFields {
				if v, ok := h.row.fields[f]; ok {
					set.Fields[f] = append(set.Fields[f], v)
				}
			}
		}
		out = append(out, set)
	}
	return out, nil
}

func (b *Backend) CheckHealth(context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("CheckHealth")
	return b.Health, b.HealthErr
}

func (b *Backend) GetVersion(context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("GetVersion")
	return b.Version, b.VersionErr
}

func (b *Backend) Close(context.Context) error { return nil }

func l2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		if i >= len(b) {
			break
		}
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
