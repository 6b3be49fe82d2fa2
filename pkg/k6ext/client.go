package k6ext

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/mmga-lab/casebase/pkg/catalog"
	"github.com/mmga-lab/casebase/pkg/dataset"
	"github.com/mmga-lab/casebase/pkg/milvus"
	"github.com/mmga-lab/casebase/pkg/pipeline"
)

// Client drives the case pipeline stages against one Milvus connection.
// Methods are exposed to JS in camelCase.
type Client struct {
	mi      *ModuleInstance
	backend milvus.Backend
	opts    pipeline.Options
	logger  *slog.Logger

	provisioner *pipeline.Provisioner
	indexer     *pipeline.IndexBuilder
	loader      *pipeline.Loader
	searcher    *pipeline.Searcher
	health      *pipeline.HealthProbe

	// nextID is the primary key of the next ingested record.
	nextID int64
}

func newClient(mi *ModuleInstance, backend milvus.Backend) *Client {
	opts := pipeline.DefaultOptions()
	logger := slog.Default().With("component", "k6ext")
	return &Client{
		mi:          mi,
		backend:     backend,
		opts:        opts,
		logger:      logger,
		provisioner: pipeline.NewProvisioner(backend, logger),
		indexer:     pipeline.NewIndexBuilder(backend, logger),
		loader:      pipeline.NewLoader(backend, logger),
		searcher:    pipeline.NewSearcher(backend, opts.Schema, logger),
		health:      pipeline.NewHealthProbe(backend),
	}
}

func (c *Client) ctx() context.Context {
	if c.mi == nil || c.mi.vu == nil {
		return context.Background()
	}
	return c.mi.vu.Context()
}

func (c *Client) collection() string { return c.opts.Schema.Name }

// observe emits the request, duration and error samples of one call.
func (c *Client) observe(operation string, start time.Time, err error, extra map[string]string) {
	if c.mi == nil {
		return
	}
	tags := map[string]string{
		"operation":  operation,
		"collection": c.collection(),
		"status":     "success",
	}
	for k, v := range extra {
		tags[k] = v
	}
	errValue := 0.0
	if err != nil {
		tags["status"] = "error"
		errValue = 1
	}
	c.mi.emitMetric(c.mi.metrics.Reqs, 1, tags)
	c.mi.emitMetric(c.mi.metrics.Duration, float64(time.Since(start).Milliseconds()), tags)
	c.mi.emitMetric(c.mi.metrics.Errors, errValue, tags)
}

// Provision creates the case collection and its partition unless the
// collection already exists. It returns "created" or "exists".
func (c *Client) Provision() (string, error) {
	start := time.Now()
	outcome, err := c.provisioner.EnsureProvisioned(c.ctx(), c.opts.Schema, c.opts.Partition)
	c.observe("provision", start, err, nil)
	if err != nil {
		return "", err
	}
	return outcome.String(), nil
}

// Ingest generates count records and inserts them into the partition.
// Primary keys continue from the previous Ingest on this client.
func (c *Client) Ingest(count int) (int64, error) {
	start := time.Now()
	n, err := c.ingest(count)
	c.observe("ingest", start, err, nil)
	if err != nil {
		return 0, err
	}
	if c.mi != nil {
		c.mi.emitMetric(c.mi.metrics.Records, float64(n), map[string]string{"collection": c.collection()})
	}
	return n, nil
}

func (c *Client) ingest(count int) (int64, error) {
	cfg := pipeline.GeneratorConfig(c.opts.Schema, c.opts.Tables)
	cfg.IDOffset = c.nextID
	gen, err := dataset.NewGenerator(cfg, nil, c.logger)
	if err != nil {
		return 0, err
	}
	batch, err := gen.Generate(count)
	if err != nil {
		return 0, err
	}
	n, err := c.backend.Insert(c.ctx(), c.collection(), c.opts.Partition.Name, batch)
	if err != nil {
		return 0, err
	}
	c.nextID += int64(batch.Len())
	return n, nil
}

// BuildIndex builds the configured index on the vector field. With sync it
// returns after the build finished, otherwise once the request is accepted.
func (c *Client) BuildIndex(sync bool) error {
	start := time.Now()
	job := c.indexer.BuildIndex(c.ctx(), milvus.IndexRequest{
		Collection: c.collection(),
		Field:      c.opts.Schema.VectorField().Name,
		IndexType:  c.opts.Tables.IndexType,
		MetricType: c.opts.Tables.MetricType,
		Params:     c.opts.Tables.IndexParams,
		Sync:       sync,
	})
	// With Sync the backend waits for the build before accepting.
	err := job.Wait(c.ctx())
	c.observe("build_index", start, err, map[string]string{"sync": strconv.FormatBool(sync)})
	return err
}

// Load loads the collection. With sync it returns once the collection is
// queryable.
func (c *Client) Load(sync bool) error {
	start := time.Now()
	job := c.loader.LoadCollection(c.ctx(), c.collection())
	var err error
	if sync {
		err = job.Await(c.ctx())
	} else {
		err = job.Wait(c.ctx())
	}
	c.observe("load_collection", start, err, map[string]string{"sync": strconv.FormatBool(sync)})
	return err
}

// Release releases the collection from memory.
func (c *Client) Release() error {
	start := time.Now()
	err := c.backend.ReleaseCollection(c.ctx(), c.collection())
	c.observe("release_collection", start, err, nil)
	return err
}

// Drop drops the collection and resets the primary key counter.
func (c *Client) Drop() error {
	start := time.Now()
	err := c.backend.DropCollection(c.ctx(), c.collection())
	c.observe("drop_collection", start, err, nil)
	if err == nil {
		c.nextID = 0
	}
	return err
}

// Check returns the "health , version" status line.
func (c *Client) Check() string {
	start := time.Now()
	status := c.health.CheckStatus(c.ctx())
	c.observe("check", start, nil, nil)
	return status
}

// Close closes the connection. Call it in teardown.
func (c *Client) Close() error {
	if c.mi != nil {
		c.mi.emitMetric(c.mi.metrics.Connections, 0, nil)
	}
	return c.backend.Close(c.ctx())
}

// scalarFields returns the non-vector fields of schema, primary key first.
func scalarFields(schema catalog.Schema) []string {
	out := make([]string, 0, len(schema.Fields))
	for _, f := range schema.Fields {
		if !f.IsVector() {
			out = append(out, f.Name)
		}
	}
	return out
}
