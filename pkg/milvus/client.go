package milvus

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/milvus-io/milvus/client/v2/milvusclient"

	"github.com/mmga-lab/casebase/pkg/catalog"
	"github.com/mmga-lab/casebase/pkg/dataset"
	"github.com/mmga-lab/casebase/pkg/observability"
)

// Config holds connection settings for a Client.
type Config struct {
	// Address is the gRPC endpoint, host:port.
	Address string
	// HealthURL is the liveness endpoint, e.g. http://localhost:9091/healthz.
	HealthURL string
	// DialTimeout bounds the initial connection. Zero means no bound.
	DialTimeout time.Duration
	Logger      *slog.Logger
}

// Client implements Backend on a Milvus connection. It is created once and
// shared; nothing reconfigures it after New returns.
type Client struct {
	client    *milvusclient.Client
	http      *http.Client
	healthURL string
	logger    *slog.Logger
}

var _ Backend = (*Client)(nil)

// New connects to Milvus at cfg.Address.
func New(ctx context.Context, cfg Config) (*Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dialCtx := ctx
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}

	start := time.Now()
	c, err := milvusclient.New(dialCtx, &milvusclient.ClientConfig{
		Address: cfg.Address,
	})
	observability.ObserveBackend("connect", "", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}
	logger.Info("connected to milvus", "address", cfg.Address)

	return &Client{
		client:    c,
		http:      &http.Client{},
		healthURL: cfg.HealthURL,
		logger:    logger,
	}, nil
}

// Close closes the connection and releases associated resources.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Close(ctx)
}

func (c *Client) HasCollection(ctx context.Context, name string) (bool, error) {
	start := time.Now()
	ok, err := c.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(name))
	observability.ObserveBackend("has_collection", name, start, err)
	return ok, err
}

// CreateCollection creates a collection from a catalog schema.
func (c *Client) CreateCollection(ctx context.Context, schema catalog.Schema) error {
	entitySchema, err := toEntitySchema(schema)
	if err != nil {
		return err
	}

	option := milvusclient.NewCreateCollectionOption(schema.Name, entitySchema)
	if schema.ShardNum > 0 {
		option = option.WithShardNum(schema.ShardNum)
	}

	start := time.Now()
	err = c.client.CreateCollection(ctx, option)
	observability.ObserveBackend("create_collection", schema.Name, start, err)
	return err
}

func (c *Client) CreatePartition(ctx context.Context, collection, partition string) error {
	start := time.Now()
	err := c.client.CreatePartition(ctx, milvusclient.NewCreatePartitionOption(collection, partition))
	observability.ObserveBackend("create_partition", collection, start, err)
	return err
}

func (c *Client) DropCollection(ctx context.Context, name string) error {
	start := time.Now()
	err := c.client.DropCollection(ctx, milvusclient.NewDropCollectionOption(name))
	observability.ObserveBackend("drop_collection", name, start, err)
	return err
}

// Insert writes the batch column-wise into partition.
func (c *Client) Insert(ctx context.Context, collection, partition string, batch *dataset.Batch) (int64, error) {
	if err := batch.Validate(); err != nil {
		return 0, err
	}
	if batch.Len() == 0 {
		return 0, nil
	}

	option := milvusclient.NewColumnBasedInsertOption(collection, batchColumns(batch)...)
	if partition != "" {
		option = option.WithPartition(partition)
	}

	start := time.Now()
	result, err := c.client.Insert(ctx, option)
	observability.ObserveBackend("insert", collection, start, err)
	if err != nil {
		return 0, fmt.Errorf("failed to insert: %w", err)
	}
	observability.RecordsInsertedTotal.WithLabelValues(collection).Add(float64(result.InsertCount))

	if result.InsertCount != int64(batch.Len()) {
		return result.InsertCount, fmt.Errorf("insert count mismatch: expected %d, got %d", batch.Len(), result.InsertCount)
	}
	return result.InsertCount, nil
}

// CreateIndex submits an index build. With req.Sync it waits for the build.
func (c *Client) CreateIndex(ctx context.Context, req IndexRequest) (Task, error) {
	idx, err := toIndex(req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	task, err := c.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(req.Collection, req.Field, idx))
	observability.ObserveBackend("create_index", req.Collection, start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	t := TaskFunc(func(ctx context.Context) error {
		if err := task.Await(ctx); err != nil {
			return fmt.Errorf("failed to wait for index creation: %w", err)
		}
		return nil
	})
	if req.Sync {
		if err := t.Await(ctx); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// LoadCollection requests the collection be loaded for querying.
func (c *Client) LoadCollection(ctx context.Context, name string) (Task, error) {
	start := time.Now()
	task, err := c.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(name))
	observability.ObserveBackend("load_collection", name, start, err)
	if err != nil {
		return nil, err
	}
	return TaskFunc(func(ctx context.Context) error {
		return task.Await(ctx)
	}), nil
}

func (c *Client) ReleaseCollection(ctx context.Context, name string) error {
	start := time.Now()
	err := c.client.ReleaseCollection(ctx, milvusclient.NewReleaseCollectionOption(name))
	observability.ObserveBackend("release_collection", name, start, err)
	return err
}

// GetVersion returns the server version string.
func (c *Client) GetVersion(ctx context.Context) (string, error) {
	start := time.Now()
	v, err := c.client.GetServerVersion(ctx, milvusclient.NewGetServerVersionOption())
	observability.ObserveBackend("get_version", "", start, err)
	return v, err
}

// CheckHealth queries the liveness endpoint and returns its raw body.
func (c *Client) CheckHealth(ctx context.Context) (string, error) {
	if c.healthURL == "" {
		return "", fmt.Errorf("health endpoint not configured")
	}

	start := time.Now()
	body, err := c.getHealth(ctx)
	observability.ObserveBackend("check_health", "", start, err)
	return body, err
}

func (c *Client) getHealth(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.healthURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", err
	}
	body := strings.TrimSpace(string(raw))
	if resp.StatusCode != http.StatusOK {
		return body, fmt.Errorf("health check returned %s", resp.Status)
	}
	return body, nil
}
