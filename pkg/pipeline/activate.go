package pipeline

import (
	"context"
	"log/slog"

	"github.com/mmga-lab/casebase/pkg/milvus"
)

// IndexBuilder submits index builds on the vector field.
type IndexBuilder struct {
	backend milvus.Backend
	logger  *slog.Logger
}

// NewIndexBuilder returns an IndexBuilder. A nil logger uses slog.Default().
func NewIndexBuilder(backend milvus.Backend, logger *slog.Logger) *IndexBuilder {
	if logger == nil {
		logger = slog.Default()
	}
	return &IndexBuilder{backend: backend, logger: logger}
}

// BuildIndex dispatches the build and returns at once. With req.Sync the
// job only finishes after the index is built; otherwise it finishes as soon
// as the backend accepted the request and the index may not be ready yet.
func (b *IndexBuilder) BuildIndex(ctx context.Context, req milvus.IndexRequest) *Job {
	logger := b.logger.With(
		"collection", req.Collection,
		"field", req.Field,
		"index_type", req.IndexType,
		"metric_type", req.MetricType,
		"sync", req.Sync)
	return startJob(ctx, "build_index", logger, func(ctx context.Context) (milvus.Task, error) {
		return b.backend.CreateIndex(ctx, req)
	})
}

// Loader asks the backend to bring collections into queryable state.
type Loader struct {
	backend milvus.Backend
	logger  *slog.Logger
}

// NewLoader returns a Loader. A nil logger uses slog.Default().
func NewLoader(backend milvus.Backend, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{backend: backend, logger: logger}
}

// LoadCollection dispatches the load and returns at once. The job finishing
// means the request was accepted; use Job.Await to wait for the load itself.
func (l *Loader) LoadCollection(ctx context.Context, collection string) *Job {
	logger := l.logger.With("collection", collection)
	return startJob(ctx, "load_collection", logger, func(ctx context.Context) (milvus.Task, error) {
		return l.backend.LoadCollection(ctx, collection)
	})
}
