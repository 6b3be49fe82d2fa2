// Package milvus defines the vector-search backend contract used by the case
// pipeline and implements it on top of the official Milvus Go client.
//
// The package is organized into:
//   - backend.go: the Backend interface and its request/result types
//   - client.go: the Milvus-backed implementation
//   - convert.go: schema, index and column conversions
//   - search.go: search submission and result unwrapping
package milvus

import (
	"context"
	"errors"

	"github.com/mmga-lab/casebase/pkg/catalog"
	"github.com/mmga-lab/casebase/pkg/dataset"
)

var (
	// ErrUnsupportedDataType is returned for a schema field type the adapter cannot map.
	ErrUnsupportedDataType = errors.New("unsupported data type")
	// ErrUnsupportedIndex is returned for an unknown index type.
	ErrUnsupportedIndex = errors.New("unsupported index type")
	// ErrUnsupportedMetric is returned for an unknown metric type.
	ErrUnsupportedMetric = errors.New("unsupported metric type")
	// ErrInvalidParams is returned when an opaque parameter blob cannot be decoded.
	ErrInvalidParams = errors.New("invalid parameters")
)

// Task is a handle on work the backend finishes asynchronously.
type Task interface {
	// Await blocks until the backend reports completion or ctx is done.
	Await(ctx context.Context) error
}

// TaskFunc adapts a function to Task.
type TaskFunc func(ctx context.Context) error

// Await calls f(ctx).
func (f TaskFunc) Await(ctx context.Context) error { return f(ctx) }

// IndexRequest describes an index build on a vector field.
type IndexRequest struct {
	Collection string
	Field      string
	IndexType  string // FLAT, IVF_FLAT, IVF_SQ8, IVF_PQ, HNSW
	MetricType string // L2, IP, COSINE
	Params     string // opaque JSON blob such as {"nlist":1024}
	// Sync makes CreateIndex return only after the build completes.
	Sync bool
}

// SearchRequest is a nearest-neighbor query.
type SearchRequest struct {
	Collection   string
	VectorField  string
	MetricType   string
	TopK         int
	Vectors      [][]float32
	Params       string // opaque JSON blob such as {"nprobe":10}
	OutputFields []string
	Partitions   []string
	Filter       string
}

// ResultSet holds the ranked hits for one query vector.
type ResultSet struct {
	IDs    []int64
	Scores []float32
	// Fields maps each projected output field to one value per hit.
	Fields map[string][]any
}

// Len returns the number of hits.
func (r ResultSet) Len() int { return len(r.IDs) }

// Backend is the set of remote operations the pipeline relies on. All methods
// are safe for concurrent use.
type Backend interface {
	HasCollection(ctx context.Context, name string) (bool, error)
	CreateCollection(ctx context.Context, schema catalog.Schema) error
	CreatePartition(ctx context.Context, collection, partition string) error
	DropCollection(ctx context.Context, name string) error

	// Insert writes batch into partition and returns the accepted row count.
	Insert(ctx context.Context, collection, partition string, batch *dataset.Batch) (int64, error)

	// CreateIndex returns once the backend accepted the request; the task
	// completes when the index is built.
	CreateIndex(ctx context.Context, req IndexRequest) (Task, error)
	// LoadCollection returns once the backend accepted the request; the task
	// completes when the collection is queryable.
	LoadCollection(ctx context.Context, name string) (Task, error)
	ReleaseCollection(ctx context.Context, name string) error

	Search(ctx context.Context, req SearchRequest) ([]ResultSet, error)

	CheckHealth(ctx context.Context) (string, error)
	GetVersion(ctx context.Context) (string, error)

	Close(ctx context.Context) error
}
