package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/mmga-lab/casebase/pkg/catalog"
	"github.com/mmga-lab/casebase/pkg/milvus"
)

// Searcher submits nearest-neighbor queries against one collection schema.
type Searcher struct {
	backend milvus.Backend
	schema  catalog.Schema
	logger  *slog.Logger
}

// NewSearcher returns a Searcher for schema. A nil logger uses slog.Default().
func NewSearcher(backend milvus.Backend, schema catalog.Schema, logger *slog.Logger) *Searcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Searcher{backend: backend, schema: schema, logger: logger}
}

// prepare fills defaults from the schema and checks the request.
func (s *Searcher) prepare(req milvus.SearchRequest) (milvus.SearchRequest, error) {
	if req.Collection == "" {
		req.Collection = s.schema.Name
	}
	vectorField := s.schema.VectorField()
	if req.VectorField == "" {
		req.VectorField = vectorField.Name
	}

	if req.TopK <= 0 {
		return req, fmt.Errorf("%w: topK must be positive, got %d", ErrInvalidQuery, req.TopK)
	}
	if len(req.Vectors) == 0 {
		return req, fmt.Errorf("%w: no query vectors", ErrInvalidQuery)
	}
	if req.Collection == s.schema.Name && req.VectorField == vectorField.Name && vectorField.Dimension > 0 {
		for i, v := range req.Vectors {
			if int64(len(v)) != vectorField.Dimension {
				return req, fmt.Errorf("%w: query vector %d has dimension %d, want %d", ErrInvalidQuery, i, len(v), vectorField.Dimension)
			}
		}
	}
	return req, nil
}

// Search submits req and returns one result set per query vector, each
// holding at most TopK hits. Backend errors, including an unloaded
// collection, are returned without retry.
func (s *Searcher) Search(ctx context.Context, req milvus.SearchRequest) ([]milvus.ResultSet, error) {
	req, err := s.prepare(req)
	if err != nil {
		return nil, err
	}

	sets, err := s.backend.Search(ctx, req)
	if err != nil {
		return nil, err
	}
	for i := range sets {
		sets[i] = truncate(sets[i], req.TopK)
	}
	s.logger.Debug("search completed", "collection", req.Collection, "queries", len(req.Vectors), "topk", req.TopK)
	return sets, nil
}

// SearchIDs returns the primary key values projected for the first query
// vector, in rank order.
func (s *Searcher) SearchIDs(ctx context.Context, req milvus.SearchRequest) ([]int64, error) {
	pk := s.schema.PrimaryKey().Name
	if !slices.Contains(req.OutputFields, pk) {
		req.OutputFields = append(append([]string(nil), req.OutputFields...), pk)
	}

	sets, err := s.Search(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(sets) == 0 {
		return []int64{}, nil
	}
	ids := projectIDs(sets[0], pk)
	s.logger.Info("search results", "ids", ids, "scores", sets[0].Scores)
	return ids, nil
}

// projectIDs reads the primary key output column, falling back to the hit
// ids when the column is absent. Values not among the hit ids are dropped.
func projectIDs(set milvus.ResultSet, pk string) []int64 {
	hits := make(map[int64]struct{}, len(set.IDs))
	for _, id := range set.IDs {
		hits[id] = struct{}{}
	}

	values, ok := set.Fields[pk]
	if !ok || len(values) != len(set.IDs) {
		return append([]int64{}, set.IDs...)
	}

	ids := make([]int64, 0, len(values))
	for _, v := range values {
		id, ok := v.(int64)
		if !ok {
			continue
		}
		if _, hit := hits[id]; hit {
			ids = append(ids, id)
		}
	}
	return ids
}

func truncate(set milvus.ResultSet, topK int) milvus.ResultSet {
	if len(set.IDs) <= topK {
		return set
	}
	set.IDs = set.IDs[:topK]
	if len(set.Scores) > topK {
		set.Scores = set.Scores[:topK]
	}
	fields := make(map[string][]any, len(set.Fields))
	for name, values := range set.Fields {
		if len(values) > topK {
			values = values[:topK]
		}
		fields[name] = values
	}
	set.Fields = fields
	return set
}
