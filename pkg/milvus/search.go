package milvus

import (
	"context"
	"fmt"
	"time"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	"github.com/mmga-lab/casebase/pkg/observability"
)

// Search runs a nearest-neighbor query and returns one ResultSet per query
// vector, in query order.
func (c *Client) Search(ctx context.Context, req SearchRequest) ([]ResultSet, error) {
	params, err := searchParams(req)
	if err != nil {
		return nil, err
	}

	searchVectors := make([]entity.Vector, len(req.Vectors))
	for i, v := range req.Vectors {
		searchVectors[i] = entity.FloatVector(v)
	}

	option := milvusclient.NewSearchOption(req.Collection, req.TopK, searchVectors).
		WithANNSField(req.VectorField)
	if len(req.OutputFields) > 0 {
		option = option.WithOutputFields(req.OutputFields...)
	}
	if len(req.Partitions) > 0 {
		option = option.WithPartitions(req.Partitions...)
	}
	if req.Filter != "" {
		option = option.WithFilter(req.Filter)
	}
	for k, v := range params {
		option = option.WithSearchParam(k, v)
	}

	start := time.Now()
	searchResult, err := c.client.Search(ctx, option)
	observability.ObserveBackend("search", req.Collection, start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	results := make([]ResultSet, 0, len(searchResult))
	for _, rs := range searchResult {
		set, err := unwrapResultSet(rs.ResultCount, rs.IDs, rs.Scores, rs.GetColumn, req.OutputFields)
		if err != nil {
			return nil, err
		}
		results = append(results, set)
	}
	return results, nil
}

// unwrapResultSet copies one raw result set into a ResultSet. Hits whose id
// cannot be read are skipped along with their score and field values.
func unwrapResultSet(count int, ids column.Column, scores []float32, getColumn func(string) column.Column, outputFields []string) (ResultSet, error) {
	set := ResultSet{
		IDs:    make([]int64, 0, count),
		Scores: make([]float32, 0, count),
		Fields: make(map[string][]any, len(outputFields)),
	}
	if ids == nil {
		return set, nil
	}

	columns := make(map[string]column.Column, len(outputFields))
	for _, name := range outputFields {
		if col := getColumn(name); col != nil {
			columns[name] = col
		}
	}

	for i := 0; i < count; i++ {
		idVal, err := ids.Get(i)
		if err != nil {
			continue
		}
		id, ok := idVal.(int64)
		if !ok {
			return ResultSet{}, fmt.Errorf("unexpected primary key type %T", idVal)
		}

		set.IDs = append(set.IDs, id)
		var score float32
		if i < len(scores) {
			score = scores[i]
		}
		set.Scores = append(set.Scores, score)

		for name, col := range columns {
			val, err := col.Get(i)
			if err != nil {
				val = nil
			}
			set.Fields[name] = append(set.Fields[name], val)
		}
	}
	return set, nil
}
