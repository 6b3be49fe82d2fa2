package k6ext

import (
	"fmt"
	"strconv"
	"time"

	"github.com/mmga-lab/casebase/pkg/milvus"
)

// SearchResult is one hit returned to JS.
type SearchResult struct {
	Query  int            `json:"query"`            // Index of the query vector
	ID     int64          `json:"id"`               // Primary key of the hit
	Score  float32        `json:"score"`            // Distance or similarity, per metric
	Fields map[string]any `json:"fields,omitempty"` // Scalar fields of the hit
}

// Search returns up to topK hits per query vector, query by query in rank
// order, with all scalar fields attached.
func (c *Client) Search(vectors [][]float32, topK int) ([]SearchResult, error) {
	results, _, err := c.search(vectors, topK)
	return results, err
}

// SearchWithRecall searches and records recall@topK against groundTruth,
// one id list per query vector.
func (c *Client) SearchWithRecall(vectors [][]float32, topK int, groundTruth [][]int64) ([]SearchResult, error) {
	results, sets, err := c.search(vectors, topK)
	if err != nil {
		return nil, err
	}
	if len(groundTruth) > 0 && c.mi != nil {
		c.mi.emitMetric(c.mi.metrics.Recall, calculateRecall(hitIDs(sets), groundTruth), map[string]string{
			"operation":  "search_with_recall",
			"collection": c.collection(),
			"topk":       strconv.Itoa(topK),
		})
	}
	return results, nil
}

func (c *Client) search(vectors [][]float32, topK int) ([]SearchResult, []milvus.ResultSet, error) {
	start := time.Now()
	req := milvus.SearchRequest{
		Collection:   c.collection(),
		VectorField:  c.opts.Schema.VectorField().Name,
		MetricType:   c.opts.Tables.MetricType,
		TopK:         topK,
		Vectors:      vectors,
		Params:       c.opts.Tables.SearchParams,
		OutputFields: scalarFields(c.opts.Schema),
	}
	sets, err := c.searcher.Search(c.ctx(), req)
	c.observe("search", start, err, map[string]string{"topk": strconv.Itoa(topK)})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to search: %w", err)
	}
	return flatten(sets), sets, nil
}

func flatten(sets []milvus.ResultSet) []SearchResult {
	var results []SearchResult
	for q, set := range sets {
		for i, id := range set.IDs {
			r := SearchResult{Query: q, ID: id, Fields: make(map[string]any, len(set.Fields))}
			if i < len(set.Scores) {
				r.Score = set.Scores[i]
			}
			for name, values := range set.Fields {
				if i < len(values) {
					r.Fields[name] = values[i]
				}
			}
			results = append(results, r)
		}
	}
	return results
}

func hitIDs(sets []milvus.ResultSet) [][]int64 {
	out := make([][]int64, len(sets))
	for i, set := range sets {
		out[i] = set.IDs
	}
	return out
}

// calculateRecall returns the mean recall over queries with a non-empty
// ground truth: |retrieved ∩ truth| / |truth|.
func calculateRecall(retrieved, groundTruth [][]int64) float64 {
	total := 0.0
	valid := 0
	for q, truth := range groundTruth {
		if len(truth) == 0 {
			continue
		}
		truthSet := make(map[int64]struct{}, len(truth))
		for _, id := range truth {
			truthSet[id] = struct{}{}
		}
		hits := 0
		if q < len(retrieved) {
			for _, id := range retrieved[q] {
				if _, ok := truthSet[id]; ok {
					hits++
				}
			}
		}
		total += float64(hits) / float64(len(truthSet))
		valid++
	}
	if valid == 0 {
		return 0
	}
	return total / float64(valid)
}
