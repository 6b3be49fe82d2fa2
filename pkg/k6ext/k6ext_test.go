package k6ext

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmga-lab/casebase/pkg/catalog"
	"github.com/mmga-lab/casebase/pkg/dataset"
	"github.com/mmga-lab/casebase/pkg/milvus/milvustest"
)

func TestModuleRegistration(t *testing.T) {
	assert.NotNil(t, New())
}

func TestResolveAddress(t *testing.T) {
	t.Setenv("MILVUS_HOST", "")
	assert.Equal(t, DefaultAddress, resolveAddress(""))
	assert.Equal(t, "milvus:19530", resolveAddress("milvus:19530"))

	t.Setenv("MILVUS_HOST", "from-env:19530")
	assert.Equal(t, "from-env:19530", resolveAddress(""))
}

func TestHealthURL(t *testing.T) {
	assert.Equal(t, "http://localhost:9091/healthz", healthURL("localhost:19530"))
	assert.Equal(t, "http://milvus:9091/healthz", healthURL("milvus"))
}

func TestClientLifecycle(t *testing.T) {
	backend := milvustest.New()
	c := newClient(&ModuleInstance{}, backend)

	outcome, err := c.Provision()
	require.NoError(t, err)
	assert.Equal(t, "created", outcome)
	outcome, err = c.Provision()
	require.NoError(t, err)
	assert.Equal(t, "exists", outcome)

	n, err := c.Ingest(5)
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)
	n, err = c.Ingest(3)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	assert.Equal(t, 8, backend.Rows(catalog.CollectionName))

	_, err = c.Search([][]float32{{0.1, 0.2, 0.3, 0.4}}, 3)
	require.ErrorIs(t, err, milvustest.ErrCollectionNotLoaded)

	require.NoError(t, c.BuildIndex(true))
	require.NoError(t, c.Load(true))
	assert.True(t, backend.Indexed(catalog.CollectionName))
	assert.True(t, backend.Loaded(catalog.CollectionName))

	results, err := c.Search([][]float32{{0.1, 0.2, 0.3, 0.4}, {0.9, 0.9, 0.9, 0.9}}, 3)
	require.NoError(t, err)
	require.Len(t, results, 6)
	seen := make(map[int64]bool)
	for i, r := range results {
		assert.Equal(t, i/3, r.Query)
		assert.GreaterOrEqual(t, r.ID, int64(0))
		assert.Less(t, r.ID, int64(8))
		assert.Equal(t, r.ID, r.Fields[catalog.FieldCaseID])
		assert.Contains(t, r.Fields, catalog.FieldDepartureStation)
		assert.NotContains(t, r.Fields, catalog.FieldCaseVector)
		if r.Query == 0 {
			seen[r.ID] = true
		}
	}
	assert.Len(t, seen, 3)

	_, err = c.SearchWithRecall([][]float32{{0.1, 0.2, 0.3, 0.4}}, 3, [][]int64{{0, 1, 2}})
	require.NoError(t, err)

	_, err = c.Search([][]float32{{0.1, 0.2}}, 3)
	assert.Error(t, err)

	assert.Equal(t, "OK , v2.5.4", c.Check())

	require.NoError(t, c.Release())
	assert.False(t, backend.Loaded(catalog.CollectionName))

	require.NoError(t, c.Drop())
	assert.Error(t, c.Drop())
	require.NoError(t, c.Close())
}

func TestIngestBeyondCombinations(t *testing.T) {
	c := newClient(&ModuleInstance{}, milvustest.New())
	_, err := c.Provision()
	require.NoError(t, err)

	_, err = c.Ingest(67)
	assert.ErrorIs(t, err, dataset.ErrNotEnoughCombinations)
}

func TestAsyncLoad(t *testing.T) {
	backend := milvustest.New()
	c := newClient(&ModuleInstance{}, backend)
	_, err := c.Provision()
	require.NoError(t, err)

	require.NoError(t, c.BuildIndex(true))

	backend.HoldTasks()
	require.NoError(t, c.Load(false))
	assert.False(t, backend.Loaded(catalog.CollectionName))
	backend.Complete()
	assert.True(t, backend.Loaded(catalog.CollectionName))
}

func TestBuildIndexAwaitsOnce(t *testing.T) {
	tests := []struct {
		sync       bool
		wantAwaits int
	}{
		{sync: true, wantAwaits: 1},
		{sync: false, wantAwaits: 0},
	}
	for _, tt := range tests {
		t.Run(strconv.FormatBool(tt.sync), func(t *testing.T) {
			backend := milvustest.New()
			c := newClient(&ModuleInstance{}, backend)
			_, err := c.Provision()
			require.NoError(t, err)

			require.NoError(t, c.BuildIndex(tt.sync))
			assert.Equal(t, tt.wantAwaits, backend.AwaitCount("CreateIndex"))
			assert.Equal(t, 1, backend.CallCount("CreateIndex"))
		})
	}
}

func TestLoadRequiresIndex(t *testing.T) {
	backend := milvustest.New()
	c := newClient(&ModuleInstance{}, backend)
	_, err := c.Provision()
	require.NoError(t, err)

	assert.ErrorIs(t, c.Load(true), milvustest.ErrIndexNotFound)
}

func TestCalculateRecall(t *testing.T) {
	tests := []struct {
		name        string
		retrieved   [][]int64
		groundTruth [][]int64
		want        float64
	}{
		{"perfect", [][]int64{{1, 2, 3}}, [][]int64{{3, 2, 1}}, 1},
		{"partial", [][]int64{{1, 2, 9}}, [][]int64{{1, 2, 3}}, 2.0 / 3.0},
		{"averaged", [][]int64{{1, 2}, {7, 8}}, [][]int64{{1, 2}, {1, 2}}, 0.5},
		{"missing results", [][]int64{{1}}, [][]int64{{1}, {2}}, 0.5},
		{"empty truth skipped", [][]int64{{1}, {5}}, [][]int64{{}, {5}}, 1},
		{"no truth", [][]int64{{1}}, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, calculateRecall(tt.retrieved, tt.groundTruth), 1e-9)
		})
	}
}
