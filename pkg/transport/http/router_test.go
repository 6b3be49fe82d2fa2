package http

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmga-lab/casebase/pkg/milvus"
	"github.com/mmga-lab/casebase/pkg/observability"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeStatus string

func (f fakeStatus) CheckStatus(context.Context) string { return string(f) }

type fakeSearcher struct {
	ids  []int64
	err  error
	last milvus.SearchRequest
}

func (f *fakeSearcher) SearchIDs(_ context.Context, req milvus.SearchRequest) ([]int64, error) {
	f.last = req
	return f.ids, f.err
}

func demoQuery() milvus.SearchRequest {
	return milvus.SearchRequest{
		Collection: "case",
		TopK:       3,
		Vectors:    [][]float32{{0.1, 0.2, 0.3, 0.4}},
		Params:     `{"nprobe":10}`,
	}
}

func serve(t *testing.T, router http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(rec, req)
	return rec
}

func TestCheck(t *testing.T) {
	router := NewRouter(fakeStatus("OK , v2.5.4"), &fakeSearcher{}, RouterConfig{Query: demoQuery()})

	rec := serve(t, router, "/api/check")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK , v2.5.4", rec.Body.String())
}

func TestSearch(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		searcher *fakeSearcher
		wantCode int
		wantIDs  []int64
		wantTopK int
	}{
		{
			name:     "demo query",
			path:     "/api/search",
			searcher: &fakeSearcher{ids: []int64{4, 1, 7}},
			wantCode: http.StatusOK,
			wantIDs:  []int64{4, 1, 7},
			wantTopK: 3,
		},
		{
			name:     "topk override",
			path:     "/api/search?topk=1",
			searcher: &fakeSearcher{ids: []int64{4}},
			wantCode: http.StatusOK,
			wantIDs:  []int64{4},
			wantTopK: 1,
		},
		{
			name:     "empty result is an empty array",
			path:     "/api/search",
			searcher: &fakeSearcher{ids: []int64{}},
			wantCode: http.StatusOK,
			wantIDs:  []int64{},
			wantTopK: 3,
		},
		{
			name:     "bad topk",
			path:     "/api/search?topk=zero",
			searcher: &fakeSearcher{},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "backend error",
			path:     "/api/search",
			searcher: &fakeSearcher{err: errors.New("collection not loaded")},
			wantCode: http.StatusInternalServerError,
			wantTopK: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := NewRouter(fakeStatus(""), tt.searcher, RouterConfig{Query: demoQuery()})
			rec := serve(t, router, tt.path)
			require.Equal(t, tt.wantCode, rec.Code)

			if tt.wantIDs != nil {
				var ids []int64
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ids))
				assert.Equal(t, tt.wantIDs, ids)
			}
			if tt.wantTopK != 0 {
				assert.Equal(t, tt.wantTopK, tt.searcher.last.TopK)
				assert.Equal(t, "case", tt.searcher.last.Collection)
			}
			if tt.wantCode == http.StatusInternalServerError {
				assert.Contains(t, rec.Body.String(), "collection not loaded")
			}
		})
	}
}

func TestHealthzAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, observability.Register(reg))

	router := NewRouter(fakeStatus("OK , v"), &fakeSearcher{}, RouterConfig{
		Query:       demoQuery(),
		MetricsPath: "/metrics",
		Gatherer:    reg,
	})

	rec := serve(t, router, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok\n", rec.Body.String())

	serve(t, router, "/api/check")

	rec = serve(t, router, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `casebase_http_requests_total{method="GET",route="/api/check",status="2xx"}`)
}

func TestMetricsDisabled(t *testing.T) {
	router := NewRouter(fakeStatus(""), &fakeSearcher{}, RouterConfig{Query: demoQuery()})
	rec := serve(t, router, "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerShutsDownOnCancel(t *testing.T) {
	router := NewRouter(fakeStatus("OK , v"), &fakeSearcher{}, RouterConfig{Query: demoQuery()})
	cfg := DefaultServerConfig()
	cfg.ShutdownTimeout = time.Second
	srv := NewServer(router, cfg)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/api/check")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}
