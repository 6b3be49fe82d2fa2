// Package http exposes the status and demo search endpoints over gin.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mmga-lab/casebase/pkg/milvus"
	"github.com/mmga-lab/casebase/pkg/observability"
)

// StatusChecker reports backend health and version as one line.
type StatusChecker interface {
	CheckStatus(ctx context.Context) string
}

// IDSearcher returns the primary keys of the nearest records.
type IDSearcher interface {
	SearchIDs(ctx context.Context, req milvus.SearchRequest) ([]int64, error)
}

// RouterConfig holds the router settings.
type RouterConfig struct {
	// Query is the search issued by GET /api/search.
	Query milvus.SearchRequest
	// MetricsPath mounts the Prometheus handler; empty disables it.
	MetricsPath string
	Gatherer    prometheus.Gatherer
	Logger      *slog.Logger
}

type handlers struct {
	status   StatusChecker
	searcher IDSearcher
	query    milvus.SearchRequest
	logger   *slog.Logger
}

// NewRouter returns a gin engine serving:
//
//	GET /api/check   status line as text
//	GET /api/search  JSON array of ids for the configured query
//	GET /healthz     process liveness
func NewRouter(status StatusChecker, searcher IDSearcher, cfg RouterConfig) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	h := &handlers{status: status, searcher: searcher, query: cfg.Query, logger: cfg.Logger}

	router := gin.New()
	router.Use(gin.Recovery(), metricsMiddleware())

	api := router.Group("/api")
	{
		api.GET("/check", h.check)
		api.GET("/search", h.search)
	}
	router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok\n")
	})

	if cfg.MetricsPath != "" {
		gatherer := cfg.Gatherer
		if gatherer == nil {
			gatherer = prometheus.DefaultGatherer
		}
		router.GET(cfg.MetricsPath, gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	return router
}

func (h *handlers) check(c *gin.Context) {
	c.String(http.StatusOK, h.status.CheckStatus(c.Request.Context()))
}

// search runs the configured query. An optional topk parameter overrides
// the query's TopK.
func (h *handlers) search(c *gin.Context) {
	req := h.query
	if v := c.Query("topk"); v != "" {
		k, err := strconv.Atoi(v)
		if err != nil || k <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "topk must be a positive integer"})
			return
		}
		req.TopK = k
	}

	ids, err := h.searcher.SearchIDs(c.Request.Context(), req)
	if err != nil {
		h.logger.Error("search failed", "collection", req.Collection, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, ids)
}

// metricsMiddleware records request count and duration per route template.
func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status()/100) + "xx"
		observability.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, status).Inc()
		observability.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
