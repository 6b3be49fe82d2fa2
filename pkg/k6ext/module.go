// Package k6ext exposes the case pipeline to k6 scripts.
//
// A script obtains a client with casebase.client(address) and drives the
// same stages the casebase command runs: provision, ingest, buildIndex, load
// and search. Every call is recorded in the casebase_* k6 metrics.
package k6ext

import (
	"fmt"
	"net"
	"os"
	"time"

	"go.k6.io/k6/js/common"
	"go.k6.io/k6/js/modules"
	"go.k6.io/k6/metrics"

	"github.com/mmga-lab/casebase/pkg/milvus"
)

// DefaultAddress is used when client() gets no address and MILVUS_HOST is unset.
const DefaultAddress = "localhost:19530"

// healthPort is the Milvus liveness port.
const healthPort = "9091"

// RootModule is instantiated once per test run and creates one
// ModuleInstance per VU.
type RootModule struct{}

// ModuleInstance is the per-VU module state.
type ModuleInstance struct {
	vu      modules.VU
	metrics struct {
		Reqs        *metrics.Metric
		Duration    *metrics.Metric
		Records     *metrics.Metric
		Errors      *metrics.Metric
		Connections *metrics.Metric
		Recall      *metrics.Metric
	}
}

var (
	_ modules.Module   = (*RootModule)(nil)
	_ modules.Instance = (*ModuleInstance)(nil)
)

// New returns a new RootModule.
func New() *RootModule {
	return &RootModule{}
}

// NewModuleInstance registers the casebase metrics in the init context.
func (r *RootModule) NewModuleInstance(vu modules.VU) modules.Instance {
	mi := &ModuleInstance{vu: vu}

	if initEnv := vu.InitEnv(); initEnv != nil {
		registry := initEnv.Registry
		mi.metrics.Reqs = registry.MustNewMetric("casebase_reqs", metrics.Counter)
		mi.metrics.Duration = registry.MustNewMetric("casebase_req_duration", metrics.Trend, metrics.Time)
		mi.metrics.Records = registry.MustNewMetric("casebase_records", metrics.Counter)
		mi.metrics.Errors = registry.MustNewMetric("casebase_errors", metrics.Rate)
		mi.metrics.Connections = registry.MustNewMetric("casebase_connections", metrics.Gauge)
		mi.metrics.Recall = registry.MustNewMetric("casebase_recall", metrics.Trend)
	}
	return mi
}

// Exports returns the JS module exports.
func (mi *ModuleInstance) Exports() modules.Exports {
	return modules.Exports{Default: mi}
}

// Client connects to Milvus at address. An empty address falls back to
// MILVUS_HOST, then DefaultAddress.
func (mi *ModuleInstance) Client(address string) *Client {
	state := mi.vu.State()
	if state == nil {
		common.Throw(mi.vu.Runtime(), common.NewInitContextError("casebase.client() can only be called in the VU context"))
	}

	address = resolveAddress(address)
	backend, err := milvus.New(mi.vu.Context(), milvus.Config{
		Address:   address,
		HealthURL: healthURL(address),
	})
	if err != nil {
		mi.emitMetric(mi.metrics.Errors, 1, map[string]string{
			"operation": "connect",
			"address":   address,
		})
		common.Throw(mi.vu.Runtime(), fmt.Errorf("failed to create milvus client: %w", err))
	}

	mi.emitMetric(mi.metrics.Connections, 1, map[string]string{"address": address})
	return newClient(mi, backend)
}

func resolveAddress(address string) string {
	if address != "" {
		return address
	}
	if env := os.Getenv("MILVUS_HOST"); env != "" {
		return env
	}
	return DefaultAddress
}

// healthURL points at the liveness endpoint on the host of address.
func healthURL(address string) string {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		host = address
	}
	return "http://" + net.JoinHostPort(host, healthPort) + "/healthz"
}

// emitMetric pushes one sample tagged with the VU tags plus tags. It is a
// no-op outside the VU context.
func (mi *ModuleInstance) emitMetric(metric *metrics.Metric, value float64, tags map[string]string) {
	if mi.vu == nil || metric == nil {
		return
	}
	state := mi.vu.State()
	if state == nil {
		return
	}

	now := time.Now()
	vuTags := state.Tags.GetCurrentValues()
	for k, v := range tags {
		vuTags.Tags = vuTags.Tags.With(k, v)
	}

	metrics.PushIfNotDone(mi.vu.Context(), state.Samples, metrics.ConnectedSamples{
		Samples: []metrics.Sample{{
			TimeSeries: metrics.TimeSeries{Metric: metric, Tags: vuTags.Tags},
			Time:       now,
			Value:      value,
			Metadata:   vuTags.Metadata,
		}},
		Tags: vuTags.Tags,
		Time: now,
	})
}
