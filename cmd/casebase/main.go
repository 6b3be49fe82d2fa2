// Command casebase provisions the case collection in Milvus, fills it with
// synthetic records, and serves the status and demo search endpoints.
//
// Configuration is read from a YAML file (--config, CASEBASE_CONFIG or
// ./casebase.yaml) and overridden by environment variables:
//
//	MILVUS_HOST          - Milvus host (default: localhost)
//	MILVUS_PORT          - Milvus gRPC port (default: 19530)
//	CASEBASE_PORT        - HTTP listen port (default: 8080)
//	CASEBASE_LOG_LEVEL   - debug, info, warn or error (default: info)
//	CASEBASE_AWAIT_READY - wait for index and load before searching (default: false)
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/mmga-lab/casebase/pkg/catalog"
	"github.com/mmga-lab/casebase/pkg/config"
	"github.com/mmga-lab/casebase/pkg/dataset"
	"github.com/mmga-lab/casebase/pkg/logging"
	"github.com/mmga-lab/casebase/pkg/milvus"
	"github.com/mmga-lab/casebase/pkg/observability"
	"github.com/mmga-lab/casebase/pkg/pipeline"
	transporthttp "github.com/mmga-lab/casebase/pkg/transport/http"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("casebase failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "casebase",
		Short:         "Provision and query the case collection in Milvus",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML config file")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the pipeline, then serve /api/check and /api/search",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withApp(cmd.Context(), configPath, serve)
			},
		},
		&cobra.Command{
			Use:   "run",
			Short: "Run the pipeline once and print the search result",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withApp(cmd.Context(), configPath, func(ctx context.Context, a *app) error {
					orch, err := a.orchestrator()
					if err != nil {
						return err
					}
					ids, err := runPipeline(ctx, orch, a.logger)
					if err != nil {
						return err
					}
					return json.NewEncoder(cmd.OutOrStdout()).Encode(ids)
				})
			},
		},
		&cobra.Command{
			Use:   "check",
			Short: "Print the Milvus health and version",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withApp(cmd.Context(), configPath, func(ctx context.Context, a *app) error {
					fmt.Fprintln(cmd.OutOrStdout(), pipeline.NewHealthProbe(a.backend).CheckStatus(ctx))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "drop",
			Short: "Drop the case collection",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withApp(cmd.Context(), configPath, func(ctx context.Context, a *app) error {
					if err := a.backend.DropCollection(ctx, catalog.CollectionName); err != nil {
						return err
					}
					a.logger.Info("collection dropped", "collection", catalog.CollectionName)
					return nil
				})
			},
		},
	)
	return root
}

// app holds what every command needs: config, logger and one backend.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	backend  milvus.Backend
	registry *prometheus.Registry
}

func withApp(ctx context.Context, configPath string, fn func(context.Context, *app) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.Configure(os.Stderr, cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := observability.Register(registry); err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	backend, err := milvus.New(ctx, milvus.Config{
		Address:     cfg.Milvus.Address(),
		HealthURL:   cfg.Milvus.HealthURL(),
		DialTimeout: cfg.Milvus.DialTimeout,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("connecting to milvus at %s: %w", cfg.Milvus.Address(), err)
	}
	defer func() {
		if err := backend.Close(context.Background()); err != nil {
			logger.Warn("closing milvus client", "error", err)
		}
	}()

	return fn(ctx, &app{cfg: cfg, logger: logger, backend: backend, registry: registry})
}

func (a *app) orchestrator() (*pipeline.Orchestrator, error) {
	opts := pipeline.DefaultOptions()
	opts.Tables = a.cfg.Pipeline.Tables()
	opts.AwaitReady = a.cfg.Pipeline.AwaitReady
	opts.IndexSync = a.cfg.Pipeline.IndexSync

	gen, err := dataset.NewGenerator(pipeline.GeneratorConfig(opts.Schema, opts.Tables), nil, a.logger)
	if err != nil {
		return nil, err
	}
	return pipeline.New(a.backend, gen, opts, a.logger)
}

// runPipeline runs orch once and waits for the index and load submissions
// it dispatched, so the backend is not closed under them.
func runPipeline(ctx context.Context, orch *pipeline.Orchestrator, logger *slog.Logger) ([]int64, error) {
	ids, err := orch.Run(ctx)
	if werr := orch.WaitSubmitted(ctx); werr != nil {
		logger.Warn("pipeline submission failed", "error", werr)
	}
	return ids, err
}

// serve runs the pipeline like a startup hook, then serves HTTP until ctx
// is cancelled.
func serve(ctx context.Context, a *app) error {
	orch, err := a.orchestrator()
	if err != nil {
		return err
	}
	if _, err := runPipeline(ctx, orch, a.logger); err != nil {
		return err
	}

	if a.cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	routerCfg := transporthttp.RouterConfig{
		Query:    orch.DemoQuery(),
		Gatherer: a.registry,
		Logger:   a.logger,
	}
	if a.cfg.Metrics.Enabled {
		routerCfg.MetricsPath = a.cfg.Metrics.Path
	}
	router := transporthttp.NewRouter(orch.Health(), orch.Searcher(), routerCfg)

	srv := transporthttp.NewServer(router, transporthttp.ServerConfig{
		Addr:            ":" + strconv.Itoa(a.cfg.Server.Port),
		ReadTimeout:     a.cfg.Server.ReadTimeout,
		WriteTimeout:    a.cfg.Server.WriteTimeout,
		ShutdownTimeout: a.cfg.Server.ShutdownTimeout,
		Logger:          a.logger,
	})
	return srv.ListenAndServe(ctx)
}
