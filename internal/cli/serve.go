package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/openjobspec/ojs-retry/internal/api"
	"github.com/openjobspec/ojs-retry/internal/catalog"
	"github.com/openjobspec/ojs-retry/internal/core"
	"github.com/openjobspec/ojs-retry/internal/engine"
	ojsgrpc "github.com/openjobspec/ojs-retry/internal/grpc"
	"github.com/openjobspec/ojs-retry/internal/metrics"
	"github.com/openjobspec/ojs-retry/internal/remediation"
	"github.com/openjobspec/ojs-retry/internal/scheduler"
	"github.com/openjobspec/ojs-retry/internal/server"
	"github.com/openjobspec/ojs-retry/internal/sqs"
	"github.com/openjobspec/ojs-retry/internal/tracing"
)

// healthProbeSpec is how often dependencies are probed for gRPC health.
const healthProbeSpec = "@every 10s"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the retry decision HTTP and gRPC service",
	Long: `Run the retry decision service. Configuration comes from environment
variables (a .env file in the working directory is loaded first):

  OJS_PORT, OJS_GRPC_PORT        listen ports (8080, 9090)
  OJS_API_KEY                    bearer key for the HTTP API
  OJS_STORE                      memory, dynamodb, postgres or redis
  OJS_CATALOG_PATH               YAML catalog of categories and default policy
  OJS_CATALOG_RELOAD_CRON        catalog reload schedule (@every 1m)
  OJS_SQS_EVENTS                 also publish retry events to SQS
  OJS_LOG_FORMAT                 json or text`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := server.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}

	out := os.Stdout
	if cfg.LogFormat == "text" {
		out = os.Stderr
	}
	logger := newLogger(cfg.LogFormat, cfg.LogLevel, getDebugFlag(cmd), out)
	slog.SetDefault(logger)

	if cfg.APIKey == "" && !cfg.AllowInsecureNoAuth {
		return errors.New("refusing to start without API authentication: set OJS_API_KEY or OJS_ALLOW_INSECURE_NO_AUTH=true for local development")
	}
	if cfg.AllowInsecureNoAuth {
		logger.Warn("running without authentication; this is intended for local development only")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize OpenTelemetry (opt-in via OJS_OTEL_ENABLED or OTEL_EXPORTER_OTLP_ENDPOINT)
	otelShutdown, err := tracing.Setup("ojs-retry")
	if err != nil {
		return fmt.Errorf("initialize OpenTelemetry: %w", err)
	}
	defer otelShutdown()

	awsCfg := sync.OnceValues(func() (aws.Config, error) {
		return buildAWSConfig(ctx, cfg)
	})

	store, err := openStore(ctx, cfg, awsCfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	checks := map[string]api.Pinger{"store": store}

	// Events go to the in-process broker for SSE and optionally to SQS.
	broker := sqs.NewPubSubBroker()
	defer broker.Close()
	publishers := sqs.Fanout{broker}
	if cfg.SQSEvents {
		ac, err := awsCfg()
		if err != nil {
			return fmt.Errorf("configure AWS: %w", err)
		}
		publisher := sqs.NewPublisher(awssqs.NewFromConfig(ac), cfg.SQSQueuePrefix, cfg.UseFIFO)
		publisher.SetLogger(logger)
		publishers = append(publishers, publisher)
		checks["sqs"] = publisher
		logger.Info("SQS event publisher ready",
			"prefix", cfg.SQSQueuePrefix,
			"fifo", cfg.UseFIFO,
			"region", cfg.AWSRegion,
		)
	}

	hooks := remediation.NewRegistry()
	eng := engine.New(nil,
		engine.WithRecorder(store),
		engine.WithPublisher(publishers),
		engine.WithLogger(logger),
		engine.WithSideChannelTimeout(cfg.SideChannelTimeout),
	)

	metrics.Init(Version, cfg.Store)

	sched := scheduler.New(logger)

	if cfg.CatalogPath != "" {
		reloader := catalog.NewReloader(cfg.CatalogPath, eng, hooks, logger)
		if _, _, err := reloader.Reload(); err != nil {
			return fmt.Errorf("load catalog %s: %w", cfg.CatalogPath, err)
		}
		if err := sched.Add("catalog-reload", cfg.CatalogReloadCron, scheduler.CatalogReloadTask(reloader)); err != nil {
			return err
		}
	}

	grpcChecks := make(map[string]ojsgrpc.Pinger, len(checks))
	for name, c := range checks {
		grpcChecks[name] = c
	}
	healthSvc := ojsgrpc.NewHealthService(grpcChecks, logger)
	if err := sched.Add("health-probe", healthProbeSpec, healthSvc.Probe); err != nil {
		return err
	}

	router := server.NewRouter(server.Deps{
		Engine:   eng,
		Hooks:    hooks,
		Attempts: store,
		Events:   broker,
		Checks:   checks,
		Version:  Version,
	}, logger, cfg)

	srv := newHTTPServer(cfg, router, broker)

	grpcServer := grpc.NewServer()
	healthSvc.Register(grpcServer)

	sched.Start()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("OJS retry server listening", "port", cfg.Port, "store", cfg.Store, "version", core.OJSVersion)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
		if err != nil {
			return fmt.Errorf("listen for gRPC on port %s: %w", cfg.GRPCPort, err)
		}
		logger.Info("OJS gRPC server listening", "port", cfg.GRPCPort)
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("gRPC server: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		sched.Stop()
		healthSvc.Shutdown()
		grpcServer.GracefulStop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
		if err := eng.Flush(shutdownCtx); err != nil {
			logger.Error("side channels did not drain", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

// newHTTPServer builds the HTTP server. Shutdown closes the event broker so
// that open event streams end and the drain can complete.
func newHTTPServer(cfg server.Config, handler http.Handler, broker io.Closer) *http.Server {
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	srv.RegisterOnShutdown(func() {
		if err := broker.Close(); err != nil {
			slog.Warn("close event broker", "error", err)
		}
	})
	return srv
}
