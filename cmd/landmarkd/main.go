// Landmarkd is a research orchestration service for NYC landmarks.
//
// It receives natural-language research queries over HTTP, retrieves
// relevant passages from a semantic-search API and structured records
// from a landmark metadata API, synthesizes a report through a hosted
// model, and tracks conversation history with TTL-based memory.
//
// Configuration is loaded from environment variables (optionally layered
// over a YAML file passed via -config). See internal/config for details.
//
// Usage:
//
//	# Start the server
//	VECTOR_BASE_URL=... METADATA_BASE_URL=... \
//	OPENAI_ENDPOINT=... OPENAI_API_KEY=... landmarkd
//
//	# Show version information
//	landmarkd version
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/landmarkd/internal/config"
	"github.com/fyrsmithlabs/landmarkd/internal/httpapi"
	"github.com/fyrsmithlabs/landmarkd/internal/landmark"
	"github.com/fyrsmithlabs/landmarkd/internal/llm"
	"github.com/fyrsmithlabs/landmarkd/internal/logging"
	"github.com/fyrsmithlabs/landmarkd/internal/memory"
	"github.com/fyrsmithlabs/landmarkd/internal/research"
	"github.com/fyrsmithlabs/landmarkd/internal/telemetry"
	"github.com/fyrsmithlabs/landmarkd/internal/vectorsearch"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// purgeInterval is how often the memory store is swept for expired
// conversations.
const purgeInterval = 10 * time.Minute

func main() {
	configPath := flag.String("config", "", "path to optional YAML config file")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  landmarkd           Start the landmarkd server\n")
			fmt.Fprintf(os.Stderr, "  landmarkd version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("landmarkd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the landmarkd server and blocks until ctx is cancelled.
//
// It initializes all dependencies in order: configuration, logger,
// outbound clients, the memory store, the research service, and finally
// the HTTP server with graceful shutdown.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync() // Best-effort sync on shutdown
	}()

	logger.Info("Starting landmarkd",
		zap.Int("port", cfg.Server.Port),
		zap.String("deployment", cfg.OpenAI.Deployment),
		zap.Bool("memory_enabled", cfg.Memory.Enabled),
		zap.String("memory_backend", cfg.Memory.Backend))

	tel, err := telemetry.New(ctx, cfg.Telemetry, "landmarkd", version, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	searchClient, err := vectorsearch.NewClient(vectorsearch.Config{
		BaseURL: cfg.Vector.BaseURL,
		Timeout: cfg.Vector.Timeout.Duration(),
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create vector search client: %w", err)
	}

	metaClient, err := landmark.NewClient(landmark.Config{
		BaseURL: cfg.Metadata.BaseURL,
		Timeout: cfg.Metadata.Timeout.Duration(),
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create metadata client: %w", err)
	}

	llmClient, err := llm.NewClient(llm.Config{
		Endpoint:   cfg.OpenAI.Endpoint,
		APIKey:     cfg.OpenAI.APIKey,
		Deployment: cfg.OpenAI.Deployment,
		APIVersion: cfg.OpenAI.APIVersion,
		Timeout:    cfg.OpenAI.Timeout.Duration(),
		MaxTokens:  cfg.OpenAI.MaxTokens,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create llm client: %w", err)
	}

	store, closeStore, err := initStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize memory store: %w", err)
	}
	defer closeStore()

	svc := research.NewService(searchClient, metaClient, llmClient, store, research.Options{
		MinScore:      cfg.Research.MinScore,
		TopK:          cfg.Research.TopK,
		MemoryEnabled: cfg.Memory.Enabled,
	}, logger)

	srv, err := httpapi.NewServer(svc, logger, &httpapi.Config{
		Port:        cfg.Server.Port,
		ServiceName: "landmarkd",
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	srv.Echo().GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	if cfg.Memory.Enabled {
		go purgeLoop(ctx, store, logger)
	}

	logger.Info("Server configured",
		zap.String("health_endpoint", fmt.Sprintf("http://localhost:%d/health", cfg.Server.Port)),
		zap.String("api_prefix", "/api/research"),
		zap.String("metrics_endpoint", "/metrics"),
		zap.Bool("telemetry_enabled", tel.Enabled()))

	return srv.Start(ctx, cfg.Server.ShutdownTimeout.Duration())
}

// initStore builds the configured conversation store. The returned
// closer releases backend resources.
func initStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (memory.Store, func(), error) {
	switch cfg.Memory.Backend {
	case config.BackendRedis:
		store, err := memory.NewRedisStore(ctx, cfg.Memory.RedisAddr, cfg.Memory.TTL.Duration(), logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Connected to redis", zap.String("addr", cfg.Memory.RedisAddr))
		return store, func() { _ = store.Close() }, nil
	default:
		store := memory.NewInMemoryStore(cfg.Memory.TTL.Duration(), logger)
		return store, func() {}, nil
	}
}

// purgeLoop proactively sweeps expired conversations. Lazy expiry on Get
// already guarantees correctness; this just bounds idle memory.
func purgeLoop(ctx context.Context, store memory.Store, logger *zap.Logger) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := store.PurgeExpired(ctx); err != nil {
				logger.Warn("failed to purge expired conversations", zap.Error(err))
			}
		}
	}
}
