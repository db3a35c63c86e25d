package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bryanwahyu/contract-shield/internal/application"
	appanalysis "github.com/bryanwahyu/contract-shield/internal/application/analysis"
	"github.com/bryanwahyu/contract-shield/internal/application/history"
	"github.com/bryanwahyu/contract-shield/internal/application/quota"
	"github.com/bryanwahyu/contract-shield/internal/config"
	"github.com/bryanwahyu/contract-shield/internal/domain/ai"
	"github.com/bryanwahyu/contract-shield/internal/infra/ai/anthropic"
	"github.com/bryanwahyu/contract-shield/internal/infra/ai/gemini"
	"github.com/bryanwahyu/contract-shield/internal/infra/ai/openai"
	"github.com/bryanwahyu/contract-shield/internal/infra/db"
	"github.com/bryanwahyu/contract-shield/internal/infra/httpserver"
	"github.com/bryanwahyu/contract-shield/internal/infra/metrics"
	"github.com/bryanwahyu/contract-shield/internal/infra/seal"
	minioStore "github.com/bryanwahyu/contract-shield/internal/infra/storage"
	"github.com/bryanwahyu/contract-shield/internal/logger"
	mw "github.com/bryanwahyu/contract-shield/internal/middleware"
)

func main() {
	path := flag.String("config", os.Getenv("CONFIG_PATH"), "path to config.yaml")
	flag.Parse()

	cfg, err := config.Load(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger("api", logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped with error")
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	conn, err := db.Connect(ctx, cfg.Database.Driver, cfg.DSN())
	if err != nil {
		return fmt.Errorf("%s connect error: %w", cfg.Database.Driver, err)
	}
	defer conn.Close()

	if err := db.Migrate(conn, cfg.Database.Driver); err != nil {
		return err
	}

	var sealer db.Sealer
	if cfg.Security.SealKey != "" {
		box, err := seal.New(cfg.Security.SealKey)
		if err != nil {
			return err
		}
		sealer = box
	}
	repo := db.NewSnapshotRepository(conn, cfg.Database.Driver, sealer, log)

	clock := application.SystemClock{}
	store, err := history.Load(ctx, repo, log)
	if err != nil {
		return err
	}
	tracker, err := quota.Load(ctx, repo, clock, log)
	if err != nil {
		return err
	}

	m := metrics.New(cfg.Metrics.Namespace, nil)
	m.Seed(store.Snapshot())
	defer store.Subscribe(m.ObserveHistory)()

	checkers := map[string]mw.HealthChecker{
		"database": &mw.DatabaseHealthChecker{DB: conn},
	}

	svc := &appanalysis.Service{
		AI:         newAIClient(cfg.AI),
		History:    store,
		Quota:      tracker,
		Normalizer: appanalysis.NewNormalizer(clock),
		Clock:      clock,
		Metrics:    m,

		ModelTimeout: cfg.AI.Timeout,
	}

	if cfg.Minio.Enabled {
		reports, err := minioStore.New(ctx, minioStore.Config{
			Endpoint:   cfg.Minio.Endpoint,
			Region:     cfg.Minio.Region,
			Bucket:     cfg.Minio.BucketName,
			AccessKey:  cfg.Minio.AccessKey,
			SecretKey:  cfg.Minio.SecretKey,
			UseSSL:     cfg.Minio.UseSSL,
			PresignTTL: cfg.Minio.PresignTTL,
		})
		if err != nil {
			return fmt.Errorf("minio init error: %w", err)
		}
		svc.Reports = reports
		checkers["minio"] = reports
	}

	limiter := mw.NewRateLimiter(cfg.Server.RateLimit.Capacity, cfg.Server.RateLimit.RefillPerSecond)

	handler := httpserver.NewRouter(httpserver.Options{
		Service:          svc,
		Provider:         cfg.AI.Provider,
		MaxContractBytes: cfg.Server.MaxContractBytes,
		Logger:           log,
		Metrics:          m,
		HealthCheckers:   checkers,
		AccessTokens:     cfg.Server.AccessTokens,
		CORSOrigins:      cfg.Server.CORSOrigins,
		RateLimiter:      limiter,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().
			Str("addr", addr).
			Str("driver", cfg.Database.Driver).
			Str("provider", cfg.AI.Provider).
			Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				limiter.Sweep()
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newAIClient(cfg config.AI) ai.Client {
	switch cfg.Provider {
	case "openai":
		return openai.NewClient(cfg.BaseURL, cfg.Model, cfg.Timeout)
	case "gemini":
		return gemini.NewClient(cfg.Model, cfg.Timeout)
	default:
		return anthropic.NewClient(anthropic.Config{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
			Retries: cfg.Retries,
		})
	}
}
