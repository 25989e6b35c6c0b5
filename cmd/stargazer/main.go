package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	githubadapter "github.com/ericfisherdev/stargazer/internal/adapter/driven/github"
	"github.com/ericfisherdev/stargazer/internal/adapter/driven/metrics"
	"github.com/ericfisherdev/stargazer/internal/adapter/driven/store"
	"github.com/ericfisherdev/stargazer/internal/application"
	"github.com/ericfisherdev/stargazer/internal/config"
	"github.com/ericfisherdev/stargazer/internal/domain/port/driven"
)

// pushTimeout bounds the final metrics push so it cannot hold the exit.
const pushTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on invalid values or a missing token).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(newLogger(cfg))

	if err := cfg.RequireToken(); err != nil {
		return err
	}

	kind, target, err := cfg.Store()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"store", kind,
		"query", cfg.Query,
		"target", cfg.Target,
		"page_size", cfg.PageSize,
		"max_attempts", cfg.MaxAttempts,
		"quota_preflight", cfg.QuotaPreflight,
		"metrics_push", cfg.PushgatewayURL != "",
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open the store for this pass.
	st, err := store.Open(ctx, kind, target)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	// 4. Metrics are collected only when they will be pushed.
	var recorder driven.CrawlRecorder = driven.NopRecorder{}
	var promRecorder *metrics.Recorder
	if cfg.PushgatewayURL != "" {
		promRecorder, err = metrics.NewRecorder()
		if err != nil {
			return err
		}
		recorder = promRecorder
	}

	// 5. Wire the GitHub client.
	retrier := githubadapter.NewRetrier(cfg.MaxAttempts, githubadapter.WithRetryRecorder(recorder))
	ghClient, err := githubadapter.NewClient(githubadapter.Config{
		Token:      cfg.GitHubToken,
		GraphQLURL: cfg.GraphQLURL,
		RESTURL:    cfg.RESTURL,
		Timeout:    cfg.RequestTimeout,
	}, githubadapter.WithRetrier(retrier))
	if err != nil {
		return err
	}

	// 6. Run one crawl pass.
	svc := application.NewCrawlService(ghClient, st.Schema, st.Repos, st.Runs,
		application.CrawlOptions{
			Query:          cfg.Query,
			Target:         cfg.Target,
			PageSize:       cfg.PageSize,
			QuotaPreflight: cfg.QuotaPreflight,
		},
		application.WithQuotaClient(ghClient),
		application.WithRecorder(recorder),
	)

	summary, runErr := svc.Run(ctx)

	if promRecorder != nil {
		pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pushTimeout)
		if err := promRecorder.Push(pushCtx, cfg.PushgatewayURL, "stargazer"); err != nil {
			slog.Warn("metrics push failed", "error", err)
		}
		cancel()
	}

	if runErr != nil {
		return runErr
	}

	slog.Info("crawl complete",
		"run_id", summary.RunID,
		"collected", summary.Collected,
		"pages", summary.Pages,
		"stop_reason", summary.StopReason,
		"duration", summary.Duration.Round(time.Second),
	)
	return nil
}

// newLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
