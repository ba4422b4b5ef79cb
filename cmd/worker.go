package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/applyflow/ds160-runner/api/schemas"
	"github.com/applyflow/ds160-runner/internal/browser"
	"github.com/applyflow/ds160-runner/internal/catalog"
	"github.com/applyflow/ds160-runner/internal/engine"
	"github.com/applyflow/ds160-runner/internal/observability"
	"github.com/applyflow/ds160-runner/internal/store"
	"github.com/applyflow/ds160-runner/internal/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Runs the job worker: consumes submissions from the queue and drives them to completion",
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	logger := observability.GetLogger()
	defer observability.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	poolCfg, err := pgxpool.ParseConfig(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("parsing postgres dsn: %w", err)
	}
	if cfg.Database.MaxConns > 0 {
		poolCfg.MaxConns = cfg.Database.MaxConns
	}
	if cfg.Database.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.Database.ConnectTimeout
	}
	if cfg.Database.StatementTimeout > 0 {
		poolCfg.ConnConfig.RuntimeParams["statement_timeout"] =
			strconv.FormatInt(cfg.Database.StatementTimeout.Milliseconds(), 10)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer pool.Close()

	progressStore := store.NewPostgresStore(pool, cfg.Captcha.ChallengeTTL, logger)
	if err := progressStore.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}

	artifacts, err := store.NewFileArtifactStore(cfg.Artifacts.BaseDir, cfg.Artifacts.PublicBaseURL, logger)
	if err != nil {
		return fmt.Errorf("preparing artifact store: %w", err)
	}

	newDriver := func(ctx context.Context) (schemas.BrowserDriver, error) {
		return browser.New(ctx, cfg.Browser, logger)
	}
	runner := engine.NewJobRunner(newDriver, progressStore, artifacts, progressStore,
		catalog.Steps(), catalog.Captcha, cfg, logger)

	jobPool, err := worker.NewPool(runner, cfg.Engine.WorkerConcurrency, cfg.Engine.SessionsPerMinute, logger)
	if err != nil {
		return err
	}

	nc, err := nats.Connect(cfg.Queue.URL,
		nats.Name("ds160-runner"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return fmt.Errorf("connecting to nats: %w", err)
	}
	defer nc.Drain() //nolint:errcheck

	consumer, err := worker.NewConsumer(nc, cfg.Queue, progressStore, logger)
	if err != nil {
		return err
	}

	requests := make(chan worker.JobRequest)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return consumer.Consume(ctx, requests) })
	g.Go(func() error { return jobPool.Run(ctx, requests) })

	logger.Info("Worker up",
		zap.Int("concurrency", cfg.Engine.WorkerConcurrency),
		zap.String("queue_subject", cfg.Queue.Subject))

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	logger.Info("Worker shut down cleanly")
	return nil
}
