// Command worker runs the periodic pipeline: the listener pass, the viral
// outlier scan, outlier cleanup and proxy revalidation, scheduled over an
// asynq broker.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/application/repository"
	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/chunker"
	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/config"
	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/extractor"
	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/fetcher"
	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/logger"
	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/outlier"
	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/proxy"
	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/quality"
	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/scheduler"
	"github.com/BimaPDev/ProjectMonopoly-sub000/internal/tasks"
)

func main() {
	var listenerIntervalMin int
	root := &cobra.Command{
		Use:           "worker",
		Short:         "Periodic pipeline worker",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(listenerIntervalMin)
		},
	}
	root.Flags().IntVar(&listenerIntervalMin, "listener-interval-min", 15, "Listener pass interval in minutes")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(listenerIntervalMin int) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger.Configure(cfg.LogLevel, cfg.LogFormat)
	ctx := context.Background()

	// Fail fast when the broker is unreachable.
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("broker unreachable at %s: %w", cfg.RedisAddr, err)
	}
	rdb.Close()

	db, err := repository.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	store := repository.NewStore(db)

	handlers := &tasks.Handlers{
		Scheduler: scheduler.New(
			store,
			fetcher.NewClient(cfg.Fetch.UserAgent),
			quality.NewScorer(cfg.Quality),
			chunker.New(cfg.Chunk),
			extractor.New(cfg.LLM),
			cfg,
		),
		Detector:  outlier.NewDetector(store, store, cfg.Viral),
		ProxyPool: proxy.NewPool(cfg.Discovery.ProxiesFile),
	}

	redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	srv := asynq.NewServer(redisOpt, asynq.Config{Concurrency: 2})
	sched := asynq.NewScheduler(redisOpt, nil)
	if err := tasks.PeriodicEntries(sched, listenerIntervalMin); err != nil {
		return err
	}

	errCh := make(chan error, 2)
	go func() { errCh <- srv.Run(tasks.NewMux(handlers)) }()
	go func() { errCh <- sched.Run() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Infof(ctx, "received %s, shutting down", sig)
		sched.Shutdown()
		srv.Shutdown()
		return nil
	case err := <-errCh:
		sched.Shutdown()
		srv.Shutdown()
		return err
	}
}
