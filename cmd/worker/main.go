// Command worker runs the movie insert worker on its own, with its own
// MySQL pool and broker connection. Use it with WORKER_ENABLED=false on the
// API processes.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/iliyamo/cinevault/internal/config"
	"github.com/iliyamo/cinevault/internal/database"
	"github.com/iliyamo/cinevault/internal/logger"
	"github.com/iliyamo/cinevault/internal/middleware"
	"github.com/iliyamo/cinevault/internal/queue"
	"github.com/iliyamo/cinevault/internal/repository"
	"github.com/iliyamo/cinevault/internal/retry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	log, err := logger.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(database.Options{
		User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
		ConnectTimeout: cfg.DBConnectTimeout,
	})
	if err != nil {
		log.Fatal("open database", zap.Error(err))
	}
	defer db.Close()

	publisher := queue.NewPublisher(cfg.RabbitURL, log)
	defer publisher.Close()

	w := queue.NewWorker(queue.WorkerOptions{
		URL:         cfg.RabbitURL,
		Concurrency: cfg.WorkerConcurrency,
		Retry:       retry.Policy{MaxAttempts: cfg.WorkerMaxAttempts, Jitter: 0.2},
		ConsumerTag: "cinevault-worker",
	}, repository.NewMovieRepo(db), publisher, log)

	if rdb, err := config.NewRedisClient(cfg.Redis); err != nil {
		log.Warn("redis unavailable, listings cache will expire on its own", zap.Error(err))
	} else {
		defer rdb.Close()
		w.WithInvalidator(middleware.NewCachePurger(rdb, cfg.Cache.Prefix))
	}

	if err := w.Run(ctx); err != nil {
		log.Error("worker stopped", zap.Error(err))
	}
}
