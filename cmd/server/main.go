package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/cinevault/internal/config"
	"github.com/iliyamo/cinevault/internal/database"
	"github.com/iliyamo/cinevault/internal/handler"
	"github.com/iliyamo/cinevault/internal/logger"
	"github.com/iliyamo/cinevault/internal/middleware"
	"github.com/iliyamo/cinevault/internal/objectstore"
	"github.com/iliyamo/cinevault/internal/queue"
	"github.com/iliyamo/cinevault/internal/repository"
	"github.com/iliyamo/cinevault/internal/retry"
	"github.com/iliyamo/cinevault/internal/router"
	"github.com/iliyamo/cinevault/internal/service"
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

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(database.Options{
		User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
		ConnectTimeout: cfg.DBConnectTimeout,
	})
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		return err
	}
	log.Info("database ready", zap.String("host", cfg.DBHost), zap.String("name", cfg.DBName))

	rdb, err := config.NewRedisClient(cfg.Redis)
	if err != nil {
		log.Warn("redis unavailable, caching and rate limiting disabled", zap.Error(err))
	} else {
		defer rdb.Close()
	}
	purger := middleware.NewCachePurger(rdb, cfg.Cache.Prefix)

	var store service.ObjectStore = objectstore.Disabled{}
	if cfg.CloudinaryConfigured() {
		cld, err := objectstore.NewCloudinary(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
		if err != nil {
			return err
		}
		store = cld
	} else {
		log.Warn("cloudinary credentials missing, poster uploads will fail")
	}

	publisher := queue.NewPublisher(cfg.RabbitURL, log)
	if err := publisher.Connect(); err != nil {
		log.Warn("broker unavailable at startup, will retry on first enqueue", zap.Error(err))
	}
	defer publisher.Close()

	users := repository.NewUserRepo(db)
	movies := repository.NewMovieRepo(db)
	tokens := service.NewTokenService(service.TokenConfig{
		AccessSecret:  cfg.JWTAccessSecret,
		RefreshSecret: cfg.JWTRefreshSecret,
		AccessTTL:     cfg.AccessTTL,
		RefreshTTL:    cfg.RefreshTTL,
	}, repository.NewTokenRepo(db))

	// A nil *CachePurger must not reach the interfaces as a typed nil.
	var cache service.CacheInvalidator
	if purger != nil {
		cache = purger
	}
	movieSvc := service.NewMovieService(movies, service.NewPosterStager(store, cfg.PosterFolder, log), publisher, cache, log)

	opts := router.Options{
		ClientURL:     cfg.ClientURL,
		MaxUploadSize: cfg.MaxUploadSize,
		Cache:         cfg.Cache,
		RateLimit:     cfg.RateLimit,
		Redis:         rdb,
		Tokens:        tokens,
		Log:           log,
	}
	e := router.New(opts)
	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(users, tokens, cfg.BcryptCost, cfg.IsProduction()), tokens, users)
	router.RegisterMovies(e, opts, handler.NewMoviePublicHandler(movies), handler.NewMovieAdminHandler(movieSvc, cfg.UploadDir), tokens, users)

	workerDone := make(chan struct{})
	if cfg.WorkerEnabled {
		w := queue.NewWorker(queue.WorkerOptions{
			URL:         cfg.RabbitURL,
			Concurrency: cfg.WorkerConcurrency,
			Retry:       retry.Policy{MaxAttempts: cfg.WorkerMaxAttempts, Jitter: 0.2},
			ConsumerTag: "cinevault-api",
		}, movies, publisher, log)
		if purger != nil {
			w.WithInvalidator(purger)
		}
		go func() {
			defer close(workerDone)
			if err := w.Run(ctx); err != nil {
				log.Error("insert worker stopped", zap.Error(err))
			}
		}()
	} else {
		close(workerDone)
	}

	addr := ":" + cfg.Port
	srvErr := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.Bool("worker", cfg.WorkerEnabled))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
		close(srvErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-srvErr:
		if err != nil {
			return err
		}
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	stop()
	<-workerDone
	return nil
}
