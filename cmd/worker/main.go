package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/jacobwhite/taskdeck/internal/cache"
	"github.com/jacobwhite/taskdeck/internal/config"
	"github.com/jacobwhite/taskdeck/internal/database"
	"github.com/jacobwhite/taskdeck/internal/queue"
	"github.com/jacobwhite/taskdeck/internal/repositories"
	"github.com/jacobwhite/taskdeck/internal/services"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	redisClient, err := cache.NewRedisClient(&cfg.Redis, logger)
	if err != nil {
		logger.Error("failed to connect to redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer redisClient.Close()

	appCache := cache.New(redisClient, cache.Config{DefaultTTL: cfg.Cache.DefaultTTL}, logger)

	userRepo := repositories.NewUserRepository(db)
	taskRepo := repositories.NewTaskRepository(db)

	// The worker recomputes statistics through the same service the API
	// serves them from, so both sides agree on cache keys and TTLs. No
	// enqueuer or executor: the worker does not start new pipelines.
	taskService := services.NewTaskService(taskRepo, appCache, nil, nil, cfg.Cache, logger)

	// Optional SES notifications
	var notifier queue.Notifier
	if cfg.Notify.Enabled {
		sesNotifier, err := queue.NewAWSSESNotifier(cfg.Notify.AWSRegion, cfg.Notify.FromAddress, logger)
		if err != nil {
			logger.Error("failed to initialize notifier", slog.Any("error", err))
			os.Exit(1)
		}
		notifier = sesNotifier
	}

	dispatcher := queue.NewDispatcher(appCache, taskService, userRepo, notifier, logger)

	server := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: cfg.Queue.Concurrency,
			Queues:      map[string]int{cfg.Queue.EventQueue: 1},
		},
	)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		logger.Info("shutdown signal received")
		server.Shutdown()
	}()

	logger.Info("starting worker", slog.String("queue", cfg.Queue.EventQueue))
	if err := server.Run(dispatcher.Mux()); err != nil {
		logger.Error("worker stopped with error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker stopped gracefully")
}
