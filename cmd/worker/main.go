package main

import (
	"context"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/platewise/api/internal/client"
	"github.com/platewise/api/internal/config"
	"github.com/platewise/api/internal/logger"
	"github.com/platewise/api/internal/notify"
	"github.com/platewise/api/internal/queue"
	"github.com/platewise/api/internal/store"
	"github.com/platewise/api/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.Server.LogLevel, cfg.Server.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zl.Sync() //nolint:errcheck

	if err := run(cfg, zl); err != nil {
		zl.Fatal("worker exited", zap.Error(err))
	}
}

func run(cfg *config.Config, zl *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, &cfg.Database, zl)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	asynqClient := asynq.NewClient(worker.RedisOpt(&cfg.Redis))
	defer asynqClient.Close()
	jobQueue := queue.NewAsynqQueue(asynqClient, queue.Options{
		Queue:             cfg.Worker.Queue,
		MaxAttempts:       cfg.Worker.MaxAttempts,
		VisibilityTimeout: cfg.Worker.VisibilityTimeout,
	})

	storage, err := client.NewStorage(&cfg.Storage)
	if err != nil {
		return err
	}

	vision, err := client.NewVision(ctx, &cfg.Vision)
	if err != nil {
		return err
	}
	if closer, ok := vision.(io.Closer); ok {
		defer closer.Close()
	}
	if !vision.IsConfigured() {
		zl.Warn("vision provider has no credentials, every job will fail", zap.String("provider", cfg.Vision.Provider))
	}

	telegram, err := notify.NewTelegramBot(cfg.Telegram.BotToken)
	if err != nil {
		zl.Warn("telegram notifications disabled", zap.Error(err))
	}
	notifier := notify.NewBestEffort(
		notify.Collect(notify.NewRedisPublisher(redisClient, notify.DefaultChannel), telegram),
		cfg.Worker.NotifyTimeout, zl)

	health := worker.NewHealth(zl)
	grpcServer := grpc.NewServer()
	health.Register(grpcServer)
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.Worker.HealthAddr)
	if err != nil {
		return err
	}
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			zl.Error("health server stopped", zap.Error(err))
		}
	}()
	defer grpcServer.GracefulStop()

	runtime, err := worker.NewRuntime(cfg, worker.Deps{
		DB:       db,
		Queue:    jobQueue,
		Storage:  storage,
		Vision:   vision,
		Notifier: notifier,
	}, zl, health.Check)
	if err != nil {
		return err
	}
	if err := runtime.Start(); err != nil {
		return err
	}
	zl.Info("worker running",
		zap.String("queue", cfg.Worker.Queue),
		zap.Int("concurrency", cfg.Worker.Concurrency),
		zap.String("health_addr", cfg.Worker.HealthAddr))

	<-ctx.Done()
	zl.Info("shutting down worker")
	health.Shutdown()
	runtime.Shutdown()
	return nil
}
