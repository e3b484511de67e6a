package worker

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/platewise/api/internal/config"
	"github.com/platewise/api/internal/logger"
	"github.com/platewise/api/internal/queue"
)

// RedisOpt builds the asynq connection options from config
func RedisOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// NewServer builds the asynq server that runs estimate and sweep tasks.
// healthCheck may be nil.
func NewServer(redisOpt asynq.RedisClientOpt, cfg *config.WorkerConfig, logLevel string, log *zap.Logger, healthCheck func(error)) *asynq.Server {
	return asynq.NewServer(redisOpt, asynq.Config{
		Concurrency:     cfg.Concurrency,
		Queues:          map[string]int{cfg.Queue: 1},
		RetryDelayFunc:  queue.RetryDelay,
		Logger:          logger.Asynq(log),
		LogLevel:        logger.AsynqLevel(logLevel),
		ShutdownTimeout: cfg.VisibilityTimeout,
		HealthCheckFunc: healthCheck,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			id, _ := asynq.GetTaskID(ctx)
			if errors.Is(err, asynq.SkipRetry) {
				log.Warn("task moved to poison queue", zap.String("type", task.Type()), zap.String("task_id", id), zap.Error(err))
				return
			}
			var re *queue.RetryError
			if !errors.As(err, &re) {
				log.Error("task failed", zap.String("type", task.Type()), zap.String("task_id", id), zap.Error(err))
			}
		}),
	})
}

// NewMux routes estimate and sweep tasks to their handlers
func NewMux(estimates *EstimateWorker, sweeper *Sweeper) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskTypeEstimate, estimates.ProcessTask)
	mux.HandleFunc(queue.TaskTypeSweep, sweeper.ProcessTask)
	return mux
}

// NewScheduler registers the periodic reconciliation sweep
func NewScheduler(redisOpt asynq.RedisClientOpt, cfg *config.WorkerConfig, logLevel string, log *zap.Logger) (*asynq.Scheduler, error) {
	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Logger:   logger.Asynq(log),
		LogLevel: logger.AsynqLevel(logLevel),
		Location: time.UTC,
	})

	// one sweep at a time across all schedulers
	_, err := scheduler.Register(cfg.SweepInterval, queue.NewSweepTask(),
		asynq.Queue(cfg.Queue),
		asynq.MaxRetry(0),
		asynq.Unique(cfg.SweepGrace),
	)
	if err != nil {
		return nil, err
	}
	return scheduler, nil
}

// ProcessorOptions derives the processing limits from config
func ProcessorOptions(cfg *config.Config) Options {
	return Options{
		MaxAttempts:    cfg.Worker.MaxAttempts,
		VisionTimeout:  cfg.Vision.Timeout,
		PersistTimeout: cfg.Worker.PersistTimeout,
		Backoff: queue.Backoff{
			Base:   cfg.Worker.BackoffBase,
			Max:    cfg.Worker.BackoffMax,
			Jitter: cfg.Worker.BackoffJitter,
		},
	}
}

// SweepOptionsFrom derives the sweep settings from config
func SweepOptionsFrom(cfg *config.WorkerConfig) SweepOptions {
	return SweepOptions{
		MaxAttempts: cfg.MaxAttempts,
		Grace:       cfg.SweepGrace,
		Batch:       cfg.SweepBatch,
	}
}
