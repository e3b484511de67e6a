package worker

import (
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/platewise/api/internal/client"
	"github.com/platewise/api/internal/config"
	"github.com/platewise/api/internal/notify"
	"github.com/platewise/api/internal/queue"
	"github.com/platewise/api/internal/store"
)

// Deps are the collaborators a worker process needs
type Deps struct {
	DB       *store.DB
	Queue    JobQueue
	Storage  client.StorageClient
	Vision   client.VisionClient
	Notifier notify.Notifier
}

// Runtime is an asynq server serving estimate and sweep tasks, plus the
// scheduler that enqueues sweeps
type Runtime struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	inspector *asynq.Inspector
	logger    *zap.Logger
}

// NewRuntime wires processors to an asynq server. healthCheck may be nil.
func NewRuntime(cfg *config.Config, deps Deps, log *zap.Logger, healthCheck func(error)) (*Runtime, error) {
	estimates := store.NewEstimateRepo(deps.DB)
	photos := store.NewPhotoRepo(deps.DB)

	redisOpt := RedisOpt(&cfg.Redis)
	inspector := asynq.NewInspector(redisOpt)

	processor := NewProcessor(estimates, photos, deps.Storage, deps.Vision, deps.Notifier, ProcessorOptions(cfg), log)
	sweeper := NewSweeper(estimates, deps.Queue, queue.NewInspector(inspector, cfg.Worker.Queue),
		deps.Notifier, SweepOptionsFrom(&cfg.Worker), log)

	scheduler, err := NewScheduler(redisOpt, &cfg.Worker, cfg.Server.LogLevel, log)
	if err != nil {
		_ = inspector.Close()
		return nil, fmt.Errorf("failed to register sweep: %w", err)
	}

	return &Runtime{
		server:    NewServer(redisOpt, &cfg.Worker, cfg.Server.LogLevel, log, healthCheck),
		mux:       NewMux(NewEstimateWorker(processor), sweeper),
		scheduler: scheduler,
		inspector: inspector,
		logger:    log,
	}, nil
}

// Start begins processing in the background
func (r *Runtime) Start() error {
	if err := r.server.Start(r.mux); err != nil {
		return fmt.Errorf("failed to start worker server: %w", err)
	}
	if err := r.scheduler.Start(); err != nil {
		r.server.Shutdown()
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	r.logger.Info("worker started")
	return nil
}

// Shutdown stops the scheduler and waits for in-flight tasks
func (r *Runtime) Shutdown() {
	r.scheduler.Shutdown()
	r.server.Shutdown()
	if err := r.inspector.Close(); err != nil {
		r.logger.Warn("failed to close queue inspector", zap.Error(err))
	}
	r.logger.Info("worker stopped")
}
