package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	fiberSwagger "github.com/gofiber/swagger"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/platewise/api/docs"
	"github.com/platewise/api/internal/auth"
	"github.com/platewise/api/internal/client"
	"github.com/platewise/api/internal/config"
	"github.com/platewise/api/internal/handler"
	"github.com/platewise/api/internal/logger"
	"github.com/platewise/api/internal/middleware"
	"github.com/platewise/api/internal/notify"
	"github.com/platewise/api/internal/queue"
	"github.com/platewise/api/internal/service"
	"github.com/platewise/api/internal/store"
	ws "github.com/platewise/api/internal/websocket"
	"github.com/platewise/api/internal/worker"
	"github.com/platewise/api/pkg/response"
)

// @title          Platewise API
// @version        1.0
// @description    Photo-based meal calorie estimation.
// @host           localhost:8000
// @BasePath       /
// @schemes        http https
// @securityDefinitions.apikey BearerAuth
// @in             header
// @name           Authorization
// @description    Enter your bearer token in the format **Bearer &lt;token&gt;**
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
		zl.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, zl *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Server.ApiDomain != "" {
		docs.SwaggerInfo.Host = cfg.Server.ApiDomain
		docs.SwaggerInfo.Schemes = []string{"https"}
	} else {
		docs.SwaggerInfo.Host = "localhost:" + cfg.Server.Port
		docs.SwaggerInfo.Schemes = []string{"http"}
	}

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
	if err := redisClient.Ping(ctx).Err(); err != nil {
		zl.Warn("redis not available", zap.Error(err))
	}

	asynqClient := asynq.NewClient(worker.RedisOpt(&cfg.Redis))
	defer asynqClient.Close()
	jobQueue := queue.NewAsynqQueue(asynqClient, queue.Options{
		Queue:             cfg.Worker.Queue,
		MaxAttempts:       cfg.Worker.MaxAttempts,
		VisibilityTimeout: cfg.Worker.VisibilityTimeout,
	})

	storage, err := client.NewStorage(&cfg.Storage)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	var verifier auth.TokenVerifier
	if cfg.OIDC.Issuer != "" {
		v, err := auth.NewJWKSVerifier(&cfg.OIDC)
		if err != nil {
			zl.Warn("JWKS verifier not initialized", zap.Error(err))
		} else {
			verifier = v
			defer v.Close()
		}
	}

	hub := ws.NewHub(zl)
	go hub.Run(ctx)

	// Embedded workers feed the hub directly; otherwise status events
	// arrive from worker processes over redis.
	var runtime *worker.Runtime
	if cfg.Worker.Embedded {
		runtime, err = startEmbeddedWorker(ctx, cfg, db, jobQueue, storage, redisClient, hub, zl)
		if err != nil {
			return err
		}
	} else if err := notify.Subscribe(ctx, redisClient, notify.DefaultChannel, hub, zl); err != nil {
		zl.Warn("status events unavailable, websockets will only see initial state", zap.Error(err))
	}

	estimates := store.NewEstimateRepo(db)
	photos := store.NewPhotoRepo(db)
	estimateService := service.NewEstimateService(estimates, photos, jobQueue, cfg.Estimate.MaxPhotos, zl)
	photoService := service.NewPhotoService(photos, storage, cfg.Storage.UploadURLTTL)
	mealService := service.NewMealService(store.NewMealRepo(db), estimateService)

	validate := validator.New()
	estimateHandler := handler.NewEstimateHandler(estimateService, validate, zl)
	photoHandler := handler.NewPhotoHandler(photoService, validate)
	mealHandler := handler.NewMealHandler(mealService, validate)

	authMiddleware := middleware.NewAuthMiddleware(verifier, cfg.JWT.Secret, time.Duration(cfg.JWT.Expiration)*time.Hour)
	authHandler := handler.NewAuthHandler(authMiddleware)

	var apiAuth fiber.Handler
	if cfg.Gateway.Enabled {
		zl.Info("gateway mode enabled, using header-based auth")
		apiAuth = middleware.GatewayAuthMiddleware()
	} else {
		apiAuth = authMiddleware.Authenticate()
	}
	rateLimiter := middleware.NewRateLimiter(redisClient, zl)

	healthHandler := handler.NewHealthHandler(map[string]handler.Probe{
		"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		"database": db.PingContext,
	}, map[string]bool{
		"storage":  storage != nil,
		"vision":   cfg.Vision.Provider != "",
		"telegram": cfg.Telegram.BotToken != "",
		"auth":     verifier != nil || cfg.JWT.Secret != "",
		"worker":   cfg.Worker.Embedded,
	})

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    cfg.Server.BodyLimitMB * 1024 * 1024,
	})

	app.Use(recover.New())
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${body} ${reqHeaders}\n"
	}
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: logFormat,
		Output: accessLog(zl),
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"timestamp": time.Now().Unix()})
	})
	app.Get("/health", healthHandler.Health)
	app.Get("/swagger/*", fiberSwagger.HandlerDefault)
	app.Get("/auth/verify", authHandler.Verify)

	api := app.Group("/api", apiAuth)

	api.Post("/photos/upload-url", rateLimiter.UploadLimit(cfg.RateLimit.UploadPerHour), photoHandler.UploadURL)

	estimatesGroup := api.Group("/estimates")
	estimatesGroup.Post("/", rateLimiter.SubmitLimit(cfg.RateLimit.SubmitPerHour), estimateHandler.Submit)
	estimatesGroup.Get("/:id", estimateHandler.Get)
	estimatesGroup.Get("/:id/ws", estimateHandler.WatchUpgrade, estimateHandler.Watch(hub))

	meals := api.Group("/meals")
	meals.Post("/", mealHandler.Create)
	meals.Get("/:id", mealHandler.Get)

	go func() {
		<-ctx.Done()
		zl.Info("shutting down server")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			zl.Error("server shutdown error", zap.Error(err))
		}
	}()

	addr := ":" + cfg.Server.Port
	zl.Info("server starting", zap.String("addr", addr), zap.Bool("embedded_worker", cfg.Worker.Embedded))
	err = app.Listen(addr)

	if runtime != nil {
		runtime.Shutdown()
	}
	return err
}

func startEmbeddedWorker(
	ctx context.Context,
	cfg *config.Config,
	db *store.DB,
	jobQueue *queue.AsynqQueue,
	storage client.StorageClient,
	redisClient *redis.Client,
	hub *ws.Hub,
	zl *zap.Logger,
) (*worker.Runtime, error) {
	vision, err := client.NewVision(ctx, &cfg.Vision)
	if err != nil {
		return nil, fmt.Errorf("vision: %w", err)
	}
	if closer, ok := vision.(io.Closer); ok {
		go func() {
			<-ctx.Done()
			closer.Close()
		}()
	}

	telegram, err := notify.NewTelegramBot(cfg.Telegram.BotToken)
	if err != nil {
		zl.Warn("telegram notifications disabled", zap.Error(err))
	}
	notifier := notify.NewBestEffort(
		notify.Collect(hub, notify.NewRedisPublisher(redisClient, notify.DefaultChannel), telegram),
		cfg.Worker.NotifyTimeout, zl)

	runtime, err := worker.NewRuntime(cfg, worker.Deps{
		DB:       db,
		Queue:    jobQueue,
		Storage:  storage,
		Vision:   vision,
		Notifier: notifier,
	}, zl, nil)
	if err != nil {
		return nil, err
	}
	if err := runtime.Start(); err != nil {
		return nil, err
	}
	return runtime, nil
}

// accessLog writes fiber access lines through zap
func accessLog(zl *zap.Logger) io.Writer {
	return zap.NewStdLog(zl.Named("http")).Writer()
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return response.Error(c, code, response.CodeServiceError, message, nil)
}
