package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/gearshelf/api/internal/audio"
	"github.com/gearshelf/api/internal/auth"
	"github.com/gearshelf/api/internal/capture"
	"github.com/gearshelf/api/internal/client"
	"github.com/gearshelf/api/internal/config"
	"github.com/gearshelf/api/internal/handler"
	"github.com/gearshelf/api/internal/logging"
	"github.com/gearshelf/api/internal/middleware"
	"github.com/gearshelf/api/internal/model"
	"github.com/gearshelf/api/internal/orchestrator"
	"github.com/gearshelf/api/internal/service"
	ws "github.com/gearshelf/api/internal/websocket"
	"github.com/gearshelf/api/internal/worker"
)

// @title          Gearshelf Onboarding Agent
// @version        1.0
// @description    Local agent that records an equipment description, has it processed by the AI backend and saves the reviewed result.
// @host           localhost:8000
// @BasePath       /
// @schemes        http
// @securityDefinitions.apikey BearerAuth
// @in             header
// @name           Authorization
// @description    Enter your bearer token in the format **Bearer &lt;token&gt;**
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	logging.Init(cfg.Server.Env, cfg.Server.LogLevel, "gearshelf-agent")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("Redis not available")
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	validate := validator.New()

	// The hub needs the run service to cancel and the run service needs the hub to broadcast
	hub := ws.NewHub(nil)
	go hub.Run()

	backendClient := client.NewBackendClient(&cfg.Backend)
	if !backendClient.IsConfigured() {
		log.Warn().Msg("Backend base URL not configured")
	}

	// R2 archive is optional
	var storage client.StorageClient
	r2Configured := false
	if cfg.R2.AccessKeyID != "" && cfg.R2.SecretAccessKey != "" {
		r2Client, err := client.NewR2Client(&cfg.R2)
		if err != nil {
			log.Warn().Err(err).Msg("R2 client not initialized")
		} else {
			storage = r2Client
			r2Configured = r2Client.IsConfigured()
		}
	} else {
		log.Info().Msg("R2 storage not configured, recordings are not archived")
	}

	// Zitadel JWKS verifier is optional; falls back to legacy JWT
	var jwksVerifier *auth.JWKSVerifier
	if cfg.Zitadel.Issuer != "" {
		jwksVerifier, err = auth.NewJWKSVerifier(&cfg.Zitadel)
		if err != nil {
			log.Warn().Err(err).Msg("JWKS verifier not initialized")
		} else {
			defer jwksVerifier.Close()
		}
	}

	mic := audio.NewMic(audio.MicConfig{
		FFmpegPath:  cfg.Capture.FFmpegPath,
		InputFormat: cfg.Capture.InputFormat,
		InputDevice: cfg.Capture.InputDevice,
	})
	if err := mic.CheckFFmpeg(); err != nil {
		log.Warn().Err(err).Msg("ffmpeg not found, recording will fail until it is installed")
	}
	captureSession := capture.NewSession(mic, capture.Options{
		MaxSeconds: cfg.Capture.MaxSeconds,
		OnChange: func(st model.CaptureState) {
			log.Debug().Str("status", string(st.Status)).Int("elapsed", st.ElapsedSeconds).Msg("Capture state")
		},
	})
	defer captureSession.Close()

	// Services
	runService := service.NewRunService(redisClient, backendClient, orchestrator.Options{
		SettleDelay:   cfg.Orchestrator.SettleDelay(),
		AudioCadence:  cfg.Orchestrator.AudioCadence(),
		SampleCadence: cfg.Orchestrator.SampleCadence(),
	}, storage, hub)
	hub.SetCanceller(runService)
	saveService := service.NewSaveService(backendClient, service.NewOrphanQueue(asynqClient))
	orphanService := service.NewOrphanService(redisClient)

	// Handlers
	captureHandler := handler.NewCaptureHandler(captureSession, validate)
	runHandler := handler.NewRunHandler(runService, captureSession)
	equipmentHandler := handler.NewEquipmentHandler(saveService, validate)
	catalogHandler := handler.NewCatalogHandler(backendClient, orphanService)

	var tokenVerifier auth.TokenVerifier
	if jwksVerifier != nil {
		tokenVerifier = jwksVerifier
	}
	authHandler := handler.NewAuthHandler(tokenVerifier, cfg.JWT.Secret)

	var apiAuthMiddleware fiber.Handler
	if cfg.Gateway.Enabled {
		log.Info().Msg("Gateway mode enabled, using header-based auth")
		apiAuthMiddleware = middleware.GatewayAuthMiddleware()
	} else {
		var authMiddleware *middleware.AuthMiddleware
		if jwksVerifier != nil && cfg.JWT.Secret != "" {
			authMiddleware = middleware.NewAuthMiddlewareWithFallback(jwksVerifier, cfg.JWT.Secret)
		} else if jwksVerifier != nil {
			authMiddleware = middleware.NewAuthMiddleware(jwksVerifier)
		} else {
			authMiddleware = middleware.NewLegacyAuthMiddleware(cfg.JWT.Secret)
		}
		apiAuthMiddleware = authMiddleware.Authenticate()
	}
	rateLimiter := middleware.NewRateLimiter(redisClient)

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    10 * 1024 * 1024,
	})

	app.Use(recover.New())
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${reqHeaders}\n"
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"backend": backendClient.IsConfigured(),
				"r2":      r2Configured,
				"auth":    jwksVerifier != nil || cfg.JWT.Secret != "",
			},
		})
	})

	app.Get("/auth/verify", authHandler.Verify)

	api := app.Group("/api", apiAuthMiddleware)

	captureGroup := api.Group("/capture")
	captureGroup.Get("/", captureHandler.State)
	captureGroup.Post("/start", captureHandler.Start)
	captureGroup.Post("/stop", captureHandler.Stop)
	captureGroup.Post("/reset", captureHandler.Reset)
	captureGroup.Post("/sample", captureHandler.Sample)

	runs := api.Group("/runs")
	runs.Post("/", rateLimiter.ProcessLimit(cfg.RateLimit.ProcessPerHour), runHandler.Start)
	runs.Get("/:runId", runHandler.Status)
	runs.Get("/:runId/result", runHandler.Result)
	runs.Post("/:runId/cancel", runHandler.Cancel)

	api.Post("/equipment", rateLimiter.SaveLimit(cfg.RateLimit.SavePerHour), equipmentHandler.Save)
	api.Get("/categories", catalogHandler.Categories)
	api.Get("/inventory", catalogHandler.Inventory)
	api.Get("/skus", catalogHandler.SKUs)
	api.Get("/orphans", catalogHandler.Orphans)
	api.Delete("/orphans/:skuId", catalogHandler.ResolveOrphan)

	// Browsers cannot set headers on upgrade requests; the token may come as ?token=
	app.Use("/ws", apiAuthMiddleware, func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/runs/:runId", websocket.New(func(c *websocket.Conn) {
		hub.HandleConnection(c, c.Params("runId"))
	}))

	go startWorkerServer(cfg, orphanService)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info().Msg("Shutting down server...")
		runService.Shutdown()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error().Err(err).Msg("Server shutdown error")
		}
	}()

	addr := ":" + cfg.Server.Port
	log.Info().Str("addr", addr).Msg("Server starting")
	if err := app.Listen(addr); err != nil {
		log.Fatal().Err(err).Msg("Server error")
	}
}

func startWorkerServer(cfg *config.Config, orphanService *service.OrphanService) {
	asynqLogLevel := asynq.InfoLevel
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		asynqLogLevel = asynq.DebugLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "warn") {
		asynqLogLevel = asynq.WarnLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "error") {
		asynqLogLevel = asynq.ErrorLevel
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: 2,
			Queues: map[string]int{
				"audit": 1,
			},
			LogLevel: asynqLogLevel,
		},
	)

	orphanWorker := worker.NewOrphanWorker(orphanService)

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeOrphanAudit, orphanWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.Error().Err(err).Msg("Asynq worker error")
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
