package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/zhipi-dev/zhipi-go-api/internal/config"
	"github.com/zhipi-dev/zhipi-go-api/internal/database"
	"github.com/zhipi-dev/zhipi-go-api/internal/handler"
	"github.com/zhipi-dev/zhipi-go-api/internal/middleware"
	"github.com/zhipi-dev/zhipi-go-api/internal/repository"
	"github.com/zhipi-dev/zhipi-go-api/internal/router"
	"github.com/zhipi-dev/zhipi-go-api/internal/service"
	"github.com/zhipi-dev/zhipi-go-api/internal/utils"
	"github.com/zhipi-dev/zhipi-go-api/pkg/ai"
	"github.com/zhipi-dev/zhipi-go-api/pkg/ocr"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("failed to create data directory: %v", err)
	}

	var cache *redis.Client
	if cfg.RedisURL != "" {
		cache, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer cache.Close()
	}

	recognizer, err := ocr.New(ocr.Config{
		Provider:         cfg.OCRProvider,
		TencentSecretID:  cfg.TencentSecretID,
		TencentSecretKey: cfg.TencentSecretKey,
		TencentRegion:    cfg.TencentRegion,
		BaiduAPIKey:      cfg.BaiduAPIKey,
		BaiduSecretKey:   cfg.BaiduSecretKey,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("ocr recognizer unavailable, grading will run without text recognition")
		recognizer = nil
	}

	grader, err := ai.NewDeepSeekGrader(ai.DeepSeekConfig{
		APIKey:      cfg.DeepSeekAPIKey,
		BaseURL:     cfg.DeepSeekBaseURL,
		Model:       cfg.DeepSeekModel,
		MaxTokens:   cfg.DeepSeekMaxTokens,
		Temperature: float32(cfg.DeepSeekTemperature),
		Logger:      logger,
	})
	if err != nil {
		log.Fatalf("failed to create grader: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	planRepo := repository.NewPlanRepository(cfg.DataDir)
	recordRepo := repository.NewRecordRepository(cfg.DataDir)

	gradingService := service.NewGradingService(planRepo, recordRepo, recognizer, grader, logger, service.GradingConfig{
		Workers:   cfg.GradingWorkers,
		QueueSize: cfg.GradingQueueSize,
		Timeout:   cfg.GradingTimeout,
	})
	gradingService.Start()
	defer gradingService.Stop()

	planService := service.NewPlanService(planRepo, recordRepo, validate, cache, cfg.StatsCacheTTL, logger)
	submissionService := service.NewSubmissionService(planRepo, recordRepo, gradingService, validate, service.UploadPolicy{
		MaxImages:     cfg.MaxImagesPerUpload,
		MaxImageBytes: cfg.MaxImageSizeBytes,
	}, logger)
	regradeService := service.NewRegradeService(planRepo, recordRepo, gradingService, logger)

	planHandler := handler.NewPlanHandler(planService, regradeService, cfg, logger)
	uploadHandler := handler.NewUploadHandler(submissionService, logger)
	recordHandler := handler.NewRecordHandler(submissionService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    int(cfg.MaxImageSizeBytes) * (cfg.MaxImagesPerUpload + 1),
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		PlanHandler:   planHandler,
		UploadHandler: uploadHandler,
		RecordHandler: recordHandler,
	})

	logger.Info().
		Str("address", cfg.HTTPAddress()).
		Str("lan_ip", utils.LocalIP()).
		Str("data_dir", cfg.DataDir).
		Msg("starting server")

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
