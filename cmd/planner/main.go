package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/course-planner/api/swagger"
	"github.com/noah-isme/course-planner/internal/dto"
	"github.com/noah-isme/course-planner/internal/handler"
	internalmiddleware "github.com/noah-isme/course-planner/internal/middleware"
	"github.com/noah-isme/course-planner/internal/repository"
	"github.com/noah-isme/course-planner/internal/scheduler"
	"github.com/noah-isme/course-planner/internal/service"
	"github.com/noah-isme/course-planner/pkg/cache"
	"github.com/noah-isme/course-planner/pkg/config"
	"github.com/noah-isme/course-planner/pkg/database"
	"github.com/noah-isme/course-planner/pkg/llm"
	"github.com/noah-isme/course-planner/pkg/logger"
	corsmiddleware "github.com/noah-isme/course-planner/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/course-planner/pkg/middleware/requestid"
	"github.com/noah-isme/course-planner/pkg/storage"
)

// @title Course Planner Bridge
// @version 1.0.0
// @description Loopback operation bridge between the planner UI and the scheduling engine.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	input := flag.String("input", "", "course workbook to load at startup")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, collector, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	db, scheduleRepo := openStore(ctx, cfg, logr)
	if db != nil {
		defer db.Close() //nolint:errcheck
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Redis.CacheTTL, logr, cacheRepo.Enabled())

	llmClient := llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		URL:            cfg.LLM.APIURL,
		Version:        cfg.LLM.APIVersion,
		Model:          cfg.LLM.Model,
		MaxTokens:      cfg.LLM.MaxTokens,
		AttemptTimeout: cfg.LLM.AttemptTimeout,
		ConnectTimeout: cfg.LLM.ConnectTimeout,
	}, logr, llm.WithObserver(metricsSvc.ObserveLLMAttempt))
	if !llmClient.Configured() {
		logr.Warn("ANTHROPIC_API_KEY not set, filter requests use the built-in matcher")
	}

	exportStore, err := storage.NewLocalStorage(cfg.Exports.Dir)
	if err != nil {
		logr.Fatal("failed to prepare exports directory", zap.Error(err))
	}

	builder := scheduler.NewBuilder(scheduler.BuilderConfig{
		MaxSchedules:  cfg.Generation.MaxSchedules,
		WarnThreshold: cfg.Generation.WarnThreshold,
	}, scheduler.NewIDGenerator(), logr)

	// Interfaces stay nil when the store is unavailable.
	var (
		writer  service.ScheduleWriter
		querier service.ScheduleQuerier
		store   service.ScheduleStore
		history service.FileHistoryStore
	)
	if scheduleRepo != nil {
		writer, querier, store = scheduleRepo, scheduleRepo, scheduleRepo
		history = repository.NewFileHistoryRepository(db)
	}

	generationSvc := service.NewGenerationService(builder, writer, metricsSvc, validate, cfg.Generation, logr)
	generationSvc.Start(ctx)
	filterSvc := service.NewFilterService(querier, llmClient, cacheSvc, metricsSvc, validate, logr)
	exportSvc := service.NewExportService(exportStore, validate, logr, nil, nil)
	importSvc := service.NewImportService(history, cfg.Validation, validate, logr)

	engine := service.NewEngine(service.EngineDeps{
		Generation: generationSvc,
		Filter:     filterSvc,
		Export:     exportSvc,
		Import:     importSvc,
		Store:      store,
		Logs:       collector,
		Validator:  validate,
		Logger:     logr,
	})

	if *input != "" {
		if _, err := engine.Execute(ctx, dto.OpLoadCourses, mustPayload(dto.LoadCoursesRequest{Path: *input})); err != nil {
			logr.Error("startup course load failed", zap.String("path", *input), zap.Error(err))
		}
	}

	var srv *http.Server
	if cfg.Bridge.Enabled {
		srv, err = newBridge(cfg, logr, engine, metricsSvc)
		if err != nil {
			logr.Fatal("failed to start bridge", zap.Error(err))
		}
	} else {
		logr.Info("bridge disabled")
	}

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logr.Warn("bridge shutdown failed", zap.Error(err))
		}
	}
	generationSvc.Stop()

	if cfg.CleanOnShutdown {
		if _, err := engine.Clean(shutdownCtx); err != nil {
			logr.Warn("schedule cleanup on shutdown failed", zap.Error(err))
		}
	}
}

// openStore opens and migrates the schedule store. Failure is logged and the
// planner runs without persistence, which disables filtering.
func openStore(ctx context.Context, cfg *config.Config, logr *zap.Logger) (*sqlx.DB, *repository.ScheduleRepository) {
	db, err := database.Open(cfg.Database)
	if err != nil {
		logr.Error("schedule store unavailable, running without persistence", zap.Error(err))
		return nil, nil
	}
	dialect := repository.DialectSQLite
	if cfg.Database.Driver == config.DriverPostgres {
		dialect = repository.DialectPostgres
	}
	repo := repository.NewScheduleRepository(db, dialect, cfg.Database.BulkThreshold, logr)
	if err := repo.Migrate(ctx); err != nil {
		logr.Error("schedule store migration failed, running without persistence", zap.Error(err))
		_ = db.Close()
		return nil, nil
	}
	return db, repo
}

func newBridge(cfg *config.Config, logr *zap.Logger, engine *service.Engine, metricsSvc *service.MetricsService) (*http.Server, error) {
	auth, err := service.NewBridgeAuthService(service.BridgeAuthConfig{
		Secret:   cfg.Bridge.Secret,
		TokenTTL: cfg.Bridge.TokenTTL,
	}, logr)
	if err != nil {
		return nil, err
	}
	token, err := auth.Issue()
	if err != nil {
		return nil, err
	}
	if _, err := auth.WriteToken(cfg.AppDataDir, token); err != nil {
		return nil, err
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.Bridge.AllowedOrigins))

	metricsHandler := handler.NewMetricsHandler(metricsSvc)
	r.GET("/health", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	operations := handler.NewOperationHandler(engine)
	api := r.Group("/api/v1", internalmiddleware.Metrics(metricsSvc), internalmiddleware.BridgeAuth(auth))
	api.GET("/operations", operations.List)
	api.POST("/operations/:operation", operations.Execute)

	srv := &http.Server{
		Addr:              cfg.Bridge.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Info("bridge listening", zap.String("addr", cfg.Bridge.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("bridge stopped", zap.Error(err))
		}
	}()
	return srv, nil
}

func mustPayload(v interface{}) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}
