package app

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/osvaldoandrade/aquaq/internal/metrics"
	"github.com/osvaldoandrade/aquaq/internal/middleware"
	"github.com/osvaldoandrade/aquaq/internal/pipeline"
	"github.com/osvaldoandrade/aquaq/internal/providers"
	"github.com/osvaldoandrade/aquaq/internal/ratelimit"
	"github.com/osvaldoandrade/aquaq/internal/reports"
	"github.com/osvaldoandrade/aquaq/internal/tracing"
	"github.com/osvaldoandrade/aquaq/internal/workflow"
	"github.com/osvaldoandrade/aquaq/pkg/config"

	"github.com/gin-gonic/gin"
)

type Application struct {
	Config      *config.Config
	Engine      *gin.Engine
	Manager     workflow.Manager
	Tracker     *reports.Tracker
	Runner      *pipeline.Runner
	Uploads     providers.FileStore
	Sweeper     reports.SweeperService
	Logger      *slog.Logger
	TZ          *time.Location
	RateLimiter ratelimit.Limiter

	TracingShutdown func(context.Context) error

	extractor pipeline.TextExtractor
	parser    pipeline.DataParser
	analyzer  pipeline.Analyzer
	renderer  pipeline.ReportRenderer
}

// ApplicationOption configures the Application
type ApplicationOption func(*Application) error

// WithAnalyzer sets a custom analysis backend
func WithAnalyzer(a pipeline.Analyzer) ApplicationOption {
	return func(app *Application) error {
		app.analyzer = a
		return nil
	}
}

// WithTextExtractor sets a custom PDF text extractor
func WithTextExtractor(e pipeline.TextExtractor) ApplicationOption {
	return func(app *Application) error {
		app.extractor = e
		return nil
	}
}

func NewApplication(cfg *config.Config, opts ...ApplicationOption) (*Application, error) {
	redisClient := providers.NewRedisProvider(cfg.RedisAddr, cfg.RedisPassword)
	limiter := ratelimit.NewTokenBucketLimiter(redisClient)

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		loc = time.FixedZone("UTC", 0)
	}

	level := new(slog.LevelVar)
	switch cfg.LogLevel {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	logger := slog.New(handler).With("service", "aquaq", "env", cfg.Env)
	slog.SetDefault(logger)

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.ReportsDir, 0o755); err != nil {
		return nil, err
	}

	store := workflow.NewSessionStore()
	broadcaster := workflow.NewBroadcaster(logger)
	manager := workflow.NewManager(store, broadcaster, logger, time.Now)

	tracker := reports.NewTracker(
		cfg.ReportsDir,
		time.Duration(cfg.ReportLifetimeMinutes)*time.Minute,
		time.Duration(cfg.PostDownloadCleanupMinutes)*time.Minute,
		logger,
		time.Now,
	)
	sweeper := reports.NewSweeperService(
		tracker,
		manager,
		logger,
		time.Duration(cfg.CleanupIntervalMinutes)*time.Minute,
		time.Duration(cfg.SessionMaxAgeMinutes)*time.Minute,
	)

	metrics.RegisterWorkflowCollector(manager.ActiveCount, tracker.Count)

	engine := gin.New()
	engine.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware(),
		middleware.LoggerMiddleware(logger),
		middleware.CORSMiddleware(cfg.CORSOrigins),
	)
	tracingShutdown, err := tracing.Setup(context.Background(), tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		ServiceName:  "aquaq",
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		OTLPInsecure: cfg.Tracing.OTLPInsecure,
		SampleRatio:  cfg.Tracing.SampleRatio,
	}, logger)
	if err != nil {
		// Tracing is best-effort; the service runs without it.
		logger.Warn("tracing setup failed", "err", err)
		tracingShutdown = func(context.Context) error { return nil }
	}
	if cfg.Tracing.Enabled {
		engine.Use(middleware.TracingMiddleware("aquaq"))
	}

	go sweeper.Start(context.Background())

	app := &Application{
		Config:      cfg,
		Engine:      engine,
		Manager:     manager,
		Tracker:     tracker,
		Uploads:     providers.NewLocalFileStore(cfg.UploadDir),
		Sweeper:     sweeper,
		Logger:      logger,
		TZ:          loc,
		RateLimiter: limiter,

		TracingShutdown: tracingShutdown,
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	if app.extractor == nil {
		app.extractor = pipeline.NewPDFTextExtractor(cfg.PDFToTextPath)
	}
	if app.parser == nil {
		app.parser = pipeline.NewRegexDataParser()
	}
	if app.analyzer == nil {
		app.analyzer = pipeline.NewOpenRouterAnalyzer(pipeline.AnalyzerConfig{
			APIKey:             cfg.OpenRouter.APIKey,
			BaseURL:            cfg.OpenRouter.BaseURL,
			Model:              cfg.OpenRouter.Model,
			FallbackModel:      cfg.OpenRouter.FallbackModel,
			Temperature:        cfg.OpenRouter.Temperature,
			MaxTokens:          cfg.OpenRouter.MaxTokens,
			Timeout:            time.Duration(cfg.OpenRouter.TimeoutSeconds) * time.Second,
			MaxAttempts:        cfg.OpenRouter.MaxAttempts,
			PromptPath:         cfg.OpenRouter.PromptPath,
			BackoffPolicy:      cfg.Backoff.Policy,
			BackoffBaseSeconds: cfg.Backoff.BaseSeconds,
			BackoffMaxSeconds:  cfg.Backoff.MaxSeconds,
		}, logger)
	}
	if app.renderer == nil {
		app.renderer = pipeline.NewHTMLReportRenderer(cfg.ReportsDir, time.Now)
	}
	app.Runner = pipeline.NewRunner(manager, tracker, app.extractor, app.parser, app.analyzer, app.renderer, logger)

	return app, nil
}
