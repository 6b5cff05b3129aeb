package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/docvault/docvault/internal/analyze"
	"github.com/docvault/docvault/internal/classify"
	"github.com/docvault/docvault/internal/common"
	"github.com/docvault/docvault/internal/export"
	"github.com/docvault/docvault/internal/insights"
	"github.com/docvault/docvault/internal/llm/openai"
	"github.com/docvault/docvault/internal/ocr"
	"github.com/docvault/docvault/internal/pending"
	"github.com/docvault/docvault/internal/pipeline"
	"github.com/docvault/docvault/internal/prompts"
	"github.com/docvault/docvault/internal/repository"
	"github.com/docvault/docvault/internal/server"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if cfg.Database.DSN == "" {
		logger.Error("DB_URL env var is required")
		os.Exit(1)
	}
	if cfg.LLM.APIKey == "" {
		logger.Error("OPENAI_API_KEY env var is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, pool, err := repository.Open(ctx, cfg.Database)
	if err != nil {
		logger.Error("database connect failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	completer := openai.NewClient(openai.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	}, logger)

	extractor := ocr.NewExtractor(ocr.Config{
		Pdftotext:         cfg.OCR.Pdftotext,
		Pdftoppm:          cfg.OCR.Pdftoppm,
		Tesseract:         cfg.OCR.Tesseract,
		Magick:            cfg.OCR.Magick,
		TesseractLang:     cfg.OCR.TesseractLang,
		DPI:               cfg.OCR.DPI,
		MaxPages:          cfg.OCR.MaxPages,
		SubprocessTimeout: cfg.OCR.SubprocessTimeout,
	}, logger)

	classifier := classify.New(completer, classify.Config{
		Model:       cfg.LLM.Model,
		MaxChars:    cfg.Classify.MaxChars,
		Temperature: cfg.Classify.Temperature,
		Timeout:     cfg.Classify.Timeout,
	}, logger)

	analyzer := analyze.New(completer, classifier, analyze.Config{
		Model:              cfg.LLM.Model,
		MaxChars:           cfg.Analyze.MaxChars,
		Temperature:        cfg.Analyze.Temperature,
		Timeout:            cfg.Analyze.Timeout,
		MismatchConfidence: cfg.Analyze.MismatchConfidence,
	}, logger)

	templates := prompts.NewRepository(db)
	generator := insights.New(completer, templates, insights.Config{
		Model:          cfg.LLM.Model,
		MaxChars:       cfg.Insights.MaxChars,
		Temperature:    cfg.Insights.Temperature,
		Timeout:        cfg.Insights.Timeout,
		MaxTokens:      cfg.Insights.MaxTokens,
		RetryMaxTokens: cfg.Insights.RetryMaxTokens,
	}, logger)

	pendingStore, cleanup, err := buildPendingStore(ctx, cfg.Pending, logger)
	if err != nil {
		logger.Error("pending store init failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	store := repository.NewStore(db)
	processor := pipeline.New(extractor, analyzer, generator, pendingStore, store,
		pipeline.Config{ReclassifyConfidence: cfg.Analyze.MismatchConfidence}, logger)
	exporter := export.NewService(store, logger)

	health := func(ctx context.Context) error {
		return repository.HealthCheck(ctx, db)
	}

	srv := server.New(processor, exporter, health, server.Options{
		UploadDir: cfg.Server.UploadDir,
	}, logger)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Router(),
	}

	go func() {
		logger.Info("http server listening", "addr", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown incomplete", "error", err)
	}
	logger.Info("stopped")
}

func buildPendingStore(ctx context.Context, cfg common.PendingConfig, logger *slog.Logger) (pending.Store, func(), error) {
	switch cfg.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, nil, err
		}
		logger.Info("pending store ready", "backend", "redis", "addr", cfg.RedisAddr)
		return pending.NewRedisStore(client, cfg.TTL), func() { _ = client.Close() }, nil
	default:
		logger.Info("pending store ready", "backend", "memory", "ttl", cfg.TTL)
		s := pending.NewMemoryStore(cfg.TTL)
		return s, s.Close, nil
	}
}
