// Package app wires configuration into a ready-to-use extraction stack.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/joseph-ayodele/document-extractor/internal/async"
	"github.com/joseph-ayodele/document-extractor/internal/cache"
	"github.com/joseph-ayodele/document-extractor/internal/common"
	"github.com/joseph-ayodele/document-extractor/internal/extract"
	"github.com/joseph-ayodele/document-extractor/internal/ingest"
	"github.com/joseph-ayodele/document-extractor/internal/llm"
	"github.com/joseph-ayodele/document-extractor/internal/llm/gemini"
	"github.com/joseph-ayodele/document-extractor/internal/llm/ollama"
	"github.com/joseph-ayodele/document-extractor/internal/llm/openai"
	"github.com/joseph-ayodele/document-extractor/internal/ocr"
	"github.com/joseph-ayodele/document-extractor/internal/ocr/gosseract"
	"github.com/joseph-ayodele/document-extractor/internal/pipeline"
	"github.com/joseph-ayodele/document-extractor/internal/repository"
	"github.com/joseph-ayodele/document-extractor/internal/templates"
)

// Options adjust Build for a particular binary.
type Options struct {
	InMemoryDB bool // sqlite in memory regardless of the configured DSN
	NoDatabase bool
	Registerer prometheus.Registerer
}

// App holds the long-lived components. Close releases them.
type App struct {
	Config       *common.Config
	Loader       *ingest.Loader
	OCR          *ocr.Pipeline
	LLM          *llm.Pipeline
	Ollama       *ollama.Client
	Store        *repository.Store
	Cache        cache.Cache
	Pool         *async.Pool
	Orchestrator *pipeline.Orchestrator
	Batch        *pipeline.BatchRunner
	logger       *slog.Logger
}

// Build constructs every component named by cfg. Engines that cannot be
// configured are replaced by unavailable sentinels instead of failing.
func Build(ctx context.Context, cfg *common.Config, opts Options, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, logger: logger}
	runner := ocr.NewExecRunner(logger)

	a.Loader = ingest.NewLoader(cfg.Pipeline.MaxFileSizeBytes(), logger)
	a.OCR = ocr.NewPipeline(
		ocrEngine(cfg.OCR, cfg.OCR.Primary, runner, logger),
		ocrEngine(cfg.OCR, cfg.OCR.Fallback, runner, logger),
		cfg.OCRFallbackThreshold(),
		logger,
	)

	a.Ollama = ollama.NewClient(ollama.Config{
		Host:        cfg.LLM.OllamaHost,
		Model:       cfg.LLM.OllamaModel,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}, logger)
	a.LLM = llm.NewPipeline(a.Ollama, fallbackLLM(cfg.LLM, logger), llm.PipelineConfig{
		Threshold:               cfg.LLMFallbackThreshold(),
		FallbackOnLowConfidence: cfg.LLM.FallbackOnLowConfidence,
	}, logger)

	if !opts.NoDatabase {
		dbCfg := repository.Config{
			DSN:              cfg.Database.DSN,
			SQLitePath:       cfg.Database.SQLitePath,
			MaxConns:         cfg.Database.MaxConns,
			MinConns:         cfg.Database.MinConns,
			MaxConnLifetime:  cfg.Database.MaxConnLifetime,
			MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
			DialTimeout:      cfg.Database.DialTimeout,
			StatementTimeout: cfg.Database.StatementTimeout,
		}
		if opts.InMemoryDB {
			dbCfg.DSN, dbCfg.SQLitePath = "", ""
		}
		store, err := repository.Open(ctx, dbCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		a.Store = store
		if err := store.EnsureSchema(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}

	c, err := cache.New(ctx, cfg.Cache, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open cache: %w", err)
	}
	a.Cache = c

	var metrics *pipeline.Metrics
	if opts.Registerer != nil {
		metrics = pipeline.NewMetrics(opts.Registerer)
	}
	deps := pipeline.Deps{
		Loader: a.Loader,
		Extractor: extract.NewDispatcher(extract.Config{
			PDF: extract.PDFConfig{
				Pdftoppm:      cfg.OCR.Pdftoppm,
				DPI:           cfg.OCR.DPI,
				MaxPages:      cfg.OCR.MaxPages,
				MinTextLength: cfg.Pipeline.MinTextLength,
			},
		}, runner, logger),
		OCR:      a.OCR,
		LLM:      a.LLM,
		Registry: templates.Default(),
		Metrics:  metrics,
	}
	if a.Cache != nil {
		deps.Cache = a.Cache
	}
	var jobs pipeline.JobTracker
	if a.Store != nil {
		deps.Sink = a.Store
		jobs = a.Store
	}
	a.Orchestrator = pipeline.NewOrchestrator(deps, pipeline.Config{
		ConfidenceThreshold:  cfg.Pipeline.ConfidenceThreshold,
		MinTextLength:        cfg.Pipeline.MinTextLength,
		OCRDiscountThreshold: cfg.Pipeline.OCRDiscountThreshold,
	}, logger)

	a.Pool = async.NewPool(logger,
		async.WithWorkers(cfg.Batch.Workers),
		async.WithQueueSize(cfg.Batch.QueueSize),
		async.WithJobTimeout(cfg.Batch.DocumentTimeout),
	)
	a.Batch = pipeline.NewBatchRunner(a.Orchestrator, a.Pool, jobs, cfg.Batch.MaxDocuments, logger)

	logger.Info("app.ready",
		"ocr_fallback", a.OCR.HasFallback(),
		"llm_fallback", a.LLM.HasFallback(),
		"database", a.Store != nil,
		"cache", cfg.Cache.Backend,
	)
	return a, nil
}

// Close stops the worker pool and closes the cache and database.
func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Shutdown(context.Background())
	}
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			a.logger.Warn("app.cache.close_failed", "error", err)
		}
	}
	if a.Store != nil {
		a.Store.Close()
	}
}

func ocrEngine(cfg common.OCRConfig, name string, runner ocr.Runner, logger *slog.Logger) ocr.Engine {
	switch name {
	case "gosseract":
		return gosseract.New(gosseract.Config{Languages: cfg.Languages, TessdataDir: cfg.TessdataDir}, logger)
	case "tesseract":
		return ocr.NewTesseractCLI(ocr.TesseractConfig{
			Binary:      cfg.Tesseract,
			Languages:   cfg.Languages,
			TessdataDir: cfg.TessdataDir,
			PSM:         6,
		}, runner, logger)
	default:
		return ocr.Unavailable("none", errors.New("no OCR engine configured"))
	}
}

func fallbackLLM(cfg common.LLMConfig, logger *slog.Logger) llm.Engine {
	switch cfg.FallbackProvider {
	case "gemini":
		c, err := gemini.NewClient(gemini.Config{
			APIKey:            cfg.GeminiAPIKey,
			BaseURL:           cfg.GeminiBaseURL,
			Model:             cfg.GeminiModel,
			Temperature:       cfg.Temperature,
			Timeout:           cfg.Timeout,
			RequestsPerSecond: cfg.GeminiRPS,
		}, logger)
		if err != nil {
			logger.Warn("llm.fallback.unavailable", "provider", "gemini", "error", err)
			return llm.Unavailable("gemini/"+cfg.GeminiModel, err)
		}
		return c
	case "openai":
		c, err := openai.NewClient(openai.Config{
			APIKey:      cfg.OpenAIAPIKey,
			BaseURL:     cfg.OpenAIBaseURL,
			Model:       cfg.OpenAIModel,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}, logger)
		if err != nil {
			logger.Warn("llm.fallback.unavailable", "provider", "openai", "error", err)
			return llm.Unavailable("openai/"+cfg.OpenAIModel, err)
		}
		return c
	default:
		return llm.Unavailable("none", errors.New("no fallback LLM configured"))
	}
}
