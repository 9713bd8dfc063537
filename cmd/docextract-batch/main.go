package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joseph-ayodele/document-extractor/internal/app"
	"github.com/joseph-ayodele/document-extractor/internal/common"
	"github.com/joseph-ayodele/document-extractor/internal/export"
	"github.com/joseph-ayodele/document-extractor/internal/ingest"
	"github.com/joseph-ayodele/document-extractor/internal/pipeline"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		dir        = flag.String("dir", "", "directory of documents to process (required)")
		out        = flag.String("out", "", "write results to this XLSX file")
		hint       = flag.String("type", "", "document type hint applied to every file")
		inmem      = flag.Bool("inmem", false, "use an in-memory sqlite database instead of the configured one")
		watch      = flag.Bool("watch", false, "keep running and process new files as they appear")
		skipHidden = flag.Bool("skip-hidden", true, "skip dot files and dot directories")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}

	cfg, err := common.LoadConfig()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(2)
	}
	logger := common.NewLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, app.Options{InMemoryDB: *inmem}, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	paths, stats, err := ingest.ScanDirectory(ctx, *dir, nil, *skipHidden)
	if err != nil {
		logger.Error("scan failed", "dir", *dir, "error", err)
		os.Exit(1)
	}
	logger.Info("scan.done", "dir", *dir, "scanned", stats.Scanned, "matched", stats.Matched, "skipped", stats.Skipped)

	var responses []pipeline.ExtractionResponse
	start := time.Now()
	for chunk := range chunks(paths, cfg.Batch.MaxDocuments) {
		items := make([]pipeline.BatchItem, len(chunk))
		for i, p := range chunk {
			items[i] = pipeline.BatchItem{Filename: p, Path: p, Hint: *hint}
		}
		res, err := a.Batch.Run(ctx, items)
		if err != nil {
			logger.Error("batch failed", "error", err)
			os.Exit(1)
		}
		for _, r := range res.Responses() {
			printResponse(r)
			responses = append(responses, r)
		}
	}
	logger.Info("batch.done", "documents", len(responses), "elapsed_ms", time.Since(start).Milliseconds())

	if *watch {
		responses = append(responses, watchLoop(ctx, a, *dir, *hint, *skipHidden, logger)...)
	}

	if *out != "" {
		xlsx, err := export.NewService(a.Store, logger).WriteResponses(responses)
		if err != nil {
			logger.Error("export failed", "error", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*out, xlsx, 0o644); err != nil {
			logger.Error("write export failed", "path", *out, "error", err)
			os.Exit(1)
		}
		logger.Info("export.written", "path", *out, "documents", len(responses))
	}
}

// watchLoop processes files created under dir until ctx is cancelled.
func watchLoop(ctx context.Context, a *app.App, dir, hint string, skipHidden bool, logger *slog.Logger) []pipeline.ExtractionResponse {
	events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:      []string{dir},
		SkipHidden: skipHidden,
		Debounce:   500 * time.Millisecond,
	}, logger)
	if err != nil {
		logger.Error("watch failed", "dir", dir, "error", err)
		return nil
	}
	logger.Info("watch.started", "dir", dir)

	var out []pipeline.ExtractionResponse
	for {
		select {
		case path, ok := <-events:
			if !ok {
				return out
			}
			res := a.Orchestrator.ProcessPath(ctx, path, hint)
			printResponse(res.Response)
			out = append(out, res.Response)
		case err, ok := <-errs:
			if ok {
				logger.Warn("watch.error", "error", err)
			}
		case <-ctx.Done():
			return out
		}
	}
}

func chunks(paths []string, size int) func(func([]string) bool) {
	if size <= 0 {
		size = pipeline.DefaultMaxBatch
	}
	return func(yield func([]string) bool) {
		for i := 0; i < len(paths); i += size {
			if !yield(paths[i:min(i+size, len(paths))]) {
				return
			}
		}
	}
}

func printResponse(r pipeline.ExtractionResponse) {
	b, err := json.Marshal(r)
	if err != nil {
		printError("encode %s: %v\n", r.DocumentID, err)
		return
	}
	fmt.Println(string(b))
}
