package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joseph-ayodele/document-extractor/internal/app"
	"github.com/joseph-ayodele/document-extractor/internal/common"
	"github.com/joseph-ayodele/document-extractor/internal/extract"
	"github.com/joseph-ayodele/document-extractor/internal/ocr"
)

func main() {
	force := flag.Bool("force", false, "run OCR even when the text layer is long enough")
	flag.Parse()

	cfg, err := common.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	logger := common.NewLogger(cfg.Log, os.Stderr)

	if flag.NArg() != 1 {
		logger.Error("usage", "cmd", "runocr [-force] <file>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	a, err := app.Build(ctx, cfg, app.Options{NoDatabase: true}, logger)
	if err != nil {
		logger.Error("init", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	doc, err := a.Loader.LoadPath(path)
	if err != nil {
		logger.Error("load", "path", path, "error", err)
		os.Exit(1)
	}
	pdfCfg := extract.PDFConfig{Pdftoppm: cfg.OCR.Pdftoppm, DPI: cfg.OCR.DPI, MaxPages: cfg.OCR.MaxPages, MinTextLength: cfg.Pipeline.MinTextLength}
	if *force {
		pdfCfg.MinTextLength = int(^uint(0) >> 1)
	}
	content, err := extract.NewDispatcher(extract.Config{PDF: pdfCfg}, ocr.NewExecRunner(logger), logger).Extract(ctx, *doc)
	if err != nil {
		logger.Error("extract", "path", path, "error", err)
		os.Exit(1)
	}

	start := time.Now()
	if len(content.Images) == 0 {
		logger.Info("text layer only", "method", content.Method, "pages", content.Pages, "chars", len(content.Text))
		fmt.Println(content.Text)
		return
	}
	res, err := a.OCR.ProcessAll(ctx, content.Images)
	if err != nil {
		logger.Error("ocr failed", "path", path, "error", err, "duration_ms", time.Since(start).Milliseconds())
		os.Exit(1)
	}
	logger.Info("ocr ok",
		"engine", res.Engine,
		"confidence", res.Confidence,
		"pages", len(content.Images),
		"words", len(res.Words),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	fmt.Println(res.Text)
	fmt.Printf("\n# confidence %.3f (%s)\n", res.Confidence, res.Engine)
}
