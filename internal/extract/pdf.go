package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/joseph-ayodele/document-extractor/internal/ingest"
	"github.com/joseph-ayodele/document-extractor/internal/ocr"
)

// PDFConfig controls text-layer reading and page rendering.
type PDFConfig struct {
	Pdftoppm      string // binary name or absolute path; default "pdftoppm"
	DPI           int    // default 200
	MaxPages      int    // 0 = no limit
	MinTextLength int    // render pages when the text layer is shorter; default 100
}

// PDFExtractor reads the embedded text layer and, when it is too thin to be
// useful, renders pages to PNG with pdftoppm for OCR.
type PDFExtractor struct {
	cfg    PDFConfig
	runner ocr.Runner
	logger *slog.Logger
}

func NewPDFExtractor(cfg PDFConfig, runner ocr.Runner, logger *slog.Logger) *PDFExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 200
	}
	if cfg.MinTextLength <= 0 {
		cfg.MinTextLength = 100
	}
	if runner == nil {
		runner = ocr.NewExecRunner(logger)
	}
	return &PDFExtractor{cfg: cfg, runner: runner, logger: logger}
}

func (e *PDFExtractor) Extract(ctx context.Context, doc ingest.LoadedDocument) (Content, error) {
	out := Content{Method: MethodPDFText}

	text, pages, err := readTextLayer(doc.Content)
	if err != nil {
		// Scanned or slightly broken files often still render fine.
		e.logger.Warn("pdf.text_layer.failed", "filename", doc.Filename, "error", err)
		out.Warnings = append(out.Warnings, "text layer: "+err.Error())
	}
	out.Text = text
	out.Pages = pages

	if len(strings.TrimSpace(text)) >= e.cfg.MinTextLength {
		return out, nil
	}

	imgs, warns, err := e.render(ctx, doc.Content)
	out.Warnings = append(out.Warnings, warns...)
	if err != nil {
		if out.Text != "" {
			e.logger.Warn("pdf.render.failed", "filename", doc.Filename, "error", err)
			out.Warnings = append(out.Warnings, "render: "+err.Error())
			return out, nil
		}
		return out, fmt.Errorf("render pdf: %w", err)
	}
	out.Images = imgs
	out.Method = MethodPDFRender
	if out.Pages == 0 {
		out.Pages = len(imgs)
	}
	return out, nil
}

// readTextLayer returns the plain text of every page. The pdf package can
// panic on malformed input, so that is reported as an error.
func readTextLayer(content []byte) (text string, pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", 0, fmt.Errorf("open pdf: %w", err)
	}
	pages = reader.NumPage()
	r, err := reader.GetPlainText()
	if err != nil {
		return "", pages, fmt.Errorf("read text: %w", err)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", pages, fmt.Errorf("read text: %w", err)
	}
	return strings.TrimSpace(string(b)), pages, nil
}

func (e *PDFExtractor) render(ctx context.Context, content []byte) ([]ocr.Image, []string, error) {
	tmpDir, err := os.MkdirTemp("", "docex-pp-*")
	if err != nil {
		return nil, nil, err
	}
	defer func(path string) {
		if err := os.RemoveAll(path); err != nil {
			e.logger.Warn("failed to remove temp dir", "path", path, "error", err)
		}
	}(tmpDir)

	in := filepath.Join(tmpDir, "in.pdf")
	if err := os.WriteFile(in, content, 0o600); err != nil {
		return nil, nil, err
	}
	prefix := filepath.Join(tmpDir, "page")
	args := []string{"-r", strconv.Itoa(e.cfg.DPI), "-png"}
	if e.cfg.MaxPages > 0 {
		args = append(args, "-l", strconv.Itoa(e.cfg.MaxPages))
	}
	args = append(args, in, prefix)
	if _, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, args...); err != nil {
		return nil, []string{strings.TrimSpace(string(errb))}, err
	}

	// prefix-1.png, prefix-2.png, ... (zero padded for long documents)
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return nil, []string{"pdftoppm produced no images"}, fmt.Errorf("no pages rendered")
	}

	imgs := make([]ocr.Image, 0, len(matches))
	for i, m := range matches {
		data, err := os.ReadFile(m)
		if err != nil {
			return nil, nil, fmt.Errorf("read page %d: %w", i+1, err)
		}
		imgs = append(imgs, ocr.Image{ID: fmt.Sprintf("page-%d", i+1), Data: data, Index: i})
	}
	return imgs, nil, nil
}
