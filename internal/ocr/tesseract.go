package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// TesseractConfig configures the tesseract CLI engine.
type TesseractConfig struct {
	Binary      string   // binary name or absolute path; if empty -> "tesseract"
	Languages   []string // default ["eng"]
	TessdataDir string
	PSM         int // e.g., 6 is good for uniform block of text
	OEM         int // 1 = LSTM; leave 0 to use default
}

// TesseractCLI recognizes images by shelling out to tesseract in TSV mode.
type TesseractCLI struct {
	cfg    TesseractConfig
	runner Runner
	logger *slog.Logger
}

func NewTesseractCLI(cfg TesseractConfig, runner Runner, logger *slog.Logger) *TesseractCLI {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Binary == "" {
		cfg.Binary = "tesseract"
	}
	if len(cfg.Languages) == 0 {
		cfg.Languages = []string{"eng"}
	}
	if runner == nil {
		runner = NewExecRunner(logger)
	}
	return &TesseractCLI{cfg: cfg, runner: runner, logger: logger}
}

func (e *TesseractCLI) Name() string { return "tesseract-cli" }

func (e *TesseractCLI) Recognize(ctx context.Context, img Image) (Result, error) {
	if len(img.Data) == 0 {
		return Result{}, fmt.Errorf("tesseract: empty image %q", img.ID)
	}
	f, err := os.CreateTemp("", "docex-ocr-*.img")
	if err != nil {
		return Result{}, fmt.Errorf("tesseract: temp file: %w", err)
	}
	path := f.Name()
	defer func() {
		if err := os.Remove(path); err != nil {
			e.logger.Warn("ocr.tesseract.cleanup_failed", "path", path, "error", err)
		}
	}()
	if _, err := f.Write(img.Data); err != nil {
		_ = f.Close()
		return Result{}, fmt.Errorf("tesseract: write temp: %w", err)
	}
	if err := f.Close(); err != nil {
		return Result{}, fmt.Errorf("tesseract: close temp: %w", err)
	}

	// tesseract <file> stdout -l <lang> [opts] tsv
	args := []string{path, "stdout", "-l", strings.Join(e.cfg.Languages, "+")}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(e.cfg.PSM))
	}
	if e.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(e.cfg.OEM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	args = append(args, "tsv")

	out, errb, err := e.runner.Run(ctx, e.cfg.Binary, args...)
	if err != nil {
		return Result{}, fmt.Errorf("tesseract: %w: %s", err, truncate(strings.TrimSpace(string(errb)), 512))
	}
	words := ParseTSV(string(out))
	text := Normalize(TextFromWords(words, DefaultLineThreshold))
	res := NewResult(text, words, e.Name())
	e.logger.Debug("ocr.tesseract.ok", "image", img.ID, "words", len(words), "confidence", res.Confidence)
	return res, nil
}

// ParseTSV extracts word-level rows (level 5) with positive confidence from
// tesseract TSV output. Confidence is scaled from 0..100 to 0..1.
func ParseTSV(tsv string) []Word {
	var words []Word
	for i, ln := range strings.Split(tsv, "\n") {
		if i == 0 || strings.TrimSpace(ln) == "" {
			continue // header
		}
		cols := strings.Split(strings.TrimRight(ln, "\r"), "\t")
		if len(cols) < 12 || cols[0] != "5" {
			continue
		}
		conf, err := strconv.ParseFloat(cols[10], 64)
		if err != nil || conf <= 0 {
			continue
		}
		text := strings.TrimSpace(cols[11])
		if text == "" {
			continue
		}
		left, _ := strconv.Atoi(cols[6])
		top, _ := strconv.Atoi(cols[7])
		width, _ := strconv.Atoi(cols[8])
		height, _ := strconv.Atoi(cols[9])
		words = append(words, Word{
			Text:       text,
			Confidence: clamp01(conf / 100.0),
			Box:        BBox{X1: left, Y1: top, X2: left + width, Y2: top + height},
		})
	}
	return words
}
