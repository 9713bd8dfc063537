// Package gosseract provides the in-process OCR engine backed by libtesseract.
package gosseract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/joseph-ayodele/document-extractor/internal/ocr"
)

type Config struct {
	Languages   []string // default ["eng"]
	TessdataDir string
}

// Engine implements ocr.Engine using a fresh gosseract client per image, so
// one Engine may be shared across goroutines.
type Engine struct {
	cfg           Config
	clientFactory func() *gosseract.Client
	logger        *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Languages) == 0 {
		cfg.Languages = []string{"eng"}
	}
	return &Engine{cfg: cfg, clientFactory: gosseract.NewClient, logger: logger}
}

func (e *Engine) Name() string { return "tesseract" }

func (e *Engine) Recognize(ctx context.Context, img ocr.Image) (ocr.Result, error) {
	if err := ctx.Err(); err != nil {
		return ocr.Result{}, err
	}
	c := e.clientFactory()
	defer func() {
		if err := c.Close(); err != nil {
			e.logger.Warn("ocr.gosseract.close_error", "error", err)
		}
	}()

	if e.cfg.TessdataDir != "" {
		if err := c.SetTessdataPrefix(e.cfg.TessdataDir); err != nil {
			return ocr.Result{}, fmt.Errorf("set tessdata prefix: %w", err)
		}
	}
	if err := c.SetLanguage(e.cfg.Languages...); err != nil {
		return ocr.Result{}, fmt.Errorf("set languages: %w", err)
	}
	if err := c.SetImageFromBytes(img.Data); err != nil {
		return ocr.Result{}, fmt.Errorf("set image: %w", err)
	}
	text, err := c.Text()
	if err != nil {
		return ocr.Result{}, fmt.Errorf("recognize text: %w", err)
	}

	words, err := extractWords(c)
	if err != nil {
		return ocr.Result{}, fmt.Errorf("bounding boxes: %w", err)
	}
	res := ocr.NewResult(ocr.Normalize(strings.TrimSpace(text)), words, e.Name())
	e.logger.Debug("ocr.gosseract.ok", "image", img.ID, "words", len(words), "confidence", res.Confidence)
	return res, nil
}

// extractWords keeps words with positive confidence, scaled to 0..1.
func extractWords(c *gosseract.Client) ([]ocr.Word, error) {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, err
	}
	words := make([]ocr.Word, 0, len(boxes))
	for _, b := range boxes {
		if b.Confidence <= 0 || strings.TrimSpace(b.Word) == "" {
			continue
		}
		words = append(words, ocr.Word{
			Text:       b.Word,
			Confidence: b.Confidence / 100.0,
			Box:        ocr.BBox{X1: b.Box.Min.X, Y1: b.Box.Min.Y, X2: b.Box.Max.X, Y2: b.Box.Max.Y},
		})
	}
	return words, nil
}
