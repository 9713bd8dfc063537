package extract

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/document-extractor/constants"
	"github.com/joseph-ayodele/document-extractor/internal/common"
	"github.com/joseph-ayodele/document-extractor/internal/ingest"
	"github.com/joseph-ayodele/document-extractor/internal/ocr"
)

// Config for the per-format extractors.
type Config struct {
	PDF          PDFConfig
	MaxDimension int
}

// Dispatcher routes a document to the extractor for its kind.
type Dispatcher struct {
	byKind map[constants.DocumentKind]Extractor
	logger *slog.Logger
}

func NewDispatcher(cfg Config, runner ocr.Runner, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		byKind: map[constants.DocumentKind]Extractor{
			constants.KindPDF:   NewPDFExtractor(cfg.PDF, runner, logger),
			constants.KindDOCX:  NewDOCXExtractor(),
			constants.KindImage: NewImageExtractor(cfg.MaxDimension),
		},
		logger: logger,
	}
}

// Register replaces the extractor used for kind.
func (d *Dispatcher) Register(kind constants.DocumentKind, e Extractor) {
	d.byKind[kind] = e
}

func (d *Dispatcher) Extract(ctx context.Context, doc ingest.LoadedDocument) (Content, error) {
	start := time.Now()
	e, ok := d.byKind[doc.Kind]
	if !ok {
		return Content{}, fmt.Errorf("no extractor for %q: %w", doc.Kind, common.ErrInvalidInput)
	}
	d.logger.Debug("extract.start", "filename", doc.Filename, "kind", doc.Kind, "size", doc.Size)
	c, err := e.Extract(ctx, doc)
	c.Duration = time.Since(start)
	if err != nil {
		d.logger.Error("extract.failed", "filename", doc.Filename, "kind", doc.Kind, "error", err)
		return c, err
	}
	d.logger.Info("extract.ok",
		"filename", doc.Filename,
		"method", c.Method,
		"pages", c.Pages,
		"text_len", len(c.Text),
		"images", len(c.Images),
		"duration_ms", c.Duration.Milliseconds(),
	)
	return c, nil
}
