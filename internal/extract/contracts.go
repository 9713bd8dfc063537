package extract

import (
	"context"
	"time"

	"github.com/joseph-ayodele/document-extractor/internal/ingest"
	"github.com/joseph-ayodele/document-extractor/internal/ocr"
)

// Extractor turns a loaded document into text and/or page images.
type Extractor interface {
	Extract(ctx context.Context, doc ingest.LoadedDocument) (Content, error)
}

// Content is what a format extractor produced. Text may be empty when the
// document only has images; Images may be empty when the text layer was
// good enough.
type Content struct {
	Text     string
	Images   []ocr.Image
	Pages    int
	Method   string // "pdf-text" | "pdf-render" | "docx" | "image"
	Duration time.Duration
	Warnings []string
	Metadata map[string]string
}

const (
	MethodPDFText   = "pdf-text"
	MethodPDFRender = "pdf-render"
	MethodDOCX      = "docx"
	MethodImage     = "image"
)
