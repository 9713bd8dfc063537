package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/document-extractor/constants"
	"github.com/joseph-ayodele/document-extractor/internal/common"
	"github.com/joseph-ayodele/document-extractor/internal/extract"
	"github.com/joseph-ayodele/document-extractor/internal/ingest"
	"github.com/joseph-ayodele/document-extractor/internal/llm"
	"github.com/joseph-ayodele/document-extractor/internal/ocr"
	"github.com/joseph-ayodele/document-extractor/internal/templates"
)

// TextRecognizer runs OCR over page images. *ocr.Pipeline implements it.
type TextRecognizer interface {
	ProcessAll(ctx context.Context, imgs []ocr.Image) (ocr.Result, error)
}

// FieldExtractor fills a template schema from text. *llm.Pipeline and every
// llm.Engine implement it.
type FieldExtractor interface {
	Extract(ctx context.Context, req llm.Request) (llm.ExtractionResult, error)
}

// ResultCache stores encoded results keyed by content hash and hint.
type ResultCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// DocumentSink receives every finished result, e.g. for persistence.
type DocumentSink interface {
	SaveDocument(ctx context.Context, res ProcessingResult) error
}

// Config holds the orchestrator's decision thresholds.
type Config struct {
	ConfidenceThreshold  float64 // default 0.8
	MinTextLength        int     // default 100
	OCRDiscountThreshold float64 // default 0.7
}

// Deps are the collaborators of an Orchestrator. Loader, Extractor, LLM and
// Registry are required.
type Deps struct {
	Loader    *ingest.Loader
	Extractor extract.Extractor
	OCR       TextRecognizer
	LLM       FieldExtractor
	Registry  *templates.Registry
	Cache     ResultCache
	Sink      DocumentSink
	Metrics   *Metrics
}

// Orchestrator runs one document through extraction, OCR, classification,
// LLM extraction, post-processing, validation and status assignment. It
// holds no per-document state and is safe for concurrent use when its
// collaborators are.
type Orchestrator struct {
	deps   Deps
	cfg    Config
	logger *slog.Logger
}

func NewOrchestrator(deps Deps, cfg Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = 0.8
	}
	if cfg.MinTextLength <= 0 {
		cfg.MinTextLength = 100
	}
	if cfg.OCRDiscountThreshold <= 0 {
		cfg.OCRDiscountThreshold = DefaultOCRDiscountThreshold
	}
	if deps.Loader == nil {
		deps.Loader = ingest.NewLoader(0, logger)
	}
	if deps.Registry == nil {
		deps.Registry = templates.Default()
	}
	return &Orchestrator{deps: deps, cfg: cfg, logger: logger}
}

// Registry exposes the template registry, for listing templates.
func (o *Orchestrator) Registry() *templates.Registry { return o.deps.Registry }

// ProcessBytes loads content and processes it. Load failures (empty input,
// oversize, unsupported type) produce a failed result without touching any
// engine.
func (o *Orchestrator) ProcessBytes(ctx context.Context, content []byte, filename, hint string) ProcessingResult {
	start := time.Now()
	doc, err := o.deps.Loader.LoadBytes(filename, content)
	if err != nil {
		return o.finish(ctx, o.failed(uuid.NewString(), filename, StageReceived, err, start), start, false)
	}
	return o.Process(ctx, doc, hint)
}

// ProcessPath loads a file from disk and processes it.
func (o *Orchestrator) ProcessPath(ctx context.Context, path, hint string) ProcessingResult {
	start := time.Now()
	doc, err := o.deps.Loader.LoadPath(path)
	if err != nil {
		return o.finish(ctx, o.failed(uuid.NewString(), path, StageReceived, err, start), start, false)
	}
	return o.Process(ctx, doc, hint)
}

// Process runs the state machine for one loaded document and always returns
// exactly one terminal result. Panics and errors in any stage become a
// failed result with a PROCESSING_ERROR.
func (o *Orchestrator) Process(ctx context.Context, doc *ingest.LoadedDocument, hint string) (res ProcessingResult) {
	start := time.Now()
	id := uuid.NewString()
	ctx = common.WithDocumentID(ctx, id)
	filename := ""
	if doc != nil {
		filename = doc.Filename
		ctx = common.WithContentHash(ctx, doc.ContentHash)
	}
	stage := StageReceived

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("pipeline.panic", "document_id", id, "stage", stage, "panic", r)
			res = o.failed(id, filename, stage, fmt.Errorf("%v", r), start)
		}
		res = o.finish(ctx, res, start, doc != nil)
	}()

	if doc == nil {
		return o.failed(id, filename, stage, fmt.Errorf("no document: %w", common.ErrInvalidInput), start)
	}
	if cached, ok := o.fromCache(ctx, doc, hint); ok {
		cached.DocumentID = id
		cached.Response.DocumentID = id
		cached.Response.Filename = doc.Filename
		cached.Response.CreatedAt = time.Now().UTC()
		cached.Response.ProcessingTimeMs = time.Since(start).Milliseconds()
		cached.Cached = true
		return cached
	}
	o.logger.Info("pipeline.start", "document_id", id, "filename", doc.Filename, "kind", doc.Kind, "size", doc.Size)

	// received -> text extracted
	content, err := o.deps.Extractor.Extract(ctx, *doc)
	if err != nil {
		return o.failed(id, doc.Filename, stage, err, start)
	}
	text := content.Text
	if len(content.Images) > 0 && len(strings.TrimSpace(text)) < o.cfg.MinTextLength {
		if o.deps.OCR == nil {
			o.logger.Warn("pipeline.ocr.unconfigured", "document_id", id, "images", len(content.Images))
		} else {
			ocrRes, err := o.deps.OCR.ProcessAll(ctx, content.Images)
			if err != nil {
				return o.failed(id, doc.Filename, stage, err, start)
			}
			text = ocrRes.Text
			res.OCRUsed = true
			res.OCRConfidence = ocrRes.Confidence
			o.logger.Info("pipeline.ocr.done", "document_id", id, "engine", ocrRes.Engine, "pages", len(content.Images), "confidence", ocrRes.Confidence)
		}
	}
	stage = o.advance(id, StageExtracted, start)
	if err := ctx.Err(); err != nil {
		return o.failed(id, doc.Filename, stage, err, start)
	}

	// -> classified
	sel := o.deps.Registry.Select(text, hint)
	if sel.Template == nil {
		return o.failed(id, doc.Filename, stage, fmt.Errorf("no templates registered"), start)
	}
	tpl := sel.Template
	o.logger.Info("pipeline.classified", "document_id", id, "template", tpl.Name(), "score", sel.Score, "by_hint", sel.ByHint)
	stage = o.advance(id, StageClassified, start)

	// -> llm extracted
	llmRes, err := o.deps.LLM.Extract(ctx, llm.Request{
		Text:         text,
		DocumentType: string(tpl.Category()),
		FieldNames:   templates.FieldNames(tpl),
	})
	if err != nil {
		return o.failed(id, doc.Filename, stage, err, start)
	}
	stage = o.advance(id, StageLLM, start)

	// -> validated
	data, conf := fieldMaps(llmRes)
	data = tpl.PostProcess(data)
	fillConfidences(tpl, data, conf)
	violations := tpl.Validate(data)
	stage = o.advance(id, StageValidated, start)

	overall := OverallConfidence(data, conf)
	overall = DiscountForOCR(overall, res.OCRUsed, res.OCRConfidence, o.cfg.OCRDiscountThreshold)
	outcome := Decide(llmRes, violations, overall, o.cfg.ConfidenceThreshold)

	res.DocumentID = id
	res.Success = true
	res.Template = tpl.Name()
	res.Text = text
	res.RawLLMResponse = llmRes.RawResponse
	res.ContentHash = doc.ContentHash
	res.FileSize = doc.Size
	res.Response = ExtractionResponse{
		DocumentID:        id,
		Status:            outcome.Status,
		DocumentType:      tpl.Category().DocumentType(),
		Filename:          doc.Filename,
		ExtractedData:     data,
		FieldConfidences:  conf,
		OverallConfidence: overall,
		Errors:            outcome.Errors,
		RequiresReview:    outcome.RequiresReview,
		ModelUsed:         llmRes.Model,
		ProcessingTimeMs:  time.Since(start).Milliseconds(),
		CreatedAt:         time.Now().UTC(),
	}
	o.toCache(ctx, doc, hint, res)
	return res
}

func (o *Orchestrator) advance(id string, next Stage, start time.Time) Stage {
	o.logger.Debug("pipeline.stage", "document_id", id, "stage", next, "elapsed_ms", time.Since(start).Milliseconds())
	o.deps.Metrics.observeStage(next, start)
	return next
}

// failed builds the terminal result for a document that could not be
// processed.
func (o *Orchestrator) failed(id, filename string, stage Stage, err error, start time.Time) ProcessingResult {
	o.logger.Error("pipeline.failed", "document_id", id, "filename", filename, "stage", stage, "error", err)
	return ProcessingResult{
		DocumentID:  id,
		Success:     false,
		FailedStage: stage,
		Response: ExtractionResponse{
			DocumentID:       id,
			Status:           constants.StatusFailed,
			DocumentType:     constants.DocTypeUnknown,
			Filename:         filename,
			ExtractedData:    map[string]any{},
			FieldConfidences: map[string]float64{},
			Errors:           []ExtractionError{newError(constants.ErrCodeProcessing, "", err.Error())},
			ProcessingTimeMs: time.Since(start).Milliseconds(),
			CreatedAt:        time.Now().UTC(),
		},
	}
}

// finish records metrics and hands the result to the sink. Results for
// documents that never loaded are not persisted.
func (o *Orchestrator) finish(ctx context.Context, res ProcessingResult, start time.Time, persist bool) ProcessingResult {
	elapsed := time.Since(start)
	o.deps.Metrics.observeResult(res, elapsed)
	r := res.Response
	o.logger.Info("pipeline.done",
		"document_id", res.DocumentID,
		"status", r.Status,
		"document_type", r.DocumentType,
		"template", res.Template,
		"overall_confidence", r.OverallConfidence,
		"errors", len(r.Errors),
		"model", r.ModelUsed,
		"cached", res.Cached,
		"elapsed_ms", elapsed.Milliseconds(),
	)
	if persist && o.deps.Sink != nil {
		if err := o.deps.Sink.SaveDocument(context.WithoutCancel(ctx), res); err != nil {
			o.logger.Error("pipeline.persist.failed", "document_id", res.DocumentID, "error", err)
		}
	}
	return res
}

func cacheKey(doc *ingest.LoadedDocument, hint string) string {
	return doc.ContentHash + ":" + strings.ToLower(strings.TrimSpace(hint))
}

func (o *Orchestrator) fromCache(ctx context.Context, doc *ingest.LoadedDocument, hint string) (ProcessingResult, bool) {
	if o.deps.Cache == nil || doc.ContentHash == "" {
		return ProcessingResult{}, false
	}
	raw, ok, err := o.deps.Cache.Get(ctx, cacheKey(doc, hint))
	if err != nil {
		o.logger.Warn("pipeline.cache.get_failed", "error", err)
		return ProcessingResult{}, false
	}
	if !ok {
		return ProcessingResult{}, false
	}
	var res ProcessingResult
	if err := json.Unmarshal(raw, &res); err != nil {
		o.logger.Warn("pipeline.cache.decode_failed", "error", err)
		return ProcessingResult{}, false
	}
	return res, true
}

// toCache stores successful results only; failures may be transient.
func (o *Orchestrator) toCache(ctx context.Context, doc *ingest.LoadedDocument, hint string, res ProcessingResult) {
	if o.deps.Cache == nil || doc.ContentHash == "" || res.Response.Status == constants.StatusFailed {
		return
	}
	raw, err := json.Marshal(res)
	if err != nil {
		o.logger.Warn("pipeline.cache.encode_failed", "error", err)
		return
	}
	if err := o.deps.Cache.Set(ctx, cacheKey(doc, hint), raw); err != nil {
		o.logger.Warn("pipeline.cache.set_failed", "error", err)
	}
}
