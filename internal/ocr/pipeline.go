package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/document-extractor/internal/common"
)

// DefaultFallbackThreshold is used when a Pipeline is built with threshold <= 0.
const DefaultFallbackThreshold = 0.5

// unavailable is the sentinel for an engine that could not be constructed.
type unavailable struct {
	name   string
	reason error
}

// Unavailable returns an Engine standing in for one that failed to build.
// The pipeline treats it as absent and never calls it.
func Unavailable(name string, reason error) Engine {
	return unavailable{name: name, reason: reason}
}

func (u unavailable) Name() string { return u.name }

func (u unavailable) Recognize(context.Context, Image) (Result, error) {
	return Result{}, fmt.Errorf("%s: %w: %v", u.name, common.ErrUnavailable, u.reason)
}

// IsAvailable reports whether e is a usable engine.
func IsAvailable(e Engine) bool {
	if e == nil {
		return false
	}
	_, bad := e.(unavailable)
	return !bad
}

// BothFailedError is returned when primary and fallback both error.
type BothFailedError struct {
	Primary  error
	Fallback error
}

func (e *BothFailedError) Error() string {
	return fmt.Sprintf("both OCR engines failed. primary: %v, fallback: %v", e.Primary, e.Fallback)
}

func (e *BothFailedError) Unwrap() []error { return []error{e.Primary, e.Fallback} }

// Choice is an outcome of the fallback decision table.
type Choice int

const (
	ChoosePrimary Choice = iota
	ChooseFallback
)

func (c Choice) String() string {
	if c == ChooseFallback {
		return "fallback"
	}
	return "primary"
}

// NeedsFallback reports whether a successful primary result is weak enough
// to justify running the fallback engine.
func NeedsFallback(primary Result, threshold float64) bool {
	return primary.Confidence < threshold
}

// Choose picks between two successful results. The fallback wins only with
// strictly higher confidence.
func Choose(primary, fallback Result) Choice {
	if fallback.Confidence > primary.Confidence {
		return ChooseFallback
	}
	return ChoosePrimary
}

// Pipeline runs a primary engine and falls back to a secondary one when the
// primary errors or reports confidence under the threshold. Engines are built
// once by the caller and shared; Pipeline holds no mutable state.
type Pipeline struct {
	primary   Engine
	fallback  Engine
	threshold float64
	logger    *slog.Logger
}

func NewPipeline(primary, fallback Engine, threshold float64, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if threshold <= 0 {
		threshold = DefaultFallbackThreshold
	}
	if !IsAvailable(fallback) && fallback != nil {
		logger.Warn("ocr.pipeline.fallback_unavailable", "engine", fallback.Name(), "error", fallback.(unavailable).reason)
	}
	return &Pipeline{primary: primary, fallback: fallback, threshold: threshold, logger: logger}
}

// Threshold returns the confidence under which the fallback is tried.
func (p *Pipeline) Threshold() float64 { return p.threshold }

// HasFallback reports whether a usable fallback engine is configured.
func (p *Pipeline) HasFallback() bool { return IsAvailable(p.fallback) }

// Process recognizes one image. It returns an error only when every
// available engine failed.
func (p *Pipeline) Process(ctx context.Context, img Image) (Result, error) {
	start := time.Now()

	var (
		primary    Result
		primaryErr error
	)
	if IsAvailable(p.primary) {
		primary, primaryErr = p.primary.Recognize(ctx, img)
	} else {
		primaryErr = fmt.Errorf("primary engine: %w", common.ErrUnavailable)
		if p.primary != nil {
			primaryErr = fmt.Errorf("%s: %w", p.primary.Name(), common.ErrUnavailable)
		}
	}

	if primaryErr != nil {
		p.logger.Warn("ocr.pipeline.primary_failed", "image", img.ID, "error", primaryErr)
		if !p.HasFallback() {
			return Result{}, fmt.Errorf("OCR failed: %w", primaryErr)
		}
		fb, err := p.fallback.Recognize(ctx, img)
		if err != nil {
			p.logger.Error("ocr.pipeline.both_failed", "image", img.ID, "primary_error", primaryErr, "fallback_error", err)
			return Result{}, &BothFailedError{Primary: primaryErr, Fallback: err}
		}
		p.logger.Info("ocr.pipeline.done", "image", img.ID, "engine", fb.Engine, "confidence", fb.Confidence,
			"choice", ChooseFallback.String(), "elapsed_ms", time.Since(start).Milliseconds())
		return fb, nil
	}

	if !NeedsFallback(primary, p.threshold) || !p.HasFallback() {
		p.logger.Debug("ocr.pipeline.done", "image", img.ID, "engine", primary.Engine, "confidence", primary.Confidence,
			"choice", ChoosePrimary.String(), "elapsed_ms", time.Since(start).Milliseconds())
		return primary, nil
	}

	p.logger.Info("ocr.pipeline.fallback", "image", img.ID, "primary_confidence", primary.Confidence, "threshold", p.threshold)
	fb, err := p.fallback.Recognize(ctx, img)
	if err != nil {
		p.logger.Warn("ocr.pipeline.fallback_failed", "image", img.ID, "error", err)
		return primary, nil
	}

	choice := Choose(primary, fb)
	p.logger.Info("ocr.pipeline.done", "image", img.ID, "primary_confidence", primary.Confidence,
		"fallback_confidence", fb.Confidence, "choice", choice.String(), "elapsed_ms", time.Since(start).Milliseconds())
	if choice == ChooseFallback {
		return fb, nil
	}
	return primary, nil
}

// ProcessAll recognizes every image and combines the results. A failure on
// any page is returned as is.
func (p *Pipeline) ProcessAll(ctx context.Context, imgs []Image) (Result, error) {
	if len(imgs) == 1 {
		return p.Process(ctx, imgs[0])
	}
	results := make([]Result, 0, len(imgs))
	for _, img := range imgs {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		r, err := p.Process(ctx, img)
		if err != nil {
			return Result{}, fmt.Errorf("page %d: %w", img.Index+1, err)
		}
		results = append(results, r)
	}
	return Combine(results), nil
}
