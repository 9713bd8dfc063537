package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/document-extractor/internal/common"
)

// DefaultFallbackThreshold is used when a Pipeline is built with threshold <= 0.
const DefaultFallbackThreshold = 0.7

type unavailable struct {
	name   string
	reason error
}

// Unavailable returns an Engine standing in for one that could not be
// configured (e.g. missing credentials). It is built once and never retried.
func Unavailable(name string, reason error) Engine {
	return unavailable{name: name, reason: reason}
}

func (u unavailable) Name() string { return u.name }

func (u unavailable) Extract(context.Context, Request) (ExtractionResult, error) {
	return ExtractionResult{}, fmt.Errorf("%s: %w: %v", u.name, common.ErrUnavailable, u.reason)
}

// IsAvailable reports whether e is a usable engine.
func IsAvailable(e Engine) bool {
	if e == nil {
		return false
	}
	_, bad := e.(unavailable)
	return !bad
}

// UnavailableReason returns why e is unusable, or nil.
func UnavailableReason(e Engine) error {
	if u, ok := e.(unavailable); ok {
		return u.reason
	}
	if e == nil {
		return common.ErrUnavailable
	}
	return nil
}

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

// NeedsFallback reports whether the fallback engine should run given the
// primary outcome: always after a failure, and after a weak success only when
// onLowConfidence is set.
func NeedsFallback(primary ExtractionResult, primaryErr error, threshold float64, onLowConfidence bool) bool {
	if primaryErr != nil || !primary.Success {
		return true
	}
	return onLowConfidence && primary.MeanConfidence() < threshold
}

// Choose picks between a successful primary and the fallback outcome. The
// fallback wins only when it succeeded with strictly higher mean confidence.
func Choose(primary, fallback ExtractionResult) Choice {
	if fallback.Success && fallback.MeanConfidence() > primary.MeanConfidence() {
		return ChooseFallback
	}
	return ChoosePrimary
}

type PipelineConfig struct {
	Threshold               float64
	FallbackOnLowConfidence bool
}

// Pipeline chains a primary and a fallback Engine. It is safe for concurrent
// use as long as its engines are.
type Pipeline struct {
	primary  Engine
	fallback Engine
	cfg      PipelineConfig
	logger   *slog.Logger
}

func NewPipeline(primary, fallback Engine, cfg PipelineConfig, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultFallbackThreshold
	}
	if fallback != nil && !IsAvailable(fallback) {
		logger.Warn("llm.pipeline.fallback_unavailable", "engine", fallback.Name(), "error", UnavailableReason(fallback))
	}
	return &Pipeline{primary: primary, fallback: fallback, cfg: cfg, logger: logger}
}

// HasFallback reports whether a usable fallback engine is configured.
func (p *Pipeline) HasFallback() bool { return IsAvailable(p.fallback) }

// Engines returns the configured engines, for health reporting.
func (p *Pipeline) Engines() (primary, fallback Engine) { return p.primary, p.fallback }

// Extract runs the chain. Engine errors are folded into an unsuccessful
// result; the returned error is always nil unless ctx is done.
func (p *Pipeline) Extract(ctx context.Context, req Request) (ExtractionResult, error) {
	start := time.Now()
	primaryName := "none"
	if p.primary != nil {
		primaryName = p.primary.Name()
	}

	var (
		primary    ExtractionResult
		primaryErr error
	)
	if IsAvailable(p.primary) {
		primary, primaryErr = p.primary.Extract(ctx, req)
	} else {
		primaryErr = fmt.Errorf("%s: %w", primaryName, common.ErrUnavailable)
	}
	if err := ctx.Err(); err != nil {
		return ExtractionResult{}, err
	}

	if !NeedsFallback(primary, primaryErr, p.cfg.Threshold, p.cfg.FallbackOnLowConfidence) {
		p.done(req, primary, ChoosePrimary, start)
		return primary, nil
	}

	failed := primaryErr != nil || !primary.Success
	if failed {
		reason := primary.Error
		if primaryErr != nil {
			reason = primaryErr.Error()
		}
		p.logger.Warn("llm.pipeline.primary_failed", "engine", primaryName, "error", reason)

		if !p.HasFallback() {
			if primaryErr != nil {
				return Failed(req.DocumentType, primaryName, primary.RawResponse, "All extractors failed: "+reason), nil
			}
			return primary, nil
		}
		fb, err := p.fallback.Extract(ctx, req)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ExtractionResult{}, ctxErr
			}
			p.logger.Error("llm.pipeline.all_failed", "primary_error", reason, "fallback_error", err)
			msg := fmt.Sprintf("All extractors failed. primary: %s, fallback: %v", reason, err)
			return Failed(req.DocumentType, p.fallback.Name(), primary.RawResponse, msg), nil
		}
		p.done(req, fb, ChooseFallback, start)
		return fb, nil
	}

	if !p.HasFallback() {
		p.done(req, primary, ChoosePrimary, start)
		return primary, nil
	}
	p.logger.Info("llm.pipeline.fallback", "primary_confidence", primary.MeanConfidence(), "threshold", p.cfg.Threshold)
	fb, err := p.fallback.Extract(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ExtractionResult{}, ctxErr
		}
		p.logger.Warn("llm.pipeline.fallback_failed", "engine", p.fallback.Name(), "error", err)
		p.done(req, primary, ChoosePrimary, start)
		return primary, nil
	}
	choice := Choose(primary, fb)
	if choice == ChooseFallback {
		p.done(req, fb, choice, start)
		return fb, nil
	}
	p.done(req, primary, choice, start)
	return primary, nil
}

func (p *Pipeline) done(req Request, res ExtractionResult, choice Choice, start time.Time) {
	p.logger.Info("llm.pipeline.done",
		"document_type", req.DocumentType,
		"model", res.Model,
		"success", res.Success,
		"fields", len(res.Fields),
		"mean_confidence", res.MeanConfidence(),
		"choice", choice.String(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
}
