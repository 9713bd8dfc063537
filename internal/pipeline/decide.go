package pipeline

import (
	"fmt"

	"github.com/joseph-ayodele/document-extractor/constants"
	"github.com/joseph-ayodele/document-extractor/internal/llm"
	"github.com/joseph-ayodele/document-extractor/internal/templates"
)

// DefaultOCRDiscountThreshold is the OCR confidence under which overall
// confidence is scaled by the OCR confidence.
const DefaultOCRDiscountThreshold = 0.7

// fieldMaps splits LLM fields into values and confidences.
func fieldMaps(res llm.ExtractionResult) (map[string]any, map[string]float64) {
	data := make(map[string]any, len(res.Fields))
	conf := make(map[string]float64, len(res.Fields))
	for name, f := range res.Fields {
		data[name] = f.Value
		conf[name] = clamp01(f.Confidence)
	}
	return data, conf
}

// fillConfidences gives every key of data a confidence. Fields a template
// derived take the lowest confidence of their non-null sources; anything
// else unknown gets 0.
func fillConfidences(tpl templates.Template, data map[string]any, conf map[string]float64) {
	var derivations map[string][]string
	if d, ok := tpl.(templates.Deriver); ok {
		derivations = d.Derivations()
	}
	for name := range data {
		if _, ok := conf[name]; ok {
			continue
		}
		c, found := 1.0, false
		for _, src := range derivations[name] {
			sc, ok := conf[src]
			if !ok || data[src] == nil {
				continue
			}
			c, found = min(c, sc), true
		}
		if !found {
			c = 0
		}
		conf[name] = c
	}
}

// OverallConfidence is the mean confidence of fields whose value is not
// null, or 0 when there are none.
func OverallConfidence(data map[string]any, conf map[string]float64) float64 {
	var sum float64
	n := 0
	for name, v := range data {
		if v == nil {
			continue
		}
		sum += conf[name]
		n++
	}
	if n == 0 {
		return 0
	}
	return clamp01(sum / float64(n))
}

// DiscountForOCR scales overall by the OCR confidence when OCR produced the
// text and was itself unreliable.
func DiscountForOCR(overall float64, ocrUsed bool, ocrConfidence, threshold float64) float64 {
	if ocrUsed && ocrConfidence < threshold {
		return clamp01(overall * clamp01(ocrConfidence))
	}
	return overall
}

// Outcome is the terminal status and the errors that explain it.
type Outcome struct {
	Status         constants.DocumentStatus
	Errors         []ExtractionError
	RequiresReview bool
}

// Decide assigns the terminal status. Priority: LLM failure, then
// validation violations, then low confidence, else completed.
func Decide(res llm.ExtractionResult, violations []templates.Violation, overall, threshold float64) Outcome {
	switch {
	case !res.Success:
		msg := res.Error
		if msg == "" {
			msg = "extraction failed"
		}
		return Outcome{
			Status: constants.StatusFailed,
			Errors: []ExtractionError{newError(constants.ErrCodeLLM, "", msg)},
		}
	case len(violations) > 0:
		errs := make([]ExtractionError, 0, len(violations))
		for _, v := range violations {
			errs = append(errs, newError(constants.ErrCodeValidation, v.Field, v.Message))
		}
		return Outcome{Status: constants.StatusRequiresReview, Errors: errs, RequiresReview: true}
	case overall < threshold:
		msg := fmt.Sprintf("Overall confidence %.2f below threshold", overall)
		return Outcome{
			Status:         constants.StatusRequiresReview,
			Errors:         []ExtractionError{newError(constants.ErrCodeLowConfidence, "", msg)},
			RequiresReview: true,
		}
	default:
		return Outcome{Status: constants.StatusCompleted, Errors: []ExtractionError{}}
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
