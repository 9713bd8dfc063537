package ocr

import (
	"context"
)

// BBox is an axis-aligned box in image pixels.
type BBox struct {
	X1, Y1, X2, Y2 int
}

// Word is one recognized token.
type Word struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"` // 0..1
	Box        BBox    `json:"box"`
}

// Page keeps the word geometry of one image inside a combined Result.
type Page struct {
	Index      int     `json:"index"`
	Words      []Word  `json:"words"`
	Confidence float64 `json:"confidence"`
	Engine     string  `json:"engine"`
}

// Result is the output of recognizing one image, or several combined.
type Result struct {
	Text       string  `json:"text"`
	Words      []Word  `json:"words,omitempty"`
	Confidence float64 `json:"confidence"` // mean word confidence, 0 when no words
	Engine     string  `json:"engine"`
	Pages      []Page  `json:"pages,omitempty"`
}

// Image is an encoded page image (PNG or JPEG) to recognize.
type Image struct {
	ID    string
	Data  []byte
	Index int
}

// Engine recognizes text in a single image.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, img Image) (Result, error)
}

// NewResult builds a Result whose confidence is the mean of word confidences.
func NewResult(text string, words []Word, engine string) Result {
	return Result{
		Text:       text,
		Words:      words,
		Confidence: MeanConfidence(words),
		Engine:     engine,
	}
}

// MeanConfidence is the arithmetic mean of word confidences; 0 for none.
func MeanConfidence(words []Word) float64 {
	if len(words) == 0 {
		return 0
	}
	var sum float64
	for _, w := range words {
		sum += w.Confidence
	}
	return clamp01(sum / float64(len(words)))
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
