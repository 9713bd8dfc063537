package extract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/joseph-ayodele/document-extractor/internal/ingest"
	"github.com/joseph-ayodele/document-extractor/internal/ocr"
)

// DefaultMaxDimension caps the longer image side before OCR.
const DefaultMaxDimension = 4096

// ImageExtractor decodes an image, flattens transparency onto white,
// downscales oversized images and re-encodes the result as a single PNG page.
type ImageExtractor struct {
	maxDim int
}

func NewImageExtractor(maxDim int) *ImageExtractor {
	if maxDim <= 0 {
		maxDim = DefaultMaxDimension
	}
	return &ImageExtractor{maxDim: maxDim}
}

func (e *ImageExtractor) Extract(ctx context.Context, doc ingest.LoadedDocument) (Content, error) {
	if err := ctx.Err(); err != nil {
		return Content{}, err
	}
	src, format, err := image.Decode(bytes.NewReader(doc.Content))
	if err != nil {
		return Content{}, fmt.Errorf("decode image: %w", err)
	}

	b := src.Bounds()
	w, h := fitWithin(b.Dx(), b.Dy(), e.maxDim)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return Content{}, fmt.Errorf("encode png: %w", err)
	}
	return Content{
		Method: MethodImage,
		Pages:  1,
		Images: []ocr.Image{{ID: doc.Filename, Data: buf.Bytes()}},
		Metadata: map[string]string{
			"format": format,
			"width":  fmt.Sprint(w),
			"height": fmt.Sprint(h),
		},
	}, nil
}

// fitWithin scales (w,h) down so neither side exceeds limit, keeping the
// aspect ratio. Sizes already within bounds are returned unchanged.
func fitWithin(w, h, limit int) (int, int) {
	if w <= limit && h <= limit {
		return w, h
	}
	if w > h {
		return limit, max(1, h*limit/w)
	}
	return max(1, w*limit/h), limit
}
