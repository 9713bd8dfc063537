package ocr

import (
	"sort"
	"strings"
)

// CombinedEngine is the engine label of a multi-image Result.
const CombinedEngine = "pipeline"

// Combine merges per-image results into one. Text is joined by blank lines
// and confidence is the mean of per-image confidences. Word geometry is kept
// per page in Pages rather than flattened into Words.
func Combine(results []Result) Result {
	out := Result{Engine: CombinedEngine}
	if len(results) == 0 {
		return out
	}
	texts := make([]string, 0, len(results))
	var sum float64
	for i, r := range results {
		texts = append(texts, r.Text)
		sum += r.Confidence
		out.Pages = append(out.Pages, Page{Index: i, Words: r.Words, Confidence: r.Confidence, Engine: r.Engine})
	}
	out.Text = strings.Join(texts, "\n\n")
	out.Confidence = clamp01(sum / float64(len(results)))
	return out
}

// DefaultLineThreshold is the vertical distance in pixels under which two
// words are considered to sit on the same line.
const DefaultLineThreshold = 20

// TextFromWords rebuilds reading-order text: words sorted by top edge then
// left edge, grouped into lines while their top edges stay within threshold
// of the line's first word.
func TextFromWords(words []Word, threshold int) string {
	if len(words) == 0 {
		return ""
	}
	if threshold <= 0 {
		threshold = DefaultLineThreshold
	}
	sorted := make([]Word, len(words))
	copy(sorted, words)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Box.Y1 != sorted[j].Box.Y1 {
			return sorted[i].Box.Y1 < sorted[j].Box.Y1
		}
		return sorted[i].Box.X1 < sorted[j].Box.X1
	})

	var lines []string
	var line []Word
	lineY := sorted[0].Box.Y1
	flush := func() {
		sort.SliceStable(line, func(i, j int) bool { return line[i].Box.X1 < line[j].Box.X1 })
		parts := make([]string, len(line))
		for i, w := range line {
			parts[i] = w.Text
		}
		lines = append(lines, strings.Join(parts, " "))
		line = line[:0]
	}
	for _, w := range sorted {
		if len(line) > 0 && w.Box.Y1-lineY > threshold {
			flush()
		}
		if len(line) == 0 {
			lineY = w.Box.Y1
		}
		line = append(line, w)
	}
	flush()
	return strings.Join(lines, "\n")
}
