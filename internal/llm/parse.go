package llm

import (
	"encoding/json"
	"strconv"
	"strings"
)

// FindJSONObject returns the first balanced {...} object in s, honouring
// string literals and escapes. Returns false when none closes.
func FindJSONObject(s string) (string, bool) {
	for start := strings.IndexByte(s, '{'); start >= 0; {
		if end, ok := matchBrace(s, start); ok {
			return s[start : end+1], true
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

func matchBrace(s string, start int) (int, bool) {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// ParseResponse decodes an engine's raw completion into an ExtractionResult.
// It never panics or returns an error: bad output yields Success=false with
// the raw text preserved. Only expected fields are kept when any are named.
func ParseResponse(raw string, req Request, model string) ExtractionResult {
	obj, ok := FindJSONObject(raw)
	if !ok {
		return Failed(req.DocumentType, model, raw, "No JSON found in response")
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(obj), &data); err != nil {
		return Failed(req.DocumentType, model, raw, "JSON parse error: "+err.Error())
	}

	res := ExtractionResult{
		DocumentType: req.DocumentType,
		Fields:       map[string]ExtractedField{},
		RawResponse:  raw,
		Model:        model,
		Success:      true,
	}
	if dt, ok := data["document_type"].(string); ok && dt != "" {
		res.DocumentType = dt
	}
	if err := ValidateJSONAgainstSchema(BuildResponseSchema(req.FieldNames), []byte(obj)); err != nil {
		res.Warnings = append(res.Warnings, err.Error())
	}

	expected := make(map[string]struct{}, len(req.FieldNames))
	for _, n := range req.FieldNames {
		expected[n] = struct{}{}
	}
	fields, _ := data["fields"].(map[string]any)
	for name, entry := range fields {
		if len(expected) > 0 {
			if _, ok := expected[name]; !ok {
				continue
			}
		}
		f := ExtractedField{Name: name, Confidence: DefaultFieldConfidence}
		if m, isObj := entry.(map[string]any); isObj {
			f.Value = m["value"]
			if c, ok := toFloat(m["confidence"]); ok {
				f.Confidence = c
			}
			if st, ok := m["source_text"].(string); ok {
				f.SourceText = st
			}
		} else {
			f.Value = entry
		}
		f.Confidence = clamp01(f.Confidence)
		res.Fields[name] = f
	}
	return res
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
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
