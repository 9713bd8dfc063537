package llm

import (
	"strings"
	"unicode/utf8"
)

const extractionPrompt = `You are an expert document analyst specializing in identity documents and official records.
Extract structured information from the following document text.

Document Type: {document_type}
Expected Fields: {field_names}

Document Text:
---
{text}
---

IMPORTANT INSTRUCTIONS:
1. Extract ONLY the values that are clearly present in the document
2. For name fields:
   - Use the EXACT name as written in the document
   - Do NOT split names into first/last unless clearly separated
   - If only one name field is visible, put it in the primary name field (full_name, member_name, etc.)
3. For ID numbers (Aadhaar, PAN, UAN, etc.):
   - Extract the complete number exactly as shown
   - Include any spaces or formatting
4. For dates:
   - Use the format DD/MM/YYYY or as shown in document
5. Set confidence based on clarity:
   - 0.95-1.0: Text is crystal clear
   - 0.80-0.94: Text is readable but slightly unclear
   - 0.60-0.79: Text is partially obscured or ambiguous
   - Below 0.60: Guessing or very unclear
6. If a field is NOT FOUND in the document, set value to null and confidence to 0

Return ONLY valid JSON in this exact format:
{
  "document_type": "{document_type}",
  "fields": {
    "field_name": {
      "value": "extracted value or null",
      "confidence": 0.95
    }
  }
}

Return ONLY the JSON, no explanations or other text.
`

// BuildPrompt renders the extraction prompt with text cut to maxChars runes
// (no limit when maxChars <= 0).
func BuildPrompt(req Request, maxChars int) string {
	r := strings.NewReplacer(
		"{document_type}", req.DocumentType,
		"{field_names}", strings.Join(req.FieldNames, ", "),
		"{text}", Truncate(req.Text, maxChars),
	)
	return r.Replace(extractionPrompt)
}

// Truncate cuts s to at most max runes without splitting a UTF-8 sequence.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}
