package templates

import (
	"fmt"
	"maps"
	"regexp"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/document-extractor/constants"
)

// Template is one document schema plus its classification, validation and
// normalization rules. Implementations are stateless.
type Template interface {
	Name() string
	Category() constants.Category
	Fields() []FieldDefinition
	Keywords() []string
	// Classify scores how well text matches, in [0,1].
	Classify(text string) float64
	Validate(fields map[string]any) []Violation
	// PostProcess returns a normalized copy of fields. It is idempotent.
	PostProcess(fields map[string]any) map[string]any
}

// Deriver is implemented by templates whose PostProcess may add fields that
// the extractor did not return. Derivations maps each such field to the
// fields it is built from.
type Deriver interface {
	Derivations() map[string][]string
}

// FieldNames lists the schema slot names of t in declaration order.
func FieldNames(t Template) []string {
	defs := t.Fields()
	out := make([]string, len(defs))
	for i, d := range defs {
		out[i] = d.Name
	}
	return out
}

// base implements the default keyword classifier, structural validation and
// a pass-through PostProcess. Variants embed it and override what they need.
type base struct {
	name     string
	category constants.Category
	fields   []FieldDefinition
	keywords []string
}

func (b base) Name() string                 { return b.name }
func (b base) Category() constants.Category { return b.category }
func (b base) Fields() []FieldDefinition    { return b.fields }
func (b base) Keywords() []string           { return b.keywords }

func (b base) Classify(text string) float64 {
	return KeywordScore(text, b.keywords)
}

func (b base) Validate(fields map[string]any) []Violation {
	return ValidateFields(b.fields, fields)
}

func (b base) PostProcess(fields map[string]any) map[string]any {
	return copyFields(fields)
}

// KeywordScore is the fraction of keywords found in text, compared
// case-insensitively, capped at 1.
func KeywordScore(text string, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	lower := strings.ToLower(text)
	matches := 0
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			matches++
		}
	}
	return min(float64(matches)/float64(len(keywords)), 1.0)
}

// ValidateFields checks required slots are present and numeric slots parse.
// It never looks across fields.
func ValidateFields(defs []FieldDefinition, fields map[string]any) []Violation {
	var out []Violation
	for _, def := range defs {
		value := fields[def.Name]
		if isEmpty(value) {
			if def.Required {
				out = append(out, Violation{
					Field:   def.Name,
					Message: fmt.Sprintf("Required field '%s' is missing", def.DisplayName),
				})
			}
			continue
		}
		if def.Type == FieldNumber && !isNumeric(value) {
			out = append(out, Violation{
				Field:   def.Name,
				Message: fmt.Sprintf("Field '%s' should be a number", def.DisplayName),
			})
		}
	}
	return out
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// decimalLiteral is the float syntax numeric fields accept: optional sign,
// decimal digits with single underscores between them, optional exponent,
// or inf/infinity/nan. Hex floats are rejected.
var decimalLiteral = regexp.MustCompile(`(?i)^[+-]?(?:(?:\d(?:_?\d)*)?\.\d(?:_?\d)*(?:e[+-]?\d(?:_?\d)*)?|\d(?:_?\d)*\.?(?:e[+-]?\d(?:_?\d)*)?|inf|infinity|nan)$`)

func isNumeric(v any) bool {
	switch t := v.(type) {
	case float64, float32, int, int32, int64:
		return true
	case string:
		return parsesAsDecimal(t)
	default:
		return parsesAsDecimal(fmt.Sprint(t))
	}
}

func parsesAsDecimal(s string) bool {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if !decimalLiteral.MatchString(s) {
		return false
	}
	_, err := strconv.ParseFloat(strings.ReplaceAll(s, "_", ""), 64)
	return err == nil
}

func copyFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	maps.Copy(out, fields)
	return out
}
