package templates

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// titleCase upper-cases the first letter of every run of letters and
// lower-cases the rest, after trimming.
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range strings.TrimSpace(s) {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToTitle(r))
			}
			prevLetter = true
			continue
		}
		prevLetter = false
		b.WriteRune(r)
	}
	return b.String()
}

// titleField title-cases fields[name] when it holds a non-empty string.
func titleField(fields map[string]any, name string) {
	if s, ok := fields[name].(string); ok && s != "" {
		fields[name] = titleCase(s)
	}
}

var (
	maleForms   = map[string]bool{"M": true, "MALE": true, "पुरुष": true}
	femaleForms = map[string]bool{"F": true, "FEMALE": true, "महिला": true}
)

// normalizeGender maps M/F codes and their spelled-out forms to Male/Female.
// Anything else is left as it was.
func normalizeGender(fields map[string]any) {
	v, ok := fields["gender"]
	if !ok || isEmpty(v) {
		return
	}
	s, ok := stringify(v)
	if !ok {
		return
	}
	g := strings.ToUpper(strings.TrimSpace(s))
	switch {
	case maleForms[g]:
		fields["gender"] = "Male"
	case femaleForms[g]:
		fields["gender"] = "Female"
	}
}

// stringify renders scalars the way they were written, so 123456789012
// decoded as float64 does not turn into exponent notation. Lists, objects
// and other non-scalars report false.
func stringify(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

var idSeparators = strings.NewReplacer(" ", "", "-", "")

func compactID(v any) string {
	s, _ := stringify(v)
	return idSeparators.Replace(s)
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

var leadingNumber = regexp.MustCompile(`(\d+\.?\d*)`)

// firstNumber pulls the first decimal number out of v ("3.8 / 4.0" -> 3.8).
func firstNumber(v any) (float64, bool) {
	if f, ok := v.(float64); ok {
		return f, true
	}
	s, ok := stringify(v)
	if !ok {
		return 0, false
	}
	m := leadingNumber.FindString(s)
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	return f, err == nil
}
