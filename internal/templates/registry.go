package templates

import (
	"strings"

	"github.com/joseph-ayodele/document-extractor/constants"
)

// Registry holds templates in priority order. It is read-only after
// construction and safe for concurrent use.
type Registry struct {
	templates []Template
	byName    map[string]Template
}

// NewRegistry registers templates in the given order; earlier ones win ties.
func NewRegistry(ts ...Template) *Registry {
	r := &Registry{byName: make(map[string]Template, len(ts))}
	for _, t := range ts {
		r.templates = append(r.templates, t)
		if _, dup := r.byName[t.Name()]; !dup {
			r.byName[t.Name()] = t
		}
	}
	return r
}

// Default returns the built-in registry. Jurisdiction-specific identity
// templates come before the generic ones so they win ties.
func Default() *Registry {
	return NewRegistry(
		NewUAN(),
		NewAadhaar(),
		NewPAN(),
		NewVoterID(),
		NewDrivingLicense(),
		NewTranscript(),
		NewIDDocument(),
		NewCertificate(),
	)
}

// Templates returns the registered templates in priority order.
func (r *Registry) Templates() []Template {
	return append([]Template(nil), r.templates...)
}

// Get looks a template up by name.
func (r *Registry) Get(name string) (Template, bool) {
	t, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	return t, ok
}

// Selection records how a template was chosen.
type Selection struct {
	Template Template
	Score    float64
	ByHint   bool
	Scores   map[string]float64
}

// Resolve maps a type hint to a template. A category hint selects the first
// registered template of that category; anything else is tried as a
// template name ("aadhaar", "pan").
func (r *Registry) Resolve(hint string) (Template, bool) {
	if strings.TrimSpace(hint) == "" {
		return nil, false
	}
	if cat, ok := constants.Canonicalize(hint); ok {
		for _, t := range r.templates {
			if t.Category() == cat {
				return t, true
			}
		}
	}
	return r.Get(hint)
}

// Select picks the template for text. A resolvable hint bypasses scoring.
// Otherwise the first template to reach the strict maximum score wins; when
// nothing scores above zero the first registered template is used.
func (r *Registry) Select(text, hint string) Selection {
	if t, ok := r.Resolve(hint); ok {
		return Selection{Template: t, ByHint: true}
	}
	if len(r.templates) == 0 {
		return Selection{}
	}
	sel := Selection{Template: r.templates[0], Scores: make(map[string]float64, len(r.templates))}
	for _, t := range r.templates {
		score := t.Classify(text)
		sel.Scores[t.Name()] = score
		if score > sel.Score {
			sel.Score = score
			sel.Template = t
		}
	}
	return sel
}

// Info is the public description of a template.
type Info struct {
	Name     string             `json:"name"`
	Category constants.Category `json:"category"`
	Fields   []FieldDefinition  `json:"fields"`
	Keywords []string           `json:"keywords"`
}

// Describe lists every template with its schema, in priority order.
func (r *Registry) Describe() []Info {
	out := make([]Info, 0, len(r.templates))
	for _, t := range r.templates {
		out = append(out, Info{
			Name:     t.Name(),
			Category: t.Category(),
			Fields:   append([]FieldDefinition(nil), t.Fields()...),
			Keywords: append([]string(nil), t.Keywords()...),
		})
	}
	return out
}
