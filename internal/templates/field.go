package templates

// FieldType is the semantic type of a schema slot.
type FieldType string

const (
	FieldString FieldType = "string"
	FieldNumber FieldType = "number"
	FieldDate   FieldType = "date"
	FieldArray  FieldType = "array"
)

// FieldDefinition declares one slot of a template schema.
type FieldDefinition struct {
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	Type        FieldType `json:"type"`
	Required    bool      `json:"required"`
	Pattern     string    `json:"pattern,omitempty"`
	Description string    `json:"description,omitempty"`
}

func required(name, display string, t FieldType) FieldDefinition {
	return FieldDefinition{Name: name, DisplayName: display, Type: t, Required: true}
}

func optional(name, display string, t FieldType) FieldDefinition {
	return FieldDefinition{Name: name, DisplayName: display, Type: t}
}

func (f FieldDefinition) describe(desc string) FieldDefinition {
	f.Description = desc
	return f
}

// Violation is one failed structural rule.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v Violation) Error() string { return v.Message }
