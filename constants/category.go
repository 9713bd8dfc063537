package constants

import (
	"strings"
)

// Category is the template family a document belongs to.
type Category string

const (
	CategoryTranscript     Category = "transcript"
	CategoryIDDocument     Category = "id_document"
	CategoryCertificate    Category = "certificate"
	CategoryRecommendation Category = "recommendation"
	CategoryEssay          Category = "essay"
	CategoryUnknown        Category = "unknown"
)

var allCategories = []Category{
	CategoryTranscript,
	CategoryIDDocument,
	CategoryCertificate,
	CategoryRecommendation,
	CategoryEssay,
	CategoryUnknown,
}

// DocumentType is the externally visible document-type enum.
type DocumentType string

const (
	DocTypeTranscript  DocumentType = "transcript"
	DocTypeIDDocument  DocumentType = "id_document"
	DocTypeCertificate DocumentType = "certificate"
	DocTypeUnknown     DocumentType = "unknown"
)

// DocumentTypes lists the values of the document-type enum.
var DocumentTypes = []DocumentType{DocTypeTranscript, DocTypeIDDocument, DocTypeCertificate, DocTypeUnknown}

// DocumentType maps a template category onto the response enum.
func (c Category) DocumentType() DocumentType {
	switch c {
	case CategoryTranscript:
		return DocTypeTranscript
	case CategoryIDDocument:
		return DocTypeIDDocument
	case CategoryCertificate:
		return DocTypeCertificate
	default:
		return DocTypeUnknown
	}
}

func AsStringSlice() []string {
	result := make([]string, len(allCategories))
	for i, cat := range allCategories {
		result[i] = string(cat)
	}
	return result
}

// Canonicalize resolves user input to a category.
func Canonicalize(input string) (Category, bool) {
	if input == "" {
		return CategoryUnknown, false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)

	// synonyms map
	synonyms := map[string]Category{
		"id":              CategoryIDDocument,
		"identity":        CategoryIDDocument,
		"id_card":         CategoryIDDocument,
		"iddocument":      CategoryIDDocument,
		"academic_record": CategoryTranscript,
		"marksheet":       CategoryTranscript,
		"cert":            CategoryCertificate,
		"letter":          CategoryRecommendation,
	}

	if cat, ok := synonyms[normalized]; ok {
		return cat, true
	}

	for _, cat := range allCategories {
		if normalized == string(cat) {
			return cat, true
		}
	}

	return CategoryUnknown, false
}
