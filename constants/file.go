package constants

import "strings"

// DocumentKind is the coarse format of a loaded document.
type DocumentKind string

const (
	KindPDF     DocumentKind = "pdf"
	KindImage   DocumentKind = "image"
	KindDOCX    DocumentKind = "docx"
	KindUnknown DocumentKind = "unknown"
)

// ExtensionKinds maps normalized file extensions to document kinds.
var ExtensionKinds = map[string]DocumentKind{
	"pdf":  KindPDF,
	"jpg":  KindImage,
	"jpeg": KindImage,
	"png":  KindImage,
	"tiff": KindImage,
	"tif":  KindImage,
	"webp": KindImage,
	"docx": KindDOCX,
}

// MIMEKinds maps MIME types to document kinds.
var MIMEKinds = map[string]DocumentKind{
	"application/pdf": KindPDF,
	"image/jpeg":      KindImage,
	"image/png":       KindImage,
	"image/tiff":      KindImage,
	"image/webp":      KindImage,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": KindDOCX,
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsSupportedExt reports whether ext (with or without dot) maps to a known kind.
func IsSupportedExt(ext string) bool {
	_, ok := ExtensionKinds[NormalizeExt(ext)]
	return ok
}
