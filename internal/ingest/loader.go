package ingest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path/filepath"

	"github.com/joseph-ayodele/document-extractor/constants"
	"github.com/joseph-ayodele/document-extractor/internal/common"
)

// DefaultMaxBytes is the upload limit used when none is configured.
const DefaultMaxBytes int64 = 50 * 1024 * 1024

var (
	magicPDF  = []byte("%PDF")
	magicPNG  = []byte("\x89PNG\r\n\x1a\n")
	magicJPEG = []byte{0xFF, 0xD8}
	magicZIP  = []byte("PK\x03\x04")
)

// LoadedDocument is an immutable, validated document ready for extraction.
type LoadedDocument struct {
	Filename    string
	Kind        constants.DocumentKind
	Size        int64
	Content     []byte
	ContentHash string // sha256 hex
	Metadata    map[string]string
}

// ValidationError reports why a document was rejected by the loader.
type ValidationError struct {
	Message string
	kind    error
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return e.kind }

// Loader detects document kinds and enforces the size limit.
type Loader struct {
	maxBytes int64
	logger   *slog.Logger
}

func NewLoader(maxBytes int64, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Loader{maxBytes: maxBytes, logger: logger}
}

// MaxBytes returns the configured size limit.
func (l *Loader) MaxBytes() int64 { return l.maxBytes }

// DetectKind resolves the document kind by extension, then MIME type, then
// magic bytes.
func DetectKind(filename string, content []byte) constants.DocumentKind {
	ext := filepath.Ext(filename)
	if kind, ok := constants.ExtensionKinds[constants.NormalizeExt(ext)]; ok {
		return kind
	}
	if ext != "" {
		if mt, _, err := mime.ParseMediaType(mime.TypeByExtension(ext)); err == nil {
			if kind, ok := constants.MIMEKinds[mt]; ok {
				return kind
			}
		}
	}
	switch {
	case bytes.HasPrefix(content, magicPDF):
		return constants.KindPDF
	case bytes.HasPrefix(content, magicPNG), bytes.HasPrefix(content, magicJPEG):
		return constants.KindImage
	case bytes.HasPrefix(content, magicZIP):
		return constants.KindDOCX
	}
	return constants.KindUnknown
}

// Validate checks size, emptiness and kind, in that order.
func (l *Loader) Validate(filename string, content []byte) error {
	if int64(len(content)) > l.maxBytes {
		return &ValidationError{
			Message: fmt.Sprintf("File size %d bytes exceeds maximum %d bytes", len(content), l.maxBytes),
			kind:    common.ErrTooLarge,
		}
	}
	if len(content) == 0 {
		return &ValidationError{Message: "File is empty", kind: common.ErrInvalidInput}
	}
	if DetectKind(filename, content) == constants.KindUnknown {
		return &ValidationError{
			Message: fmt.Sprintf("Unsupported file type: %s. Supported types: PDF, JPG, PNG, DOCX", filepath.Ext(filename)),
			kind:    common.ErrInvalidInput,
		}
	}
	return nil
}

// LoadBytes validates content and wraps it as a LoadedDocument.
func (l *Loader) LoadBytes(filename string, content []byte) (*LoadedDocument, error) {
	if err := l.Validate(filename, content); err != nil {
		l.logger.Warn("ingest.load.rejected", "filename", filename, "bytes", len(content), "error", err)
		return nil, err
	}
	sum := sha256.Sum256(content)
	doc := &LoadedDocument{
		Filename:    filepath.Base(filename),
		Kind:        DetectKind(filename, content),
		Size:        int64(len(content)),
		Content:     content,
		ContentHash: hex.EncodeToString(sum[:]),
		Metadata:    map[string]string{"filename": filename},
	}
	l.logger.Debug("ingest.load.ok", "filename", doc.Filename, "kind", doc.Kind, "bytes", doc.Size, "sha256", doc.ContentHash)
	return doc, nil
}

// LoadReader reads at most MaxBytes+1 bytes so oversize input is rejected
// without buffering all of it.
func (l *Loader) LoadReader(r io.Reader, filename string) (*LoadedDocument, error) {
	content, err := io.ReadAll(io.LimitReader(r, l.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}
	return l.LoadBytes(filename, content)
}

// LoadPath reads a document from the local filesystem.
func (l *Loader) LoadPath(path string) (*LoadedDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &ValidationError{Message: fmt.Sprintf("File not found: %s", path), kind: common.ErrNotFound}
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func(f *os.File) {
		if err := f.Close(); err != nil {
			l.logger.Warn("ingest.close_error", "path", path, "error", err)
		}
	}(f)

	doc, err := l.LoadReader(f, path)
	if err != nil {
		return nil, err
	}
	doc.Metadata["path"] = path
	return doc, nil
}
