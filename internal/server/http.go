package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/joseph-ayodele/document-extractor/constants"
	"github.com/joseph-ayodele/document-extractor/internal/common"
	"github.com/joseph-ayodele/document-extractor/internal/pipeline"
	"github.com/joseph-ayodele/document-extractor/internal/repository"
)

const (
	multipartMemory = 32 << 20
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// HTTPConfig bounds request bodies.
type HTTPConfig struct {
	MaxUploadBytes int64 // per request, all files included
}

type httpHandler struct {
	svc    *Service
	cfg    HTTPConfig
	logger *slog.Logger
}

// NewHTTPHandler builds the REST router. metrics may be nil.
func NewHTTPHandler(svc *Service, cfg HTTPConfig, metrics http.Handler, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 50 << 20
	}
	h := &httpHandler{svc: svc, cfg: cfg, logger: logger}

	r := mux.NewRouter()
	r.Use(h.requestID)
	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.HandleFunc("/extract", h.extract).Methods(http.MethodPost)
	r.HandleFunc("/extract/batch", h.extractBatch).Methods(http.MethodPost)
	r.HandleFunc("/documents", h.listDocuments).Methods(http.MethodGet)
	r.HandleFunc("/documents/export", h.exportDocuments).Methods(http.MethodGet)
	r.HandleFunc("/documents/{id}", h.getDocument).Methods(http.MethodGet)
	r.HandleFunc("/jobs/{id}", h.getJob).Methods(http.MethodGet)
	r.HandleFunc("/templates", h.listTemplates).Methods(http.MethodGet)
	if metrics != nil {
		r.Handle("/metrics", metrics).Methods(http.MethodGet)
	}
	return r
}

func (h *httpHandler) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		start := time.Now()
		next.ServeHTTP(w, r.WithContext(common.WithRequestID(r.Context(), id)))
		h.logger.Debug("http.request", "request_id", id, "method", r.Method, "path", r.URL.Path, "elapsed_ms", time.Since(start).Milliseconds())
	})
}

func (h *httpHandler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Health(r.Context()))
}

func (h *httpHandler) extract(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		h.fail(w, r, uploadError(err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		h.fail(w, r, common.NewAppError("INVALID_REQUEST", "multipart field 'file' is required", common.ErrInvalidInput))
		return
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		h.fail(w, r, uploadError(err))
		return
	}

	resp, err := h.svc.Extract(r.Context(), header.Filename, content, r.URL.Query().Get("document_type"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type batchResponse struct {
	BatchID        string                        `json:"batch_id"`
	Status         constants.JobStatus           `json:"status"`
	TotalDocuments int                           `json:"total_documents"`
	Processed      int                           `json:"processed_documents"`
	Failed         int                           `json:"failed_documents"`
	Results        []pipeline.ExtractionResponse `json:"results"`
}

func (h *httpHandler) extractBatch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		h.fail(w, r, uploadError(err))
		return
	}
	hint := r.URL.Query().Get("document_type")
	files := r.MultipartForm.File["files"]
	items := make([]pipeline.BatchItem, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			h.fail(w, r, uploadError(err))
			return
		}
		content, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			h.fail(w, r, uploadError(err))
			return
		}
		items = append(items, pipeline.BatchItem{Filename: fh.Filename, Content: content, Hint: hint})
	}

	res, err := h.svc.ExtractBatch(r.Context(), items)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, batchResponse{
		BatchID:        res.BatchID,
		Status:         res.Status,
		TotalDocuments: res.TotalDocuments,
		Processed:      res.Processed,
		Failed:         res.Failed,
		Results:        res.Responses(),
	})
}

func (h *httpHandler) getDocument(w http.ResponseWriter, r *http.Request) {
	resp, err := h.svc.GetDocument(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *httpHandler) listDocuments(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	docs, err := h.svc.ListDocuments(r.Context(), opts)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs, "count": len(docs)})
}

func (h *httpHandler) exportDocuments(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	xlsx, err := h.svc.ExportXLSX(r.Context(), opts)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="documents.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(xlsx)
}

func (h *httpHandler) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.svc.GetJob(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *httpHandler) listTemplates(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"templates": h.svc.ListTemplates()})
}

func listOptions(r *http.Request) (repository.ListOptions, error) {
	q := r.URL.Query()
	opts := repository.ListOptions{
		Status:       constants.DocumentStatus(q.Get("status")),
		DocumentType: constants.DocumentType(q.Get("document_type")),
	}
	for name, dst := range map[string]*int{"limit": &opts.Limit, "offset": &opts.Offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return opts, common.NewAppError("INVALID_REQUEST", fmt.Sprintf("%s must be a non-negative integer", name), common.ErrInvalidInput)
		}
		*dst = n
	}
	return opts, nil
}

func uploadError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return common.NewAppError("FILE_TOO_LARGE", fmt.Sprintf("request exceeds %d bytes", tooLarge.Limit), common.ErrTooLarge)
	}
	return common.NewAppError("INVALID_REQUEST", "malformed multipart upload", errors.Join(common.ErrInvalidInput, err))
}

type errorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func (h *httpHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := httpStatus(err)
	body := errorBody{Error: err.Error(), RequestID: common.RequestIDFromContext(r.Context())}
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		body.Code = appErr.Code
		body.Error = appErr.Message
	}
	if isClientError(err) {
		h.logger.Warn("http.rejected", "path", r.URL.Path, "status", status, "error", err)
	} else {
		h.logger.Error("http.failed", "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, body)
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, common.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, common.ErrInvalidInput), errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
