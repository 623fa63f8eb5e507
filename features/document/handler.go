package document

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/VictorGavo/milvus-search/internal/config"
	"github.com/VictorGavo/milvus-search/internal/events"
	"github.com/VictorGavo/milvus-search/internal/middleware"
	"github.com/VictorGavo/milvus-search/internal/segment"
)

// Ingester runs the ingestion pipeline for one saved file.
type Ingester interface {
	Ingest(ctx context.Context, path string, strategy segment.Strategy) (*Report, error)
}

// TaskPublisher hands ingestion work to the queue for the async path.
type TaskPublisher interface {
	Publish(topic string, body []byte) error
}

type Handler struct {
	service   Ingester
	publisher TaskPublisher
	uploadDir string
	maxBytes  int64
}

func NewHandler(service Ingester, publisher TaskPublisher, uploadDir string, maxUploadSizeMB int64) *Handler {
	return &Handler{
		service:   service,
		publisher: publisher,
		uploadDir: uploadDir,
		maxBytes:  maxUploadSizeMB << 20,
	}
}

type fileResult struct {
	File   string  `json:"file"`
	Status string  `json:"status"`
	Error  string  `json:"error,omitempty"`
	Report *Report `json:"report,omitempty"`
}

// Upload ingests one or more uploaded PDFs synchronously and returns the
// per-unit outcome report for each.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	files, strategy, ok := h.parseUpload(w, r)
	if !ok {
		return
	}

	results := make([]fileResult, 0, len(files))
	for _, fh := range files {
		path, err := h.saveUpload(fh)
		if err != nil {
			results = append(results, fileResult{File: fh.Filename, Status: "failed", Error: err.Error()})
			continue
		}

		report, err := h.service.Ingest(r.Context(), path, strategy)
		if err != nil {
			slog.ErrorContext(r.Context(), "ingestion failed", "file", fh.Filename, "error", err)
			results = append(results, fileResult{File: fh.Filename, Status: "failed", Error: err.Error()})
			continue
		}
		results = append(results, fileResult{File: fh.Filename, Status: report.Status(), Report: report})
	}

	h.writeJSON(r.Context(), w, http.StatusOK, map[string]interface{}{"results": results})
}

// UploadAsync saves the uploaded PDFs and queues an ingest task per file.
func (h *Handler) UploadAsync(w http.ResponseWriter, r *http.Request) {
	files, strategy, ok := h.parseUpload(w, r)
	if !ok {
		return
	}

	results := make([]fileResult, 0, len(files))
	for _, fh := range files {
		path, err := h.saveUpload(fh)
		if err != nil {
			results = append(results, fileResult{File: fh.Filename, Status: "failed", Error: err.Error()})
			continue
		}

		task := events.IngestTask{
			Path:          path,
			Strategy:      string(strategy),
			CorrelationID: middleware.GetCorrelationID(r.Context()),
		}
		body, _ := json.Marshal(task)
		if err := h.publisher.Publish(config.TopicIngestTask, body); err != nil {
			slog.ErrorContext(r.Context(), "failed to publish ingest task", "file", fh.Filename, "error", err)
			results = append(results, fileResult{File: fh.Filename, Status: "failed", Error: "failed to queue ingestion"})
			continue
		}
		results = append(results, fileResult{File: fh.Filename, Status: "queued"})
	}

	h.writeJSON(r.Context(), w, http.StatusAccepted, map[string]interface{}{"results": results})
}

func (h *Handler) parseUpload(w http.ResponseWriter, r *http.Request) ([]*multipart.FileHeader, segment.Strategy, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "invalid multipart request: "+err.Error(), http.StatusBadRequest)
		return nil, "", false
	}

	files := r.MultipartForm.File["document"]
	if len(files) == 0 {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "no files in 'document' field", http.StatusBadRequest)
		return nil, "", false
	}

	for _, fh := range files {
		if !strings.EqualFold(filepath.Ext(fh.Filename), ".pdf") {
			h.writeError(r.Context(), w, "VALIDATION_ERROR",
				fmt.Sprintf("file type not allowed: %s", fh.Filename), http.StatusBadRequest)
			return nil, "", false
		}
	}

	strategy := segment.Strategy(r.FormValue("strategy"))
	switch strategy {
	case "", segment.StrategyPage, segment.StrategySection:
	default:
		h.writeError(r.Context(), w, "VALIDATION_ERROR",
			fmt.Sprintf("unknown strategy %q", strategy), http.StatusBadRequest)
		return nil, "", false
	}

	return files, strategy, true
}

func (h *Handler) saveUpload(fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("opening upload: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(h.uploadDir, 0o750); err != nil {
		return "", fmt.Errorf("creating upload dir: %w", err)
	}

	// Prefix with a short uuid so concurrent uploads of same-named files
	// never clobber each other.
	name := uuid.New().String()[:8] + "_" + filepath.Base(fh.Filename)
	path := filepath.Join(h.uploadDir, name)

	dst, err := os.Create(path) // #nosec G304 -- path is built from config dir + sanitized base name
	if err != nil {
		return "", fmt.Errorf("creating file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return path, nil
}

func (h *Handler) writeJSON(ctx context.Context, w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(ctx, "failed to encode error response", "error", err)
	}
}
