package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/getkin/kin-openapi/routers"
	"github.com/oapi-codegen/runtime"

	"github.com/kirillkom/textify/internal/config"
	"github.com/kirillkom/textify/internal/core/domain"
	"github.com/kirillkom/textify/internal/core/ports"
	"github.com/kirillkom/textify/internal/observability/metrics"
)

const (
	metricsService        = "api"
	multipartMemoryBytes  = 32 << 20
	backpressureWait      = 250 * time.Millisecond
	defaultMaxFilesPerReq = 20
)

type Router struct {
	cfg      config.Config
	sessions ports.SessionService
	audit    ports.AuditService
	metrics  *metrics.HTTPServerMetrics
	openapi  routers.Router
}

// NewRouter wires the session API. audit and httpMetrics are optional.
func NewRouter(
	cfg config.Config,
	sessions ports.SessionService,
	audit ports.AuditService,
	httpMetrics *metrics.HTTPServerMetrics,
) *Router {
	rt := &Router{
		cfg:      cfg,
		sessions: sessions,
		audit:    audit,
		metrics:  httpMetrics,
	}
	if cfg.OpenAPIValidation {
		router, err := loadOpenAPIRouter()
		if err != nil {
			slog.Error("openapi_router_init_failed", "error", err)
		} else {
			rt.openapi = router
		}
	}
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	mux.HandleFunc("POST /v1/sessions", rt.createSession)
	mux.HandleFunc("GET /v1/sessions/{sessionID}", rt.getSession)
	mux.HandleFunc("DELETE /v1/sessions/{sessionID}", rt.closeSession)

	mux.HandleFunc("POST /v1/sessions/{sessionID}/images", rt.addImages)
	mux.HandleFunc("DELETE /v1/sessions/{sessionID}/images", rt.clearImages)
	mux.HandleFunc("GET /v1/sessions/{sessionID}/images/{index}", rt.previewImage)
	mux.HandleFunc("DELETE /v1/sessions/{sessionID}/images/{index}", rt.removeImage)

	mux.HandleFunc("POST /v1/sessions/{sessionID}/camera", rt.startCamera)
	mux.HandleFunc("POST /v1/sessions/{sessionID}/camera/capture", rt.captureFrame)
	mux.HandleFunc("DELETE /v1/sessions/{sessionID}/camera", rt.cancelCamera)

	mux.HandleFunc("POST /v1/sessions/{sessionID}/results/{index}/copy", rt.copyResult)
	mux.HandleFunc("POST /v1/sessions/{sessionID}/exports", rt.createExport)
	mux.HandleFunc("GET /v1/sessions/{sessionID}/exports/{exportID}", rt.downloadExport)

	if rt.audit != nil {
		mux.HandleFunc("GET /v1/sessions/{sessionID}/events", rt.listEvents)
	}

	var handler http.Handler = mux
	if rt.openapi != nil {
		handler = openAPIValidationMiddleware(rt.openapi, handler)
	}
	handler = backpressureMiddleware(handler, rt.cfg.HTTPMaxInFlight, backpressureWait)
	handler = rateLimitMiddleware(handler, rt.cfg.HTTPRateLimitRPS, rt.cfg.HTTPRateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(metricsService, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) createSession(w http.ResponseWriter, r *http.Request) {
	snap, err := rt.sessions.Create(r.Context())
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.SessionOpened()
	}
	w.Header().Set("Location", "/v1/sessions/"+snap.ID)
	writeJSON(w, http.StatusCreated, snap)
}

func (rt *Router) getSession(w http.ResponseWriter, r *http.Request) {
	snap, err := rt.sessions.Get(r.Context(), r.PathValue("sessionID"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (rt *Router) closeSession(w http.ResponseWriter, r *http.Request) {
	if err := rt.sessions.Close(r.Context(), r.PathValue("sessionID")); err != nil {
		rt.writeError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.SessionClosed()
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) addImages(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionID")
	maxFiles := rt.cfg.HTTPMaxFilesPerRequest
	if maxFiles <= 0 {
		maxFiles = defaultMaxFilesPerReq
	}
	maxImageBytes := rt.maxImageBytes()
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxFiles)*2*maxImageBytes)

	if err := r.ParseMultipartForm(multipartMemoryBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "request body too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'files' is required"})
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'files' is required"})
		return
	}
	if len(headers) > maxFiles {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": fmt.Sprintf("at most %d files per request", maxFiles),
		})
		return
	}

	uploads := make([]domain.Upload, 0, len(headers))
	for _, header := range headers {
		upload, err := readUpload(header, maxImageBytes)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		uploads = append(uploads, upload)
	}

	outcome, err := rt.sessions.AddFiles(r.Context(), sessionID, uploads)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if rt.metrics != nil {
		for _, rejection := range outcome.Rejected {
			rt.metrics.RecordRejectedFile(metricsService, rejectionReason(rejection.Err))
		}
	}

	snap, err := rt.sessions.Get(r.Context(), sessionID)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"accepted": outcome.Accepted,
		"rejected": outcome.Rejected,
		"session":  snap,
	})
}

// readUpload loads one multipart file. Files above the image limit keep only their
// declared size so the capture validator can reject them without buffering.
func readUpload(header *multipart.FileHeader, maxImageBytes int64) (domain.Upload, error) {
	upload := domain.Upload{
		Filename: header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Size:     header.Size,
	}
	if header.Size > maxImageBytes {
		return upload, nil
	}

	file, err := header.Open()
	if err != nil {
		return domain.Upload{}, fmt.Errorf("open %s: %w", header.Filename, err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImageBytes+1))
	if err != nil {
		return domain.Upload{}, fmt.Errorf("read %s: %w", header.Filename, err)
	}
	upload.Data = data
	return upload, nil
}

func (rt *Router) maxImageBytes() int64 {
	if rt.cfg.MaxImageBytes > 0 {
		return rt.cfg.MaxImageBytes
	}
	return domain.MaxImageBytes
}

func rejectionReason(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrFileTooLarge):
		return "too_large"
	case domain.IsKind(err, domain.ErrUnsupportedMedia):
		return "unsupported_media"
	default:
		return "invalid"
	}
}

func (rt *Router) clearImages(w http.ResponseWriter, r *http.Request) {
	if err := rt.sessions.ClearAll(r.Context(), r.PathValue("sessionID")); err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) previewImage(w http.ResponseWriter, r *http.Request) {
	index, ok := bindIndex(w, r)
	if !ok {
		return
	}
	preview, err := rt.sessions.Preview(r.Context(), r.PathValue("sessionID"), index)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

func (rt *Router) removeImage(w http.ResponseWriter, r *http.Request) {
	index, ok := bindIndex(w, r)
	if !ok {
		return
	}
	if err := rt.sessions.RemoveAt(r.Context(), r.PathValue("sessionID"), index); err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) startCamera(w http.ResponseWriter, r *http.Request) {
	if err := rt.sessions.StartCamera(r.Context(), r.PathValue("sessionID")); err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) captureFrame(w http.ResponseWriter, r *http.Request) {
	entry, err := rt.sessions.CaptureFromCamera(r.Context(), r.PathValue("sessionID"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, entry)
}

func (rt *Router) cancelCamera(w http.ResponseWriter, r *http.Request) {
	if err := rt.sessions.CancelCamera(r.Context(), r.PathValue("sessionID")); err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) copyResult(w http.ResponseWriter, r *http.Request) {
	index, ok := bindIndex(w, r)
	if !ok {
		return
	}
	text, err := rt.sessions.Copy(r.Context(), r.PathValue("sessionID"), index)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

func (rt *Router) createExport(w http.ResponseWriter, r *http.Request) {
	format, ok := domain.ParseExportFormat(r.URL.Query().Get("format"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported export format"})
		return
	}

	sessionID := r.PathValue("sessionID")
	artifact, err := rt.sessions.Export(r.Context(), sessionID, format)
	if rt.metrics != nil {
		rt.metrics.RecordExport(metricsService, string(format), err)
	}
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/sessions/"+sessionID+"/exports/"+artifact.ID)
	writeJSON(w, http.StatusCreated, artifact)
}

func (rt *Router) downloadExport(w http.ResponseWriter, r *http.Request) {
	artifact, body, err := rt.sessions.OpenExport(r.Context(), r.PathValue("sessionID"), r.PathValue("exportID"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", artifact.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": artifact.Filename,
	}))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		slog.Warn("export_download_interrupted",
			"request_id", requestIDFromContext(r.Context()),
			"export_id", artifact.ID,
			"error", err,
		)
	}
}

func (rt *Router) listEvents(w http.ResponseWriter, r *http.Request) {
	var limit int
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &limit); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
		return
	}
	events, err := rt.audit.List(r.Context(), r.PathValue("sessionID"), limit)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func bindIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	var index int
	err := runtime.BindStyledParameterWithOptions("simple", "index", r.PathValue("index"), &index, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
		Required:      true,
	})
	if err != nil || index < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "index must be a non-negative integer"})
		return 0, false
	}
	return index, true
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("http_handler_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
