package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/OsmanWais29/filesecureai-sub002/internal/config"
	"github.com/OsmanWais29/filesecureai-sub002/internal/core/domain"
	"github.com/OsmanWais29/filesecureai-sub002/internal/core/ports"
)

const (
	ownerHeader          = "X-Owner-Id"
	retrievalTierHeader  = "X-Retrieval-Tier"
	defaultUploadMax     = 25 << 20
	multipartMemoryLimit = 8 << 20
)

// ObjectServer streams stored bytes for the signed and public URL tiers.
type ObjectServer interface {
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	VerifySignedToken(key, token string) error
}

// CacheAdmin exposes the offline cache maintenance operations.
type CacheAdmin interface {
	Clear(ctx context.Context)
	Stats(ctx context.Context) (domain.CacheStats, error)
}

// MetricsRecorder is the HTTP side of the metrics registry.
type MetricsRecorder interface {
	Handler() http.Handler
	Middleware(service string, next http.Handler) http.Handler
	RecordUpload(service string, size int64)
}

type Dependencies struct {
	Ingestor   ports.DocumentIngestor
	Duplicates ports.DuplicateChecker
	Resolver   ports.DuplicateResolver
	Versions   ports.VersionService
	Retriever  ports.DocumentRetriever
	Documents  ports.DocumentReader
	Objects    ObjectServer
	Cache      CacheAdmin
	Metrics    MetricsRecorder
}

type Router struct {
	cfg  config.Config
	deps Dependencies
}

func NewRouter(cfg config.Config, deps Dependencies) *Router {
	if cfg.UploadMaxBytes <= 0 {
		cfg.UploadMaxBytes = defaultUploadMax
	}
	return &Router{cfg: cfg, deps: deps}
}

func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware, accessLogMiddleware)
	if rt.deps.Metrics != nil {
		r.Use(func(next http.Handler) http.Handler {
			return rt.deps.Metrics.Middleware("api", next)
		})
		r.Method(http.MethodGet, "/metrics", rt.deps.Metrics.Handler())
	}
	r.Get("/healthz", rt.healthz)

	r.Group(func(r chi.Router) {
		if rt.cfg.APIRateLimitRPS > 0 {
			r.Use(func(next http.Handler) http.Handler {
				return rateLimitMiddleware(next, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
			})
		}
		if rt.cfg.APIBackpressureMaxInFlight > 0 {
			r.Use(func(next http.Handler) http.Handler {
				return backpressureMiddleware(next, rt.cfg.APIBackpressureMaxInFlight, rt.cfg.APIBackpressureWait)
			})
		}

		r.Route("/v1/documents", func(r chi.Router) {
			r.Use(requireOwner)
			r.Post("/", rt.uploadDocument)
			r.Post("/duplicates", rt.checkDuplicates)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", rt.getDocument)
				r.Get("/status", rt.getStatus)
				r.Post("/duplicate-resolution", rt.resolveDuplicate)
				r.Get("/versions", rt.listVersions)
				r.Post("/versions", rt.createVersion)
				r.Post("/versions/{versionID}/current", rt.switchVersion)
				r.Delete("/versions/{versionID}", rt.deleteVersion)
				r.Get("/url", rt.resolveURL)
				r.Get("/content", rt.downloadContent)
			})
		})

		r.Get("/v1/objects/*", rt.serveSignedObject)
		r.Head("/v1/objects/*", rt.serveSignedObject)
		r.Get("/public/*", rt.servePublicObject)
		r.Head("/public/*", rt.servePublicObject)

		r.Route("/v1/cache", func(r chi.Router) {
			r.Use(requireOwner)
			r.Delete("/", rt.clearCache)
			r.Get("/stats", rt.cacheStats)
		})
	})
	return r
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	file, ok := rt.readUpload(w, r, true)
	if !ok {
		return
	}
	query := r.URL.Query()
	opts := domain.ProcessOptions{
		SkipDuplicateCheck: queryBool(query, "skip_duplicate_check"),
		ForceAnalysis:      queryBool(query, "force_analysis"),
		ClientHint:         strings.TrimSpace(query.Get("client_hint")),
		Title:              strings.TrimSpace(query.Get("title")),
	}
	owner := ownerFromContext(r.Context())
	if rt.deps.Metrics != nil {
		rt.deps.Metrics.RecordUpload("api", file.Size())
	}

	if queryBool(query, "async") {
		result, err := rt.deps.Ingestor.Submit(r.Context(), file, owner, opts)
		if err != nil {
			writeProcessError(w, result, err)
			return
		}
		writeJSON(w, http.StatusAccepted, result)
		return
	}

	result, err := rt.deps.Ingestor.Process(r.Context(), file, owner, opts)
	if err != nil {
		writeProcessError(w, result, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (rt *Router) checkDuplicates(w http.ResponseWriter, r *http.Request) {
	file, ok := rt.readUpload(w, r, true)
	if !ok {
		return
	}
	check := rt.deps.Duplicates.Check(r.Context(), file, ownerFromContext(r.Context()))
	writeJSON(w, http.StatusOK, check)
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := rt.ownedDocument(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) getStatus(w http.ResponseWriter, r *http.Request) {
	doc, err := rt.ownedDocument(r)
	if err != nil {
		writeError(w, err)
		return
	}
	state, err := rt.deps.Ingestor.GetStatus(r.Context(), doc.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (rt *Router) resolveDuplicate(w http.ResponseWriter, r *http.Request) {
	file, ok := rt.readUpload(w, r, false)
	if !ok {
		return
	}
	req := ports.ResolutionRequest{
		Resolution: domain.DuplicateResolution(strings.TrimSpace(r.FormValue("resolution"))),
		ExistingID: chi.URLParam(r, "id"),
		File:       file,
		OwnerID:    ownerFromContext(r.Context()),
		NewTitle:   strings.TrimSpace(r.FormValue("new_title")),
		ChangeNote: strings.TrimSpace(r.FormValue("change_note")),
	}
	outcome, err := rt.deps.Resolver.Resolve(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (rt *Router) listVersions(w http.ResponseWriter, r *http.Request) {
	doc, err := rt.ownedDocument(r)
	if err != nil {
		writeError(w, err)
		return
	}
	history, err := rt.deps.Versions.GetHistory(r.Context(), doc.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"document_id": doc.ID, "versions": history})
}

func (rt *Router) createVersion(w http.ResponseWriter, r *http.Request) {
	doc, err := rt.ownedDocument(r)
	if err != nil {
		writeError(w, err)
		return
	}
	file, ok := rt.readUpload(w, r, true)
	if !ok {
		return
	}
	versionID, err := rt.deps.Versions.CreateVersion(
		r.Context(),
		doc.ID,
		file,
		ownerFromContext(r.Context()),
		strings.TrimSpace(r.FormValue("change_note")),
	)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"document_id": doc.ID, "version_id": versionID})
}

func (rt *Router) switchVersion(w http.ResponseWriter, r *http.Request) {
	doc, err := rt.ownedDocument(r)
	if err != nil {
		writeError(w, err)
		return
	}
	versionID := chi.URLParam(r, "versionID")
	if err := rt.deps.Versions.SwitchTo(r.Context(), doc.ID, versionID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"document_id": doc.ID, "current_version_id": versionID})
}

func (rt *Router) deleteVersion(w http.ResponseWriter, r *http.Request) {
	doc, err := rt.ownedDocument(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := rt.deps.Versions.DeleteVersion(r.Context(), doc.ID, chi.URLParam(r, "versionID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) resolveURL(w http.ResponseWriter, r *http.Request) {
	doc, err := rt.ownedDocument(r)
	if err != nil {
		writeError(w, err)
		return
	}
	resolution, err := rt.deps.Retriever.Resolve(r.Context(), storageRef(doc), credentialsFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resolution)
}

func (rt *Router) downloadContent(w http.ResponseWriter, r *http.Request) {
	doc, err := rt.ownedDocument(r)
	if err != nil {
		writeError(w, err)
		return
	}
	resolution, err := rt.deps.Retriever.Download(r.Context(), storageRef(doc), credentialsFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	contentType := resolution.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(resolution.Content)))
	w.Header().Set(retrievalTierHeader, string(resolution.Tier))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(resolution.Content)
}

func (rt *Router) serveSignedObject(w http.ResponseWriter, r *http.Request) {
	key, err := objectKey(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := rt.deps.Objects.VerifySignedToken(key, r.URL.Query().Get("token")); err != nil {
		writeError(w, err)
		return
	}
	rt.serveObject(w, r, key)
}

func (rt *Router) servePublicObject(w http.ResponseWriter, r *http.Request) {
	key, err := objectKey(r)
	if err != nil {
		writeError(w, err)
		return
	}
	rt.serveObject(w, r, key)
}

func (rt *Router) serveObject(w http.ResponseWriter, r *http.Request, key string) {
	body, err := rt.deps.Objects.Open(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	defer body.Close()

	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, body); err != nil {
		slog.Warn("object_stream_failed", "request_id", requestIDFromContext(r.Context()), "path", key, "error", err)
	}
}

func (rt *Router) clearCache(w http.ResponseWriter, r *http.Request) {
	rt.deps.Cache.Clear(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) cacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := rt.deps.Cache.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (rt *Router) ownedDocument(r *http.Request) (*domain.Document, error) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "document id", errors.New("document id is required"))
	}
	doc, err := rt.deps.Documents.GetByID(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if doc.OwnerID != ownerFromContext(r.Context()) {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "document", fmt.Errorf("document %s", id))
	}
	return doc, nil
}

// readUpload reads the multipart "file" field into memory, bounded by UploadMaxBytes.
// It writes the error response itself and reports whether the handler may continue.
func (rt *Router) readUpload(w http.ResponseWriter, r *http.Request, required bool) (domain.File, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.UploadMaxBytes)
	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		if !required && errors.Is(err, http.ErrNotMultipart) {
			return domain.File{}, true
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "upload exceeds size limit"})
			return domain.File{}, false
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart body is required"})
		return domain.File{}, false
	}

	part, header, err := r.FormFile("file")
	if err != nil {
		if !required && errors.Is(err, http.ErrMissingFile) {
			return domain.File{}, true
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return domain.File{}, false
	}
	defer part.Close()

	data, err := io.ReadAll(part)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "read upload: " + err.Error()})
		return domain.File{}, false
	}
	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	return domain.File{Name: header.Filename, MimeType: mimeType, Data: data}, true
}

func storageRef(doc *domain.Document) domain.StorageRef {
	return domain.StorageRef{DocumentID: doc.ID, Path: doc.StoragePath, ContentType: doc.MimeType}
}

func credentialsFrom(r *http.Request) domain.Credentials {
	return domain.Credentials{
		OwnerID: ownerFromContext(r.Context()),
		Token:   bearerToken(r.Header.Get("Authorization")),
	}
}

func bearerToken(headerValue string) string {
	headerValue = strings.TrimSpace(headerValue)
	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(headerValue, bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(headerValue, bearerPrefix))
}

func objectKey(r *http.Request) (string, error) {
	raw := chi.URLParam(r, "*")
	key, err := url.PathUnescape(raw)
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "object path", err)
	}
	key = strings.Trim(key, "/")
	if key == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "object path", errors.New("object path is required"))
	}
	return key, nil
}

func queryBool(values url.Values, key string) bool {
	parsed, err := strconv.ParseBool(values.Get(key))
	return err == nil && parsed
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	status := mapErrorToHTTPStatus(err)
	body := map[string]any{"error": err.Error()}

	var retrieval *domain.RetrievalError
	if errors.As(err, &retrieval) {
		body["attempts"] = retrieval.Attempts
	}
	var stage *domain.StageError
	if errors.As(err, &stage) {
		body["stage"] = stage.Stage
		body["progress"] = stage.Progress
	}
	if status >= http.StatusInternalServerError {
		slog.Error("http_handler_failed", "status", status, "error", err)
	}
	writeJSON(w, status, body)
}

// writeProcessError keeps the partial pipeline result in the body so callers can
// inspect duplicate candidates or the stage that stopped.
func writeProcessError(w http.ResponseWriter, result *domain.ProcessResult, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("http_handler_failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]any{"error": err.Error(), "result": result})
}
