package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/nucleus/provision-core/internal/credentials"
	"github.com/nucleus/provision-core/internal/endpoint"
	"github.com/nucleus/provision-core/internal/identity"
	"github.com/nucleus/provision-core/internal/persistence"
	"github.com/nucleus/provision-core/internal/schema"
	"github.com/nucleus/provision-core/internal/verify"
)

var errInvalidInput = errors.New("invalid input")

const maxImageSize = 16 << 20

// Handler serves the verification API. Records and Images are optional;
// their routes answer 422 when unset.
type Handler struct {
	svc     *verify.Service
	records *verify.Records
	images  *persistence.Images
	logger  *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(svc *verify.Service, records *verify.Records, images *persistence.Images, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, records: records, images: images, logger: logger}
}

func requestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", requestID(r))
	})
}

// BackendRequest carries a backend configuration. An empty body selects the
// saved configuration.
type BackendRequest struct {
	Kind     endpoint.Kind  `json:"kind"`
	Template string         `json:"template,omitempty"`
	Params   map[string]any `json:"params"`
}

func decode(r *http.Request, v any) (bool, error) {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %v", errInvalidInput, err)
	}
	return true, nil
}

func (h *Handler) backendConfig(r *http.Request) (endpoint.BackendConfig, error) {
	var req BackendRequest
	if _, err := decode(r, &req); err != nil {
		return endpoint.BackendConfig{}, err
	}
	if req.Kind == "" && req.Template == "" {
		return h.svc.LoadState()
	}
	if req.Kind != "" {
		kind, err := endpoint.ParseKind(string(req.Kind))
		if err != nil {
			return endpoint.BackendConfig{}, fmt.Errorf("%w: %v", errInvalidInput, err)
		}
		req.Kind = kind
	}
	if req.Params == nil {
		req.Params = map[string]any{}
	}
	return endpoint.BackendConfig{Kind: req.Kind, Template: req.Template, Params: req.Params}, nil
}

func (h *Handler) listTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Registry().Descriptors())
}

type validateFieldRequest struct {
	Kind   endpoint.Kind `json:"kind"`
	Driver string        `json:"driver,omitempty"`
	Field  string        `json:"field"`
	Value  string        `json:"value"`
}

func (h *Handler) validateField(w http.ResponseWriter, r *http.Request) {
	var req validateFieldRequest
	if _, err := decode(r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}
	if req.Field == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_input", "field is required")
		return
	}
	writeJSON(w, http.StatusOK, h.svc.ValidateField(r.Context(), req.Kind, req.Driver, req.Field, req.Value))
}

func (h *Handler) latestResult(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.LatestResult(r.Context(), endpoint.Kind(chi.URLParam(r, "kind")), chi.URLParam(r, "field"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if res == nil {
		writeError(w, r, http.StatusNotFound, "not_found", "no recent result")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) testConnection(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.backendConfig(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.TestConnection(r.Context(), cfg, nil))
}

func (h *Handler) checkSchema(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.backendConfig(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	status, err := h.svc.CheckSchema(r.Context(), cfg)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

type migrationRequest struct {
	BackendRequest
	Status       *schema.Status `json:"status,omitempty"`
	IncludeDelta bool           `json:"includeDelta,omitempty"`
}

// generateMigration renders the artifact from a supplied status, or
// inspects the backend first when none is given.
func (h *Handler) generateMigration(w http.ResponseWriter, r *http.Request) {
	var req migrationRequest
	if _, err := decode(r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}

	cfg := endpoint.BackendConfig{Kind: req.Kind, Template: req.Template, Params: req.Params}
	if cfg.Kind == "" && cfg.Template == "" {
		saved, err := h.svc.LoadState()
		if err != nil && req.Status == nil {
			writeDomainError(w, r, err)
			return
		}
		cfg = saved
	}

	status := req.Status
	if status == nil {
		st, err := h.svc.CheckSchema(r.Context(), cfg)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		status = &st
	}

	generate := h.svc.GenerateMigrationArtifactFor
	if req.IncludeDelta {
		generate = h.svc.GenerateColumnDeltaFor
	}
	artifact, err := generate(cfg, *status)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/sql; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, artifact.Script)
}

func (h *Handler) runVerify(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.backendConfig(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Verify(r.Context(), cfg, nil))
}

func (h *Handler) getState(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.svc.LoadState()
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BackendRequest{Kind: cfg.Kind, Template: cfg.Template, Params: h.svc.Redact(cfg)})
}

func (h *Handler) putState(w http.ResponseWriter, r *http.Request) {
	var req BackendRequest
	if ok, err := decode(r, &req); err != nil || !ok {
		if err == nil {
			err = fmt.Errorf("%w: empty body", errInvalidInput)
		}
		writeDomainError(w, r, err)
		return
	}
	cfg := endpoint.BackendConfig{Kind: req.Kind, Template: req.Template, Params: req.Params}
	if err := h.svc.SaveState(cfg); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type secretRequest struct {
	Type   string `json:"type"`
	Length int    `json:"length"`
}

type secretResponse struct {
	Type     string                `json:"type"`
	Value    string                `json:"value"`
	Strength *credentials.Strength `json:"strength,omitempty"`
}

func (h *Handler) generateSecret(w http.ResponseWriter, r *http.Request) {
	var req secretRequest
	if _, err := decode(r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}

	var (
		value string
		err   error
	)
	switch req.Type {
	case "", "password":
		req.Type = "password"
		value, err = credentials.GenerateSecurePassword(req.Length)
	case "secretKey":
		value, err = credentials.GenerateSecretKey(req.Length)
	case "accessKey":
		value, err = credentials.GenerateAccessKey(req.Length)
	default:
		writeError(w, r, http.StatusBadRequest, "invalid_input", "type must be password, secretKey or accessKey")
		return
	}
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	resp := secretResponse{Type: req.Type, Value: value}
	if req.Type == "password" {
		s := credentials.PasswordStrength(value)
		resp.Strength = &s
	}
	writeJSON(w, http.StatusOK, resp)
}

type recordRequest struct {
	Fields map[string]any `json:"fields"`
}

func (h *Handler) listRecords(w http.ResponseWriter, r *http.Request) {
	if h.records == nil {
		writeDomainError(w, r, verify.ErrNoRecordBackend)
		return
	}
	writeJSON(w, http.StatusOK, h.records.Collection(chi.URLParam(r, "collection")).List())
}

func (h *Handler) createRecord(w http.ResponseWriter, r *http.Request) {
	if h.records == nil {
		writeDomainError(w, r, verify.ErrNoRecordBackend)
		return
	}
	var req recordRequest
	if _, err := decode(r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}
	coll := h.records.Collection(chi.URLParam(r, "collection"))
	rec := coll.Create(req.Fields)
	h.saveRecord(w, r, coll.Collection(), rec.LocalID, http.StatusCreated)
}

func (h *Handler) updateRecord(w http.ResponseWriter, r *http.Request) {
	if h.records == nil {
		writeDomainError(w, r, verify.ErrNoRecordBackend)
		return
	}
	localID, err := uuid.Parse(chi.URLParam(r, "local_id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_input", "local_id must be a UUID")
		return
	}
	var req recordRequest
	if _, err := decode(r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}
	coll := h.records.Collection(chi.URLParam(r, "collection"))
	for field, value := range req.Fields {
		if err := coll.Edit(localID, field, value); err != nil {
			writeDomainError(w, r, err)
			return
		}
	}
	h.saveRecord(w, r, coll.Collection(), localID, http.StatusOK)
}

// saveRecord persists a record and answers with its current state. Error
// responses carry the record too so the client keeps its local edits.
func (h *Handler) saveRecord(w http.ResponseWriter, r *http.Request, collection string, localID uuid.UUID, okStatus int) {
	coll := h.records.Collection(collection)
	_, err := coll.Save(r.Context(), localID)
	rec, _ := coll.Get(localID)
	if err == nil {
		writeJSON(w, okStatus, rec)
		return
	}

	status, code := mapError(err)
	if status == http.StatusInternalServerError {
		status, code = http.StatusBadGateway, "save_failed"
	}
	resp := ErrorResponse{Code: code, Message: err.Error(), RequestID: requestID(r), Record: rec}
	var conflict *identity.ConflictError
	if errors.As(err, &conflict) {
		resp.Existing = conflict.Existing
	}
	writeJSON(w, status, resp)
}

func (h *Handler) discardRecord(w http.ResponseWriter, r *http.Request) {
	if h.records == nil {
		writeDomainError(w, r, verify.ErrNoRecordBackend)
		return
	}
	localID, err := uuid.Parse(chi.URLParam(r, "local_id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_input", "local_id must be a UUID")
		return
	}
	if !h.records.Collection(chi.URLParam(r, "collection")).Discard(localID) {
		writeError(w, r, http.StatusNotFound, "not_found", "record not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func imagePath(r *http.Request) string {
	return strings.TrimPrefix(chi.URLParam(r, "*"), "/")
}

func (h *Handler) loadImage(w http.ResponseWriter, r *http.Request) {
	if h.images == nil {
		writeDomainError(w, r, verify.ErrNoRecordBackend)
		return
	}
	data, err := h.images.LoadImage(r.Context(), imagePath(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if data == nil {
		writeError(w, r, http.StatusNotFound, "not_found", "image not found")
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) saveImage(w http.ResponseWriter, r *http.Request) {
	if h.images == nil {
		writeDomainError(w, r, verify.ErrNoRecordBackend)
		return
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxImageSize+1))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if len(data) > maxImageSize {
		writeError(w, r, http.StatusRequestEntityTooLarge, "too_large", "image exceeds 16 MiB")
		return
	}
	if err := h.images.SaveImage(r.Context(), imagePath(r), data); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteImage(w http.ResponseWriter, r *http.Request) {
	if h.images == nil {
		writeDomainError(w, r, verify.ErrNoRecordBackend)
		return
	}
	if err := h.images.DeleteImage(r.Context(), imagePath(r)); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
