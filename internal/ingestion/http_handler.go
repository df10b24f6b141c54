package ingestion

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fast-track-solutions1/msi-teamhub/internal/auth"
	"github.com/fast-track-solutions1/msi-teamhub/internal/domain"
	"github.com/fast-track-solutions1/msi-teamhub/internal/repository"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

const defaultMaxUploadBytes = 32 << 20

// Handler exposes the import engine over HTTP.
type Handler struct {
	service        *Service
	logger         logrus.FieldLogger
	maxUploadBytes int64
}

// NewHTTPHandler wraps the service. maxUploadBytes <= 0 selects 32 MiB.
func NewHTTPHandler(service *Service, logger logrus.FieldLogger, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	if logger == nil {
		logger = service.logger
	}
	return &Handler{service: service, logger: logger, maxUploadBytes: maxUploadBytes}
}

// Register mounts the import routes on router.
func (h *Handler) Register(router *mux.Router) {
	api := router.PathPrefix("/api/import").Subrouter()
	api.HandleFunc("/models", h.models).Methods(http.MethodGet)
	api.HandleFunc("/structure", h.structure).Methods(http.MethodGet)
	api.HandleFunc("/template", h.template).Methods(http.MethodGet)
	api.HandleFunc("/upload", h.upload).Methods(http.MethodPost)
	api.HandleFunc("/history", h.history).Methods(http.MethodGet)
	api.HandleFunc("/history_detail", h.historyDetail).Methods(http.MethodGet)
	api.HandleFunc("/history/{id}", h.historyDetail).Methods(http.MethodGet)
}

type uploadResponse struct {
	Success      bool                `json:"success"`
	Model        string              `json:"model"`
	Inserted     int                 `json:"inserted"`
	Updated      int                 `json:"updated"`
	Skipped      int                 `json:"skipped"`
	TotalRows    int                 `json:"total_rows"`
	SuccessCount int                 `json:"success_count"`
	ErrorCount   int                 `json:"error_count"`
	Status       domain.ImportStatus `json:"status"`
	SuccessRate  float64             `json:"success_rate"`
	Errors       []domain.RowError   `json:"errors"`
	Warnings     []string            `json:"warnings"`
	LogID        *uuid.UUID          `json:"log_id"`
}

type runSummary struct {
	ID           uuid.UUID           `json:"id"`
	Model        string              `json:"model"`
	FileName     string              `json:"file_name"`
	ImportedBy   string              `json:"imported_by,omitempty"`
	ImportedAt   time.Time           `json:"imported_at"`
	Status       domain.ImportStatus `json:"status"`
	TotalRows    int                 `json:"total_rows"`
	SuccessCount int                 `json:"success_count"`
	ErrorCount   int                 `json:"error_count"`
	SuccessRate  float64             `json:"success_rate"`
}

type runDetail struct {
	domain.ImportRun
	SuccessRate float64 `json:"success_rate"`
}

func (h *Handler) models(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"models":  h.service.Models(),
	})
}

func (h *Handler) structure(w http.ResponseWriter, r *http.Request) {
	model := modelParam(r)
	if model == "" {
		writeError(w, http.StatusBadRequest, "model is required")
		return
	}
	includeRows, _ := strconv.ParseBool(r.URL.Query().Get("rows"))

	structure, err := h.service.Structure(r.Context(), model, includeRows)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"structure": structure,
	})
}

func (h *Handler) template(w http.ResponseWriter, r *http.Request) {
	model := modelParam(r)
	if model == "" {
		writeError(w, http.StatusBadRequest, "model is required")
		return
	}

	content, err := h.service.Template(r.Context(), model)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="template_%s.xlsx"`, model))
	w.Header().Set("Content-Length", strconv.Itoa(len(content)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid form data: %v", err))
		return
	}

	model := strings.TrimSpace(r.FormValue("model"))
	if model == "" {
		model = strings.TrimSpace(r.FormValue("entity_key"))
	}
	if model == "" {
		writeError(w, http.StatusBadRequest, "model is required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrMissingFile.Error())
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to read file: %v", err))
		return
	}

	principal, _ := auth.PrincipalFromContext(r.Context())
	result, err := h.service.ImportFile(r.Context(), Request{
		EntityKey:  model,
		FileName:   header.Filename,
		ImportedBy: principal,
		Data:       bytes.NewReader(data),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := uploadResponse{
		Success:      true,
		Model:        result.EntityKey,
		Inserted:     result.Inserted,
		Updated:      result.Updated,
		Skipped:      result.Skipped,
		TotalRows:    result.TotalRows,
		SuccessCount: result.SuccessCount,
		ErrorCount:   result.ErrorCount,
		Status:       result.Status,
		SuccessRate:  result.SuccessRate(),
		Errors:       result.Errors,
		Warnings:     result.Warnings,
	}
	if result.RunID != uuid.Nil {
		id := result.RunID
		resp.LogID = &id
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	runs, err := h.service.History(r.Context(), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	summaries := make([]runSummary, 0, len(runs))
	for _, run := range runs {
		summaries = append(summaries, runSummary{
			ID:           run.ID,
			Model:        run.EntityKey,
			FileName:     run.FileName,
			ImportedBy:   run.ImportedBy,
			ImportedAt:   run.ImportedAt,
			Status:       run.Status,
			TotalRows:    run.TotalRows,
			SuccessCount: run.SuccessCount,
			ErrorCount:   run.ErrorCount,
			SuccessRate:  run.SuccessRate(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"history": summaries,
	})
}

func (h *Handler) historyDetail(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["id"]
	if raw == "" {
		raw = r.URL.Query().Get("log_id")
	}
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		writeError(w, http.StatusNotFound, "import run not found")
		return
	}

	run, err := h.service.Run(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"log":     runDetail{ImportRun: run, SuccessRate: run.SuccessRate()},
	})
}

// fail maps service errors onto status codes without leaking internals.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case IsClientError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "import run not found")
	default:
		h.logger.WithError(err).WithField("path", r.URL.Path).Error("import request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func modelParam(r *http.Request) string {
	query := r.URL.Query()
	if model := strings.TrimSpace(query.Get("model")); model != "" {
		return model
	}
	return strings.TrimSpace(query.Get("entity_key"))
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
