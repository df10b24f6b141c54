package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/fast-track-solutions1/msi-teamhub/internal/repository"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	service *Service
	logger  logrus.FieldLogger
}

func NewHTTPHandler(service *Service, logger logrus.FieldLogger) *Handler {
	if logger == nil {
		logger = service.logger
	}
	return &Handler{service: service, logger: logger}
}

// Register mounts the report download next to the import history routes.
func (h *Handler) Register(router *mux.Router) {
	router.HandleFunc("/api/import/history/{id}/errors", h.handleDownload).Methods(http.MethodGet)
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(strings.TrimSpace(mux.Vars(r)["id"]))
	if err != nil {
		writeError(w, http.StatusNotFound, "import run not found")
		return
	}

	var buf bytes.Buffer
	report, err := h.service.WriteErrorReport(r.Context(), id, &buf)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "import run not found")
			return
		}
		h.logger.WithError(err).WithField("run", id).Error("error report failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", report.FileName))
	http.ServeContent(w, r, report.FileName, report.Run.UpdatedAt, bytes.NewReader(buf.Bytes()))
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   message,
	})
}
