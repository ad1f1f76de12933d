package handler

import (
	"net/http"
	"strconv"

	"github.com/xela07ax/spaceai-cmdgate/internal/audit"
	"github.com/xela07ax/spaceai-cmdgate/internal/console/service"
)

type AuditHandler struct {
	service *service.AuditService
}

func NewAuditHandler(s *service.AuditService) *AuditHandler {
	return &AuditHandler{service: s}
}

// GetLogs возвращает журнал аудита с фильтрацией
// GET /v1/audit?command=...&type=...&pending_id=...&trace_id=...&limit=...
func (h *AuditHandler) GetLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := audit.Filter{
		Command:   q.Get("command"),
		Type:      q.Get("type"),
		PendingID: q.Get("pending_id"),
		TraceID:   q.Get("trace_id"),
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeError(w, invalid("limit must be a non-negative integer"))
			return
		}
		f.Limit = limit
	}

	logs, err := h.service.FetchLogs(r.Context(), f)
	if err != nil {
		http.Error(w, "Failed to fetch audit logs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}
