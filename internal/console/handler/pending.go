package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xela07ax/spaceai-cmdgate/internal/console/api"
	"github.com/xela07ax/spaceai-cmdgate/internal/domain"
	"github.com/xela07ax/spaceai-cmdgate/internal/engine"
	"github.com/xela07ax/spaceai-cmdgate/internal/infra/auth"
)

// ApprovalService Описываем, что нам нужно от шлюза
type ApprovalService interface {
	PendingCommands() []domain.PendingCommand
	ApproveCommand(ctx context.Context, id string) (*domain.ExecutionResult, error)
	DenyCommand(ctx context.Context, id, reason string) error
}

type PendingHandler struct {
	service ApprovalService
}

func NewPendingHandler(s ApprovalService) *PendingHandler {
	return &PendingHandler{service: s}
}

// List — GET /v1/pending, старые запросы первыми.
func (h *PendingHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.FromPendingList(h.service.PendingCommands()))
}

// Approve — POST /v1/pending/{id}/approve. Ответ — результат выполнения.
func (h *PendingHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	res, err := h.service.ApproveCommand(reviewerContext(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.Executed(res))
}

// Deny — POST /v1/pending/{id}/deny, тело {"reason": "..."} необязательно (пустое тело = io.EOF).
func (h *PendingHandler) Deny(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req api.DenyRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, err)
		return
	}

	if err := h.service.DenyCommand(reviewerContext(r), id, req.Reason); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.DenyResponse{ID: id, Status: string(domain.EventDenied)})
}

// reviewerContext переносит id оператора из токена в контекст шлюза.
func reviewerContext(r *http.Request) context.Context {
	return engine.WithActor(r.Context(), auth.UserID(r.Context()))
}
