package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/xela07ax/spaceai-cmdgate/internal/console/api"
	"github.com/xela07ax/spaceai-cmdgate/internal/engine"
	"github.com/xela07ax/spaceai-cmdgate/internal/infra/auth"
)

// Submitter — точка входа шлюза для исполнения.
type Submitter interface {
	Submit(ctx context.Context, req engine.ExecuteRequest) (*engine.Ticket, error)
}

type ExecuteHandler struct {
	gw Submitter
}

func NewExecuteHandler(gw Submitter) *ExecuteHandler {
	return &ExecuteHandler{gw: gw}
}

// Execute — POST /v1/execute.
// 200 — выполнено, 202 — ушло на апрув (без wait), ошибки по kind.
func (h *ExecuteHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req api.ExecuteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if v := r.URL.Query().Get("wait"); v != "" {
		wait, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, invalid("wait must be a boolean"))
			return
		}
		req.Wait = req.Wait || wait
	}
	if err := req.Validate(); err != nil {
		writeError(w, err)
		return
	}
	if req.RequestedBy == "" {
		req.RequestedBy = auth.UserID(r.Context())
	}

	ticket, err := h.gw.Submit(r.Context(), engine.ExecuteRequest{
		Command:     req.Command,
		Args:        req.Args,
		Timeout:     req.Timeout(),
		RequestedBy: req.RequestedBy,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	if ticket.AwaitingApproval() && !req.Wait {
		writeJSON(w, http.StatusAccepted, api.Pending(*ticket.Pending))
		return
	}

	res, err := ticket.Wait(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.Executed(res))
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", api.ErrInvalid, msg)
}
