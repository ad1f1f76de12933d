package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xela07ax/spaceai-cmdgate/internal/console/api"
	"github.com/xela07ax/spaceai-cmdgate/internal/console/service"
)

type WhitelistHandler struct {
	service *service.WhitelistService
}

func NewWhitelistHandler(s *service.WhitelistService) *WhitelistHandler {
	return &WhitelistHandler{service: s}
}

// List — GET /v1/whitelist, снапшот записей.
func (h *WhitelistHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.List())
}

// Create — POST /v1/whitelist. Существующая запись с тем же именем перезаписывается.
func (h *WhitelistHandler) Create(w http.ResponseWriter, r *http.Request) {
	var entry api.WhitelistEntry
	if err := decodeJSON(r, &entry); err != nil {
		writeError(w, err)
		return
	}
	if err := api.ValidateEntry(entry); err != nil {
		writeError(w, err)
		return
	}

	h.service.Add(r.Context(), entry)
	writeJSON(w, http.StatusCreated, entry)
}

// UpdateLevel — PUT /v1/whitelist/{command}/level. Неизвестное имя — молча 204.
func (h *WhitelistHandler) UpdateLevel(w http.ResponseWriter, r *http.Request) {
	command := chi.URLParam(r, "command")

	var req api.LevelUpdate
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := api.ValidateLevel(req.SecurityLevel); err != nil {
		writeError(w, err)
		return
	}

	h.service.UpdateLevel(r.Context(), command, req.SecurityLevel)
	w.WriteHeader(http.StatusNoContent)
}

// Delete — DELETE /v1/whitelist/{command}. Удаление отсутствующего — тоже 204.
func (h *WhitelistHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.service.Remove(r.Context(), chi.URLParam(r, "command"))
	w.WriteHeader(http.StatusNoContent)
}
