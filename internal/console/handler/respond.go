package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/xela07ax/spaceai-cmdgate/internal/console/api"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError: доменная ошибка -> HTTP статус + JSON с kind.
func writeError(w http.ResponseWriter, err error) {
	resp := api.NewErrorResponse(err)
	writeJSON(w, StatusFor(resp.Kind), resp)
}

func StatusFor(kind string) int {
	switch kind {
	case api.KindInvalid:
		return http.StatusBadRequest
	case api.KindUnauthorized, api.KindForbidden:
		return http.StatusForbidden
	case api.KindNotFound:
		return http.StatusNotFound
	case api.KindDenied:
		return http.StatusConflict
	case api.KindExecution:
		return http.StatusBadGateway
	case api.KindTimeout:
		return http.StatusGatewayTimeout
	case api.KindCanceled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", api.ErrInvalid, err)
	}
	return nil
}
