package marketapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"github.com/LogitTrans/cargolink/internal/models"
	"github.com/LogitTrans/cargolink/internal/services/cargos"
	"github.com/LogitTrans/cargolink/internal/services/ingest"
	"github.com/LogitTrans/cargolink/internal/services/locations"
	"github.com/LogitTrans/cargolink/internal/services/requests"
	"github.com/LogitTrans/cargolink/internal/services/users"
	"github.com/LogitTrans/cargolink/internal/storage/pgmarket"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError переводит ошибки сервисов в HTTP-статусы. Неизвестные
// ошибки наружу не раскрываются.
func writeError(w http.ResponseWriter, err error) {
	var invalid *models.InvalidTransitionError

	switch {
	case errors.Is(err, pgmarket.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	case errors.Is(err, pgmarket.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody{Error: "state changed, retry"})
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusConflict, errorBody{Error: invalid.Error()})
	case errors.Is(err, cargos.ErrForbidden),
		errors.Is(err, requests.ErrForbidden),
		errors.Is(err, users.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden"})
	case errors.Is(err, cargos.ErrValidation),
		errors.Is(err, requests.ErrValidation),
		errors.Is(err, users.ErrValidation),
		errors.Is(err, locations.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, ingest.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
	case errors.Is(err, ingest.ErrRateLimited):
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limited"})
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		badRequest(w, "invalid json body")
		return false
	}
	return true
}

func pathID(r *http.Request, name string) (uint64, error) {
	return strconv.ParseUint(chi.URLParam(r, name), 10, 64)
}

func queryUint(r *http.Request, name string) (*uint64, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return nil, errors.Errorf("invalid %s", name)
	}
	return &v, nil
}

func queryFloat(r *http.Request, name string) (*float64, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, errors.Errorf("invalid %s", name)
	}
	return &v, nil
}

func queryInt(r *http.Request, name string, def int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
