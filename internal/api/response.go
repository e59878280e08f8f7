package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"schoolpoints/relay/internal/constants"
	"schoolpoints/relay/internal/models/dtos/responses"
)

func respondWithSuccess[T any](w http.ResponseWriter, statusCode int, data *T) {
	resp := responses.APIResponse[T]{
		Status:    "success",
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	w.Header().Set("Content-Type", "application/json")

	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	resp := responses.APIResponse[any]{
		Status:    "error",
		Timestamp: time.Now().UTC(),
		Error:     message,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	_ = json.NewEncoder(w).Encode(resp)
}

// respondWithServiceError maps the service error taxonomy onto HTTP statuses.
// Anything outside the taxonomy is a storage or internal failure and stays
// opaque to the caller.
func respondWithServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, constants.ErrInvalid):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, constants.ErrUnauthorized):
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, constants.ErrNotFound):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, constants.ErrConflict):
		respondWithError(w, http.StatusConflict, err.Error())
	default:
		respondWithError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}
