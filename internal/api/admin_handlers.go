package api

import (
	"net/http"

	"schoolpoints/relay/internal/models/dtos/requests"
)

// RegisterHandler handles POST /api/register
func RegisterHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req requests.RegisterRequest
		if err := decodeJSON(r, &req); err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		result, err := deps.Services.Register.Register(r.Context(), &req)
		if err != nil {
			respondWithServiceError(w, err)
			return
		}

		respondWithSuccess(w, http.StatusCreated, result)
	}
}

// AdminLoginHandler handles POST /api/admin/login
func AdminLoginHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req requests.AdminLoginRequest
		if err := decodeJSON(r, &req); err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		result, err := deps.Services.Register.AdminLogin(r.Context(), &req)
		if err != nil {
			respondWithServiceError(w, err)
			return
		}

		respondWithSuccess(w, http.StatusOK, result)
	}
}
