package api

import (
	"net/http"

	"schoolpoints/relay/internal/auth"
	"schoolpoints/relay/internal/models/dtos/requests"
)

type pairApproveResult struct {
	Approved bool `json:"approved"`
}

// PairStartHandler handles POST /api/device/pair/start. Unauthenticated: the
// station has no credentials yet, that is the point of the handshake.
func PairStartHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := deps.Services.Pairing.Start(r.Context())
		if err != nil {
			respondWithServiceError(w, err)
			return
		}
		deps.Metrics.PairingsTotal.WithLabelValues("started").Inc()

		respondWithSuccess(w, http.StatusCreated, result)
	}
}

// PairPollHandler handles GET /api/device/pair/poll?code=XXXX
func PairPollHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			respondWithError(w, http.StatusBadRequest, "code is required")
			return
		}

		result, err := deps.Services.Pairing.Poll(r.Context(), code)
		if err != nil {
			respondWithServiceError(w, err)
			return
		}
		deps.Metrics.PairingsTotal.WithLabelValues(result.Status).Inc()

		respondWithSuccess(w, http.StatusOK, result)
	}
}

// PairApproveHandler handles POST /api/device/pair/approve. Admin-only; the
// approved ticket inherits the admin's tenant credentials.
func PairApproveHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.GetAdminClaims(r.Context())
		if !ok {
			respondWithError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		var req requests.PairApproveRequest
		if err := decodeJSON(r, &req); err != nil || req.Code == "" {
			respondWithError(w, http.StatusBadRequest, "code is required")
			return
		}

		if err := deps.Services.Pairing.Approve(r.Context(), claims.TenantID, req.Code); err != nil {
			respondWithServiceError(w, err)
			return
		}
		deps.Metrics.PairingsTotal.WithLabelValues("approved").Inc()

		respondWithSuccess(w, http.StatusOK, &pairApproveResult{Approved: true})
	}
}
