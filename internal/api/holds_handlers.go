package api

import (
	"net/http"

	appcontext "schoolpoints/relay/internal/context"
	"schoolpoints/relay/internal/models/dtos/requests"
)

// StockHoldHandler handles POST /holds/stock
func StockHoldHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inst, ok := appcontext.Tenant(r.Context())
		if !ok {
			respondWithError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		var req requests.StockHoldRequest
		if err := decodeJSON(r, &req); err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.StationID == "" || req.StudentID == 0 || req.ProductID == 0 {
			respondWithError(w, http.StatusBadRequest, "station_id, student_id and product_id are required")
			return
		}

		result, err := deps.Services.Holds.AdjustStock(r.Context(), inst.TenantID, &req)
		if err != nil {
			deps.Metrics.HoldOpsTotal.WithLabelValues("stock", "refused").Inc()
			respondWithServiceError(w, err)
			return
		}
		deps.Metrics.HoldOpsTotal.WithLabelValues("stock", "ok").Inc()

		respondWithSuccess(w, http.StatusOK, result)
	}
}

// ScheduledHoldHandler handles POST /holds/scheduled
func ScheduledHoldHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inst, ok := appcontext.Tenant(r.Context())
		if !ok {
			respondWithError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		var req requests.ScheduledHoldRequest
		if err := decodeJSON(r, &req); err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.StationID == "" || req.StudentID == 0 || req.ServiceID == 0 || req.ServiceDate == "" {
			respondWithError(w, http.StatusBadRequest, "station_id, student_id, service_id and service_date are required")
			return
		}

		result, err := deps.Services.Holds.CreateScheduled(r.Context(), inst.TenantID, &req)
		if err != nil {
			deps.Metrics.HoldOpsTotal.WithLabelValues("scheduled", "refused").Inc()
			respondWithServiceError(w, err)
			return
		}
		deps.Metrics.HoldOpsTotal.WithLabelValues("scheduled", "ok").Inc()

		respondWithSuccess(w, http.StatusOK, result)
	}
}

// HoldRefreshHandler handles POST /holds/refresh
func HoldRefreshHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inst, ok := appcontext.Tenant(r.Context())
		if !ok {
			respondWithError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		var req requests.HoldHeartbeatRequest
		if err := decodeJSON(r, &req); err != nil || req.StationID == "" {
			respondWithError(w, http.StatusBadRequest, "station_id is required")
			return
		}

		result, err := deps.Services.Holds.Refresh(r.Context(), inst.TenantID, &req)
		if err != nil {
			respondWithServiceError(w, err)
			return
		}

		respondWithSuccess(w, http.StatusOK, result)
	}
}

// HoldClearHandler handles POST /holds/clear
func HoldClearHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inst, ok := appcontext.Tenant(r.Context())
		if !ok {
			respondWithError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		var req requests.HoldClearRequest
		if err := decodeJSON(r, &req); err != nil || req.StationID == "" {
			respondWithError(w, http.StatusBadRequest, "station_id is required")
			return
		}

		result, err := deps.Services.Holds.Clear(r.Context(), inst.TenantID, &req)
		if err != nil {
			respondWithServiceError(w, err)
			return
		}

		respondWithSuccess(w, http.StatusOK, result)
	}
}

// HoldCommitHandler handles POST /holds/commit
func HoldCommitHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inst, ok := appcontext.Tenant(r.Context())
		if !ok {
			respondWithError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		var req requests.HoldCommitRequest
		if err := decodeJSON(r, &req); err != nil || req.StationID == "" || req.StudentID == 0 {
			respondWithError(w, http.StatusBadRequest, "station_id and student_id are required")
			return
		}

		result, err := deps.Services.Holds.Commit(r.Context(), inst.TenantID, &req)
		if err != nil {
			deps.Metrics.HoldOpsTotal.WithLabelValues("commit", "refused").Inc()
			respondWithServiceError(w, err)
			return
		}
		deps.Metrics.HoldOpsTotal.WithLabelValues("commit", "ok").Inc()

		respondWithSuccess(w, http.StatusOK, result)
	}
}
