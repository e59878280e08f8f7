package api

import (
	"net/http"
	"strconv"
	"time"

	appcontext "schoolpoints/relay/internal/context"
	"schoolpoints/relay/internal/models/dtos/requests"
)

// PushHandler handles POST /sync/push
func PushHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inst, ok := appcontext.Tenant(r.Context())
		if !ok {
			respondWithError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		var req requests.SyncPushRequest
		if err := decodeJSON(r, &req); err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		start := time.Now()
		result, err := deps.Services.Sync.Push(r.Context(), inst.TenantID, &req)
		if err != nil {
			respondWithServiceError(w, err)
			return
		}
		deps.Metrics.SyncPushDuration.Observe(time.Since(start).Seconds())
		deps.Metrics.SyncChangesTotal.WithLabelValues("applied").Add(float64(result.Applied))
		deps.Metrics.SyncChangesTotal.WithLabelValues("skipped").Add(float64(result.Skipped))
		deps.Metrics.SyncChangesTotal.WithLabelValues("error").Add(float64(result.Errors))

		respondWithSuccess(w, http.StatusOK, result)
	}
}

// PullHandler handles GET /sync/pull?since_id=N&limit=N
func PullHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inst, ok := appcontext.Tenant(r.Context())
		if !ok {
			respondWithError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		since, err := strconv.ParseInt(r.URL.Query().Get("since_id"), 10, 64)
		if err != nil && r.URL.Query().Get("since_id") != "" {
			respondWithError(w, http.StatusBadRequest, "since_id must be an integer")
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		result, err := deps.Services.Sync.Pull(r.Context(), inst.TenantID, since, limit)
		if err != nil {
			respondWithServiceError(w, err)
			return
		}
		deps.Metrics.SyncPullBatchSize.Observe(float64(len(result.Items)))

		respondWithSuccess(w, http.StatusOK, result)
	}
}

// SnapshotUploadHandler handles POST /sync/snapshot
func SnapshotUploadHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inst, ok := appcontext.Tenant(r.Context())
		if !ok {
			respondWithError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		var req requests.SnapshotUploadRequest
		if err := decodeJSON(r, &req); err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		result, err := deps.Services.Sync.UploadSnapshot(r.Context(), inst.TenantID, &req)
		if err != nil {
			respondWithServiceError(w, err)
			return
		}

		respondWithSuccess(w, http.StatusOK, result)
	}
}

// SnapshotDownloadHandler handles GET /sync/snapshot
func SnapshotDownloadHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inst, ok := appcontext.Tenant(r.Context())
		if !ok {
			respondWithError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		result, fromCache, err := deps.Services.Sync.DownloadSnapshot(r.Context(), inst.TenantID)
		if err != nil {
			respondWithServiceError(w, err)
			return
		}
		source := "store"
		if fromCache {
			source = "cache"
		}
		deps.Metrics.SnapshotDownloadsTotal.WithLabelValues(source).Inc()

		respondWithSuccess(w, http.StatusOK, result)
	}
}
