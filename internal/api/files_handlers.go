package api

import (
	"net/http"

	appcontext "schoolpoints/relay/internal/context"
	"schoolpoints/relay/internal/models/dtos/requests"
	"schoolpoints/relay/internal/models/dtos/responses"
)

// maxAssetUpload caps a single asset upload. Station media is photos and
// short sound clips; anything bigger is a client bug.
const maxAssetUpload = 32 << 20

// FileManifestHandler handles POST /sync/files/manifest. The station posts
// hashes of its local media and gets back the paths it should upload.
func FileManifestHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inst, ok := appcontext.Tenant(r.Context())
		if !ok {
			respondWithError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		var req requests.FileManifestRequest
		if err := decodeJSON(r, &req); err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		missing, err := deps.Services.Files.MissingFiles(inst.TenantID, req.Manifest)
		if err != nil {
			respondWithServiceError(w, err)
			return
		}
		deps.Metrics.FileTransfersTotal.WithLabelValues("manifest").Inc()

		respondWithSuccess(w, http.StatusOK, &responses.FileManifestResult{Missing: missing})
	}
}

// FileUploadHandler handles POST /sync/files/upload as multipart form data
// with a "file" part and a "rel_path" field.
func FileUploadHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inst, ok := appcontext.Tenant(r.Context())
		if !ok {
			respondWithError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		if err := r.ParseMultipartForm(maxAssetUpload); err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid multipart body")
			return
		}
		relPath := r.FormValue("rel_path")
		file, _, err := r.FormFile("file")
		if err != nil || relPath == "" {
			respondWithError(w, http.StatusBadRequest, "file and rel_path are required")
			return
		}
		defer file.Close()

		if err := deps.Services.Files.SaveFile(inst.TenantID, relPath, file); err != nil {
			respondWithServiceError(w, err)
			return
		}
		deps.Metrics.FileTransfersTotal.WithLabelValues("upload").Inc()

		respondWithSuccess(w, http.StatusOK, &responses.FileUploadResult{Path: relPath})
	}
}

// FileDownloadHandler handles GET /sync/files/download?path=images/x.png and
// streams the asset, tenant copy first, shared pool as fallback.
func FileDownloadHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inst, ok := appcontext.Tenant(r.Context())
		if !ok {
			respondWithError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		relPath := r.URL.Query().Get("path")
		if relPath == "" {
			respondWithError(w, http.StatusBadRequest, "path is required")
			return
		}

		full, err := deps.Services.Files.ResolveFile(inst.TenantID, relPath)
		if err != nil {
			respondWithServiceError(w, err)
			return
		}
		deps.Metrics.FileTransfersTotal.WithLabelValues("download").Inc()

		http.ServeFile(w, r, full)
	}
}
