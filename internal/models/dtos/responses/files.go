package responses

// FileManifestResult lists the asset paths the station should upload.
type FileManifestResult struct {
	Missing []string `json:"missing"`
}

type FileUploadResult struct {
	Path string `json:"path"`
}
