package requests

// FileManifestRequest carries the station's local asset inventory: relative
// path to content hash.
type FileManifestRequest struct {
	Manifest map[string]string `json:"manifest"`
}
