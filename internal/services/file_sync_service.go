package services

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"schoolpoints/relay/internal/constants"
)

// Media assets live under a few fixed top-level folders. Anything outside
// them, or with an unexpected extension, is invisible to the manifest.
var (
	assetDirs = []string{"images", "sounds", "ads_media"}
	assetExts = map[string]bool{
		".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
		".wav": true, ".mp3": true, ".ogg": true,
	}
)

// FileSyncService mirrors station media (product images, sounds, ad reels)
// through the relay. Stations exchange content-hash manifests so only changed
// files cross the wire. Each tenant has its own asset tree; a shared pool
// backs it for assets every school gets, with the tenant's copy shadowing the
// shared one on conflicts.
type FileSyncService struct {
	dataDir string
}

func NewFileSyncService(dataDir string) *FileSyncService {
	return &FileSyncService{dataDir: dataDir}
}

func (s *FileSyncService) tenantRoot(tenantID string) string {
	return filepath.Join(s.dataDir, "tenants_assets", tenantID)
}

func (s *FileSyncService) sharedRoot() string {
	return filepath.Join(s.dataDir, "shared_assets")
}

// Manifest hashes every asset visible to the tenant, keyed by slash-separated
// path relative to the asset root.
func (s *FileSyncService) Manifest(tenantID string) (map[string]string, error) {
	manifest := make(map[string]string)
	for _, root := range []string{s.tenantRoot(tenantID), s.sharedRoot()} {
		for _, dir := range assetDirs {
			base := filepath.Join(root, dir)
			if info, err := os.Stat(base); err != nil || !info.IsDir() {
				continue
			}
			err := filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
				if err != nil || d.IsDir() {
					return err
				}
				if !assetExts[strings.ToLower(filepath.Ext(p))] {
					return nil
				}
				rel, err := filepath.Rel(root, p)
				if err != nil {
					return err
				}
				rel = filepath.ToSlash(rel)
				if _, seen := manifest[rel]; seen {
					return nil
				}
				sum, err := hashAssetFile(p)
				if err != nil {
					return err
				}
				manifest[rel] = sum
				return nil
			})
			if err != nil {
				return nil, fmt.Errorf("scan assets under %s: %w", base, err)
			}
		}
	}
	return manifest, nil
}

// MissingFiles compares the station's manifest against the server's and
// returns the paths the station should upload: files the server lacks or
// holds with different content.
func (s *FileSyncService) MissingFiles(tenantID string, client map[string]string) ([]string, error) {
	server, err := s.Manifest(tenantID)
	if err != nil {
		return nil, err
	}
	missing := make([]string, 0)
	for rel, sum := range client {
		if server[rel] != sum {
			missing = append(missing, rel)
		}
	}
	sort.Strings(missing)
	return missing, nil
}

// SaveFile writes an uploaded asset into the tenant's tree, creating parent
// directories as needed. Existing content at the same path is replaced.
func (s *FileSyncService) SaveFile(tenantID, relPath string, src io.Reader) error {
	rel, err := safeAssetPath(relPath)
	if err != nil {
		return err
	}
	dest := filepath.Join(s.tenantRoot(tenantID), filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create asset dir: %w", err)
	}
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create asset file: %w", err)
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		return fmt.Errorf("write asset file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write asset file: %w", err)
	}
	return nil
}

// ResolveFile maps a requested asset path to a file on disk, preferring the
// tenant's own copy over the shared pool.
func (s *FileSyncService) ResolveFile(tenantID, relPath string) (string, error) {
	rel, err := safeAssetPath(relPath)
	if err != nil {
		return "", err
	}
	for _, root := range []string{s.tenantRoot(tenantID), s.sharedRoot()} {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("asset %q: %w", rel, constants.ErrNotFound)
}

// safeAssetPath normalizes a client-supplied relative path and rejects
// anything that could escape the asset tree.
func safeAssetPath(rel string) (string, error) {
	rel = strings.ReplaceAll(strings.TrimSpace(rel), "\\", "/")
	rel = strings.Trim(rel, "/")
	if rel == "" {
		return "", fmt.Errorf("empty asset path: %w", constants.ErrInvalid)
	}
	clean := path.Clean(rel)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("asset path %q escapes the asset tree: %w", rel, constants.ErrInvalid)
	}
	return clean, nil
}

// hashAssetFile fingerprints content for manifest comparison. md5 is what the
// station fleet already computes; it only needs to detect changed files.
func hashAssetFile(p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", fmt.Errorf("open asset: %w", err)
	}
	defer f.Close()
	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash asset: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
