package services

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"schoolpoints/relay/internal/constants"
)

func writeAsset(t *testing.T, dataDir, root, rel, content string) {
	t.Helper()
	full := filepath.Join(dataDir, root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", rel, err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func contentHash(content string) string {
	sum := md5.Sum([]byte(content))
	return hex.EncodeToString(sum[:])
}

func TestFileManifestShadowsSharedPool(t *testing.T) {
	dir := t.TempDir()
	svc := NewFileSyncService(dir)

	writeAsset(t, dir, "shared_assets", "images/logo.png", "shared-logo")
	writeAsset(t, dir, "shared_assets", "sounds/chime.mp3", "chime")
	writeAsset(t, dir, "tenants_assets/12345678", "images/logo.png", "school-logo")
	// Wrong extension never shows up in the manifest.
	writeAsset(t, dir, "tenants_assets/12345678", "images/notes.txt", "notes")

	manifest, err := svc.Manifest("12345678")
	if err != nil {
		t.Fatalf("manifest: %v", err)
	}
	if got := manifest["images/logo.png"]; got != contentHash("school-logo") {
		t.Fatalf("logo hash = %s, tenant copy should shadow shared", got)
	}
	if got := manifest["sounds/chime.mp3"]; got != contentHash("chime") {
		t.Fatalf("chime hash = %s", got)
	}
	if _, ok := manifest["images/notes.txt"]; ok {
		t.Fatal("non-media file leaked into the manifest")
	}
	if len(manifest) != 2 {
		t.Fatalf("manifest = %v, want 2 entries", manifest)
	}
}

func TestMissingFilesListsChangedAndNew(t *testing.T) {
	dir := t.TempDir()
	svc := NewFileSyncService(dir)

	writeAsset(t, dir, "tenants_assets/12345678", "images/same.png", "same")
	writeAsset(t, dir, "tenants_assets/12345678", "images/stale.png", "old")

	missing, err := svc.MissingFiles("12345678", map[string]string{
		"images/same.png":  contentHash("same"),
		"images/stale.png": contentHash("new"),
		"sounds/fresh.mp3": contentHash("fresh"),
	})
	if err != nil {
		t.Fatalf("missing files: %v", err)
	}
	want := []string{"images/stale.png", "sounds/fresh.mp3"}
	if !reflect.DeepEqual(missing, want) {
		t.Fatalf("missing = %v, want %v", missing, want)
	}
}

func TestSaveAndResolveFile(t *testing.T) {
	dir := t.TempDir()
	svc := NewFileSyncService(dir)

	if err := svc.SaveFile("12345678", "images/new.png", strings.NewReader("pixels")); err != nil {
		t.Fatalf("save: %v", err)
	}
	p, err := svc.ResolveFile("12345678", "images/new.png")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	data, err := os.ReadFile(p)
	if err != nil || string(data) != "pixels" {
		t.Fatalf("read back %q, %v", data, err)
	}

	// No tenant copy: the shared pool serves the asset.
	writeAsset(t, dir, "shared_assets", "sounds/bell.wav", "ding")
	p, err = svc.ResolveFile("12345678", "sounds/bell.wav")
	if err != nil {
		t.Fatalf("resolve shared: %v", err)
	}
	if !strings.Contains(p, "shared_assets") {
		t.Fatalf("resolved %s, want the shared copy", p)
	}

	if _, err := svc.ResolveFile("12345678", "images/nope.png"); !errors.Is(err, constants.ErrNotFound) {
		t.Fatalf("unknown asset err = %v, want not found", err)
	}
}

func TestAssetPathEscapeRejected(t *testing.T) {
	dir := t.TempDir()
	svc := NewFileSyncService(dir)
	writeAsset(t, dir, "tenants_assets/99999999", "images/secret.png", "secret")

	for _, rel := range []string{
		"../99999999/images/secret.png",
		"images/../../99999999/images/secret.png",
		"..",
		"",
	} {
		if err := svc.SaveFile("12345678", rel, strings.NewReader("x")); !errors.Is(err, constants.ErrInvalid) {
			t.Fatalf("save %q err = %v, want invalid", rel, err)
		}
		if _, err := svc.ResolveFile("12345678", rel); !errors.Is(err, constants.ErrInvalid) {
			t.Fatalf("resolve %q err = %v, want invalid", rel, err)
		}
	}
}
