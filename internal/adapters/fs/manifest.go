package fs

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"go.trai.ch/sompack/internal/core/domain"
	"go.trai.ch/sompack/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.ManifestReader = (*ManifestReader)(nil)

// manifestFile is the package manifest consulted for external packages.
const manifestFile = "package.json"

// ManifestReader reads package manifests and memoizes them per directory.
type ManifestReader struct {
	mu   sync.RWMutex
	memo map[string]domain.PackageManifest
}

// NewManifestReader creates a ManifestReader.
func NewManifestReader() *ManifestReader {
	return &ManifestReader{memo: make(map[string]domain.PackageManifest)}
}

// rawManifest mirrors the manifest fields we care about. The exports field
// can be a plain string, a conditions object, or a subpath map; everything
// beyond the "." entry with "require"/"default" conditions is ignored.
type rawManifest struct {
	Name    string          `json:"name"`
	Main    string          `json:"main"`
	Exports json.RawMessage `json:"exports"`
}

// Read parses the manifest in dir.
func (r *ManifestReader) Read(dir string) (domain.PackageManifest, error) {
	r.mu.RLock()
	cached, ok := r.memo[dir]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}

	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return domain.PackageManifest{}, zerr.With(zerr.Wrap(err, "failed to read package manifest"), "dir", dir)
	}

	var raw rawManifest
	if err := json.Unmarshal(data, &raw); err != nil {
		return domain.PackageManifest{}, zerr.With(zerr.Wrap(err, "failed to parse package manifest"), "dir", dir)
	}

	manifest := domain.PackageManifest{
		Name:    raw.Name,
		Main:    raw.Main,
		Exports: parseExports(raw.Exports),
	}

	r.mu.Lock()
	r.memo[dir] = manifest
	r.mu.Unlock()
	return manifest, nil
}

func parseExports(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var direct string
	if err := json.Unmarshal(raw, &direct); err == nil {
		return direct
	}

	var object map[string]json.RawMessage
	if err := json.Unmarshal(raw, &object); err != nil {
		return ""
	}

	// Subpath map: take the root entry. Conditions object: use it directly.
	entry := raw
	if dot, ok := object["."]; ok {
		entry = dot
		if err := json.Unmarshal(entry, &direct); err == nil {
			return direct
		}
		if err := json.Unmarshal(entry, &object); err != nil {
			return ""
		}
	}

	for _, condition := range []string{"require", "default"} {
		if val, ok := object[condition]; ok {
			if err := json.Unmarshal(val, &direct); err == nil {
				return direct
			}
		}
	}
	return ""
}
