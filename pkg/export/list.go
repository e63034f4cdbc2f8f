package export

import (
	"os"
	"path/filepath"
)

// List enumerates every export's manifest under exportDir, in the
// directory-name order os.ReadDir returns, for the facade's
// listExports operation.
func (e *Engine) List() ([]Manifest, error) {
	entries, err := os.ReadDir(e.exportDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var manifests []Manifest
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(e.exportDir, entry.Name(), "manifest.json")
		m, err := ReadManifest(path)
		if err != nil {
			continue
		}
		manifests = append(manifests, m)
	}
	return manifests, nil
}
