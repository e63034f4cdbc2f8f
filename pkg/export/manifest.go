package export

import (
	"encoding/json"
	"fmt"
	"os"
)

func writeManifest(path string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("export: marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("export: write manifest: %w", err)
	}
	return nil
}

// ReadManifest loads a previously written manifest, used by
// listExports to enumerate exports without re-scanning zip contents.
func ReadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("export: read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("export: decode manifest: %w", err)
	}
	return m, nil
}
