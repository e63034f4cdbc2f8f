// Package export produces zip archives reproducing exactly what
// real-time file writers produced over a time window, per spec.md
// §4.9. It generalizes the teacher's cmd/sub/export.go shape — bounded
// read, per-row reconstruction, serialize, write — onto File Parity
// Order and a zip archive instead of a single run's JSONL dump.
package export

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/peakyragnar/nova/pkg/event"
	"github.com/peakyragnar/nova/pkg/filewriter"
	"github.com/peakyragnar/nova/pkg/metrics"
	"github.com/peakyragnar/nova/pkg/novaerr"
	"github.com/peakyragnar/nova/pkg/ordering"
	"github.com/peakyragnar/nova/pkg/query"
)

// Manifest describes one export, written as exportDir/<exportId>/manifest.json
// alongside the zip, the same small-sidecar-manifest idiom as the
// replay-writer reference's Manifest.
type Manifest struct {
	ExportID  string `json:"exportId"`
	CreatedAt string `json:"createdAt"`
	StartTime string `json:"startTime"`
	StopTime  string `json:"stopTime"`
	ArchiveFile string `json:"archiveFile"`
}

// Engine runs bounded exports.
type Engine struct {
	query     *query.Engine
	registry  *filewriter.Registry
	exportDir string
	clock     func() time.Time
}

// New returns an Engine writing archives under exportDir.
func New(q *query.Engine, registry *filewriter.Registry, exportDir string, clock func() time.Time) *Engine {
	if clock == nil {
		clock = time.Now
	}
	return &Engine{query: q, registry: registry, exportDir: exportDir, clock: clock}
}

// Spec bounds one export.
type Spec struct {
	ScopeID   string
	StartTime string
	StopTime  string
}

// Run executes the export algorithm of spec.md §4.9 and returns the
// written Manifest.
func (e *Engine) Run(ctx context.Context, spec Spec) (manifest Manifest, err error) {
	defer func() {
		if err != nil {
			metrics.ExportFailed()
		} else {
			metrics.ExportCompleted()
		}
	}()

	if spec.StartTime == "" || spec.StopTime == "" {
		return Manifest{}, novaerr.Validation("export requires startTime and stopTime")
	}

	events, err := e.query.Query(ctx, query.Spec{
		ScopeID:    spec.ScopeID,
		StartTime:  spec.StartTime,
		StopTime:   spec.StopTime,
		ParityMode: true,
	})
	if err != nil {
		return Manifest{}, fmt.Errorf("export: query: %w", err)
	}

	exportID := uuid.NewString()
	scratchDir := filepath.Join(e.exportDir, exportID, "scratch")
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return Manifest{}, fmt.Errorf("export: create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratchDir)

	resolver := newBindingResolver(e.query, e.registry)

	handles := make(map[string]*os.File)
	defer func() {
		for _, f := range handles {
			f.Close()
		}
	}()

	for _, ev := range events {
		if ev.Lane == event.LaneMetadata {
			continue
		}
		driver, ok := resolver.at(ctx, ev)
		if !ok {
			continue
		}

		date, err := dateOf(ev.CanonicalTruthTime)
		if err != nil {
			return Manifest{}, err
		}
		path := filepath.Join(scratchDir, date, ev.SystemID, ev.ContainerID, ev.UniqueID, driver.OutputFilename())

		f, ok := handles[path]
		if !ok {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return Manifest{}, fmt.Errorf("export: mkdir: %w", err)
			}
			isNew := true
			if info, err := os.Stat(path); err == nil && info.Size() > 0 {
				isNew = false
			}
			f, err = os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if err != nil {
				return Manifest{}, fmt.Errorf("export: open %s: %w", path, err)
			}
			if isNew {
				if hw, ok := driver.(filewriter.HeaderWriter); ok {
					if _, err := f.Write(hw.Header()); err != nil {
						return Manifest{}, fmt.Errorf("export: write header: %w", err)
					}
				}
			}
			handles[path] = f
		}

		if err := driver.Write(f, ev); err != nil {
			return Manifest{}, fmt.Errorf("export: write %s: %w", ev.EventID, err)
		}
	}
	for _, f := range handles {
		f.Close()
	}
	handles = map[string]*os.File{}

	archiveFile := exportID + ".zip"
	archivePath := filepath.Join(e.exportDir, exportID, archiveFile)
	if err := zipDir(scratchDir, archivePath); err != nil {
		return Manifest{}, fmt.Errorf("export: zip: %w", err)
	}

	manifest = Manifest{
		ExportID:    exportID,
		CreatedAt:   e.clock().UTC().Format(time.RFC3339),
		StartTime:   spec.StartTime,
		StopTime:    spec.StopTime,
		ArchiveFile: archiveFile,
	}
	if err := writeManifest(filepath.Join(e.exportDir, exportID, "manifest.json"), manifest); err != nil {
		return Manifest{}, err
	}
	return manifest, nil
}

func dateOf(canonicalTruthTime string) (string, error) {
	t, err := time.Parse(time.RFC3339, canonicalTruthTime)
	if err != nil {
		return "", fmt.Errorf("export: parse canonicalTruthTime %q: %w", canonicalTruthTime, err)
	}
	return t.UTC().Format("2006-01-02"), nil
}

func zipDir(root, archivePath string) error {
	archive, err := os.Create(archivePath)
	if err != nil {
		return err
	}
	defer archive.Close()

	zw := zip.NewWriter(archive)
	defer zw.Close()

	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(w, src)
		return err
	})
}
