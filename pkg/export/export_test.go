package export_test

import (
	"archive/zip"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/peakyragnar/nova/pkg/event"
	"github.com/peakyragnar/nova/pkg/export"
	"github.com/peakyragnar/nova/pkg/filewriter"
	"github.com/peakyragnar/nova/pkg/filewriter/driver/rawappender"
	"github.com/peakyragnar/nova/pkg/query"
	"github.com/peakyragnar/nova/pkg/store"
	"github.com/stretchr/testify/require"
)

func rawEvent(id string, seq int64, sourceTime string, bytes []byte) event.Event {
	return event.Event{
		Header: event.Header{
			EventID: id, ScopeID: "scope-1", Lane: event.LaneRaw,
			SourceTruthTime: sourceTime, CanonicalTruthTime: sourceTime,
			Identity: event.Identity{SystemID: "sys", ContainerID: "cont", UniqueID: "uid"},
		},
		Raw: &event.RawPayload{Bytes: bytes, Sequence: &seq},
	}
}

func bindingEvent(sourceTime string) event.Event {
	return event.Event{
		Header: event.Header{
			EventID: "binding-1", ScopeID: "scope-1", Lane: event.LaneMetadata,
			SourceTruthTime: sourceTime, CanonicalTruthTime: sourceTime,
			Identity: event.Identity{SystemID: "sys", ContainerID: "cont", UniqueID: "uid"},
		},
		Metadata: &event.MetadataPayload{
			MessageType: event.MessageTypeDriverBinding, EffectiveTime: sourceTime,
			Payload: map[string]any{"lane": "raw", "messageType": "", "driverId": "rawappender", "version": "1"},
		},
	}
}

func TestExportProducesZipWithManifest(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nova.db")
	s, err := store.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	_, err = s.Insert(ctx, bindingEvent("2026-01-15T11:59:00Z"))
	require.NoError(t, err)
	_, err = s.Insert(ctx, rawEvent("e1", 1, "2026-01-15T12:00:00Z", []byte{0x01, 0x02}))
	require.NoError(t, err)
	_, err = s.Insert(ctx, rawEvent("e2", 2, "2026-01-15T12:00:01Z", []byte{0x03}))
	require.NoError(t, err)

	q := query.New(s)
	registry := filewriter.NewRegistry(rawappender.Driver{})
	exportDir := t.TempDir()
	clock := func() time.Time { return time.Date(2026, 1, 15, 13, 0, 0, 0, time.UTC) }
	engine := export.New(q, registry, exportDir, clock)

	manifest, err := engine.Run(ctx, export.Spec{
		ScopeID:   "scope-1",
		StartTime: "2026-01-15T00:00:00Z",
		StopTime:  "2026-01-15T23:59:59Z",
	})
	require.NoError(t, err)
	require.NotEmpty(t, manifest.ExportID)

	archivePath := filepath.Join(exportDir, manifest.ExportID, manifest.ArchiveFile)
	zr, err := zip.OpenReader(archivePath)
	require.NoError(t, err)
	defer zr.Close()

	var found bool
	for _, f := range zr.File {
		if filepath.Base(f.Name) == "raw.bin" {
			found = true
			rc, err := f.Open()
			require.NoError(t, err)
			defer rc.Close()
		}
	}
	require.True(t, found, "expected raw.bin in export archive")

	loaded, err := export.ReadManifest(filepath.Join(exportDir, manifest.ExportID, "manifest.json"))
	require.NoError(t, err)
	require.Equal(t, manifest.ExportID, loaded.ExportID)
}
