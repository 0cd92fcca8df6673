package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/vthunder/techpm/internal/artifact"
	"github.com/vthunder/techpm/internal/tracker"
)

// Export encodes the tracker's current state and writes it to sink under
// ExportName(now).
func Export(ctx context.Context, tr *tracker.Tracker, sink artifact.Store, now time.Time) (artifact.Info, error) {
	data, err := Encode(tr.Snapshot())
	if err != nil {
		return artifact.Info{}, err
	}
	info, err := sink.Put(ctx, ExportName(now), bytes.NewReader(data), ContentType)
	if err != nil {
		return artifact.Info{}, fmt.Errorf("failed to write export: %w", err)
	}
	return info, nil
}

// Import decodes a snapshot from r and replaces the tracker state with it.
// The tracker is left untouched when decoding fails.
func Import(tr *tracker.Tracker, r io.Reader) (tracker.Store, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return tracker.Store{}, tracker.Serializationf("import", "read: %v", err)
	}
	s, err := Decode(data)
	if err != nil {
		return tracker.Store{}, err
	}
	if err := tr.Replace(s); err != nil {
		return tracker.Store{}, err
	}
	return s, nil
}

// ImportArtifact reads key from src and imports it
func ImportArtifact(ctx context.Context, tr *tracker.Tracker, src artifact.Store, key string) (tracker.Store, error) {
	rc, err := src.Get(ctx, key)
	if err != nil {
		return tracker.Store{}, fmt.Errorf("failed to open export %s: %w", key, err)
	}
	defer rc.Close()
	return Import(tr, rc)
}
