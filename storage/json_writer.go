package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"realestate-scraper/models"
)

// JSONCandidateWriter writes a run's candidates as one JSON array.
type JSONCandidateWriter struct {
	path string
}

// NewJSONCandidateWriter targets path; the file is written on WriteCandidates.
func NewJSONCandidateWriter(path string) *JSONCandidateWriter {
	return &JSONCandidateWriter{path: path}
}

func (w *JSONCandidateWriter) WriteCandidates(candidates []*models.CandidateListing) error {
	if candidates == nil {
		candidates = []*models.CandidateListing{}
	}
	return WriteJSONFile(w.path, candidates)
}

func (w *JSONCandidateWriter) Close() error {
	return nil
}

// WriteJSONFile writes v as indented JSON, creating parent directories.
func WriteJSONFile(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return eris.Wrap(err, "json: create output dir")
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrap(err, "json: encode")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return eris.Wrapf(err, "json: write %q", path)
	}
	return nil
}

// SnapshotDir is an append-only directory of snapshot files, one per run.
type SnapshotDir struct {
	dir string
}

// NewSnapshotDir uses dir for snapshot files.
func NewSnapshotDir(dir string) *SnapshotDir {
	return &SnapshotDir{dir: dir}
}

// WriteSnapshot creates a new file and fails rather than overwrite one.
func (s *SnapshotDir) WriteSnapshot(_ context.Context, snap *models.AnalyticsSnapshot) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return eris.Wrap(err, "snapshot: create dir")
	}
	name := "snapshot_" + snap.Timestamp.UTC().Format("20060102T150405Z") + "_" + snap.RunID + ".json"
	path := filepath.Join(s.dir, name)

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return eris.Wrap(err, "snapshot: encode")
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return eris.Wrapf(err, "snapshot: create %q", path)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return eris.Wrapf(err, "snapshot: write %q", path)
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "snapshot: close %q", path)
	}
	return nil
}

// Snapshots loads every snapshot, oldest first.
func (s *SnapshotDir) Snapshots() ([]*models.AnalyticsSnapshot, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "snapshot_*.json"))
	if err != nil {
		return nil, eris.Wrap(err, "snapshot: list")
	}
	out := make([]*models.AnalyticsSnapshot, 0, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "snapshot: read %q", path)
		}
		snap := &models.AnalyticsSnapshot{}
		if err := json.Unmarshal(data, snap); err != nil {
			return nil, eris.Wrapf(err, "snapshot: decode %q", filepath.Base(path))
		}
		out = append(out, snap)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return strings.Compare(out[i].RunID, out[j].RunID) < 0
	})
	return out, nil
}

// LatestSnapshot implements SnapshotReader.
func (s *SnapshotDir) LatestSnapshot(_ context.Context) (*models.AnalyticsSnapshot, error) {
	all, err := s.Snapshots()
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, ErrNotFound
	}
	return all[len(all)-1], nil
}
