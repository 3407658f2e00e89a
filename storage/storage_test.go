package storage

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"realestate-scraper/models"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func listing(url string, price *float64) *models.PersistedListing {
	return &models.PersistedListing{
		CandidateListing: models.CandidateListing{
			URL:         url,
			Title:       "חנות להשכרה",
			Price:       price,
			Size:        models.Float(85),
			Location:    models.Location{City: "תל אביב", Neighborhood: "פלורנטין"},
			Features:    []string{"parking"},
			Source:      "yad2",
			ExtractedAt: t0,
		},
		FirstSeen: t0,
		LastSeen:  t0,
		RunID:     "run-1",
		Active:    true,
	}
}

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Get(ctx, "https://a.test/1")
	assert.True(t, errors.Is(err, ErrNotFound))

	l := listing("https://a.test/1", models.Float(12000))
	require.NoError(t, s.Insert(ctx, l))

	err = s.Insert(ctx, l)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIdentityConflict))

	got, err := s.Get(ctx, l.URL)
	require.NoError(t, err)
	assert.Equal(t, l, got)

	// Stored copies are isolated from the caller.
	got.Features[0] = "changed"
	*got.Price = 1
	again, _ := s.Get(ctx, l.URL)
	assert.Equal(t, []string{"parking"}, again.Features)
	assert.Equal(t, 12000.0, *again.Price)

	got.LastSeen = t0.Add(time.Hour)
	require.NoError(t, s.Update(ctx, got))
	again, _ = s.Get(ctx, l.URL)
	assert.Equal(t, t0.Add(time.Hour), again.LastSeen)

	err = s.Update(ctx, listing("https://a.test/missing", nil))
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMemoryStoreAllOrdered(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	late := listing("https://a.test/late", nil)
	late.FirstSeen = t0.Add(time.Hour)
	require.NoError(t, s.Insert(ctx, late))
	require.NoError(t, s.Insert(ctx, listing("https://a.test/b", nil)))
	require.NoError(t, s.Insert(ctx, listing("https://a.test/a", nil)))

	all, err := s.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "https://a.test/a", all[0].URL)
	assert.Equal(t, "https://a.test/b", all[1].URL)
	assert.Equal(t, "https://a.test/late", all[2].URL)
}

func TestMemoryStoreConcurrentInsertsKeepOne(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var wg sync.WaitGroup
	var conflicts sync.Map
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Insert(ctx, listing("https://a.test/same", nil)); err != nil {
				conflicts.Store(i, err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, s.Len())
	n := 0
	conflicts.Range(func(_, _ any) bool { n++; return true })
	assert.Equal(t, 19, n)
}

func TestJSONCandidateWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "candidates.json")
	w := NewJSONCandidateWriter(path)
	require.NoError(t, w.WriteCandidates([]*models.CandidateListing{
		{URL: "https://a.test/1", Price: models.Float(5), ExtractedAt: t0},
		{URL: "https://a.test/2", ExtractedAt: t0},
	}))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, 5.0, decoded[0]["price"])
	assert.Nil(t, decoded[1]["price"], "missing values are null, not zero")
}

func TestCSVWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "candidates.csv")
	w, err := NewCSVWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.WriteCandidates([]*models.CandidateListing{
		{URL: "https://a.test/1", Price: models.Float(1250000), Features: []string{"parking", "elevator"}, ExtractedAt: t0},
	}))
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, "1250000", rows[1][2])
	assert.Equal(t, "", rows[1][3])
	assert.Equal(t, "parking;elevator", rows[1][10])
}

func TestSnapshotDirIsAppendOnly(t *testing.T) {
	ctx := context.Background()
	dir := NewSnapshotDir(t.TempDir())

	_, err := dir.LatestSnapshot(ctx)
	assert.True(t, errors.Is(err, ErrNotFound))

	first := &models.AnalyticsSnapshot{RunID: "r1", Timestamp: t0, TotalListings: 1}
	second := &models.AnalyticsSnapshot{RunID: "r2", Timestamp: t0.Add(time.Hour), TotalListings: 2}
	require.NoError(t, dir.WriteSnapshot(ctx, second))
	require.NoError(t, dir.WriteSnapshot(ctx, first))

	rewrite := &models.AnalyticsSnapshot{RunID: "r1", Timestamp: t0, TotalListings: 99}
	require.Error(t, dir.WriteSnapshot(ctx, rewrite), "an existing snapshot is never overwritten")

	all, err := dir.Snapshots()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "r1", all[0].RunID)
	assert.Equal(t, 1, all[0].TotalListings)

	latest, err := dir.LatestSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "r2", latest.RunID)
}

func TestXLSXSyncAppendsOnlyUnknownURLs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sheet.xlsx")
	target := NewXLSXSync(path)
	target.now = func() time.Time { return t0 }

	known, err := target.KnownURLs()
	require.NoError(t, err)
	assert.Empty(t, known)

	require.NoError(t, target.Append([]*models.PersistedListing{
		listing("https://a.test/1", models.Float(12000)),
		listing("https://a.test/2", nil),
		listing("https://a.test/1", models.Float(13000)),
	}))
	require.NoError(t, target.Append([]*models.PersistedListing{
		listing("https://a.test/2", nil),
		listing("https://a.test/3", nil),
	}))

	known, err = target.KnownURLs()
	require.NoError(t, err)
	assert.Len(t, known, 3)

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	sheet := f.Sheet[xlsxSheet]
	require.NotNil(t, sheet)
	require.Len(t, sheet.Rows, 4)
	assert.Equal(t, "URL", sheet.Rows[0].Cells[xlsxURLColumn].String())
	assert.Equal(t, "12000", sheet.Rows[1].Cells[2].String())
	assert.Equal(t, "תל אביב / פלורנטין", sheet.Rows[1].Cells[3].String())
	assert.Equal(t, "https://a.test/3", sheet.Rows[3].Cells[xlsxURLColumn].String())
}

func TestXLSXSyncSeesForeignRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sheet.xlsx")
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(xlsxSheet)
	require.NoError(t, err)
	addRow(sheet, xlsxHeader)
	addRow(sheet, []string{"2024-01-01", "manual", "", "", "", "", "https://a.test/1", "", "", "", ""})
	require.NoError(t, f.Save(path))

	s := NewXLSXSync(path)
	require.NoError(t, s.Append([]*models.PersistedListing{listing("https://a.test/1", nil)}))

	known, err := s.KnownURLs()
	require.NoError(t, err)
	assert.Len(t, known, 1, "a URL added by someone else is not appended again")
}
