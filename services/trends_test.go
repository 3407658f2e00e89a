package services

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realestate-scraper/models"
	"realestate-scraper/utils"
)

const week = 7 * 24 * time.Hour

var asOf = time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

func seen(at time.Time, source, city string, price, size *float64) *models.PersistedListing {
	return &models.PersistedListing{
		CandidateListing: models.CandidateListing{
			URL:          source + "/" + at.String(),
			Price:        price,
			Size:         size,
			Location:     models.Location{City: city},
			PropertyType: "office",
			Source:       source,
		},
		FirstSeen: at,
		LastSeen:  at,
	}
}

func newAggregator(topN int) *TrendAggregator {
	return NewTrendAggregator(utils.NewNopLogger(), topN)
}

func TestAggregateTrendDelta(t *testing.T) {
	history := []*models.PersistedListing{
		seen(asOf.Add(-10*24*time.Hour), "yad2", "חיפה", models.Float(90), nil),
		seen(asOf.Add(-9*24*time.Hour), "yad2", "חיפה", models.Float(110), nil),
		seen(asOf.Add(-24*time.Hour), "yad2", "חיפה", models.Float(120), nil),
	}

	snap := newAggregator(5).Aggregate("run-1", history, week, asOf)

	assert.Equal(t, 1, snap.TotalListings)
	require.NotNil(t, snap.Trends.PriceMean.Delta)
	assert.Equal(t, 20.0, *snap.Trends.PriceMean.Delta)
	assert.Equal(t, 120.0, *snap.Trends.PriceMean.Current)
	assert.Equal(t, 100.0, *snap.Trends.PriceMean.Previous)
	assert.NotContains(t, snap.Unavailable, "trends")
	require.NotNil(t, snap.WindowStart)
	assert.Equal(t, asOf.Add(-week), *snap.WindowStart)
}

func TestAggregateSingleWindowHasNoDelta(t *testing.T) {
	history := []*models.PersistedListing{
		seen(asOf.Add(-time.Hour), "yad2", "חיפה", models.Float(100), nil),
	}

	snap := newAggregator(5).Aggregate("run-1", history, week, asOf)

	assert.Nil(t, snap.Trends.PriceMean.Delta, "no preceding window means unavailable, not zero")
	assert.Nil(t, snap.Trends.PriceMean.Previous)
	assert.Contains(t, snap.Unavailable, "trends")
}

func TestAggregateEmptyHistory(t *testing.T) {
	snap := newAggregator(5).Aggregate("run-1", nil, week, asOf)

	assert.True(t, snap.Empty)
	assert.Equal(t, 0, snap.TotalListings)
	assert.Nil(t, snap.Price.Mean)
	assert.False(t, snap.Price.Available())
	assert.Empty(t, snap.TopLocations)
	assert.ElementsMatch(t, []string{"price", "size_sqm", "price_per_sqm", "trends"}, snap.Unavailable)
}

func TestAggregatePricePerSqm(t *testing.T) {
	history := []*models.PersistedListing{
		seen(asOf.Add(-time.Hour), "a", "", models.Float(1000), models.Float(50)),
		seen(asOf.Add(-2*time.Hour), "a", "", models.Float(1000), models.Float(0)),
		seen(asOf.Add(-3*time.Hour), "a", "", models.Float(1000), nil),
		seen(asOf.Add(-4*time.Hour), "a", "", nil, models.Float(40)),
	}

	snap := newAggregator(5).Aggregate("run-1", history, 0, asOf)

	assert.Equal(t, "all", snap.Window)
	assert.Nil(t, snap.WindowStart)
	assert.Equal(t, 1, snap.PricePerSqm.Count)
	assert.Equal(t, 20.0, *snap.PricePerSqm.Mean)
	assert.Equal(t, 3, snap.Price.Count)
	assert.Equal(t, 3, snap.Size.Count)
	assert.Equal(t, 40.0, *snap.Size.Median)
	assert.Equal(t, 0.0, *snap.Size.Min)
}

func TestAggregatePricePerSqmNotComputable(t *testing.T) {
	history := []*models.PersistedListing{
		seen(asOf.Add(-time.Hour), "a", "", models.Float(1000), nil),
	}

	snap := newAggregator(5).Aggregate("run-1", history, 0, asOf)

	assert.False(t, snap.PricePerSqm.Available())
	assert.Nil(t, snap.PricePerSqm.Mean)
	assert.Contains(t, snap.Unavailable, "price_per_sqm")
}

func TestAggregateStatsAndTopN(t *testing.T) {
	history := []*models.PersistedListing{
		seen(asOf.Add(-1*time.Hour), "yad2", "חיפה", models.Float(100), nil),
		seen(asOf.Add(-2*time.Hour), "yad2", "חיפה", models.Float(200), nil),
		seen(asOf.Add(-3*time.Hour), "facebook", "חיפה", models.Float(400), nil),
		seen(asOf.Add(-4*time.Hour), "yad2", "נתניה", models.Float(300), nil),
		seen(asOf.Add(-5*time.Hour), "yad2", "אשדוד", nil, nil),
		seen(asOf.Add(-6*time.Hour), "yad2", "", nil, nil),
	}

	snap := newAggregator(2).Aggregate("run-1", history, week, asOf)

	assert.Equal(t, map[string]int{"yad2": 5, "facebook": 1}, snap.PerSource)
	assert.Equal(t, 4, snap.Price.Count)
	assert.Equal(t, 250.0, *snap.Price.Mean)
	assert.Equal(t, 250.0, *snap.Price.Median)
	assert.Equal(t, 100.0, *snap.Price.Min)
	assert.Equal(t, 400.0, *snap.Price.Max)
	assert.Equal(t, []models.Count{{Key: "חיפה", Count: 3}, {Key: "אשדוד", Count: 1}}, snap.TopLocations)
	assert.Equal(t, []models.Count{{Key: "office", Count: 6}}, snap.TopTypes)
}

func TestPrint(t *testing.T) {
	history := []*models.PersistedListing{
		seen(asOf.Add(-time.Hour), "yad2", "חיפה", models.Float(100), models.Float(20)),
	}
	snap := newAggregator(5).Aggregate("run-1", history, week, asOf)

	var buf bytes.Buffer
	Print(&buf, snap)
	out := buf.String()

	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "חיפה")
	assert.Contains(t, out, "unavailable")
	assert.Contains(t, out, "5.00")
}
