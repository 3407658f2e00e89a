package services

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"realestate-scraper/models"
	"realestate-scraper/utils"
)

const defaultTopN = 10

// TrendAggregator computes analytics snapshots over listing history. It only
// reads listings.
type TrendAggregator struct {
	logger *utils.Logger
	topN   int
}

// NewTrendAggregator creates a TrendAggregator keeping topN rows per
// frequency table.
func NewTrendAggregator(logger *utils.Logger, topN int) *TrendAggregator {
	if topN <= 0 {
		topN = defaultTopN
	}
	return &TrendAggregator{logger: logger, topN: topN}
}

// Aggregate builds the snapshot for the window ending at asOf. A listing
// belongs to the window holding its first-seen time. A window of zero or
// less covers the whole history and has no preceding window.
func (a *TrendAggregator) Aggregate(runID string, history []*models.PersistedListing, window time.Duration, asOf time.Time) *models.AnalyticsSnapshot {
	snap := &models.AnalyticsSnapshot{
		RunID:     runID,
		Timestamp: asOf,
		WindowEnd: asOf,
		PerSource: make(map[string]int),
	}

	var current, previous []*models.PersistedListing
	if window <= 0 {
		snap.Window = "all"
		current = history
	} else {
		start := asOf.Add(-window)
		snap.Window = window.String()
		snap.WindowStart = &start
		current = inWindow(history, start, asOf)
		previous = inWindow(history, start.Add(-window), start)
	}

	snap.TotalListings = len(current)
	snap.Empty = len(current) == 0
	for _, l := range current {
		snap.PerSource[l.Source]++
	}

	cur := summarize(current)
	snap.Price = cur.price
	snap.Size = cur.size
	snap.PricePerSqm = cur.perSqm
	snap.TopLocations = topCounts(current, a.topN, func(l *models.PersistedListing) string { return l.Location.String() })
	snap.TopTypes = topCounts(current, a.topN, func(l *models.PersistedListing) string { return l.PropertyType })

	prev := summarize(previous)
	snap.Trends = models.Trends{
		PriceMean:       delta(cur.price.Mean, prev.price.Mean),
		PriceMedian:     delta(cur.price.Median, prev.price.Median),
		SizeMean:        delta(cur.size.Mean, prev.size.Mean),
		SizeMedian:      delta(cur.size.Median, prev.size.Median),
		PricePerSqmMean: delta(cur.perSqm.Mean, prev.perSqm.Mean),
		PricePerSqmMed:  delta(cur.perSqm.Median, prev.perSqm.Median),
	}

	if !cur.price.Available() {
		snap.Unavailable = append(snap.Unavailable, "price")
	}
	if !cur.size.Available() {
		snap.Unavailable = append(snap.Unavailable, "size_sqm")
	}
	if !cur.perSqm.Available() {
		snap.Unavailable = append(snap.Unavailable, "price_per_sqm")
	}
	if len(previous) == 0 {
		snap.Unavailable = append(snap.Unavailable, "trends")
	}

	a.logger.Info("[trends] Window %s: %d listings, %d in preceding window",
		snap.Window, len(current), len(previous))
	return snap
}

// inWindow keeps listings first seen in (start, end].
func inWindow(history []*models.PersistedListing, start, end time.Time) []*models.PersistedListing {
	var out []*models.PersistedListing
	for _, l := range history {
		if l.FirstSeen.After(start) && !l.FirstSeen.After(end) {
			out = append(out, l)
		}
	}
	return out
}

type summary struct {
	price, size, perSqm models.Stats
}

func summarize(listings []*models.PersistedListing) summary {
	var prices, sizes, perSqm []float64
	for _, l := range listings {
		if l.Price != nil {
			prices = append(prices, *l.Price)
		}
		if l.Size != nil {
			sizes = append(sizes, *l.Size)
		}
		if v := l.PricePerSqm(); v != nil {
			perSqm = append(perSqm, *v)
		}
	}
	return summary{price: computeStats(prices), size: computeStats(sizes), perSqm: computeStats(perSqm)}
}

// computeStats returns nil members for an empty input, never zeros.
func computeStats(values []float64) models.Stats {
	s := models.Stats{Count: len(values)}
	if len(values) == 0 {
		return s
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var total float64
	for _, v := range sorted {
		total += v
	}
	mid := len(sorted) / 2
	median := sorted[mid]
	if len(sorted)%2 == 0 {
		median = (sorted[mid-1] + sorted[mid]) / 2
	}

	s.Mean = round2(total / float64(len(sorted)))
	s.Median = round2(median)
	s.Min = round2(sorted[0])
	s.Max = round2(sorted[len(sorted)-1])
	return s
}

func delta(current, previous *float64) models.TrendDelta {
	d := models.TrendDelta{Current: current, Previous: previous}
	if current != nil && previous != nil {
		d.Delta = round2(*current - *previous)
	}
	return d
}

// topCounts is a frequency table over non-empty keys, highest count first.
func topCounts(listings []*models.PersistedListing, n int, key func(*models.PersistedListing) string) []models.Count {
	freq := make(map[string]int)
	for _, l := range listings {
		if k := key(l); k != "" {
			freq[k]++
		}
	}

	out := make([]models.Count, 0, len(freq))
	for k, c := range freq {
		out = append(out, models.Count{Key: k, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func round2(f float64) *float64 {
	v := math.Round(f*100) / 100
	return &v
}

// Print renders a snapshot as terminal tables.
func Print(w io.Writer, s *models.AnalyticsSnapshot) {
	fmt.Fprintf(w, "\nMarket snapshot %s (window %s, as of %s)\n\n",
		s.RunID, s.Window, s.WindowEnd.Format("2006-01-02 15:04"))

	if s.Empty {
		fmt.Fprintln(w, "  No listings in this window")
	}

	overview := newTable(w, "Overview")
	overview.AppendHeader(table.Row{"Source", "Listings"})
	sources := make([]string, 0, len(s.PerSource))
	for src := range s.PerSource {
		sources = append(sources, src)
	}
	sort.Strings(sources)
	for _, src := range sources {
		overview.AppendRow(table.Row{src, s.PerSource[src]})
	}
	overview.AppendFooter(table.Row{"Total", s.TotalListings})
	overview.Render()

	stats := newTable(w, "Statistics")
	stats.AppendHeader(table.Row{"Field", "Count", "Mean", "Median", "Min", "Max"})
	for _, row := range []struct {
		name string
		st   models.Stats
	}{{"Price", s.Price}, {"Size (m²)", s.Size}, {"Price / m²", s.PricePerSqm}} {
		stats.AppendRow(table.Row{row.name, row.st.Count, num(row.st.Mean), num(row.st.Median), num(row.st.Min), num(row.st.Max)})
	}
	stats.Render()

	trends := newTable(w, "Trends vs preceding window")
	trends.AppendHeader(table.Row{"Statistic", "Current", "Previous", "Delta"})
	for _, row := range []struct {
		name string
		d    models.TrendDelta
	}{
		{"Price mean", s.Trends.PriceMean},
		{"Price median", s.Trends.PriceMedian},
		{"Size mean", s.Trends.SizeMean},
		{"Size median", s.Trends.SizeMedian},
		{"Price / m² mean", s.Trends.PricePerSqmMean},
		{"Price / m² median", s.Trends.PricePerSqmMed},
	} {
		trends.AppendRow(table.Row{row.name, num(row.d.Current), num(row.d.Previous), signed(row.d.Delta)})
	}
	trends.Render()

	printCounts(w, "Top locations", s.TopLocations)
	printCounts(w, "Top property types", s.TopTypes)
}

func printCounts(w io.Writer, title string, counts []models.Count) {
	t := newTable(w, title)
	t.AppendHeader(table.Row{"#", "Key", "Listings", ""})
	for i, c := range counts {
		t.AppendRow(table.Row{i + 1, c.Key, c.Count, strings.Repeat("█", min(c.Count, 40))})
	}
	if len(counts) == 0 {
		t.AppendRow(table.Row{"", "no data", "", ""})
	}
	t.Render()
}

func newTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(title)
	t.SetStyle(table.StyleLight)
	t.Style().Title.Colors = text.Colors{text.Bold, text.FgMagenta}
	return t
}

func num(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *v)
}

func signed(v *float64) string {
	if v == nil {
		return "unavailable"
	}
	return fmt.Sprintf("%+.2f", *v)
}
