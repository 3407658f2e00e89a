package models

import "time"

// Stats holds descriptive statistics for one numeric field. Nil members mean
// the statistic was not computable (no usable values), not zero.
type Stats struct {
	Count  int      `json:"count"`
	Mean   *float64 `json:"mean"`
	Median *float64 `json:"median"`
	Min    *float64 `json:"min"`
	Max    *float64 `json:"max"`
}

// Available reports whether any value contributed to the statistics.
func (s Stats) Available() bool {
	return s.Count > 0
}

// Count is one row of a frequency table.
type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// TrendDelta is current minus previous window for one statistic.
// Delta is nil when either window lacks the statistic.
type TrendDelta struct {
	Current  *float64 `json:"current"`
	Previous *float64 `json:"previous"`
	Delta    *float64 `json:"delta"`
}

// Trends groups the period-over-period deltas reported in a snapshot.
type Trends struct {
	PriceMean       TrendDelta `json:"price_mean"`
	PriceMedian     TrendDelta `json:"price_median"`
	SizeMean        TrendDelta `json:"size_mean"`
	SizeMedian      TrendDelta `json:"size_median"`
	PricePerSqmMean TrendDelta `json:"price_per_sqm_mean"`
	PricePerSqmMed  TrendDelta `json:"price_per_sqm_median"`
}

// AnalyticsSnapshot is the immutable aggregate written once per run.
type AnalyticsSnapshot struct {
	RunID         string         `json:"run_id"`
	Timestamp     time.Time      `json:"timestamp"`
	WindowStart   *time.Time     `json:"window_start"`
	WindowEnd     time.Time      `json:"window_end"`
	Window        string         `json:"window"`
	Empty         bool           `json:"empty"`
	TotalListings int            `json:"total_listings"`
	PerSource     map[string]int `json:"per_source"`
	Price         Stats          `json:"price"`
	Size          Stats          `json:"size_sqm"`
	PricePerSqm   Stats          `json:"price_per_sqm"`
	TopLocations  []Count        `json:"top_locations"`
	TopTypes      []Count        `json:"top_property_types"`
	Trends        Trends         `json:"trends"`
	Unavailable   []string       `json:"unavailable,omitempty"`
}

// RunStatus is the terminal state of an ingestion run.
type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// RunFailure is one URL that did not yield a candidate.
type RunFailure struct {
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// RunReport is what a run reports instead of a single pass/fail flag.
type RunReport struct {
	RunID               string       `json:"run_id"`
	StartedAt           time.Time    `json:"started_at"`
	FinishedAt          time.Time    `json:"finished_at"`
	Status              RunStatus    `json:"status"`
	Error               string       `json:"error,omitempty"`
	Fetched             int          `json:"fetched"`
	ExtractionSucceeded int          `json:"extraction_succeeded"`
	FilteredOut         int          `json:"filtered_out"`
	New                 int          `json:"new"`
	Updated             int          `json:"updated"`
	Failed              []RunFailure `json:"failed"`
}
