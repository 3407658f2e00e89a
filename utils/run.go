package utils

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Run is the per-run context handed to every pipeline component instead of
// process-wide state: identity, clock, logger and counters for one ingestion.
type Run struct {
	ID        string
	StartedAt time.Time
	Logger    *Logger
	Counters  *Counters

	now func() time.Time
}

// NewRun starts a run with a fresh id.
func NewRun(logger *Logger) *Run {
	return NewRunWithClock(logger, time.Now)
}

// NewRunWithClock is NewRun with an injectable clock, used by tests.
func NewRunWithClock(logger *Logger, now func() time.Time) *Run {
	if logger == nil {
		logger = NewNopLogger()
	}
	id := uuid.NewString()
	return &Run{
		ID:        id,
		StartedAt: now(),
		Logger:    logger.With("run_id", id),
		Counters:  NewCounters(),
		now:       now,
	}
}

// Now returns the run clock's current time.
func (r *Run) Now() time.Time {
	return r.now()
}

// Counters accumulates the user-visible run counts. Safe for concurrent use.
type Counters struct {
	Fetched             atomic.Int64
	ExtractionSucceeded atomic.Int64
	FilteredOut         atomic.Int64
	New                 atomic.Int64
	Updated             atomic.Int64

	mu       sync.Mutex
	failures []Failure
}

// Failure is one URL that could not be turned into a candidate, with why.
type Failure struct {
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// NewCounters returns zeroed counters.
func NewCounters() *Counters {
	return &Counters{}
}

// Fail records a failed URL.
func (c *Counters) Fail(url, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = append(c.failures, Failure{URL: url, Reason: reason})
}

// Failures returns recorded failures sorted by URL.
func (c *Counters) Failures() []Failure {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Failure, len(c.failures))
	copy(out, c.failures)
	sort.SliceStable(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out
}
