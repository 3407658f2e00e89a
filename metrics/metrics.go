// Package metrics exposes ingestion counters in Prometheus format.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"realestate-scraper/models"
	"realestate-scraper/utils"
)

const namespace = "listings"

// Candidate outcomes.
const (
	OutcomeExtracted = "extracted"
	OutcomeFiltered  = "filtered"
	OutcomeNoURL     = "no_url"
	OutcomeMerged    = "merged"
)

// Reconcile outcomes.
const (
	OutcomeNew     = "new"
	OutcomeUpdated = "updated"
)

// Metrics holds the pipeline's collectors on a private registry, so several
// instances can coexist in one process.
type Metrics struct {
	Registry *prometheus.Registry

	FetchResults      *prometheus.CounterVec
	Candidates        *prometheus.CounterVec
	ListingsReconcile *prometheus.CounterVec
	RunDuration       prometheus.Histogram
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		FetchResults: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_results_total",
			Help:      "Fetched documents by final status.",
		}, []string{"status"}),
		Candidates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_total",
			Help:      "Candidate listings by pipeline outcome.",
		}, []string{"outcome"}),
		ListingsReconcile: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciled_total",
			Help:      "Reconciled listings by outcome.",
		}, []string{"outcome"}),
		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of complete ingestion runs.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}
}

// ObserveFetch counts one document; blocked pages get their own label.
func (m *Metrics) ObserveFetch(doc *models.RawDocument) {
	if m == nil {
		return
	}
	status := string(doc.Status)
	if doc.Blocked {
		status = "blocked"
	}
	m.FetchResults.WithLabelValues(status).Inc()
}

// ObserveCandidates adds n to the given candidate outcome.
func (m *Metrics) ObserveCandidates(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Candidates.WithLabelValues(outcome).Add(float64(n))
}

// ObserveReconcile records a reconcile result.
func (m *Metrics) ObserveReconcile(newCount, updated int) {
	if m == nil {
		return
	}
	m.ListingsReconcile.WithLabelValues(OutcomeNew).Add(float64(newCount))
	m.ListingsReconcile.WithLabelValues(OutcomeUpdated).Add(float64(updated))
}

// ObserveRun records the duration of a finished run.
func (m *Metrics) ObserveRun(d time.Duration) {
	if m == nil {
		return
	}
	m.RunDuration.Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *utils.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("[metrics] Listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("[metrics] Server stopped: %v", err)
	}
}
