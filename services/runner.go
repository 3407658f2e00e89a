package services

import (
	"context"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"

	"realestate-scraper/metrics"
	"realestate-scraper/models"
	"realestate-scraper/storage"
	"realestate-scraper/utils"
)

// Runner wires one full ingestion: pipeline, reconcile, hand-offs, analytics
// and the run report.
type Runner struct {
	Pipeline  *Pipeline
	Resolver  *Resolver
	Trends    *TrendAggregator
	Store     storage.ListingStore
	Snapshots []storage.SnapshotWriter
	// Sync and Notifier are optional.
	Sync     storage.SyncTarget
	Notifier Notifier
	Metrics  *metrics.Metrics

	OutputDir   string
	TrendWindow time.Duration
}

// Run executes one ingestion over urls. The report is returned even when err
// is non-nil; listings reconciled before a store failure stay persisted.
func (r *Runner) Run(ctx context.Context, run *utils.Run, urls []string) (*models.RunReport, error) {
	log := run.Logger
	log.Info("[runner] Run %s starting with %d URLs", run.ID, len(urls))

	candidates := r.Pipeline.Run(ctx, run, urls)

	if err := r.writeCandidates(run.ID, candidates); err != nil {
		return r.finish(run, err)
	}

	created, updated, err := r.Resolver.Reconcile(ctx, run, candidates)
	r.Metrics.ObserveReconcile(len(created), len(updated))
	if err != nil {
		return r.finish(run, err)
	}

	if r.Notifier != nil && len(created) > 0 {
		if err := r.Notifier.Notify(ctx, listingMaps(created)); err != nil {
			log.Warn("[runner] Notifier failed: %v", err)
		}
	}

	if r.Sync != nil {
		if err := r.Sync.Append(append(created, updated...)); err != nil {
			log.Warn("[runner] Sync target failed: %v", err)
		}
	}

	history, err := r.Store.All(ctx)
	if err != nil {
		return r.finish(run, eris.Wrap(err, "runner: load history"))
	}
	snap := r.Trends.Aggregate(run.ID, history, r.TrendWindow, run.Now())
	for _, w := range r.Snapshots {
		if err := w.WriteSnapshot(ctx, snap); err != nil {
			return r.finish(run, eris.Wrap(err, "runner: write snapshot"))
		}
	}

	return r.finish(run, nil)
}

func (r *Runner) writeCandidates(runID string, candidates []*models.CandidateListing) error {
	if r.OutputDir == "" {
		return nil
	}
	base := filepath.Join(r.OutputDir, "candidates_"+runID)

	if err := storage.NewJSONCandidateWriter(base + ".json").WriteCandidates(candidates); err != nil {
		return eris.Wrap(err, "runner: write candidates json")
	}

	csvWriter, err := storage.NewCSVWriter(base + ".csv")
	if err != nil {
		return eris.Wrap(err, "runner: open candidates csv")
	}
	defer csvWriter.Close()
	return eris.Wrap(csvWriter.WriteCandidates(candidates), "runner: write candidates csv")
}

// finish builds the report, logs the summary and persists the report file.
func (r *Runner) finish(run *utils.Run, runErr error) (*models.RunReport, error) {
	c := run.Counters
	report := &models.RunReport{
		RunID:               run.ID,
		StartedAt:           run.StartedAt,
		FinishedAt:          run.Now(),
		Status:              models.RunCompleted,
		Fetched:             int(c.Fetched.Load()),
		ExtractionSucceeded: int(c.ExtractionSucceeded.Load()),
		FilteredOut:         int(c.FilteredOut.Load()),
		New:                 int(c.New.Load()),
		Updated:             int(c.Updated.Load()),
		Failed:              []models.RunFailure{},
	}
	for _, f := range c.Failures() {
		report.Failed = append(report.Failed, models.RunFailure{URL: f.URL, Reason: f.Reason})
	}
	if runErr != nil {
		report.Status = models.RunFailed
		report.Error = runErr.Error()
	}

	r.Metrics.ObserveRun(report.FinishedAt.Sub(report.StartedAt))
	run.Logger.Info("[runner] Run %s %s: fetched %d | extracted %d | filtered %d | new %d | updated %d | failed %d",
		run.ID, report.Status, report.Fetched, report.ExtractionSucceeded, report.FilteredOut,
		report.New, report.Updated, len(report.Failed))

	if r.OutputDir != "" {
		path := filepath.Join(r.OutputDir, "report_"+run.ID+".json")
		if err := storage.WriteJSONFile(path, report); err != nil {
			run.Logger.Error("[runner] Could not write report: %v", err)
		}
	}
	return report, runErr
}
