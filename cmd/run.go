package cmd

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"realestate-scraper/extractor"
	"realestate-scraper/metrics"
	"realestate-scraper/scraper"
	"realestate-scraper/services"
	"realestate-scraper/storage"
	"realestate-scraper/utils"
)

var (
	runURLFile       string
	runKeywords      []string
	runCommercial    bool
	runStore         string
	runOutputDir     string
	runRender        bool
	runSkipSnapshots bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Ingest every URL in a file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		urls, err := scraper.ReadURLFile(runURLFile)
		if err != nil {
			return err
		}
		if len(urls) == 0 {
			return eris.Errorf("no URLs in %s", runURLFile)
		}

		backend := cfg.StoreBackend
		if runStore != "" {
			backend = runStore
		}
		store, snapshots, err := initStore(ctx, backend)
		if err != nil {
			return err
		}
		defer store.Close()
		if !runSkipSnapshots {
			snapshots = append(snapshots, storage.NewSnapshotDir(cfg.AnalyticsDir))
		}

		m := metrics.New()
		if cfg.MetricsAddr != "" {
			go m.Serve(ctx, cfg.MetricsAddr, logger)
		}

		ext, err := extractor.New(profile)
		if err != nil {
			return eris.Wrap(err, "build extractor")
		}

		fetchOpts := []scraper.FetcherOption{
			scraper.WithProfile(profile),
			scraper.WithRateLimit(cfg.RateLimitMs),
		}
		if runRender {
			browser, err := scraper.NewBrowserGetter(cfg.ChromeBin, cfg.UserAgent, logger)
			if err != nil {
				logger.Warn("Browser rendering unavailable, fetching rendered sources over HTTP: %v", err)
			} else {
				defer browser.Close()
				fetchOpts = append(fetchOpts, scraper.WithRenderer(browser))
			}
		}
		fetcher := scraper.NewFetcher(scraper.NewHTTPGetter(cfg.UserAgent), logger, fetchOpts...)

		outputDir := cfg.OutputDir
		if runOutputDir != "" {
			outputDir = runOutputDir
		}
		commercialOnly := cfg.CommercialOnly || runCommercial

		runner := &services.Runner{
			Pipeline: services.NewPipeline(fetcher, ext, services.PipelineOptions{
				MaxConcurrency: cfg.MaxConcurrency,
				Timeout:        cfg.RequestTimeout,
				ExtractWorkers: cfg.ExtractWorkers,
				MaxRetries:     cfg.MaxRetries,
				Keywords:       runKeywords,
				CommercialOnly: commercialOnly,
			}, m),
			Resolver:    services.NewResolver(store, cfg.MaxConcurrency),
			Trends:      services.NewTrendAggregator(logger, cfg.TopN),
			Store:       store,
			Snapshots:   snapshots,
			Notifier:    services.NewLogNotifier(logger),
			Metrics:     m,
			OutputDir:   outputDir,
			TrendWindow: cfg.TrendWindow,
		}
		if cfg.SyncXLSXPath != "" {
			runner.Sync = storage.NewXLSXSync(cfg.SyncXLSXPath)
		}

		logger.Info("=== Listing ingestion starting ===")
		logger.Info("Config: %d URLs | concurrency: %d | timeout: %v | retries: %d | store: %s | commercial only: %t",
			len(urls), cfg.MaxConcurrency, cfg.RequestTimeout, cfg.MaxRetries, backend, commercialOnly)

		report, runErr := runner.Run(ctx, utils.NewRun(logger), urls)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return eris.Wrap(err, "encode report")
		}
		return runErr
	},
}

// initStore opens the dedup store for backend. Postgres also keeps snapshots.
func initStore(ctx context.Context, backend string) (storage.ListingStore, []storage.SnapshotWriter, error) {
	switch backend {
	case "", "memory":
		return storage.NewMemoryStore(), nil, nil
	case "postgres":
		ps, err := storage.NewPostgresStore(ctx, cfg.DSN())
		if err != nil {
			return nil, nil, eris.Wrap(err, "open postgres store")
		}
		return ps, []storage.SnapshotWriter{ps}, nil
	default:
		return nil, nil, eris.Errorf("unknown store backend %q", backend)
	}
}

func init() {
	runCmd.Flags().StringVar(&runURLFile, "urls", "", "file with one URL per line (required)")
	runCmd.Flags().StringSliceVar(&runKeywords, "keywords", nil, "keep only listings whose title or description contains one of these")
	runCmd.Flags().BoolVar(&runCommercial, "commercial-only", false, "drop listings not classified as commercial")
	runCmd.Flags().StringVar(&runStore, "store", "", "dedup store backend: memory or postgres (default from STORE_BACKEND)")
	runCmd.Flags().StringVar(&runOutputDir, "output", "", "directory for candidates and reports (default from OUTPUT_DIR)")
	runCmd.Flags().BoolVar(&runRender, "render", false, "render sources marked render: true in headless Chrome")
	runCmd.Flags().BoolVar(&runSkipSnapshots, "no-snapshot-files", false, "do not write snapshot JSON files to ANALYTICS_DIR")
	_ = runCmd.MarkFlagRequired("urls")
	rootCmd.AddCommand(runCmd)
}
