package cmd

import (
	"errors"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"realestate-scraper/services"
	"realestate-scraper/storage"
)

var (
	reportStore string
	reportDir   string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the latest analytics snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var reader storage.SnapshotReader
		switch reportStore {
		case "postgres":
			ps, err := storage.NewPostgresStore(ctx, cfg.DSN())
			if err != nil {
				return eris.Wrap(err, "open postgres store")
			}
			defer ps.Close()
			reader = ps
		default:
			dir := cfg.AnalyticsDir
			if reportDir != "" {
				dir = reportDir
			}
			reader = storage.NewSnapshotDir(dir)
		}

		snap, err := reader.LatestSnapshot(ctx)
		if errors.Is(err, storage.ErrNotFound) {
			logger.Warn("No snapshot written yet")
			return nil
		}
		if err != nil {
			return eris.Wrap(err, "load snapshot")
		}

		services.Print(cmd.OutOrStdout(), snap)
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportStore, "store", "files", "where snapshots live: files or postgres")
	reportCmd.Flags().StringVar(&reportDir, "dir", "", "snapshot directory (default from ANALYTICS_DIR)")
	rootCmd.AddCommand(reportCmd)
}
