// Package cmd holds the ingest command-line interface.
package cmd

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"realestate-scraper/config"
	"realestate-scraper/utils"
)

var (
	cfg     *config.Config
	profile *config.Profile
	logger  *utils.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Real-estate listing ingestion pipeline",
	Long: "Fetches listing pages, extracts price, size, location and contact fields, " +
		"deduplicates them by canonical URL and aggregates market trends.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		logger = utils.NewLogger()

		p, err := loadProfile(cfg.ProfilePath)
		if err != nil {
			return eris.Wrap(err, "load profile")
		}
		profile = p
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func loadProfile(path string) (*config.Profile, error) {
	if path == "" {
		return config.DefaultProfile()
	}
	return config.LoadProfile(path)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
