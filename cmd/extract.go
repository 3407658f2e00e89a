package cmd

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"realestate-scraper/extractor"
	"realestate-scraper/models"
)

var (
	extractURL    string
	extractLocale string
)

var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "Extract one saved page and print the candidate listing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrapf(err, "read %s", args[0])
		}

		ext, err := extractor.New(profile)
		if err != nil {
			return eris.Wrap(err, "build extractor")
		}

		doc := &models.RawDocument{
			SourceURL:   extractURL,
			LocaleHint:  extractLocale,
			RetrievedAt: time.Now(),
			Content:     string(content),
			Status:      models.FetchOK,
			StatusCode:  200,
		}
		if doc.LocaleHint == "" {
			if schema := profile.SourceFor(extractURL); schema != nil {
				doc.LocaleHint = schema.Locale
			}
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(ext.Extract(doc))
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractURL, "url", "", "URL the page was saved from; selects the source schema")
	extractCmd.Flags().StringVar(&extractLocale, "locale", "", "locale rules to apply (default from the source or profile)")
	rootCmd.AddCommand(extractCmd)
}
