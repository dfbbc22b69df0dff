package cmd

import (
	"fmt"

	"github.com/lehigh-university-libraries/mockups/internal/catalog"
	"github.com/lehigh-university-libraries/mockups/internal/config"
	"github.com/lehigh-university-libraries/mockups/internal/pipeline"
	"github.com/lehigh-university-libraries/mockups/internal/report"
	"github.com/spf13/cobra"
	"google.golang.org/api/option"
)

func newRecordsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "records",
		Short: "List catalog rows and whether the next run would process them",
		Long: `Reads the catalog worksheet and prints each row's position, ID, status and
eligibility. Nothing is written back to the sheet.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if err := cfg.ValidateSource(); err != nil {
				return err
			}

			source, err := catalog.NewSheetSource(cmd.Context(), cfg.SpreadsheetID, cfg.Worksheet, option.WithCredentialsFile(cfg.CredentialsFile))
			if err != nil {
				return err
			}

			records, err := source.Records(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Println(report.RenderRecords(recordRows(records)))
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML config file")

	return cmd
}

// recordRows builds the listing rows; "yes" marks rows the pipeline would
// process, anything else is the reason they would be marked Error
func recordRows(records []catalog.Record) [][]string {
	rows := make([][]string, 0, len(records))
	for i, r := range records {
		eligible := "yes"
		if reason := pipeline.Ineligibility(r); reason != "" {
			eligible = reason
		}
		rows = append(rows, []string{fmt.Sprintf("%d", catalog.Position(i)), r.ID, string(r.Status), eligible})
	}
	return rows
}
