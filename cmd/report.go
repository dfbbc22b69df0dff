package cmd

import (
	"fmt"
	"os"

	"github.com/lehigh-university-libraries/mockups/internal/report"
	"github.com/spf13/cobra"
)

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report <file>",
		Short: "Print a saved run report",
		Example: `  mockups report reports/run.yaml
  mockups report reports/run.parquet`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(args[0]); os.IsNotExist(err) {
				return fmt.Errorf("report file not found: %s", args[0])
			}

			run, err := report.Load(args[0])
			if err != nil {
				return err
			}

			if run.Meta.RunID != "" {
				fmt.Printf("Run %s\n", run.Meta.RunID)
			}
			fmt.Println(report.Render(run))
			return nil
		},
	}

	return cmd
}
