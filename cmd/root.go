package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mockups",
		Short: "Generate product mockup images from a catalog spreadsheet",
		Long: `Mockups reads product rows from a Google Sheets catalog, asks an LLM for an
image prompt per product, generates a mockup image, saves it locally, archives
it to Google Drive and writes the outcome back into the Status column.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
		SilenceUsage: true,
	}

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newRecordsCmd())
	cmd.AddCommand(newReportCmd())

	return cmd
}
