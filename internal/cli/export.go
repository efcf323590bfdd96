package cli

import (
	"github.com/spf13/cobra"

	"github.com/Henry6262/opus-x-sub001/internal/app"
)

var (
	exportMint      string
	exportAPIBase   string
	exportPNGPath   string
	exportCSVPath   string
	exportMaxPoints int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a token's score history as CSV and/or PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ExportOptions{
			TokenMint: exportMint,
			APIBase:   exportAPIBase,
			PNGPath:   exportPNGPath,
			CSVPath:   exportCSVPath,
			MaxPoints: exportMaxPoints,
		}

		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportMint, "mint", "", "Token mint address to export")
	exportCmd.Flags().StringVar(&exportAPIBase, "api", "", "Base URL of the running instance (defaults to the configured server address)")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().IntVar(&exportMaxPoints, "max-points", 0, "Maximum data points to export (defaults to config)")
}
