package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Henry6262/opus-x-sub001/internal/app"
)

var (
	showView    string
	showAPIBase string
	showLimit   int
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the current feed of a running instance",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit < 0 {
			return fmt.Errorf("--limit cannot be negative")
		}

		opts := app.ShowOptions{
			View:    showView,
			APIBase: showAPIBase,
			Limit:   showLimit,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().StringVar(&showView, "view", "decisions", "Feed view to display (decisions, activity, ranked)")
	showCmd.Flags().StringVar(&showAPIBase, "api", "", "Base URL of the running instance (defaults to the configured server address)")
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of records to display")
}
