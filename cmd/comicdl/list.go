package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kerbaras/comicdl/pkg/app/components"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List downloaded comics",
	Long:  "Display every comic with downloaded chapters in a formatted table",
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := openManager(cmd.Context())
		if err != nil {
			return err
		}
		defer manager.Close()

		records := manager.Downloads()
		if len(records) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "📚 No downloaded comics. Use 'comicdl download' to get some.")
			return nil
		}

		fmt.Fprintf(cmd.OutOrStdout(), "\n📚 Downloads (%d comics)\n\n", len(records))
		fmt.Fprintln(cmd.OutOrStdout(), components.DownloadsView(records, 120))
		return nil
	},
}
