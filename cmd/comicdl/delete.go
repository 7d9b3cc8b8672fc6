package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <comic-id> <chapter-id>...",
	Short: "Delete downloaded chapters",
	Long:  "Remove downloaded chapters from this device. Removing the last chapter of a comic also removes its cover.",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		comicID := args[0]

		manager, err := openManager(cmd.Context())
		if err != nil {
			return err
		}
		defer manager.Close()

		for _, chapterID := range args[1:] {
			if err := manager.DeleteChapter(cmd.Context(), comicID, chapterID); err != nil {
				return fmt.Errorf("failed to delete chapter %s: %w", chapterID, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "🗑  Deleted chapter %s\n", chapterID)
		}
		return nil
	},
}
