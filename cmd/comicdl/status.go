package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kerbaras/comicdl/pkg/app/styles"
	"github.com/kerbaras/comicdl/pkg/integrations"
)

var statusCmd = &cobra.Command{
	Use:   "status <comic-id> [chapter-id...]",
	Short: "Show download status of a comic",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		comicID := args[0]
		total, _ := cmd.Flags().GetInt("total")

		manager, err := openManager(cmd.Context())
		if err != nil {
			return err
		}
		defer manager.Close()

		out := cmd.OutOrStdout()
		chapterIDs := args[1:]
		if len(chapterIDs) == 0 {
			if r, ok := manager.Record(comicID); ok {
				for id := range r.Chapters {
					chapterIDs = append(chapterIDs, id)
				}
			}
		}
		chapterIDs = integrations.SortChapterIDs(chapterIDs)

		if len(chapterIDs) == 0 {
			fmt.Fprintln(out, styles.MutedStyle.Render("Nothing downloaded for "+comicID))
		}
		for _, id := range chapterIDs {
			s := manager.GetChapterStatus(comicID, id)
			line := fmt.Sprintf("chapter %-8s %-12s %3.0f%%", id, s.Status, s.Progress*100)
			if s.Error != "" {
				line += "  " + s.Error
			}
			fmt.Fprintln(out, styles.StatusStyle(string(s.Status)).Render(line))
		}

		if total > 0 {
			info := manager.GetDownloadInfo(comicID, total)
			fmt.Fprintf(out, "\n📚 %d/%d chapters downloaded (%.0f%%)\n", info.DownloadedCount, total, info.Progress*100)
		}
		if cover, ok := manager.GetDownloadedCoverURI(comicID); ok {
			fmt.Fprintf(out, "🖼  Cover: %s\n", cover)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().IntP("total", "t", 0, "Total chapters of the comic, to report overall progress")
}
