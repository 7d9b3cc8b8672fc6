package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kerbaras/comicdl/pkg/integrations"
)

var exportCmd = &cobra.Command{
	Use:   "export <comic-id> [chapter-id...]",
	Short: "Export downloaded chapters as an EPUB",
	Long:  "Bundle downloaded chapters of a comic into one EPUB. Without chapter ids every downloaded chapter is included.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		comicID := args[0]
		title, _ := cmd.Flags().GetString("title")
		output, _ := cmd.Flags().GetString("output")

		manager, err := openManager(cmd.Context())
		if err != nil {
			return err
		}
		defer manager.Close()

		record, ok := manager.Record(comicID)
		if !ok {
			return fmt.Errorf("no downloaded chapters for %s", comicID)
		}

		if title == "" {
			title = comicID
			if comic, err := newCatalog().GetComic(cmd.Context(), comicID); err == nil && comic.Title != "" {
				title = comic.Title
			} else if err != nil {
				logger.Debug().Err(err).Msg("Catalog lookup failed, using comic id as title")
			}
		}

		path, err := integrations.NewEPubExporter(output).Export(title, record, args[1:])
		if err != nil {
			return fmt.Errorf("EPUB export failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "📖 EPUB created: %s\n", path)
		return nil
	},
}

func init() {
	exportCmd.Flags().String("title", "", "Book title (defaults to the catalog title)")
	exportCmd.Flags().StringP("output", "o", ".", "Directory the EPUB is written to")
}
