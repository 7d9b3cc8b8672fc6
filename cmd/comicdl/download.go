package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kerbaras/comicdl/pkg/app"
	"github.com/kerbaras/comicdl/pkg/services"
	"github.com/kerbaras/comicdl/pkg/sources"
)

var downloadCmd = &cobra.Command{
	Use:   "download <comic-id> [chapter-id...]",
	Short: "Download comic chapters",
	Long: `Download chapters of a comic for offline reading.

Chapters are given by id, or selected from the catalog with --chapters.
Chapters already on this device are skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		comicID := args[0]
		language, _ := cmd.Flags().GetString("language")
		chaptersFlag, _ := cmd.Flags().GetString("chapters")
		plain, _ := cmd.Flags().GetBool("plain")
		if language == "" {
			language = cfg.Source.Language
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		catalog := newCatalog()
		chapterIDs := args[1:]
		if len(chapterIDs) == 0 {
			var err error
			chapterIDs, err = resolveChapters(ctx, catalog, comicID, language, chaptersFlag)
			if err != nil {
				return err
			}
		}
		if len(chapterIDs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "📭 No chapters match")
			return nil
		}

		fmt.Fprintf(cmd.OutOrStdout(), "🔍 Resolving %d chapters of %s\n", len(chapterIDs), comicID)
		assets, err := catalog.Sources(ctx, comicID, chapterIDs)
		if err != nil {
			return fmt.Errorf("failed to resolve chapter pages: %w", err)
		}

		manager, err := openManager(ctx)
		if err != nil {
			return err
		}
		defer manager.Close()

		run := func() error {
			return manager.DownloadChapters(ctx, comicID, chapterIDs, assets)
		}

		if plain {
			go logProgress(manager.Progress())
			err = run()
		} else {
			model := app.NewDownloadModel(fmt.Sprintf("Downloading %s", comicID), manager.Progress(), run)
			err = app.NewApp(cmd.InOrStdin(), cmd.OutOrStdout()).RunDownload(model)
			if model.Quitting() {
				stop()
			}
		}
		if err != nil {
			return fmt.Errorf("download failed: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "✅ %d/%d chapters on device\n", countDownloaded(manager, comicID, chapterIDs), len(chapterIDs))
		return nil
	},
}

type chapterStatusReader interface {
	GetChapterStatus(comicID, chapterID string) services.ChapterStatus
}

// countDownloaded counts the requested chapters that are on device. Chapters of
// the comic downloaded earlier are not counted.
func countDownloaded(r chapterStatusReader, comicID string, chapterIDs []string) int {
	n := 0
	for _, id := range chapterIDs {
		if r.GetChapterStatus(comicID, id).Status == services.StatusDownloaded {
			n++
		}
	}
	return n
}

func init() {
	downloadCmd.Flags().StringP("language", "l", "", "Language code (e.g., en, ja, es)")
	downloadCmd.Flags().StringP("chapters", "c", "", "Chapter number range (e.g., 1-10)")
	downloadCmd.Flags().Bool("plain", false, "Log progress instead of showing the progress view")
}

func logProgress(events <-chan services.DownloadProgress) {
	for ev := range events {
		e := logger.Info()
		if ev.Status == services.StatusFailed {
			e = logger.Error().Err(ev.Error)
		}
		e.Str("comic_id", ev.ComicID).
			Str("chapter_id", ev.ChapterID).
			Str("status", string(ev.Status)).
			Int("page", ev.CurrentPage).
			Int("pages", ev.TotalPages).
			Msg("Chapter progress")
	}
}

// resolveChapters lists the comic's chapters and keeps those whose number is in rangeFlag.
func resolveChapters(ctx context.Context, catalog sources.Catalog, comicID, language, rangeFlag string) ([]string, error) {
	start, end, err := parseRange(rangeFlag)
	if err != nil {
		return nil, err
	}
	chapters, err := catalog.GetChapters(ctx, comicID, language)
	if err != nil {
		return nil, fmt.Errorf("failed to list chapters: %w", err)
	}
	return selectChapters(chapters, start, end), nil
}

// parseRange parses "a-b" or "a". An empty range selects every chapter.
func parseRange(s string) (float64, float64, error) {
	if s == "" {
		return 0, -1, nil
	}
	parts := strings.SplitN(s, "-", 2)
	start, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid chapter range %q, use --chapters 1-10", s)
	}
	end := start
	if len(parts) == 2 {
		end, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil || end < start {
			return 0, 0, fmt.Errorf("invalid chapter range %q, use --chapters 1-10", s)
		}
	}
	return start, end, nil
}

// selectChapters keeps chapters numbered within [start, end], in catalog order.
// end < start selects everything.
func selectChapters(chapters []sources.Chapter, start, end float64) []string {
	var ids []string
	seen := map[string]bool{}
	for _, ch := range chapters {
		if end >= start {
			n, err := strconv.ParseFloat(ch.Number, 64)
			if err != nil || n < start || n > end {
				continue
			}
		}
		if seen[ch.ID] {
			continue
		}
		seen[ch.ID] = true
		ids = append(ids, ch.ID)
	}
	return ids
}
