package components

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/table"

	"github.com/kerbaras/comicdl/pkg/app/styles"
	"github.com/kerbaras/comicdl/pkg/data"
	"github.com/kerbaras/comicdl/pkg/integrations"
)

// DownloadRows turns store records into one table row per comic, sorted by comic id.
func DownloadRows(records data.Records) []table.Row {
	ids := make([]string, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	rows := make([]table.Row, 0, len(ids))
	for _, id := range ids {
		r := records[id]

		chapterIDs := make([]string, 0, len(r.Chapters))
		pages := 0
		for ch, paths := range r.Chapters {
			chapterIDs = append(chapterIDs, ch)
			pages += len(paths)
		}
		chapterIDs = integrations.SortChapterIDs(chapterIDs)

		cover := "no"
		if r.CoverURI != "" {
			cover = "yes"
		}
		rows = append(rows, table.Row{
			id,
			fmt.Sprintf("%d", len(r.Chapters)),
			fmt.Sprintf("%d", pages),
			cover,
			strings.Join(chapterIDs, ", "),
		})
	}
	return rows
}

// NewDownloadsTable renders the store records as a non-interactive table.
func NewDownloadsTable(records data.Records, width int) table.Model {
	if width <= 0 {
		width = 100
	}
	chaptersWidth := width - 36 - 8 - 7 - 7 - 12
	if chaptersWidth < 10 {
		chaptersWidth = 10
	}

	columns := []table.Column{
		{Title: "Comic", Width: 36},
		{Title: "Chapters", Width: 8},
		{Title: "Pages", Width: 7},
		{Title: "Cover", Width: 7},
		{Title: "Downloaded", Width: chaptersWidth},
	}
	rows := DownloadRows(records)

	s := table.DefaultStyles()
	s.Header = styles.TableHeaderStyle
	s.Cell = styles.TableCellStyle
	s.Selected = styles.TableCellStyle

	return table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithHeight(len(rows)+1),
		table.WithStyles(s),
	)
}

// DownloadsView is the rendered table, or a placeholder when nothing is downloaded.
func DownloadsView(records data.Records, width int) string {
	if len(records) == 0 {
		return styles.MutedStyle.Render("No downloaded comics")
	}
	t := NewDownloadsTable(records, width)
	return styles.TableBorderStyle.Render(t.View())
}
