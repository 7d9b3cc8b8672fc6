package integrations

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-shiori/go-epub"

	"github.com/kerbaras/comicdl/pkg/data"
)

// EPubExporter bundles downloaded chapters of a comic into one EPUB file.
type EPubExporter struct {
	outputDir string
}

func NewEPubExporter(outputDir string) *EPubExporter {
	return &EPubExporter{outputDir: outputDir}
}

// Export writes title.epub with the given chapters (all downloaded chapters when
// chapterIDs is empty) and returns the output path.
func (p *EPubExporter) Export(title string, record *data.DownloadRecord, chapterIDs []string) (string, error) {
	if record == nil || len(record.Chapters) == 0 {
		return "", fmt.Errorf("no downloaded chapters to export")
	}
	if title == "" {
		title = record.ComicID
	}

	if len(chapterIDs) == 0 {
		for id := range record.Chapters {
			chapterIDs = append(chapterIDs, id)
		}
	}
	for _, id := range chapterIDs {
		if !record.HasChapter(id) {
			return "", fmt.Errorf("chapter %s is not downloaded", id)
		}
	}
	chapterIDs = SortChapterIDs(chapterIDs)

	if err := os.MkdirAll(p.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	e, err := epub.NewEpub(title)
	if err != nil {
		return "", fmt.Errorf("failed to create EPub: %w", err)
	}
	e.SetLang("en")

	if record.CoverURI != "" {
		if _, err := os.Stat(record.CoverURI); err == nil {
			coverPath, err := e.AddImage(record.CoverURI, "cover"+filepath.Ext(record.CoverURI))
			if err != nil {
				return "", fmt.Errorf("failed to add cover: %w", err)
			}
			e.SetCover(coverPath, "")
		}
	}

	for _, id := range chapterIDs {
		if err := p.addChapter(e, id, record.Chapters[id]); err != nil {
			return "", fmt.Errorf("failed to add chapter %s: %w", id, err)
		}
	}

	outputPath := filepath.Join(p.outputDir, sanitizeFilename(title)+".epub")
	if err := e.Write(outputPath); err != nil {
		return "", fmt.Errorf("failed to write EPub: %w", err)
	}
	return outputPath, nil
}

// addChapter adds a single chapter's pages to the EPub as one section
func (p *EPubExporter) addChapter(e *epub.Epub, chapterID string, pages []string) error {
	if len(pages) == 0 {
		return fmt.Errorf("chapter has no pages")
	}

	chapterTitle := fmt.Sprintf("Chapter %s", chapterID)

	var htmlContent strings.Builder
	htmlContent.WriteString(fmt.Sprintf("<h1>%s</h1>\n", chapterTitle))

	for i, pagePath := range pages {
		internalPath, err := e.AddImage(pagePath, "")
		if err != nil {
			return fmt.Errorf("failed to add page %d: %w", i, err)
		}
		htmlContent.WriteString(fmt.Sprintf(
			`<div class="page"><img src="%s" alt="Page %d" style="width:100%%;height:auto;"/></div>%s`,
			internalPath, i+1, "\n",
		))
	}

	_, err := e.AddSection(htmlContent.String(), chapterTitle, "", "")
	return err
}

// SortChapterIDs orders chapter ids numerically when they parse as numbers,
// falling back to string order.
func SortChapterIDs(ids []string) []string {
	sorted := append([]string(nil), ids...)
	sort.SliceStable(sorted, func(i, j int) bool {
		ni, erri := strconv.ParseFloat(sorted[i], 64)
		nj, errj := strconv.ParseFloat(sorted[j], 64)
		switch {
		case erri == nil && errj == nil:
			return ni < nj
		case erri == nil:
			return true
		case errj == nil:
			return false
		}
		return sorted[i] < sorted[j]
	})
	return sorted
}

// sanitizeFilename removes characters that are invalid in filenames
func sanitizeFilename(name string) string {
	invalid := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|"}
	result := name
	for _, char := range invalid {
		result = strings.ReplaceAll(result, char, "_")
	}
	result = strings.TrimSpace(result)
	result = strings.Trim(result, ".")
	return result
}
