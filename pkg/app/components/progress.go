package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"

	"github.com/kerbaras/comicdl/pkg/app/styles"
	"github.com/kerbaras/comicdl/pkg/services"
)

// ProgressTracker keeps the latest progress event of every chapter in a batch,
// in the order the chapters were first seen.
type ProgressTracker struct {
	downloads map[string]*services.DownloadProgress
	order     []string
	completed int
	failed    int
	bar       progress.Model
	width     int
}

func NewProgressTracker(width int) *ProgressTracker {
	return &ProgressTracker{
		downloads: make(map[string]*services.DownloadProgress),
		bar:       progress.New(progress.WithDefaultGradient(), progress.WithWidth(barWidth(width)), progress.WithoutPercentage()),
		width:     width,
	}
}

func progressKey(comicID, chapterID string) string {
	return comicID + ":" + chapterID
}

func barWidth(width int) int {
	if width <= 4 {
		return 10
	}
	return width - 4
}

// Update records an event. Downloaded chapters leave the active list.
func (p *ProgressTracker) Update(ev services.DownloadProgress) {
	key := progressKey(ev.ComicID, ev.ChapterID)
	prev, seen := p.downloads[key]

	switch ev.Status {
	case services.StatusDownloaded:
		if seen {
			p.remove(key)
		}
		p.completed++
		return
	case services.StatusFailed:
		if !seen || prev.Status != services.StatusFailed {
			p.failed++
		}
		if seen {
			// Failure events carry no page counts; keep the last known ones.
			ev.CurrentPage, ev.TotalPages, ev.Progress = prev.CurrentPage, prev.TotalPages, prev.Progress
		}
	}

	if !seen {
		p.order = append(p.order, key)
	}
	e := ev
	p.downloads[key] = &e
}

func (p *ProgressTracker) remove(key string) {
	delete(p.downloads, key)
	for i, k := range p.order {
		if k == key {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

// SetWidth resizes the progress bars.
func (p *ProgressTracker) SetWidth(width int) {
	p.width = width
	p.bar.Width = barWidth(width)
}

func (p *ProgressTracker) Clear() {
	p.downloads = make(map[string]*services.DownloadProgress)
	p.order = nil
	p.completed = 0
	p.failed = 0
}

// HasActive reports whether any chapter is queued or downloading.
func (p *ProgressTracker) HasActive() bool {
	for _, d := range p.downloads {
		if d.Status != services.StatusFailed {
			return true
		}
	}
	return false
}

func (p *ProgressTracker) Completed() int { return p.completed }

func (p *ProgressTracker) Failed() int { return p.failed }

func (p *ProgressTracker) View() string {
	if len(p.order) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(styles.TitleStyle.Render("Active Downloads"))
	b.WriteString("\n\n")

	for _, key := range p.order {
		d := p.downloads[key]

		b.WriteString(styles.TextStyle.Render(fmt.Sprintf("%s · chapter %s", d.ComicID, d.ChapterID)))
		b.WriteString("\n")

		statusText := string(d.Status)
		if d.TotalPages > 0 {
			statusText = fmt.Sprintf("%s (%d/%d pages - %.0f%%)", d.Status, d.CurrentPage, d.TotalPages, d.Progress*100)
			b.WriteString(p.bar.ViewAs(d.Progress))
			b.WriteString("\n")
		}
		b.WriteString(styles.StatusStyle(string(d.Status)).Render(statusText))
		b.WriteString("\n")

		if d.Error != nil {
			b.WriteString(styles.StatusError.Render(fmt.Sprintf("Error: %s", d.Error)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	return b.String()
}
