package styles

import "github.com/charmbracelet/lipgloss"

var (
	// Color palette
	Primary    = lipgloss.Color("#FF6B9D")
	Secondary  = lipgloss.Color("#C792EA")
	Success    = lipgloss.Color("#C3E88D")
	Warning    = lipgloss.Color("#FFCB6B")
	Error      = lipgloss.Color("#F07178")
	Info       = lipgloss.Color("#82AAFF")
	Muted      = lipgloss.Color("#546E7A")
	Foreground = lipgloss.Color("#EEFFFF")

	RoundedBorder = lipgloss.RoundedBorder()
)

// Base styles
var (
	// Title style for headings
	TitleStyle = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true).
			MarginBottom(1)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Italic(true)

	TextStyle = lipgloss.NewStyle().
			Foreground(Foreground)

	MutedStyle = lipgloss.NewStyle().
			Foreground(Muted)

	// Status styles
	StatusQueued = lipgloss.NewStyle().
			Foreground(Warning)

	StatusDownloading = lipgloss.NewStyle().
				Foreground(Info).
				Bold(true)

	StatusCompleted = lipgloss.NewStyle().
			Foreground(Success).
			Bold(true)

	StatusError = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(Primary)

	// Table styles
	TableBorderStyle = lipgloss.NewStyle().
				Border(RoundedBorder).
				BorderForeground(Secondary)

	TableHeaderStyle = lipgloss.NewStyle().
				Foreground(Primary).
				Bold(true).
				Padding(0, 1)

	TableCellStyle = lipgloss.NewStyle().
			Padding(0, 1)

	HelpStyle = lipgloss.NewStyle().
			Foreground(Muted).
			Italic(true).
			MarginTop(1)
)

// StatusStyle picks the style for a chapter status.
func StatusStyle(status string) lipgloss.Style {
	switch status {
	case "queued":
		return StatusQueued
	case "downloading":
		return StatusDownloading
	case "downloaded":
		return StatusCompleted
	case "failed":
		return StatusError
	default:
		return MutedStyle
	}
}
