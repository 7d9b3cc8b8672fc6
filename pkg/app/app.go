// Package app renders download progress in the terminal.
package app

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kerbaras/comicdl/pkg/app/components"
	"github.com/kerbaras/comicdl/pkg/app/styles"
	"github.com/kerbaras/comicdl/pkg/services"
)

// batchDoneMsg carries the result of the download batch.
type batchDoneMsg struct {
	err error
}

// DownloadModel shows a spinner and per-chapter progress while a batch runs.
type DownloadModel struct {
	title    string
	events   <-chan services.DownloadProgress
	run      func() error
	spinner  spinner.Model
	tracker  *components.ProgressTracker
	done     bool
	err      error
	quitting bool
}

// NewDownloadModel builds the model. run is started by Init and its error is
// reported by Err once the program exits.
func NewDownloadModel(title string, events <-chan services.DownloadProgress, run func() error) *DownloadModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.SpinnerStyle

	return &DownloadModel{
		title:   title,
		events:  events,
		run:     run,
		spinner: s,
		tracker: components.NewProgressTracker(80),
	}
}

func (m *DownloadModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForProgress, m.runBatch)
}

func (m *DownloadModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.tracker.SetWidth(msg.Width - 4)

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case services.DownloadProgress:
		m.tracker.Update(msg)
		return m, m.listenForProgress

	case batchDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *DownloadModel) View() string {
	header := fmt.Sprintf("%s %s", m.spinner.View(), styles.TitleStyle.Render(m.title))
	if m.done {
		header = styles.TitleStyle.Render(m.title)
	}

	summary := styles.MutedStyle.Render(fmt.Sprintf("%d downloaded • %d failed", m.tracker.Completed(), m.tracker.Failed()))
	help := styles.HelpStyle.Render("q: quit")

	return fmt.Sprintf("%s\n%s\n\n%s%s\n", header, summary, m.tracker.View(), help)
}

// Err returns the batch error, or nil if the batch has not finished.
func (m *DownloadModel) Err() error {
	return m.err
}

// Quitting reports whether the user left before the batch finished.
func (m *DownloadModel) Quitting() bool {
	return m.quitting && !m.done
}

func (m *DownloadModel) runBatch() tea.Msg {
	return batchDoneMsg{err: m.run()}
}

func (m *DownloadModel) listenForProgress() tea.Msg {
	ev, ok := <-m.events
	if !ok {
		return nil
	}
	return ev
}

// App runs terminal views.
type App struct {
	in  io.Reader
	out io.Writer
}

func NewApp(in io.Reader, out io.Writer) *App {
	return &App{in: in, out: out}
}

// RunDownload shows model until the batch finishes or the user quits.
func (a *App) RunDownload(model *DownloadModel) error {
	p := tea.NewProgram(model, tea.WithInput(a.in), tea.WithOutput(a.out))
	if _, err := p.Run(); err != nil {
		return err
	}
	return model.Err()
}
