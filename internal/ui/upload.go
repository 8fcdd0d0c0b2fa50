package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/tablerag/internal/core"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Padding(0, 1)

	completeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF00")).
			Bold(true)

	failedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	controlsStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			Italic(true)
)

// Uploader drives one upload to completion. *core.Orchestrator satisfies it.
type Uploader interface {
	Upload(ctx context.Context, form *core.UploadForm, onProgress core.ProgressFunc) (*core.UploadOutcome, error)
}

type progressMsg struct {
	token core.Token
	obs   core.Observation
}

type doneMsg struct {
	token   core.Token
	outcome *core.UploadOutcome
	err     error
}

// UploadModel is the bubbletea model shown while an upload is followed.
// Messages from a superseded run are dropped by generation token.
type UploadModel struct {
	ctx      context.Context
	uploader Uploader
	form     *core.UploadForm
	fileName string
	name     string

	spinner spinner.Model
	gen     core.Generation
	cancel  context.CancelFunc

	progress chan core.Observation
	done     chan doneMsg

	last      core.Observation
	outcome   *core.UploadOutcome
	err       error
	finished  bool
	cancelled bool
}

// NewUploadModel prepares a model for form. The upload starts in Init.
func NewUploadModel(ctx context.Context, uploader Uploader, form *core.UploadForm) *UploadModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	m := &UploadModel{
		ctx:      ctx,
		uploader: uploader,
		form:     form,
		name:     form.DisplayName(),
		spinner:  s,
		cancel:   func() {},
		last:     core.Observation{State: core.PollSubmitted},
	}
	if form.File != nil {
		m.fileName = form.File.Name
	}
	return m
}

func (m *UploadModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.start())
}

// start runs the upload in the background under a fresh token.
func (m *UploadModel) start() tea.Cmd {
	token := m.gen.Advance()
	ctx, cancel := context.WithCancel(m.ctx)
	m.cancel = cancel

	progress := make(chan core.Observation, 16)
	done := make(chan doneMsg, 1)
	m.progress, m.done = progress, done

	go func() {
		outcome, err := m.uploader.Upload(ctx, m.form, func(obs core.Observation) {
			select {
			case progress <- obs:
			default:
			}
		})
		done <- doneMsg{token: token, outcome: outcome, err: err}
	}()
	return m.wait(token)
}

// wait delivers the next progress observation or the final result.
func (m *UploadModel) wait(token core.Token) tea.Cmd {
	progress, done := m.progress, m.done
	return func() tea.Msg {
		select {
		case obs := <-progress:
			return progressMsg{token: token, obs: obs}
		case d := <-done:
			return d
		}
	}
}

func (m *UploadModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "Q", "esc", "ctrl+c":
			m.gen.Advance()
			m.cancel()
			m.cancelled = true
			return m, tea.Quit
		}

	case progressMsg:
		if !m.gen.IsCurrent(msg.token) {
			return m, nil
		}
		m.last = msg.obs
		return m, m.wait(msg.token)

	case doneMsg:
		if !m.gen.IsCurrent(msg.token) {
			return m, nil
		}
		m.cancel()
		m.finished = true
		m.outcome, m.err = msg.outcome, msg.err
		if msg.outcome != nil {
			m.last.State = msg.outcome.State
		}
		return m, tea.Quit

	case spinner.TickMsg:
		if m.finished || m.cancelled {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *UploadModel) View() string {
	switch {
	case m.cancelled:
		return failedStyle.Render("Upload cancelled") + "\n"
	case m.finished && m.err != nil:
		return failedStyle.Render("Upload failed: "+core.UserErrorWithCode(m.err)) + "\n"
	case m.finished:
		return completeStyle.Render(fmt.Sprintf("Uploaded %s as table %s", m.label(), m.outcome.TableID)) + "\n"
	}

	var sb strings.Builder
	sb.WriteString(m.spinner.View())
	sb.WriteString(" Uploading ")
	sb.WriteString(m.label())
	sb.WriteString(statusStyle.Render(fmt.Sprintf("%s %d%%", m.last.State, m.last.Progress)))
	sb.WriteString("\n")
	sb.WriteString(controlsStyle.Render("Q: cancel"))
	sb.WriteString("\n")
	return sb.String()
}

func (m *UploadModel) label() string {
	if m.name != "" && m.name != strings.TrimSuffix(m.fileName, ".csv") {
		return fmt.Sprintf("%s (%s)", m.fileName, m.name)
	}
	return m.fileName
}

// Result returns the outcome once the program has exited. A cancelled
// upload reports context.Canceled.
func (m *UploadModel) Result() (*core.UploadOutcome, error) {
	if m.cancelled {
		return m.outcome, context.Canceled
	}
	return m.outcome, m.err
}
