package main

import (
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"yayd/internal/api"
)

var (
	promptTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	promptMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	promptErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	promptOKStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	promptSelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62")).Bold(true)
	promptPanelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

var qualityChoices = []string{"best", "1080", "720", "480"}

type promptField int

const (
	promptFieldURL promptField = iota
	promptFieldQuality
	promptFieldAudio
	promptFieldVerbose
	promptFieldCount
)

// promptModel collects a download request interactively.
type promptModel struct {
	input     textinput.Model
	field     promptField
	quality   int
	audioOnly bool
	verbose   bool
	err       string

	submitted bool
	aborted   bool
}

func newPromptModel() promptModel {
	input := textinput.New()
	input.Prompt = "> "
	input.Placeholder = "https://www.youtube.com/watch?v=..."
	input.CharLimit = 2048
	input.Width = 60
	input.Focus()
	return promptModel{input: input}
}

func (m promptModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m promptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		if m.field == promptFieldURL {
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	switch keyMsg.String() {
	case "ctrl+c", "esc":
		m.aborted = true
		return m, tea.Quit
	case "tab", "down":
		return m.focus(m.field + 1), nil
	case "shift+tab", "up":
		return m.focus(m.field - 1), nil
	case "enter":
		if m.field < promptFieldCount-1 {
			if m.field == promptFieldURL && strings.TrimSpace(m.input.Value()) == "" {
				m.err = "URL is required"
				return m, nil
			}
			return m.focus(m.field + 1), nil
		}
		return m.submit()
	case "ctrl+s":
		return m.submit()
	}

	if m.field == promptFieldURL {
		m.err = ""
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m.updateChoice(keyMsg), nil
}

func (m promptModel) updateChoice(msg tea.KeyMsg) promptModel {
	switch m.field {
	case promptFieldQuality:
		switch msg.String() {
		case "left", "h":
			m.quality = (m.quality + len(qualityChoices) - 1) % len(qualityChoices)
		case "right", "l", " ", "space":
			m.quality = (m.quality + 1) % len(qualityChoices)
		}
	case promptFieldAudio:
		m.audioOnly = toggleBool(m.audioOnly, msg)
	case promptFieldVerbose:
		m.verbose = toggleBool(m.verbose, msg)
	}
	return m
}

func toggleBool(value bool, msg tea.KeyMsg) bool {
	switch msg.String() {
	case "y":
		return true
	case "n":
		return false
	case "left", "right", "h", "l", " ", "space":
		return !value
	}
	return value
}

func (m promptModel) focus(field promptField) promptModel {
	if field < 0 {
		field = promptFieldCount - 1
	}
	if field >= promptFieldCount {
		field = 0
	}
	m.field = field
	if field == promptFieldURL {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
	return m
}

func (m promptModel) submit() (tea.Model, tea.Cmd) {
	if strings.TrimSpace(m.input.Value()) == "" {
		m.err = "URL is required"
		return m.focus(promptFieldURL), nil
	}
	m.submitted = true
	return m, tea.Quit
}

// Request returns the collected answers as a submit request.
func (m promptModel) Request() api.SubmitRequest {
	return api.SubmitRequest{
		URL:       strings.TrimSpace(m.input.Value()),
		Quality:   qualityChoices[m.quality],
		AudioOnly: m.audioOnly,
		Verbose:   m.verbose,
	}
}

func (m promptModel) View() string {
	var b strings.Builder
	b.WriteString(promptTitleStyle.Render("yayd: new download"))
	b.WriteString("\n\n")

	b.WriteString(m.label(promptFieldURL, "Video or playlist URL"))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	options := make([]string, len(qualityChoices))
	for i, choice := range qualityChoices {
		text := choice
		if choice != "best" {
			text += "p"
		}
		if i == m.quality {
			options[i] = promptSelStyle.Render(" " + text + " ")
		} else {
			options[i] = " " + text + " "
		}
	}
	b.WriteString(m.label(promptFieldQuality, "Quality"))
	b.WriteString("  " + strings.Join(options, " "))
	b.WriteString("\n")
	b.WriteString(m.label(promptFieldAudio, "Audio only"))
	b.WriteString("  " + yesNo(m.audioOnly))
	b.WriteString("\n")
	b.WriteString(m.label(promptFieldVerbose, "Verbose"))
	b.WriteString("  " + yesNo(m.verbose))
	b.WriteString("\n")

	if m.err != "" {
		b.WriteString("\n")
		b.WriteString(promptErrorStyle.Render(m.err))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(promptMutedStyle.Render("tab/arrows move · y/n toggle · enter next · ctrl+s start · esc quit"))
	return promptPanelStyle.Render(b.String()) + "\n"
}

func (m promptModel) label(field promptField, text string) string {
	if m.field == field {
		return promptTitleStyle.Render("› " + text)
	}
	return promptMutedStyle.Render("  " + text)
}

type jobUpdateMsg api.JobStatus

type jobDoneMsg struct {
	job api.JobStatus
	err error
}

// downloadModel renders a running job until it reaches a terminal state.
type downloadModel struct {
	bar     progress.Model
	job     api.JobStatus
	cancel  func()
	stopped bool

	done bool
	err  error
}

func newDownloadModel(cancel func()) downloadModel {
	return downloadModel{
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		cancel: cancel,
	}
}

func (m downloadModel) Init() tea.Cmd {
	return nil
}

func (m downloadModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case jobUpdateMsg:
		m.job = api.JobStatus(msg)
		return m, nil
	case jobDoneMsg:
		m.job = msg.job
		m.err = msg.err
		m.done = true
		return m, tea.Quit
	case tea.WindowSizeMsg:
		if width := msg.Width - 10; width > 10 && width < 60 {
			m.bar.Width = width
		}
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			if !m.stopped && m.cancel != nil {
				m.cancel()
			}
			m.stopped = true
		}
	}
	return m, nil
}

func (m downloadModel) View() string {
	var b strings.Builder
	name := jobDisplayName(m.job)
	if name == "" {
		name = "Starting download"
	}
	b.WriteString(promptTitleStyle.Render(truncate(name, 70)))
	b.WriteString("\n")
	b.WriteString(m.bar.ViewAs(m.job.Progress / 100))
	b.WriteString("\n")

	// Collection status messages already carry the "[i/n]" item prefix.
	b.WriteString(promptMutedStyle.Render(m.job.Status))
	b.WriteString("\n")

	switch {
	case m.done:
		b.WriteString(m.summary())
		b.WriteString("\n")
	case m.stopped:
		b.WriteString(promptMutedStyle.Render("Cancelling..."))
		b.WriteString("\n")
	default:
		b.WriteString(promptMutedStyle.Render("ctrl+c cancel"))
		b.WriteString("\n")
	}
	return b.String()
}

func (m downloadModel) summary() string {
	if m.err != nil {
		return promptErrorStyle.Render("Error: " + m.err.Error())
	}
	switch m.job.State {
	case "completed":
		if m.job.OutputPath != "" {
			return promptOKStyle.Render("Download completed: " + m.job.OutputPath)
		}
		return promptOKStyle.Render("Download completed")
	case "cancelled":
		return promptMutedStyle.Render("Download cancelled")
	default:
		return promptErrorStyle.Render("Download failed: " + m.job.Error)
	}
}
