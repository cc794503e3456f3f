package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kirillkom/book-qa/internal/core/domain"
	"github.com/kirillkom/book-qa/internal/core/ports"
)

type pane int

const (
	paneAnswer pane = iota
	paneHistory
)

type answerMsg struct {
	answer *domain.Answer
	err    error
}

type historyMsg struct {
	records []domain.QueryRecord
	err     error
}

type resetMsg struct {
	err error
}

// Model is the interactive question loop over one indexed book.
type Model struct {
	ctx      context.Context
	answerer ports.QuestionAnswerer
	resetter ports.SessionResetter

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	pane    pane
	last    *domain.Answer
	history []domain.QueryRecord
	status  string
	busy    bool
	ready   bool
}

// New creates the model. resetter may be nil, in which case ctrl+r is ignored.
func New(ctx context.Context, answerer ports.QuestionAnswerer, resetter ports.SessionResetter) Model {
	if ctx == nil {
		ctx = context.Background()
	}
	ti := textinput.New()
	ti.Prompt = "? "
	ti.Placeholder = "Ask a question about the book and press Enter"
	ti.Focus()
	ti.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		ctx:      ctx,
		answerer: answerer,
		resetter: resetter,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		status:   "Ready. tab: history  ctrl+r: reset  esc: quit",
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, frame := bodyStyle.GetFrameSize()
		reserved := 2 + 1 + 3 + frame // header, status, input box
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved)
		m.viewport.SetContent(m.render())
		return m, nil

	case answerMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			m.last = msg.answer
			m.pane = paneAnswer
			m.status = answerStatus(msg.answer)
		}
		m.viewport.SetContent(m.render())
		m.viewport.GotoTop()
		return m, nil

	case historyMsg:
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			m.history = msg.records
		}
		m.viewport.SetContent(m.render())
		return m, nil

	case resetMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Reset failed: " + msg.err.Error()
		} else {
			m.last = nil
			m.history = nil
			m.status = "Session reset. Convert and index a book to continue."
		}
		m.viewport.SetContent(m.render())
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyTab:
			if m.pane == paneAnswer {
				m.pane = paneHistory
				m.viewport.SetContent(m.render())
				return m, m.loadHistory()
			}
			m.pane = paneAnswer
			m.viewport.SetContent(m.render())
			return m, nil
		case tea.KeyCtrlR:
			if m.busy || m.resetter == nil {
				return m, nil
			}
			m.busy = true
			m.status = "Resetting session..."
			return m, tea.Batch(m.spinner.Tick, m.reset())
		case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		case tea.KeyEnter:
			question := strings.TrimSpace(m.input.Value())
			if question == "" || m.busy {
				return m, nil
			}
			m.busy = true
			m.input.SetValue("")
			m.status = fmt.Sprintf("Searching the book for %q", question)
			return m, tea.Batch(m.spinner.Tick, m.ask(question))
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	title := "Book QA"
	if m.pane == paneHistory {
		title += " / history"
	}
	header := headerStyle.Render(title)
	status := m.status
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	return header + "\n" +
		bodyStyle.Render(m.viewport.View()) + "\n" +
		inputStyle.Render(m.input.View()) + "\n" +
		statusStyle.Render(status)
}

func (m Model) ask(question string) tea.Cmd {
	ctx, answerer := m.ctx, m.answerer
	return func() tea.Msg {
		answer, err := answerer.Ask(ctx, question)
		return answerMsg{answer: answer, err: err}
	}
}

func (m Model) loadHistory() tea.Cmd {
	ctx, answerer := m.ctx, m.answerer
	return func() tea.Msg {
		records, err := answerer.History(ctx)
		return historyMsg{records: records, err: err}
	}
}

func (m Model) reset() tea.Cmd {
	ctx, resetter := m.ctx, m.resetter
	return func() tea.Msg {
		return resetMsg{err: resetter.Reset(ctx)}
	}
}

func (m Model) render() string {
	if m.pane == paneHistory {
		return renderHistory(m.history)
	}
	return renderAnswer(m.last)
}

func renderAnswer(answer *domain.Answer) string {
	if answer == nil {
		return mutedStyle.Render("No question asked yet.")
	}
	var b strings.Builder
	b.WriteString(questionStyle.Render(answer.Question))
	b.WriteString("\n\n")
	if answer.Matched {
		b.WriteString(answer.Text)
	} else {
		b.WriteString(noMatchStyle.Render(answer.Text))
	}
	if len(answer.Results) > 0 {
		b.WriteString("\n\n")
		b.WriteString(mutedStyle.Render("Sources"))
		for i, result := range answer.Results {
			fmt.Fprintf(&b, "\n  [%d] %s @%d  score=%.3f",
				i+1, result.Chunk.Source, result.Chunk.StartIndex, result.Score)
		}
	}
	return b.String()
}

func renderHistory(records []domain.QueryRecord) string {
	if len(records) == 0 {
		return mutedStyle.Render("History is empty.")
	}
	var b strings.Builder
	for i, record := range records {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "%s  %s\n",
			mutedStyle.Render(record.Timestamp.Format(time.DateTime)),
			questionStyle.Render(record.Question))
		b.WriteString(record.Answer)
	}
	return b.String()
}

func answerStatus(answer *domain.Answer) string {
	if answer == nil || !answer.Matched {
		return "No passage cleared the relevance threshold."
	}
	return fmt.Sprintf("Answered from %d passage(s).", len(answer.Results))
}

var (
	headerStyle   = lipgloss.NewStyle().Bold(true)
	bodyStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	questionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	noMatchStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)
