// Package tui is the interactive terminal front end: type a question, page
// through the most relevant chunks.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ragcore/internal/chunker"
	"ragcore/internal/domain"
	"ragcore/internal/textutil"
)

// Searcher is the TUI-facing subset of the retrieval pipeline.
type Searcher interface {
	Search(ctx context.Context, query string) ([]domain.Chunk, error)
}

// SearchFunc adapts a function to Searcher.
type SearchFunc func(ctx context.Context, query string) ([]domain.Chunk, error)

func (f SearchFunc) Search(ctx context.Context, query string) ([]domain.Chunk, error) {
	return f(ctx, query)
}

type searchDoneMsg struct {
	query   string
	results []domain.Chunk
	err     error
}

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	ctx       context.Context
	searcher  Searcher
	input     textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model
	results   []domain.Chunk
	title     string
	summary   string
	status    string
	cursor    int
	ready     bool
	searching bool
	lastQuery string
}

// New creates a new TUI model instance. ctx bounds every search it runs.
func New(ctx context.Context, searcher Searcher, title, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type query and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	return Model{
		ctx:      ctx,
		searcher: searcher,
		input:    ti,
		viewport: vp,
		spinner:  sp,
		title:    title,
		summary:  summary,
		status:   "Loaded. Type to search.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around result and query boxes
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header + summary, status, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		m.viewport.SetContent(m.renderCurrentResult())
		return m, nil
	case searchDoneMsg:
		m.searching = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.results = nil
		} else {
			m.status = fmt.Sprintf("%d results for %q", len(msg.results), msg.query)
			m.results = msg.results
			m.cursor = 0
			m.lastQuery = msg.query
		}
		m.viewport.SetContent(m.renderCurrentResult())
		return m, nil
	case spinner.TickMsg:
		if !m.searching {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" && !m.searching {
				m.searching = true
				m.status = fmt.Sprintf("Searching for %q", q)
				return m, tea.Batch(m.search(q), m.spinner.Tick)
			}
		case "down":
			if len(m.results) > 0 {
				m.cursor = (m.cursor + 1) % len(m.results)
				m.viewport.SetContent(m.renderCurrentResult())
				return m, nil
			}
		case "up":
			if len(m.results) > 0 {
				m.cursor = (m.cursor - 1 + len(m.results)) % len(m.results)
				m.viewport.SetContent(m.renderCurrentResult())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) search(q string) tea.Cmd {
	return func() tea.Msg {
		res, err := m.searcher.Search(m.ctx, q)
		return searchDoneMsg{query: q, results: res, err: err}
	}
}

// View renders the TUI layout and current result.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render(m.title)
	summary := summaryStyle.Render(m.summary)
	input := queryBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	if m.searching {
		status = m.spinner.View() + " " + status
	}
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderCurrentResult() string {
	if len(m.results) == 0 {
		return "No results yet."
	}
	r := m.results[m.cursor]
	title := fmt.Sprintf("Result %d/%d  chunk #%d", m.cursor+1, len(m.results), r.Index+1)
	body := highlightBestSentence(r.Text, m.lastQuery)
	return title + "\n\n" + body
}

var (
	headerStyle    = lipgloss.NewStyle().Bold(true)
	summaryStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)

// highlightBestSentence emphasises the sentence sharing the most words with
// query. Ties go to the earliest sentence.
func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := chunker.Sentences(text)
	qTokens := textutil.WordSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx, bestScore := 0, -1
	for i, s := range sentences {
		if score := textutil.Overlap(qTokens, s); score > bestScore {
			bestIdx, bestScore = i, score
		}
	}
	out := make([]string, len(sentences))
	for i, s := range sentences {
		if i == bestIdx {
			s = highlightStyle.Render(s)
		}
		out[i] = s
	}
	return strings.Join(out, " ")
}
