package reviewctl

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/polymorphcorp/profilegpt/internal/domain"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")).Padding(0, 1)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).MarginTop(1)
)

type requestsMsg struct {
	requests []domain.ExtensionRequest
	err      error
}

type decisionMsg struct {
	requestID string
	action    string
	err       error
}

// Model is the interactive review loop over pending extension requests.
type Model struct {
	client  *Client
	grant   int
	cursor  int
	pending []domain.ExtensionRequest
	status  string
	loading bool
}

func NewModel(client *Client, defaultGrant int) Model {
	if defaultGrant <= 0 {
		defaultGrant = 10
	}
	return Model{client: client, grant: defaultGrant, loading: true}
}

func (m Model) Init() tea.Cmd {
	return m.refresh()
}

func (m Model) refresh() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		requests, err := client.ListPending(context.Background())
		return requestsMsg{requests: requests, err: err}
	}
}

func (m Model) decide(action, requestID string) tea.Cmd {
	client := m.client
	grant := m.grant
	return func() tea.Msg {
		var err error
		if action == "approve" {
			err = client.Approve(context.Background(), requestID, grant)
		} else {
			err = client.Deny(context.Background(), requestID)
		}
		return decisionMsg{requestID: requestID, action: action, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case requestsMsg:
		m.loading = false
		if msg.err != nil {
			m.status = errStyle.Render("load failed: " + msg.err.Error())
			return m, nil
		}
		m.pending = msg.requests
		if m.cursor >= len(m.pending) {
			m.cursor = len(m.pending) - 1
		}
		if m.cursor < 0 {
			m.cursor = 0
		}
		return m, nil

	case decisionMsg:
		if msg.err != nil {
			m.status = errStyle.Render(fmt.Sprintf("%s %s failed: %v", msg.action, msg.requestID, msg.err))
			return m, nil
		}
		m.status = okStyle.Render(fmt.Sprintf("%s %s", pastTense(msg.action), msg.requestID))
		m.loading = true
		return m, m.refresh()

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.pending)-1 {
				m.cursor++
			}
		case "+":
			m.grant++
		case "-":
			if m.grant > 1 {
				m.grant--
			}
		case "r":
			m.loading = true
			return m, m.refresh()
		case "a":
			if len(m.pending) > 0 {
				return m, m.decide("approve", m.pending[m.cursor].RequestID)
			}
		case "d":
			if len(m.pending) > 0 {
				return m, m.decide("deny", m.pending[m.cursor].RequestID)
			}
		}
	}
	return m, nil
}

func pastTense(action string) string {
	if action == "deny" {
		return "denied"
	}
	return action + "d"
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Pending extension requests"))
	b.WriteString("\n\n")

	switch {
	case m.loading:
		b.WriteString(dimStyle.Render("loading..."))
	case len(m.pending) == 0:
		b.WriteString(dimStyle.Render("nothing pending"))
	default:
		for i, req := range m.pending {
			line := fmt.Sprintf("%-22s %-30s %s", req.RequestID, req.Email, req.Timestamp)
			if i == m.cursor {
				line = selectedStyle.Render("> " + line)
			} else {
				line = "  " + line
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(m.status)
	}
	b.WriteString(helpStyle.Render(fmt.Sprintf(
		"\na approve (+%d queries)  d deny  +/- adjust grant  r refresh  q quit", m.grant)))
	return b.String()
}
