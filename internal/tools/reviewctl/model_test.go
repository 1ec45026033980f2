package reviewctl

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/polymorphcorp/profilegpt/internal/domain"
)

func loadedModel(requests ...domain.ExtensionRequest) Model {
	m := NewModel(NewClient("http://localhost:5000", "key"), 5)
	next, _ := m.Update(requestsMsg{requests: requests})
	return next.(Model)
}

func TestModelShowsPendingRequests(t *testing.T) {
	m := loadedModel(
		domain.ExtensionRequest{RequestID: "abc12345_1", Email: "a@example.com"},
		domain.ExtensionRequest{RequestID: "def67890_2", Email: "b@example.com"},
	)
	view := m.View()
	if !strings.Contains(view, "abc12345_1") || !strings.Contains(view, "b@example.com") {
		t.Fatalf("view missing requests:\n%s", view)
	}
}

func TestModelCursorStaysInBounds(t *testing.T) {
	m := loadedModel(
		domain.ExtensionRequest{RequestID: "r1"},
		domain.ExtensionRequest{RequestID: "r2"},
	)
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m = next.(Model)
	if m.cursor != 0 {
		t.Fatalf("cursor went above 0: %d", m.cursor)
	}
	for i := 0; i < 5; i++ {
		next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
		m = next.(Model)
	}
	if m.cursor != 1 {
		t.Fatalf("cursor out of bounds: %d", m.cursor)
	}
}

func TestModelGrantAdjustment(t *testing.T) {
	m := loadedModel()
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'+'}})
	m = next.(Model)
	if m.grant != 6 {
		t.Fatalf("grant = %d, want 6", m.grant)
	}
	for i := 0; i < 10; i++ {
		next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'-'}})
		m = next.(Model)
	}
	if m.grant != 1 {
		t.Fatalf("grant floor = %d, want 1", m.grant)
	}
}

func TestModelDecisionStatusSpellsPastTense(t *testing.T) {
	m := loadedModel(domain.ExtensionRequest{RequestID: "r1"})

	next, _ := m.Update(decisionMsg{requestID: "r1", action: "deny"})
	m = next.(Model)
	if !strings.Contains(m.status, "denied r1") {
		t.Fatalf("deny status = %q", m.status)
	}

	next, _ = m.Update(decisionMsg{requestID: "r1", action: "approve"})
	m = next.(Model)
	if !strings.Contains(m.status, "approved r1") {
		t.Fatalf("approve status = %q", m.status)
	}
}

func TestModelEmptyListDecisionIsNoop(t *testing.T) {
	m := loadedModel()
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'a'}})
	if cmd != nil {
		t.Fatalf("approve with no pending requests should not issue a command")
	}
}
