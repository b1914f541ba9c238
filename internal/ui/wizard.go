package ui

import (
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/blocksmith-dev/blocksmith/internal/models"
)

// WizardResult is what the create wizard collects.
type WizardResult struct {
	Kind        models.ResourceKind
	Name        string
	DisplayName string
	Category    string
	Description string
	Accepted    bool
}

var nameRe = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

const (
	stepKind = iota
	stepName
	stepDisplayName
	stepCategory
	stepDescription
	stepDone
)

type wizardModel struct {
	step      int
	kindIndex int
	inputs    []textinput.Model
	errMsg    string
	result    WizardResult
}

func newWizardModel() wizardModel {
	mk := func(placeholder string, limit int) textinput.Model {
		ti := textinput.New()
		ti.Placeholder = placeholder
		ti.CharLimit = limit
		ti.Width = 40
		return ti
	}
	inputs := []textinput.Model{
		mk("my-hero-banner", 64),
		mk("My Hero Banner", 80),
		mk("marketing", 40),
		mk("A large hero section with a heading and CTA", 160),
	}
	return wizardModel{inputs: inputs}
}

func (m wizardModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m wizardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m.updateInput(msg)
	}

	switch keyMsg.String() {
	case "ctrl+c", "esc":
		m.result.Accepted = false
		m.step = stepDone
		return m, tea.Quit

	case "up", "down", "tab":
		if m.step == stepKind {
			m.kindIndex = 1 - m.kindIndex
			return m, nil
		}

	case "enter":
		return m.advance()
	}
	return m.updateInput(msg)
}

func (m wizardModel) updateInput(msg tea.Msg) (tea.Model, tea.Cmd) {
	idx := m.step - stepName
	if idx < 0 || idx >= len(m.inputs) {
		return m, nil
	}
	var cmd tea.Cmd
	m.inputs[idx], cmd = m.inputs[idx].Update(msg)
	return m, cmd
}

func (m wizardModel) advance() (tea.Model, tea.Cmd) {
	m.errMsg = ""
	switch m.step {
	case stepKind:
		if m.kindIndex == 0 {
			m.result.Kind = models.KindBlock
		} else {
			m.result.Kind = models.KindTemplate
		}

	case stepName:
		name := strings.TrimSpace(m.inputs[0].Value())
		if !nameRe.MatchString(name) {
			m.errMsg = "names are lowercase words separated by hyphens, like hero-banner"
			return m, nil
		}
		m.result.Name = name
		// Pre-fill the display name from the directory form.
		if m.inputs[1].Value() == "" {
			m.inputs[1].SetValue(models.DisplayNameFromDir(name))
		}

	case stepDisplayName:
		m.result.DisplayName = strings.TrimSpace(m.inputs[1].Value())

	case stepCategory:
		m.result.Category = strings.TrimSpace(m.inputs[2].Value())

	case stepDescription:
		m.result.Description = strings.TrimSpace(m.inputs[3].Value())
		m.result.Accepted = true
		m.step = stepDone
		return m, tea.Quit
	}

	m.step++
	idx := m.step - stepName
	if idx >= 0 && idx < len(m.inputs) {
		for i := range m.inputs {
			m.inputs[i].Blur()
		}
		m.inputs[idx].Focus()
	}
	return m, textinput.Blink
}

func (m wizardModel) View() string {
	if m.step == stepDone {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Create a new resource"))
	b.WriteString("\n")

	switch m.step {
	case stepKind:
		b.WriteString(labelStyle.Render("What kind of resource?"))
		b.WriteString("\n\n")
		for i, kind := range []string{"block", "template"} {
			cursor := "  "
			line := kind
			if i == m.kindIndex {
				cursor = "> "
				line = selectedStyle.Render(line)
			} else {
				line = dimStyle.Render(line)
			}
			b.WriteString(cursor + line + "\n")
		}

	case stepName:
		b.WriteString(labelStyle.Render("Directory name"))
		b.WriteString("\n\n" + m.inputs[0].View() + "\n")

	case stepDisplayName:
		b.WriteString(labelStyle.Render("Display name"))
		b.WriteString("\n\n" + m.inputs[1].View() + "\n")

	case stepCategory:
		b.WriteString(labelStyle.Render("Category (optional)"))
		b.WriteString("\n\n" + m.inputs[2].View() + "\n")

	case stepDescription:
		b.WriteString(labelStyle.Render("Description (optional)"))
		b.WriteString("\n\n" + m.inputs[3].View() + "\n")
	}

	if m.errMsg != "" {
		b.WriteString(errStyle.Render(m.errMsg) + "\n")
	}
	b.WriteString(helpStyle.Render("enter continue · esc cancel"))
	return b.String()
}

// RunWizard runs the interactive create wizard and returns what the user
// entered. A cancelled wizard returns Accepted=false, not an error.
func RunWizard() (*WizardResult, error) {
	final, err := tea.NewProgram(newWizardModel()).Run()
	if err != nil {
		return nil, err
	}
	m, ok := final.(wizardModel)
	if !ok {
		return &WizardResult{}, nil
	}
	return &m.result, nil
}
