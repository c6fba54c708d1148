package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/pflag"

	"github.com/apresai/narrator/internal/config"
)

// menuItem is one editable setting in the wizard. The input item has an
// empty key.
type menuItem struct {
	key      string
	flag     string
	group    string
	label    string
	help     string
	value    string
	initial  string
	options  []menuOption
	secret   bool
	required bool
	editing  bool
	cursor   int // cursor within options when editing
}

type menuOption struct {
	label string
	value string
}

func (it menuItem) isText() bool { return len(it.options) == 0 }

type menuState int

const (
	stateMenu menuState = iota
	stateEditing
)

// wizardModel is the Bubble Tea model for the setup wizard.
type wizardModel struct {
	title     string
	items     []menuItem
	cursor    int // index into items; always a visible item or the start button
	state     menuState
	height    int
	err       error
	confirmed bool
	cancelled bool
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4")).
			MarginBottom(1)

	menuLabelStyle = lipgloss.NewStyle().
			Width(26).
			Align(lipgloss.Right).
			MarginRight(2)

	menuValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575"))

	menuValueDimStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#555555")).
				Italic(true)

	groupStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			PaddingLeft(2)

	cursorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true)

	requiredStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555")).
			Bold(true)

	optionStyle = lipgloss.NewStyle().
			PaddingLeft(4)

	selectedOptionStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#04B575")).
				Bold(true).
				PaddingLeft(2)

	buttonStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 3)

	buttonDimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#555555")).
			Padding(0, 3)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			MarginTop(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555")).
			Bold(true)

	headerBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("#7D56F4")).
			MarginBottom(1).
			PaddingBottom(0)
)

// buildMenuItems creates one item per setting of scope, seeded with the
// current flag values so defaults, env and flags all show through.
func buildMenuItems(fs *pflag.FlagSet, scope config.Scope, input string) []menuItem {
	items := []menuItem{{label: "Input", help: "Text file, PDF, or URL", value: input, initial: input, required: true}}
	for _, d := range config.Definitions(scope) {
		value := fmt.Sprint(d.Default)
		if f := fs.Lookup(d.Flag()); f != nil {
			value = f.Value.String()
		}
		it := menuItem{
			key:     d.Key,
			flag:    d.Flag(),
			group:   d.Group,
			label:   d.Key,
			help:    d.Help,
			value:   value,
			initial: value,
			secret:  d.Secret,
		}
		switch {
		case len(d.Choices) > 0:
			for _, c := range d.Choices {
				it.options = append(it.options, menuOption{label: c, value: c})
			}
		case isBool(d.Default):
			it.options = []menuOption{{label: "true", value: "true"}, {label: "false", value: "false"}}
		}
		for i, o := range it.options {
			if strings.EqualFold(o.value, value) {
				it.cursor = i
			}
		}
		items = append(items, it)
	}
	return items
}

func isBool(v any) bool {
	_, ok := v.(bool)
	return ok
}

func newWizardModel(fs *pflag.FlagSet, scope config.Scope, input string) wizardModel {
	title := "narrator: speech"
	if scope == config.ScopeTranslate {
		title = "narrator: translation"
	}
	return wizardModel{title: title, items: buildMenuItems(fs, scope, input), height: 40}
}

func (m wizardModel) startIdx() int { return len(m.items) }

func (m wizardModel) valueOf(key string) string {
	for _, it := range m.items {
		if it.key == key {
			return it.value
		}
	}
	return ""
}

// visible hides the settings of engines other than the selected ones.
func (m wizardModel) visible(i int) bool {
	if i >= len(m.items) {
		return true
	}
	g := m.items[i].group
	if !strings.HasSuffix(g, " engine") || g == config.GroupSpeech {
		return true
	}
	engine := strings.TrimSuffix(g, " engine")
	return strings.EqualFold(engine, m.valueOf("TTS_ENGINE"))
}

func (m wizardModel) step(dir int) int {
	for i := m.cursor + dir; i >= 0 && i <= m.startIdx(); i += dir {
		if m.visible(i) {
			return i
		}
	}
	return m.cursor
}

func (m wizardModel) Init() tea.Cmd {
	return nil
}

func (m wizardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch m.state {
		case stateMenu:
			return m.updateMenu(msg)
		case stateEditing:
			return m.updateEditing(msg)
		}
	}
	return m, nil
}

func (m wizardModel) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		m.cancelled = true
		return m, tea.Quit

	case "up", "k":
		m.cursor = m.step(-1)

	case "down", "j":
		m.cursor = m.step(1)

	case "enter", " ":
		if m.cursor == m.startIdx() {
			if strings.TrimSpace(m.items[0].value) == "" {
				m.err = fmt.Errorf("Input is required")
				return m, nil
			}
			m.confirmed = true
			return m, tea.Quit
		}
		m.state = stateEditing
		m.items[m.cursor].editing = true
		m.err = nil
	}
	return m, nil
}

func (m wizardModel) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	item := &m.items[m.cursor]

	if item.isText() {
		switch msg.String() {
		case "enter":
			item.editing = false
			m.state = stateMenu
			m.cursor = m.step(1)
		case "esc":
			item.editing = false
			m.state = stateMenu
		case "backspace":
			if r := []rune(item.value); len(r) > 0 {
				item.value = string(r[:len(r)-1])
			}
		case "ctrl+u":
			item.value = ""
		default:
			// Accept typed characters and pasted text
			if msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace {
				item.value += string(msg.Runes)
				if msg.Type == tea.KeySpace && len(msg.Runes) == 0 {
					item.value += " "
				}
			}
		}
		return m, nil
	}

	switch msg.String() {
	case "enter", " ":
		item.value = item.options[item.cursor].value
		item.editing = false
		m.state = stateMenu
		m.cursor = m.step(1)

	case "esc":
		item.editing = false
		m.state = stateMenu

	case "up", "k":
		if item.cursor > 0 {
			item.cursor--
		}

	case "down", "j":
		if item.cursor < len(item.options)-1 {
			item.cursor++
		}
	}
	return m, nil
}

func (m wizardModel) View() string {
	var b strings.Builder

	b.WriteString(headerBorder.Render(titleStyle.Render(m.title)))
	b.WriteString("\n")

	// Only a window of rows around the cursor fits on screen.
	rows := max(m.height-10, 5)
	var visible []int
	for i := range m.items {
		if m.visible(i) {
			visible = append(visible, i)
		}
	}
	first := 0
	for pos, i := range visible {
		if i == m.cursor && pos >= rows {
			first = pos - rows + 1
		}
	}
	last := min(first+rows, len(visible))

	group := ""
	for _, i := range visible[first:last] {
		item := m.items[i]
		if item.group != group && item.group != "" {
			group = item.group
			b.WriteString(groupStyle.Render("# "+group) + "\n")
		}

		cursor := "  "
		if m.cursor == i {
			cursor = cursorStyle.Render("> ")
		}

		label := item.label
		if item.required {
			label += requiredStyle.Render("*")
		}

		var value string
		switch {
		case item.editing && item.isText():
			value = menuValueStyle.Render(item.value + "_")
		case item.value == "":
			value = menuValueDimStyle.Render("(not set)")
		case item.secret:
			value = menuValueStyle.Render(strings.Repeat("*", min(len(item.value), 12)))
		default:
			value = menuValueStyle.Render(item.value)
		}
		b.WriteString(cursor + menuLabelStyle.Render(label) + " " + value + "\n")

		if item.editing && !item.isText() {
			for j, opt := range item.options {
				if j == item.cursor {
					b.WriteString(selectedOptionStyle.Render("> "+opt.label) + "\n")
				} else {
					b.WriteString(optionStyle.Render("  "+opt.label) + "\n")
				}
			}
		}
	}

	b.WriteString("\n")
	if m.cursor == m.startIdx() {
		b.WriteString("  " + buttonStyle.Render(" Start ") + "\n")
	} else {
		b.WriteString("  " + buttonDimStyle.Render(" Start ") + "\n")
		if m.cursor < len(m.items) {
			b.WriteString(helpStyle.Render("  "+m.items[m.cursor].help) + "\n")
		}
	}

	if m.err != nil {
		b.WriteString("\n" + errorStyle.Render("  Error: "+m.err.Error()) + "\n")
	}

	switch m.state {
	case stateMenu:
		b.WriteString(helpStyle.Render("  j/k or arrows to navigate | enter to edit | q to quit"))
	case stateEditing:
		if m.items[m.cursor].isText() {
			b.WriteString(helpStyle.Render("  type value | enter to confirm | esc to cancel | ctrl+u to clear"))
		} else {
			b.WriteString(helpStyle.Render("  j/k or arrows to pick | enter to select | esc to cancel"))
		}
	}
	b.WriteString("\n")

	return b.String()
}

// apply sets every changed setting as a flag so it takes precedence over
// env files, and returns the chosen input.
func (m wizardModel) apply(fs *pflag.FlagSet) (string, error) {
	for _, it := range m.items[1:] {
		if it.value == it.initial {
			continue
		}
		if err := fs.Set(it.flag, it.value); err != nil {
			return "", fmt.Errorf("%s: %w", it.key, err)
		}
	}
	return strings.TrimSpace(m.items[0].value), nil
}

func runWizard(fs *pflag.FlagSet, scope config.Scope, input string) (string, error) {
	p := tea.NewProgram(newWizardModel(fs, scope, input), tea.WithAltScreen())
	result, err := p.Run()
	if err != nil {
		return "", fmt.Errorf("TUI error: %w", err)
	}

	final := result.(wizardModel)
	if final.cancelled || !final.confirmed {
		return "", fmt.Errorf("cancelled")
	}
	return final.apply(fs)
}
