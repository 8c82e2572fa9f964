package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/harshul/bbdev-cli/internal/catalog"
)

// ErrPromptCancelled is returned when the user aborts a prompt with esc or ctrl+c
var ErrPromptCancelled = errors.New("prompt cancelled")

// ============================================================================
// Yes/No Prompt
// ============================================================================

type YesNoPrompt struct {
	question    string
	description string
	selected    bool // true = Yes
	confirmed   bool
	cancelled   bool
}

func NewYesNoPrompt(question, description string, defaultYes bool) YesNoPrompt {
	return YesNoPrompt{question: question, description: description, selected: defaultYes}
}

func (m YesNoPrompt) Init() tea.Cmd {
	return nil
}

func (m YesNoPrompt) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "left", "h", "y", "Y":
			m.selected = true
		case "right", "l", "n", "N":
			m.selected = false
		case "tab":
			m.selected = !m.selected
		case "enter":
			m.confirmed = true
			return m, tea.Quit
		case "ctrl+c", "esc", "q":
			m.cancelled = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m YesNoPrompt) View() string {
	var b strings.Builder
	writePromptTitle(&b, m.question, m.description)

	yes, no := labelStyle.Render("Yes"), labelStyle.Render("No")
	yesCursor, noCursor := "  ", "  "
	if m.selected {
		yes = pickedStyle.Render("Yes")
		yesCursor = cursorStyle.Render("❯ ")
	} else {
		no = pickedStyle.Render("No")
		noCursor = cursorStyle.Render("❯ ")
	}

	b.WriteString("\n" + yesCursor + yes + "    " + noCursor + no + "\n\n")
	b.WriteString(dimStyle.Render("  ← → to select • enter to confirm • esc to cancel"))
	return b.String()
}

// Result returns the selected value and whether it was confirmed
func (m YesNoPrompt) Result() (bool, bool) {
	return m.selected, m.confirmed && !m.cancelled
}

// ============================================================================
// List Selection Prompt
// ============================================================================

type SelectOption struct {
	Label       string
	Value       string
	Description string
}

type SelectPrompt struct {
	title       string
	description string
	options     []SelectOption
	cursor      int
	confirmed   bool
	cancelled   bool
}

// NewSelectPrompt starts with the cursor on the option whose Value is
// initial, or on the first option.
func NewSelectPrompt(title, description string, options []SelectOption, initial string) SelectPrompt {
	m := SelectPrompt{title: title, description: description, options: options}
	for i, opt := range options {
		if opt.Value == initial {
			m.cursor = i
			break
		}
	}
	return m
}

func (m SelectPrompt) Init() tea.Cmd {
	return nil
}

func (m SelectPrompt) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.options)-1 {
				m.cursor++
			}
		case "enter":
			m.confirmed = true
			return m, tea.Quit
		case "ctrl+c", "esc", "q":
			m.cancelled = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m SelectPrompt) View() string {
	var b strings.Builder
	writePromptTitle(&b, m.title, m.description)
	b.WriteString("\n")

	for i, opt := range m.options {
		cursor, style := "  ", labelStyle
		if i == m.cursor {
			cursor, style = cursorStyle.Render("❯ "), pickedStyle
		}
		b.WriteString(cursor + style.Render(opt.Label))
		if opt.Description != "" && i == m.cursor {
			b.WriteString(dimStyle.Render(" - " + opt.Description))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n" + dimStyle.Render("  ↑ ↓ to navigate • enter to select • esc to cancel"))
	return b.String()
}

func (m SelectPrompt) Result() (SelectOption, bool) {
	if m.cursor < 0 || m.cursor >= len(m.options) {
		return SelectOption{}, false
	}
	return m.options[m.cursor], m.confirmed && !m.cancelled
}

// ============================================================================
// Text Input Prompt
// ============================================================================

type TextInputPrompt struct {
	title       string
	description string
	defaultVal  string
	input       textinput.Model
	confirmed   bool
	cancelled   bool
}

func NewTextInputPrompt(title, description, placeholder, defaultVal string) TextInputPrompt {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Focus()
	ti.CharLimit = 256
	ti.Width = 50

	return TextInputPrompt{
		title:       title,
		description: description,
		defaultVal:  defaultVal,
		input:       ti,
	}
}

func (m TextInputPrompt) Init() tea.Cmd {
	return textinput.Blink
}

func (m TextInputPrompt) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "enter":
			m.confirmed = true
			return m, tea.Quit
		case "ctrl+c", "esc":
			m.cancelled = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m TextInputPrompt) View() string {
	var b strings.Builder
	writePromptTitle(&b, m.title, m.description)

	b.WriteString("\n  " + m.input.View() + "\n")
	if m.defaultVal != "" && m.input.Value() == "" {
		b.WriteString(dimStyle.Render("  Press enter to use: "+m.defaultVal) + "\n")
	}
	b.WriteString("\n" + dimStyle.Render("  enter to confirm • esc to cancel"))
	return b.String()
}

// Result returns the entered value, falling back to the default when empty
func (m TextInputPrompt) Result() (string, bool) {
	value := m.input.Value()
	if value == "" {
		value = m.defaultVal
	}
	return value, m.confirmed && !m.cancelled
}

func writePromptTitle(b *strings.Builder, title, description string) {
	b.WriteString(titleStyle.Render("? "+title) + "\n")
	if description != "" {
		b.WriteString(dimStyle.Render("  "+description) + "\n")
	}
}

// ============================================================================
// Prompter
// ============================================================================

// Prompter asks the user for values
type Prompter interface {
	Confirm(question, description string, defaultYes bool) (bool, error)
	Select(title, description string, options []SelectOption, initial string) (SelectOption, error)
	Text(title, description, placeholder, defaultVal string) (string, error)
}

// TeaPrompter runs each prompt as a bubbletea program on the terminal
type TeaPrompter struct {
	ProgramOptions []tea.ProgramOption
}

func (p TeaPrompter) run(model tea.Model) (tea.Model, error) {
	return tea.NewProgram(model, p.ProgramOptions...).Run()
}

func (p TeaPrompter) Confirm(question, description string, defaultYes bool) (bool, error) {
	model, err := p.run(NewYesNoPrompt(question, description, defaultYes))
	if err != nil {
		return false, err
	}
	selected, ok := model.(YesNoPrompt).Result()
	if !ok {
		return false, ErrPromptCancelled
	}
	return selected, nil
}

func (p TeaPrompter) Select(title, description string, options []SelectOption, initial string) (SelectOption, error) {
	model, err := p.run(NewSelectPrompt(title, description, options, initial))
	if err != nil {
		return SelectOption{}, err
	}
	selected, ok := model.(SelectPrompt).Result()
	if !ok {
		return SelectOption{}, ErrPromptCancelled
	}
	return selected, nil
}

func (p TeaPrompter) Text(title, description, placeholder, defaultVal string) (string, error) {
	model, err := p.run(NewTextInputPrompt(title, description, placeholder, defaultVal))
	if err != nil {
		return "", err
	}
	value, ok := model.(TextInputPrompt).Result()
	if !ok {
		return "", ErrPromptCancelled
	}
	return value, nil
}

// PromptArguments asks for every argument of def that is not already in
// given. Values come back parsed to the argument's type; an empty answer for
// an optional argument leaves it unset.
func PromptArguments(p Prompter, def catalog.OperationDefinition, given map[string]any) (map[string]any, error) {
	values := make(map[string]any, len(def.Arguments))
	for k, v := range given {
		values[k] = v
	}

	for _, arg := range def.Arguments {
		if _, ok := values[arg.Name]; ok {
			continue
		}
		title := arg.Name
		if arg.Required {
			title += " (required)"
		}

		switch arg.Type {
		case catalog.TypeBoolean:
			defaultYes, _ := arg.Default.(bool)
			yes, err := p.Confirm(title, arg.Description, defaultYes)
			if err != nil {
				return nil, err
			}
			values[arg.Name] = yes

		case catalog.TypeChoice:
			options := make([]SelectOption, 0, len(arg.Choices))
			for _, c := range arg.Choices {
				options = append(options, SelectOption{Label: c, Value: c})
			}
			picked, err := p.Select(title, arg.Description, options, defaultString(arg.Default))
			if err != nil {
				return nil, err
			}
			values[arg.Name] = picked.Value

		default:
			raw, err := p.Text(title, arg.Description, string(arg.Type), defaultString(arg.Default))
			if err != nil {
				return nil, err
			}
			if raw == "" {
				continue
			}
			v, err := arg.Parse(raw)
			if err != nil {
				return nil, err
			}
			values[arg.Name] = v
		}
	}
	return values, nil
}

func defaultString(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
