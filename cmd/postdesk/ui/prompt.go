package ui

import (
	"errors"
	"io"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// ErrCanceled is returned when the user aborts a prompt.
var ErrCanceled = errors.New("prompt canceled")

type secretModel struct {
	input    textinput.Model
	done     bool
	canceled bool
}

func newSecretModel(label string, styles Styles) secretModel {
	ti := textinput.New()
	ti.Prompt = label + ": "
	ti.PromptStyle = styles.Prompt
	ti.EchoMode = textinput.EchoPassword
	ti.EchoCharacter = '•'
	ti.CharLimit = 256
	ti.Focus()
	return secretModel{input: ti}
}

func (m secretModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m secretModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyEnter:
			m.done = true
			return m, tea.Quit
		case tea.KeyCtrlC, tea.KeyEsc:
			m.canceled = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m secretModel) View() string {
	if m.done || m.canceled {
		return ""
	}
	return m.input.View() + "\n"
}

// PromptSecret reads a line without echoing it.
func PromptSecret(label string, in io.Reader, out io.Writer, styles Styles) (string, error) {
	final, err := tea.NewProgram(newSecretModel(label, styles), tea.WithInput(in), tea.WithOutput(out)).Run()
	if err != nil {
		return "", err
	}
	m := final.(secretModel)
	if m.canceled {
		return "", ErrCanceled
	}
	return m.input.Value(), nil
}
