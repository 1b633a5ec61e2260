// Package repl implements the Read-Eval-Print Loop for the weave scripting
// language.
//
// The REPL provides an interactive interface for users to enter weave code,
// have it compiled and executed, and see the result immediately. It uses
// the Charm libraries (Bubbletea, Bubbles, and Lipgloss) to create a modern
// terminal interface with syntax highlighting and command history.
package repl

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dr8co/weave/compiler"
	"github.com/dr8co/weave/lexer"
	"github.com/dr8co/weave/state"
	"github.com/dr8co/weave/stdlib"
	"github.com/dr8co/weave/token"
)

const (
	// Prompt is the default prompt for the REPL.
	Prompt = ">> "

	// ContPrompt is the continuation prompt used in multiline input mode.
	ContPrompt = ".. "
)

// Options configures the REPL's behavior.
type Options struct {
	NoColor bool // Disable syntax highlighting and colored output
	Debug   bool // Print timing breakdowns for each evaluation
}

// Start initializes and runs the REPL with the given username and options.
func Start(username string, options Options) {
	p := tea.NewProgram(initialModel(username, options))
	if _, err := p.Run(); err != nil {
		fmt.Println("Error running program:", err)
	}
}

// Styling
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true)

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F87"))

	parseErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F87")).
			Bold(true)

	runtimeErrorStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FF8700")).
				Bold(true)

	historyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#767676"))

	keywordStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF79C6")).
			Bold(true)

	identifierStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F8F8F2"))

	literalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F1FA8C"))

	operatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555"))

	delimiterStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#BD93F9"))

	stringStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#50FA7B"))
)

// ErrorType distinguishes why an evaluation entry is an error.
type ErrorType int

const (
	NoError ErrorType = iota
	ParseError
	RuntimeError
)

// evalResultMsg carries the outcome of an asynchronous evaluation back to Update.
type evalResultMsg struct {
	output    string
	isError   bool
	errorType ErrorType
	elapsed   time.Duration
}

type historyEntry struct {
	input          string
	output         string
	isError        bool
	errorType      ErrorType
	evaluationTime time.Duration
}

// model is the REPL's Bubble Tea state: a persistent interpreter state
// shared across every evaluated input, plus the usual terminal UI bits.
type model struct {
	textInput       textinput.Model
	history         []historyEntry
	st              *state.State
	username        string
	evaluating      bool
	currentInput    string
	multilineBuffer string
	isMultiline     bool
	spinner         spinner.Model
	options         Options
}

func (m model) applyStyle(style lipgloss.Style, text string) string {
	if m.options.NoColor {
		return text
	}
	return style.Render(text)
}

func initialModel(username string, options Options) model {
	ti := textinput.New()
	ti.Placeholder = "Enter weave code"
	ti.Focus()
	ti.Width = 80
	ti.Prompt = promptStyle.Render(Prompt)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF79C6"))

	st := state.New()
	stdlib.Register(st)

	return model{
		textInput: ti,
		history:   []historyEntry{},
		st:        st,
		username:  username,
		spinner:   s,
		options:   options,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// isBalanced checks if brackets, braces, and parentheses are balanced, so
// the REPL can detect when an input needs a continuation line.
func isBalanced(input string) bool {
	var stack []rune
	for _, char := range input {
		switch char {
		case '(', '{':
			stack = append(stack, char)
		case ')':
			if len(stack) == 0 || stack[len(stack)-1] != '(' {
				return false
			}
			stack = stack[:len(stack)-1]
		case '}':
			if len(stack) == 0 || stack[len(stack)-1] != '{' {
				return false
			}
			stack = stack[:len(stack)-1]
		}
	}
	return len(stack) == 0
}

// evalCmd compiles and runs input against st asynchronously, reporting the
// top-of-stack residual value (if any was left behind) as the result.
func evalCmd(input string, st *state.State, debug bool) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()

		bc, err := compiler.Compile(input)
		if err != nil {
			elapsed := time.Since(start)
			if debug {
				fmt.Printf("DEBUG: compile error: %v\n", err)
			}
			return evalResultMsg{
				output:    formatParseError(err),
				isError:   true,
				errorType: ParseError,
				elapsed:   elapsed,
			}
		}

		if debug {
			fmt.Printf("DEBUG: bytecode:\n%s\n", bc.String())
		}

		evalStart := time.Now()
		_, err = compiler.Execute(st, input)
		evalTime := time.Since(evalStart)
		if debug {
			fmt.Printf("DEBUG: eval time: %v\n", evalTime)
		}

		elapsed := time.Since(start)

		if err != nil {
			return evalResultMsg{
				output:    formatRuntimeError(err.Error()),
				isError:   true,
				errorType: RuntimeError,
				elapsed:   elapsed,
			}
		}

		residual := st.Peek()
		output := "nil"
		if residual != nil {
			output = residual.String()
		}

		return evalResultMsg{output: output, elapsed: elapsed}
	}
}

func (m model) formatError(style lipgloss.Style, entry *historyEntry, s *strings.Builder) {
	if m.options.NoColor {
		s.WriteString(entry.output)
	} else {
		s.WriteString(style.Render(entry.output))
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case spinner.TickMsg:
		if m.evaluating {
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}

	case evalResultMsg:
		m.evaluating = false
		m.history = append(m.history, historyEntry{
			input:          m.currentInput,
			output:         msg.output,
			isError:        msg.isError,
			errorType:      msg.errorType,
			evaluationTime: msg.elapsed,
		})
		m.currentInput = ""
		return m, nil

	case tea.KeyMsg:
		if m.evaluating && msg.Type != tea.KeyCtrlC {
			return m, m.spinner.Tick
		}

		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyCtrlD:
			return m, tea.Quit
		case tea.KeyEnter:
			input := m.textInput.Value()
			if input == "" {
				if m.isMultiline {
					if m.multilineBuffer == "" {
						m.isMultiline = false
						return m, nil
					}
					m.evaluating = true
					m.currentInput = m.multilineBuffer
					m.textInput.SetValue("")
					m.isMultiline = false
					buffer := m.multilineBuffer
					m.multilineBuffer = ""
					return m, evalCmd(buffer, m.st, m.options.Debug)
				}
				return m, nil
			}

			if m.isMultiline {
				m.multilineBuffer += "\n" + input
				m.textInput.SetValue("")
				if isBalanced(m.multilineBuffer) {
					m.evaluating = true
					m.currentInput = m.multilineBuffer
					m.isMultiline = false
					buffer := m.multilineBuffer
					m.multilineBuffer = ""
					return m, evalCmd(buffer, m.st, m.options.Debug)
				}
				return m, nil
			}

			if !isBalanced(input) {
				m.isMultiline = true
				m.multilineBuffer = input
				m.textInput.SetValue("")
				return m, nil
			}

			m.evaluating = true
			m.currentInput = input
			m.textInput.SetValue("")
			return m, evalCmd(input, m.st, m.options.Debug)
		}
	}

	if !m.evaluating {
		m.textInput, cmd = m.textInput.Update(msg)
	}
	if m.evaluating {
		return m, m.spinner.Tick
	}
	return m, cmd
}

func (m model) View() string {
	var s strings.Builder

	s.WriteString(m.applyStyle(titleStyle, " weave REPL "))
	s.WriteString("\n")

	if m.username != "" {
		s.WriteString(fmt.Sprintf("\nHello %s! Feel free to type in commands\n", m.username))
	}
	s.WriteString("\n")

	for _, entry := range m.history {
		lines := strings.Split(entry.input, "\n")
		for i, line := range lines {
			if i == 0 {
				s.WriteString(m.applyStyle(promptStyle, Prompt))
			} else {
				s.WriteString(m.applyStyle(promptStyle, ContPrompt))
			}
			s.WriteString(m.highlightCode(line))
			s.WriteString("\n")
		}

		if entry.isError {
			switch entry.errorType {
			case ParseError:
				m.formatError(parseErrorStyle, &entry, &s)
			case RuntimeError:
				m.formatError(runtimeErrorStyle, &entry, &s)
			default:
				m.formatError(errorStyle, &entry, &s)
			}
		} else if m.options.NoColor {
			s.WriteString(entry.output)
		} else {
			s.WriteString(resultStyle.Render(entry.output))
		}

		if entry.evaluationTime > 10*time.Millisecond {
			timeStr := fmt.Sprintf(" (%.2fs)", entry.evaluationTime.Seconds())
			s.WriteString(m.applyStyle(historyStyle, timeStr))
		}

		s.WriteString("\n\n")
	}

	if m.evaluating {
		s.WriteString(m.applyStyle(promptStyle, Prompt))
		s.WriteString(m.highlightCode(m.currentInput))
		s.WriteString("\n")
		s.WriteString(m.spinner.View())
		s.WriteString(" Evaluating...")
		s.WriteString("\n\n")
	}

	if m.isMultiline && !m.evaluating {
		s.WriteString(m.applyStyle(historyStyle, "Current multiline input:\n"))
		s.WriteString(m.highlightCode(m.multilineBuffer))
		s.WriteString("\n")
	}

	if !m.evaluating {
		if m.isMultiline {
			m.textInput.Prompt = m.applyStyle(promptStyle, ContPrompt)
		} else {
			m.textInput.Prompt = m.applyStyle(promptStyle, Prompt)
		}
		s.WriteString(m.textInput.View())
		s.WriteString("\n")
	}

	helpText := "\nPress Esc or Ctrl+C/D to exit"
	if m.isMultiline {
		helpText += " | Multiline mode: Enter empty line to evaluate or continue typing"
	} else {
		helpText += " | Multiline input supported for unbalanced brackets"
	}
	s.WriteString(m.applyStyle(historyStyle, helpText))

	return s.String()
}

func formatParseError(err error) string {
	var s strings.Builder
	s.WriteString("Parse error:\n  ")
	s.WriteString(err.Error())
	s.WriteString("\n")
	return s.String()
}

func formatRuntimeError(msg string) string {
	var s strings.Builder
	s.WriteString("Runtime error:\n  ")
	s.WriteString(msg)
	s.WriteString("\n")
	return s.String()
}

func isKeyword(t token.Token) bool {
	switch t.Type {
	case token.FUNCTION, token.TRUE, token.FALSE, token.NIL, token.IF, token.ELSEIF, token.ELSE,
		token.FOR, token.WHILE, token.LOOP, token.BREAK, token.CONTINUE, token.RETURN,
		token.AND, token.OR:
		return true
	default:
		return false
	}
}

func isOperator(t token.Token) bool {
	switch t.Type {
	case token.ASSIGN, token.PLUS, token.MINUS, token.BANG, token.ASTERISK, token.SLASH, token.PERCENT,
		token.LT, token.LTE, token.GT, token.GTE, token.EQ, token.NOT_EQ:
		return true
	default:
		return false
	}
}

func isDelimiter(t token.Token) bool {
	switch t.Type {
	case token.COMMA, token.COLON, token.SEMICOLON, token.DOT,
		token.LPAREN, token.RPAREN, token.LBRACE, token.RBRACE:
		return true
	default:
		return false
	}
}

func isOpenBrace(t token.Token) bool { return t.Type == token.LBRACE }

// highlightCode applies syntax highlighting to a single line or buffer of
// weave source, reconstructing whitespace with simple heuristics rather
// than reproducing it byte-for-byte (the REPL only ever echoes what the
// user just typed, so exact fidelity is not required).
func (m model) highlightCode(code string) string {
	l := lexer.New(code)
	var s strings.Builder

	var tokens []token.Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == token.EOF {
			break
		}
	}

	for i := 0; i < len(tokens)-1; i++ {
		tok := tokens[i]
		var prev token.Token
		if i > 0 {
			prev = tokens[i-1]
		}
		next := tokens[i+1]

		switch {
		case isKeyword(tok):
			s.WriteString(m.applyStyle(keywordStyle, tok.Literal))
		case tok.Type == token.IDENT:
			s.WriteString(m.applyStyle(identifierStyle, tok.Literal))
		case tok.Type == token.INT || tok.Type == token.FLOAT:
			s.WriteString(m.applyStyle(literalStyle, tok.Literal))
		case tok.Type == token.STRING:
			s.WriteString(m.applyStyle(stringStyle, "\""+tok.Literal+"\""))
		case isOperator(tok):
			s.WriteString(m.applyStyle(operatorStyle, tok.Literal))
		case isDelimiter(tok):
			s.WriteString(m.applyStyle(delimiterStyle, tok.Literal))
		default:
			s.WriteString(tok.Literal)
		}

		if needsTrailingSpace(tok, next, prev) {
			s.WriteString(" ")
		}
		if isOpenBrace(tok) && next.Type != token.RBRACE && next.Type != token.EOF {
			s.WriteString("\n")
		}
	}

	return s.String()
}

// needsTrailingSpace decides whether a space belongs between tok and next,
// based only on their kinds (no column tracking — see highlightCode).
func needsTrailingSpace(tok, next, prev token.Token) bool {
	switch next.Type {
	case token.SEMICOLON, token.COMMA, token.COLON, token.DOT, token.RPAREN, token.EOF:
		return false
	}
	switch tok.Type {
	case token.LPAREN, token.DOT:
		return false
	case token.BANG, token.MINUS:
		// Ambiguous with unary operators; lean toward no space, matching
		// how these read most often in practice.
		isPrefix := prev.Type == "" || isOperator(prev) || isDelimiter(prev)
		if isPrefix {
			return false
		}
	}
	return true
}
