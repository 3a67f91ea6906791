// Package render turns stored exchanges into terminal text. Nothing here
// mutates the exchanges it is given.
package render

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/KaramelBytes/edachat-cli/internal/conversation"
)

var boldPattern = regexp.MustCompile(`\*\*(.*?)\*\*`)

var (
	boldStyle   = lipgloss.NewStyle().Bold(true)
	youStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	agentStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	subtleStyle = lipgloss.NewStyle().Faint(true)
)

// Emphasize replaces **text** spans with bold text. Pairing is non-greedy and
// line-local; an unmatched marker is left as is.
func Emphasize(answer string) string {
	return boldPattern.ReplaceAllStringFunc(answer, func(m string) string {
		inner := boldPattern.FindStringSubmatch(m)[1]
		return boldStyle.Render(inner)
	})
}

// Renderer formats exchanges for a terminal.
type Renderer struct {
	md *glamour.TermRenderer
}

// New returns a renderer. With markdown enabled and a TTY on stdout, answers
// go through glamour; otherwise only bold spans are emphasized.
func New(markdown bool, wordWrap int) *Renderer {
	r := &Renderer{}
	if !markdown || !IsStdoutTTY() {
		return r
	}
	if wordWrap <= 0 {
		wordWrap = 80
	}
	md, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wordWrap),
	)
	if err == nil {
		r.md = md
	}
	return r
}

// Answer renders an answer body.
func (r *Renderer) Answer(answer string) string {
	if r.md != nil {
		if out, err := r.md.Render(answer); err == nil {
			return strings.TrimRight(out, "\n")
		}
	}
	return Emphasize(answer)
}

// Exchange renders one question/answer turn.
func (r *Renderer) Exchange(ex conversation.Exchange) string {
	var sb strings.Builder
	sb.WriteString(youStyle.Render("You:"))
	sb.WriteString(" ")
	sb.WriteString(ex.Question)
	sb.WriteString("\n")
	sb.WriteString(agentStyle.Render("Agent:"))
	sb.WriteString("\n")
	sb.WriteString(r.Answer(ex.Answer))
	sb.WriteString("\n")
	if ex.HasPlot() {
		fmt.Fprintf(&sb, "%s %s\n", subtleStyle.Render("Plot:"), ex.PlotURL)
	}
	return sb.String()
}

// History renders every exchange separated by blank lines.
func (r *Renderer) History(exchanges []conversation.Exchange) string {
	parts := make([]string, len(exchanges))
	for i, ex := range exchanges {
		parts[i] = r.Exchange(ex)
	}
	return strings.Join(parts, "\n")
}

// Error renders a user-visible failure line.
func Error(msg string) string { return errorStyle.Render("❌ " + msg) }

// Subtle renders secondary text.
func Subtle(s string) string { return subtleStyle.Render(s) }

// IsStdoutTTY reports whether stdout is a terminal.
func IsStdoutTTY() bool { return term.IsTerminal(int(os.Stdout.Fd())) }
