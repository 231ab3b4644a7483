// Package cli provides terminal styling for the interactive dialog
// shell.
package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme is the two-color palette the shell is drawn with: one accent
// for prompts and frames, one muted tone for secondary text.
type Theme struct {
	Accent lipgloss.Color
	Muted  lipgloss.Color
}

// DefaultTheme is a soft periwinkle on gray.
var DefaultTheme = Theme{
	Accent: lipgloss.Color("#7aa2f7"),
	Muted:  lipgloss.Color("#565f89"),
}

// Styles are the concrete lipgloss styles derived from a Theme.
type Styles struct {
	Title  lipgloss.Style
	Label  lipgloss.Style
	Border lipgloss.Style
	Help   lipgloss.Style
}

// NewStyles derives the shell styles from a theme.
func NewStyles(t Theme) Styles {
	accent := lipgloss.NewStyle().Foreground(t.Accent)
	return Styles{
		Title:  accent.Bold(true).Padding(0, 1),
		Label:  accent.Bold(true),
		Border: accent,
		Help:   lipgloss.NewStyle().Foreground(t.Muted),
	}
}

// Turn is one exchange in a transcript.
type Turn struct {
	User string
	Bot  string
}

// Transcript renders the last turns of a conversation in a bordered
// box, newest last.
type Transcript struct {
	Styles Styles
	Title  string
	Turns  []Turn

	// MaxTurns caps how many trailing turns are shown. Zero shows all.
	MaxTurns int
}

// Render renders the transcript to a string of the given width.
func (t Transcript) Render(width int) string {
	if width < 8 {
		width = 8
	}
	bc := t.Styles.Border
	inner := width - 4

	turns := t.Turns
	if t.MaxTurns > 0 && len(turns) > t.MaxTurns {
		turns = turns[len(turns)-t.MaxTurns:]
	}

	var lines []string
	lines = append(lines, bc.Render("╭"+strings.Repeat("─", width-2)+"╮"))

	title := t.Styles.Title.Render(t.Title)
	pad := max(0, width-3-lipgloss.Width(title))
	lines = append(lines, bc.Render("│")+title+strings.Repeat(" ", pad)+bc.Render("│"))

	row := func(label, text string, style lipgloss.Style) {
		for _, part := range wrap(label+" "+text, inner) {
			pad := max(0, inner-lipgloss.Width(part))
			lines = append(lines, bc.Render("│")+" "+style.Render(part)+strings.Repeat(" ", pad)+" "+bc.Render("│"))
		}
	}
	for _, turn := range turns {
		row("you>", turn.User, t.Styles.Help)
		row("bot>", turn.Bot, lipgloss.NewStyle())
	}

	lines = append(lines, bc.Render("╰"+strings.Repeat("─", width-2)+"╯"))
	return strings.Join(lines, "\n")
}

// wrap splits text into lines of at most width runes, breaking on
// spaces where possible.
func wrap(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}
	var out []string
	for len(text) > 0 {
		if len(text) <= width {
			out = append(out, text)
			break
		}
		cut := strings.LastIndex(text[:width+1], " ")
		if cut <= 0 {
			cut = width
		}
		out = append(out, strings.TrimRight(text[:cut], " "))
		text = strings.TrimLeft(text[cut:], " ")
	}
	if len(out) == 0 {
		out = append(out, "")
	}
	return out
}
