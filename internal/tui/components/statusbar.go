package components

import (
	"fmt"

	"github.com/theirongolddev/cchat/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

// RenderStatusBar renders the bottom status bar: keybinding hints on the
// left, model and running usage totals on the right.
func RenderStatusBar(width int, model, usage string, busy bool) string {
	t := theme.Active

	style := lipgloss.NewStyle().
		Foreground(t.TextMuted).
		Background(t.Surface).
		Width(width)

	left := " [enter]send  [ctrl+n]new  [ctrl+s]settings  [?]help  [ctrl+c]quit"
	if busy {
		left = " streaming... [esc]focus input"
	}

	right := ""
	if model != "" {
		right = model
	}
	if usage != "" {
		right = fmt.Sprintf("%s │ %s ", right, usage)
	}

	// Pad middle
	padding := width - lipgloss.Width(left) - lipgloss.Width(right)
	if padding < 0 {
		padding = 0
	}

	bar := left
	for i := 0; i < padding; i++ {
		bar += " "
	}
	bar += right

	return style.Render(bar)
}
