package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// ─── Terminal Styling ───────────────────────────────────────────────────────
// Colors are only used when stdout is a terminal; piped output stays plain.

var (
	colorGreen = lipgloss.Color("#2ECC71")
	colorAmber = lipgloss.Color("#F4D03F")
	colorRed   = lipgloss.Color("#E74C3C")
	colorMuted = lipgloss.Color("#7F8C8D")
	colorTitle = lipgloss.Color("#27AE60")
)

var styles = struct {
	Title   lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Good    lipgloss.Style
	Warn    lipgloss.Style
	Bad     lipgloss.Style
	Box     lipgloss.Style
	Heading lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(colorTitle),
	Bold:    lipgloss.NewStyle().Bold(true),
	Muted:   lipgloss.NewStyle().Foreground(colorMuted),
	Good:    lipgloss.NewStyle().Foreground(colorGreen),
	Warn:    lipgloss.NewStyle().Foreground(colorAmber),
	Bad:     lipgloss.NewStyle().Foreground(colorRed),
	Box:     lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorTitle).Padding(0, 1),
	Heading: lipgloss.NewStyle().Bold(true).Underline(true),
}

// colorEnabled is decided once per process.
var colorEnabled = isTerminal(os.Stdout)

func isTerminal(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func paint(s lipgloss.Style, text string) string {
	if !colorEnabled {
		return text
	}
	return s.Render(text)
}

// box frames text on terminals and prints it bare otherwise.
func box(text string) string {
	if !colorEnabled {
		return text
	}
	return styles.Box.Render(text)
}

// scoreStyle picks green/amber/red with the feedback thresholds.
func scoreStyle(score int) lipgloss.Style {
	switch {
	case score >= 90:
		return styles.Good
	case score >= 70:
		return styles.Warn
	default:
		return styles.Bad
	}
}

const barWidth = 20

// bar renders pct (0..100) as [=========>..........].
func bar(pct int) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := pct * barWidth / 100
	empty := barWidth - filled

	var b string
	switch {
	case filled == barWidth:
		b = strings.Repeat("=", filled)
	case filled > 0:
		b = strings.Repeat("=", filled-1) + ">" + strings.Repeat(".", empty)
	default:
		b = strings.Repeat(".", barWidth)
	}
	return "[" + b + "]"
}

func heading(w io.Writer, text string) {
	fmt.Fprintln(w, paint(styles.Heading, text))
}
