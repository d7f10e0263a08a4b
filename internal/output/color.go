package output

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

type styles struct {
	success lipgloss.Style
	err     lipgloss.Style
	warning lipgloss.Style
	info    lipgloss.Style
	step    lipgloss.Style
	detail  lipgloss.Style
	title   lipgloss.Style
	spinner lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		success: r.NewStyle().Bold(true).Foreground(lipgloss.Color("2")),
		err:     r.NewStyle().Bold(true).Foreground(lipgloss.Color("1")),
		warning: r.NewStyle().Bold(true).Foreground(lipgloss.Color("3")),
		info:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("6")),
		step:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("4")),
		detail:  r.NewStyle().Foreground(lipgloss.Color("8")),
		title:   r.NewStyle().Bold(true).Underline(true),
		spinner: r.NewStyle().Bold(true).Foreground(lipgloss.Color("6")),
	}
}

// Printer handles colored output
type Printer struct {
	out      io.Writer
	err      io.Writer
	useColor bool
	styles   styles

	// mu serializes writes so log lines never interleave with the spinner
	mu       sync.Mutex
	liveLine bool
}

// NewPrinter creates a printer for stdout and stderr with color support
// detected from the terminal
func NewPrinter() *Printer {
	return NewPrinterWithWriters(os.Stdout, os.Stderr, ShouldUseColor(os.Stderr))
}

// NewPrinterWithWriters creates a printer with custom writers (for testing)
func NewPrinterWithWriters(out, err io.Writer, useColor bool) *Printer {
	r := lipgloss.NewRenderer(err)
	if useColor {
		r.SetColorProfile(termenv.ANSI256)
	} else {
		r.SetColorProfile(termenv.Ascii)
	}
	return &Printer{
		out:      out,
		err:      err,
		useColor: useColor,
		styles:   newStyles(r),
	}
}

// UseColor reports whether styled output is enabled
func (p *Printer) UseColor() bool {
	return p.useColor
}

// Success prints a success message in green
func (p *Printer) Success(format string, args ...interface{}) {
	p.writeErr(p.render(p.styles.success, "✓ "+fmt.Sprintf(format, args...)) + "\n")
}

// Error prints an error message in red
func (p *Printer) Error(format string, args ...interface{}) {
	p.writeErr(p.render(p.styles.err, "✗ "+fmt.Sprintf(format, args...)) + "\n")
}

// Warning prints a warning message in yellow
func (p *Printer) Warning(format string, args ...interface{}) {
	p.writeErr(p.render(p.styles.warning, "⚠ "+fmt.Sprintf(format, args...)) + "\n")
}

// Info prints an info message in cyan
func (p *Printer) Info(format string, args ...interface{}) {
	p.writeErr(p.render(p.styles.info, "→ "+fmt.Sprintf(format, args...)) + "\n")
}

// Step prints a step message in blue
func (p *Printer) Step(format string, args ...interface{}) {
	p.writeErr(p.render(p.styles.step, "▶ "+fmt.Sprintf(format, args...)) + "\n")
}

// Detail prints a detail message in gray
func (p *Printer) Detail(format string, args ...interface{}) {
	p.writeErr(p.render(p.styles.detail, "  "+fmt.Sprintf(format, args...)) + "\n")
}

// Print prints a plain message to stdout without color
func (p *Printer) Print(format string, args ...interface{}) {
	p.writeOut(fmt.Sprintf(format, args...))
}

// Println prints a plain message to stdout with newline
func (p *Printer) Println(args ...interface{}) {
	p.writeOut(fmt.Sprintln(args...))
}

func (p *Printer) render(style lipgloss.Style, s string) string {
	if !p.useColor {
		return s
	}
	return style.Render(s)
}

// writeErr writes to stderr, erasing the spinner line first if one is drawn
func (p *Printer) writeErr(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clearLiveLine()
	_, _ = io.WriteString(p.err, s)
}

func (p *Printer) writeOut(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clearLiveLine()
	_, _ = io.WriteString(p.out, s)
}

// clearLiveLine must be called with mu held
func (p *Printer) clearLiveLine() {
	if p.liveLine {
		_, _ = io.WriteString(p.err, "\r\033[K")
		p.liveLine = false
	}
}

// ShouldUseColor reports whether styled output suits f: it must be a
// terminal, NO_COLOR must be unset and TERM must not be dumb.
func ShouldUseColor(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if term := os.Getenv("TERM"); term == "dumb" {
		return false
	}
	return IsTerminal(f)
}

// IsTerminal reports whether f is attached to a terminal
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
