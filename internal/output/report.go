package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/Backland-Labs/reportrun/internal/history"
	"github.com/Backland-Labs/reportrun/internal/protocol"
)

const summaryWidth = 60

// FormatLog returns a streamed log line ready for display. Error lines are
// highlighted.
func (p *Printer) FormatLog(ev protocol.Event) string {
	text := strings.TrimRight(ev.Text, "\r\n")
	if ev.Level == protocol.LevelError {
		return p.render(p.styles.err, text)
	}
	return text
}

// LogLine prints a streamed log line on stderr
func (p *Printer) LogLine(ev protocol.Event) {
	p.writeErr(p.FormatLog(ev) + "\n")
}

// ErrWriter returns a writer onto stderr that shares the printer's lock, so
// writes through it never tear the spinner line. Each Write is emitted whole.
func (p *Printer) ErrWriter() io.Writer {
	return writerFunc(func(b []byte) (int, error) {
		p.writeErr(string(b))
		return len(b), nil
	})
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}

// Response prints the report text on stdout
func (p *Printer) Response(text string) {
	if text == "" {
		return
	}
	p.writeOut(strings.TrimRight(text, "\n") + "\n")
}

// Heading prints a section title on stderr
func (p *Printer) Heading(title string) {
	p.writeErr("\n" + p.render(p.styles.title, title) + "\n")
}

// JSON prints v as indented JSON on stdout
func (p *Printer) JSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	p.writeOut(string(data) + "\n")
	return nil
}

// HistoryTable prints entries as a table on stdout
func (p *Printer) HistoryTable(entries []history.Entry) {
	if len(entries) == 0 {
		p.Info("No history entries")
		return
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		date := e.Date
		if t, ok := e.Time(); ok {
			date = t.Format("2006-01-02 15:04")
		}
		rows = append(rows, []string{e.ID, e.Type.Title(), date, e.Status, e.Summary(summaryWidth)})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "TYPE", "DATE", "STATUS", "SUMMARY").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			style := lipgloss.NewStyle().Padding(0, 1)
			if !p.useColor {
				return style
			}
			switch {
			case row == table.HeaderRow:
				return style.Inherit(p.styles.title).UnsetUnderline()
			case col == 3 && row >= 0 && row < len(entries) && entries[row].Passed():
				return style.Inherit(p.styles.success)
			case col == 3:
				return style.Inherit(p.styles.err)
			}
			return style
		})

	p.writeOut(t.Render() + "\n")
}

// HistoryEntry prints one entry in full on stdout
func (p *Printer) HistoryEntry(e history.Entry) {
	var b strings.Builder
	fmt.Fprintf(&b, "ID:     %s\n", e.ID)
	fmt.Fprintf(&b, "Type:   %s\n", e.Type.Title())
	fmt.Fprintf(&b, "Date:   %s\n", e.Date)
	fmt.Fprintf(&b, "Status: %s\n", e.Status)
	p.writeErr(b.String())
	p.Response(e.Response)
}
