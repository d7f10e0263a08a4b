package cli

import (
	"fmt"
	"sync"

	"github.com/Backland-Labs/reportrun/internal/output"
	"github.com/Backland-Labs/reportrun/internal/protocol"
	"github.com/Backland-Labs/reportrun/internal/report"
	"github.com/Backland-Labs/reportrun/internal/run"
)

// logLine is a streamed log line as reported in JSON output
type logLine struct {
	Level protocol.Level `json:"level"`
	Text  string         `json:"text"`
}

// terminalSink renders run progress: a spinner while waiting, streamed log
// lines with a kind label on stderr, and nothing on stdout until the run
// resolves. In JSON mode it only collects.
type terminalSink struct {
	printer  *output.Printer
	logs     *PrefixWriter
	showLogs bool
	quiet    bool

	mu       sync.Mutex
	progress *output.Progress
	lines    []logLine
	response string
}

func newTerminalSink(printer *output.Printer, kind report.Kind, showLogs, quiet bool) *terminalSink {
	return &terminalSink{
		printer:  printer,
		logs:     NewPrefixWriter(printer.ErrWriter(), kind.Title(), printer.UseColor(), kindIndex(kind)),
		showLogs: showLogs,
		quiet:    quiet,
	}
}

func kindIndex(kind report.Kind) int {
	for i, k := range report.Kinds {
		if k == kind {
			return i
		}
	}
	return len(report.Kinds)
}

func (s *terminalSink) OnStateChange(kind report.Kind, state run.State) {
	if s.quiet {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	switch state {
	case run.Requesting:
		s.stopProgress()
		s.progress = s.printer.StartProgress(fmt.Sprintf("Generating %s report...", kind.Title()))
	case run.Streaming:
		if s.progress != nil {
			s.progress.UpdateMessage(fmt.Sprintf("Receiving %s report...", kind.Title()))
		}
	default:
		if state.Terminal() || state == run.Idle {
			s.stopProgress()
		}
	}
}

func (s *terminalSink) OnLog(ev protocol.Event) {
	s.mu.Lock()
	s.lines = append(s.lines, logLine{Level: ev.Level, Text: ev.Text})
	s.mu.Unlock()

	if s.quiet {
		return
	}
	if !s.showLogs && ev.Level != protocol.LevelError {
		return
	}
	_, _ = fmt.Fprintln(s.logs, s.printer.FormatLog(ev))
}

func (s *terminalSink) OnResponse(text string, final bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.response = text
	if final && s.progress != nil {
		s.progress.UpdateMessage("Response received")
	}
}

// Close stops the spinner and flushes any partial log line
func (s *terminalSink) Close() {
	s.mu.Lock()
	s.stopProgress()
	s.mu.Unlock()
	_ = s.logs.Flush()
}

// Logs returns the collected log lines
func (s *terminalSink) Logs() []logLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]logLine(nil), s.lines...)
}

// stopProgress must be called with mu held
func (s *terminalSink) stopProgress() {
	if s.progress != nil {
		s.progress.Stop()
		s.progress = nil
	}
}
