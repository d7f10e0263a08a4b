// Package protocol classifies the lines of a report stream into log output and
// the response payload delimited by RESPONSE_START/RESPONSE_END markers.
package protocol

import (
	"strings"
)

// Wire tokens. All of them are matched as substrings anywhere in a line.
const (
	MarkerStart  = "RESPONSE_START"
	MarkerEnd    = "RESPONSE_END"
	MarkerPrefix = "RESPONSE"
	ErrorToken   = "Error:"
)

// EventKind tells a sink what an Event carries.
type EventKind int

const (
	// EventLog is a log line for the log panel.
	EventLog EventKind = iota
	// EventResponse carries the current trimmed response text.
	EventResponse
)

// Level is the severity of a log event.
type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Event is a single side effect produced by classifying a line.
type Event struct {
	Kind  EventKind
	Level Level
	Text  string
	// Final is set on the response event produced by RESPONSE_END.
	Final bool
}

// LogEvent builds an EventLog.
func LogEvent(level Level, text string) Event {
	return Event{Kind: EventLog, Level: level, Text: text}
}

// Classifier holds the accumulation state of one stream. It is not safe for
// concurrent use; one run owns one Classifier.
type Classifier struct {
	collecting  bool
	accumulator strings.Builder

	lastResponse string
	hasResponse  bool
	responseEnd  bool
	errorLine    string
}

// NewClassifier returns a classifier in the not-collecting state.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify processes one line and returns the events it produced, in order.
//
// Rules are checked in priority order: start marker, end marker, capture,
// error token, plain log. A line that still contains the marker prefix after
// that is dropped.
func (c *Classifier) Classify(line string) []Event {
	switch {
	case strings.Contains(line, MarkerStart):
		c.collecting = true
		c.accumulator.Reset()
		return nil

	case strings.Contains(line, MarkerEnd):
		c.collecting = false
		c.responseEnd = true
		return []Event{c.response(true)}

	case c.collecting:
		// Blank lines inside a capture are kept as literal blank lines.
		c.accumulator.WriteString(line)
		c.accumulator.WriteByte('\n')
		return []Event{c.response(false)}

	case strings.TrimSpace(line) == "":
		return nil

	case strings.Contains(line, ErrorToken):
		c.errorLine = line
		return []Event{LogEvent(LevelError, line)}

	case !strings.Contains(line, MarkerPrefix):
		return []Event{LogEvent(LevelInfo, line)}
	}

	return nil
}

func (c *Classifier) response(final bool) Event {
	text := strings.TrimSpace(c.accumulator.String())
	c.lastResponse = text
	c.hasResponse = true
	return Event{Kind: EventResponse, Text: text, Final: final}
}

// Collecting reports whether the classifier is between a start and end marker.
func (c *Classifier) Collecting() bool {
	return c.collecting
}

// Response returns the text of the last response event and whether one was
// produced at all.
func (c *Classifier) Response() (string, bool) {
	return c.lastResponse, c.hasResponse
}

// ResponseEnded reports whether an end marker was seen.
func (c *Classifier) ResponseEnded() bool {
	return c.responseEnd
}

// ErrorSeen reports whether an error-level log line was emitted.
func (c *Classifier) ErrorSeen() bool {
	return c.errorLine != ""
}

// LastError returns the most recent error-level log line.
func (c *Classifier) LastError() string {
	return c.errorLine
}

// Failed reports whether the stream should resolve as a failure once it ends:
// an error line was seen and no end marker confirmed a response.
func (c *Classifier) Failed() bool {
	return c.ErrorSeen() && !c.responseEnd
}

// Reset returns the classifier to its initial state.
func (c *Classifier) Reset() {
	*c = Classifier{}
}
