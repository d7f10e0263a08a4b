package run

import (
	"fmt"
	"time"

	"github.com/Backland-Labs/reportrun/internal/report"
)

// State is a step of the run lifecycle
type State int

const (
	// Idle means no run has started or the last submission was rejected
	Idle State = iota
	// Validating checks the request before any network call
	Validating
	// Requesting waits for the service to answer
	Requesting
	// Streaming consumes the response body
	Streaming
	// Succeeded is terminal: the stream ended cleanly
	Succeeded
	// Cancelled is terminal: the user stopped the run
	Cancelled
	// Failed is terminal: the service or the transport reported an error
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Validating:
		return "validating"
	case Requesting:
		return "requesting"
	case Streaming:
		return "streaming"
	case Succeeded:
		return "succeeded"
	case Cancelled:
		return "cancelled"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether s ends a run
func (s State) Terminal() bool {
	return s == Succeeded || s == Cancelled || s == Failed
}

// Active reports whether a run is in flight in s
func (s State) Active() bool {
	return s == Validating || s == Requesting || s == Streaming
}

// Outcome is the single result of a run
type Outcome struct {
	RunID    string
	Kind     report.Kind
	Status   State
	Text     string // response text when Succeeded
	Message  string // user-facing reason when Failed
	Err      error  // underlying cause when Failed
	Attempts int
	Duration time.Duration
}

// Succeeded reports whether the run produced a response
func (o Outcome) Succeeded() bool {
	return o.Status == Succeeded
}

// FailureText is shown in place of the response when a run fails
func FailureText(kind report.Kind) string {
	return fmt.Sprintf("Failed to generate %s report.", kind.Title())
}

// StartBanner is the first log line of every run
func StartBanner(kind report.Kind) string {
	return fmt.Sprintf("Starting %s Generator...", kind.Title())
}

// CancelledText is logged when a run is cancelled
const CancelledText = "Process cancelled."
