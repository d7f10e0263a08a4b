package run

import (
	"github.com/Backland-Labs/reportrun/internal/protocol"
	"github.com/Backland-Labs/reportrun/internal/report"
)

// Sink receives run progress. Calls happen synchronously on the goroutine
// that runs the request, in the order the bytes arrived.
type Sink interface {
	OnStateChange(kind report.Kind, state State)
	OnLog(event protocol.Event)
	OnResponse(text string, final bool)
}

// NopSink discards everything
type NopSink struct{}

func (NopSink) OnStateChange(report.Kind, State) {}
func (NopSink) OnLog(protocol.Event)             {}
func (NopSink) OnResponse(string, bool)          {}
