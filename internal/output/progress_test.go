package output

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"
)

// syncBuffer is a bytes.Buffer safe for the spinner goroutine
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestProgressIndicator(t *testing.T) {
	t.Run("creates progress indicator with message", func(t *testing.T) {
		var buf syncBuffer
		printer := NewPrinterWithWriters(&buf, &buf, true)

		progress := printer.StartProgress("Generating EOD report...")
		defer progress.Stop()

		if !strings.Contains(buf.String(), "Generating EOD report...") {
			t.Errorf("expected output to contain progress message, got: %s", buf.String())
		}
	})

	t.Run("shows spinner animation", func(t *testing.T) {
		var buf syncBuffer
		printer := NewPrinterWithWriters(&buf, &buf, true)

		progress := printer.StartProgress("Loading...")
		time.Sleep(250 * time.Millisecond)
		progress.Stop()

		output := buf.String()
		seen := 0
		for _, char := range spinnerChars {
			if strings.Contains(output, char) {
				seen++
			}
		}
		if seen < 2 {
			t.Errorf("expected the spinner to advance, got: %q", output)
		}
		if !strings.HasSuffix(output, "\r\033[K") {
			t.Errorf("expected the line to be cleared on stop, got: %q", output)
		}
	})

	t.Run("updates message", func(t *testing.T) {
		var buf syncBuffer
		printer := NewPrinterWithWriters(&buf, &buf, true)

		progress := printer.StartProgress("Requesting")
		progress.UpdateMessage("Streaming")
		progress.Stop()

		if progress.Message() != "Streaming" {
			t.Errorf("Message() = %q", progress.Message())
		}
		if !strings.Contains(buf.String(), "Streaming") {
			t.Errorf("expected updated message to be rendered, got: %q", buf.String())
		}
	})

	t.Run("log lines clear the spinner first", func(t *testing.T) {
		var buf syncBuffer
		printer := NewPrinterWithWriters(&buf, &buf, true)

		progress := printer.StartProgress("Working")
		printer.Detail("a log line")
		progress.Stop()

		output := buf.String()
		idx := strings.Index(output, "a log line")
		if idx < 0 || !strings.Contains(output[:idx], "\r\033[K") {
			t.Errorf("expected the spinner line to be erased before the log line, got: %q", output)
		}
	})

	t.Run("draws nothing without color", func(t *testing.T) {
		var buf syncBuffer
		printer := NewPrinterWithWriters(&buf, &buf, false)

		progress := printer.StartProgress("Quiet")
		time.Sleep(150 * time.Millisecond)
		progress.UpdateMessage("Still quiet")
		progress.Stop()
		progress.Stop()

		if buf.String() != "" {
			t.Errorf("expected no output, got: %q", buf.String())
		}
		if progress.Elapsed() <= 0 {
			t.Error("Elapsed() should be positive")
		}
	})

	t.Run("stop is idempotent", func(t *testing.T) {
		var buf syncBuffer
		printer := NewPrinterWithWriters(&buf, &buf, true)

		progress := printer.StartProgress("Once")
		progress.Stop()
		progress.Stop()

		var nilProgress *Progress
		nilProgress.Stop()
	})
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{500 * time.Millisecond, "0.5s"},
		{3 * time.Second, "3s"},
		{90 * time.Second, "90s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
