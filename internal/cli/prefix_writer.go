package cli

import (
	"bytes"
	"fmt"
	"io"
	"sync"
)

// PrefixWriter wraps an io.Writer and prefixes each line with a label.
// Complete lines are buffered and handed to the underlying writer in a
// single Write, so a line is never split by output from another goroutine.
type PrefixWriter struct {
	writer io.Writer
	prefix string
	buffer []byte
	mu     sync.Mutex
}

// ANSI color codes for the label, indexed by report kind
var prefixColors = []string{
	"\033[32m", // Green
	"\033[34m", // Blue
	"\033[36m", // Cyan
	"\033[35m", // Magenta
	"\033[33m", // Yellow
}

// NewPrefixWriter creates a new prefix writer
func NewPrefixWriter(w io.Writer, label string, useColor bool, colorIndex int) *PrefixWriter {
	prefix := fmt.Sprintf("[%s] ", label)
	if useColor {
		prefix = fmt.Sprintf("%s[%s]\033[0m ", prefixColors[colorIndex%len(prefixColors)], label)
	}
	return &PrefixWriter{
		writer: w,
		prefix: prefix,
		buffer: make([]byte, 0, 256),
	}
}

// Write implements io.Writer. A trailing partial line is kept until its
// newline arrives or Flush is called.
func (pw *PrefixWriter) Write(p []byte) (int, error) {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	pw.buffer = append(pw.buffer, p...)
	idx := bytes.LastIndexByte(pw.buffer, '\n')
	if idx < 0 {
		return len(p), nil
	}

	complete := pw.buffer[:idx+1]
	var out bytes.Buffer
	for len(complete) > 0 {
		end := bytes.IndexByte(complete, '\n')
		out.WriteString(pw.prefix)
		out.Write(complete[:end+1])
		complete = complete[end+1:]
	}
	pw.buffer = append(pw.buffer[:0], pw.buffer[idx+1:]...)

	if _, err := pw.writer.Write(out.Bytes()); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Flush writes a pending partial line, terminated with a newline
func (pw *PrefixWriter) Flush() error {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	if len(pw.buffer) == 0 {
		return nil
	}
	line := pw.prefix + string(pw.buffer) + "\n"
	pw.buffer = pw.buffer[:0]
	_, err := io.WriteString(pw.writer, line)
	return err
}
