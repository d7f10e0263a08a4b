package cli

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingWriter records how many Write calls it received
type countingWriter struct {
	bytes.Buffer
	writes int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	c.writes++
	return c.Buffer.Write(p)
}

// TestPrefixWriterCore tests the core PrefixWriter implementation
func TestPrefixWriterCore(t *testing.T) {
	t.Run("BasicFunctionality", func(t *testing.T) {
		var buf bytes.Buffer
		pw := NewPrefixWriter(&buf, "EOD", false, 0)

		_, err := pw.Write([]byte("Collecting logs\n"))
		require.NoError(t, err)
		assert.Equal(t, "[EOD] Collecting logs\n", buf.String())

		buf.Reset()
		_, err = pw.Write([]byte("Line 1\nLine 2\nLine 3\n"))
		require.NoError(t, err)
		assert.Equal(t, "[EOD] Line 1\n[EOD] Line 2\n[EOD] Line 3\n", buf.String())
	})

	t.Run("PartialLinesWaitForNewline", func(t *testing.T) {
		var buf bytes.Buffer
		pw := NewPrefixWriter(&buf, "test", false, 0)

		n, err := pw.Write([]byte("No newline"))
		require.NoError(t, err)
		assert.Equal(t, 10, n)
		assert.Empty(t, buf.String())

		_, err = pw.Write([]byte(" continues\nNew line"))
		require.NoError(t, err)
		assert.Equal(t, "[test] No newline continues\n", buf.String())

		require.NoError(t, pw.Flush())
		assert.Equal(t, "[test] No newline continues\n[test] New line\n", buf.String())
		require.NoError(t, pw.Flush(), "flushing an empty buffer is a no-op")
	})

	t.Run("EmptyWrite", func(t *testing.T) {
		var buf bytes.Buffer
		pw := NewPrefixWriter(&buf, "empty", false, 0)

		n, err := pw.Write([]byte{})
		require.NoError(t, err)
		assert.Equal(t, 0, n)
		assert.Equal(t, "", buf.String())
	})

	t.Run("OneWritePerBatch", func(t *testing.T) {
		var cw countingWriter
		pw := NewPrefixWriter(&cw, "x", false, 0)

		_, err := pw.Write([]byte("a\nb\nc\n"))
		require.NoError(t, err)
		assert.Equal(t, 1, cw.writes)
	})

	t.Run("ColorLabel", func(t *testing.T) {
		var buf bytes.Buffer
		pw := NewPrefixWriter(&buf, "Sprint Review", true, 1)

		_, err := pw.Write([]byte("hello\n"))
		require.NoError(t, err)
		assert.Equal(t, "\033[34m[Sprint Review]\033[0m hello\n", buf.String())
	})

	t.Run("UnderlyingError", func(t *testing.T) {
		pw := NewPrefixWriter(failingWriter{}, "x", false, 0)
		_, err := pw.Write([]byte("line\n"))
		assert.Error(t, err)
	})
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("closed")
}

// TestPrefixWriterConcurrent checks that concurrent writers never interleave
// inside a line
func TestPrefixWriterConcurrent(t *testing.T) {
	var buf bytes.Buffer
	pw := NewPrefixWriter(&buf, "run", false, 0)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = pw.Write([]byte("complete line\n"))
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 20)
	for _, line := range lines {
		assert.Equal(t, "[run] complete line", line)
	}
}
