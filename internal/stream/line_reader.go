package stream

import (
	"errors"
	"io"
)

// DefaultChunkSize is the read size used when NewLineReader gets a
// non-positive size.
const DefaultChunkSize = 4096

// LineReader pulls chunks from an io.Reader on demand and hands out one
// complete line per Next call.
type LineReader struct {
	src   io.Reader
	buf   []byte
	asm   *Reassembler
	queue []string
	done  bool
	err   error

	chunks int
	bytes  int64
}

// NewLineReader wraps src. Reads are issued only when no complete line is
// queued, so the caller observes lines as soon as their bytes arrive.
func NewLineReader(src io.Reader, chunkSize int) *LineReader {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &LineReader{
		src: src,
		buf: make([]byte, chunkSize),
		asm: NewReassembler(),
	}
}

// Next returns the next line. It returns io.EOF after the final line has been
// handed out, or the transport error that interrupted the stream.
func (lr *LineReader) Next() (string, error) {
	for len(lr.queue) == 0 {
		if lr.err != nil {
			return "", lr.err
		}
		if lr.done {
			return "", io.EOF
		}
		lr.fill()
	}

	line := lr.queue[0]
	lr.queue[0] = ""
	lr.queue = lr.queue[1:]
	return line, nil
}

// Stats reports how many chunks and bytes were consumed so far.
func (lr *LineReader) Stats() (chunks int, bytes int64) {
	return lr.chunks, lr.bytes
}

func (lr *LineReader) fill() {
	n, err := lr.src.Read(lr.buf)
	if n > 0 {
		lr.chunks++
		lr.bytes += int64(n)
		lr.queue = append(lr.queue, lr.asm.Feed(lr.buf[:n])...)
	}

	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		lr.done = true
		if last, ok := lr.asm.Finish(); ok {
			lr.queue = append(lr.queue, last)
		}
	default:
		// Lines completed before the failure are still delivered.
		lr.err = err
	}
}
