// Package stream turns an arbitrarily chunked byte stream into ordered,
// newline-delimited text lines.
//
// Chunk boundaries carry no meaning: a line (or a multi-byte UTF-8 character)
// may be split across any number of chunks and is still produced exactly once,
// in order, when it is complete.
//
// Example usage:
//
//	r := stream.NewReassembler()
//	for _, chunk := range chunks {
//		for _, line := range r.Feed(chunk) {
//			handle(line)
//		}
//	}
//	if last, ok := r.Finish(); ok {
//		handle(last)
//	}
package stream

import (
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Reassembler decodes chunks incrementally and splits the decoded text into
// complete lines, holding back any trailing partial line.
type Reassembler struct {
	decoder *encoding.Decoder
	// decodeRemainder holds the bytes of a multi-byte character that was cut
	// at the end of the previous chunk.
	decodeRemainder []byte
	// lineRemainder is the text after the last newline seen so far.
	lineRemainder strings.Builder
}

// NewReassembler returns an empty reassembler.
func NewReassembler() *Reassembler {
	return &Reassembler{decoder: unicode.UTF8.NewDecoder()}
}

// Feed consumes one chunk and returns every line completed by it, in order.
// A chunk without a newline only grows the held-back remainder and returns nil.
func (r *Reassembler) Feed(chunk []byte) []string {
	if len(chunk) == 0 {
		return nil
	}
	text := r.decode(chunk, false)
	if text == "" {
		return nil
	}

	pieces := strings.Split(text, "\n")
	if len(pieces) == 1 {
		r.lineRemainder.WriteString(pieces[0])
		return nil
	}

	lines := make([]string, 0, len(pieces)-1)
	r.lineRemainder.WriteString(pieces[0])
	lines = append(lines, r.lineRemainder.String())
	r.lineRemainder.Reset()
	lines = append(lines, pieces[1:len(pieces)-1]...)
	r.lineRemainder.WriteString(pieces[len(pieces)-1])
	return lines
}

// Finish flushes the decoder and returns the held-back remainder as a final
// line. ok is false when nothing was pending.
func (r *Reassembler) Finish() (line string, ok bool) {
	if len(r.decodeRemainder) > 0 {
		r.lineRemainder.WriteString(r.decode(nil, true))
	}
	line = r.lineRemainder.String()
	r.Reset()
	return line, line != ""
}

// Pending returns the held-back partial line.
func (r *Reassembler) Pending() string {
	return r.lineRemainder.String()
}

// Reset discards all buffered state so the reassembler can serve a new stream.
func (r *Reassembler) Reset() {
	r.decoder.Reset()
	r.decodeRemainder = nil
	r.lineRemainder.Reset()
}

// decode converts decodeRemainder+chunk to text. With atEOF false an
// incomplete trailing sequence is kept for the next call; with atEOF true it is
// replaced by U+FFFD.
func (r *Reassembler) decode(chunk []byte, atEOF bool) string {
	src := make([]byte, 0, len(r.decodeRemainder)+len(chunk))
	src = append(src, r.decodeRemainder...)
	src = append(src, chunk...)
	r.decodeRemainder = nil

	// Every invalid byte may expand to a three byte replacement character.
	dst := make([]byte, len(src)*3+utf8.UTFMax)
	var out strings.Builder
	for {
		nDst, nSrc, err := r.decoder.Transform(dst, src, atEOF)
		out.Write(dst[:nDst])
		src = src[nSrc:]
		if errors.Is(err, transform.ErrShortDst) && (nDst > 0 || nSrc > 0) {
			continue
		}
		break
	}
	if len(src) > 0 && !atEOF {
		r.decodeRemainder = append([]byte(nil), src...)
	}
	return out.String()
}
