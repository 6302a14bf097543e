package revcheck

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// lineReader yields the non-blank lines of a stream one at a time. It reads
// byte by byte so that nothing past the current line is consumed from r.
// '\n' ends a line and '\r' is dropped wherever it appears, so LF and CRLF
// input produce the same lines.
type lineReader struct {
	r   io.ByteReader
	buf []byte
	eof bool
}

// asByteReader returns r itself when it can be read byte by byte, otherwise a
// bufio.Reader over it. Callers that read several objects from one plain
// io.Reader must wrap it once themselves, since the buffered reader may hold
// bytes past the current object.
func asByteReader(r io.Reader) io.ByteReader {
	if br, ok := r.(io.ByteReader); ok {
		return br
	}
	return bufio.NewReader(r)
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{r: asByteReader(r)}
}

// next returns the next line containing something other than whitespace.
// ok is false once the stream is exhausted.
func (lr *lineReader) next() (line string, ok bool, err error) {
	for !lr.eof {
		line, err = lr.readLine()
		if err != nil {
			return "", false, err
		}
		if strings.TrimSpace(line) != "" {
			return line, true, nil
		}
	}
	return "", false, nil
}

// readLine reads up to the next '\n'. A final line without a terminator is
// returned as is and marks the reader exhausted.
func (lr *lineReader) readLine() (string, error) {
	lr.buf = lr.buf[:0]
	for {
		c, err := lr.r.ReadByte()
		if errors.Is(err, io.EOF) {
			lr.eof = true
			return string(lr.buf), nil
		}
		if err != nil {
			return "", fmt.Errorf("reading PEM stream: %w", err)
		}
		switch c {
		case '\n':
			return string(lr.buf), nil
		case '\r':
		default:
			lr.buf = append(lr.buf, c)
		}
	}
}
