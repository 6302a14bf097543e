package revcheck

import (
	"encoding/base64"
	"fmt"
	"io"
	"strings"
)

// PEMReader extracts one labeled PEM object per call from a stream. It holds
// only immutable configuration and may be shared between goroutines as long
// as each call gets its own stream.
type PEMReader struct {
	label   string
	headers [2]string
	footers [2]string
	decoder DERDecoder
}

// NewPEMReader returns a reader for envelopes labeled label, such as
// "CERTIFICATE" or "CRL". Both "-----BEGIN <label>-----" and
// "-----BEGIN X509 <label>-----" headers are accepted, and likewise for
// footers.
func NewPEMReader(label string) *PEMReader {
	return NewPEMReaderWithDecoder(label, DERDecoderFunc(DecodeDER))
}

// NewPEMReaderWithDecoder is NewPEMReader with a caller-supplied DER decoder.
func NewPEMReaderWithDecoder(label string, decoder DERDecoder) *PEMReader {
	return &PEMReader{
		label: label,
		headers: [2]string{
			"-----BEGIN " + label + "-----",
			"-----BEGIN X509 " + label + "-----",
		},
		footers: [2]string{
			"-----END " + label + "-----",
			"-----END X509 " + label + "-----",
		},
		decoder: decoder,
	}
}

// Label returns the object type label the reader was built with.
func (p *PEMReader) Label() string {
	return p.label
}

type scanState int

const (
	seekingHeader scanState = iota
	readingBody
)

// ReadObject consumes r up to and including the next matching footer line and
// returns the decoded SEQUENCE. It returns (nil, nil) when the stream ends
// before a complete envelope, or when the envelope body is empty. Payloads
// that are not valid base64, not valid DER, or not a SEQUENCE produce a
// *MalformedInputError.
//
// When r does not implement io.ByteReader it is wrapped in a bufio.Reader for
// the duration of the call; wrap r once up front to read several objects.
func (p *PEMReader) ReadObject(r io.Reader) (*Object, error) {
	obj, _, err := p.ReadNext(r)
	return obj, err
}

// ReadNext is ReadObject for callers walking a stream of envelopes. more is
// false only when r ended before another complete envelope; an empty envelope
// yields (nil, true, nil) and the walk should go on to the next one.
func (p *PEMReader) ReadNext(r io.Reader) (obj *Object, more bool, err error) {
	lines := newLineReader(r)
	state := seekingHeader
	var body strings.Builder

	for {
		line, ok, err := lines.next()
		if err != nil {
			return nil, false, err
		}
		if !ok {
			// Unterminated envelopes are dropped without decoding.
			return nil, false, nil
		}

		switch state {
		case seekingHeader:
			if hasAnyPrefix(line, p.headers) {
				state = readingBody
			}
		case readingBody:
			if hasAnyPrefix(line, p.footers) {
				obj, err := p.decode(body.String())
				return obj, true, err
			}
			// encoding/pem tolerates trailing blanks on body lines.
			body.WriteString(strings.TrimRight(line, " \t"))
		}
	}
}

func hasAnyPrefix(line string, prefixes [2]string) bool {
	return strings.HasPrefix(line, prefixes[0]) || strings.HasPrefix(line, prefixes[1])
}
