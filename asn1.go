package revcheck

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// Object is a single decoded DER element.
type Object struct {
	// Tag is the element's identifier octet, class and constructed bit included.
	Tag cbasn1.Tag
	// FullBytes is the complete DER encoding, header included.
	FullBytes []byte
	// Content is the element body without the tag and length.
	Content []byte
}

// IsSequence reports whether the object is a constructed universal SEQUENCE.
func (o *Object) IsSequence() bool {
	return o != nil && o.Tag == cbasn1.SEQUENCE
}

// Elements decodes the immediate children of a constructed object.
func (o *Object) Elements() ([]*Object, error) {
	if o.Tag&0x20 == 0 {
		return nil, fmt.Errorf("tag 0x%02x is not constructed", uint8(o.Tag))
	}
	var children []*Object
	s := cryptobyte.String(o.Content)
	for !s.Empty() {
		child, err := readElement(&s)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", len(children), err)
		}
		children = append(children, child)
	}
	return children, nil
}

// DERDecoder turns a DER buffer into exactly one top-level element.
type DERDecoder interface {
	DecodeDER(der []byte) (*Object, error)
}

// DERDecoderFunc adapts a plain function to DERDecoder.
type DERDecoderFunc func(der []byte) (*Object, error)

// DecodeDER calls f(der).
func (f DERDecoderFunc) DecodeDER(der []byte) (*Object, error) {
	return f(der)
}

// DecodeDER decodes a single top-level DER element. Empty input and bytes
// left over after the element are errors.
func DecodeDER(der []byte) (*Object, error) {
	if len(der) == 0 {
		return nil, errors.New("empty DER input")
	}
	s := cryptobyte.String(der)
	obj, err := readElement(&s)
	if err != nil {
		return nil, err
	}
	if !s.Empty() {
		return nil, fmt.Errorf("%w (%d bytes)", ErrTrailingData, len(s))
	}
	return obj, nil
}

func readElement(s *cryptobyte.String) (*Object, error) {
	var elem cryptobyte.String
	var tag cbasn1.Tag
	if !s.ReadAnyASN1Element(&elem, &tag) {
		return nil, errors.New("invalid DER element")
	}
	full := []byte(elem)
	var content cryptobyte.String
	if !elem.ReadAnyASN1(&content, &tag) {
		return nil, errors.New("invalid DER element body")
	}
	return &Object{Tag: tag, FullBytes: full, Content: []byte(content)}, nil
}
