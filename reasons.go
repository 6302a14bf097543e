package revcheck

import (
	"encoding/asn1"
	"strings"
)

// Reason is one of the named bits of the RFC 5280 ReasonFlags BIT STRING.
type Reason int

const (
	ReasonUnused Reason = iota
	ReasonKeyCompromise
	ReasonCACompromise
	ReasonAffiliationChanged
	ReasonSuperseded
	ReasonCessationOfOperation
	ReasonCertificateHold
	ReasonPrivilegeWithdrawn
	ReasonAACompromise
)

// reasonTable is the closed set of revocation reasons and the ReasonFlags bit
// each one occupies. allReasonsBits is derived from it.
var reasonTable = []struct {
	reason Reason
	bit    uint
	name   string
}{
	{ReasonUnused, 0, "unused"},
	{ReasonKeyCompromise, 1, "keyCompromise"},
	{ReasonCACompromise, 2, "cACompromise"},
	{ReasonAffiliationChanged, 3, "affiliationChanged"},
	{ReasonSuperseded, 4, "superseded"},
	{ReasonCessationOfOperation, 5, "cessationOfOperation"},
	{ReasonCertificateHold, 6, "certificateHold"},
	{ReasonPrivilegeWithdrawn, 7, "privilegeWithdrawn"},
	{ReasonAACompromise, 8, "aACompromise"},
}

var allReasonsBits = func() uint16 {
	var bits uint16
	for _, e := range reasonTable {
		bits |= 1 << e.bit
	}
	return bits
}()

func (r Reason) mask() uint16 {
	for _, e := range reasonTable {
		if e.reason == r {
			return 1 << e.bit
		}
	}
	return 0
}

// String returns the RFC 5280 name of the reason.
func (r Reason) String() string {
	for _, e := range reasonTable {
		if e.reason == r {
			return e.name
		}
	}
	return "unknown"
}

// ParseReason maps an RFC 5280 reason name (case-insensitive) to a Reason.
func ParseReason(name string) (Reason, bool) {
	for _, e := range reasonTable {
		if strings.EqualFold(e.name, name) {
			return e.reason, true
		}
	}
	return 0, false
}

// ReasonMask is the set of revocation reasons covered so far while checking
// one certificate. The zero value is the empty mask. A mask is owned by a
// single check and is not safe for concurrent mutation.
type ReasonMask struct {
	bits uint16
}

// NewReasonMask returns a mask with exactly the given reasons set.
func NewReasonMask(reasons ...Reason) ReasonMask {
	var m ReasonMask
	for _, r := range reasons {
		m.bits |= r.mask()
	}
	return m
}

// AllReasons returns the mask containing every reason.
func AllReasons() ReasonMask {
	return ReasonMask{bits: allReasonsBits}
}

// ReasonMaskFromBits wraps a raw bit pattern, bit n being ReasonFlags named
// bit n. Bits outside the enumeration are kept.
func ReasonMaskFromBits(bits uint16) ReasonMask {
	return ReasonMask{bits: bits}
}

// ReasonMaskFromBitString converts a DER ReasonFlags BIT STRING. Named bits
// beyond the enumeration are ignored.
func ReasonMaskFromBitString(bs asn1.BitString) ReasonMask {
	var m ReasonMask
	for _, e := range reasonTable {
		if bs.At(int(e.bit)) == 1 {
			m.bits |= 1 << e.bit
		}
	}
	return m
}

// Union adds other's reasons to m.
func (m *ReasonMask) Union(other ReasonMask) {
	m.bits |= other.bits
}

// Intersect returns the reasons present in both m and other.
func (m ReasonMask) Intersect(other ReasonMask) ReasonMask {
	return ReasonMask{bits: m.bits & other.bits}
}

// IsAllReasons reports whether m is exactly the full reason set. Masks that
// carry bits outside the enumeration do not qualify.
func (m ReasonMask) IsAllReasons() bool {
	return m.bits == allReasonsBits
}

// HasNewReasons reports whether other holds at least one reason m lacks.
func (m ReasonMask) HasNewReasons(other ReasonMask) bool {
	return other.bits&^m.bits != 0
}

// Reasons returns the raw bit pattern.
func (m ReasonMask) Reasons() uint16 {
	return m.bits
}

// Contains reports whether r is in m.
func (m ReasonMask) Contains(r Reason) bool {
	bit := r.mask()
	return bit != 0 && m.bits&bit != 0
}

// IsEmpty reports whether no reason is set.
func (m ReasonMask) IsEmpty() bool {
	return m.bits == 0
}

// List returns the reasons in m in bit order.
func (m ReasonMask) List() []Reason {
	var out []Reason
	for _, e := range reasonTable {
		if m.bits&(1<<e.bit) != 0 {
			out = append(out, e.reason)
		}
	}
	return out
}

// Names returns the RFC 5280 names of the reasons in m.
func (m ReasonMask) Names() []string {
	reasons := m.List()
	names := make([]string, 0, len(reasons))
	for _, r := range reasons {
		names = append(names, r.String())
	}
	return names
}

// String renders the mask as "all", "none", or a comma-separated name list.
func (m ReasonMask) String() string {
	switch {
	case m.IsAllReasons():
		return "all"
	case m.bits == 0:
		return "none"
	default:
		return strings.Join(m.Names(), ", ")
	}
}

// BitString encodes m as a minimal DER ReasonFlags BIT STRING.
func (m ReasonMask) BitString() asn1.BitString {
	if m.bits == 0 {
		return asn1.BitString{}
	}
	highest := 15
	for m.bits&(1<<uint(highest)) == 0 {
		highest--
	}
	bs := asn1.BitString{
		Bytes:     make([]byte, highest/8+1),
		BitLength: highest + 1,
	}
	for i := 0; i <= highest; i++ {
		if m.bits&(1<<uint(i)) != 0 {
			bs.Bytes[i/8] |= 0x80 >> uint(i%8)
		}
	}
	return bs
}
