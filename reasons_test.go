package revcheck

import (
	"encoding/asn1"
	"slices"
	"testing"
)

func TestAllReasons_IsAllReasons(t *testing.T) {
	// WHY: The full mask is the termination condition of the coverage loop;
	// if it ever stopped being recognized, every check would end undetermined.
	t.Parallel()

	if !AllReasons().IsAllReasons() {
		t.Fatal("AllReasons().IsAllReasons() = false")
	}
	if got := AllReasons().Reasons(); got != 0x01FF {
		t.Errorf("AllReasons bits = %#04x, want 0x01ff", got)
	}
	if len(AllReasons().List()) != len(reasonTable) {
		t.Errorf("AllReasons lists %d reasons, want %d", len(AllReasons().List()), len(reasonTable))
	}
}

func TestReasonMask_IsAllReasons(t *testing.T) {
	// WHY: Only the exact full set counts. Partial masks and masks carrying
	// bits outside the enumeration must not end the loop early.
	t.Parallel()

	allButOne := AllReasons().Reasons() &^ ReasonAACompromise.mask()

	tests := []struct {
		name string
		mask ReasonMask
		want bool
	}{
		{"zero value", ReasonMask{}, false},
		{"single reason", NewReasonMask(ReasonKeyCompromise), false},
		{"all but one", ReasonMaskFromBits(allButOne), false},
		{"every enumerated reason", NewReasonMask(
			ReasonUnused, ReasonKeyCompromise, ReasonCACompromise,
			ReasonAffiliationChanged, ReasonSuperseded, ReasonCessationOfOperation,
			ReasonCertificateHold, ReasonPrivilegeWithdrawn, ReasonAACompromise,
		), true},
		{"extraneous bit", ReasonMaskFromBits(AllReasons().Reasons() | 1<<12), false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.mask.IsAllReasons(); got != tt.want {
				t.Errorf("IsAllReasons() = %v, want %v (bits %#04x)", got, tt.want, tt.mask.Reasons())
			}
		})
	}
}

func TestReasonMask_Union(t *testing.T) {
	// WHY: Union accumulates coverage in place; it must be commutative and
	// idempotent so the order CRLs are consulted in does not matter.
	t.Parallel()

	a := NewReasonMask(ReasonKeyCompromise, ReasonSuperseded)
	b := NewReasonMask(ReasonSuperseded, ReasonCertificateHold)

	ab := a
	ab.Union(b)
	ba := b
	ba.Union(a)
	if ab != ba {
		t.Errorf("union not commutative: %v vs %v", ab, ba)
	}
	want := NewReasonMask(ReasonKeyCompromise, ReasonSuperseded, ReasonCertificateHold)
	if ab != want {
		t.Errorf("union = %v, want %v", ab, want)
	}

	again := ab
	again.Union(b)
	if again != ab {
		t.Errorf("union not idempotent: %v vs %v", again, ab)
	}

	if a != NewReasonMask(ReasonKeyCompromise, ReasonSuperseded) {
		t.Error("union through a copy mutated the original")
	}
}

func TestReasonMask_Intersect(t *testing.T) {
	// WHY: Intersect is the bitwise AND of the operands and leaves both
	// untouched; the coverage loop relies on it to compute interim masks.
	t.Parallel()

	tests := []struct {
		name string
		a, b uint16
	}{
		{"disjoint", 0x0003, 0x000C},
		{"overlap", 0x00F0, 0x0130},
		{"with all", 0x0042, 0x01FF},
		{"with empty", 0x01FF, 0x0000},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			a, b := ReasonMaskFromBits(tt.a), ReasonMaskFromBits(tt.b)
			got := a.Intersect(b)
			if got.Reasons() != tt.a&tt.b {
				t.Errorf("Intersect = %#04x, want %#04x", got.Reasons(), tt.a&tt.b)
			}
			if a.Reasons() != tt.a || b.Reasons() != tt.b {
				t.Error("Intersect mutated an operand")
			}
		})
	}
}

func TestReasonMask_HasNewReasons(t *testing.T) {
	// WHY: HasNewReasons decides whether a CRL is worth consulting at all.
	// A strict superset has something new; once unioned in, it no longer does.
	t.Parallel()

	m := NewReasonMask(ReasonKeyCompromise)
	other := NewReasonMask(ReasonKeyCompromise, ReasonCACompromise)

	if !m.HasNewReasons(other) {
		t.Fatal("{keyCompromise}.HasNewReasons({keyCompromise, cACompromise}) = false")
	}
	m.Union(other)
	if m.HasNewReasons(other) {
		t.Error("HasNewReasons still true after union")
	}

	tests := []struct {
		name  string
		m     ReasonMask
		other ReasonMask
		want  bool
	}{
		{"empty other", NewReasonMask(ReasonSuperseded), ReasonMask{}, false},
		{"subset", AllReasons(), NewReasonMask(ReasonCertificateHold), false},
		{"disjoint", NewReasonMask(ReasonSuperseded), NewReasonMask(ReasonCertificateHold), true},
		{"empty self", ReasonMask{}, NewReasonMask(ReasonUnused), true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.m.HasNewReasons(tt.other); got != tt.want {
				t.Errorf("HasNewReasons = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReasonMask_BitString(t *testing.T) {
	// WHY: Masks are read from and written to DER ReasonFlags. The encoding
	// must be minimal and use RFC 5280 named-bit positions.
	t.Parallel()

	tests := []struct {
		name      string
		mask      ReasonMask
		wantBytes []byte
		wantLen   int
	}{
		{"empty", ReasonMask{}, nil, 0},
		{"keyCompromise", NewReasonMask(ReasonKeyCompromise), []byte{0x40}, 2},
		{"superseded and hold", NewReasonMask(ReasonSuperseded, ReasonCertificateHold), []byte{0x0A}, 7},
		{"aACompromise", NewReasonMask(ReasonAACompromise), []byte{0x00, 0x80}, 9},
		{"all", AllReasons(), []byte{0xFF, 0x80}, 9},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			bs := tt.mask.BitString()
			if bs.BitLength != tt.wantLen || !slices.Equal(bs.Bytes, tt.wantBytes) {
				t.Errorf("BitString = %x/%d, want %x/%d", bs.Bytes, bs.BitLength, tt.wantBytes, tt.wantLen)
			}
			if back := ReasonMaskFromBitString(bs); back != tt.mask {
				t.Errorf("ReasonMaskFromBitString(BitString()) = %v, want %v", back, tt.mask)
			}
		})
	}
}

func TestReasonMaskFromBitString_IgnoresUnknownBits(t *testing.T) {
	// WHY: Peers may set named bits this package does not know; they are
	// dropped rather than leaking into the mask and blocking IsAllReasons.
	t.Parallel()

	bs := asn1.BitString{Bytes: []byte{0xFF, 0xFF}, BitLength: 16}
	m := ReasonMaskFromBitString(bs)
	if !m.IsAllReasons() {
		t.Errorf("mask = %#04x, want all reasons", m.Reasons())
	}
}

func TestReasonMask_String(t *testing.T) {
	// WHY: String output appears in CLI results and logs.
	t.Parallel()

	tests := []struct {
		mask ReasonMask
		want string
	}{
		{ReasonMask{}, "none"},
		{AllReasons(), "all"},
		{NewReasonMask(ReasonCACompromise, ReasonKeyCompromise), "keyCompromise, cACompromise"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			if got := tt.mask.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReasonMask_Contains(t *testing.T) {
	// WHY: Contains must honor only enumerated reasons.
	t.Parallel()

	m := NewReasonMask(ReasonPrivilegeWithdrawn)
	if !m.Contains(ReasonPrivilegeWithdrawn) {
		t.Error("Contains(privilegeWithdrawn) = false")
	}
	if m.Contains(ReasonKeyCompromise) {
		t.Error("Contains(keyCompromise) = true")
	}
	if AllReasons().Contains(Reason(42)) {
		t.Error("Contains(unknown reason) = true")
	}
	if !(ReasonMask{}).IsEmpty() || m.IsEmpty() {
		t.Error("IsEmpty misreports")
	}
}

func TestParseReason(t *testing.T) {
	// WHY: Policy files name reasons by their RFC 5280 identifiers, in any case.
	t.Parallel()

	for _, e := range reasonTable {
		r, ok := ParseReason(e.name)
		if !ok || r != e.reason {
			t.Errorf("ParseReason(%q) = %v, %v", e.name, r, ok)
		}
	}
	if r, ok := ParseReason("KEYCOMPROMISE"); !ok || r != ReasonKeyCompromise {
		t.Errorf("ParseReason is case-sensitive: got %v, %v", r, ok)
	}
	if _, ok := ParseReason("removeFromCRL"); ok {
		t.Error("ParseReason accepted a CRL entry reason that is not a ReasonFlags bit")
	}
	if got := Reason(99).String(); got != "unknown" {
		t.Errorf("Reason(99).String() = %q", got)
	}
}
