package revcheck

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

var (
	oidExtCRLDistributionPoints = asn1.ObjectIdentifier{2, 5, 29, 31}
	oidExtIssuingDistPoint      = asn1.ObjectIdentifier{2, 5, 29, 28}
)

// GeneralName tags used by distribution point names.
var tagURI = cbasn1.Tag(6).ContextSpecific()

// DistributionPoint is one entry of a certificate's cRLDistributionPoints
// extension.
type DistributionPoint struct {
	// URIs are the uniformResourceIdentifier full names of the point.
	URIs []string
	// Reasons is the reasons field, or AllReasons when the field is absent.
	Reasons ReasonMask
	// HasReasons records whether the reasons field was present.
	HasReasons bool
	// HasCRLIssuer records a cRLIssuer field, which means the CRL for this
	// point is indirect.
	HasCRLIssuer bool
}

// IssuingDistributionPoint is the scope declared by a CRL's
// issuingDistributionPoint extension.
type IssuingDistributionPoint struct {
	URIs                       []string
	OnlyContainsUserCerts      bool
	OnlyContainsCACerts        bool
	OnlySomeReasons            ReasonMask // AllReasons when absent
	HasOnlySomeReasons         bool
	IndirectCRL                bool
	OnlyContainsAttributeCerts bool
}

func findExtension(exts []pkix.Extension, oid asn1.ObjectIdentifier) *pkix.Extension {
	for i := range exts {
		if exts[i].Id.Equal(oid) {
			return &exts[i]
		}
	}
	return nil
}

// ParseDistributionPoints decodes the cRLDistributionPoints extension of cert.
// It returns nil when the extension is absent.
func ParseDistributionPoints(cert *x509.Certificate) ([]DistributionPoint, error) {
	ext := findExtension(cert.Extensions, oidExtCRLDistributionPoints)
	if ext == nil {
		return nil, nil
	}

	val := cryptobyte.String(ext.Value)
	var seq cryptobyte.String
	if !val.ReadASN1(&seq, cbasn1.SEQUENCE) || !val.Empty() {
		return nil, errors.New("malformed CRL distribution points extension")
	}

	var points []DistributionPoint
	for !seq.Empty() {
		var dpDER cryptobyte.String
		if !seq.ReadASN1(&dpDER, cbasn1.SEQUENCE) {
			return nil, fmt.Errorf("malformed distribution point %d", len(points))
		}
		dp, err := parseDistributionPoint(dpDER)
		if err != nil {
			return nil, fmt.Errorf("distribution point %d: %w", len(points), err)
		}
		points = append(points, dp)
	}
	return points, nil
}

func parseDistributionPoint(der cryptobyte.String) (DistributionPoint, error) {
	dp := DistributionPoint{Reasons: AllReasons()}

	var name cryptobyte.String
	var hasName bool
	if !der.ReadOptionalASN1(&name, &hasName, cbasn1.Tag(0).Constructed().ContextSpecific()) {
		return dp, errors.New("malformed distributionPoint field")
	}
	if hasName {
		uris, err := parseDistributionPointName(name)
		if err != nil {
			return dp, err
		}
		dp.URIs = uris
	}

	var reasons cryptobyte.String
	if !der.ReadOptionalASN1(&reasons, &dp.HasReasons, cbasn1.Tag(1).ContextSpecific()) {
		return dp, errors.New("malformed reasons field")
	}
	if dp.HasReasons {
		bs, err := parseBitStringContents(reasons)
		if err != nil {
			return dp, fmt.Errorf("reasons: %w", err)
		}
		dp.Reasons = ReasonMaskFromBitString(bs)
	}

	var issuer cryptobyte.String
	if !der.ReadOptionalASN1(&issuer, &dp.HasCRLIssuer, cbasn1.Tag(2).Constructed().ContextSpecific()) {
		return dp, errors.New("malformed cRLIssuer field")
	}
	if !der.Empty() {
		return dp, errors.New("trailing data in distribution point")
	}
	return dp, nil
}

// parseDistributionPointName returns the URIs of a fullName choice. A
// nameRelativeToCRLIssuer choice yields no URIs.
func parseDistributionPointName(name cryptobyte.String) ([]string, error) {
	var full cryptobyte.String
	var hasFull bool
	if !name.ReadOptionalASN1(&full, &hasFull, cbasn1.Tag(0).Constructed().ContextSpecific()) {
		return nil, errors.New("malformed distribution point name")
	}
	if !hasFull {
		return nil, nil
	}
	var uris []string
	for !full.Empty() {
		var value cryptobyte.String
		var tag cbasn1.Tag
		if !full.ReadAnyASN1(&value, &tag) {
			return nil, errors.New("malformed general name")
		}
		if tag == tagURI {
			uris = append(uris, string(value))
		}
	}
	return uris, nil
}

// parseBitStringContents decodes the body of an implicitly tagged BIT STRING.
func parseBitStringContents(body cryptobyte.String) (asn1.BitString, error) {
	if len(body) == 0 {
		return asn1.BitString{}, errors.New("empty bit string")
	}
	padding := int(body[0])
	data := body[1:]
	if padding > 7 ||
		(len(data) == 0 && padding > 0) ||
		(len(data) > 0 && data[len(data)-1]&(1<<uint(padding)-1) != 0) {
		return asn1.BitString{}, errors.New("invalid bit string padding")
	}
	return asn1.BitString{Bytes: []byte(data), BitLength: len(data)*8 - padding}, nil
}

// readOptionalImplicitBool reads an IMPLICIT [n] BOOLEAN DEFAULT FALSE.
func readOptionalImplicitBool(s *cryptobyte.String, out *bool, tag cbasn1.Tag) error {
	var body cryptobyte.String
	var present bool
	if !s.ReadOptionalASN1(&body, &present, tag) {
		return fmt.Errorf("malformed [%d] boolean", uint8(tag)&0x1f)
	}
	if !present {
		*out = false
		return nil
	}
	if len(body) != 1 || (body[0] != 0x00 && body[0] != 0xff) {
		return fmt.Errorf("invalid [%d] boolean encoding", uint8(tag)&0x1f)
	}
	*out = body[0] == 0xff
	return nil
}

// ParseIssuingDistributionPoint decodes the issuingDistributionPoint extension
// of crl. It returns nil, nil when the extension is absent.
func ParseIssuingDistributionPoint(crl *x509.RevocationList) (*IssuingDistributionPoint, error) {
	ext := findExtension(crl.Extensions, oidExtIssuingDistPoint)
	if ext == nil {
		return nil, nil
	}

	val := cryptobyte.String(ext.Value)
	var seq cryptobyte.String
	if !val.ReadASN1(&seq, cbasn1.SEQUENCE) || !val.Empty() {
		return nil, errors.New("malformed issuing distribution point extension")
	}

	idp := &IssuingDistributionPoint{OnlySomeReasons: AllReasons()}

	var name cryptobyte.String
	var hasName bool
	if !seq.ReadOptionalASN1(&name, &hasName, cbasn1.Tag(0).Constructed().ContextSpecific()) {
		return nil, errors.New("malformed issuing distribution point name")
	}
	if hasName {
		uris, err := parseDistributionPointName(name)
		if err != nil {
			return nil, err
		}
		idp.URIs = uris
	}

	if err := readOptionalImplicitBool(&seq, &idp.OnlyContainsUserCerts, cbasn1.Tag(1).ContextSpecific()); err != nil {
		return nil, err
	}
	if err := readOptionalImplicitBool(&seq, &idp.OnlyContainsCACerts, cbasn1.Tag(2).ContextSpecific()); err != nil {
		return nil, err
	}

	var reasons cryptobyte.String
	if !seq.ReadOptionalASN1(&reasons, &idp.HasOnlySomeReasons, cbasn1.Tag(3).ContextSpecific()) {
		return nil, errors.New("malformed onlySomeReasons field")
	}
	if idp.HasOnlySomeReasons {
		bs, err := parseBitStringContents(reasons)
		if err != nil {
			return nil, fmt.Errorf("onlySomeReasons: %w", err)
		}
		idp.OnlySomeReasons = ReasonMaskFromBitString(bs)
	}

	if err := readOptionalImplicitBool(&seq, &idp.IndirectCRL, cbasn1.Tag(4).ContextSpecific()); err != nil {
		return nil, err
	}
	if err := readOptionalImplicitBool(&seq, &idp.OnlyContainsAttributeCerts, cbasn1.Tag(5).ContextSpecific()); err != nil {
		return nil, err
	}
	if !seq.Empty() {
		return nil, errors.New("trailing data in issuing distribution point")
	}
	return idp, nil
}
