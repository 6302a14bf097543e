package revcheck

import (
	"bytes"
	"crypto/x509"
	"errors"
	"fmt"
	"slices"
	"time"
)

// RevocationStatus is the outcome of a CRL-based revocation check.
type RevocationStatus int

const (
	// StatusUndetermined means the CRLs examined did not cover every reason.
	StatusUndetermined RevocationStatus = iota
	// StatusGood means every reason was covered and no CRL lists the serial.
	StatusGood
	// StatusRevoked means a covering CRL lists the serial.
	StatusRevoked
)

func (s RevocationStatus) String() string {
	switch s {
	case StatusGood:
		return "good"
	case StatusRevoked:
		return "revoked"
	default:
		return "undetermined"
	}
}

// crlReasonRemoveFromCRL is the CRLReason code used by delta CRLs to lift a hold.
const crlReasonRemoveFromCRL = 8

var crlReasonNames = map[int]string{
	0:  "unspecified",
	1:  "keyCompromise",
	2:  "cACompromise",
	3:  "affiliationChanged",
	4:  "superseded",
	5:  "cessationOfOperation",
	6:  "certificateHold",
	8:  "removeFromCRL",
	9:  "privilegeWithdrawn",
	10: "aACompromise",
}

// CRLReasonName returns the RFC 5280 name of a CRL entry reasonCode.
func CRLReasonName(code int) string {
	if name, ok := crlReasonNames[code]; ok {
		return name
	}
	return fmt.Sprintf("reason(%d)", code)
}

// RevocationResult describes what a set of CRLs says about one certificate.
type RevocationResult struct {
	Status RevocationStatus
	// Covered holds the reasons for which a CRL was actually consulted.
	Covered ReasonMask
	// ConsultedCRLs counts CRLs that contributed new reasons.
	ConsultedCRLs int
	// RevokedAt and ReasonCode are set when Status is StatusRevoked.
	RevokedAt  time.Time
	ReasonCode int
	// Warnings lists distribution points and CRLs that could not be used.
	Warnings []string
}

// CheckRevocation walks the certificate's CRL distribution points and the
// supplied CRLs, accumulating the reasons covered until either the serial is
// found, every reason is covered, or the CRLs run out. A certificate without
// the extension is treated as having one distribution point for all reasons.
// CRL signatures are not verified here.
func CheckRevocation(cert *x509.Certificate, crls []*x509.RevocationList) (*RevocationResult, error) {
	if cert == nil {
		return nil, errors.New("certificate is nil")
	}

	points, err := ParseDistributionPoints(cert)
	if err != nil {
		return nil, fmt.Errorf("parsing CRL distribution points: %w", err)
	}
	if len(points) == 0 {
		points = []DistributionPoint{{Reasons: AllReasons()}}
	}

	scopes := make([]*IssuingDistributionPoint, len(crls))
	for i, crl := range crls {
		idp, err := ParseIssuingDistributionPoint(crl)
		if err != nil {
			return nil, fmt.Errorf("parsing issuing distribution point of CRL %d: %w", i, err)
		}
		scopes[i] = idp
	}

	result := &RevocationResult{}
	var mask ReasonMask

	for _, dp := range points {
		if dp.HasCRLIssuer {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("distribution point %v names a CRL issuer; indirect CRLs are not supported", dp.URIs))
			continue
		}
		for i, crl := range crls {
			if !bytes.Equal(crl.RawIssuer, cert.RawIssuer) {
				continue
			}
			idp := scopes[i]
			if !scopeAdmits(idp, cert, dp) {
				continue
			}

			interim := dp.Reasons
			if idp != nil {
				interim = interim.Intersect(idp.OnlySomeReasons)
			}
			if !mask.HasNewReasons(interim) {
				continue
			}
			result.ConsultedCRLs++

			if entry := findEntry(crl, cert); entry != nil {
				result.Status = StatusRevoked
				result.RevokedAt = entry.RevocationTime
				result.ReasonCode = entry.ReasonCode
				mask.Union(interim)
				result.Covered = mask
				return result, nil
			}

			mask.Union(interim)
			if mask.IsAllReasons() {
				result.Status = StatusGood
				result.Covered = mask
				return result, nil
			}
		}
	}

	result.Covered = mask
	result.Status = StatusUndetermined
	return result, nil
}

// scopeAdmits applies the issuingDistributionPoint restrictions of a CRL to
// cert and the distribution point being processed.
func scopeAdmits(idp *IssuingDistributionPoint, cert *x509.Certificate, dp DistributionPoint) bool {
	if idp == nil {
		return true
	}
	if idp.IndirectCRL || idp.OnlyContainsAttributeCerts {
		return false
	}
	if idp.OnlyContainsUserCerts && cert.IsCA {
		return false
	}
	if idp.OnlyContainsCACerts && !cert.IsCA {
		return false
	}
	if len(idp.URIs) == 0 {
		return true
	}
	for _, uri := range dp.URIs {
		if slices.Contains(idp.URIs, uri) {
			return true
		}
	}
	return false
}

func findEntry(crl *x509.RevocationList, cert *x509.Certificate) *x509.RevocationListEntry {
	for i := range crl.RevokedCertificateEntries {
		entry := &crl.RevokedCertificateEntries[i]
		if entry.SerialNumber.Cmp(cert.SerialNumber) != 0 {
			continue
		}
		if entry.ReasonCode == crlReasonRemoveFromCRL {
			return nil
		}
		return entry
	}
	return nil
}
