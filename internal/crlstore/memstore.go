package crlstore

import (
	"crypto/x509"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/sensiblebit/revcheck"
)

// CertRecord holds a parsed certificate and its computed metadata.
type CertRecord struct {
	Cert     *x509.Certificate
	CertType string // "root", "intermediate", "leaf"
	KeyType  string // e.g. "RSA 2048 bits", "ECDSA P-256"
	Source   string // filename that contributed this cert
}

// CRLRecord holds a parsed CRL and its computed metadata.
type CRLRecord struct {
	CRL         *x509.RevocationList
	Fingerprint string                             // hex SHA-256 of the DER encoding
	Scope       *revcheck.IssuingDistributionPoint // nil for a full CRL
	Source      string                             // filename or URL that contributed this CRL
}

// Stale reports whether the CRL's nextUpdate lies before at. CRLs without a
// nextUpdate never go stale.
func (r *CRLRecord) Stale(at time.Time) bool {
	return !r.CRL.NextUpdate.IsZero() && at.After(r.CRL.NextUpdate)
}

// certID returns the composite key for deduplication, matching the SQLite
// primary key of (serial_number, authority_key_identifier).
func certID(cert *x509.Certificate) string {
	return cert.SerialNumber.String() + "\x00" + hex.EncodeToString(cert.AuthorityKeyId)
}

// MemStore is an in-memory certificate and CRL catalog that implements
// Handler. CRLs are indexed by the raw issuer name so the revocation check
// only sees lists from the certificate's own issuer.
type MemStore struct {
	certsByID    map[string]*CertRecord  // composite "serial\x00akiHex" → cert
	crlsByFP     map[string]*CRLRecord   // SHA-256 fingerprint → CRL
	crlsByIssuer map[string][]*CRLRecord // raw issuer DER → CRLs
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		certsByID:    make(map[string]*CertRecord),
		crlsByFP:     make(map[string]*CRLRecord),
		crlsByIssuer: make(map[string][]*CRLRecord),
	}
}

// HandleCertificate stores the certificate. Certificates are deduplicated by
// (serial, AKI), the same composite key the SQLite schema uses.
func (s *MemStore) HandleCertificate(cert *x509.Certificate, source string) error {
	if cert == nil {
		return errors.New("certificate is nil")
	}
	id := certID(cert)
	if _, exists := s.certsByID[id]; exists {
		return nil
	}
	s.certsByID[id] = &CertRecord{
		Cert:     cert,
		CertType: revcheck.GetCertificateType(cert),
		KeyType:  GetKeyType(cert),
		Source:   source,
	}
	return nil
}

// HandleRevocationList stores the CRL, deduplicated by fingerprint. CRLs
// whose issuingDistributionPoint cannot be decoded are rejected, since their
// scope would be unknown.
func (s *MemStore) HandleRevocationList(crl *x509.RevocationList, source string) error {
	if crl == nil {
		return errors.New("CRL is nil")
	}
	fp := revcheck.CRLFingerprint(crl)
	if _, exists := s.crlsByFP[fp]; exists {
		return nil
	}
	scope, err := revcheck.ParseIssuingDistributionPoint(crl)
	if err != nil {
		return fmt.Errorf("parsing issuing distribution point: %w", err)
	}
	rec := &CRLRecord{CRL: crl, Fingerprint: fp, Scope: scope, Source: source}
	s.crlsByFP[fp] = rec
	key := string(crl.RawIssuer)
	s.crlsByIssuer[key] = append(s.crlsByIssuer[key], rec)
	return nil
}

// CRLsForIssuer returns the CRLs issued by cert's issuer, newest thisUpdate
// first.
func (s *MemStore) CRLsForIssuer(cert *x509.Certificate) []*x509.RevocationList {
	recs := slices.Clone(s.crlsByIssuer[string(cert.RawIssuer)])
	slices.SortStableFunc(recs, func(a, b *CRLRecord) int {
		return b.CRL.ThisUpdate.Compare(a.CRL.ThisUpdate)
	})
	crls := make([]*x509.RevocationList, 0, len(recs))
	for _, rec := range recs {
		crls = append(crls, rec.CRL)
	}
	return crls
}

// CheckCertificate runs the reason-coverage revocation check for cert against
// every CRL in the store from the same issuer.
func (s *MemStore) CheckCertificate(cert *x509.Certificate) (*revcheck.RevocationResult, error) {
	return revcheck.CheckRevocation(cert, s.CRLsForIssuer(cert))
}

// Issuer returns the latest-expiring certificate whose subject matches
// cert's issuer, or nil. A self-signed certificate is its own issuer.
func (s *MemStore) Issuer(cert *x509.Certificate) *x509.Certificate {
	var best *x509.Certificate
	for _, rec := range s.certsByID {
		if string(rec.Cert.RawSubject) != string(cert.RawIssuer) {
			continue
		}
		if best == nil || rec.Cert.NotAfter.After(best.NotAfter) {
			best = rec.Cert
		}
	}
	return best
}

// HasIssuer reports whether the store contains an issuer for cert other than
// cert itself.
func (s *MemStore) HasIssuer(cert *x509.Certificate) bool {
	for _, rec := range s.certsByID {
		if rec.Cert.Equal(cert) {
			continue
		}
		if string(rec.Cert.RawSubject) == string(cert.RawIssuer) {
			return true
		}
	}
	return false
}

// AllCertsFlat returns all certificate records sorted by common name and
// serial number.
func (s *MemStore) AllCertsFlat() []*CertRecord {
	result := make([]*CertRecord, 0, len(s.certsByID))
	for _, rec := range s.certsByID {
		result = append(result, rec)
	}
	slices.SortFunc(result, func(a, b *CertRecord) int {
		if c := strings.Compare(FormatCN(a.Cert), FormatCN(b.Cert)); c != 0 {
			return c
		}
		return a.Cert.SerialNumber.Cmp(b.Cert.SerialNumber)
	})
	return result
}

// AllCRLsFlat returns all CRL records sorted by issuer and newest thisUpdate
// first.
func (s *MemStore) AllCRLsFlat() []*CRLRecord {
	result := make([]*CRLRecord, 0, len(s.crlsByFP))
	for _, rec := range s.crlsByFP {
		result = append(result, rec)
	}
	slices.SortFunc(result, func(a, b *CRLRecord) int {
		if c := strings.Compare(a.CRL.Issuer.String(), b.CRL.Issuer.String()); c != 0 {
			return c
		}
		if c := b.CRL.ThisUpdate.Compare(a.CRL.ThisUpdate); c != 0 {
			return c
		}
		return strings.Compare(a.Fingerprint, b.Fingerprint)
	})
	return result
}

// GetCRL returns the CRL record with the given fingerprint, or nil.
func (s *MemStore) GetCRL(fingerprint string) *CRLRecord {
	return s.crlsByFP[fingerprint]
}

// CertCount returns the number of stored certificates.
func (s *MemStore) CertCount() int {
	return len(s.certsByID)
}

// CRLCount returns the number of stored CRLs.
func (s *MemStore) CRLCount() int {
	return len(s.crlsByFP)
}

// ScanSummary returns aggregate counts of stored certificates and CRLs, and
// the revocation status of every non-root certificate.
func (s *MemStore) ScanSummary(input ScanSummaryInput) ScanSummary {
	at := input.At
	if at.IsZero() {
		at = time.Now()
	}

	var summary ScanSummary
	for _, rec := range s.crlsByFP {
		summary.CRLs++
		summary.RevokedEntries += len(rec.CRL.RevokedCertificateEntries)
		if rec.Stale(at) {
			summary.StaleCRLs++
		}
	}

	for _, rec := range s.certsByID {
		switch rec.CertType {
		case "root":
			summary.Roots++
			continue
		case "intermediate":
			summary.Intermediates++
		case "leaf":
			summary.Leaves++
		}

		res, err := s.CheckCertificate(rec.Cert)
		if err != nil {
			slog.Debug("checking certificate", "cn", FormatCN(rec.Cert), "error", err)
			summary.Undetermined++
			continue
		}
		switch res.Status {
		case revcheck.StatusGood:
			summary.Good++
		case revcheck.StatusRevoked:
			summary.Revoked++
		default:
			summary.Undetermined++
		}
	}
	return summary
}

// DumpDebug logs all certificates and CRLs at debug level.
func (s *MemStore) DumpDebug() {
	slog.Debug("dumping certificates")
	for id, rec := range s.certsByID {
		slog.Debug("certificate details",
			"id", id,
			"cn", FormatCN(rec.Cert),
			"serial", rec.Cert.SerialNumber.String(),
			"type", rec.CertType,
			"key_type", rec.KeyType,
			"crl_urls", rec.Cert.CRLDistributionPoints,
			"expiry", rec.Cert.NotAfter.Format(time.RFC3339))
	}
	slog.Debug("total certificates", "count", len(s.certsByID))

	slog.Debug("dumping CRLs")
	for fp, rec := range s.crlsByFP {
		slog.Debug("CRL details",
			"fingerprint", fp,
			"issuer", FormatIssuerCN(rec.CRL),
			"entries", len(rec.CRL.RevokedCertificateEntries),
			"this_update", rec.CRL.ThisUpdate.Format(time.RFC3339),
			"partitioned", rec.Scope != nil)
	}
	slog.Debug("total CRLs", "count", len(s.crlsByFP))
}

// Reset clears all stored certificates and CRLs.
func (s *MemStore) Reset() {
	s.certsByID = make(map[string]*CertRecord)
	s.crlsByFP = make(map[string]*CRLRecord)
	s.crlsByIssuer = make(map[string][]*CRLRecord)
}
