// Package revcheck provides the building blocks of CRL-based revocation
// checking: a strict single-object PEM reader, the RFC 5280 revocation reason
// mask, distribution point parsing, and the reason-coverage check that ties
// them together. Certificates and CRLs can also be loaded from DER, PKCS#7,
// PKCS#12, and JKS containers.
package revcheck

import (
	"bufio"
	"bytes"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Labels understood by the package-level readers. "X509 CRL" envelopes match
// LabelCRL through the X509 header family.
const (
	LabelCertificate = "CERTIFICATE"
	LabelCRL         = "CRL"
)

var (
	certificateReader = NewPEMReader(LabelCertificate)
	crlReader         = NewPEMReader(LabelCRL)
)

// ReadCertificates reads every CERTIFICATE envelope from r in order. It stops
// at the first malformed envelope.
func ReadCertificates(r io.Reader) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	err := readAll(r, certificateReader, func(obj *Object) error {
		cert, err := x509.ParseCertificate(obj.FullBytes)
		if err != nil {
			return fmt.Errorf("parsing certificate: %w", err)
		}
		certs = append(certs, cert)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(certs) == 0 {
		return nil, errors.New("no certificates found in PEM data")
	}
	return certs, nil
}

// ReadRevocationLists reads every CRL or X509 CRL envelope from r in order.
func ReadRevocationLists(r io.Reader) ([]*x509.RevocationList, error) {
	var crls []*x509.RevocationList
	err := readAll(r, crlReader, func(obj *Object) error {
		crl, err := x509.ParseRevocationList(obj.FullBytes)
		if err != nil {
			return fmt.Errorf("parsing CRL: %w", err)
		}
		crls = append(crls, crl)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(crls) == 0 {
		return nil, errors.New("no CRLs found in PEM data")
	}
	return crls, nil
}

// readAll drives p over a single buffered view of r until the stream is
// exhausted. Envelopes with an empty body are skipped.
func readAll(r io.Reader, p *PEMReader, fn func(*Object) error) error {
	if _, ok := r.(io.ByteReader); !ok {
		r = bufio.NewReader(r)
	}
	for {
		obj, more, err := p.ReadNext(r)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
		if obj == nil {
			continue
		}
		if err := fn(obj); err != nil {
			return err
		}
	}
}

// ParseCertificatesAny parses certificates from DER, PEM, or PKCS#7 data, in
// that order of preference.
func ParseCertificatesAny(data []byte) ([]*x509.Certificate, error) {
	cert, derErr := x509.ParseCertificate(data)
	if derErr == nil {
		return []*x509.Certificate{cert}, nil
	}
	certs, pemErr := ReadCertificates(bytes.NewReader(data))
	if pemErr == nil {
		return certs, nil
	}
	certs, _, p7Err := DecodePKCS7(data)
	if p7Err == nil && len(certs) > 0 {
		return certs, nil
	}
	if p7Err == nil {
		p7Err = errors.New("no certificates in bundle")
	}
	return nil, fmt.Errorf("not DER (%v) or PEM (%v) or PKCS#7 (%v)", derErr, pemErr, p7Err)
}

// ParseRevocationListsAny parses CRLs from DER, PEM, or PKCS#7 data, in that
// order of preference.
func ParseRevocationListsAny(data []byte) ([]*x509.RevocationList, error) {
	crl, derErr := x509.ParseRevocationList(data)
	if derErr == nil {
		return []*x509.RevocationList{crl}, nil
	}
	crls, pemErr := ReadRevocationLists(bytes.NewReader(data))
	if pemErr == nil {
		return crls, nil
	}
	_, crls, p7Err := DecodePKCS7(data)
	if p7Err == nil && len(crls) > 0 {
		return crls, nil
	}
	if p7Err == nil {
		p7Err = errors.New("no CRLs in bundle")
	}
	return nil, fmt.Errorf("not DER (%v) or PEM (%v) or PKCS#7 (%v)", derErr, pemErr, p7Err)
}

// IsPEM returns true if the data appears to contain PEM-encoded content.
func IsPEM(data []byte) bool {
	return bytes.Contains(data, []byte("-----BEGIN"))
}

// CertFingerprint returns the SHA-256 fingerprint of a certificate as a lowercase hex string.
func CertFingerprint(cert *x509.Certificate) string {
	hash := sha256.Sum256(cert.Raw)
	return hex.EncodeToString(hash[:])
}

// CertFingerprintColonSHA256 returns the SHA-256 fingerprint of a certificate
// in uppercase colon-separated hex format.
func CertFingerprintColonSHA256(cert *x509.Certificate) string {
	hash := sha256.Sum256(cert.Raw)
	return strings.ToUpper(ColonHex(hash[:]))
}

// CertFingerprintColonSHA1 returns the SHA-1 fingerprint of a certificate
// in uppercase colon-separated hex format (AA:BB:CC:...), matching the format
// used by OpenSSL and browser certificate viewers.
func CertFingerprintColonSHA1(cert *x509.Certificate) string {
	hash := sha1.Sum(cert.Raw)
	return strings.ToUpper(ColonHex(hash[:]))
}

// CRLFingerprint returns the SHA-256 fingerprint of a CRL's DER encoding as a
// lowercase hex string.
func CRLFingerprint(crl *x509.RevocationList) string {
	hash := sha256.Sum256(crl.Raw)
	return hex.EncodeToString(hash[:])
}

// CRLFingerprintColonSHA256 returns the SHA-256 fingerprint of a CRL in
// uppercase colon-separated hex format.
func CRLFingerprintColonSHA256(crl *x509.RevocationList) string {
	hash := sha256.Sum256(crl.Raw)
	return strings.ToUpper(ColonHex(hash[:]))
}

// ColonHex formats a byte slice as colon-separated lowercase hex.
func ColonHex(b []byte) string {
	h := hex.EncodeToString(b)
	parts := make([]string, 0, len(h)/2)
	for i := 0; i < len(h); i += 2 {
		end := min(i+2, len(h))
		parts = append(parts, h[i:end])
	}
	return strings.Join(parts, ":")
}

// GetCertificateType determines if a certificate is root, intermediate, or leaf.
func GetCertificateType(cert *x509.Certificate) string {
	if cert.IsCA {
		if bytes.Equal(cert.RawIssuer, cert.RawSubject) {
			return "root"
		}
		return "intermediate"
	}
	return "leaf"
}
