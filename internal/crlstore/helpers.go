package crlstore

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"path/filepath"
	"strings"
)

// derExtensions contains file extensions that may hold DER-encoded
// certificates, CRLs, or PKCS#7/PKCS#12 containers. Only files with these
// extensions are tried as DER to avoid feeding arbitrary binary files to
// ASN.1 parsers.
var derExtensions = map[string]bool{
	// Certificates
	".der":  true,
	".cer":  true,
	".crt":  true,
	".cert": true,
	".ca":   true,
	".pem":  true, // sometimes DER despite extension
	".x509": true,

	// CRLs
	".crl": true,

	// PKCS#12
	".p12": true,
	".pfx": true,

	// PKCS#7
	".p7b": true,
	".p7c": true,
	".p7":  true,
	".spc": true,
}

// jksExtensions contains file extensions for Java KeyStore files.
var jksExtensions = map[string]bool{
	".jks":        true,
	".keystore":   true,
	".truststore": true,
}

// HasBinaryExtension reports whether the file path has a recognized DER or JKS
// extension. The extension is matched case-insensitively. For virtual paths
// such as "archive.zip:crls/root.crl" only the part after the last ":" is
// considered.
func HasBinaryExtension(path string) bool {
	if idx := strings.LastIndex(path, ":"); idx >= 0 {
		path = path[idx+1:]
	}
	ext := strings.ToLower(filepath.Ext(path))
	return derExtensions[ext] || jksExtensions[ext]
}

// GetKeyType returns a human-readable description of the certificate's public
// key type, including bit length for RSA and curve name for ECDSA.
func GetKeyType(cert *x509.Certificate) string {
	switch pub := cert.PublicKey.(type) {
	case *rsa.PublicKey:
		return fmt.Sprintf("RSA %d bits", pub.N.BitLen())
	case *ecdsa.PublicKey:
		return fmt.Sprintf("ECDSA %s", pub.Curve.Params().Name)
	case ed25519.PublicKey:
		return "Ed25519"
	default:
		return fmt.Sprintf("unknown key type: %T", pub)
	}
}

// FormatCN returns the common name of the certificate for display. Falls back
// to the first DNS SAN, then to "serial:<n>" if no CN or SAN is present.
func FormatCN(cert *x509.Certificate) string {
	if cert.Subject.CommonName != "" {
		return cert.Subject.CommonName
	}
	if len(cert.DNSNames) > 0 {
		return cert.DNSNames[0]
	}
	return fmt.Sprintf("serial:%s", cert.SerialNumber.String())
}

// FormatIssuerCN returns the issuer common name of a CRL, or the full issuer
// DN when no CN is present.
func FormatIssuerCN(crl *x509.RevocationList) string {
	if crl.Issuer.CommonName != "" {
		return crl.Issuer.CommonName
	}
	return crl.Issuer.String()
}

// isFetchableURL reports whether a distribution point URI can be fetched over
// HTTP. LDAP and other schemes are skipped.
func isFetchableURL(uri string) bool {
	lower := strings.ToLower(uri)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
