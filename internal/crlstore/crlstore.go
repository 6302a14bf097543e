// Package crlstore provides the certificate and CRL catalog behind the CLI:
// an ingestion pipeline for files and archives, an in-memory store indexed
// for revocation checks, SQLite persistence, and CRL distribution point
// resolution.
package crlstore

import "crypto/x509"

// Handler receives parsed certificates and CRLs from the processing pipeline.
type Handler interface {
	HandleCertificate(cert *x509.Certificate, source string) error
	HandleRevocationList(crl *x509.RevocationList, source string) error
}

// ProcessInput holds parameters for ProcessData.
type ProcessInput struct {
	Data      []byte   // raw file content
	Path      string   // virtual path for logging and extension detection
	Passwords []string // passwords to try for PKCS#12 and JKS containers
	Handler   Handler  // receives parsed items
}
