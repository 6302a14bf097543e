package crlstore

import (
	"bytes"
	"crypto/x509"
	"log/slog"

	"github.com/sensiblebit/revcheck"
)

// ProcessData ingests certificates and CRLs from in-memory data, dispatching
// parsed objects to the handler. It detects PEM vs binary format and tries all
// known formats in priority order. Expired certificates and stale CRLs are
// ingested too; filtering them is an output concern.
func ProcessData(input ProcessInput) error {
	if len(input.Data) == 0 {
		return nil
	}

	handler := input.Handler

	if revcheck.IsPEM(input.Data) {
		slog.Debug("processing as PEM format", "path", input.Path)
		processPEMCertificates(input.Data, input.Path, handler)
		processPEMRevocationLists(input.Data, input.Path, handler)
		return nil
	}

	// Non-PEM: try binary formats only for recognized extensions.
	if HasBinaryExtension(input.Path) {
		slog.Debug("processing as binary format", "path", input.Path)
		processDER(input.Data, input.Path, input.Passwords, handler)
	}

	return nil
}

// walkPEM feeds every envelope matching reader's label to fn. Malformed
// envelopes are logged and skipped; the reader is already past their footer,
// so the walk resumes with the next envelope.
func walkPEM(data []byte, source string, reader *revcheck.PEMReader, fn func(*revcheck.Object)) {
	r := bytes.NewReader(data)
	for {
		obj, more, err := reader.ReadNext(r)
		if err != nil {
			if !revcheck.IsMalformedInput(err) {
				slog.Warn("reading PEM data", "path", source, "label", reader.Label(), "error", err)
				return
			}
			slog.Warn("skipping malformed PEM envelope", "path", source, "label", reader.Label(), "error", err)
			continue
		}
		if !more {
			return
		}
		if obj == nil {
			slog.Debug("skipping empty PEM envelope", "path", source, "label", reader.Label())
			continue
		}
		fn(obj)
	}
}

// processPEMCertificates parses all CERTIFICATE envelopes and dispatches them
// to the handler. Malformed certificates are logged and skipped.
func processPEMCertificates(data []byte, source string, handler Handler) {
	walkPEM(data, source, revcheck.NewPEMReader(revcheck.LabelCertificate), func(obj *revcheck.Object) {
		cert, err := x509.ParseCertificate(obj.FullBytes)
		if err != nil {
			slog.Warn("skipping malformed certificate", "path", source, "error", err)
			return
		}
		if err := handler.HandleCertificate(cert, source); err != nil {
			slog.Debug("handler rejected certificate", "path", source, "error", err)
		}
	})
}

// processPEMRevocationLists parses all CRL and X509 CRL envelopes and
// dispatches them to the handler.
func processPEMRevocationLists(data []byte, source string, handler Handler) {
	walkPEM(data, source, revcheck.NewPEMReader(revcheck.LabelCRL), func(obj *revcheck.Object) {
		crl, err := x509.ParseRevocationList(obj.FullBytes)
		if err != nil {
			slog.Warn("skipping malformed CRL", "path", source, "error", err)
			return
		}
		if err := handler.HandleRevocationList(crl, source); err != nil {
			slog.Warn("handler rejected CRL", "path", source, "error", err)
		}
	})
}

// processDER tries all binary formats in priority order:
// DER certificate(s) → DER CRL → PKCS#7 → JKS → PKCS#12.
func processDER(data []byte, source string, passwords []string, handler Handler) {
	// Try DER certificate(s)
	if certs, err := x509.ParseCertificates(data); err == nil && len(certs) > 0 {
		slog.Debug("parsed DER certificate(s)", "count", len(certs))
		for _, cert := range certs {
			if err := handler.HandleCertificate(cert, source); err != nil {
				slog.Debug("handler rejected DER certificate", "path", source, "error", err)
			}
		}
		return
	}

	// Try DER CRL
	if crl, err := x509.ParseRevocationList(data); err == nil {
		slog.Debug("parsed DER CRL", "entries", len(crl.RevokedCertificateEntries))
		if err := handler.HandleRevocationList(crl, source); err != nil {
			slog.Warn("handler rejected DER CRL", "path", source, "error", err)
		}
		return
	}

	// Try PKCS#7
	if certs, crls, err := revcheck.DecodePKCS7(data); err == nil {
		slog.Debug("parsed PKCS#7 bundle", "certs", len(certs), "crls", len(crls))
		for _, cert := range certs {
			if err := handler.HandleCertificate(cert, source); err != nil {
				slog.Debug("handler rejected PKCS#7 certificate", "path", source, "error", err)
			}
		}
		for _, crl := range crls {
			if err := handler.HandleRevocationList(crl, source); err != nil {
				slog.Warn("handler rejected PKCS#7 CRL", "path", source, "error", err)
			}
		}
		return
	}

	// Try JKS (magic bytes 0xFEEDFEED)
	if revcheck.IsJKS(data) {
		slog.Debug("attempting JKS parsing")
		certs, err := revcheck.DecodeJKS(data, passwords)
		if err != nil {
			slog.Debug("JKS decode failed", "error", err)
		} else {
			for _, cert := range certs {
				if err := handler.HandleCertificate(cert, source); err != nil {
					slog.Debug("handler rejected JKS certificate", "path", source, "error", err)
				}
			}
			return
		}
	}

	// Try PKCS#12 as last resort
	slog.Debug("attempting PKCS#12 parsing")
	for _, password := range passwords {
		certs, err := revcheck.DecodePKCS12(data, password)
		if err != nil {
			slog.Debug("PKCS#12 decode failed", "error", err)
			continue
		}
		for _, cert := range certs {
			if err := handler.HandleCertificate(cert, source); err != nil {
				slog.Debug("handler rejected PKCS#12 certificate", "path", source, "error", err)
			}
		}
		return
	}

	slog.Debug("no known format matched binary data", "path", source)
}
