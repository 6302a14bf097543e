package internal

import (
	"bytes"
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	"github.com/sensiblebit/revcheck"
)

// LoadCertificates reads a file and returns the certificates it holds. PEM
// files are read with the given label; binary files are tried as DER,
// PKCS#7, JKS, and PKCS#12 in that order.
func LoadCertificates(path, label string, passwords []string) ([]*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	certs, err := ParseCertificateContainer(data, label, passwords)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return certs, nil
}

// ParseCertificateContainer parses certificates from raw container data.
func ParseCertificateContainer(data []byte, label string, passwords []string) ([]*x509.Certificate, error) {
	if revcheck.IsPEM(data) {
		var certs []*x509.Certificate
		err := readLabeled(data, label, func(obj *revcheck.Object) error {
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
			return nil, fmt.Errorf("no %s objects found in PEM data", label)
		}
		return certs, nil
	}

	if certs, err := revcheck.ParseCertificatesAny(data); err == nil {
		return certs, nil
	}

	if revcheck.IsJKS(data) {
		return revcheck.DecodeJKS(data, passwords)
	}

	for _, pw := range passwords {
		if certs, err := revcheck.DecodePKCS12(data, pw); err == nil {
			return certs, nil
		}
	}

	return nil, errors.New("could not parse as PEM, DER, PKCS#7, JKS, or PKCS#12")
}

// LoadRevocationLists reads a file and returns the CRLs it holds. PEM files
// are read with the given label; binary files are tried as DER and PKCS#7.
func LoadRevocationLists(path, label string) ([]*x509.RevocationList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if !revcheck.IsPEM(data) {
		crls, err := revcheck.ParseRevocationListsAny(data)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		return crls, nil
	}

	var crls []*x509.RevocationList
	err = readLabeled(data, label, func(obj *revcheck.Object) error {
		crl, err := x509.ParseRevocationList(obj.FullBytes)
		if err != nil {
			return fmt.Errorf("parsing CRL: %w", err)
		}
		crls = append(crls, crl)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(crls) == 0 {
		return nil, fmt.Errorf("no %s objects found in %s", label, path)
	}
	return crls, nil
}

// readLabeled feeds every envelope with the label to fn, stopping at the
// first malformed envelope or fn error.
func readLabeled(data []byte, label string, fn func(*revcheck.Object) error) error {
	reader := revcheck.NewPEMReader(label)
	r := bytes.NewReader(data)
	for {
		obj, more, err := reader.ReadNext(r)
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
