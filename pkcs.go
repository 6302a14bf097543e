package revcheck

import (
	"crypto/x509"
	"encoding/asn1"
	"errors"
	"fmt"

	"github.com/smallstep/pkcs7"
	gopkcs12 "software.sslmate.com/src/go-pkcs12"
)

// DecodePKCS7 decodes a DER-encoded PKCS#7 bundle and returns the certificates
// and CRLs it carries. A bundle with neither is an error.
func DecodePKCS7(derData []byte) ([]*x509.Certificate, []*x509.RevocationList, error) {
	p7, err := pkcs7.Parse(derData)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing PKCS#7: %w", err)
	}

	var crls []*x509.RevocationList
	for i, cl := range p7.CRLs {
		// The bundle only exposes the legacy pkix form; re-encoding it
		// reproduces the original DER because TBSCertList keeps its raw bytes.
		der, err := asn1.Marshal(cl)
		if err != nil {
			return nil, nil, fmt.Errorf("re-encoding CRL %d: %w", i, err)
		}
		crl, err := x509.ParseRevocationList(der)
		if err != nil {
			return nil, nil, fmt.Errorf("parsing CRL %d: %w", i, err)
		}
		crls = append(crls, crl)
	}

	if len(p7.Certificates) == 0 && len(crls) == 0 {
		return nil, nil, errors.New("PKCS#7 bundle contains no certificates or CRLs")
	}
	return p7.Certificates, crls, nil
}

// DecodePKCS12 returns the certificates held in a PKCS#12/PFX file. Files
// with a private key yield the leaf followed by its CA chain; trust stores
// yield their trusted certificates.
func DecodePKCS12(pfxData []byte, password string) ([]*x509.Certificate, error) {
	_, leaf, caCerts, chainErr := gopkcs12.DecodeChain(pfxData, password)
	if chainErr == nil {
		certs := make([]*x509.Certificate, 0, len(caCerts)+1)
		if leaf != nil {
			certs = append(certs, leaf)
		}
		return append(certs, caCerts...), nil
	}

	certs, err := gopkcs12.DecodeTrustStore(pfxData, password)
	if err != nil {
		return nil, fmt.Errorf("decoding PKCS#12: %w", errors.Join(chainErr, err))
	}
	if len(certs) == 0 {
		return nil, errors.New("PKCS#12 trust store contains no certificates")
	}
	return certs, nil
}
