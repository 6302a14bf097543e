package revcheck

import (
	"bytes"
	"crypto/x509"
	"errors"
	"fmt"

	"github.com/pavlo-v-chernykh/keystore-go/v4"
)

// jksMagic is the leading 0xFEEDFEED of a Java KeyStore.
var jksMagic = []byte{0xFE, 0xED, 0xFE, 0xED}

// IsJKS reports whether data starts with the Java KeyStore magic bytes.
func IsJKS(data []byte) bool {
	return bytes.HasPrefix(data, jksMagic)
}

// DecodeJKS returns the certificates held in a Java KeyStore. Each password is
// tried in order for the store. Private key entries are opened with the store
// password first and then the rest of the list, so their certificate chains
// can be read even when the key password differs. Entries that fail to parse
// are skipped.
func DecodeJKS(data []byte, passwords []string) ([]*x509.Certificate, error) {
	var loadErr error
	for _, password := range passwords {
		ks := keystore.New()
		if err := ks.Load(bytes.NewReader(data), []byte(password)); err != nil {
			loadErr = err
			continue
		}
		certs := jksCertificates(ks, password, passwords)
		if len(certs) == 0 {
			return nil, errors.New("JKS contains no usable certificates")
		}
		return certs, nil
	}
	if loadErr == nil {
		loadErr = errors.New("no passwords to try")
	}
	return nil, fmt.Errorf("loading JKS: %w", loadErr)
}

func jksCertificates(ks keystore.KeyStore, storePassword string, passwords []string) []*x509.Certificate {
	keyPasswords := append([]string{storePassword}, passwords...)
	var certs []*x509.Certificate
	for _, alias := range ks.Aliases() {
		if ks.IsTrustedCertificateEntry(alias) {
			entry, err := ks.GetTrustedCertificateEntry(alias)
			if err != nil {
				continue
			}
			cert, err := x509.ParseCertificate(entry.Certificate.Content)
			if err != nil {
				continue
			}
			certs = append(certs, cert)
		}

		if ks.IsPrivateKeyEntry(alias) {
			var entry keystore.PrivateKeyEntry
			var err error
			for _, pw := range keyPasswords {
				if entry, err = ks.GetPrivateKeyEntry(alias, []byte(pw)); err == nil {
					break
				}
			}
			if err != nil {
				continue
			}
			for _, certEntry := range entry.CertificateChain {
				cert, err := x509.ParseCertificate(certEntry.Content)
				if err != nil {
					continue
				}
				certs = append(certs, cert)
			}
		}
	}
	return certs
}
