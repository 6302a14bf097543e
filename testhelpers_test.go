package revcheck

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/pem"
	"math/big"
	"testing"
	"time"
)

// testCA holds a CA certificate and the key that signs its leaves and CRLs.
type testCA struct {
	cert *x509.Certificate
	key  *ecdsa.PrivateKey
}

// newTestCA creates a self-signed ECDSA CA allowed to sign CRLs.
func newTestCA(t *testing.T, cn string) testCA {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatal(err)
	}
	return testCA{cert: cert, key: key}
}

// newTestLeaf issues a leaf with the given serial and extra extensions.
func newTestLeaf(t *testing.T, ca testCA, serial int64, exts ...pkix.Extension) *x509.Certificate {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:    big.NewInt(serial),
		Subject:         pkix.Name{CommonName: "leaf.example.com"},
		DNSNames:        []string{"leaf.example.com"},
		NotBefore:       time.Now().Add(-time.Hour),
		NotAfter:        time.Now().Add(24 * time.Hour),
		ExtraExtensions: exts,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, ca.cert, &key.PublicKey, ca.key)
	if err != nil {
		t.Fatal(err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatal(err)
	}
	return cert
}

// newTestCRL signs a CRL listing the given entries.
func newTestCRL(t *testing.T, ca testCA, number int64, revoked []x509.RevocationListEntry, exts ...pkix.Extension) *x509.RevocationList {
	t.Helper()
	tmpl := &x509.RevocationList{
		Number:                    big.NewInt(number),
		ThisUpdate:                time.Now().Add(-time.Hour),
		NextUpdate:                time.Now().Add(24 * time.Hour),
		RevokedCertificateEntries: revoked,
		ExtraExtensions:           exts,
	}
	der, err := x509.CreateRevocationList(rand.Reader, tmpl, ca.cert, ca.key)
	if err != nil {
		t.Fatal(err)
	}
	crl, err := x509.ParseRevocationList(der)
	if err != nil {
		t.Fatal(err)
	}
	return crl
}

// revokedEntry builds a CRL entry for serial with a reason code.
func revokedEntry(serial int64, reasonCode int) x509.RevocationListEntry {
	return x509.RevocationListEntry{
		SerialNumber:   big.NewInt(serial),
		RevocationTime: time.Now().Add(-time.Minute).UTC().Truncate(time.Second),
		ReasonCode:     reasonCode,
	}
}

type testDistributionPointName struct {
	FullName []asn1.RawValue `asn1:"optional,tag:0"`
}

type testDistributionPoint struct {
	DistributionPoint testDistributionPointName `asn1:"optional,tag:0"`
	Reasons           asn1.BitString            `asn1:"optional,tag:1"`
	CRLIssuer         []asn1.RawValue           `asn1:"optional,tag:2"`
}

type testIssuingDistributionPoint struct {
	DistributionPoint          testDistributionPointName `asn1:"optional,tag:0"`
	OnlyContainsUserCerts      bool                      `asn1:"optional,tag:1"`
	OnlyContainsCACerts        bool                      `asn1:"optional,tag:2"`
	OnlySomeReasons            asn1.BitString            `asn1:"optional,tag:3"`
	IndirectCRL                bool                      `asn1:"optional,tag:4"`
	OnlyContainsAttributeCerts bool                      `asn1:"optional,tag:5"`
}

func uriNames(uris ...string) testDistributionPointName {
	var name testDistributionPointName
	for _, uri := range uris {
		name.FullName = append(name.FullName, asn1.RawValue{Tag: 6, Class: asn1.ClassContextSpecific, Bytes: []byte(uri)})
	}
	return name
}

// dpSpec describes one distribution point for distributionPointsExt. A zero
// reasons mask leaves the reasons field out.
type dpSpec struct {
	uri       string
	reasons   ReasonMask
	crlIssuer bool
}

func distributionPointsExt(t *testing.T, specs ...dpSpec) pkix.Extension {
	t.Helper()
	points := make([]testDistributionPoint, 0, len(specs))
	for _, s := range specs {
		dp := testDistributionPoint{Reasons: s.reasons.BitString()}
		if s.uri != "" {
			dp.DistributionPoint = uriNames(s.uri)
		}
		if s.crlIssuer {
			dp.CRLIssuer = []asn1.RawValue{{Tag: 6, Class: asn1.ClassContextSpecific, Bytes: []byte("http://issuer.example.com")}}
		}
		points = append(points, dp)
	}
	val, err := asn1.Marshal(points)
	if err != nil {
		t.Fatal(err)
	}
	return pkix.Extension{Id: oidExtCRLDistributionPoints, Value: val}
}

func issuingDistributionPointExt(t *testing.T, idp testIssuingDistributionPoint) pkix.Extension {
	t.Helper()
	val, err := asn1.Marshal(idp)
	if err != nil {
		t.Fatal(err)
	}
	return pkix.Extension{Id: oidExtIssuingDistPoint, Critical: true, Value: val}
}

func pemString(blockType string, der []byte) string {
	return string(pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der}))
}
