package internal

import (
	"bufio"
	"bytes"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sensiblebit/revcheck"
	"github.com/sensiblebit/revcheck/internal/crlstore"
)

// DistributionPointInfo describes one cRLDistributionPoints entry.
type DistributionPointInfo struct {
	URIs      []string `json:"uris,omitempty"`
	Reasons   string   `json:"reasons"`
	CRLIssuer bool     `json:"crl_issuer,omitempty"`
}

// ScopeInfo describes a CRL's issuingDistributionPoint.
type ScopeInfo struct {
	URIs          []string `json:"uris,omitempty"`
	OnlyUserCerts bool     `json:"only_user_certs,omitempty"`
	OnlyCACerts   bool     `json:"only_ca_certs,omitempty"`
	Reasons       string   `json:"reasons"`
	IndirectCRL   bool     `json:"indirect_crl,omitempty"`
	OnlyAttrCerts bool     `json:"only_attribute_certs,omitempty"`
}

// InspectResult holds the inspection details for one object.
type InspectResult struct {
	Index    int    `json:"index"`
	Type     string `json:"type"` // "certificate", "crl", "object", "malformed"
	Tag      string `json:"tag,omitempty"`
	Length   int    `json:"length,omitempty"`
	Elements int    `json:"elements,omitempty"`
	Error    string `json:"error,omitempty"`

	Subject            string                  `json:"subject,omitempty"`
	Issuer             string                  `json:"issuer,omitempty"`
	Serial             string                  `json:"serial,omitempty"`
	NotBefore          string                  `json:"not_before,omitempty"`
	NotAfter           string                  `json:"not_after,omitempty"`
	CertType           string                  `json:"cert_type,omitempty"`
	KeyType            string                  `json:"key_type,omitempty"`
	SHA256             string                  `json:"sha256_fingerprint,omitempty"`
	SHA1               string                  `json:"sha1_fingerprint,omitempty"`
	DistributionPoints []DistributionPointInfo `json:"distribution_points,omitempty"`

	CRLNumber  string     `json:"crl_number,omitempty"`
	ThisUpdate string     `json:"this_update,omitempty"`
	NextUpdate string     `json:"next_update,omitempty"`
	Entries    *int       `json:"entries,omitempty"`
	Scope      *ScopeInfo `json:"scope,omitempty"`
}

// InspectFile reads a file and describes every object in it. For PEM input
// only envelopes with the given label are read; malformed envelopes are
// reported and the walk continues after their footer.
func InspectFile(path, label string) ([]InspectResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var results []InspectResult
	if revcheck.IsPEM(data) {
		results, err = inspectPEM(data, label)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
	} else {
		obj, err := revcheck.DecodeDER(data)
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", path, err)
		}
		results = append(results, inspectObject(0, obj))
	}

	if len(results) == 0 {
		return nil, fmt.Errorf("no %s objects found in %s", label, path)
	}
	return results, nil
}

func inspectPEM(data []byte, label string) ([]InspectResult, error) {
	reader := revcheck.NewPEMReader(label)
	r := bufio.NewReader(bytes.NewReader(data))
	var results []InspectResult
	for {
		obj, more, err := reader.ReadNext(r)
		if err != nil {
			if !revcheck.IsMalformedInput(err) {
				return nil, err
			}
			results = append(results, InspectResult{Index: len(results), Type: "malformed", Error: err.Error()})
			continue
		}
		if !more {
			return results, nil
		}
		if obj == nil {
			continue
		}
		results = append(results, inspectObject(len(results), obj))
	}
}

// inspectObject describes obj structurally, then as a certificate or CRL
// when it parses as one.
func inspectObject(index int, obj *revcheck.Object) InspectResult {
	r := InspectResult{
		Index:  index,
		Type:   "object",
		Tag:    tagName(obj),
		Length: len(obj.FullBytes),
	}
	if children, err := obj.Elements(); err == nil {
		r.Elements = len(children)
	}

	if cert, err := x509.ParseCertificate(obj.FullBytes); err == nil {
		inspectCert(&r, cert)
		return r
	}
	if crl, err := x509.ParseRevocationList(obj.FullBytes); err == nil {
		inspectCRL(&r, crl)
	}
	return r
}

func tagName(obj *revcheck.Object) string {
	if obj.IsSequence() {
		return "SEQUENCE"
	}
	return fmt.Sprintf("0x%02x", uint8(obj.Tag))
}

func inspectCert(r *InspectResult, cert *x509.Certificate) {
	r.Type = "certificate"
	r.Subject = cert.Subject.String()
	r.Issuer = cert.Issuer.String()
	r.Serial = cert.SerialNumber.String()
	r.NotBefore = cert.NotBefore.UTC().Format(time.RFC3339)
	r.NotAfter = cert.NotAfter.UTC().Format(time.RFC3339)
	r.CertType = revcheck.GetCertificateType(cert)
	r.KeyType = crlstore.GetKeyType(cert)
	r.SHA256 = revcheck.CertFingerprintColonSHA256(cert)
	r.SHA1 = revcheck.CertFingerprintColonSHA1(cert)

	points, err := revcheck.ParseDistributionPoints(cert)
	if err != nil {
		r.Error = fmt.Sprintf("CRL distribution points: %v", err)
		return
	}
	for _, dp := range points {
		r.DistributionPoints = append(r.DistributionPoints, DistributionPointInfo{
			URIs:      dp.URIs,
			Reasons:   dp.Reasons.String(),
			CRLIssuer: dp.HasCRLIssuer,
		})
	}
}

func inspectCRL(r *InspectResult, crl *x509.RevocationList) {
	r.Type = "crl"
	r.Issuer = crl.Issuer.String()
	if crl.Number != nil {
		r.CRLNumber = crl.Number.String()
	}
	r.ThisUpdate = crl.ThisUpdate.UTC().Format(time.RFC3339)
	if !crl.NextUpdate.IsZero() {
		r.NextUpdate = crl.NextUpdate.UTC().Format(time.RFC3339)
	}
	entries := len(crl.RevokedCertificateEntries)
	r.Entries = &entries
	r.SHA256 = revcheck.CRLFingerprintColonSHA256(crl)

	idp, err := revcheck.ParseIssuingDistributionPoint(crl)
	if err != nil {
		r.Error = fmt.Sprintf("issuing distribution point: %v", err)
		return
	}
	if idp != nil {
		r.Scope = &ScopeInfo{
			URIs:          idp.URIs,
			OnlyUserCerts: idp.OnlyContainsUserCerts,
			OnlyCACerts:   idp.OnlyContainsCACerts,
			Reasons:       idp.OnlySomeReasons.String(),
			IndirectCRL:   idp.IndirectCRL,
			OnlyAttrCerts: idp.OnlyContainsAttributeCerts,
		}
	}
}

// FormatInspectResults formats inspection results as text or JSON.
func FormatInspectResults(results []InspectResult, format string) (string, error) {
	switch format {
	case "text":
		return formatInspectText(results), nil
	case "json":
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshaling JSON: %w", err)
		}
		return string(data) + "\n", nil
	default:
		return "", fmt.Errorf("unsupported output format %q (use text or json)", format)
	}
}

func formatInspectText(results []InspectResult) string {
	var sb strings.Builder
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n")
		}
		switch r.Type {
		case "certificate":
			fmt.Fprintf(&sb, "[%d] Certificate:\n", r.Index)
			fmt.Fprintf(&sb, "  Subject:     %s\n", r.Subject)
			fmt.Fprintf(&sb, "  Issuer:      %s\n", r.Issuer)
			fmt.Fprintf(&sb, "  Serial:      %s\n", r.Serial)
			fmt.Fprintf(&sb, "  Type:        %s\n", r.CertType)
			fmt.Fprintf(&sb, "  Key:         %s\n", r.KeyType)
			fmt.Fprintf(&sb, "  Not Before:  %s\n", r.NotBefore)
			fmt.Fprintf(&sb, "  Not After:   %s\n", r.NotAfter)
			fmt.Fprintf(&sb, "  SHA-256:     %s\n", r.SHA256)
			fmt.Fprintf(&sb, "  SHA-1:       %s\n", r.SHA1)
			if len(r.DistributionPoints) == 0 {
				sb.WriteString("  CRL DPs:     none (all reasons, issuer's full CRL)\n")
			}
			for j, dp := range r.DistributionPoints {
				fmt.Fprintf(&sb, "  CRL DP %d:    %s\n", j, strings.Join(dp.URIs, ", "))
				fmt.Fprintf(&sb, "    Reasons:   %s\n", dp.Reasons)
				if dp.CRLIssuer {
					sb.WriteString("    CRL Issuer: present (indirect)\n")
				}
			}
		case "crl":
			fmt.Fprintf(&sb, "[%d] CRL:\n", r.Index)
			fmt.Fprintf(&sb, "  Issuer:      %s\n", r.Issuer)
			if r.CRLNumber != "" {
				fmt.Fprintf(&sb, "  Number:      %s\n", r.CRLNumber)
			}
			fmt.Fprintf(&sb, "  This Update: %s\n", r.ThisUpdate)
			if r.NextUpdate != "" {
				fmt.Fprintf(&sb, "  Next Update: %s\n", r.NextUpdate)
			}
			if r.Entries != nil {
				fmt.Fprintf(&sb, "  Entries:     %d\n", *r.Entries)
			}
			fmt.Fprintf(&sb, "  SHA-256:     %s\n", r.SHA256)
			if r.Scope != nil {
				fmt.Fprintf(&sb, "  Scope:       %s\n", formatScope(r.Scope))
			} else {
				sb.WriteString("  Scope:       full\n")
			}
		case "object":
			fmt.Fprintf(&sb, "[%d] Object:\n", r.Index)
			fmt.Fprintf(&sb, "  Tag:         %s\n", r.Tag)
			fmt.Fprintf(&sb, "  Length:      %d\n", r.Length)
			fmt.Fprintf(&sb, "  Elements:    %d\n", r.Elements)
		case "malformed":
			fmt.Fprintf(&sb, "[%d] Malformed:\n", r.Index)
		}
		if r.Error != "" {
			fmt.Fprintf(&sb, "  Error:       %s\n", r.Error)
		}
	}
	return sb.String()
}

func formatScope(s *ScopeInfo) string {
	parts := []string{"reasons=" + s.Reasons}
	if len(s.URIs) > 0 {
		parts = append(parts, "uris="+strings.Join(s.URIs, ","))
	}
	if s.OnlyUserCerts {
		parts = append(parts, "user certs only")
	}
	if s.OnlyCACerts {
		parts = append(parts, "CA certs only")
	}
	if s.IndirectCRL {
		parts = append(parts, "indirect")
	}
	if s.OnlyAttrCerts {
		parts = append(parts, "attribute certs only")
	}
	return strings.Join(parts, "; ")
}
