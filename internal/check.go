package internal

import (
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sensiblebit/revcheck"
	"github.com/sensiblebit/revcheck/internal/crlstore"
)

// CheckInput holds the certificate to check and where its CRLs come from.
type CheckInput struct {
	Cert   *x509.Certificate
	Store  *crlstore.MemStore
	Policy *Policy
}

// CheckResult holds the outcome of a revocation check for one certificate.
type CheckResult struct {
	Subject       string   `json:"subject"`
	Serial        string   `json:"serial"`
	Issuer        string   `json:"issuer"`
	Status        string   `json:"status"`
	Covered       []string `json:"covered_reasons"`
	Missing       []string `json:"missing_reasons,omitempty"`
	ConsultedCRLs int      `json:"consulted_crls"`
	RevokedAt     string   `json:"revoked_at,omitempty"`
	Reason        string   `json:"reason,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
	Acceptable    bool     `json:"acceptable"`
	PolicyError   string   `json:"policy_error,omitempty"`
}

// CheckCert determines the revocation status of a certificate from the CRLs
// in the store and evaluates it against the policy.
func CheckCert(input *CheckInput) (*CheckResult, error) {
	if input.Cert == nil {
		return nil, errors.New("certificate is nil")
	}
	if input.Store == nil {
		return nil, errors.New("store is nil")
	}
	policy := input.Policy
	if policy == nil {
		policy = DefaultPolicy()
	}

	res, err := input.Store.CheckCertificate(input.Cert)
	if err != nil {
		return nil, fmt.Errorf("checking %s: %w", crlstore.FormatCN(input.Cert), err)
	}

	cert := input.Cert
	result := &CheckResult{
		Subject:       cert.Subject.String(),
		Serial:        cert.SerialNumber.String(),
		Issuer:        cert.Issuer.String(),
		Status:        res.Status.String(),
		Covered:       res.Covered.Names(),
		ConsultedCRLs: res.ConsultedCRLs,
		Warnings:      res.Warnings,
	}
	if res.Status != revcheck.StatusGood && !res.Covered.IsAllReasons() {
		result.Missing = revcheck.ReasonMaskFromBits(revcheck.AllReasons().Reasons() &^ res.Covered.Reasons()).Names()
	}
	if res.Status == revcheck.StatusRevoked {
		result.RevokedAt = res.RevokedAt.UTC().Format(time.RFC3339)
		result.Reason = revcheck.CRLReasonName(res.ReasonCode)
	}
	if len(input.Store.CRLsForIssuer(cert)) == 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("no CRLs from issuer %q were supplied", cert.Issuer.String()))
	}

	result.Acceptable, result.PolicyError = policy.Evaluate(res)
	return result, nil
}

// FormatCheckResult formats a check result as human-readable text.
func FormatCheckResult(r *CheckResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Certificate: %s\n", r.Subject)
	fmt.Fprintf(&sb, "     Issuer: %s\n", r.Issuer)
	fmt.Fprintf(&sb, "     Serial: %s\n", r.Serial)
	fmt.Fprintf(&sb, "     Status: %s\n", strings.ToUpper(r.Status))
	if r.RevokedAt != "" {
		fmt.Fprintf(&sb, "    Revoked: %s (%s)\n", r.RevokedAt, r.Reason)
	}
	fmt.Fprintf(&sb, "       CRLs: %d consulted\n", r.ConsultedCRLs)
	fmt.Fprintf(&sb, "    Covered: %s\n", joinOrNone(r.Covered))
	if len(r.Missing) > 0 {
		fmt.Fprintf(&sb, "    Missing: %s\n", strings.Join(r.Missing, ", "))
	}

	if len(r.Warnings) > 0 {
		sb.WriteString("\nWarnings:\n")
		for _, w := range r.Warnings {
			fmt.Fprintf(&sb, "  - %s\n", w)
		}
	}

	if r.Acceptable {
		sb.WriteString("\nCheck OK\n")
	} else {
		fmt.Fprintf(&sb, "\nCheck FAILED: %s\n", r.PolicyError)
	}
	return sb.String()
}

// FormatCheckResults formats check results as text or JSON.
func FormatCheckResults(results []*CheckResult, format string) (string, error) {
	switch format {
	case "text":
		var sb strings.Builder
		for i, r := range results {
			if i > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(FormatCheckResult(r))
		}
		return sb.String(), nil
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

func joinOrNone(names []string) string {
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}
