package internal

import (
	"fmt"
	"os"
	"time"

	"github.com/sensiblebit/revcheck"
	"gopkg.in/yaml.v3"
)

// LabelConfig names the PEM labels read for each object type.
type LabelConfig struct {
	Certificate string `yaml:"certificate,omitempty"`
	CRL         string `yaml:"crl,omitempty"`
}

// PolicyConfig represents the check policy YAML file.
type PolicyConfig struct {
	// RequireFullCoverage fails any certificate whose CRLs leave a reason
	// uncovered.
	RequireFullCoverage bool `yaml:"requireFullCoverage"`
	// RequiredReasons fails a certificate only when one of these reasons is
	// left uncovered. Ignored when RequireFullCoverage is set.
	RequiredReasons []string      `yaml:"requiredReasons,omitempty"`
	CRLPaths        []string      `yaml:"crlPaths,omitempty"`
	Fetch           bool          `yaml:"fetch"`
	FetchTimeout    time.Duration `yaml:"fetchTimeout,omitempty"`
	Labels          LabelConfig   `yaml:"labels,omitempty"`
}

// Policy is a validated PolicyConfig.
type Policy struct {
	PolicyConfig
	required revcheck.ReasonMask
}

// DefaultPolicy returns the policy used when no --config file is given.
func DefaultPolicy() *Policy {
	p, _ := NewPolicy(PolicyConfig{})
	return p
}

// NewPolicy validates cfg and fills in defaults.
func NewPolicy(cfg PolicyConfig) (*Policy, error) {
	if cfg.Labels.Certificate == "" {
		cfg.Labels.Certificate = revcheck.LabelCertificate
	}
	if cfg.Labels.CRL == "" {
		cfg.Labels.CRL = revcheck.LabelCRL
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 15 * time.Second
	}

	var reasons []revcheck.Reason
	for _, name := range cfg.RequiredReasons {
		r, ok := revcheck.ParseReason(name)
		if !ok {
			return nil, fmt.Errorf("unknown revocation reason %q in requiredReasons", name)
		}
		reasons = append(reasons, r)
	}
	return &Policy{PolicyConfig: cfg, required: revcheck.NewReasonMask(reasons...)}, nil
}

// LoadPolicy loads a check policy from the specified YAML file.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg PolicyConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing policy %s: %w", path, err)
	}
	p, err := NewPolicy(cfg)
	if err != nil {
		return nil, fmt.Errorf("validating policy %s: %w", path, err)
	}
	return p, nil
}

// Evaluate reports whether a revocation result is acceptable under the
// policy, with a description of the failure when it is not.
func (p *Policy) Evaluate(res *revcheck.RevocationResult) (bool, string) {
	switch res.Status {
	case revcheck.StatusRevoked:
		return false, fmt.Sprintf("certificate is revoked (%s)", revcheck.CRLReasonName(res.ReasonCode))
	case revcheck.StatusGood:
		return true, ""
	}

	if p.RequireFullCoverage {
		return false, fmt.Sprintf("revocation status undetermined; covered reasons: %s", res.Covered)
	}
	if res.Covered.HasNewReasons(p.required) {
		missing := revcheck.ReasonMaskFromBits(p.required.Reasons() &^ res.Covered.Reasons())
		return false, fmt.Sprintf("required reasons not covered by any CRL: %s", missing)
	}
	return true, ""
}
