package internal

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sensiblebit/revcheck/internal/crlstore"
)

// StatusAnnotation returns a parenthetical annotation like
// " (2 revoked, 1 undetermined)" for non-zero counts, or an empty string if
// both are zero.
func StatusAnnotation(revoked, undetermined int) string {
	var parts []string
	if revoked > 0 {
		parts = append(parts, fmt.Sprintf("%d revoked", revoked))
	}
	if undetermined > 0 {
		parts = append(parts, fmt.Sprintf("%d undetermined", undetermined))
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

// FormatScanSummary formats scan counts as text or JSON.
func FormatScanSummary(s crlstore.ScanSummary, format string) (string, error) {
	switch format {
	case "text":
		var sb strings.Builder
		checked := s.Intermediates + s.Leaves
		fmt.Fprintf(&sb, "Found %d certificate(s): %d root, %d intermediate, %d leaf\n",
			s.Roots+checked, s.Roots, s.Intermediates, s.Leaves)
		fmt.Fprintf(&sb, "Found %d CRL(s) with %d revoked entries", s.CRLs, s.RevokedEntries)
		if s.StaleCRLs > 0 {
			fmt.Fprintf(&sb, " (%d stale)", s.StaleCRLs)
		}
		sb.WriteString("\n")
		fmt.Fprintf(&sb, "Checked %d certificate(s): %d good%s\n",
			checked, s.Good, StatusAnnotation(s.Revoked, s.Undetermined))
		return sb.String(), nil
	case "json":
		data, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshaling JSON: %w", err)
		}
		return string(data) + "\n", nil
	default:
		return "", fmt.Errorf("unsupported output format %q (use text or json)", format)
	}
}
