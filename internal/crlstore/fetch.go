package crlstore

import (
	"context"
	"fmt"

	"github.com/sensiblebit/revcheck"
)

// CRLFetcher fetches raw CRL bytes from a URL. Implementations handle
// transport details; the CLI uses net/http.
type CRLFetcher func(ctx context.Context, url string) ([]byte, error)

// ResolveCRLsInput holds parameters for ResolveCRLs.
type ResolveCRLsInput struct {
	Store *MemStore
	Fetch CRLFetcher
	// Certs restricts resolution to these certificates. Nil means every
	// non-root certificate in the store.
	Certs []*CertRecord
}

// ResolveCRLs downloads the CRLs named by the HTTP distribution points of
// certificates whose status is still undetermined, and adds them to the
// store. Each URL is fetched at most once.
//
// Returns warnings for fetch/parse failures. Callers should surface these to
// the user.
func ResolveCRLs(ctx context.Context, input ResolveCRLsInput) []string {
	queue := input.Certs
	if queue == nil {
		for _, rec := range input.Store.AllCertsFlat() {
			if rec.CertType != "root" {
				queue = append(queue, rec)
			}
		}
	}

	var warnings []string
	seen := make(map[string]bool)

	for _, rec := range queue {
		if ctx.Err() != nil {
			warnings = append(warnings, fmt.Sprintf("CRL resolution stopped: %v", ctx.Err()))
			break
		}
		if decided(input.Store, rec) {
			continue
		}
		for _, crlURL := range rec.Cert.CRLDistributionPoints {
			if !isFetchableURL(crlURL) || seen[crlURL] {
				continue
			}
			seen[crlURL] = true

			body, err := input.Fetch(ctx, crlURL)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf(
					"Could not fetch CRL for %q from %s: %v. "+
						"Supply the CRL file with --crl to resolve this.",
					FormatCN(rec.Cert), crlURL, err,
				))
				continue
			}

			crls, err := revcheck.ParseRevocationListsAny(body)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf(
					"Fetched %s but could not parse: %v",
					crlURL, err,
				))
				continue
			}

			for _, crl := range crls {
				if err := input.Store.HandleRevocationList(crl, "CRLDP: "+crlURL); err != nil {
					warnings = append(warnings, fmt.Sprintf("Rejected CRL from %s: %v", crlURL, err))
				}
			}

			if decided(input.Store, rec) {
				break
			}
		}
	}

	return warnings
}

// decided reports whether the CRLs already in the store settle rec.
func decided(store *MemStore, rec *CertRecord) bool {
	res, err := store.CheckCertificate(rec.Cert)
	return err == nil && res.Status != revcheck.StatusUndetermined
}
