package main

import (
	"crypto/x509"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sensiblebit/revcheck"
	"github.com/sensiblebit/revcheck/internal"
	"github.com/sensiblebit/revcheck/internal/crlstore"
	"github.com/spf13/cobra"
)

var (
	checkCRLPaths []string
	checkFetch    bool
	checkFormat   string
)

var checkCmd = &cobra.Command{
	Use:   "check <cert>",
	Short: "Check certificate revocation against CRLs",
	Long:  "Check every non-root certificate in a file against the CRLs from --crl, the policy's crlPaths, the --db catalog and, with --fetch, the certificate's HTTP distribution points. A certificate is good only once its CRLs cover every revocation reason. Exits non-zero when a certificate is revoked, or when the policy rejects an undetermined result.",
	Example: `  revcheck check leaf.pem --crl issuer.crl
  revcheck check leaf.pem --fetch
  revcheck check bundle.p12 -p secret --db catalog.db --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringArrayVar(&checkCRLPaths, "crl", nil, "CRL file or directory (repeatable)")
	checkCmd.Flags().BoolVar(&checkFetch, "fetch", false, "Download CRLs named by HTTP distribution points")
	checkCmd.Flags().StringVar(&checkFormat, "format", "text", "Output format: text or json")

	flagCompletions{
		"crl":    pathCompletion(crlExts...),
		"format": formatCompletion,
	}.register(checkCmd)
	checkCmd.ValidArgsFunction = singlePathArg(certExts...)
}

func runCheck(cmd *cobra.Command, args []string) error {
	passwords, err := internal.ProcessPasswords(passwordList, passwordFile)
	if err != nil {
		return fmt.Errorf("loading passwords: %w", err)
	}

	certs, err := internal.LoadCertificates(args[0], policy.Labels.Certificate, passwords)
	if err != nil {
		return err
	}
	targets := checkTargets(certs)

	store := crlstore.NewMemStore()
	if dbPath != "" {
		if err := crlstore.LoadFromSQLite(store, dbPath); err != nil {
			return fmt.Errorf("loading catalog: %w", err)
		}
	}
	for _, cert := range certs {
		if err := store.HandleCertificate(cert, args[0]); err != nil {
			slog.Debug("adding certificate to store", "error", err)
		}
	}

	crlPaths := append(append([]string{}, policy.CRLPaths...), checkCRLPaths...)
	for _, path := range crlPaths {
		if err := loadCRLPath(path, store, passwords); err != nil {
			return err
		}
	}

	if checkFetch || policy.Fetch {
		records := make([]*crlstore.CertRecord, 0, len(targets))
		for _, cert := range targets {
			records = append(records, &crlstore.CertRecord{Cert: cert})
		}
		warnings := crlstore.ResolveCRLs(cmd.Context(), crlstore.ResolveCRLsInput{
			Store: store,
			Fetch: internal.NewHTTPFetcher(policy.FetchTimeout),
			Certs: records,
		})
		for _, w := range warnings {
			slog.Warn(w)
		}
	}

	var results []*internal.CheckResult
	failed := 0
	for _, cert := range targets {
		res, err := internal.CheckCert(&internal.CheckInput{Cert: cert, Store: store, Policy: policy})
		if err != nil {
			return err
		}
		if !res.Acceptable {
			failed++
		}
		results = append(results, res)
	}

	output, err := internal.FormatCheckResults(results, checkFormat)
	if err != nil {
		return err
	}
	fmt.Print(output)

	if failed > 0 {
		return fmt.Errorf("revocation check failed for %d of %d certificate(s)", failed, len(results))
	}
	return nil
}

// checkTargets drops self-signed roots, which no CRL can revoke, unless the
// file holds nothing else.
func checkTargets(certs []*x509.Certificate) []*x509.Certificate {
	var targets []*x509.Certificate
	for _, cert := range certs {
		if revcheck.GetCertificateType(cert) != "root" {
			targets = append(targets, cert)
		}
	}
	if len(targets) == 0 {
		return certs
	}
	return targets
}

// loadCRLPath adds the CRLs in a file, or every file under a directory, to
// the store.
func loadCRLPath(path string, store *crlstore.MemStore, passwords []string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("CRL path %s does not exist", path)
		}
		return fmt.Errorf("CRL path %s: %w", path, err)
	}

	if info.IsDir() {
		cfg := &internal.Config{
			InputPath: path,
			Passwords: passwords,
			Store:     store,
			Limits:    internal.DefaultArchiveLimits(),
		}
		return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !d.Type().IsRegular() {
				return nil
			}
			if err := internal.ProcessFile(p, cfg); err != nil {
				slog.Warn("error processing file", "path", p, "error", err)
			}
			return nil
		})
	}

	crls, err := internal.LoadRevocationLists(path, policy.Labels.CRL)
	if err != nil {
		return err
	}
	for _, crl := range crls {
		if err := store.HandleRevocationList(crl, path); err != nil {
			return fmt.Errorf("adding CRL from %s: %w", path, err)
		}
	}
	return nil
}
