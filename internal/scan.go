package internal

import (
	"crypto/x509"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/sensiblebit/revcheck"
	"github.com/sensiblebit/revcheck/internal/crlstore"
)

// skippableDirs contains directory names that cannot contain certificates or
// CRLs and should be skipped during filesystem walks to avoid unnecessary I/O.
var skippableDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
	"__pycache__":  true,
	".tox":         true,
	".venv":        true,
	"vendor":       true,
}

// IsSkippableDir reports whether the given directory name should be skipped
// during scanning.
func IsSkippableDir(name string) bool {
	return skippableDirs[name]
}

// cliHandler implements crlstore.Handler by storing parsed objects in the
// MemStore and reporting each find at info level.
type cliHandler struct {
	store *crlstore.MemStore
}

func (h *cliHandler) HandleCertificate(cert *x509.Certificate, source string) error {
	if err := h.store.HandleCertificate(cert, source); err != nil {
		return err
	}
	slog.Info("found certificate",
		"path", source,
		"cn", crlstore.FormatCN(cert),
		"serial", cert.SerialNumber.String(),
		"crl_urls", len(cert.CRLDistributionPoints))
	return nil
}

func (h *cliHandler) HandleRevocationList(crl *x509.RevocationList, source string) error {
	if err := h.store.HandleRevocationList(crl, source); err != nil {
		return err
	}
	slog.Info("found CRL",
		"path", source,
		"issuer", crlstore.FormatIssuerCN(crl),
		"entries", len(crl.RevokedCertificateEntries),
		"fingerprint", revcheck.CRLFingerprint(crl))
	return nil
}

// ProcessData ingests certificates and CRLs from in-memory data. The
// virtualPath identifies the data source for logging (may be a real path or a
// synthetic path like "archive.zip:crls/root.crl").
func ProcessData(data []byte, virtualPath string, store *crlstore.MemStore, passwords []string) error {
	slog.Debug("processing data", "path", virtualPath)
	return crlstore.ProcessData(crlstore.ProcessInput{
		Data:      data,
		Path:      virtualPath,
		Passwords: passwords,
		Handler:   &cliHandler{store: store},
	})
}

// ProcessFile reads a file (or stdin when cfg.InputPath is "-") and ingests
// any certificates and CRLs it contains into the store. Archives are expanded
// one level deep.
func ProcessFile(path string, cfg *Config) error {
	var data []byte
	var err error

	if cfg.InputPath == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("could not read %s: %w", path, err)
	}

	if format := ArchiveFormat(path); format != "" {
		_, err := ProcessArchive(ProcessArchiveInput{
			ArchivePath: path,
			Data:        data,
			Format:      format,
			Limits:      cfg.Limits,
			Store:       cfg.Store,
			Passwords:   cfg.Passwords,
		})
		return err
	}

	return ProcessData(data, path, cfg.Store, cfg.Passwords)
}
