package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sensiblebit/revcheck/internal"
	"github.com/sensiblebit/revcheck/internal/crlstore"
	"github.com/spf13/cobra"
)

var (
	scanFormat string
	scanFetch  bool
)

var scanCmd = &cobra.Command{
	Use:   "scan <path>",
	Short: "Scan and catalog certificates and CRLs",
	Long:  "Scan a file or directory (or - for stdin) for certificates and CRLs, including inside ZIP and TAR archives. Prints a summary with the revocation status of every non-root certificate. With --db the catalog is merged into and saved to SQLite.",
	Example: `  revcheck scan /etc/pki
  revcheck scan crls.tar.gz --db catalog.db
  revcheck scan . --fetch --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanFormat, "format", "text", "Output format: text or json")
	scanCmd.Flags().BoolVar(&scanFetch, "fetch", false, "Download CRLs named by HTTP distribution points of undecided certificates")

	flagCompletions{"format": formatCompletion}.register(scanCmd)
	scanCmd.ValidArgsFunction = singlePathArg()
}

func runScan(cmd *cobra.Command, args []string) error {
	inputPath := args[0]

	passwords, err := internal.ProcessPasswords(passwordList, passwordFile)
	if err != nil {
		return fmt.Errorf("loading passwords: %w", err)
	}

	store := crlstore.NewMemStore()
	if dbPath != "" {
		if _, statErr := os.Stat(dbPath); statErr == nil {
			if err := crlstore.LoadFromSQLite(store, dbPath); err != nil {
				return fmt.Errorf("loading catalog: %w", err)
			}
		} else if !errors.Is(statErr, fs.ErrNotExist) {
			return fmt.Errorf("catalog %s: %w", dbPath, statErr)
		}
	}

	cfg := &internal.Config{
		InputPath: inputPath,
		Passwords: passwords,
		Store:     store,
		Limits:    internal.DefaultArchiveLimits(),
	}

	if inputPath == "-" {
		if err := internal.ProcessFile("-", cfg); err != nil {
			return fmt.Errorf("processing stdin: %w", err)
		}
	} else if err := walkInput(inputPath, cfg); err != nil {
		return err
	}

	if scanFetch || policy.Fetch {
		fetch := internal.NewHTTPFetcher(policy.FetchTimeout)
		for _, w := range crlstore.ResolveCRLs(cmd.Context(), crlstore.ResolveCRLsInput{Store: store, Fetch: fetch}) {
			slog.Warn(w)
		}
	}

	store.DumpDebug()

	output, err := internal.FormatScanSummary(store.ScanSummary(crlstore.ScanSummaryInput{}), scanFormat)
	if err != nil {
		return err
	}
	fmt.Print(output)

	if dbPath != "" {
		if err := crlstore.SaveToSQLite(store, dbPath); err != nil {
			return fmt.Errorf("saving catalog: %w", err)
		}
	}
	return nil
}

// walkInput ingests every regular file under root, skipping directories that
// never hold certificates.
func walkInput(root string, cfg *internal.Config) error {
	if _, err := os.Stat(root); err != nil {
		return fmt.Errorf("input path %s: %w", root, err)
	}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && internal.IsSkippableDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if err := internal.ProcessFile(path, cfg); err != nil {
			slog.Warn("error processing file", "path", path, "error", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("walking input path: %w", err)
	}
	return nil
}
