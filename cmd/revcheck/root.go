package main

import (
	"fmt"

	"github.com/sensiblebit/revcheck/internal"
	"github.com/spf13/cobra"
)

var (
	logLevel     string
	logFormat    string
	dbPath       string
	passwordList string
	passwordFile string
	configPath   string

	policy *internal.Policy
)

var rootCmd = &cobra.Command{
	Use:           "revcheck",
	Short:         "CRL revocation checking tool",
	Long:          "Read certificates and CRLs from PEM, DER, PKCS#7, PKCS#12 and JKS files, catalog them in SQLite, and decide revocation status by distribution point reason coverage.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := internal.SetupLogger(logLevel, logFormat); err != nil {
			return err
		}
		if configPath == "" {
			policy = internal.DefaultPolicy()
			return nil
		}
		p, err := internal.LoadPolicy(configPath)
		if err != nil {
			return fmt.Errorf("loading policy: %w", err)
		}
		policy = p
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "auto", "Log format: auto, text, json")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "SQLite catalog path (default: in-memory only)")
	rootCmd.PersistentFlags().StringVarP(&passwordList, "passwords", "p", "", "Comma-separated passwords for PKCS#12 and JKS files")
	rootCmd.PersistentFlags().StringVar(&passwordFile, "password-file", "", "File containing passwords, one per line")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Check policy YAML file")

	flagCompletions{
		"log-level":     valueCompletion("debug", "info", "warn", "error"),
		"log-format":    valueCompletion("auto", "text", "json"),
		"db":            pathCompletion("db", "sqlite"),
		"password-file": pathCompletion(),
		"config":        pathCompletion("yaml", "yml"),
	}.register(rootCmd)

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(checkCmd)
}
