package main

import (
	"fmt"

	"github.com/sensiblebit/revcheck"
	"github.com/sensiblebit/revcheck/internal"
	"github.com/spf13/cobra"
)

var (
	inspectFormat string
	inspectLabel  string
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Display certificate and CRL objects",
	Long:  "Walk every PEM envelope with the given label (or the single DER object in a binary file) and describe it: ASN.1 tag and size, certificate or CRL details, distribution point reasons and CRL scope. Malformed envelopes are reported and the walk continues.",
	Example: `  revcheck inspect cert.pem
  revcheck inspect crls.pem --label CRL
  revcheck inspect cert.pem --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().StringVar(&inspectFormat, "format", "text", "Output format: text or json")
	inspectCmd.Flags().StringVar(&inspectLabel, "label", "", "PEM label to read (default: the policy's certificate label)")

	flagCompletions{
		"format": formatCompletion,
		"label":  valueCompletion(revcheck.LabelCertificate, revcheck.LabelCRL),
	}.register(inspectCmd)
	inspectCmd.ValidArgsFunction = singlePathArg(anyExts...)
}

func runInspect(cmd *cobra.Command, args []string) error {
	label := inspectLabel
	if label == "" {
		label = policy.Labels.Certificate
	}

	results, err := internal.InspectFile(args[0], label)
	if err != nil {
		return err
	}

	output, err := internal.FormatInspectResults(results, inspectFormat)
	if err != nil {
		return err
	}

	fmt.Print(output)
	return nil
}
