package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

type completeFunc = func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective)

// Extensions offered when completing paths to certificate and CRL material.
var (
	certExts = []string{"pem", "crt", "cer", "der", "p7b", "p7c", "p12", "pfx", "jks"}
	crlExts  = []string{"crl", "pem", "der", "p7c"}
	anyExts  = append([]string{"crl"}, certExts...)
)

// flagCompletions maps flag names on one command to their completion
// functions.
type flagCompletions map[string]completeFunc

// register attaches every completion to cmd. A missing flag is a wiring
// mistake and panics at init.
func (fc flagCompletions) register(cmd *cobra.Command) {
	for name, fn := range fc {
		if err := cmd.RegisterFlagCompletionFunc(name, fn); err != nil {
			panic(fmt.Sprintf("%s --%s: %v", cmd.Name(), name, err))
		}
	}
}

// valueCompletion suggests the values that start with what has been typed,
// without falling back to file names.
func valueCompletion(values ...string) completeFunc {
	return func(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		var out []string
		for _, v := range values {
			if strings.HasPrefix(strings.ToLower(v), strings.ToLower(toComplete)) {
				out = append(out, v)
			}
		}
		return out, cobra.ShellCompDirectiveNoFileComp
	}
}

// pathCompletion lets the shell complete file names limited to exts, or any
// file when exts is empty. Directories are always offered.
func pathCompletion(exts ...string) completeFunc {
	return func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		if len(exts) == 0 {
			return nil, cobra.ShellCompDirectiveDefault
		}
		return exts, cobra.ShellCompDirectiveFilterFileExt
	}
}

// singlePathArg completes the one positional path argument of a command.
func singlePathArg(exts ...string) completeFunc {
	files := pathCompletion(exts...)
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return files(cmd, args, toComplete)
	}
}

var formatCompletion = valueCompletion("text", "json")
