// Command qcertctl is a CLI tool for bootstrapping a qualified-certificate
// root CA, issuing PSD2 certificates against it, revoking them, and
// regenerating the CRL.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "qcertctl",
	Short: "Manage a PSD2 qualified-certificate root CA",
	Long: `qcertctl bootstraps and operates a qualified-certificate root CA:
issuing ETSI EN 319 412-5 / TS 119 495 PSD2 certificates, revoking them,
and regenerating the CRL they appear on.

Every subcommand requires --config; the issuer domain, bootstrap path and
pfx passphrase come from that file.

Examples:
  # Bootstrap a root CA under the configured bootstrap-path
  qcertctl init --config qcertd.yaml

  # Issue a PSD2 certificate from a request file
  qcertctl issue --config qcertd.yaml --request psp.yaml

  # Revoke a previously issued certificate
  qcertctl revoke --config qcertd.yaml --key-id 3af2…

  # Regenerate and print the CRL
  qcertctl crl --config qcertd.yaml`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the YAML configuration file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(issueCmd)
	rootCmd.AddCommand(revokeCmd)
	rootCmd.AddCommand(crlCmd)
}
