package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var crlOutput string

var crlCmd = &cobra.Command{
	Use:   "crl",
	Short: "Regenerate the certificate revocation list",
	Long: `crl signs a fresh CRL covering every revoked certificate and prints it
DER-encoded, base64, unless --output is given.`,
	RunE: runCRL,
}

func init() {
	crlCmd.Flags().StringVar(&crlOutput, "output", "", "write the DER-encoded CRL to this file instead of stdout")
}

func runCRL(cmd *cobra.Command, args []string) error {
	mgr, _, cfg, err := loadManager()
	if err != nil {
		return err
	}

	issuer, err := loadRootCA(cfg)
	if err != nil {
		return err
	}

	crlDER, err := mgr.GenerateCRL(context.Background(), cfg.IssuerDomain, issuer)
	if err != nil {
		return fmt.Errorf("crl: %w", err)
	}

	if crlOutput != "" {
		if err := os.WriteFile(crlOutput, crlDER, 0o644); err != nil {
			return fmt.Errorf("crl: write %s: %w", crlOutput, err)
		}
		fmt.Printf("crl written: %s\n", crlOutput)
		return nil
	}

	fmt.Println(base64.StdEncoding.EncodeToString(crlDER))
	return nil
}
