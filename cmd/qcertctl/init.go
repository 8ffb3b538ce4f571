package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nordiqpay/qcert-pki/internal/camgr"
)

var initKeyBits int

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Bootstrap a root CA and write its artifacts to disk",
	Long: `init creates a new self-signed root CA (RSA, default 2048 bits) and
writes ca.cer (DER) and ca.pfx (PKCS#12, protected by the configured
pfx-passphrase) to the bootstrap artifact directory.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().IntVar(&initKeyBits, "key-bits", 0, "RSA key size: 2048, 3072, or 4096 (default 2048)")
}

func runInit(cmd *cobra.Command, args []string) error {
	mgr, _, cfg, err := loadManager()
	if err != nil {
		return err
	}

	bundle, err := mgr.CreateRootCA(context.Background(), cfg.IssuerDomain, camgr.RootCAOptions{KeyBits: initKeyBits})
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}

	outDir := cfg.BootstrapPath
	if outDir == "" {
		outDir = "."
	}
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return fmt.Errorf("init: create bootstrap directory: %w", err)
	}

	cerDER, err := mgr.Export(bundle, camgr.ExportDER, camgr.ExportOptions{})
	if err != nil {
		return fmt.Errorf("init: export ca.cer: %w", err)
	}
	if err := os.WriteFile(filepath.Join(outDir, "ca.cer"), cerDER, 0o644); err != nil {
		return fmt.Errorf("init: write ca.cer: %w", err)
	}

	pfx, err := mgr.Export(bundle, camgr.ExportPKCS12, camgr.ExportOptions{Passphrase: cfg.PFXPassphrase})
	if err != nil {
		return fmt.Errorf("init: export ca.pfx: %w", err)
	}
	if err := os.WriteFile(filepath.Join(outDir, "ca.pfx"), pfx, 0o600); err != nil {
		return fmt.Errorf("init: write ca.pfx: %w", err)
	}

	fmt.Printf("root CA bootstrapped: %s\n", bundle.Certificate.Subject.String())
	fmt.Printf("  ca.cer: %s\n", filepath.Join(outDir, "ca.cer"))
	fmt.Printf("  ca.pfx: %s\n", filepath.Join(outDir, "ca.pfx"))
	return nil
}
