package main

import (
	"crypto/rsa"
	"fmt"
	"os"
	"path/filepath"

	"software.sslmate.com/src/go-pkcs12"

	"github.com/nordiqpay/qcert-pki/internal/camgr"
	"github.com/nordiqpay/qcert-pki/internal/certrepo"
	"github.com/nordiqpay/qcert-pki/internal/config"
	pkgcertrepo "github.com/nordiqpay/qcert-pki/pkg/certrepo"
)

// loadManager builds the certificate manager and repository a subcommand
// operates against, from the configuration file named by --config, which
// is required.
func loadManager() (*camgr.Manager, pkgcertrepo.Repository, *config.Config, error) {
	cfg, err := resolveConfig()
	if err != nil {
		return nil, nil, nil, err
	}

	basePath := cfg.BootstrapPath
	if basePath == "" {
		basePath = "."
	}
	repo := certrepo.NewFileStore(filepath.Join(basePath, "certs"))
	if err := repo.Init(); err != nil {
		return nil, nil, nil, err
	}
	mgr := camgr.NewManager(repo, nil)

	return mgr, repo, cfg, nil
}

// loadRootCA reads the root CA bundle back from the bootstrap directory's
// ca.pfx, written by `qcertctl init`. Every subcommand that issues
// certificates or signs a CRL needs the same CA key across process
// invocations, since a CLI run has no state beyond what it reads from
// disk.
func loadRootCA(cfg *config.Config) (*camgr.Bundle, error) {
	basePath := cfg.BootstrapPath
	if basePath == "" {
		basePath = "."
	}
	pfx, err := os.ReadFile(filepath.Join(basePath, "ca.pfx"))
	if err != nil {
		return nil, fmt.Errorf("load root ca: %w (run `qcertctl init` first)", err)
	}

	key, cert, err := pkcs12.Decode(pfx, cfg.PFXPassphrase)
	if err != nil {
		return nil, fmt.Errorf("load root ca: decode ca.pfx: %w", err)
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("load root ca: unsupported key type %T", key)
	}

	return &camgr.Bundle{Certificate: cert, PrivateKey: rsaKey}, nil
}

func resolveConfig() (*config.Config, error) {
	if configPath == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
