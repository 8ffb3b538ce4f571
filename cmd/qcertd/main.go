// Command qcertd runs the PSD2 qualified-certificate REST API: issuance,
// lookup, export, revocation, and CRL distribution under /.certificates.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nordiqpay/qcert-pki/internal/apiserver"
	"github.com/nordiqpay/qcert-pki/internal/camgr"
	"github.com/nordiqpay/qcert-pki/internal/certrepo"
	"github.com/nordiqpay/qcert-pki/internal/clock"
	"github.com/nordiqpay/qcert-pki/internal/config"
	credstoreimpl "github.com/nordiqpay/qcert-pki/internal/credstore"
	httpsigpipeline "github.com/nordiqpay/qcert-pki/internal/httpsig"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "qcertd",
	Short: "Run the PSD2 qualified-certificate REST API",
	Long: `qcertd serves the /.certificates REST surface: issuance, lookup,
export, revocation, and CRL distribution, backed by a file-based
certificate repository and an optionally signature-protected transport.`,
	RunE: runServe,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to the YAML configuration file (required)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	if configPath == "" {
		return fmt.Errorf("qcertd: --config is required")
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("qcertd: %w", err)
	}

	basePath := cfg.BootstrapPath
	if basePath == "" {
		basePath = "."
	}
	repo := certrepo.NewFileStore(filepath.Join(basePath, "certs"))
	if err := repo.Init(); err != nil {
		return fmt.Errorf("qcertd: %w", err)
	}
	mgr := camgr.NewManager(repo, clock.System{})

	pipeline := buildSignaturePipeline(cfg)

	router := apiserver.NewRouter(apiserver.RouterConfig{
		Manager:           mgr,
		Repository:        repo,
		IssuerDomain:      cfg.IssuerDomain,
		SignaturePipeline: pipeline,
	})

	srv := apiserver.NewServer(cfg, router)
	fmt.Printf("qcertd listening on %s (issuer %s)\n", cfg.ListenAddr, cfg.IssuerDomain)
	return srv.Start()
}

// buildSignaturePipeline wires the HTTP-Signature middleware from the
// configured credential paths. Returns nil when neither a signing key nor
// a validation directory is configured, in which case NewRouter skips the
// middleware entirely.
func buildSignaturePipeline(cfg *config.Config) *httpsigpipeline.Pipeline {
	if cfg.SigningKeyPath == "" && cfg.ValidationDir == "" {
		return nil
	}

	creds := &credstoreimpl.FileCredStore{
		KeyPath:       cfg.SigningKeyPath,
		CertPath:      cfg.SigningCertPath,
		ValidationDir: cfg.ValidationDir,
	}

	rules := make([]httpsigpipeline.PathRule, 0, len(cfg.SignaturePaths))
	for _, pattern := range cfg.SignaturePaths {
		rules = append(rules, httpsigpipeline.PathRule{Pattern: pattern})
	}

	requestValidation := cfg.RequestValidation
	responseSigning := cfg.ResponseSigning

	pipeline := &httpsigpipeline.Pipeline{
		Rules:             rules,
		RequestValidation: &requestValidation,
		ResponseSigning:   &responseSigning,
		ValidationKeys:    creds,
		Clock:             clock.System{},
		MaxBodyBytes:      cfg.MaxBodyBytes,

		RequestSignatureCertificateHeaderName:  cfg.HeaderNames.RequestSignatureCertificate,
		ResponseSignatureCertificateHeaderName: cfg.HeaderNames.ResponseSignatureCertificate,
		ForwardedPathHeaderName:                cfg.HeaderNames.ForwardedPath,
		RequestCreatedHeaderName:               cfg.HeaderNames.RequestCreated,
		ResponseCreatedHeaderName:              cfg.HeaderNames.ResponseCreated,
		ResponseIDHeaderName:                   cfg.HeaderNames.ResponseID,
	}
	if cfg.SigningKeyPath != "" || cfg.SigningCertPath != "" {
		pipeline.Credentials = creds
	}
	return pipeline
}
