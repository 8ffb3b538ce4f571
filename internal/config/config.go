// Package config loads and validates the YAML configuration for the
// qualified-certificate service: the issuer identity, bootstrap artifact
// location, listen address, and the HTTP-Signature pipeline's policy
// knobs (spec.md §6's enumerated configuration options).
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigError reports a problem with a single configuration field.
type ConfigError struct {
	Field   string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error in '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func newConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// HeaderNames names the HTTP headers the signature pipeline reads and
// writes, per spec.md §6's configuration table.
type HeaderNames struct {
	RequestSignatureCertificate  string `yaml:"request-signature-certificate-header-name"`
	ResponseSignatureCertificate string `yaml:"response-signature-certificate-header-name"`
	ForwardedPath                string `yaml:"forwarded-path-header-name"`
	RequestCreated               string `yaml:"request-created-header-name"`
	ResponseCreated              string `yaml:"response-created-header-name"`
	ResponseID                   string `yaml:"response-id-header-name"`
}

func defaultHeaderNames() HeaderNames {
	return HeaderNames{
		RequestSignatureCertificate:  "X-Request-Signature-Certificate",
		ResponseSignatureCertificate: "X-Response-Signature-Certificate",
		ForwardedPath:                "X-Forwarded-Path",
		RequestCreated:               "X-Request-Created",
		ResponseCreated:              "X-Response-Created",
		ResponseID:                   "X-Response-Id",
	}
}

// Config is the service's top-level configuration, loaded from a YAML
// file and overlaid on DefaultConfig's values.
type Config struct {
	// IssuerDomain is the base host used to build AIA/CRL distribution
	// point URLs, and the default common name for a bootstrapped root CA.
	IssuerDomain string `yaml:"issuer-domain"`

	// PFXPassphrase protects the root CA's PKCS#12 export.
	PFXPassphrase string `yaml:"pfx-passphrase"`

	// BootstrapPath is the on-disk artifact directory holding ca.pfx and
	// ca.cer for a bootstrapped root CA.
	BootstrapPath string `yaml:"bootstrap-path"`

	// ListenAddr is the REST API's listen address, host:port.
	ListenAddr string `yaml:"listen-addr"`

	// RequestValidation enforces signatures on matched paths.
	RequestValidation bool `yaml:"request-validation"`
	// ResponseSigning signs outbound responses on matched paths.
	ResponseSigning bool `yaml:"response-signing"`

	// MaxBodyBytes caps request/response bodies the signature pipeline
	// buffers for digest verification and signing.
	MaxBodyBytes int64 `yaml:"max-body-bytes"`

	HeaderNames HeaderNames `yaml:"header-names"`

	// SigningKeyPath and SigningCertPath locate the PEM-encoded key pair
	// the response-signing credential loads. Both empty disables response
	// signing regardless of the ResponseSigning flag.
	SigningKeyPath  string `yaml:"signing-key-path"`
	SigningCertPath string `yaml:"signing-cert-path"`

	// ValidationDir holds the PEM certificates trusted as inbound
	// request-signature validation keys.
	ValidationDir string `yaml:"validation-dir"`

	// SignaturePaths are the path patterns the signature pipeline
	// enforces, in PathRule.Pattern form (a trailing "*" matches any
	// suffix). Empty means no path is signature-checked.
	SignaturePaths []string `yaml:"signature-paths"`

	// ShutdownTimeout bounds graceful shutdown of the REST server.
	ShutdownTimeout time.Duration `yaml:"shutdown-timeout"`
}

// DefaultConfig returns a Config with the defaults spec.md §6 names:
// request_validation on, response_signing on, a 10 MiB body cap.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:        ":8443",
		RequestValidation: true,
		ResponseSigning:   true,
		MaxBodyBytes:      10 << 20,
		HeaderNames:       defaultHeaderNames(),
		ShutdownTimeout:   10 * time.Second,
	}
}

// LoadConfig reads a YAML file at path and overlays it onto DefaultConfig.
// A zero HeaderNames field in the file falls back to its own default
// rather than the whole struct's.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("load config: parse %s: %w", path, err)
	}
	cfg.HeaderNames = fillHeaderNames(cfg.HeaderNames)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fillHeaderNames(h HeaderNames) HeaderNames {
	d := defaultHeaderNames()
	if h.RequestSignatureCertificate == "" {
		h.RequestSignatureCertificate = d.RequestSignatureCertificate
	}
	if h.ResponseSignatureCertificate == "" {
		h.ResponseSignatureCertificate = d.ResponseSignatureCertificate
	}
	if h.ForwardedPath == "" {
		h.ForwardedPath = d.ForwardedPath
	}
	if h.RequestCreated == "" {
		h.RequestCreated = d.RequestCreated
	}
	if h.ResponseCreated == "" {
		h.ResponseCreated = d.ResponseCreated
	}
	if h.ResponseID == "" {
		h.ResponseID = d.ResponseID
	}
	return h
}

// Validate checks that the configuration is internally consistent.
// IssuerDomain and ListenAddr are required; ResponseSigning without a
// bootstrap path or passphrase is left to the caller, since a signing
// credential may come from elsewhere (e.g. credstore configured directly).
func (c *Config) Validate() error {
	if c.IssuerDomain == "" {
		return newConfigError("issuer-domain", "must not be empty")
	}
	if c.ListenAddr == "" {
		return newConfigError("listen-addr", "must not be empty")
	}
	if c.MaxBodyBytes <= 0 {
		return newConfigError("max-body-bytes", "must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return newConfigError("shutdown-timeout", "must be positive")
	}
	return nil
}
