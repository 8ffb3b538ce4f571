package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nordiqpay/qcert-pki/internal/camgr"
	"github.com/nordiqpay/qcert-pki/pkg/x509util"
)

var issueRequestPath string

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue a PSD2 qualified certificate from a request file",
	Long: `issue reads a PSD2 certificate request (YAML, or JSON, which the
YAML parser also accepts; the file extension is not consulted) and signs
it with the bootstrapped root CA.`,
	RunE: runIssue,
}

func init() {
	issueCmd.Flags().StringVar(&issueRequestPath, "request", "", "path to the JSON/YAML PSD2 request file (required)")
}

// issueRequest mirrors camgr.PSD2Request with wire tags for a request
// file, since camgr.PSD2Request itself carries none.
type issueRequest struct {
	CommonName             string               `json:"common_name" yaml:"common_name"`
	Organization           string               `json:"organization,omitempty" yaml:"organization,omitempty"`
	Country                string               `json:"country,omitempty" yaml:"country,omitempty"`
	OrganizationIdentifier string               `json:"organization_identifier,omitempty" yaml:"organization_identifier,omitempty"`
	QcType                 x509util.QcType      `json:"qc_type" yaml:"qc_type"`
	Roles                  []x509util.PSD2Role  `json:"roles" yaml:"roles"`
	NCAName                string               `json:"nca_name" yaml:"nca_name"`
	NCAID                  string               `json:"nca_id" yaml:"nca_id"`
	QcSSCD                 bool                 `json:"qc_sscd,omitempty" yaml:"qc_sscd,omitempty"`
	RetentionPeriodYears   *int                 `json:"retention_period_years,omitempty" yaml:"retention_period_years,omitempty"`
	PDSLocations           []x509util.PDSLocation `json:"pds_locations,omitempty" yaml:"pds_locations,omitempty"`
	QcLimitCurrency        string               `json:"qc_limit_currency,omitempty" yaml:"qc_limit_currency,omitempty"`
	QcLimitAmount          int                  `json:"qc_limit_amount,omitempty" yaml:"qc_limit_amount,omitempty"`
	ValidityDays           int                  `json:"validity_days,omitempty" yaml:"validity_days,omitempty"`
}

func (r issueRequest) toPSD2Request() camgr.PSD2Request {
	return camgr.PSD2Request{
		CommonName:             r.CommonName,
		Organization:           r.Organization,
		Country:                r.Country,
		OrganizationIdentifier: r.OrganizationIdentifier,
		QcType:                 r.QcType,
		Roles:                  r.Roles,
		NCAName:                r.NCAName,
		NCAID:                  r.NCAID,
		QcSSCD:                 r.QcSSCD,
		RetentionPeriodYears:   r.RetentionPeriodYears,
		PDSLocations:           r.PDSLocations,
		QcLimitCurrency:        r.QcLimitCurrency,
		QcLimitAmount:          r.QcLimitAmount,
		ValidityDays:           r.ValidityDays,
	}
}

func runIssue(cmd *cobra.Command, args []string) error {
	if issueRequestPath == "" {
		return fmt.Errorf("issue: --request is required")
	}

	data, err := os.ReadFile(issueRequestPath)
	if err != nil {
		return fmt.Errorf("issue: read request file: %w", err)
	}

	var req issueRequest
	if err := yaml.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("issue: parse request file: %w", err)
	}

	mgr, _, cfg, err := loadManager()
	if err != nil {
		return err
	}

	issuer, err := loadRootCA(cfg)
	if err != nil {
		return err
	}

	bundle, err := mgr.CreateQualifiedCertificate(context.Background(), req.toPSD2Request(), cfg.IssuerDomain, issuer)
	if err != nil {
		return fmt.Errorf("issue: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]string{
		"key_id":           fmt.Sprintf("%x", bundle.Certificate.SubjectKeyId),
		"serial_number":    bundle.Certificate.SerialNumber.Text(16),
		"subject":          bundle.Certificate.Subject.String(),
		"authority_key_id": fmt.Sprintf("%x", bundle.Certificate.AuthorityKeyId),
	})
}
