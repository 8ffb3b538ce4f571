package apiserver

import (
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"time"

	"github.com/nordiqpay/qcert-pki/internal/camgr"
	"github.com/nordiqpay/qcert-pki/pkg/certrepo"
	"github.com/nordiqpay/qcert-pki/pkg/x509util"
)

// APIError is the problem-details-style body every error response carries.
type APIError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// CertificateRequest is the POST /.certificates body: a PSD2 certificate
// request per spec.md §3.
type CertificateRequest struct {
	CommonName             string               `json:"common_name"`
	Organization           string               `json:"organization,omitempty"`
	Country                string               `json:"country,omitempty"`
	OrganizationIdentifier string               `json:"organization_identifier,omitempty"`
	QcType                 x509util.QcType      `json:"qc_type"`
	Roles                  []x509util.PSD2Role  `json:"roles"`
	NCAName                string               `json:"nca_name"`
	NCAID                  string               `json:"nca_id"`
	QcSSCD                 bool                 `json:"qc_sscd,omitempty"`
	RetentionPeriodYears   *int                 `json:"retention_period_years,omitempty"`
	PDSLocations           []x509util.PDSLocation `json:"pds_locations,omitempty"`
	QcLimitCurrency        string               `json:"qc_limit_currency,omitempty"`
	QcLimitAmount          int                  `json:"qc_limit_amount,omitempty"`
	ValidityDays           int                  `json:"validity_days,omitempty"`
}

func (r CertificateRequest) toPSD2Request() camgr.PSD2Request {
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

// CertificateResponse is the certificate entity shape of spec.md §3, as
// returned by the creation, get-by-id, and list endpoints.
type CertificateResponse struct {
	KeyID          string     `json:"key_id"`
	AuthorityKeyID string     `json:"authority_key_id"`
	SerialNumber   string     `json:"serial_number"`
	Subject        string     `json:"subject"`
	Thumbprint     string     `json:"thumbprint"`
	Algorithm      string     `json:"algorithm"`
	EncodedCert    string     `json:"encoded_cert"`
	IsCA           bool       `json:"is_ca"`
	Revoked        bool       `json:"revoked"`
	RevocationDate *time.Time `json:"revocation_date,omitempty"`
	CreatedDate    time.Time  `json:"created_date"`
	Profile        string     `json:"profile"`
}

func certificateResponseFromRecord(rec certrepo.Record) CertificateResponse {
	return CertificateResponse{
		KeyID:          rec.KeyID,
		AuthorityKeyID: rec.AuthorityKeyID,
		SerialNumber:   rec.SerialNumber,
		Subject:        rec.Subject,
		Thumbprint:     rec.Thumbprint,
		Algorithm:      rec.Algorithm,
		EncodedCert:    rec.EncodedCert,
		IsCA:           rec.IsCA,
		Revoked:        rec.Revoked,
		RevocationDate: rec.RevocationDate,
		CreatedDate:    rec.CreatedDate,
		Profile:        rec.Profile,
	}
}

// certificateResponseFromBundle builds a CertificateResponse straight from
// a freshly issued bundle, for the creation endpoint's 201 body, without a
// round trip through the repository.
func certificateResponseFromBundle(bundle *camgr.Bundle, profile string) CertificateResponse {
	cert := bundle.Certificate
	thumb := sha1.Sum(cert.Raw)
	return CertificateResponse{
		KeyID:          hex.EncodeToString(cert.SubjectKeyId),
		AuthorityKeyID: hex.EncodeToString(cert.AuthorityKeyId),
		SerialNumber:   cert.SerialNumber.Text(16),
		Subject:        cert.Subject.String(),
		Thumbprint:     hex.EncodeToString(thumb[:]),
		Algorithm:      cert.SignatureAlgorithm.String(),
		EncodedCert:    base64.StdEncoding.EncodeToString(cert.Raw),
		IsCA:           cert.IsCA,
		CreatedDate:    cert.NotBefore,
		Profile:        profile,
	}
}
