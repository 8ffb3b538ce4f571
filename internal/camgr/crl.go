package camgr

import (
	"context"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"time"

	"github.com/nordiqpay/qcert-pki/internal/audit"
)

// crlValidity is the interval between thisUpdate and nextUpdate (DESIGN.md
// Open Question 3).
const crlValidity = 7 * 24 * time.Hour

// GenerateCRL builds and signs a DER certificate revocation list covering
// every entry the repository reports revoked, using issuer as the signing
// CA.
func (m *Manager) GenerateCRL(ctx context.Context, issuerDomain string, issuer *Bundle) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if issuer == nil || issuer.Certificate == nil || issuer.PrivateKey == nil {
		return nil, fmt.Errorf("generate crl: issuer certificate and key are required")
	}
	if m.Repository == nil {
		return nil, fmt.Errorf("generate crl: no repository configured")
	}

	entries, err := m.Repository.RevocationList(ctx, nil)
	if err != nil {
		_ = audit.LogCRLGenerated(issuerDomain, 0, false)
		return nil, fmt.Errorf("generate crl: %w", err)
	}

	revoked := make([]pkix.RevokedCertificate, 0, len(entries))
	for _, entry := range entries {
		serial, ok := new(big.Int).SetString(entry.Serial, 16)
		if !ok {
			return nil, fmt.Errorf("generate crl: malformed serial %q", entry.Serial)
		}
		revoked = append(revoked, pkix.RevokedCertificate{
			SerialNumber:   serial,
			RevocationTime: entry.RevocationDate,
		})
	}

	crlNumber, err := m.Repository.NextCRLNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("generate crl: %w", err)
	}

	thisUpdate := m.now().UTC()
	template := &x509.RevocationList{
		RevokedCertificates: revoked,
		Number:              big.NewInt(crlNumber),
		ThisUpdate:           thisUpdate,
		NextUpdate:           thisUpdate.Add(crlValidity),
	}

	crlDER, err := x509.CreateRevocationList(rand.Reader, template, issuer.Certificate, issuer.PrivateKey)
	if err != nil {
		_ = audit.LogCRLGenerated(issuerDomain, len(revoked), false)
		return nil, fmt.Errorf("generate crl: sign: %w", err)
	}

	if err := audit.LogCRLGenerated(issuerDomain, len(revoked), true); err != nil {
		return nil, fmt.Errorf("generate crl: %w", err)
	}

	return crlDER, nil
}
