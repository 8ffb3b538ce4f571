// Package camgr implements the certificate manager (component C4): root-CA
// creation, PSD2 qualified-certificate issuance, and certificate export. It
// is adapted from the teacher's internal/ca package, narrowed to the RSA-only
// signature profile this specification needs and stripped of every
// PQC/Hybrid/Catalyst code path.
package camgr

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"math/big"
	"sync"
	"time"

	"software.sslmate.com/src/go-pkcs12"

	"github.com/nordiqpay/qcert-pki/internal/audit"
	"github.com/nordiqpay/qcert-pki/internal/clock"
	x509internal "github.com/nordiqpay/qcert-pki/internal/x509util"
	"github.com/nordiqpay/qcert-pki/pkg/certrepo"
	"github.com/nordiqpay/qcert-pki/pkg/qcerr"
	qcx509util "github.com/nordiqpay/qcert-pki/pkg/x509util"
)

const (
	defaultRootKeyBits   = 2048
	defaultRootValidity  = 10 * 365 * 24 * time.Hour
	defaultEECValidity   = 825 * 24 * time.Hour
	clockSkewTolerance   = 5 * time.Minute
)

// Bundle pairs an issued certificate with its private key. For a root CA
// this is the CA's own self-signed certificate and signing key; for a
// qualified certificate it is the subject's certificate and key.
type Bundle struct {
	Certificate *x509.Certificate
	PrivateKey  *rsa.PrivateKey
}

// RootCAOptions configures CreateRootCA. A zero value selects all defaults.
type RootCAOptions struct {
	CommonName   string
	Organization string
	Country      string

	// KeyBits is the RSA modulus size: 2048, 3072, or 4096. Zero selects
	// 2048.
	KeyBits int
}

// PSD2Request describes a qualified certificate to issue under component
// C4's PSD2 profile.
type PSD2Request struct {
	CommonName             string
	Organization           string
	Country                string
	OrganizationIdentifier string

	QcType                qcx509util.QcType
	Roles                 []qcx509util.PSD2Role
	NCAName               string
	NCAID                 string

	QcSSCD                bool
	RetentionPeriodYears  *int
	PDSLocations          []qcx509util.PDSLocation
	QcLimitCurrency       string
	QcLimitAmount         int

	// ValidityDays overrides the certificate's validity window in days.
	// Zero selects the default of 825 days.
	ValidityDays int
}

// ExportFormat names a certificate export encoding.
type ExportFormat int

const (
	ExportDER ExportFormat = iota
	ExportPEM
	ExportPKCS12
)

// ExportOptions carries the parameters an export format needs beyond the
// bundle itself.
type ExportOptions struct {
	// Passphrase protects the PKCS#12 container. Required for ExportPKCS12.
	Passphrase string
}

// Manager issues and exports certificates against a certificate repository.
// The zero value is not usable; construct with NewManager.
type Manager struct {
	Repository certrepo.Repository
	Clock      clock.Clock

	bootstrapOnce sync.Once
	bootstrapCA   *Bundle
	bootstrapErr  error
}

// NewManager returns a Manager backed by repo. clk may be nil, in which case
// the system clock is used.
func NewManager(repo certrepo.Repository, clk clock.Clock) *Manager {
	return &Manager{Repository: repo, Clock: clk}
}

func (m *Manager) now() time.Time {
	if m.Clock == nil {
		return clock.System{}.Now()
	}
	return m.Clock.Now()
}

// generateSerialNumber produces a spec-exact serial: 20 random bytes with
// the top bit of the first byte cleared, so the DER INTEGER encoding is
// always positive without needing a leading 0x00 padding byte.
func generateSerialNumber() (*big.Int, error) {
	buf := make([]byte, 21)
	if _, err := rand.Read(buf[1:]); err != nil {
		return nil, fmt.Errorf("generate serial: %w", err)
	}
	buf[1] &^= 0x80
	return new(big.Int).SetBytes(buf[1:]), nil
}

func keyBits(requested int) (int, error) {
	switch requested {
	case 0:
		return defaultRootKeyBits, nil
	case 2048, 3072, 4096:
		return requested, nil
	default:
		return 0, fmt.Errorf("create root ca: unsupported key size %d", requested)
	}
}

// CreateRootCA generates a new RSA key pair and self-signed CA certificate.
// issuerDomain is the common name when opts.CommonName is empty and is
// recorded in the audit trail; the root CA's own extensions carry no
// AIA/CRL pointers since it has no issuer to reference.
func (m *Manager) CreateRootCA(ctx context.Context, issuerDomain string, opts RootCAOptions) (*Bundle, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	bits, err := keyBits(opts.KeyBits)
	if err != nil {
		return nil, err
	}

	signer, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("create root ca: generate key: %w", err)
	}

	cn := opts.CommonName
	if cn == "" {
		cn = issuerDomain
	}
	subjectBuilder := x509internal.NewSubjectBuilder().CommonName(cn)
	if opts.Organization != "" {
		subjectBuilder = subjectBuilder.Organization(opts.Organization)
	}
	if opts.Country != "" {
		subjectBuilder = subjectBuilder.Country(opts.Country)
	}
	subject, err := subjectBuilder.Build()
	if err != nil {
		return nil, fmt.Errorf("create root ca: %w", err)
	}

	serial, err := generateSerialNumber()
	if err != nil {
		return nil, fmt.Errorf("create root ca: %w", err)
	}

	skid, err := x509internal.SubjectKeyID(signer.Public())
	if err != nil {
		return nil, fmt.Errorf("create root ca: compute subject key id: %w", err)
	}

	now := m.now()
	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               subject,
		NotBefore:             now.Add(-clockSkewTolerance),
		NotAfter:              now.Add(defaultRootValidity),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		SubjectKeyId:          skid,
		AuthorityKeyId:        skid,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, template, signer.Public(), signer)
	if err != nil {
		_ = audit.LogCACreated(issuerDomain, subject.String(), "RS256", false)
		return nil, fmt.Errorf("create root ca: sign certificate: %w", err)
	}

	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, fmt.Errorf("create root ca: parse certificate: %w", err)
	}

	if err := audit.LogCACreated(issuerDomain, cert.Subject.String(), "RS256", true); err != nil {
		return nil, fmt.Errorf("create root ca: %w", err)
	}

	return &Bundle{Certificate: cert, PrivateKey: signer}, nil
}

// resolveIssuer returns issuer, lazily bootstrapping a root CA on first use
// if issuer is nil. The bootstrap runs at most once per Manager regardless
// of how many callers race to trigger it.
func (m *Manager) resolveIssuer(ctx context.Context, issuerDomain string, issuer *Bundle) (*Bundle, error) {
	if issuer != nil {
		return issuer, nil
	}

	m.bootstrapOnce.Do(func() {
		bundle, err := m.CreateRootCA(ctx, issuerDomain, RootCAOptions{})
		m.bootstrapCA = bundle
		m.bootstrapErr = err
		if err == nil {
			_ = audit.LogCABootstrapped(issuerDomain, bundle.Certificate.Subject.String(), "RS256", true)
		} else {
			_ = audit.LogCABootstrapped(issuerDomain, "", "RS256", false)
		}
	})

	return m.bootstrapCA, m.bootstrapErr
}

// RootCA returns the Manager's root CA bundle, bootstrapping one lazily on
// first call if none has been created yet. Hosts serving the CA
// certificate or a CRL call this to obtain the signing bundle without
// issuing anything themselves.
func (m *Manager) RootCA(ctx context.Context, issuerDomain string) (*Bundle, error) {
	return m.resolveIssuer(ctx, issuerDomain, nil)
}

// policyOIDForQcType maps a QcType (and the QcSSCD flag) to the ETSI EN 319
// 411-2 certificate policy OID the CertificatePolicies extension carries.
func policyOIDForQcType(qcType qcx509util.QcType, sscd bool) (asn1.ObjectIdentifier, error) {
	switch qcType {
	case qcx509util.QcTypeESign:
		if sscd {
			return qcx509util.OIDPolicyQCPNaturalQSCD, nil
		}
		return qcx509util.OIDPolicyQCPNatural, nil
	case qcx509util.QcTypeESeal:
		if sscd {
			return qcx509util.OIDPolicyQCPLegalQSCD, nil
		}
		return qcx509util.OIDPolicyQCPLegal, nil
	case qcx509util.QcTypeWeb:
		return qcx509util.OIDPolicyQCPWeb, nil
	default:
		return nil, fmt.Errorf("create qualified certificate: invalid QcType %q", qcType)
	}
}

func buildQCStatementsExtension(req PSD2Request) (pkix.Extension, error) {
	builder := qcx509util.NewQCStatementsBuilder().AddQcCompliance()

	if err := builder.AddQcType(req.QcType); err != nil {
		return pkix.Extension{}, err
	}
	if req.QcSSCD {
		builder = builder.AddQcSSCD()
	}
	if req.RetentionPeriodYears != nil {
		if err := builder.AddQcRetentionPeriod(*req.RetentionPeriodYears); err != nil {
			return pkix.Extension{}, err
		}
	}
	if len(req.PDSLocations) > 0 {
		if err := builder.AddQcPDS(req.PDSLocations); err != nil {
			return pkix.Extension{}, err
		}
	}
	if req.QcLimitCurrency != "" {
		if err := builder.AddQcLimitValue(req.QcLimitCurrency, req.QcLimitAmount); err != nil {
			return pkix.Extension{}, err
		}
	}
	if err := builder.AddPSD2(req.Roles, req.NCAName, req.NCAID); err != nil {
		return pkix.Extension{}, err
	}

	return builder.Build(false)
}

// CreateQualifiedCertificate issues a new PSD2 qualified certificate signed
// by issuer. If issuer is nil, a root CA is created on the fly (once per
// Manager) and used to sign this and every subsequent request that omits an
// issuer.
func (m *Manager) CreateQualifiedCertificate(ctx context.Context, req PSD2Request, issuerDomain string, issuer *Bundle) (*Bundle, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if req.CommonName == "" {
		return nil, qcerr.New("issue", fmt.Errorf("%w: common name is required", qcerr.ErrInvalidRequest))
	}
	if len(req.Roles) == 0 {
		return nil, qcerr.New("issue", fmt.Errorf("%w: at least one PSD2 role is required", qcerr.ErrInvalidRequest))
	}

	issuer, err := m.resolveIssuer(ctx, issuerDomain, issuer)
	if err != nil {
		return nil, fmt.Errorf("create qualified certificate: bootstrap root ca: %w", err)
	}

	signer, err := rsa.GenerateKey(rand.Reader, defaultRootKeyBits)
	if err != nil {
		return nil, fmt.Errorf("create qualified certificate: generate key: %w", err)
	}

	subjectBuilder := x509internal.NewSubjectBuilder().CommonName(req.CommonName)
	if req.Organization != "" {
		subjectBuilder = subjectBuilder.Organization(req.Organization)
	}
	if req.Country != "" {
		subjectBuilder = subjectBuilder.Country(req.Country)
	}
	if req.OrganizationIdentifier != "" {
		subjectBuilder = subjectBuilder.OrganizationIdentifier(req.OrganizationIdentifier)
	}
	subject, err := subjectBuilder.Build()
	if err != nil {
		return nil, fmt.Errorf("create qualified certificate: %w", err)
	}

	qcExt, err := buildQCStatementsExtension(req)
	if err != nil {
		return nil, qcerr.New("issue", err)
	}

	policyOID, err := policyOIDForQcType(req.QcType, req.QcSSCD)
	if err != nil {
		return nil, qcerr.New("issue", err)
	}
	policyExt, err := x509internal.BuildCertificatePolicies([]asn1.ObjectIdentifier{policyOID})
	if err != nil {
		return nil, fmt.Errorf("create qualified certificate: %w", err)
	}

	crlExt, err := x509internal.BuildCRLDistributionPoints(fmt.Sprintf("https://%s/.certificates/revoked.crl", issuerDomain))
	if err != nil {
		return nil, fmt.Errorf("create qualified certificate: %w", err)
	}

	aiaExt, err := x509internal.BuildAuthorityInfoAccess([]x509internal.AIAEntry{{
		Method:   x509internal.OIDAccessMethodCAIssuers,
		Location: fmt.Sprintf("https://%s/.certificates/ca.cer", issuerDomain),
	}})
	if err != nil {
		return nil, fmt.Errorf("create qualified certificate: %w", err)
	}

	serial, err := generateSerialNumber()
	if err != nil {
		return nil, fmt.Errorf("create qualified certificate: %w", err)
	}

	skid, err := x509internal.SubjectKeyID(signer.Public())
	if err != nil {
		return nil, fmt.Errorf("create qualified certificate: compute subject key id: %w", err)
	}

	validity := defaultEECValidity
	if req.ValidityDays > 0 {
		validity = time.Duration(req.ValidityDays) * 24 * time.Hour
	}

	now := m.now()
	template := &x509.Certificate{
		SerialNumber:    serial,
		Subject:         subject,
		NotBefore:       now.Add(-clockSkewTolerance),
		NotAfter:        now.Add(validity),
		KeyUsage:        x509.KeyUsageDigitalSignature,
		SubjectKeyId:    skid,
		AuthorityKeyId:  issuer.Certificate.SubjectKeyId,
		ExtraExtensions: []pkix.Extension{qcExt, policyExt, crlExt, aiaExt},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, issuer.Certificate, signer.Public(), issuer.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("create qualified certificate: sign certificate: %w", err)
	}

	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, fmt.Errorf("create qualified certificate: parse certificate: %w", err)
	}

	if m.Repository != nil {
		rec, err := recordForCertificate(cert, signer, issuer.Certificate, string(req.QcType))
		if err != nil {
			return nil, fmt.Errorf("create qualified certificate: %w", err)
		}
		if _, err := m.Repository.Add(ctx, rec); err != nil {
			_ = audit.LogCertIssued(issuerDomain, rec.SerialNumber, cert.Subject.String(), rec.Profile, cert.SignatureAlgorithm.String(), false)
			return nil, fmt.Errorf("create qualified certificate: %w", err)
		}
	}

	if err := audit.LogCertIssued(issuerDomain, fmt.Sprintf("%x", cert.SerialNumber), cert.Subject.String(), string(req.QcType), cert.SignatureAlgorithm.String(), true); err != nil {
		return nil, fmt.Errorf("create qualified certificate: %w", err)
	}

	return &Bundle{Certificate: cert, PrivateKey: signer}, nil
}

func recordForCertificate(cert *x509.Certificate, signer *rsa.PrivateKey, issuerCert *x509.Certificate, profile string) (certrepo.Record, error) {
	keyPEM, err := encodePrivateKeyPEM(signer)
	if err != nil {
		return certrepo.Record{}, err
	}

	thumb := sha1.Sum(cert.Raw)

	return certrepo.Record{
		KeyID:          hex.EncodeToString(cert.SubjectKeyId),
		AuthorityKeyID: hex.EncodeToString(issuerCert.SubjectKeyId),
		SerialNumber:   fmt.Sprintf("%x", cert.SerialNumber),
		Subject:        cert.Subject.String(),
		Thumbprint:     hex.EncodeToString(thumb[:]),
		Algorithm:      cert.SignatureAlgorithm.String(),
		EncodedCert:    encodeDERBase64(cert.Raw),
		PrivateKeyPEM:  string(keyPEM),
		IsCA:           cert.IsCA,
		CreatedDate:    cert.NotBefore,
		Profile:        profile,
	}, nil
}

func encodePrivateKeyPEM(key *rsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("encode private key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

// Export renders bundle in the requested format.
func (m *Manager) Export(bundle *Bundle, format ExportFormat, opts ExportOptions) ([]byte, error) {
	if bundle == nil || bundle.Certificate == nil {
		return nil, qcerr.New("export", fmt.Errorf("%w: nil certificate", qcerr.ErrInvalidRequest))
	}

	switch format {
	case ExportDER:
		return bundle.Certificate.Raw, nil

	case ExportPEM:
		return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: bundle.Certificate.Raw}), nil

	case ExportPKCS12:
		if bundle.PrivateKey == nil {
			return nil, qcerr.New("export", fmt.Errorf("%w: PKCS12 export requires the private key", qcerr.ErrInvalidRequest))
		}
		data, err := pkcs12.Encode(rand.Reader, bundle.PrivateKey, bundle.Certificate, nil, opts.Passphrase)
		if err != nil {
			return nil, qcerr.New("export", fmt.Errorf("pkcs12: %w", err))
		}
		return data, nil

	default:
		return nil, qcerr.New("export", fmt.Errorf("%w: unsupported export format", qcerr.ErrInvalidRequest))
	}
}

func encodeDERBase64(der []byte) string {
	return base64.StdEncoding.EncodeToString(der)
}
