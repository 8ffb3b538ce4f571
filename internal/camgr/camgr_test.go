package camgr

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/nordiqpay/qcert-pki/internal/certrepo"
	"github.com/nordiqpay/qcert-pki/internal/clock"
	pkgcertrepo "github.com/nordiqpay/qcert-pki/pkg/certrepo"
	pkgx509util "github.com/nordiqpay/qcert-pki/pkg/x509util"
)

func TestCreateRootCA_PEMRoundTrip(t *testing.T) {
	m := NewManager(certrepo.NewMemStore(), nil)

	bundle, err := m.CreateRootCA(context.Background(), "ca.example.com", RootCAOptions{})
	if err != nil {
		t.Fatalf("CreateRootCA: %v", err)
	}

	if !bundle.Certificate.IsCA {
		t.Error("expected IsCA=true")
	}
	wantUsage := x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign | x509.KeyUsageCRLSign
	if bundle.Certificate.KeyUsage != wantUsage {
		t.Errorf("KeyUsage = %v, want %v", bundle.Certificate.KeyUsage, wantUsage)
	}
	if bundle.Certificate.NotAfter.Sub(bundle.Certificate.NotBefore) < 3650*24*time.Hour {
		t.Errorf("validity window too short: %v", bundle.Certificate.NotAfter.Sub(bundle.Certificate.NotBefore))
	}

	der, err := m.Export(bundle, ExportPEM, ExportOptions{})
	if err != nil {
		t.Fatalf("Export PEM: %v", err)
	}

	block, _ := pem.Decode(der)
	if block == nil || block.Type != "CERTIFICATE" {
		t.Fatalf("expected a CERTIFICATE PEM block, got %v", block)
	}

	reimported, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		t.Fatalf("re-import: %v", err)
	}
	if !reimported.IsCA {
		t.Error("re-imported certificate lost BasicConstraints.CA")
	}
	if reimported.KeyUsage != wantUsage {
		t.Errorf("re-imported KeyUsage = %v, want %v", reimported.KeyUsage, wantUsage)
	}
}

func TestCreateRootCA_RejectsUnsupportedKeySize(t *testing.T) {
	m := NewManager(certrepo.NewMemStore(), nil)
	if _, err := m.CreateRootCA(context.Background(), "ca.example.com", RootCAOptions{KeyBits: 1024}); err == nil {
		t.Error("expected an error for an unsupported key size")
	}
}

func TestCreateQualifiedCertificate_PSD2Statement(t *testing.T) {
	repo := certrepo.NewMemStore()
	m := NewManager(repo, clock.Fixed{At: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)})

	issuer, err := m.CreateRootCA(context.Background(), "ca.example.com", RootCAOptions{})
	if err != nil {
		t.Fatalf("CreateRootCA: %v", err)
	}

	req := PSD2Request{
		CommonName: "psp.example.com",
		QcType:     pkgx509util.QcTypeWeb,
		Roles:      []pkgx509util.PSD2Role{pkgx509util.PSD2RoleAISP, pkgx509util.PSD2RolePISP},
		NCAName:    "Bank of Greece",
		NCAID:      "PSDGR-BOG-123456",
	}

	bundle, err := m.CreateQualifiedCertificate(context.Background(), req, "ca.example.com", issuer)
	if err != nil {
		t.Fatalf("CreateQualifiedCertificate: %v", err)
	}

	ext := pkgx509util.FindQCStatements(bundle.Certificate.Extensions)
	if ext == nil {
		t.Fatal("expected a QCStatements extension")
	}
	if ext.Id.String() != "1.3.6.1.5.5.7.1.3" {
		t.Errorf("unexpected QCStatements extension OID: %s", ext.Id.String())
	}

	info, err := pkgx509util.DecodeQCStatements(*ext)
	if err != nil {
		t.Fatalf("DecodeQCStatements: %v", err)
	}
	if info.PSD2 == nil {
		t.Fatal("expected a decoded PSD2 statement")
	}
	if info.PSD2.NCAName != req.NCAName || info.PSD2.NCAId != req.NCAID {
		t.Errorf("PSD2 NCA identity mismatch: got %+v", info.PSD2)
	}
	if len(info.PSD2.Roles) != 2 {
		t.Errorf("expected 2 PSD2 roles, got %d", len(info.PSD2.Roles))
	}

	if len(bundle.Certificate.AuthorityKeyId) == 0 || string(bundle.Certificate.AuthorityKeyId) != string(issuer.Certificate.SubjectKeyId) {
		t.Error("AuthorityKeyIdentifier must equal the issuer's SubjectKeyIdentifier")
	}

	records, err := repo.List(context.Background(), pkgcertrepo.ListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("expected the issued certificate to be recorded, got %d records", len(records))
	}
}

func TestCreateQualifiedCertificate_LazyBootstrap(t *testing.T) {
	m := NewManager(certrepo.NewMemStore(), nil)

	req := PSD2Request{
		CommonName: "psp.example.com",
		QcType:     pkgx509util.QcTypeESeal,
		Roles:      []pkgx509util.PSD2Role{pkgx509util.PSD2RoleASPSP},
		NCAName:    "Bank of Greece",
		NCAID:      "PSDGR-BOG-123456",
	}

	first, err := m.CreateQualifiedCertificate(context.Background(), req, "ca.example.com", nil)
	if err != nil {
		t.Fatalf("CreateQualifiedCertificate (first): %v", err)
	}
	second, err := m.CreateQualifiedCertificate(context.Background(), req, "ca.example.com", nil)
	if err != nil {
		t.Fatalf("CreateQualifiedCertificate (second): %v", err)
	}

	if string(first.Certificate.AuthorityKeyId) != string(second.Certificate.AuthorityKeyId) {
		t.Error("expected both certificates to be signed by the same lazily-bootstrapped root CA")
	}
}

func TestCreateQualifiedCertificate_RequiresAtLeastOneRole(t *testing.T) {
	m := NewManager(certrepo.NewMemStore(), nil)
	req := PSD2Request{CommonName: "psp.example.com", QcType: pkgx509util.QcTypeWeb}
	if _, err := m.CreateQualifiedCertificate(context.Background(), req, "ca.example.com", nil); err == nil {
		t.Error("expected an error when no PSD2 role is supplied")
	}
}
