package camgr

import (
	"context"
	"crypto/x509"
	"encoding/hex"
	"testing"
	"time"

	"github.com/nordiqpay/qcert-pki/internal/certrepo"
	"github.com/nordiqpay/qcert-pki/internal/clock"
	pkgx509util "github.com/nordiqpay/qcert-pki/pkg/x509util"
)

func TestGenerateCRL_SignedAndCoversRevokedSerial(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	repo := certrepo.NewMemStore()
	m := NewManager(repo, clock.Fixed{At: now})

	issuer, err := m.CreateRootCA(context.Background(), "ca.example.com", RootCAOptions{})
	if err != nil {
		t.Fatalf("CreateRootCA: %v", err)
	}

	req := PSD2Request{
		CommonName: "psp.example.com",
		QcType:     pkgx509util.QcTypeWeb,
		Roles:      []pkgx509util.PSD2Role{pkgx509util.PSD2RoleAISP},
		NCAName:    "Bank of Greece",
		NCAID:      "PSDGR-BOG-123456",
	}
	bundle, err := m.CreateQualifiedCertificate(context.Background(), req, "ca.example.com", issuer)
	if err != nil {
		t.Fatalf("CreateQualifiedCertificate: %v", err)
	}

	keyID := bundleKeyID(bundle)
	if err := repo.Revoke(context.Background(), keyID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	crlDER, err := m.GenerateCRL(context.Background(), "ca.example.com", issuer)
	if err != nil {
		t.Fatalf("GenerateCRL: %v", err)
	}

	crl, err := x509.ParseRevocationList(crlDER)
	if err != nil {
		t.Fatalf("ParseRevocationList: %v", err)
	}

	if err := crl.CheckSignatureFrom(issuer.Certificate); err != nil {
		t.Errorf("CRL signature does not verify against the issuing CA: %v", err)
	}

	if crl.ThisUpdate.After(now) || crl.NextUpdate.Before(now) {
		t.Errorf("expected thisUpdate <= now <= nextUpdate, got thisUpdate=%v nextUpdate=%v now=%v", crl.ThisUpdate, crl.NextUpdate, now)
	}
	if got, want := crl.NextUpdate.Sub(crl.ThisUpdate), crlValidity; got != want {
		t.Errorf("nextUpdate - thisUpdate = %v, want %v", got, want)
	}

	matches := 0
	for _, entry := range crl.RevokedCertificateEntries {
		if entry.SerialNumber.Cmp(bundle.Certificate.SerialNumber) == 0 {
			matches++
		}
	}
	if matches != 1 {
		t.Errorf("expected the revoked serial to appear exactly once in the CRL, found %d", matches)
	}
}

func TestGenerateCRL_RequiresIssuer(t *testing.T) {
	m := NewManager(certrepo.NewMemStore(), nil)
	if _, err := m.GenerateCRL(context.Background(), "ca.example.com", nil); err == nil {
		t.Error("expected an error when no issuer bundle is supplied")
	}
}

func bundleKeyID(b *Bundle) string {
	return hex.EncodeToString(b.Certificate.SubjectKeyId)
}
