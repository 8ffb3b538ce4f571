package apiserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nordiqpay/qcert-pki/internal/camgr"
	"github.com/nordiqpay/qcert-pki/internal/certrepo"
	pkgx509util "github.com/nordiqpay/qcert-pki/pkg/x509util"
)

func newTestRouter(t *testing.T) (http.Handler, *certrepo.MemStore, *camgr.Manager) {
	t.Helper()
	repo := certrepo.NewMemStore()
	mgr := camgr.NewManager(repo, nil)
	router := NewRouter(RouterConfig{
		Manager:      mgr,
		Repository:   repo,
		IssuerDomain: "ca.example.com",
	})
	return router, repo, mgr
}

func issueTestCertificate(t *testing.T, router http.Handler) CertificateResponse {
	t.Helper()
	body, _ := json.Marshal(CertificateRequest{
		CommonName: "psp.example.com",
		QcType:     pkgx509util.QcTypeWeb,
		Roles:      []pkgx509util.PSD2Role{pkgx509util.PSD2RoleAISP},
		NCAName:    "Bank of Greece",
		NCAID:      "PSDGR-BOG-123456",
	})

	req := httptest.NewRequest(http.MethodPost, "/.certificates", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /.certificates: status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp CertificateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestIssueCertificate_Returns201WithCertificateEntity(t *testing.T) {
	router, _, _ := newTestRouter(t)
	resp := issueTestCertificate(t, router)

	if resp.KeyID == "" {
		t.Error("expected a non-empty key_id")
	}
	if resp.AuthorityKeyID == "" {
		t.Error("expected a non-empty authority_key_id")
	}
	if resp.EncodedCert == "" {
		t.Error("expected a non-empty encoded_cert")
	}
}

func TestGetCACert_ReturnsDER(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/.certificates/ca.cer", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pkix-cert" {
		t.Errorf("Content-Type = %q", ct)
	}
	if rec.Body.Len() == 0 {
		t.Error("expected a non-empty DER body")
	}
}

func TestGetCertificate_PEMRoundTrip(t *testing.T) {
	router, _, _ := newTestRouter(t)
	issued := issueTestCertificate(t, router)

	req := httptest.NewRequest(http.MethodGet, "/.certificates/"+issued.KeyID+".pem", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/x-pem-file" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestRevokeCertificate_NoContentThenHiddenFromGet(t *testing.T) {
	router, _, _ := newTestRouter(t)
	issued := issueTestCertificate(t, router)

	req := httptest.NewRequest(http.MethodPut, "/.certificates/"+issued.KeyID+"/revoke", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("revoke status = %d", rec.Code)
	}

	getReq := httptest.NewRequest(http.MethodGet, "/.certificates/"+issued.KeyID+".cer", nil)
	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, getReq)
	if getRec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for a revoked certificate, got %d", getRec.Code)
	}
}

func TestRevokeCertificate_UnknownKeyIDIs404(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPut, "/.certificates/doesnotexist/revoke", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestListCertificates_FiltersByRevoked(t *testing.T) {
	router, _, _ := newTestRouter(t)
	issued := issueTestCertificate(t, router)

	revokeReq := httptest.NewRequest(http.MethodPut, "/.certificates/"+issued.KeyID+"/revoke", nil)
	router.ServeHTTP(httptest.NewRecorder(), revokeReq)

	req := httptest.NewRequest(http.MethodGet, "/.certificates?revoked=true", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var list []CertificateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 1 || list[0].KeyID != issued.KeyID {
		t.Errorf("expected exactly the revoked certificate, got %+v", list)
	}
}

func TestGetCRL_CoversRevokedCertificate(t *testing.T) {
	router, _, _ := newTestRouter(t)
	issued := issueTestCertificate(t, router)

	revokeReq := httptest.NewRequest(http.MethodPut, "/.certificates/"+issued.KeyID+"/revoke", nil)
	router.ServeHTTP(httptest.NewRecorder(), revokeReq)

	req := httptest.NewRequest(http.MethodGet, "/.certificates/revoked.crl", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pkix-crl" {
		t.Errorf("Content-Type = %q", ct)
	}
	if rec.Body.Len() == 0 {
		t.Error("expected a non-empty DER CRL body")
	}
}

func TestIssueCertificate_InvalidJSONIs400(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/.certificates", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}
