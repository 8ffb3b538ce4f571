package httpsig

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nordiqpay/qcert-pki/pkg/credstore"
	"github.com/nordiqpay/qcert-pki/pkg/httpsig"
)

type staticValidationKeys struct{ keys []credstore.SecurityKey }

func (s staticValidationKeys) Keys(context.Context) ([]credstore.SecurityKey, error) {
	return s.keys, nil
}

type staticCredentials struct {
	signer crypto.Signer
	alg    credstore.Algorithm
	cert   *x509.Certificate
}

func (c staticCredentials) SigningKey(context.Context) (crypto.Signer, credstore.Algorithm, error) {
	return c.signer, c.alg, nil
}

func (c staticCredentials) SigningCertificate(context.Context) (*x509.Certificate, error) {
	return c.cert, nil
}

func genKey(t *testing.T, cn string) (*rsa.PrivateKey, *x509.Certificate) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}
	return key, cert
}

func signRequest(t *testing.T, req *http.Request, key *rsa.PrivateKey, body []byte, headers []string) {
	t.Helper()
	var digest *httpsig.Digest
	if len(body) > 0 {
		var err error
		digest, err = httpsig.ComputeDigest("SHA-256", body)
		if err != nil {
			t.Fatalf("ComputeDigest: %v", err)
		}
		req.Header.Set("Digest", digest.String())
	}

	params := &httpsig.SignatureParams{KeyID: "client", Algorithm: "rsa-sha256", Headers: headers}
	headerValues := map[string][]string{}
	if digest != nil {
		headerValues["digest"] = []string{digest.String()}
	}

	input, err := httpsig.BuildSigningString(params, req.Method, req.URL.Path, headerValues)
	if err != nil {
		t.Fatalf("BuildSigningString: %v", err)
	}
	if err := httpsig.Sign(params, key, input); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	req.Header.Set("Signature", params.String())
}

func TestPipeline_ValidSignatureForwards(t *testing.T) {
	key, cert := genKey(t, "client")
	p := &Pipeline{
		Rules:          []PathRule{{Pattern: "/payments", RequiredHeaders: []string{"(request-target)", "digest"}}},
		ValidationKeys: staticValidationKeys{keys: []credstore.SecurityKey{{KeyID: "client", PublicKey: cert.PublicKey}}},
	}

	body := []byte(`{"amount":1}`)
	req := httptest.NewRequest(http.MethodPost, "/payments", bytes.NewReader(body))
	signRequest(t, req, key, body, []string{"(request-target)", "digest"})

	called := false
	handler := p.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !called {
		t.Fatal("expected downstream handler to be invoked")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestPipeline_MissingDigestHeader(t *testing.T) {
	_, cert := genKey(t, "client")
	p := &Pipeline{
		Rules:          []PathRule{{Pattern: "/payments", RequiredHeaders: []string{"digest"}}},
		ValidationKeys: staticValidationKeys{keys: []credstore.SecurityKey{{KeyID: "client", PublicKey: cert.PublicKey}}},
	}

	req := httptest.NewRequest(http.MethodPost, "/payments", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Signature", `keyId="client",algorithm="rsa-sha256",headers="digest",signature="YWJj"`)

	handler := p.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("downstream handler must not be invoked")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestPipeline_MutatedBodyFailsDigest(t *testing.T) {
	key, cert := genKey(t, "client")
	p := &Pipeline{
		Rules:          []PathRule{{Pattern: "/payments", RequiredHeaders: []string{"digest"}}},
		ValidationKeys: staticValidationKeys{keys: []credstore.SecurityKey{{KeyID: "client", PublicKey: cert.PublicKey}}},
	}

	body := []byte(`{"amount":1}`)
	req := httptest.NewRequest(http.MethodPost, "/payments", bytes.NewReader([]byte(`{"amount":2}`)))
	signRequest(t, req, key, body, []string{"digest"})

	handler := p.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("downstream handler must not be invoked")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestPipeline_UnmatchedPathForwardsUnchanged(t *testing.T) {
	p := &Pipeline{Rules: []PathRule{{Pattern: "/payments"}}}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	called := false
	handler := p.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if !called {
		t.Fatal("expected unmatched-path request to forward")
	}
	if rec.Header().Get("Signature") != "" {
		t.Error("unmatched path must never be response-signed")
	}
}

func TestPipeline_NeverPartiallySignsFailedResponse(t *testing.T) {
	_, clientCert := genKey(t, "client")
	signerKey, signerCert := genKey(t, "server")
	rv := false
	p := &Pipeline{
		Rules:           []PathRule{{Pattern: "/payments", RequiredHeaders: []string{"digest"}}},
		Credentials:     staticCredentials{signer: signerKey, alg: credstore.AlgorithmRSASHA256, cert: signerCert},
		ValidationKeys:  staticValidationKeys{keys: []credstore.SecurityKey{{KeyID: "client", PublicKey: clientCert.PublicKey}}},
		RequestValidation: &rv,
	}

	req := httptest.NewRequest(http.MethodGet, "/payments", nil)
	handler := p.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if rec.Header().Get("Signature") != "" {
		t.Error("a non-2xx response must never carry a Signature header")
	}
}

func TestPipeline_MatchedPathSignsSuccessfulResponse(t *testing.T) {
	_, clientCert := genKey(t, "client")
	signerKey, signerCert := genKey(t, "server")
	rv := false
	p := &Pipeline{
		Rules:           []PathRule{{Pattern: "/payments", RequiredHeaders: []string{"digest"}}},
		Credentials:     staticCredentials{signer: signerKey, alg: credstore.AlgorithmRSASHA256, cert: signerCert},
		ValidationKeys:  staticValidationKeys{keys: []credstore.SecurityKey{{KeyID: "client", PublicKey: clientCert.PublicKey}}},
		RequestValidation: &rv,
	}

	req := httptest.NewRequest(http.MethodGet, "/payments", nil)
	handler := p.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("Signature") == "" {
		t.Error("matched path with successful response must carry a Signature header")
	}
	if rec.Header().Get("Digest") == "" {
		t.Error("signed response must carry a Digest header")
	}
}
