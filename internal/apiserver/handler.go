package apiserver

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nordiqpay/qcert-pki/internal/camgr"
	"github.com/nordiqpay/qcert-pki/pkg/certrepo"
	"github.com/nordiqpay/qcert-pki/pkg/qcerr"
)

// mediaTypeForExt implements spec.md §6's extension-to-content-type table.
var mediaTypeForExt = map[string]string{
	"crt": "application/x-x509-user-cert",
	"cer": "application/pkix-cert",
	"key": "application/pkcs8",
	"pfx": "application/x-pkcs12",
	"pem": "application/x-pem-file",
}

// Handlers implements the six REST endpoints of spec.md §6, delegating to
// a certificate manager and repository.
type Handlers struct {
	Manager      *camgr.Manager
	Repository   certrepo.Repository
	IssuerDomain string
}

// GetCACert handles GET /.certificates/ca.cer.
func (h *Handlers) GetCACert(w http.ResponseWriter, r *http.Request) {
	bundle, err := h.Manager.RootCA(r.Context(), h.IssuerDomain)
	if err != nil {
		handleRepositoryError(w, "bootstrap", err)
		return
	}

	der, err := h.Manager.Export(bundle, camgr.ExportDER, camgr.ExportOptions{})
	if err != nil {
		handleRepositoryError(w, "export", err)
		return
	}

	w.Header().Set("Content-Type", "application/pkix-cert")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(der)
}

// IssueCertificate handles POST /.certificates.
func (h *Handlers) IssueCertificate(w http.ResponseWriter, r *http.Request) {
	var req CertificateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "invalid JSON request body")
		return
	}

	bundle, err := h.Manager.CreateQualifiedCertificate(r.Context(), req.toPSD2Request(), h.IssuerDomain, nil)
	if err != nil {
		handleRepositoryError(w, "issue", err)
		return
	}

	respondJSON(w, http.StatusCreated, certificateResponseFromBundle(bundle, string(req.QcType)))
}

// ListCertificates handles GET /.certificates.
func (h *Handlers) ListCertificates(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		respondBadRequest(w, err.Error())
		return
	}

	records, err := h.Repository.List(r.Context(), filter)
	if err != nil {
		handleRepositoryError(w, "list", err)
		return
	}

	resp := make([]CertificateResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, certificateResponseFromRecord(rec))
	}
	respondJSON(w, http.StatusOK, resp)
}

func parseListFilter(r *http.Request) (certrepo.ListFilter, error) {
	var filter certrepo.ListFilter

	q := r.URL.Query()
	if v := q.Get("notBefore"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, fmt.Errorf("invalid notBefore: %w", err)
		}
		filter.NotBefore = &t
	}
	if v := q.Get("revoked"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return filter, fmt.Errorf("invalid revoked: %w", err)
		}
		filter.Revoked = &b
	}
	if v := q.Get("authorityKeyId"); v != "" {
		filter.AuthorityKeyID = &v
	}
	return filter, nil
}

// RevokeCertificate handles PUT /.certificates/{keyId}/revoke.
func (h *Handlers) RevokeCertificate(w http.ResponseWriter, r *http.Request) {
	keyID := chi.URLParam(r, "keyId")

	if err := h.Repository.Revoke(r.Context(), keyID); err != nil {
		handleRepositoryError(w, "revoke", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetCertificate handles GET /.certificates/{keyId}.{ext}.
func (h *Handlers) GetCertificate(w http.ResponseWriter, r *http.Request) {
	keyIDExt := chi.URLParam(r, "keyIdExt")
	keyID, ext, ok := splitKeyIDExt(keyIDExt)
	if !ok {
		respondBadRequest(w, "path must be {keyId}.{ext}")
		return
	}

	contentType, ok := mediaTypeForExt[ext]
	if !ok {
		respondBadRequest(w, fmt.Sprintf("unsupported extension %q", ext))
		return
	}

	rec, err := h.Repository.GetByID(r.Context(), keyID)
	if err != nil {
		handleRepositoryError(w, "get", err)
		return
	}

	bundle, err := bundleFromRecord(rec)
	if err != nil {
		handleRepositoryError(w, "get", fmt.Errorf("reconstruct certificate: %w", err))
		return
	}

	var body []byte
	switch ext {
	case "cer", "crt":
		body, err = h.Manager.Export(bundle, camgr.ExportDER, camgr.ExportOptions{})
	case "pem":
		body, err = h.Manager.Export(bundle, camgr.ExportPEM, camgr.ExportOptions{})
	case "key":
		body, err = privateKeyDER(bundle)
	case "pfx":
		password := r.URL.Query().Get("password")
		if password == "" {
			respondBadRequest(w, "pfx export requires ?password=")
			return
		}
		body, err = h.Manager.Export(bundle, camgr.ExportPKCS12, camgr.ExportOptions{Passphrase: password})
	}
	if err != nil {
		handleRepositoryError(w, "export", err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func splitKeyIDExt(s string) (keyID, ext string, ok bool) {
	i := strings.LastIndex(s, ".")
	if i <= 0 || i == len(s)-1 {
		return "", "", false
	}
	return s[:i], s[i+1:], true
}

// bundleFromRecord reconstructs the certificate (and, if present, the
// private key) a persisted record carries so the export code path can
// reuse camgr.Manager.Export instead of duplicating its encodings.
func bundleFromRecord(rec certrepo.Record) (*camgr.Bundle, error) {
	der, err := base64.StdEncoding.DecodeString(rec.EncodedCert)
	if err != nil {
		return nil, fmt.Errorf("decode encoded_cert: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("parse certificate: %w", err)
	}

	bundle := &camgr.Bundle{Certificate: cert}
	if rec.PrivateKeyPEM == "" {
		return bundle, nil
	}

	block, _ := pem.Decode([]byte(rec.PrivateKeyPEM))
	if block == nil {
		return nil, fmt.Errorf("decode private key PEM")
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("unsupported private key type %T", key)
	}
	bundle.PrivateKey = rsaKey
	return bundle, nil
}

func privateKeyDER(bundle *camgr.Bundle) ([]byte, error) {
	if bundle.PrivateKey == nil {
		return nil, qcerr.New("export", fmt.Errorf("%w: no private key on record", qcerr.ErrInvalidRequest))
	}
	der, err := x509.MarshalPKCS8PrivateKey(bundle.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("marshal private key: %w", err)
	}
	return der, nil
}

// GetCRL handles GET /.certificates/revoked.crl.
func (h *Handlers) GetCRL(w http.ResponseWriter, r *http.Request) {
	issuer, err := h.Manager.RootCA(r.Context(), h.IssuerDomain)
	if err != nil {
		handleRepositoryError(w, "bootstrap", err)
		return
	}

	crlDER, err := h.Manager.GenerateCRL(r.Context(), h.IssuerDomain, issuer)
	if err != nil {
		handleRepositoryError(w, "crl", err)
		return
	}

	w.Header().Set("Content-Type", "application/pkix-crl")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(crlDER)
}
