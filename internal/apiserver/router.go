// Package apiserver hosts the REST surface of spec.md §6: the six
// /.certificates endpoints, the global middleware chain, and the
// http.Server lifecycle wrapping them.
package apiserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nordiqpay/qcert-pki/internal/apiserver/middleware"
	"github.com/nordiqpay/qcert-pki/internal/camgr"
	"github.com/nordiqpay/qcert-pki/internal/httpsig"
	"github.com/nordiqpay/qcert-pki/pkg/certrepo"
)

// RouterConfig wires together everything the router's handlers need.
type RouterConfig struct {
	Manager      *camgr.Manager
	Repository   certrepo.Repository
	IssuerDomain string

	// SignaturePipeline validates inbound and signs outbound requests on
	// matched paths. May be nil to disable HTTP-Signature enforcement
	// entirely.
	SignaturePipeline *httpsig.Pipeline
}

// NewRouter builds the chi router serving spec.md §6's endpoint table
// under /.certificates, with the global middleware chain RequestID →
// Logger → Recoverer → CORS → httpsig.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.CORS)
	if cfg.SignaturePipeline != nil {
		r.Use(cfg.SignaturePipeline.Middleware())
	}

	h := &Handlers{
		Manager:      cfg.Manager,
		Repository:   cfg.Repository,
		IssuerDomain: cfg.IssuerDomain,
	}

	r.Get("/health", healthCheck)

	r.Route("/.certificates", func(r chi.Router) {
		r.Get("/ca.cer", h.GetCACert)
		r.Get("/revoked.crl", h.GetCRL)
		r.Post("/", h.IssueCertificate)
		r.Get("/", h.ListCertificates)
		r.Get("/{keyIdExt}", h.GetCertificate)
		r.Put("/{keyId}/revoke", h.RevokeCertificate)
	})

	return r
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
