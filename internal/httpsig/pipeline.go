// Package httpsig implements the bidirectional HTTP-Signature middleware
// pipeline (component C8): path-scoped inbound validation and optional
// outbound response signing, built on pkg/httpsig's types and on
// pkg/credstore's credential interfaces.
//
// The wrapping style (func(http.Handler) http.Handler, a status-capturing
// response writer) follows the same shape as every middleware in this
// repository's request path.
package httpsig

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/nordiqpay/qcert-pki/internal/audit"
	"github.com/nordiqpay/qcert-pki/internal/clock"
	"github.com/nordiqpay/qcert-pki/pkg/credstore"
	"github.com/nordiqpay/qcert-pki/pkg/httpsig"
)

const defaultMaxBodyBytes = 10 << 20 // 10 MiB

// Pipeline holds the path-scoped policy and credentials the middleware
// enforces. In the zero value RequestValidation is on (nil means true) and
// ResponseSigning is off, since signing also requires Credentials.
type Pipeline struct {
	Rules []PathRule

	// RequestValidation enforces signatures on matched paths. Default true.
	RequestValidation *bool
	// ResponseSigning signs outbound responses on matched paths, never on
	// unmatched ones regardless of a Signature header on the request
	// (source behavior, preserved per DESIGN.md's Open Question decision).
	// Default true when Credentials is set.
	ResponseSigning *bool

	Credentials    credstore.SigningCredentials
	ValidationKeys credstore.ValidationKeys
	Clock          clock.Clock

	MaxBodyBytes int64

	RequestSignatureCertificateHeaderName  string
	ResponseSignatureCertificateHeaderName string
	ForwardedPathHeaderName                string
	RequestCreatedHeaderName               string
	ResponseCreatedHeaderName              string
	ResponseIDHeaderName                   string

	// NextResponseID generates the response id written to the configured
	// response-id header and signed over. Defaults to a counter-free
	// timestamp-based id if unset.
	NextResponseID func() string
}

func (p *Pipeline) requestValidation() bool {
	if p.RequestValidation == nil {
		return true
	}
	return *p.RequestValidation
}

func (p *Pipeline) responseSigning() bool {
	if p.ResponseSigning == nil {
		return p.Credentials != nil
	}
	return *p.ResponseSigning && p.Credentials != nil
}

func (p *Pipeline) maxBodyBytes() int64 {
	if p.MaxBodyBytes > 0 {
		return p.MaxBodyBytes
	}
	return defaultMaxBodyBytes
}

func (p *Pipeline) clockNow() int64 {
	if p.Clock == nil {
		return clock.System{}.Now().Unix()
	}
	return p.Clock.Now().Unix()
}

func (p *Pipeline) requestPath(r *http.Request) string {
	if p.ForwardedPathHeaderName != "" {
		if v := r.Header.Get(p.ForwardedPathHeaderName); v != "" {
			return v
		}
	}
	return r.URL.Path
}

func (p *Pipeline) requestSignatureCertHeader() string {
	if p.RequestSignatureCertificateHeaderName != "" {
		return p.RequestSignatureCertificateHeaderName
	}
	return "X-Signature-Certificate"
}

func (p *Pipeline) responseSignatureCertHeader() string {
	if p.ResponseSignatureCertificateHeaderName != "" {
		return p.ResponseSignatureCertificateHeaderName
	}
	return "X-Response-Signature-Certificate"
}

func (p *Pipeline) responseCreatedHeader() string {
	if p.ResponseCreatedHeaderName != "" {
		return p.ResponseCreatedHeaderName
	}
	return "X-Response-Created"
}

func (p *Pipeline) responseIDHeader() string {
	if p.ResponseIDHeaderName != "" {
		return p.ResponseIDHeaderName
	}
	return "X-Response-Id"
}

func (p *Pipeline) nextResponseID() string {
	if p.NextResponseID != nil {
		return p.NextResponseID()
	}
	return strconv.FormatInt(p.clockNow(), 10)
}

// Middleware returns the http.Handler wrapper implementing the state
// machine of spec.md §4.8: MATCHED? -> PARSE_SIG -> RESOLVE_KEYS ->
// READ_BODY/VALIDATE_DIGEST -> VERIFY_SIG -> INVOKE_NEXT -> SIGN_RESPONSE.
func (p *Pipeline) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := p.requestPath(r)
			rule := matchRule(p.Rules, path)
			hasSignatureHeader := r.Header.Get("Signature") != ""

			if rule == nil && !hasSignatureHeader {
				next.ServeHTTP(w, r)
				return
			}

			if rule != nil && p.requestValidation() {
				if !p.validateRequest(w, r, path) {
					return
				}
			}

			p.invokeAndMaybeSign(w, r, next, rule)
		})
	}
}

// validateRequest runs steps PARSE_SIG through VERIFY_SIG. Returns false
// if it already wrote a terminal (non-2xx) response.
func (p *Pipeline) validateRequest(w http.ResponseWriter, r *http.Request, path string) bool {
	sigHeader := r.Header.Get("Signature")
	if sigHeader == "" {
		writeProblem(w, http.StatusBadRequest, "Missing Signature", "Missing signature header.")
		return false
	}

	params, err := httpsig.ParseSignatureHeader(sigHeader)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Signature", err.Error())
		return false
	}

	if params.Expires != nil && *params.Expires < p.clockNow() {
		writeProblem(w, http.StatusUnauthorized, "Signature Expired", "Signature has expired.")
		return false
	}

	keys, err := p.resolveValidationKeys(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Missing Certificate", err.Error())
		return false
	}
	if len(keys) == 0 {
		writeProblem(w, http.StatusBadRequest, "Missing Certificate", "No validation key available.")
		return false
	}

	var body []byte
	if r.Method == http.MethodPost || r.Method == http.MethodPut {
		select {
		case <-r.Context().Done():
			writeProblem(w, http.StatusBadRequest, "Request Cancelled", r.Context().Err().Error())
			return false
		default:
		}

		limited := io.LimitReader(r.Body, p.maxBodyBytes()+1)
		data, err := io.ReadAll(limited)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Body Read Failed", err.Error())
			return false
		}
		if int64(len(data)) > p.maxBodyBytes() {
			writeProblem(w, http.StatusRequestEntityTooLarge, "Payload Too Large", "Request body exceeds the configured size cap.")
			return false
		}
		body = data
		r.Body = io.NopCloser(bytes.NewReader(body))

		if contains(params.Headers, "digest") {
			digestHeader := r.Header.Get("Digest")
			if digestHeader == "" {
				writeProblem(w, http.StatusBadRequest, "Missing Digest", "Missing digest header.")
				return false
			}
			digest, err := httpsig.ParseDigestHeader(digestHeader)
			if err != nil {
				writeProblem(w, http.StatusUnauthorized, "Invalid Digest", err.Error())
				return false
			}
			if !digest.Validate(body) {
				writeProblem(w, http.StatusUnauthorized, "Digest Mismatch", "Digest validation failed.")
				return false
			}
		}
	}

	requestTarget := path
	if r.URL.RawQuery != "" {
		requestTarget += "?" + r.URL.RawQuery
	}

	headerValues := map[string][]string{}
	for _, h := range params.Headers {
		if strings.HasPrefix(h, "(") {
			continue
		}
		headerValues[h] = r.Header.Values(http.CanonicalHeaderKey(h))
	}

	input, err := httpsig.BuildSigningString(params, r.Method, requestTarget, headerValues)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Signature", err.Error())
		return false
	}

	for _, k := range keys {
		if httpsig.Verify(params, k.PublicKey, input) == nil {
			_ = audit.LogSignatureValidated(path, k.KeyID)
			return true
		}
	}

	_ = audit.LogSignatureRejected(path, "signature verification failed")
	writeProblem(w, http.StatusUnauthorized, "Invalid Signature", "Signature verification failed.")
	return false
}

// resolveValidationKeys prefers an X.509 certificate carried in the
// configured request header, falling back to the validation-keys store
// when that header is absent or does not hold a parseable certificate.
func (p *Pipeline) resolveValidationKeys(r *http.Request) ([]credstore.SecurityKey, error) {
	if b64 := r.Header.Get(p.requestSignatureCertHeader()); b64 != "" {
		if der, err := decodeBase64Certificate(b64); err == nil {
			if pub, err := httpsig.CertificatePublicKey(der); err == nil {
				return []credstore.SecurityKey{{KeyID: "request-header", PublicKey: pub}}, nil
			}
		}
	}

	if p.ValidationKeys == nil {
		return nil, nil
	}
	return p.ValidationKeys.Keys(r.Context())
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
