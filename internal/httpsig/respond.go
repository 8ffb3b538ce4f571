package httpsig

import (
	"bytes"
	"encoding/base64"
	"net/http"
	"strconv"

	"github.com/nordiqpay/qcert-pki/internal/audit"
	"github.com/nordiqpay/qcert-pki/pkg/httpsig"
)

func decodeBase64Certificate(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

// recorder buffers a response so it can be digested and signed before any
// bytes reach the client — partial signatures must never be emitted.
type recorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (rec *recorder) WriteHeader(status int) { rec.status = status }
func (rec *recorder) Write(b []byte) (int, error) { return rec.body.Write(b) }

// invokeAndMaybeSign calls next, then — only when rule matched and
// response signing is enabled — buffers the response, signs it, and
// flushes headers plus body to the real ResponseWriter. Signing happens
// only on matched paths, never merely because the inbound request carried
// a Signature header (preserved source behavior; see DESIGN.md).
func (p *Pipeline) invokeAndMaybeSign(w http.ResponseWriter, r *http.Request, next http.Handler, rule *PathRule) {
	if rule == nil || !p.responseSigning() {
		next.ServeHTTP(w, r)
		return
	}

	rec := &recorder{ResponseWriter: w, status: http.StatusOK}
	next.ServeHTTP(rec, r)

	select {
	case <-r.Context().Done():
		// Cancelled mid-flight: release the buffer, emit nothing signed.
		return
	default:
	}

	body := rec.body.Bytes()

	if rec.status < 200 || rec.status >= 300 {
		w.WriteHeader(rec.status)
		_, _ = w.Write(body)
		return
	}

	if err := p.signResponse(w, r, rule, body); err != nil {
		writeProblem(w, http.StatusInternalServerError, "Response Signing Failed", err.Error())
		return
	}
}

func (p *Pipeline) signResponse(w http.ResponseWriter, r *http.Request, rule *PathRule, body []byte) error {
	ctx := r.Context()

	signer, alg, err := p.Credentials.SigningKey(ctx)
	if err != nil {
		return err
	}
	cert, err := p.Credentials.SigningCertificate(ctx)
	if err != nil {
		return err
	}

	digest, err := httpsig.ComputeDigest("SHA-256", body)
	if err != nil {
		return err
	}

	created := p.clockNow()
	responseID := p.nextResponseID()

	headers := make([]string, 0, len(rule.RequiredHeaders)+1)
	headerValues := map[string][]string{
		"digest":                {digest.String()},
		p.responseIDHeaderHTTP(): {responseID},
	}
	for _, h := range rule.RequiredHeaders {
		switch h {
		case "(request-target)", "(created)", "(expires)":
			headers = append(headers, h)
		case "digest":
			headers = append(headers, "digest")
		default:
			name := p.responseIDHeaderAliasFor(h)
			headers = append(headers, name)
			if _, ok := headerValues[name]; !ok {
				if vals := w.Header().Values(name); len(vals) > 0 {
					headerValues[name] = vals
				}
			}
		}
	}
	if !contains(headers, "digest") {
		headers = append(headers, "digest")
	}

	params := &httpsig.SignatureParams{
		KeyID:     cert.Subject.CommonName,
		Algorithm: string(alg),
		Headers:   headers,
		Created:   &created,
	}

	requestTarget := r.URL.Path
	if r.URL.RawQuery != "" {
		requestTarget += "?" + r.URL.RawQuery
	}

	input, err := httpsig.BuildSigningString(params, r.Method, requestTarget, headerValues)
	if err != nil {
		return err
	}
	if err := httpsig.Sign(params, signer, input); err != nil {
		return err
	}

	w.Header().Set("Signature", params.String())
	w.Header().Set("Digest", digest.String())
	w.Header().Set(p.responseSignatureCertHeader(), base64.StdEncoding.EncodeToString(cert.Raw))
	w.Header().Set(p.responseCreatedHeader(), strconv.FormatInt(created, 10))
	w.Header().Set(p.responseIDHeader(), responseID)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
	_ = audit.LogResponseSigned(r.URL.Path, params.KeyID)
	return nil
}

// responseIDHeaderHTTP returns the canonical form of the configured
// response-id header, for use as a canonical-signing-string header name.
func (p *Pipeline) responseIDHeaderHTTP() string {
	return canonicalLower(p.responseIDHeader())
}

// responseIDHeaderAliasFor maps an inbound required-header name to its
// outbound equivalent; only x-response-id has a response-side alias in
// this profile, everything else signs under its own name if present on
// the response.
func (p *Pipeline) responseIDHeaderAliasFor(h string) string {
	if h == "x-response-id" {
		return canonicalLower(p.responseIDHeader())
	}
	return h
}

func canonicalLower(name string) string {
	b := []byte(name)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
