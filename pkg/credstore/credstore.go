// Package credstore defines the narrow credential and validation-key
// contracts the HTTP-signature pipeline depends on (component C9).
package credstore

import (
	"context"
	"crypto"
	"crypto/x509"
)

// Algorithm names a signature algorithm identifier as carried in the
// HTTP-Signature "algorithm" parameter.
type Algorithm string

const (
	AlgorithmRSASHA256 Algorithm = "rsa-sha256"
	AlgorithmRSASHA512 Algorithm = "rsa-sha512"
	AlgorithmHS2019    Algorithm = "hs2019"
)

// SecurityKey is a named public key available for inbound signature
// validation.
type SecurityKey struct {
	KeyID     string
	PublicKey crypto.PublicKey
}

// SigningCredentials is implemented by anything that can produce the
// private key (and its certificate) used to sign outbound responses.
type SigningCredentials interface {
	// SigningKey returns the private key and the algorithm it signs with.
	SigningKey(ctx context.Context) (crypto.Signer, Algorithm, error)
	// SigningCertificate returns the certificate whose DER bytes are sent
	// in the response-signature-certificate header.
	SigningCertificate(ctx context.Context) (*x509.Certificate, error)
}

// ValidationKeys is implemented by anything that can enumerate the public
// keys trusted for inbound signature validation, used as a fallback when
// the request carries no usable certificate header.
type ValidationKeys interface {
	Keys(ctx context.Context) ([]SecurityKey, error)
}
