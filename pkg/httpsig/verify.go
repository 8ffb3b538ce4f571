package httpsig

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/x509"
	"fmt"
)

// resolvedHash picks the hash algorithm for alg, resolving "hs2019" from
// the key type. Only RSA keys are in scope for this service; hs2019
// therefore always resolves to SHA-256, matching rsa-sha256 semantics.
func resolvedHash(alg string, pub crypto.PublicKey) (crypto.Hash, error) {
	switch alg {
	case "rsa-sha256":
		return crypto.SHA256, nil
	case "rsa-sha512":
		return crypto.SHA512, nil
	case "hs2019":
		if _, ok := pub.(*rsa.PublicKey); ok {
			return crypto.SHA256, nil
		}
		return 0, fmt.Errorf("hs2019: unsupported key type %T", pub)
	default:
		return 0, fmt.Errorf("unsupported signature algorithm %q", alg)
	}
}

func digestOf(h crypto.Hash, input string) []byte {
	switch h {
	case crypto.SHA256:
		sum := sha256.Sum256([]byte(input))
		return sum[:]
	case crypto.SHA512:
		sum := sha512.Sum512([]byte(input))
		return sum[:]
	default:
		return nil
	}
}

// Sign computes params.Signature over input using signer, setting
// params.Algorithm if unset. Only RSA signers are supported, and only with
// RSASSA-PKCS1-v1_5; RSASSA-PSS (PS*) signing is not implemented here or
// by any caller in this module.
func Sign(params *SignatureParams, signer crypto.Signer, input string) error {
	if params.Algorithm == "" {
		params.Algorithm = "rsa-sha256"
	}

	h, err := resolvedHash(params.Algorithm, signer.Public())
	if err != nil {
		return fmt.Errorf("sign: %w", err)
	}

	rsaKey, ok := signer.(*rsa.PrivateKey)
	if !ok {
		return fmt.Errorf("sign: signer is not an RSA private key")
	}

	sig, err := rsa.SignPKCS1v15(rand.Reader, rsaKey, h, digestOf(h, input))
	if err != nil {
		return fmt.Errorf("sign: %w", err)
	}
	params.Signature = sig
	return nil
}

// Verify checks params.Signature over input against pub. Any mismatch in
// input, algorithm, or key produces an error.
func Verify(params *SignatureParams, pub crypto.PublicKey, input string) error {
	h, err := resolvedHash(params.Algorithm, pub)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}

	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return fmt.Errorf("verify: public key is not RSA")
	}

	if err := rsa.VerifyPKCS1v15(rsaPub, h, digestOf(h, input), params.Signature); err != nil {
		return fmt.Errorf("verify: signature invalid: %w", err)
	}
	return nil
}

// CertificatePublicKey extracts the public key from a DER-encoded X.509
// certificate, for resolving validation keys carried in a request's
// certificate header.
func CertificatePublicKey(der []byte) (crypto.PublicKey, error) {
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("parse certificate: %w", err)
	}
	return cert.PublicKey, nil
}
