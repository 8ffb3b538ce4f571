package x509util

import (
	"crypto"
	"crypto/sha1"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
)

// subjectPublicKeyInfo mirrors the ASN.1 SubjectPublicKeyInfo structure so
// the raw BIT STRING bytes can be recovered without re-deriving them from
// the typed crypto.PublicKey.
type subjectPublicKeyInfo struct {
	Algorithm pkix.AlgorithmIdentifier
	PublicKey asn1.BitString
}

// SubjectKeyID computes the Subject/Authority Key Identifier for pub:
// SHA-1 over the subjectPublicKey BIT STRING bytes, excluding the
// unused-bits prefix byte, per RFC 5280 §4.2.1.2 method (1).
func SubjectKeyID(pub crypto.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("marshal public key: %w", err)
	}

	var spki subjectPublicKeyInfo
	if rest, err := asn1.Unmarshal(der, &spki); err != nil {
		return nil, fmt.Errorf("unmarshal subjectPublicKeyInfo: %w", err)
	} else if len(rest) > 0 {
		return nil, fmt.Errorf("trailing data in subjectPublicKeyInfo")
	}

	sum := sha1.Sum(spki.PublicKey.Bytes)
	return sum[:], nil
}
