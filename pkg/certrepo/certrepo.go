// Package certrepo defines the certificate-repository contract the
// certificate manager and CRL generator are built against. Concrete
// storage lives in internal/certrepo; this package is deliberately free of
// any persistence-layer import so callers can substitute their own.
package certrepo

import (
	"context"
	"time"
)

// Record is one certificate's persisted metadata.
type Record struct {
	KeyID           string    // SHA-1 of DER-encoded SubjectPublicKey
	AuthorityKeyID   string    // issuer's KeyID, or equal to KeyID for a self-signed root
	SerialNumber     string    // hex-encoded
	Subject          string    // RFC 2253 DN string
	Thumbprint       string    // SHA-1 of the DER certificate
	Algorithm        string    // x509 signature algorithm name, e.g. "SHA256-RSA"; not the JOSE form ("RS256")
	EncodedCert       string   // base64 DER
	PrivateKeyPEM    string    `json:"private_key_pem,omitempty"`
	IsCA             bool
	Revoked          bool
	RevocationDate   *time.Time
	CreatedDate      time.Time
	Profile          string
	Metadata         map[string]string `json:"metadata,omitempty"`
}

// RevokedEntry is one row of the repository's revocation list.
type RevokedEntry struct {
	Serial         string
	RevocationDate time.Time
}

// ListFilter narrows a List query. A nil pointer field means "don't filter
// on this dimension".
type ListFilter struct {
	NotBefore       *time.Time
	Revoked         *bool
	AuthorityKeyID  *string
}

// Repository is the narrow persistence contract §4.5 names: add, get,
// list, enumerate revocations, revoke. Implementations must provide
// linearizable reads and serialized writes.
type Repository interface {
	// Add inserts a new record. Returns qcerr.ErrDuplicateKeyID (wrapped) if
	// rec.KeyID already exists.
	Add(ctx context.Context, rec Record) (Record, error)

	// GetByID returns the record for keyID, or qcerr.ErrNotFound if absent
	// or revoked. Use List with Revoked=true to observe revoked entries.
	GetByID(ctx context.Context, keyID string) (Record, error)

	// List returns records matching filter.
	List(ctx context.Context, filter ListFilter) ([]Record, error)

	// RevocationList returns the repository's revocation set, optionally
	// restricted to entries revoked at or after notBefore.
	RevocationList(ctx context.Context, notBefore *time.Time) ([]RevokedEntry, error)

	// Revoke marks keyID revoked. Idempotent: revoking an already-revoked
	// certificate succeeds without changing its revocation_date.
	Revoke(ctx context.Context, keyID string) error

	// NextCRLNumber returns the next monotonically increasing CRL serial
	// number for this repository.
	NextCRLNumber(ctx context.Context) (int64, error)
}
