package httpsig

import (
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
)

// Digest is the parsed content of a Digest header: SHA-256=<base64> or
// SHA-512=<base64>.
type Digest struct {
	Algorithm string // "SHA-256" or "SHA-512"
	Value     []byte
}

// ParseDigestHeader parses a Digest header value.
func ParseDigestHeader(s string) (*Digest, error) {
	parts := strings.SplitN(s, "=", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("parse digest header: missing '='")
	}

	alg := strings.ToUpper(strings.TrimSpace(parts[0]))
	if alg != "SHA-256" && alg != "SHA-512" {
		return nil, fmt.Errorf("parse digest header: unsupported algorithm %q", alg)
	}

	value, err := base64.StdEncoding.DecodeString(strings.TrimSpace(parts[1]))
	if err != nil {
		return nil, fmt.Errorf("parse digest header: invalid base64: %w", err)
	}

	want := 32
	if alg == "SHA-512" {
		want = 64
	}
	if len(value) != want {
		return nil, fmt.Errorf("parse digest header: %s digest must be %d bytes, got %d", alg, want, len(value))
	}

	return &Digest{Algorithm: alg, Value: value}, nil
}

// ComputeDigest computes a Digest over body using alg ("SHA-256" or "SHA-512").
func ComputeDigest(alg string, body []byte) (*Digest, error) {
	switch strings.ToUpper(alg) {
	case "SHA-256":
		sum := sha256.Sum256(body)
		return &Digest{Algorithm: "SHA-256", Value: sum[:]}, nil
	case "SHA-512":
		sum := sha512.Sum512(body)
		return &Digest{Algorithm: "SHA-512", Value: sum[:]}, nil
	default:
		return nil, fmt.Errorf("compute digest: unsupported algorithm %q", alg)
	}
}

// String serializes the digest back into a Digest header value.
func (d *Digest) String() string {
	return fmt.Sprintf("%s=%s", d.Algorithm, base64.StdEncoding.EncodeToString(d.Value))
}

// Validate recomputes the digest over body and constant-time compares it
// against d. Any single-bit difference in body yields false.
func (d *Digest) Validate(body []byte) bool {
	recomputed, err := ComputeDigest(d.Algorithm, body)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(d.Value, recomputed.Value) == 1
}
