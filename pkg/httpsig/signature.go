// Package httpsig implements draft-cavage HTTP message signatures: parsing
// and serialization of the Signature and Digest headers, canonical
// signing-string construction, and sign/verify primitives (component C7).
package httpsig

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// SignatureParams is the parsed content of a Signature header.
type SignatureParams struct {
	KeyID     string
	Algorithm string
	Headers   []string // lowercase header names, in signing order; may include pseudo-headers
	Created   *int64
	Expires   *int64
	Signature []byte
}

// ParseSignatureHeader parses a Signature header value:
//
//	keyId="...",algorithm="...",headers="...",created=...,expires=...,signature="..."
//
// Parameter order is not significant. Duplicate parameters are rejected.
// Values may be quoted or bare; created/expires must parse as decimal
// integers.
func ParseSignatureHeader(s string) (*SignatureParams, error) {
	fields, err := splitParams(s)
	if err != nil {
		return nil, fmt.Errorf("parse signature header: %w", err)
	}

	params := &SignatureParams{}
	seen := make(map[string]bool)

	for _, f := range fields {
		if seen[f.key] {
			return nil, fmt.Errorf("parse signature header: duplicate parameter %q", f.key)
		}
		seen[f.key] = true

		switch f.key {
		case "keyId":
			params.KeyID = f.value
		case "algorithm":
			params.Algorithm = f.value
		case "headers":
			params.Headers = strings.Fields(strings.ToLower(f.value))
		case "created":
			v, err := strconv.ParseInt(f.value, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("parse signature header: invalid created: %w", err)
			}
			params.Created = &v
		case "expires":
			v, err := strconv.ParseInt(f.value, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("parse signature header: invalid expires: %w", err)
			}
			params.Expires = &v
		case "signature":
			sig, err := base64.StdEncoding.DecodeString(f.value)
			if err != nil {
				return nil, fmt.Errorf("parse signature header: invalid base64 signature: %w", err)
			}
			params.Signature = sig
		}
	}

	if params.KeyID == "" {
		return nil, fmt.Errorf("parse signature header: missing keyId")
	}
	if len(params.Headers) == 0 {
		return nil, fmt.Errorf("parse signature header: missing or empty headers")
	}
	if contains(params.Headers, "(created)") && params.Created == nil {
		return nil, fmt.Errorf("parse signature header: headers list requires (created) parameter")
	}
	if len(params.Signature) == 0 {
		return nil, fmt.Errorf("parse signature header: missing signature")
	}

	return params, nil
}

// String serializes params back into a Signature header value.
func (p *SignatureParams) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, `keyId="%s"`, p.KeyID)
	if p.Algorithm != "" {
		fmt.Fprintf(&b, `,algorithm="%s"`, p.Algorithm)
	}
	if p.Created != nil {
		fmt.Fprintf(&b, `,created=%d`, *p.Created)
	}
	if p.Expires != nil {
		fmt.Fprintf(&b, `,expires=%d`, *p.Expires)
	}
	fmt.Fprintf(&b, `,headers="%s"`, strings.Join(p.Headers, " "))
	fmt.Fprintf(&b, `,signature="%s"`, base64.StdEncoding.EncodeToString(p.Signature))
	return b.String()
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

type param struct{ key, value string }

// splitParams tokenizes a comma-separated k="v" / k=v parameter list,
// tolerating surrounding whitespace around commas and the equals sign.
func splitParams(s string) ([]param, error) {
	var params []param
	rest := strings.TrimSpace(s)

	for len(rest) > 0 {
		eq := strings.IndexByte(rest, '=')
		if eq < 0 {
			return nil, fmt.Errorf("expected '=' in parameter list")
		}
		key := strings.TrimSpace(rest[:eq])
		rest = strings.TrimLeft(rest[eq+1:], " ")

		var value string
		if len(rest) > 0 && rest[0] == '"' {
			end := strings.IndexByte(rest[1:], '"')
			if end < 0 {
				return nil, fmt.Errorf("unterminated quoted value for %q", key)
			}
			value = rest[1 : 1+end]
			rest = rest[1+end+1:]
		} else {
			comma := strings.IndexByte(rest, ',')
			if comma < 0 {
				value = rest
				rest = ""
			} else {
				value = rest[:comma]
				rest = rest[comma:]
			}
			value = strings.TrimSpace(value)
		}

		params = append(params, param{key: key, value: value})

		rest = strings.TrimSpace(rest)
		if len(rest) == 0 {
			break
		}
		if rest[0] != ',' {
			return nil, fmt.Errorf("expected ',' after parameter %q", key)
		}
		rest = strings.TrimSpace(rest[1:])
	}

	return params, nil
}
