package httpsig

import "testing"

func TestDigest_ComputeValidate(t *testing.T) {
	body := []byte(`{"amount":1}`)

	d, err := ComputeDigest("SHA-256", body)
	if err != nil {
		t.Fatalf("ComputeDigest: %v", err)
	}
	if !d.Validate(body) {
		t.Error("expected digest to validate against the original body")
	}

	mutated := append([]byte{}, body...)
	mutated[0] ^= 0x01
	if d.Validate(mutated) {
		t.Error("expected digest to fail against a mutated body")
	}
}

func TestDigest_KnownValue(t *testing.T) {
	// Base64 of the SHA-256 digest of {"amount":1}.
	body := []byte(`{"amount":1}`)
	d, err := ComputeDigest("SHA-256", body)
	if err != nil {
		t.Fatalf("ComputeDigest: %v", err)
	}
	const want = "wrEeZX4S/RdzWWJ8qJQSAY4idNCHPPv88fxQ9oVYLp4="
	if got := d.String(); got != "SHA-256="+want {
		t.Errorf("digest = %q, want SHA-256=%s", got, want)
	}
}

func TestParseDigestHeader_RoundTrip(t *testing.T) {
	d, err := ParseDigestHeader("SHA-256=X48E9qOokqqrvdts8nOJRJN3OWDUoyWxBf7kbu9DBPE=")
	if err != nil {
		t.Fatalf("ParseDigestHeader: %v", err)
	}
	if d.String() != "SHA-256=X48E9qOokqqrvdts8nOJRJN3OWDUoyWxBf7kbu9DBPE=" {
		t.Errorf("String() = %q", d.String())
	}
}

func TestParseDigestHeader_RejectsBadLength(t *testing.T) {
	if _, err := ParseDigestHeader("SHA-256=YWJj"); err == nil {
		t.Error("expected error for wrong-length digest")
	}
}
