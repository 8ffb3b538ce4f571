package httpsig

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
)

func TestSignVerify_RoundTrip(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	params := &SignatureParams{Algorithm: "rsa-sha256"}
	input := "(request-target): post /payments\ndigest: SHA-256=abc"

	if err := Sign(params, key, input); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if len(params.Signature) == 0 {
		t.Fatal("expected non-empty signature")
	}

	if err := Verify(params, &key.PublicKey, input); err != nil {
		t.Errorf("Verify failed for matching input: %v", err)
	}

	if err := Verify(params, &key.PublicKey, input+"x"); err == nil {
		t.Error("expected verification failure for altered input")
	}
}

func TestVerify_RejectsWrongKey(t *testing.T) {
	key, _ := rsa.GenerateKey(rand.Reader, 2048)
	other, _ := rsa.GenerateKey(rand.Reader, 2048)

	params := &SignatureParams{Algorithm: "rsa-sha256"}
	input := "digest: SHA-256=abc"
	if err := Sign(params, key, input); err != nil {
		t.Fatalf("Sign: %v", err)
	}

	if err := Verify(params, &other.PublicKey, input); err == nil {
		t.Error("expected verification failure against the wrong public key")
	}
}
