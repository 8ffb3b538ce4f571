package credstore

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeSelfSigned(t *testing.T, dir string) (keyPath, certPath string) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}

	keyPath = filepath.Join(dir, "key.pem")
	certPath = filepath.Join(dir, "cert.pem")

	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	if err := os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	if err := os.WriteFile(certPath, certPEM, 0o644); err != nil {
		t.Fatalf("write cert: %v", err)
	}
	return keyPath, certPath
}

func writeEncryptedKey(t *testing.T, dir string, passphrase []byte) (keyPath, certPath string) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "encrypted-test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}

	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	block, err := encryptPEMKey(keyDER, passphrase)
	if err != nil {
		t.Fatalf("encryptPEMKey: %v", err)
	}

	keyPath = filepath.Join(dir, "key.enc.pem")
	certPath = filepath.Join(dir, "cert.pem")

	if err := os.WriteFile(keyPath, pem.EncodeToMemory(block), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	if err := os.WriteFile(certPath, certPEM, 0o644); err != nil {
		t.Fatalf("write cert: %v", err)
	}
	return keyPath, certPath
}

func TestFileCredStore_EncryptedKeyRoundTrip(t *testing.T) {
	dir := t.TempDir()
	passphrase := []byte("correct-horse-battery-staple")
	keyPath, certPath := writeEncryptedKey(t, dir, passphrase)

	store := &FileCredStore{KeyPath: keyPath, CertPath: certPath, Passphrase: passphrase}
	signer, _, err := store.SigningKey(context.Background())
	if err != nil {
		t.Fatalf("SigningKey: %v", err)
	}
	if signer == nil {
		t.Fatal("expected non-nil signer")
	}
}

func TestFileCredStore_EncryptedKeyWrongPassphraseFails(t *testing.T) {
	dir := t.TempDir()
	keyPath, certPath := writeEncryptedKey(t, dir, []byte("correct-horse-battery-staple"))

	store := &FileCredStore{KeyPath: keyPath, CertPath: certPath, Passphrase: []byte("wrong-passphrase")}
	if _, _, err := store.SigningKey(context.Background()); err == nil {
		t.Fatal("expected an error decrypting with the wrong passphrase")
	}
}

func TestFileCredStore_SigningKeyAndCertificate(t *testing.T) {
	dir := t.TempDir()
	keyPath, certPath := writeSelfSigned(t, dir)

	store := &FileCredStore{KeyPath: keyPath, CertPath: certPath}
	ctx := context.Background()

	signer, alg, err := store.SigningKey(ctx)
	if err != nil {
		t.Fatalf("SigningKey: %v", err)
	}
	if signer == nil {
		t.Fatal("expected non-nil signer")
	}
	if alg != "rsa-sha256" {
		t.Errorf("Algorithm = %q, want rsa-sha256", alg)
	}

	cert, err := store.SigningCertificate(ctx)
	if err != nil {
		t.Fatalf("SigningCertificate: %v", err)
	}
	if cert.Subject.CommonName != "test" {
		t.Errorf("CommonName = %q, want test", cert.Subject.CommonName)
	}
}
