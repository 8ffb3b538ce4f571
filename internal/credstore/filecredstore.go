// Package credstore provides a PEM-file-backed implementation of
// pkg/credstore's SigningCredentials and ValidationKeys interfaces.
package credstore

import (
	"context"
	"crypto"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"os"
	"sync"

	"golang.org/x/crypto/pbkdf2"

	"github.com/nordiqpay/qcert-pki/pkg/credstore"
)

const (
	pbkdf2Iterations = 100_000
	aesKeyBytes      = 32
)

// FileCredStore loads a signing key pair and certificate from PEM files on
// disk, and serves a fixed set of trusted validation certificates from a
// directory of PEM files. Private keys are read in plaintext PEM by
// default; set Passphrase to require encryption (opt-in, never defaulted —
// see DESIGN.md's Open Question decision on keys-at-rest). An encrypted key
// is a PEM block of type "ENCRYPTED PRIVATE KEY" carrying a hex "Salt"
// header, whose body is an AES-256-GCM-sealed PKCS#8 key, keyed by
// PBKDF2(passphrase, salt).
type FileCredStore struct {
	KeyPath         string
	CertPath        string
	ValidationDir   string
	Passphrase      []byte

	mu          sync.Mutex
	signer      *rsa.PrivateKey
	cert        *x509.Certificate
	validation  []credstore.SecurityKey
	loaded      bool
}

var (
	_ credstore.SigningCredentials = (*FileCredStore)(nil)
	_ credstore.ValidationKeys     = (*FileCredStore)(nil)
)

func (s *FileCredStore) checkCtx(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func (s *FileCredStore) ensureLoaded() error {
	if s.loaded {
		return nil
	}

	keyPEM, err := os.ReadFile(s.KeyPath)
	if err != nil {
		return fmt.Errorf("read signing key: %w", err)
	}
	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return fmt.Errorf("no PEM block found in %s", s.KeyPath)
	}

	var keyDER []byte
	if len(s.Passphrase) > 0 {
		keyDER, err = decryptPEMKey(block, s.Passphrase)
		if err != nil {
			return fmt.Errorf("decrypt signing key: %w", err)
		}
	} else {
		keyDER = block.Bytes
	}

	key, err := x509.ParsePKCS1PrivateKey(keyDER)
	if err != nil {
		key2, err2 := x509.ParsePKCS8PrivateKey(keyDER)
		if err2 != nil {
			return fmt.Errorf("parse signing key: %w", err)
		}
		rsaKey, ok := key2.(*rsa.PrivateKey)
		if !ok {
			return fmt.Errorf("signing key is not RSA")
		}
		key = rsaKey
	}

	certPEM, err := os.ReadFile(s.CertPath)
	if err != nil {
		return fmt.Errorf("read signing certificate: %w", err)
	}
	certBlock, _ := pem.Decode(certPEM)
	if certBlock == nil {
		return fmt.Errorf("no PEM block found in %s", s.CertPath)
	}
	cert, err := x509.ParseCertificate(certBlock.Bytes)
	if err != nil {
		return fmt.Errorf("parse signing certificate: %w", err)
	}

	validation, err := loadValidationKeys(s.ValidationDir)
	if err != nil {
		return fmt.Errorf("load validation keys: %w", err)
	}

	s.signer = key
	s.cert = cert
	s.validation = validation
	s.loaded = true
	return nil
}

// encryptPEMKey seals keyDER into the "ENCRYPTED PRIVATE KEY" envelope
// decryptPEMKey reads back. Operators provision an encrypted signing key
// with this before pointing SigningKeyPath at it.
func encryptPEMKey(keyDER, passphrase []byte) (*pem.Block, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	sealed := gcm.Seal(nonce, nonce, keyDER, nil)

	return &pem.Block{
		Type:    "ENCRYPTED PRIVATE KEY",
		Headers: map[string]string{"Salt": hex.EncodeToString(salt)},
		Bytes:   sealed,
	}, nil
}

// decryptPEMKey reverses encryptPEMKey, deriving the AES key from
// passphrase and the block's Salt header via PBKDF2.
func decryptPEMKey(block *pem.Block, passphrase []byte) ([]byte, error) {
	saltHex, ok := block.Headers["Salt"]
	if !ok {
		return nil, fmt.Errorf("missing Salt header")
	}
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return nil, fmt.Errorf("decode salt: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return nil, err
	}

	if len(block.Bytes) < gcm.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := block.Bytes[:gcm.NonceSize()], block.Bytes[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

func newGCM(passphrase, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(passphrase, salt, pbkdf2Iterations, aesKeyBytes, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("build cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

func loadValidationKeys(dir string) ([]credstore.SecurityKey, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var keys []credstore.SecurityKey
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(dir + "/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		block, _ := pem.Decode(data)
		if block == nil {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", entry.Name(), err)
		}
		keys = append(keys, credstore.SecurityKey{KeyID: entry.Name(), PublicKey: cert.PublicKey})
	}
	return keys, nil
}

func (s *FileCredStore) SigningKey(ctx context.Context) (crypto.Signer, credstore.Algorithm, error) {
	if err := s.checkCtx(ctx); err != nil {
		return nil, "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return nil, "", err
	}
	return s.signer, credstore.AlgorithmRSASHA256, nil
}

func (s *FileCredStore) SigningCertificate(ctx context.Context) (*x509.Certificate, error) {
	if err := s.checkCtx(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	return s.cert, nil
}

func (s *FileCredStore) Keys(ctx context.Context) ([]credstore.SecurityKey, error) {
	if err := s.checkCtx(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	return s.validation, nil
}
