package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

// PGPEncryptor seals super-store payloads to a recipient's public key with
// no shared secret provisioning: a hybrid RSA-OAEP + AES-256-GCM envelope
// built on the standard library.
type PGPEncryptor struct {
	publicKey *rsa.PublicKey
}

// NewPGPEncryptor parses a PEM-encoded RSA public key. The key is fetched
// once from the secret store and the encryptor cached indefinitely by the
// caller.
func NewPGPEncryptor(pemBytes []byte) (*PGPEncryptor, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in public key material")
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is not RSA")
	}

	return &PGPEncryptor{publicKey: rsaPub}, nil
}

// Encrypt seals plaintext for the encryptor's public key: a random
// AES-256-GCM session key encrypts the payload, and the session key is
// itself sealed with RSA-OAEP, then both are concatenated as
// len(sealedKey) || sealedKey || nonce || ciphertext.
func (e *PGPEncryptor) Encrypt(plaintext []byte) ([]byte, error) {
	sessionKey := make([]byte, 32)
	if _, err := rand.Read(sessionKey); err != nil {
		return nil, fmt.Errorf("failed to generate session key: %w", err)
	}

	sealedKey, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, e.publicKey, sessionKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to seal session key: %w", err)
	}

	block, err := aes.NewCipher(sessionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to construct session cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to construct session AEAD: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := aead.Seal(nil, nonce, plaintext, nil)

	out := make([]byte, 0, 2+len(sealedKey)+len(nonce)+len(sealed))
	out = append(out, byte(len(sealedKey)>>8), byte(len(sealedKey)))
	out = append(out, sealedKey...)
	out = append(out, nonce...)
	out = append(out, sealed...)
	return out, nil
}
