// Package crypto implements the crypto worker pool: a bounded pool of
// cipher handles that serializes access to encryption operations and
// reports elapsed time for each call. Ciphers are the standard library's
// AES-256-GCM (crypto/aes, crypto/cipher).
package crypto

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
)

// handle is one slot in the pool. AEAD ciphers are safe for concurrent
// use; the pool exists to bound how many operations may run at once.
type handle struct {
	aead cipher.AEAD
}

// Pool is a process-wide singleton, constructed once during startup and
// torn down on shutdown, then threaded explicitly through the pipeline
// handlers that need it.
type Pool struct {
	handles chan *handle
	logger  hclog.Logger
}

// NewPool builds a pool of the given size backed by a single AES-256-GCM
// key. Callers acquire a handle from a blocking queue and return it on
// every exit path; the pool size is the only bound on in-flight crypto
// operations.
func NewPool(key []byte, size int, logger hclog.Logger) (*Pool, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("crypto pool key must be 32 bytes (AES-256), got %d", len(key))
	}
	if size <= 0 {
		return nil, fmt.Errorf("crypto pool size must be positive, got %d", size)
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to construct cipher block: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to construct AEAD: %w", err)
	}

	handles := make(chan *handle, size)
	for i := 0; i < size; i++ {
		handles <- &handle{aead: aead}
	}

	return &Pool{
		handles: handles,
		logger:  logger.Named("crypto-pool"),
	}, nil
}

func (p *Pool) acquire(ctx context.Context) (*handle, error) {
	select {
	case h := <-p.handles:
		return h, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Pool) release(h *handle) {
	p.handles <- h
}

// Encrypt seals plaintext under a freshly generated nonce, returning the
// nonce-prefixed ciphertext and the elapsed time of the call, including any
// wait for a free handle.
func (p *Pool) Encrypt(ctx context.Context, plaintext []byte) ([]byte, time.Duration, error) {
	start := time.Now()

	h, err := p.acquire(ctx)
	if err != nil {
		return nil, time.Since(start), fmt.Errorf("failed to acquire crypto handle: %w", err)
	}
	defer p.release(h)

	nonce := make([]byte, h.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, time.Since(start), fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := h.aead.Seal(nonce, nonce, plaintext, nil)
	return ciphertext, time.Since(start), nil
}

// Decrypt opens ciphertext produced by Encrypt, returning the plaintext
// and the elapsed time of the call, including any wait for a free handle.
func (p *Pool) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, time.Duration, error) {
	start := time.Now()

	h, err := p.acquire(ctx)
	if err != nil {
		return nil, time.Since(start), fmt.Errorf("failed to acquire crypto handle: %w", err)
	}
	defer p.release(h)

	nonceSize := h.aead.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, time.Since(start), fmt.Errorf("ciphertext shorter than nonce size %d", nonceSize)
	}

	nonce, sealed := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := h.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, time.Since(start), fmt.Errorf("failed to open ciphertext: %w", err)
	}

	return plaintext, time.Since(start), nil
}

// Close tears down the pool. Safe to call once during process shutdown.
func (p *Pool) Close() {
	close(p.handles)
}
