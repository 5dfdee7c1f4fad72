package crypto

import (
	"context"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestNewPool_RejectsNonAES256Key(t *testing.T) {
	_, err := NewPool(make([]byte, 16), 4, nil)
	assert.Error(t, err)
}

func TestNewPool_RejectsNonPositiveSize(t *testing.T) {
	_, err := NewPool(testKey(t), 0, nil)
	assert.Error(t, err)
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	pool, err := NewPool(testKey(t), 2, nil)
	require.NoError(t, err)
	defer pool.Close()

	plaintext := []byte("super secret billing payload")

	ciphertext, _, err := pool.Encrypt(context.Background(), plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, ciphertext)

	decrypted, _, err := pool.Decrypt(context.Background(), ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestDecrypt_RejectsTruncatedCiphertext(t *testing.T) {
	pool, err := NewPool(testKey(t), 1, nil)
	require.NoError(t, err)
	defer pool.Close()

	_, _, err = pool.Decrypt(context.Background(), []byte("x"))
	assert.Error(t, err)
}

func TestEncrypt_ProducesDistinctCiphertextsForSamePlaintext(t *testing.T) {
	pool, err := NewPool(testKey(t), 1, nil)
	require.NoError(t, err)
	defer pool.Close()

	plaintext := []byte("same input")
	c1, _, err := pool.Encrypt(context.Background(), plaintext)
	require.NoError(t, err)
	c2, _, err := pool.Encrypt(context.Background(), plaintext)
	require.NoError(t, err)

	assert.NotEqual(t, c1, c2, "fresh nonce per call should yield distinct ciphertexts")
}

func TestPool_BoundsConcurrentHandles(t *testing.T) {
	pool, err := NewPool(testKey(t), 1, nil)
	require.NoError(t, err)
	defer pool.Close()

	ctx, cancel := context.WithCancel(context.Background())
	h, err := pool.acquire(ctx)
	require.NoError(t, err)

	cancel()
	_, err = pool.acquire(ctx)
	assert.Error(t, err, "acquiring a second handle from a size-1 pool with a cancelled context should fail")

	pool.release(h)
}
