package store

// Upstream registry credentials are stored as opaque sealed blobs and decrypted only
// at use-time. WithCredentials keeps decrypted material on the stack of the single
// operation which needs it, the plaintext is never stored back or logged.

import (
	"crypto/rand"
	"crypto/sha256"

	"github.com/pkg/errors"
	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

var errDecryptFailed = errors.New("failed to decrypt credential blob")

// EncryptedBlob is a sealed credential value: 24-byte nonce followed by the secretbox
// ciphertext. A nil blob means "no credential configured".
type EncryptedBlob []byte

// SealCredential encrypts a plaintext credential under the service secret.
// An empty plaintext yields a nil blob.
func SealCredential(secret, plaintext string) (EncryptedBlob, error) {
	if plaintext == "" {
		return nil, nil
	}

	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, errors.Wrap(err, "failed to generate nonce for credential sealing")
	}

	key := deriveKey(secret)
	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &key)
	return sealed, nil
}

// Decrypt opens the blob with the service secret. A nil blob decrypts to an empty string.
func (b EncryptedBlob) Decrypt(secret string) (string, error) {
	if len(b) == 0 {
		return "", nil
	}
	if len(b) <= nonceSize {
		return "", errDecryptFailed
	}

	var nonce [nonceSize]byte
	copy(nonce[:], b[:nonceSize])

	key := deriveKey(secret)
	plain, ok := secretbox.Open(nil, b[nonceSize:], &nonce, &key)
	if !ok {
		return "", errDecryptFailed
	}
	return string(plain), nil
}

// WithCredentials decrypts the username/password pair and passes them to fn.
// The decrypted values must not escape fn.
func WithCredentials(secret string, username, password EncryptedBlob, fn func(user, pass string) error) error {
	user, err := username.Decrypt(secret)
	if err != nil {
		return errors.Wrap(err, "failed to decrypt mirror username")
	}
	pass, err := password.Decrypt(secret)
	if err != nil {
		return errors.Wrap(err, "failed to decrypt mirror password")
	}
	return fn(user, pass)
}

func deriveKey(secret string) [32]byte {
	return sha256.Sum256([]byte(secret))
}
