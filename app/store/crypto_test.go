package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealCredentialRoundtrip(t *testing.T) {
	sealed, err := SealCredential("service-secret", "robot-p@ssw0rd")
	require.NoError(t, err)
	require.NotEmpty(t, sealed)
	assert.NotContains(t, string(sealed), "robot-p@ssw0rd")

	plain, err := sealed.Decrypt("service-secret")
	require.NoError(t, err)
	assert.Equal(t, "robot-p@ssw0rd", plain)

	// every seal picks a fresh nonce
	sealedAgain, err := SealCredential("service-secret", "robot-p@ssw0rd")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, sealedAgain)
}

func TestSealCredentialEmpty(t *testing.T) {
	sealed, err := SealCredential("service-secret", "")
	require.NoError(t, err)
	assert.Nil(t, sealed)

	plain, err := EncryptedBlob(nil).Decrypt("service-secret")
	require.NoError(t, err)
	assert.Empty(t, plain)
}

func TestDecryptErrors(t *testing.T) {
	sealed, err := SealCredential("service-secret", "value")
	require.NoError(t, err)

	_, err = sealed.Decrypt("another-secret")
	assert.Error(t, err)

	// truncated blob, shorter than the nonce prefix
	_, err = EncryptedBlob(sealed[:10]).Decrypt("service-secret")
	assert.Error(t, err)

	// flipped ciphertext byte fails authentication
	tampered := append(EncryptedBlob{}, sealed...)
	tampered[len(tampered)-1] ^= 0xff
	_, err = tampered.Decrypt("service-secret")
	assert.Error(t, err)
}

func TestWithCredentials(t *testing.T) {
	user, err := SealCredential("service-secret", "mirror-user")
	require.NoError(t, err)
	pass, err := SealCredential("service-secret", "mirror-pass")
	require.NoError(t, err)

	var gotUser, gotPass string
	err = WithCredentials("service-secret", user, pass, func(u, p string) error {
		gotUser, gotPass = u, p
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "mirror-user", gotUser)
	assert.Equal(t, "mirror-pass", gotPass)

	// anonymous mirror, both blobs nil
	err = WithCredentials("service-secret", nil, nil, func(u, p string) error {
		assert.Empty(t, u)
		assert.Empty(t, p)
		return nil
	})
	assert.NoError(t, err)

	called := false
	err = WithCredentials("another-secret", user, pass, func(u, p string) error {
		called = true
		return nil
	})
	assert.Error(t, err)
	assert.False(t, called, "callback must not run with undecryptable credentials")
}
