package secret_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clawpad/clawpad/pkg/secret"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key, err := secret.GenerateKey()
	require.NoError(t, err)
	cipher, err := secret.NewCipher(key)
	require.NoError(t, err)

	plain := "deadbeef0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c"
	sealed, err := cipher.Encrypt(plain)
	require.NoError(t, err)
	require.NotEqual(t, plain, sealed)

	// Same plaintext seals differently each time (fresh nonce).
	sealed2, err := cipher.Encrypt(plain)
	require.NoError(t, err)
	require.NotEqual(t, sealed, sealed2)

	opened, err := cipher.Decrypt(sealed)
	require.NoError(t, err)
	require.Equal(t, plain, opened)
}

func TestDecryptWrongKeyFails(t *testing.T) {
	key1, err := secret.GenerateKey()
	require.NoError(t, err)
	key2, err := secret.GenerateKey()
	require.NoError(t, err)

	c1, err := secret.NewCipher(key1)
	require.NoError(t, err)
	c2, err := secret.NewCipher(key2)
	require.NoError(t, err)

	sealed, err := c1.Encrypt("secret")
	require.NoError(t, err)
	_, err = c2.Decrypt(sealed)
	require.Error(t, err)
}

func TestNewCipherRejectsBadKeys(t *testing.T) {
	_, err := secret.NewCipher("not hex")
	require.Error(t, err)

	_, err = secret.NewCipher("abcd")
	require.Error(t, err)
}

func TestDecryptRejectsTruncatedCiphertext(t *testing.T) {
	key, err := secret.GenerateKey()
	require.NoError(t, err)
	cipher, err := secret.NewCipher(key)
	require.NoError(t, err)

	_, err = cipher.Decrypt("abcd")
	require.Error(t, err)
}
