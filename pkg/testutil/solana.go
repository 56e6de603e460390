package testutil

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"
)

// GenerateSolanaKeypair returns a fresh signing key.
func GenerateSolanaKeypair(t *testing.T) ed25519.PrivateKey {
	_, private, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return private
}

// GenerateSolanaKeys returns n fresh public keys.
func GenerateSolanaKeys(t *testing.T, n int) []ed25519.PublicKey {
	keys := make([]ed25519.PublicKey, 0, n)
	for i := 0; i < n; i++ {
		keys = append(keys, GenerateSolanaKeypair(t).Public().(ed25519.PublicKey))
	}
	return keys
}
