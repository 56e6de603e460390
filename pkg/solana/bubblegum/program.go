package bubblegum

import (
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

var (
	ErrInvalidProof       = errors.New("invalid compressed nft proof")
	ErrInvalidCanopyDepth = errors.New("canopy depth exceeds proof length")
	ErrInvalidAccount     = errors.New("invalid account")
)

var (
	PROGRAM_ADDRESS = mustBase58Decode("BGUMAp9Gq7iTEuizy4pqaxsTyUCBK68MDfK752saRPUY")
	PROGRAM_ID      = ed25519.PublicKey(PROGRAM_ADDRESS)
)

var (
	SYSTEM_PROGRAM_ID      = ed25519.PublicKey(mustBase58Decode("11111111111111111111111111111111"))
	LOG_WRAPPER_ID         = ed25519.PublicKey(mustBase58Decode("noopb9bkMVfRPU8AsbpTUg8AQkHtKwMYZiFUjNRtMmV"))
	COMPRESSION_PROGRAM_ID = ed25519.PublicKey(mustBase58Decode("cmtDvXumGCrqC1Age74AVPhSRVXJMd8PJS91L8KbNCK"))
)

// GetTreeAuthority derives the bubblegum tree config account that acts as
// the authority of a merkle tree.
func GetTreeAuthority(merkleTree ed25519.PublicKey) (ed25519.PublicKey, uint8, error) {
	if len(merkleTree) != ed25519.PublicKeySize {
		return nil, 0, ErrInvalidAccount
	}
	return findProgramAddress(merkleTree)
}

func decodeKey(encoded string) (ed25519.PublicKey, error) {
	decoded, err := base58.Decode(encoded)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidAccount, "%s: %v", encoded, err)
	}
	if len(decoded) != ed25519.PublicKeySize {
		return nil, errors.Wrapf(ErrInvalidAccount, "%s: invalid length %d", encoded, len(decoded))
	}
	return decoded, nil
}

func decodeHash(encoded string) ([]byte, error) {
	decoded, err := base58.Decode(encoded)
	if err != nil || len(decoded) != 32 {
		return nil, errors.Wrapf(ErrInvalidProof, "invalid hash %q", encoded)
	}
	return decoded, nil
}

func mustBase58Decode(value string) []byte {
	decoded, err := base58.Decode(value)
	if err != nil {
		panic(err)
	}
	return decoded
}
