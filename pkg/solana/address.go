package solana

import (
	"crypto/ed25519"
	"crypto/sha256"
	"math"

	"github.com/jdgcs/ed25519/edwards25519"
	"github.com/pkg/errors"
)

const (
	maxSeeds      = 16
	maxSeedLength = 32

	pdaMarker = "ProgramDerivedAddress"
)

var (
	ErrTooManySeeds          = errors.New("too many seeds")
	ErrMaxSeedLengthExceeded = errors.New("max seed length exceeded")
	ErrInvalidPublicKey      = errors.New("invalid public key")
	ErrNoProgramAddress      = errors.New("no viable program address")
)

// IsOnCurve reports whether key decodes to a point on the ed25519 curve.
// Program derived addresses must not, so that no private key exists for them.
func IsOnCurve(key ed25519.PublicKey) bool {
	if len(key) != ed25519.PublicKeySize {
		return false
	}

	var compressed [32]byte
	copy(compressed[:], key)

	var point edwards25519.ExtendedGroupElement
	return point.FromBytes(&compressed)
}

// CreateProgramAddress derives sha256(seeds || program || "ProgramDerivedAddress").
// ErrInvalidPublicKey is returned when the result lands on the curve.
func CreateProgramAddress(program ed25519.PublicKey, seeds ...[]byte) (ed25519.PublicKey, error) {
	if len(seeds) > maxSeeds {
		return nil, ErrTooManySeeds
	}

	h := sha256.New()
	for _, seed := range seeds {
		if len(seed) > maxSeedLength {
			return nil, ErrMaxSeedLengthExceeded
		}
		h.Write(seed)
	}
	h.Write(program)
	h.Write([]byte(pdaMarker))

	derived := ed25519.PublicKey(h.Sum(nil))
	if IsOnCurve(derived) {
		return nil, ErrInvalidPublicKey
	}
	return derived, nil
}

// FindProgramAddressAndBump searches bump seeds from 255 downwards and
// returns the first off-curve address along with its bump.
func FindProgramAddressAndBump(program ed25519.PublicKey, seeds ...[]byte) (ed25519.PublicKey, uint8, error) {
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)

	for bump := math.MaxUint8; bump > 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}

		address, err := CreateProgramAddress(program, withBump...)
		switch err {
		case nil:
			return address, uint8(bump), nil
		case ErrInvalidPublicKey:
			continue
		default:
			return nil, 0, err
		}
	}

	return nil, 0, ErrNoProgramAddress
}

func FindProgramAddress(program ed25519.PublicKey, seeds ...[]byte) (ed25519.PublicKey, error) {
	address, _, err := FindProgramAddressAndBump(program, seeds...)
	return address, err
}
