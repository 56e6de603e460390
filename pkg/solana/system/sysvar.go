package system

import (
	"crypto/ed25519"

	"github.com/mr-tron/base58/base58"
)

// RecentBlockhashesSysVar is the sysvar account the nonce program reads when
// advancing a durable nonce.
var RecentBlockhashesSysVar = mustDecodeKey("SysvarRecentB1ockHashes11111111111111111111")

func mustDecodeKey(encoded string) ed25519.PublicKey {
	key, err := base58.Decode(encoded)
	if err != nil || len(key) != ed25519.PublicKeySize {
		panic("invalid sysvar address: " + encoded)
	}
	return key
}
