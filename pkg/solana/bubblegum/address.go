package bubblegum

import (
	"crypto/ed25519"

	"github.com/code-payments/wallet-server/pkg/solana"
)

func findProgramAddress(merkleTree ed25519.PublicKey) (ed25519.PublicKey, uint8, error) {
	return solana.FindProgramAddressAndBump(PROGRAM_ID, merkleTree)
}
