package chain

import (
	"crypto/ed25519"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

// CoinType is the SLIP-44 coin type of an account's key family.
type CoinType uint32

const (
	CoinTypeBTC CoinType = 0
	CoinTypeETH CoinType = 60
	CoinTypeFIL CoinType = 461
	CoinTypeSOL CoinType = 501
)

func (c CoinType) String() string {
	switch c {
	case CoinTypeBTC:
		return "btc"
	case CoinTypeETH:
		return "eth"
	case CoinTypeFIL:
		return "fil"
	case CoinTypeSOL:
		return "sol"
	}
	return "unknown"
}

// Chain ids are hex encoded, matching the EIP-155 style used for EVM chains.
const (
	EthereumMainnet  = "0x1"
	OptimismMainnet  = "0xa"
	BscMainnet       = "0x38"
	GnosisMainnet    = "0x64"
	PolygonMainnet   = "0x89"
	FantomMainnet    = "0xfa"
	ZkSyncEraMainnet = "0x144"
	BaseMainnet      = "0x2105"
	ArbitrumMainnet  = "0xa4b1"
	AvalancheMainnet = "0xa86a"
	LineaMainnet     = "0xe708"

	SolanaMainnet = "0x65"
	SolanaTestnet = "0x66"
	SolanaDevnet  = "0x67"
)

var solanaChains = map[string]struct{}{
	SolanaMainnet: {},
	SolanaTestnet: {},
	SolanaDevnet:  {},
}

// Normalize returns the canonical lowercase form of a hex chain id.
func Normalize(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// IsSolana reports whether id names a Solana cluster.
func IsSolana(id string) bool {
	_, ok := solanaChains[Normalize(id)]
	return ok
}

// SolanaChains returns the ids of all known Solana clusters.
func SolanaChains() []string {
	return []string{SolanaMainnet, SolanaTestnet, SolanaDevnet}
}

// ParseAddress parses a base58 encoded Solana account address.
func ParseAddress(address string) (ed25519.PublicKey, error) {
	if len(address) == 0 {
		return nil, errors.New("empty address")
	}

	pub, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid address %q", address)
	}

	return ed25519.PublicKey(pub[:]), nil
}

// EncodeAddress returns the base58 encoding of a Solana account address.
func EncodeAddress(pub ed25519.PublicKey) string {
	return solana.PublicKeyFromBytes(pub).String()
}
