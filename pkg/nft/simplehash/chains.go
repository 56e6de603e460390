package simplehash

import (
	"strings"

	"github.com/code-payments/wallet-server/pkg/wallet/chain"
)

var chainIdToSlug = map[string]string{
	chain.EthereumMainnet:  "ethereum",
	chain.OptimismMainnet:  "optimism",
	chain.BscMainnet:       "bsc",
	chain.GnosisMainnet:    "gnosis",
	chain.PolygonMainnet:   "polygon",
	chain.FantomMainnet:    "fantom",
	chain.ZkSyncEraMainnet: "zksync-era",
	chain.BaseMainnet:      "base",
	chain.ArbitrumMainnet:  "arbitrum",
	chain.AvalancheMainnet: "avalanche",
	chain.LineaMainnet:     "linea",
	chain.SolanaMainnet:    "solana",
}

var slugToChainId = func() map[string]string {
	m := make(map[string]string, len(chainIdToSlug))
	for id, slug := range chainIdToSlug {
		m[slug] = id
	}
	return m
}()

// ChainSlug returns the indexer's name for a chain id.
func ChainSlug(chainId string) (string, bool) {
	slug, ok := chainIdToSlug[strings.ToLower(chainId)]
	return slug, ok
}

// ChainIdFromSlug returns the chain id for an indexer chain name.
func ChainIdFromSlug(slug string) (string, bool) {
	id, ok := slugToChainId[slug]
	return id, ok
}

// IsSupportedCoin reports whether NFT discovery is available for coin.
func IsSupportedCoin(coin chain.CoinType) bool {
	return coin == chain.CoinTypeETH || coin == chain.CoinTypeSOL
}

func coinForChainId(chainId string) chain.CoinType {
	if chain.IsSolana(chainId) {
		return chain.CoinTypeSOL
	}
	return chain.CoinTypeETH
}
