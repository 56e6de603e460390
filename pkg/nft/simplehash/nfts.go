package simplehash

import (
	"context"
	"math/big"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/code-payments/wallet-server/pkg/pointer"
	"github.com/code-payments/wallet-server/pkg/wallet/chain"
)

const (
	ownersPath = "/api/v0/nfts/owners"
)

// Contract types reported by the indexer.
const (
	ContractTypeERC20                   = "ERC20"
	ContractTypeERC721                  = "ERC721"
	ContractTypeERC1155                 = "ERC1155"
	ContractTypeNonFungible             = "NonFungible"
	ContractTypeNonFungibleEdition      = "NonFungibleEdition"
	ContractTypeProgrammableNonFungible = "ProgrammableNonFungible"
)

// NFT is a token discovered through the indexer.
type NFT struct {
	ChainId         string
	ContractAddress string
	TokenId         string
	Name            string
	Symbol          string
	Logo            string
	Coin            chain.CoinType
	Decimals        int32
	Visible         bool

	IsErc20      bool
	IsErc721     bool
	IsErc1155    bool
	IsNft        bool
	IsCompressed bool
	IsSpam       bool
}

// Key is the identity of an NFT across pages.
func (n *NFT) Key() string {
	return n.ChainId + "/" + n.ContractAddress + "/" + n.TokenId
}

// Page is a single page of indexer results.
type Page struct {
	Nfts       []*NFT
	NextCursor *string
}

// NftsByWalletUrl returns the URL listing NFTs owned by address on the given
// chains, or an empty string when no query can be built. Unsupported chain ids
// are skipped.
func (c *Client) NftsByWalletUrl(address string, chainIds []string, cursor *string) string {
	return nftsByWalletUrl(c.baseUrl, address, chainIds, cursor)
}

func nftsByWalletUrl(baseUrl, address string, chainIds []string, cursor *string) string {
	if len(address) == 0 || len(chainIds) == 0 {
		return ""
	}

	var slugs []string
	for _, chainId := range chainIds {
		if slug, ok := ChainSlug(chainId); ok {
			slugs = append(slugs, slug)
		}
	}
	if len(slugs) == 0 {
		return ""
	}

	// Parameters keep a fixed order; url.Values.Encode sorts them by key.
	var sb strings.Builder
	sb.WriteString(strings.TrimRight(baseUrl, "/"))
	sb.WriteString(ownersPath)
	sb.WriteString("?chains=")
	sb.WriteString(url.QueryEscape(strings.Join(slugs, ",")))
	sb.WriteString("&wallet_addresses=")
	sb.WriteString(url.QueryEscape(address))
	if next := pointer.ValueOrDefault(cursor, ""); len(next) > 0 {
		sb.WriteString("&cursor=")
		sb.WriteString(url.QueryEscape(next))
	}
	return sb.String()
}

// FetchNFTs fetches a single page of NFTs owned by address. Invalid input and
// indexer failures yield an empty page.
func (c *Client) FetchNFTs(ctx context.Context, address string, chainIds []string, coin chain.CoinType, cursor *string, skipSpam, onlySpam bool) ([]*NFT, *string) {
	log := c.log.WithFields(logrus.Fields{
		"method":  "FetchNFTs",
		"address": address,
		"coin":    coin.String(),
	})

	if skipSpam && onlySpam {
		log.Debug("mutually exclusive spam filters")
		return nil, nil
	}
	if !IsSupportedCoin(coin) {
		log.Debug("unsupported coin")
		return nil, nil
	}

	u := c.NftsByWalletUrl(address, chainIds, cursor)
	if len(u) == 0 {
		log.Debug("no query for input")
		return nil, nil
	}

	body, err := c.get(ctx, "nfts_by_wallet", u)
	if err != nil {
		log.WithError(err).Warn("failure fetching nfts")
		return nil, nil
	}

	page, err := ParseNFTs(body, coin, skipSpam, onlySpam)
	if err != nil {
		log.WithError(err).Warn("failure parsing nfts")
		return nil, nil
	}

	return page.Nfts, page.NextCursor
}

// FetchAllNFTs follows cursors until the indexer reports no further pages,
// skipping spam. Records are deduplicated by chain, contract and token id. If
// the configured page ceiling is reached first, the records gathered so far
// are returned with ErrPaginationLimitExceeded.
func (c *Client) FetchAllNFTs(ctx context.Context, address string, chainIds []string, coin chain.CoinType) ([]*NFT, error) {
	maxPages := c.conf.maxPages.Get(ctx)

	var all []*NFT
	seen := make(map[string]struct{})

	var cursor *string
	for page := uint64(0); ; page++ {
		if page >= maxPages {
			c.log.WithFields(logrus.Fields{
				"method":    "FetchAllNFTs",
				"address":   address,
				"max_pages": maxPages,
			}).Warn("pagination limit exceeded")
			return all, ErrPaginationLimitExceeded
		}

		if err := ctx.Err(); err != nil {
			return all, err
		}

		nfts, next := c.FetchNFTs(ctx, address, chainIds, coin, cursor, true, false)
		for _, nft := range nfts {
			if _, ok := seen[nft.Key()]; ok {
				continue
			}
			seen[nft.Key()] = struct{}{}
			all = append(all, nft)
		}

		if next == nil {
			return all, nil
		}
		cursor = next
	}
}

// ParseNFTs parses a page of the owners endpoint. Records missing a required
// field, or on a chain outside coin's family, are dropped.
func ParseNFTs(body []byte, coin chain.CoinType, skipSpam, onlySpam bool) (*Page, error) {
	if skipSpam && onlySpam {
		return nil, ErrMutuallyExclusiveSpamFilters
	}
	if !IsSupportedCoin(coin) {
		return nil, ErrUnsupportedCoin
	}

	if !gjson.ValidBytes(body) {
		return nil, ErrParseFailure
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, ErrParseFailure
	}
	nfts := root.Get("nfts")
	if !nfts.IsArray() {
		return nil, ErrParseFailure
	}

	page := &Page{}

	if next := root.Get("next_cursor"); next.Type == gjson.String && len(next.Str) > 0 {
		cursor := next.Str
		page.NextCursor = &cursor
	}

	for _, item := range nfts.Array() {
		nft, ok := parseNFT(item, coin)
		if !ok {
			continue
		}

		if skipSpam && nft.IsSpam {
			continue
		}
		if onlySpam && !nft.IsSpam {
			continue
		}

		page.Nfts = append(page.Nfts, nft)
	}

	return page, nil
}

func parseNFT(item gjson.Result, coin chain.CoinType) (*NFT, bool) {
	if !item.IsObject() {
		return nil, false
	}

	slug := item.Get("chain")
	if slug.Type != gjson.String {
		return nil, false
	}
	chainId, ok := ChainIdFromSlug(slug.Str)
	if !ok || coinForChainId(chainId) != coin {
		return nil, false
	}

	contractAddress := item.Get("contract_address")
	if contractAddress.Type != gjson.String {
		return nil, false
	}

	rawTokenId := item.Get("token_id")
	if !rawTokenId.Exists() {
		return nil, false
	}
	tokenId, ok := normalizeTokenId(rawTokenId, coin)
	if !ok {
		return nil, false
	}

	contractType := item.Get("contract.type")
	if contractType.Type != gjson.String {
		return nil, false
	}

	spamScore := item.Get("collection.spam_score")
	if spamScore.Type != gjson.Number {
		return nil, false
	}

	nft := &NFT{
		ChainId:         chainId,
		ContractAddress: contractAddress.Str,
		TokenId:         tokenId,
		Name:            stringOrEmpty(item.Get("name")),
		Symbol:          stringOrEmpty(item.Get("contract.symbol")),
		Logo:            stringOrEmpty(item.Get("image_url")),
		Coin:            coin,
		Decimals:        0,
		Visible:         true,
		IsCompressed:    item.Get("extra_metadata.compression.compressed").Type == gjson.True,
		IsSpam:          spamScore.Float() > 0,
	}

	switch contractType.Str {
	case ContractTypeERC20:
		nft.IsErc20 = true
	case ContractTypeERC721:
		nft.IsErc721 = true
		nft.IsNft = true
	case ContractTypeERC1155:
		nft.IsErc1155 = true
		nft.IsNft = true
	case ContractTypeNonFungible, ContractTypeNonFungibleEdition, ContractTypeProgrammableNonFungible:
		nft.IsNft = true
	}

	return nft, true
}

// normalizeTokenId converts EVM token ids, which the indexer reports in
// decimal, into 0x prefixed hex. Solana records carry no token id.
func normalizeTokenId(raw gjson.Result, coin chain.CoinType) (string, bool) {
	if raw.Type == gjson.Null {
		return "", coin == chain.CoinTypeSOL
	}

	var decimal string
	switch raw.Type {
	case gjson.String:
		decimal = raw.Str
	case gjson.Number:
		decimal = raw.Raw
	default:
		return "", false
	}

	if coin == chain.CoinTypeSOL {
		return decimal, true
	}

	value, ok := new(big.Int).SetString(decimal, 10)
	if !ok || value.Sign() < 0 {
		return "", false
	}
	return "0x" + value.Text(16), true
}

func stringOrEmpty(value gjson.Result) string {
	if value.Type != gjson.String {
		return ""
	}
	return value.Str
}
