package simplehash

import (
	"context"
	"math/big"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/code-payments/wallet-server/pkg/wallet/chain"
)

const (
	nftPathPrefix = "/api/v0/nfts/"
)

// NftOwner is a single entry of an NFT's owner list.
type NftOwner struct {
	Address  string
	Quantity uint64
}

// NftUrl returns the URL of a single NFT, or an empty string when the chain is
// unsupported or the contract is empty. EVM token ids may be given in hex.
func (c *Client) NftUrl(chainId, contractAddress, tokenId string) string {
	slug, ok := ChainSlug(chainId)
	if !ok || len(contractAddress) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(strings.TrimRight(c.baseUrl, "/"))
	sb.WriteString(nftPathPrefix)
	sb.WriteString(slug)
	sb.WriteString("/")
	sb.WriteString(url.PathEscape(contractAddress))
	if len(tokenId) > 0 {
		sb.WriteString("/")
		sb.WriteString(url.PathEscape(decimalTokenId(tokenId)))
	}
	return sb.String()
}

// GetNftBalance returns how many units of an NFT wallet owns. A wallet absent
// from the owner list has a zero balance; nil means the balance is unknown.
func (c *Client) GetNftBalance(ctx context.Context, wallet, chainId, contractAddress, tokenId string, coin chain.CoinType) *uint64 {
	log := c.log.WithFields(logrus.Fields{
		"method":   "GetNftBalance",
		"wallet":   wallet,
		"chain":    chainId,
		"contract": contractAddress,
	})

	if !IsSupportedCoin(coin) || coinForChainId(chainId) != coin {
		log.Debug("unsupported coin")
		return nil
	}

	u := c.NftUrl(chainId, contractAddress, tokenId)
	if len(u) == 0 {
		log.Debug("no query for input")
		return nil
	}

	body, err := c.get(ctx, "nft_balance", u)
	if err != nil {
		log.WithError(err).Warn("failure fetching nft")
		return nil
	}

	owners, err := ParseNftOwners(body)
	if err != nil {
		log.WithError(err).Warn("failure parsing nft owners")
		return nil
	}

	var balance uint64
	for _, owner := range owners {
		if owner.Address == wallet {
			balance += owner.Quantity
		}
	}
	return &balance
}

// ParseNftOwners parses the owner list of a single NFT response. Owners
// without a quantity are skipped.
func ParseNftOwners(body []byte) ([]*NftOwner, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrParseFailure
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, ErrParseFailure
	}

	list := root.Get("owners")
	if !list.IsArray() {
		return nil, ErrParseFailure
	}

	owners := make([]*NftOwner, 0)
	for _, item := range list.Array() {
		address := item.Get("owner_address")
		quantity := item.Get("quantity")
		if address.Type != gjson.String || quantity.Type != gjson.Number {
			continue
		}

		owners = append(owners, &NftOwner{
			Address:  address.Str,
			Quantity: quantity.Uint(),
		})
	}
	return owners, nil
}

func decimalTokenId(tokenId string) string {
	if !strings.HasPrefix(tokenId, "0x") && !strings.HasPrefix(tokenId, "0X") {
		return tokenId
	}

	value, ok := new(big.Int).SetString(tokenId[2:], 16)
	if !ok {
		return tokenId
	}
	return value.String()
}
