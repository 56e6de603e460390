package simplehash

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

const (
	proofPathPrefix = "/api/v0/nfts/proof/solana/"
)

// CompressedNftProof is the Merkle proof of a compressed NFT leaf. Hashes and
// addresses are base58 encoded.
type CompressedNftProof struct {
	Root        string
	DataHash    string
	CreatorHash string
	Owner       string
	Delegate    string
	MerkleTree  string
	LeafIndex   uint32
	CanopyDepth uint32
	Proof       []string
}

// FetchSolCompressedNftProofData fetches the current proof for a compressed
// NFT. Every call goes to the indexer, since the owner and root change with
// each transfer of the leaf. Failures yield nil.
func (c *Client) FetchSolCompressedNftProofData(ctx context.Context, tokenAddress string) *CompressedNftProof {
	log := c.log.WithFields(logrus.Fields{
		"method": "FetchSolCompressedNftProofData",
		"token":  tokenAddress,
	})

	if len(tokenAddress) == 0 {
		return nil
	}

	u := strings.TrimRight(c.baseUrl, "/") + proofPathPrefix + url.PathEscape(tokenAddress)
	body, err := c.get(ctx, "compressed_nft_proof", u)
	if err != nil {
		log.WithError(err).Warn("failure fetching proof")
		return nil
	}

	proof, err := ParseSolCompressedNftProofData(body)
	if err != nil {
		log.WithError(err).Warn("failure parsing proof")
		return nil
	}

	return proof
}

// ParseSolCompressedNftProofData parses a proof response. Every field is
// required and must have the expected type.
func ParseSolCompressedNftProofData(body []byte) (*CompressedNftProof, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrParseFailure
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, ErrParseFailure
	}

	proof := &CompressedNftProof{}

	strs := map[string]*string{
		"root":         &proof.Root,
		"data_hash":    &proof.DataHash,
		"creator_hash": &proof.CreatorHash,
		"owner":        &proof.Owner,
		"delegate":     &proof.Delegate,
		"merkle_tree":  &proof.MerkleTree,
	}
	for key, dst := range strs {
		value := root.Get(key)
		if value.Type != gjson.String {
			return nil, ErrParseFailure
		}
		*dst = value.Str
	}

	nums := map[string]*uint32{
		"leaf_index":   &proof.LeafIndex,
		"canopy_depth": &proof.CanopyDepth,
	}
	for key, dst := range nums {
		value := root.Get(key)
		if value.Type != gjson.Number {
			return nil, ErrParseFailure
		}
		n, err := strconv.ParseUint(value.Raw, 10, 32)
		if err != nil {
			return nil, ErrParseFailure
		}
		*dst = uint32(n)
	}

	path := root.Get("proof")
	if !path.IsArray() {
		return nil, ErrParseFailure
	}
	proof.Proof = make([]string, 0)
	for _, node := range path.Array() {
		if node.Type != gjson.String {
			return nil, ErrParseFailure
		}
		proof.Proof = append(proof.Proof, node.Str)
	}

	return proof, nil
}
