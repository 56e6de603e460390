package simplehash

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/wallet-server/pkg/wallet/chain"
)

func TestParseNFTs_Malformed(t *testing.T) {
	for _, body := range []string{
		`[]`,
		`{"foo": "bar"}`,
		`{"nfts": {}}`,
		`{`,
		``,
	} {
		_, err := ParseNFTs([]byte(body), chain.CoinTypeETH, true, false)
		assert.Equal(t, ErrParseFailure, err, body)
	}
}

func TestParseNFTs_Cursor(t *testing.T) {
	page, err := ParseNFTs([]byte(`{"nfts": [`+polygonNft+`]}`), chain.CoinTypeETH, true, false)
	require.NoError(t, err)
	assert.Nil(t, page.NextCursor)
	assert.Len(t, page.Nfts, 1)

	page, err = ParseNFTs([]byte(`{"next_cursor": null, "nfts": [`+polygonNft+`]}`), chain.CoinTypeETH, true, false)
	require.NoError(t, err)
	assert.Nil(t, page.NextCursor)

	page, err = ParseNFTs([]byte(`{"next_cursor": "abc123", "nfts": [`+polygonNft+`]}`), chain.CoinTypeETH, true, false)
	require.NoError(t, err)
	require.NotNil(t, page.NextCursor)
	assert.Equal(t, "abc123", *page.NextCursor)
}

func TestParseNFTs_EmptyArray(t *testing.T) {
	page, err := ParseNFTs([]byte(`{"nfts": []}`), chain.CoinTypeETH, true, false)
	require.NoError(t, err)
	assert.Empty(t, page.Nfts)
	assert.Nil(t, page.NextCursor)
}

func TestParseNFTs_UnsupportedCoin(t *testing.T) {
	_, err := ParseNFTs([]byte(`{"nfts": [`+polygonNft+`]}`), chain.CoinTypeFIL, true, false)
	assert.Equal(t, ErrUnsupportedCoin, err)
}

func TestParseNFTs_EvmRecords(t *testing.T) {
	body := `{
		"next_cursor": "abc123",
		"nfts": [
			` + polygonNft + `,
			{
				"chain": "ethereum",
				"contract_address": "0x2222222222222222222222222222222222222222",
				"token_id": "2",
				"name": "Token #2",
				"image_url": "https://nftimages-cdn.simplehash.com/2.png",
				"contract": {"type": "ERC721", "symbol": null},
				"collection": {"spam_score": 0}
			}
		]
	}`

	page, err := ParseNFTs([]byte(body), chain.CoinTypeETH, true, false)
	require.NoError(t, err)
	require.Len(t, page.Nfts, 2)

	first := page.Nfts[0]
	assert.Equal(t, chain.PolygonMainnet, first.ChainId)
	assert.Equal(t, "0x1111111111111111111111111111111111111111", first.ContractAddress)
	assert.Equal(t, "0x1", first.TokenId)
	assert.Equal(t, "Token #1", first.Name)
	assert.Equal(t, "ONE", first.Symbol)
	assert.Equal(t, "https://nftimages-cdn.simplehash.com/1.png", first.Logo)
	assert.Equal(t, chain.CoinTypeETH, first.Coin)
	assert.EqualValues(t, 0, first.Decimals)
	assert.True(t, first.Visible)
	assert.False(t, first.IsErc20)
	assert.True(t, first.IsErc721)
	assert.False(t, first.IsErc1155)
	assert.True(t, first.IsNft)
	assert.False(t, first.IsCompressed)
	assert.False(t, first.IsSpam)

	second := page.Nfts[1]
	assert.Equal(t, chain.EthereumMainnet, second.ChainId)
	assert.Equal(t, "0x2", second.TokenId)
	assert.Equal(t, "", second.Symbol)
}

func TestParseNFTs_TokenIdHex(t *testing.T) {
	for decimal, expected := range map[string]string{
		"1":   "0x1",
		"555": "0x22b",
		"115792089237316195423570985008687907853269984665640564039457584007913129639935": "0x" +
			"ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff",
	} {
		body := `{"nfts": [{
			"chain": "ethereum",
			"contract_address": "0x1111111111111111111111111111111111111111",
			"token_id": "` + decimal + `",
			"contract": {"type": "ERC721"},
			"collection": {"spam_score": 0}
		}]}`

		page, err := ParseNFTs([]byte(body), chain.CoinTypeETH, true, false)
		require.NoError(t, err)
		require.Len(t, page.Nfts, 1)
		assert.Equal(t, expected, page.Nfts[0].TokenId)
	}

	// Non numeric ids cannot be re-encoded
	page, err := ParseNFTs([]byte(`{"nfts": [{
		"chain": "ethereum",
		"contract_address": "0x1111111111111111111111111111111111111111",
		"token_id": "abc",
		"contract": {"type": "ERC721"},
		"collection": {"spam_score": 0}
	}]}`), chain.CoinTypeETH, true, false)
	require.NoError(t, err)
	assert.Empty(t, page.Nfts)
}

func TestParseNFTs_RequiredFields(t *testing.T) {
	body := `{
		"nfts": [
			{
				"chain": "polygon",
				"contract_address": "0x1111111111111111111111111111111111111111",
				"token_id": "1",
				"contract": {"type": "ERC721", "symbol": "ONE"},
				"collection": {"spam_score": 0}
			},
			{
				"contract_address": "0x2222222222222222222222222222222222222222",
				"token_id": "2",
				"contract": {"type": "ERC721", "symbol": "TWO"},
				"collection": {"spam_score": 0}
			},
			{
				"chain": "ethereum",
				"token_id": "3",
				"contract": {"type": "ERC721", "symbol": "THREE"},
				"collection": {"spam_score": 0}
			},
			{
				"chain": "ethereum",
				"contract_address": "0x4444444444444444444444444444444444444444",
				"contract": {"type": "ERC721", "symbol": "FOUR"},
				"collection": {"spam_score": 0}
			},
			{
				"chain": "ethereum",
				"contract_address": "0x5555555555555555555555555555555555555555",
				"token_id": "5",
				"contract": {"symbol": "FIVE"},
				"collection": {"spam_score": 0}
			},
			{
				"chain": "polygon",
				"contract_address": "0x6666666666666666666666666666666666666666",
				"token_id": "6",
				"contract": {"type": "ERC721", "symbol": "SIX"},
				"collection": {}
			},
			{
				"chain": "polygon",
				"contract_address": "0x7777777777777777777777777777777777777777",
				"token_id": "7",
				"contract": {"type": "ERC721", "symbol": "SEVEN"}
			},
			{
				"chain": "unknown-chain",
				"contract_address": "0x8888888888888888888888888888888888888888",
				"token_id": "8",
				"contract": {"type": "ERC721", "symbol": "EIGHT"},
				"collection": {"spam_score": 0}
			},
			"not an object"
		]
	}`

	page, err := ParseNFTs([]byte(body), chain.CoinTypeETH, true, false)
	require.NoError(t, err)
	require.Len(t, page.Nfts, 1)
	assert.Equal(t, "0x1111111111111111111111111111111111111111", page.Nfts[0].ContractAddress)
}

func TestParseNFTs_SolanaRecords(t *testing.T) {
	for contractType, contract := range map[string]string{
		ContractTypeNonFungible:             "AvdAUsR4qgsT5HgyKCVeGjimmyu8xrG3RudFqm5txDDE",
		ContractTypeNonFungibleEdition:      "3knghmwnuaMxkiuqXrqzjL7gLDuRw6DkkZcW7F4mvkK8",
		ContractTypeProgrammableNonFungible: "J4P4cVbNiobh7dWXUBnBr3yHUKq5Fg3F67jUspbVbnMC",
	} {
		page, err := ParseNFTs([]byte(`{"nfts": [`+solanaNft(contract, contractType, 0, false)+`]}`), chain.CoinTypeSOL, true, false)
		require.NoError(t, err)
		require.Len(t, page.Nfts, 1)

		nft := page.Nfts[0]
		assert.Equal(t, contract, nft.ContractAddress)
		assert.Equal(t, chain.SolanaMainnet, nft.ChainId)
		assert.Equal(t, chain.CoinTypeSOL, nft.Coin)
		assert.Equal(t, "", nft.TokenId)
		assert.Equal(t, "Y00T", nft.Symbol)
		assert.True(t, nft.IsNft)
		assert.False(t, nft.IsErc20)
		assert.False(t, nft.IsErc721)
		assert.False(t, nft.IsErc1155)
		assert.False(t, nft.IsCompressed)
	}
}

func TestParseNFTs_CoinFamily(t *testing.T) {
	body := `{"nfts": [` + polygonNft + `, ` + solanaNft("AvdAUsR4qgsT5HgyKCVeGjimmyu8xrG3RudFqm5txDDE", ContractTypeNonFungible, 0, false) + `]}`

	page, err := ParseNFTs([]byte(body), chain.CoinTypeETH, true, false)
	require.NoError(t, err)
	require.Len(t, page.Nfts, 1)
	assert.Equal(t, chain.PolygonMainnet, page.Nfts[0].ChainId)

	page, err = ParseNFTs([]byte(body), chain.CoinTypeSOL, true, false)
	require.NoError(t, err)
	require.Len(t, page.Nfts, 1)
	assert.Equal(t, chain.SolanaMainnet, page.Nfts[0].ChainId)
}

func TestParseNFTs_SpamFilters(t *testing.T) {
	spam := "AvdAUsR4qgsT5HgyKCVeGjimmyu8xrG3RudFqm5txDDE"
	notSpam := "J4P4cVbNiobh7dWXUBnBr3yHUKq5Fg3F67jUspbVbnMC"
	body := []byte(`{"nfts": [` +
		solanaNft(spam, ContractTypeNonFungible, 100, false) + `, ` +
		solanaNft(notSpam, ContractTypeProgrammableNonFungible, 0, false) +
		`]}`)

	page, err := ParseNFTs(body, chain.CoinTypeSOL, true, false)
	require.NoError(t, err)
	require.Len(t, page.Nfts, 1)
	assert.Equal(t, notSpam, page.Nfts[0].ContractAddress)
	assert.False(t, page.Nfts[0].IsSpam)

	page, err = ParseNFTs(body, chain.CoinTypeSOL, false, true)
	require.NoError(t, err)
	require.Len(t, page.Nfts, 1)
	assert.Equal(t, spam, page.Nfts[0].ContractAddress)
	assert.True(t, page.Nfts[0].IsSpam)

	_, err = ParseNFTs(body, chain.CoinTypeSOL, true, true)
	assert.Equal(t, ErrMutuallyExclusiveSpamFilters, err)

	page, err = ParseNFTs(body, chain.CoinTypeSOL, false, false)
	require.NoError(t, err)
	require.Len(t, page.Nfts, 2)
	assert.Equal(t, spam, page.Nfts[0].ContractAddress)
	assert.Equal(t, notSpam, page.Nfts[1].ContractAddress)
}

func TestParseNFTs_Compressed(t *testing.T) {
	contract := "7Q5Ab9Fb8VWGnBXEUG3i2pn4xVqfxMzTDuzz4bNfWbJa"
	page, err := ParseNFTs([]byte(`{"nfts": [`+solanaNft(contract, ContractTypeNonFungible, 0, true)+`]}`), chain.CoinTypeSOL, false, false)
	require.NoError(t, err)
	require.Len(t, page.Nfts, 1)
	assert.True(t, page.Nfts[0].IsCompressed)
}

func TestParseNftOwners(t *testing.T) {
	_, err := ParseNftOwners([]byte(`{
		"nft_id": "solana.BoSDWCAWmZEM7TQLg2gawt5wnurGyQu7c77tAcbtzfDG",
		"chain": "solana",
		"token_id": null
	}`))
	assert.Equal(t, ErrParseFailure, err)

	_, err = ParseNftOwners([]byte(`[]`))
	assert.Equal(t, ErrParseFailure, err)

	owners, err := ParseNftOwners([]byte(ownersJson))
	require.NoError(t, err)
	require.Len(t, owners, 3)

	assert.Equal(t, "D2agC8eDxzL5B3BrinD3o5yVwPzY318y87BPDQimpQgX", owners[0].Address)
	assert.EqualValues(t, 68, owners[0].Quantity)
	assert.Equal(t, "53hkAsgKmeA6gopsSHt3tfn6Jcr12s4UforsexfhG637", owners[1].Address)
	assert.EqualValues(t, 13, owners[1].Quantity)
	assert.Equal(t, "9PedHCCYwJxv2m9Ls1G2jhzagrhMYbENT6D1vw9sRywq", owners[2].Address)
	assert.EqualValues(t, 9, owners[2].Quantity)
}

func TestParseSolCompressedNftProofData(t *testing.T) {
	proof, err := ParseSolCompressedNftProofData([]byte(proofJson))
	require.NoError(t, err)

	assert.Equal(t, "5bR96ZfMpkDCBQBFvNwdMRizNTp5ZcNEAYq6J3D7mXMR", proof.Root)
	assert.Equal(t, "4yfgTevXs3x93pS8tfaqh92y22gAqcRS6Ptt8s6uR3u2", proof.DataHash)
	assert.Equal(t, "BSao3oE3zsHmciedhR95HTFyASwrMrwPkcA3xZH9iyzL", proof.CreatorHash)
	assert.EqualValues(t, 1316261, proof.LeafIndex)
	assert.Equal(t, "FBG2vwk2tGKHbEWHSxf7rJGDuZ2eHaaNQ8u6c7xGt9Yv", proof.Owner)
	assert.Equal(t, "6G9UfJJEgQpNB7rDWoVRHcF93nAShcFu7EwedYkua3PH", proof.Delegate)
	assert.Equal(t, "7eFJyb6UF4hQS7nSQaiy8Xpdq6V7Q1ZRjD3Lze11DZTd", proof.MerkleTree)
	assert.EqualValues(t, 0, proof.CanopyDepth)
	require.Len(t, proof.Proof, 24)
	assert.Equal(t, "ANs5srcJ9fSZpbGmJGXy8M6G3NeNABzK8SshSb9JCwAz", proof.Proof[0])
	assert.Equal(t, "6FMzwZu6MxNiBkrE9e6w5fwh925YJEJoRNyQQ9JnrJs3", proof.Proof[23])
}

func TestParseSolCompressedNftProofData_Invalid(t *testing.T) {
	for _, body := range []string{
		`{"data_hash": "79vyLbMksGJdhR8MBRCi73QhxtUxhSdLPQCCkwNpv5MH"}`,
		`[]`,
		`{`,
		`{
			"root": "5bR96ZfMpkDCBQBFvNwdMRizNTp5ZcNEAYq6J3D7mXMR",
			"data_hash": "79vyLbMksGJdhR8MBRCi73QhxtUxhSdLPQCCkwNpv5MH",
			"creator_hash": "55QLBBtrSxGk3VbBwG3RZKSz4cWHxRkTK1BZnDDKXfNv",
			"owner": "FBG2vwk2tGKHbEWHSxf7rJGDuZ2eHaaNQ8u6c7xGt9Yv",
			"delegate": "FBG2vwk2tGKHbEWHSxf7rJGDuZ2eHaaNQ8u6c7xGt9Yv",
			"proof": ["6DQNDJuUQjetFLwr9jejENdkMsJEoJz1FFoNehdQYiE4"],
			"merkle_tree": "D7kub8uwwptGUyiuRFpHUBPmYc446ocpoWDoopcDhW42",
			"leaf_index": 1,
			"canopy_depth": "twelve"
		}`,
		`{
			"root": "5bR96ZfMpkDCBQBFvNwdMRizNTp5ZcNEAYq6J3D7mXMR",
			"data_hash": "79vyLbMksGJdhR8MBRCi73QhxtUxhSdLPQCCkwNpv5MH",
			"creator_hash": "55QLBBtrSxGk3VbBwG3RZKSz4cWHxRkTK1BZnDDKXfNv",
			"owner": "FBG2vwk2tGKHbEWHSxf7rJGDuZ2eHaaNQ8u6c7xGt9Yv",
			"delegate": "FBG2vwk2tGKHbEWHSxf7rJGDuZ2eHaaNQ8u6c7xGt9Yv",
			"proof": [1, 2],
			"merkle_tree": "D7kub8uwwptGUyiuRFpHUBPmYc446ocpoWDoopcDhW42",
			"leaf_index": 1,
			"canopy_depth": 0
		}`,
	} {
		_, err := ParseSolCompressedNftProofData([]byte(body))
		assert.Equal(t, ErrParseFailure, err, body)
	}
}

func TestParseSolCompressedNftProofData_NonIntegerIndex(t *testing.T) {
	for _, leafIndex := range []string{"1.5", "-1", "4294967296", "1e3"} {
		body := strings.Replace(proofJson, `"leaf_index": 1316261`, `"leaf_index": `+leafIndex, 1)
		require.NotEqual(t, proofJson, body)

		_, err := ParseSolCompressedNftProofData([]byte(body))
		assert.Equal(t, ErrParseFailure, err, leafIndex)
	}

	body := strings.Replace(proofJson, `"canopy_depth": 0`, `"canopy_depth": 0.5`, 1)
	_, err := ParseSolCompressedNftProofData([]byte(body))
	assert.Equal(t, ErrParseFailure, err)
}

const polygonNft = `{
	"chain": "polygon",
	"contract_address": "0x1111111111111111111111111111111111111111",
	"token_id": "1",
	"name": "Token #1",
	"image_url": "https://nftimages-cdn.simplehash.com/1.png",
	"contract": {"type": "ERC721", "symbol": "ONE"},
	"collection": {"spam_score": 0}
}`

func solanaNft(contract, contractType string, spamScore int, compressed bool) string {
	compressedJson := "false"
	if compressed {
		compressedJson = "true"
	}

	return `{
		"chain": "solana",
		"contract_address": "` + contract + `",
		"token_id": null,
		"name": "y00t #2623",
		"image_url": "https://cdn.simplehash.com/assets/dc78fa011ba46fa12.png",
		"contract": {"type": "` + contractType + `", "symbol": "Y00T"},
		"collection": {"spam_score": ` + strconv.Itoa(spamScore) + `},
		"extra_metadata": {
			"is_mutable": true,
			"compression": {
				"compressed": ` + compressedJson + `,
				"merkle_tree": "7eFJyb6UF4hQS7nSQaiy8Xpdq6V7Q1ZRjD3Lze11DZTd",
				"leaf_index": 1316261
			}
		}
	}`
}

const ownersJson = `{
	"nft_id": "solana.BoSDWCAWmZEM7TQLg2gawt5wnurGyQu7c77tAcbtzfDG",
	"chain": "solana",
	"contract_address": "BoSDWCAWmZEM7TQLg2gawt5wnurGyQu7c77tAcbtzfDG",
	"token_id": null,
	"name": "Metaplex AirDrop",
	"owners": [
		{"owner_address": "D2agC8eDxzL5B3BrinD3o5yVwPzY318y87BPDQimpQgX", "quantity": 68, "quantity_string": "68"},
		{"owner_address": "53hkAsgKmeA6gopsSHt3tfn6Jcr12s4UforsexfhG637", "quantity": 13, "quantity_string": "13"},
		{"owner_address": "9PedHCCYwJxv2m9Ls1G2jhzagrhMYbENT6D1vw9sRywq", "quantity": 9, "quantity_string": "9"},
		{"owner_address": "skipped", "quantity_string": "9"}
	]
}`

const proofJson = `{
	"root": "5bR96ZfMpkDCBQBFvNwdMRizNTp5ZcNEAYq6J3D7mXMR",
	"proof": [
		"ANs5srcJ9fSZpbGmJGXy8M6G3NeNABzK8SshSb9JCwAz",
		"7Kd9DCCFMFrezFznsWAqwA6jtmRRVVHjon5oKVJFffDf",
		"BvSxmwtVL5bx41gnKhpx2hTdYnXdJ1XfetwwHxQPC8Mn",
		"GEtJJVAYjv5mknVVVSjvLmy7BJeQWSdKhbTWdfqLHhpK",
		"VbqjLNCgxCE6Mm9WMTtBxNmthVHqs557AXRRTMhTr4t",
		"3obQ6KPFsC9QfM6g3ZtYC2RbHPfUKn4iBnDecfZoBhbG",
		"DTLQKdFQj8ywDktN1BqR6oe48XGyoSGzAzQgX9QWfnBk",
		"6zZokt6UsXMNEcXPYn3T2LfSaZN6DmZoDwqc3rM16ohu",
		"4aPfGxhmkgrh6Lz82dsi4mdcNC3vZyE1AXiYbJQta4Gw",
		"2AG8n5BwPATab9wWJ2g9XuqXS4xBiQvLVHhn1zX715Ub",
		"JAN9FwHcwqi79Um4MxzrBkTPYEtLHFkUFP8FbnPAFCzc",
		"Ha6247eWxRgGyFCN2NfLbkKMEpLwU1zmkx1QwwRxQ5Ne",
		"6Rt4B2UPizK2gdvmsd8KahazFtc8S5johvGZCUXmHGyV",
		"25wz52GHDo7vX9QSYbUwMd1gi82MUm8sdmAj5jFX8MAH",
		"5W1NH3cKSBdrKeXbd2t8QdwdTU4qTFpSrr1FZyVgHeS8",
		"2XTZ9pTcLXFxGw1hBGrzXMGJrMnvo47sGyLUQwF88SUb",
		"Sia7ffUkzN8xqRHLX4xRdFXzUbVv7LtzRzKDBz8hgDK",
		"4XjrBbzyUWXxXECf173MukGdjHDWQMJ7rs2ojny445my",
		"DqbTjtfiRPHZf2wwmMJ38acyJNTHeiYBsrySSjbMYNiE",
		"2msvGdBzYX2sHifvvr8kJ6YYYvCK2gjjbRZH2tAQ93d5",
		"2XvcBPNUGQSWmyjqYYk9WDFsKLF9oMrnAYxKBJGsPXtw",
		"HSURhkbUwDFSy464A5vNPuPaqe1vWb51YeAf689oprx8",
		"76hjrsKb9iKgHhiY2Np3NYPZaEwnzGcsr6mwyzj4Grj8",
		"6FMzwZu6MxNiBkrE9e6w5fwh925YJEJoRNyQQ9JnrJs3"
	],
	"merkle_tree": "7eFJyb6UF4hQS7nSQaiy8Xpdq6V7Q1ZRjD3Lze11DZTd",
	"data_hash": "4yfgTevXs3x93pS8tfaqh92y22gAqcRS6Ptt8s6uR3u2",
	"creator_hash": "BSao3oE3zsHmciedhR95HTFyASwrMrwPkcA3xZH9iyzL",
	"leaf_index": 1316261,
	"owner": "FBG2vwk2tGKHbEWHSxf7rJGDuZ2eHaaNQ8u6c7xGt9Yv",
	"delegate": "6G9UfJJEgQpNB7rDWoVRHcF93nAShcFu7EwedYkua3PH",
	"canopy_depth": 0
}`
