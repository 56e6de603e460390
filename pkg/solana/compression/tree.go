package compression

import (
	"crypto/ed25519"
	"math/bits"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/wallet-server/pkg/solana/binary"
)

var (
	ErrInvalidTreeAccount = errors.New("invalid merkle tree account")
)

var (
	PROGRAM_ID = ed25519.PublicKey(mustBase58Decode("cmtDvXumGCrqC1Age74AVPhSRVXJMd8PJS91L8KbNCK"))
)

type AccountType uint8

const (
	AccountTypeUninitialized AccountType = iota
	AccountTypeConcurrentMerkleTree
)

type HeaderVersion uint8

const (
	HeaderVersionV1 HeaderVersion = iota
)

const (
	headerPaddingSize = 6

	// sequence number, active index, buffer size
	treeMetadataSize = 3 * 8
)

// TreeHeader is the decoded header of an spl-account-compression concurrent
// merkle tree account.
type TreeHeader struct {
	AccountType   AccountType
	Version       HeaderVersion
	MaxBufferSize uint32
	MaxDepth      uint32
	Authority     ed25519.PublicKey
	CreationSlot  uint64
	CanopyDepth   uint32
}

// DecodeMerkleTreeAuthorityAndDepth returns the canopy depth and authority of
// a concurrent merkle tree account.
func DecodeMerkleTreeAuthorityAndDepth(data []byte) (uint32, ed25519.PublicKey, error) {
	header, err := DecodeTreeHeader(data)
	if err != nil {
		return 0, nil, err
	}
	return header.CanopyDepth, header.Authority, nil
}

// DecodeTreeHeader decodes the header of a concurrent merkle tree account and
// derives the canopy depth from the bytes trailing the tree.
func DecodeTreeHeader(data []byte) (*TreeHeader, error) {
	r := binary.NewReader(data)

	var header TreeHeader

	header.AccountType = AccountType(r.Uint8())
	if r.Err() != nil {
		return nil, errors.Wrap(ErrInvalidTreeAccount, r.Err().Error())
	}
	if header.AccountType != AccountTypeConcurrentMerkleTree {
		return nil, errors.Wrapf(ErrInvalidTreeAccount, "unexpected account type %d", header.AccountType)
	}

	header.Version = HeaderVersion(r.Uint8())
	if r.Err() != nil {
		return nil, errors.Wrap(ErrInvalidTreeAccount, r.Err().Error())
	}
	if header.Version != HeaderVersionV1 {
		return nil, errors.Wrapf(ErrInvalidTreeAccount, "unsupported header version %d", header.Version)
	}

	header.MaxBufferSize = r.Uint32()
	header.MaxDepth = r.Uint32()
	rawAuthority := r.Key32()
	header.CreationSlot = r.Uint64()
	r.Skip(headerPaddingSize)
	if r.Err() != nil {
		return nil, errors.Wrap(ErrInvalidTreeAccount, r.Err().Error())
	}

	authority, err := solanago.PublicKeyFromBase58(base58.Encode(rawAuthority))
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidTreeAccount, "invalid authority: %v", err)
	}
	header.Authority = ed25519.PublicKey(authority[:])

	changeLogSize, err := changeLogSize(header.MaxDepth)
	if err != nil {
		return nil, err
	}
	changeLogsSize, err := mul(uint64(header.MaxBufferSize), changeLogSize)
	if err != nil {
		return nil, err
	}
	rightMostPathSize, err := pathSize(header.MaxDepth)
	if err != nil {
		return nil, err
	}

	r.Skip(treeMetadataSize)
	r.Skip(changeLogsSize)
	r.Skip(rightMostPathSize)
	if r.Err() != nil {
		return nil, errors.Wrap(ErrInvalidTreeAccount, r.Err().Error())
	}

	header.CanopyDepth = canopyDepth(uint64(r.Remaining()))
	return &header, nil
}

// root + path nodes + u32 index + u32 padding
func changeLogSize(maxDepth uint32) (uint64, error) {
	nodes, err := mul(32, uint64(maxDepth))
	if err != nil {
		return 0, err
	}
	return add(nodes, 32+4+4)
}

// path nodes + leaf + u32 index + u32 padding
func pathSize(maxDepth uint32) (uint64, error) {
	return changeLogSize(maxDepth)
}

// canopyDepth inverts the canopy byte length 32 * (2^(depth+1) - 2).
func canopyDepth(remaining uint64) uint32 {
	if remaining == 0 {
		return 0
	}

	nodes := remaining/32 + 2
	return uint32(bits.Len64(nodes) - 2)
}

func mul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, errors.Wrap(ErrInvalidTreeAccount, binary.ErrOverflow.Error())
	}
	return lo, nil
}

func add(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, errors.Wrap(ErrInvalidTreeAccount, binary.ErrOverflow.Error())
	}
	return sum, nil
}

func mustBase58Decode(value string) []byte {
	decoded, err := base58.Decode(value)
	if err != nil {
		panic(err)
	}
	return decoded
}
