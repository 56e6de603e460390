package bubblegum

import (
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/wallet-server/pkg/solana"
	"github.com/code-payments/wallet-server/pkg/solana/binary"
)

var transferInstructionDiscriminator = []byte{
	163, 52, 200, 231, 140, 3, 69, 186,
}

const (
	TransferInstructionArgsSize = (32 + // Root
		32 + // DataHash
		32 + // CreatorHash
		8 + // Nonce
		4) // Index
)

// Proof is the compressed leaf proof of an asset as reported by an indexer.
// Hashes and keys are base58 encoded.
type Proof struct {
	Root        string
	DataHash    string
	CreatorHash string
	Owner       string
	Delegate    string
	MerkleTree  string
	LeafIndex   uint32
	Path        []string
}

// Transfer moves a compressed NFT leaf from the proof owner to newOwner.
//
// The last canopyDepth nodes of the proof path are stored on chain and are
// not passed as accounts.
func Transfer(canopyDepth uint32, treeAuthority, newOwner ed25519.PublicKey, proof *Proof) (solana.Instruction, error) {
	if proof == nil {
		return solana.Instruction{}, ErrInvalidProof
	}
	if len(treeAuthority) != ed25519.PublicKeySize || len(newOwner) != ed25519.PublicKeySize {
		return solana.Instruction{}, ErrInvalidAccount
	}
	if uint64(canopyDepth) > uint64(len(proof.Path)) {
		return solana.Instruction{}, errors.Wrapf(ErrInvalidCanopyDepth, "canopy=%d proof=%d", canopyDepth, len(proof.Path))
	}

	root, err := decodeHash(proof.Root)
	if err != nil {
		return solana.Instruction{}, err
	}
	dataHash, err := decodeHash(proof.DataHash)
	if err != nil {
		return solana.Instruction{}, err
	}
	creatorHash, err := decodeHash(proof.CreatorHash)
	if err != nil {
		return solana.Instruction{}, err
	}

	owner, err := decodeKey(proof.Owner)
	if err != nil {
		return solana.Instruction{}, err
	}
	merkleTree, err := decodeKey(proof.MerkleTree)
	if err != nil {
		return solana.Instruction{}, err
	}

	data := binary.NewWriter(len(transferInstructionDiscriminator) + TransferInstructionArgsSize).
		Raw(transferInstructionDiscriminator).
		Key32(root).
		Key32(dataHash).
		Key32(creatorHash).
		Uint64(uint64(proof.LeafIndex)).
		Uint32(proof.LeafIndex).
		Bytes()

	// The leaf owner also fills the delegate slot.
	accounts := []solana.AccountMeta{
		solana.NewReadonlyAccountMeta(treeAuthority, false),
		solana.NewReadonlyAccountMeta(owner, false),
		solana.NewReadonlyAccountMeta(owner, false),
		solana.NewReadonlyAccountMeta(newOwner, false),
		solana.NewAccountMeta(merkleTree, false),
		solana.NewReadonlyAccountMeta(LOG_WRAPPER_ID, false),
		solana.NewReadonlyAccountMeta(COMPRESSION_PROGRAM_ID, false),
		solana.NewReadonlyAccountMeta(SYSTEM_PROGRAM_ID, false),
	}

	end := len(proof.Path) - int(canopyDepth)
	for _, node := range proof.Path[:end] {
		key, err := decodeKey(node)
		if err != nil {
			return solana.Instruction{}, errors.Wrap(ErrInvalidProof, err.Error())
		}
		accounts = append(accounts, solana.NewReadonlyAccountMeta(key, false))
	}

	return solana.NewInstruction(PROGRAM_ID, data, accounts...), nil
}
