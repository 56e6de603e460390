package token

import (
	"bytes"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/wallet-server/pkg/solana"
	"github.com/code-payments/wallet-server/pkg/solana/system"
)

// AssociatedTokenAccountProgramKey is ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL.
var AssociatedTokenAccountProgramKey = ed25519.PublicKey{140, 151, 37, 143, 78, 36, 137, 241, 187, 61, 16, 41, 20, 142, 13, 131, 11, 90, 19, 153, 218, 255, 16, 132, 4, 142, 123, 216, 219, 233, 248, 89}

// GetAssociatedAccount derives the canonical token account of wallet for mint.
func GetAssociatedAccount(wallet, mint ed25519.PublicKey) (ed25519.PublicKey, error) {
	if len(wallet) != ed25519.PublicKeySize || len(mint) != ed25519.PublicKeySize {
		return nil, ErrInvalidAccount
	}

	return solana.FindProgramAddress(
		AssociatedTokenAccountProgramKey,
		wallet,
		ProgramKey,
		mint,
	)
}

// CreateAssociatedTokenAccount creates the associated token account of wallet
// for mint, paid for by funder. The instruction carries no data.
func CreateAssociatedTokenAccount(funder, wallet, associatedAccount, mint ed25519.PublicKey) (solana.Instruction, error) {
	for _, key := range []ed25519.PublicKey{funder, wallet, associatedAccount, mint} {
		if len(key) != ed25519.PublicKeySize {
			return solana.Instruction{}, ErrInvalidAccount
		}
	}

	return solana.NewInstruction(
		AssociatedTokenAccountProgramKey,
		nil,
		solana.NewAccountMeta(funder, true),
		solana.NewAccountMeta(associatedAccount, false),
		solana.NewReadonlyAccountMeta(wallet, false),
		solana.NewReadonlyAccountMeta(mint, false),
		solana.NewReadonlyAccountMeta(system.ProgramKey[:], false),
		solana.NewReadonlyAccountMeta(ProgramKey, false),
	), nil
}

type DecompiledCreateAssociatedAccount struct {
	Funder  ed25519.PublicKey
	Address ed25519.PublicKey
	Owner   ed25519.PublicKey
	Mint    ed25519.PublicKey
}

func DecompileCreateAssociatedAccount(m solana.Message, index int) (*DecompiledCreateAssociatedAccount, error) {
	c, err := m.ProgramInstruction(index, AssociatedTokenAccountProgramKey)
	if err != nil {
		return nil, err
	}
	if len(c.Data) != 0 {
		return nil, errors.New("unexpected data")
	}
	if len(c.Accounts) != 6 {
		return nil, errors.Errorf("invalid number of accounts: %d (expected 6)", len(c.Accounts))
	}

	keys, err := m.InstructionAccounts(c)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(keys[4], system.ProgramKey[:]) {
		return nil, errors.New("system program key mismatch")
	}
	if !bytes.Equal(keys[5], ProgramKey) {
		return nil, errors.New("token program key mismatch")
	}

	return &DecompiledCreateAssociatedAccount{
		Funder:  keys[0],
		Address: keys[1],
		Owner:   keys[2],
		Mint:    keys[3],
	}, nil
}
