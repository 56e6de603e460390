package token

import (
	"crypto/ed25519"
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	"github.com/code-payments/wallet-server/pkg/solana"
)

// ProgramKey is the SPL token program, TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA.
var ProgramKey = ed25519.PublicKey{6, 221, 246, 225, 215, 101, 161, 147, 217, 203, 225, 70, 206, 235, 121, 172, 28, 180, 133, 237, 95, 91, 55, 145, 58, 140, 245, 133, 126, 255, 0, 169}

var ErrInvalidAccount = errors.New("invalid account")

// Command is the leading byte of token program instruction data.
type Command byte

const (
	CommandTransfer Command = 3
	CommandApprove  Command = 4

	CommandUnknown = Command(math.MaxUint8)
)

const transferDataSize = 1 + 8

func GetCommand(m solana.Message, index int) (Command, error) {
	c, err := m.ProgramInstruction(index, ProgramKey)
	if err != nil {
		return CommandUnknown, err
	}
	if len(c.Data) == 0 {
		return CommandUnknown, errors.New("token instruction missing data")
	}
	return Command(c.Data[0]), nil
}

// Transfer moves amount between two token accounts. Without co-signers the
// authority signs. Otherwise authority is a multisig whose co-signers sign.
func Transfer(program, source, dest, authority ed25519.PublicKey, coSigners []ed25519.PublicKey, amount uint64) (solana.Instruction, error) {
	for _, key := range append([]ed25519.PublicKey{program, source, dest, authority}, coSigners...) {
		if len(key) != ed25519.PublicKeySize {
			return solana.Instruction{}, ErrInvalidAccount
		}
	}

	data := make([]byte, 0, transferDataSize)
	data = append(data, byte(CommandTransfer))
	data = binary.LittleEndian.AppendUint64(data, amount)

	accounts := []solana.AccountMeta{
		solana.NewAccountMeta(source, false),
		solana.NewAccountMeta(dest, false),
		solana.NewReadonlyAccountMeta(authority, len(coSigners) == 0),
	}
	for _, signer := range coSigners {
		accounts = append(accounts, solana.NewReadonlyAccountMeta(signer, true))
	}

	return solana.NewInstruction(program, data, accounts...), nil
}

type DecompiledTransfer struct {
	Source      ed25519.PublicKey
	Destination ed25519.PublicKey
	Owner       ed25519.PublicKey
	Signers     []ed25519.PublicKey
	Amount      uint64
}

func DecompileTransfer(m solana.Message, index int) (*DecompiledTransfer, error) {
	c, err := m.ProgramInstruction(index, ProgramKey)
	if err != nil {
		return nil, err
	}
	if len(c.Data) == 0 || Command(c.Data[0]) != CommandTransfer {
		return nil, solana.ErrIncorrectInstruction
	}

	// Multisig owners are followed by their signers.
	if len(c.Accounts) < 3 {
		return nil, errors.Errorf("invalid number of accounts: %d", len(c.Accounts))
	}
	if len(c.Data) != transferDataSize {
		return nil, errors.Errorf("invalid instruction data size: %d", len(c.Data))
	}

	keys, err := m.InstructionAccounts(c)
	if err != nil {
		return nil, err
	}

	return &DecompiledTransfer{
		Source:      keys[0],
		Destination: keys[1],
		Owner:       keys[2],
		Signers:     keys[3:],
		Amount:      binary.LittleEndian.Uint64(c.Data[1:]),
	}, nil
}
