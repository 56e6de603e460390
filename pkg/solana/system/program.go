package system

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/code-payments/wallet-server/pkg/solana"
)

// ProgramKey is the system program, 11111111111111111111111111111111.
var ProgramKey [32]byte

var (
	ErrInvalidAddress = errors.New("invalid address")
)

// System instructions are identified by a little-endian u32 prefix.
const (
	commandTransfer            uint32 = 2
	commandAdvanceNonceAccount uint32 = 4
)

const transferDataSize = 4 + 8

// Transfer returns an instruction moving lamports between two system accounts.
func Transfer(from, to ed25519.PublicKey, lamports uint64) (solana.Instruction, error) {
	if len(from) != ed25519.PublicKeySize || len(to) != ed25519.PublicKeySize {
		return solana.Instruction{}, ErrInvalidAddress
	}

	data := binary.LittleEndian.AppendUint32(make([]byte, 0, transferDataSize), commandTransfer)
	data = binary.LittleEndian.AppendUint64(data, lamports)

	return solana.NewInstruction(
		ProgramKey[:],
		data,
		solana.NewAccountMeta(from, true),
		solana.NewAccountMeta(to, false),
	), nil
}

type DecompiledTransfer struct {
	From     ed25519.PublicKey
	To       ed25519.PublicKey
	Lamports uint64
}

func DecompileTransfer(m solana.Message, index int) (*DecompiledTransfer, error) {
	c, err := m.ProgramInstruction(index, ProgramKey[:])
	if err != nil {
		return nil, err
	}
	if !hasCommand(c.Data, commandTransfer) {
		return nil, solana.ErrIncorrectInstruction
	}
	if len(c.Accounts) != 2 {
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
		From:     keys[0],
		To:       keys[1],
		Lamports: binary.LittleEndian.Uint64(c.Data[4:]),
	}, nil
}

func hasCommand(data []byte, command uint32) bool {
	return len(data) >= 4 && binary.LittleEndian.Uint32(data) == command
}

// AdvanceNonce consumes the current value of a durable nonce account. It
// must be the first instruction of a nonce transaction.
func AdvanceNonce(nonce, authority ed25519.PublicKey) solana.Instruction {
	data := binary.LittleEndian.AppendUint32(nil, commandAdvanceNonceAccount)

	return solana.NewInstruction(
		ProgramKey[:],
		data,
		solana.NewAccountMeta(nonce, false),
		solana.NewReadonlyAccountMeta(RecentBlockhashesSysVar, false),
		solana.NewReadonlyAccountMeta(authority, true),
	)
}

type DecompiledAdvanceNonce struct {
	Nonce     ed25519.PublicKey
	Authority ed25519.PublicKey
}

func DecompileAdvanceNonce(m solana.Message, index int) (*DecompiledAdvanceNonce, error) {
	c, err := m.ProgramInstruction(index, ProgramKey[:])
	if err != nil {
		return nil, err
	}
	if len(c.Data) != 4 || !hasCommand(c.Data, commandAdvanceNonceAccount) {
		return nil, solana.ErrIncorrectInstruction
	}
	if len(c.Accounts) != 3 {
		return nil, errors.Errorf("invalid number of accounts: %d", len(c.Accounts))
	}

	keys, err := m.InstructionAccounts(c)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(keys[1], RecentBlockhashesSysVar) {
		return nil, errors.New("invalid recent blockhashes sysvar")
	}
	return &DecompiledAdvanceNonce{
		Nonce:     keys[0],
		Authority: keys[2],
	}, nil
}

// IsAdvanceNonce reports whether the instruction advances a durable nonce
// account. A transaction whose first instruction does so is validated against
// the nonce value instead of a recent blockhash.
func IsAdvanceNonce(instruction solana.Instruction) bool {
	if !bytes.Equal(instruction.Program, ProgramKey[:]) {
		return false
	}
	if len(instruction.Data) != 4 || !hasCommand(instruction.Data, commandAdvanceNonceAccount) {
		return false
	}
	if len(instruction.Accounts) != 3 {
		return false
	}
	return bytes.Equal(instruction.Accounts[1].PublicKey, RecentBlockhashesSysVar)
}

// GetNonceValueFromAccount returns the blockhash stored in a nonce account.
func GetNonceValueFromAccount(info solana.AccountInfo) (val solana.Blockhash, err error) {
	if len(info.Data) != 80 {
		return val, errors.Errorf("invalid nonce account size: %d", len(info.Data))
	}
	if !bytes.Equal(info.Owner, ProgramKey[:]) {
		return val, errors.Errorf("invalid nonce account (not owned by sys program)")
	}

	// version u32, state u32, authority, then the stored blockhash.
	start := 4 + 4 + ed25519.PublicKeySize
	copy(val[:], info.Data[start:start+ed25519.PublicKeySize])
	return val, nil
}
