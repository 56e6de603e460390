package solana

import (
	"bytes"
	"crypto/ed25519"

	"github.com/pkg/errors"
)

var (
	ErrIncorrectProgram     = errors.New("incorrect program")
	ErrIncorrectInstruction = errors.New("incorrect instruction")
	ErrInvalidAccountMeta   = errors.New("invalid account meta")
)

// AccountMeta is an account referenced by an instruction along with the
// permissions the instruction needs on it.
type AccountMeta struct {
	PublicKey  ed25519.PublicKey
	IsSigner   bool
	IsWritable bool
	isPayer    bool
	isProgram  bool
}

// NewAccountMeta returns a writable account reference.
func NewAccountMeta(pub ed25519.PublicKey, isSigner bool) AccountMeta {
	return AccountMeta{
		PublicKey:  pub,
		IsSigner:   isSigner,
		IsWritable: true,
	}
}

// NewReadonlyAccountMeta returns a readonly account reference.
func NewReadonlyAccountMeta(pub ed25519.PublicKey, isSigner bool) AccountMeta {
	return AccountMeta{
		PublicKey:  pub,
		IsSigner:   isSigner,
		IsWritable: false,
	}
}

// Equal reports whether two metas reference the same key with the same permissions.
func (m AccountMeta) Equal(other AccountMeta) bool {
	return bytes.Equal(m.PublicKey, other.PublicKey) &&
		m.IsSigner == other.IsSigner &&
		m.IsWritable == other.IsWritable
}

// accountMetaLess orders accounts the way the runtime expects them within a
// message. Keys break ties so compilation is deterministic.
func accountMetaLess(a, b AccountMeta) bool {
	switch {
	case a.isPayer != b.isPayer:
		return a.isPayer
	case a.isProgram != b.isProgram:
		return !a.isProgram
	case a.IsSigner != b.IsSigner:
		return a.IsSigner
	case a.IsWritable != b.IsWritable:
		return a.IsWritable
	default:
		return bytes.Compare(a.PublicKey, b.PublicKey) < 0
	}
}

type Instruction struct {
	Program  ed25519.PublicKey
	Accounts []AccountMeta
	Data     []byte
}

func NewInstruction(program ed25519.PublicKey, data []byte, accounts ...AccountMeta) Instruction {
	return Instruction{
		Program:  program,
		Data:     data,
		Accounts: accounts,
	}
}

// Validate checks that every key referenced by the instruction is a
// well-formed 32 byte public key.
func (i Instruction) Validate() error {
	if len(i.Program) != ed25519.PublicKeySize {
		return ErrIncorrectProgram
	}

	for _, a := range i.Accounts {
		if len(a.PublicKey) != ed25519.PublicKeySize {
			return ErrInvalidAccountMeta
		}
	}

	return nil
}

// Clone returns a deep copy of the instruction.
func (i Instruction) Clone() Instruction {
	cloned := Instruction{
		Program: bytes.Clone(i.Program),
		Data:    bytes.Clone(i.Data),
	}
	for _, a := range i.Accounts {
		cloned.Accounts = append(cloned.Accounts, AccountMeta{
			PublicKey:  bytes.Clone(a.PublicKey),
			IsSigner:   a.IsSigner,
			IsWritable: a.IsWritable,
		})
	}
	return cloned
}

// CompiledInstruction is an instruction whose keys were replaced by indexes
// into the message account list.
type CompiledInstruction struct {
	ProgramIndex byte
	Accounts     []byte
	Data         []byte
}

// ProgramInstruction returns the compiled instruction at index, provided it
// invokes program.
func (m Message) ProgramInstruction(index int, program ed25519.PublicKey) (CompiledInstruction, error) {
	if index < 0 || index >= len(m.Instructions) {
		return CompiledInstruction{}, errors.Errorf("instruction doesn't exist at %d", index)
	}

	c := m.Instructions[index]
	if int(c.ProgramIndex) >= len(m.Accounts) || !bytes.Equal(m.Accounts[c.ProgramIndex], program) {
		return CompiledInstruction{}, ErrIncorrectProgram
	}
	return c, nil
}

// InstructionAccounts resolves the account keys referenced by c.
func (m Message) InstructionAccounts(c CompiledInstruction) ([]ed25519.PublicKey, error) {
	keys := make([]ed25519.PublicKey, 0, len(c.Accounts))
	for _, index := range c.Accounts {
		if int(index) >= len(m.Accounts) {
			return nil, errors.Errorf("account index %d out of range", index)
		}
		keys = append(keys, m.Accounts[index])
	}
	return keys, nil
}
