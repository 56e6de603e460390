package solana

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"

	"github.com/mr-tron/base58/base58"
	"github.com/pkg/errors"
)

const (
	// MaxTransactionSize taken from: https://github.com/solana-labs/solana/blob/39b3ac6a8d29e14faa1de73d8b46d390ad41797b/sdk/src/packet.rs#L9-L13
	MaxTransactionSize = 1232
)

type Signature [ed25519.SignatureSize]byte
type Blockhash [sha256.Size]byte

// BlockhashFromBase58 parses a base58 encoded blockhash.
func BlockhashFromBase58(encoded string) (Blockhash, error) {
	var bh Blockhash

	decoded, err := base58.Decode(encoded)
	if err != nil {
		return bh, errors.Wrap(err, "invalid base58 encoded blockhash")
	}
	if len(decoded) != len(bh) {
		return bh, errors.Errorf("invalid blockhash length: %d", len(decoded))
	}

	copy(bh[:], decoded)
	return bh, nil
}

func (b Blockhash) String() string {
	return base58.Encode(b[:])
}

func (s Signature) String() string {
	return base58.Encode(s[:])
}

type MessageVersion uint8

const (
	MessageVersionLegacy MessageVersion = iota
	MessageVersion0
)

type Header struct {
	NumSignatures     byte
	NumReadonlySigned byte
	NumReadOnly       byte
}

type MessageAddressTableLookup struct {
	PublicKey       ed25519.PublicKey
	WritableIndexes []byte
	ReadonlyIndexes []byte
}

type Message struct {
	version             MessageVersion
	Header              Header
	Accounts            []ed25519.PublicKey
	RecentBlockhash     Blockhash
	Instructions        []CompiledInstruction
	AddressTableLookups []MessageAddressTableLookup
}

func (m Message) Version() MessageVersion {
	return m.version
}

type Transaction struct {
	Signatures []Signature
	Message    Message
}

// NewTransaction compiles a legacy transaction paid for by payer.
//
// Accounts are deduplicated, taking the union of their permissions, and
// ordered payer first, then writable signers, readonly signers, writable
// accounts, readonly accounts and finally invoked programs.
func NewTransaction(payer ed25519.PublicKey, instructions ...Instruction) Transaction {
	collected := []AccountMeta{{PublicKey: payer, IsSigner: true, IsWritable: true, isPayer: true}}
	for _, instruction := range instructions {
		collected = append(collected, AccountMeta{PublicKey: instruction.Program, isProgram: true})
		collected = append(collected, instruction.Accounts...)
	}

	accounts := mergeAccountMetas(collected)
	sort.SliceStable(accounts, func(i, j int) bool {
		return accountMetaLess(accounts[i], accounts[j])
	})

	var m Message
	positions := make(map[string]byte, len(accounts))
	for i, account := range accounts {
		key := account.PublicKey
		if len(key) == 0 {
			key = make(ed25519.PublicKey, ed25519.PublicKeySize)
		}
		positions[string(account.PublicKey)] = byte(i)
		m.Accounts = append(m.Accounts, key)

		switch {
		case account.IsSigner && !account.IsWritable:
			m.Header.NumSignatures++
			m.Header.NumReadonlySigned++
		case account.IsSigner:
			m.Header.NumSignatures++
		case !account.IsWritable:
			m.Header.NumReadOnly++
		}
	}

	for _, instruction := range instructions {
		compiled := CompiledInstruction{
			ProgramIndex: positions[string(instruction.Program)],
			Data:         instruction.Data,
		}
		for _, account := range instruction.Accounts {
			compiled.Accounts = append(compiled.Accounts, positions[string(account.PublicKey)])
		}
		m.Instructions = append(m.Instructions, compiled)
	}

	return Transaction{
		Signatures: make([]Signature, m.Header.NumSignatures),
		Message:    m,
	}
}

func (t *Transaction) Signature() []byte {
	return t.Signatures[0][:]
}

func (t *Transaction) String() string {
	var sb strings.Builder
	m := t.Message

	fmt.Fprintf(&sb, "%s transaction, blockhash %s\n", m.version, m.RecentBlockhash)
	fmt.Fprintf(&sb, "header: signatures=%d readonly_signed=%d readonly=%d\n",
		m.Header.NumSignatures, m.Header.NumReadonlySigned, m.Header.NumReadOnly)
	for i, sig := range t.Signatures {
		fmt.Fprintf(&sb, "signature[%d]: %s\n", i, sig)
	}
	for i, account := range m.Accounts {
		fmt.Fprintf(&sb, "account[%d]: %s\n", i, base58.Encode(account))
	}
	for i, instruction := range m.Instructions {
		fmt.Fprintf(&sb, "instruction[%d]: program=%d accounts=%v data=%x\n",
			i, instruction.ProgramIndex, instruction.Accounts, instruction.Data)
	}
	return sb.String()
}

func (t *Transaction) SetBlockhash(bh Blockhash) {
	t.Message.RecentBlockhash = bh
}

// Sign signs the message with each of the provided keys.
func (t *Transaction) Sign(signers ...ed25519.PrivateKey) error {
	messageBytes := t.Message.Marshal()

	for _, s := range signers {
		pub := s.Public().(ed25519.PublicKey)
		if err := t.AddSignature(pub, ed25519.Sign(s, messageBytes)); err != nil {
			return err
		}
	}

	return nil
}

// AddSignature places an externally produced signature into the slot that
// belongs to pub.
func (t *Transaction) AddSignature(pub ed25519.PublicKey, signature []byte) error {
	if len(signature) != ed25519.SignatureSize {
		return errors.Errorf("invalid signature length: %d", len(signature))
	}

	index := indexOf(t.Message.Accounts, pub)
	if index < 0 {
		return errors.Errorf("signing account %s is not in the account list", base58.Encode(pub))
	}
	if index >= len(t.Signatures) {
		return errors.Errorf("signing account %s is not in the list of signers", base58.Encode(pub))
	}

	copy(t.Signatures[index][:], signature)
	return nil
}

// Signers returns the accounts required to sign the message, in signature order.
func (m Message) Signers() []ed25519.PublicKey {
	n := int(m.Header.NumSignatures)
	if n > len(m.Accounts) {
		n = len(m.Accounts)
	}
	return m.Accounts[:n]
}

// mergeAccountMetas collapses repeated keys into their first occurrence,
// promoting it to the strongest permissions requested.
func mergeAccountMetas(accounts []AccountMeta) []AccountMeta {
	merged := make([]AccountMeta, 0, len(accounts))
	seen := make(map[string]int, len(accounts))

	for _, account := range accounts {
		i, ok := seen[string(account.PublicKey)]
		if !ok {
			seen[string(account.PublicKey)] = len(merged)
			merged = append(merged, account)
			continue
		}

		merged[i].IsSigner = merged[i].IsSigner || account.IsSigner
		merged[i].IsWritable = merged[i].IsWritable || account.IsWritable
		merged[i].isPayer = merged[i].isPayer || account.isPayer
	}

	return merged
}

func indexOf(slice []ed25519.PublicKey, item ed25519.PublicKey) int {
	for i, val := range slice {
		if bytes.Equal(val, item) {
			return i
		}
	}

	return -1
}

func (v MessageVersion) String() string {
	switch v {
	case MessageVersionLegacy:
		return "legacy"
	case MessageVersion0:
		return "v0"
	}
	return "unknown"
}
