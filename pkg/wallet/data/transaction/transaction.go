package transaction

import (
	"bytes"
	"crypto/ed25519"
	"time"

	"github.com/pkg/errors"

	"github.com/code-payments/wallet-server/pkg/pointer"
	"github.com/code-payments/wallet-server/pkg/solana"
	"github.com/code-payments/wallet-server/pkg/solana/system"
	"github.com/code-payments/wallet-server/pkg/wallet/chain"
)

type Status uint8

const (
	StatusUnapproved Status = iota
	StatusApproved
	StatusRejected
	StatusSubmitted
	StatusConfirmed
	StatusError
	StatusDropped
	StatusSigned
)

func (s Status) String() string {
	switch s {
	case StatusUnapproved:
		return "unapproved"
	case StatusApproved:
		return "approved"
	case StatusRejected:
		return "rejected"
	case StatusSubmitted:
		return "submitted"
	case StatusConfirmed:
		return "confirmed"
	case StatusError:
		return "error"
	case StatusDropped:
		return "dropped"
	case StatusSigned:
		return "signed"
	}
	return "unknown"
}

type TxType uint8

const (
	TxTypeOther TxType = iota
	TxTypeSystemTransfer
	TxTypeSplTokenTransfer
	TxTypeSplTokenTransferWithAssociatedTokenAccountCreation
	TxTypeDappSignAndSendTransaction
	TxTypeDappSignTransaction
	TxTypeSwap
	TxTypeCompressedNftTransfer
)

func (t TxType) String() string {
	switch t {
	case TxTypeSystemTransfer:
		return "system_transfer"
	case TxTypeSplTokenTransfer:
		return "spl_token_transfer"
	case TxTypeSplTokenTransferWithAssociatedTokenAccountCreation:
		return "spl_token_transfer_with_ata_creation"
	case TxTypeDappSignAndSendTransaction:
		return "dapp_sign_and_send"
	case TxTypeDappSignTransaction:
		return "dapp_sign"
	case TxTypeSwap:
		return "swap"
	case TxTypeCompressedNftTransfer:
		return "compressed_nft_transfer"
	}
	return "other"
}

// SignaturePubkeyPair is a signature a dApp already attached for one of the
// message's signers. Signature is empty for signers we are expected to fill.
type SignaturePubkeyPair struct {
	Signature []byte
	PublicKey string
}

// SignTxParam retains the message exactly as a dApp serialized it, so the
// account order other wallets produced is preserved when signing.
type SignTxParam struct {
	EncodedSerializedMessage string
	Signatures               []SignaturePubkeyPair
}

func (p *SignTxParam) Clone() *SignTxParam {
	if p == nil {
		return nil
	}

	cloned := &SignTxParam{
		EncodedSerializedMessage: p.EncodedSerializedMessage,
		Signatures:               make([]SignaturePubkeyPair, len(p.Signatures)),
	}
	for i, s := range p.Signatures {
		cloned.Signatures[i] = SignaturePubkeyPair{
			Signature: append([]byte(nil), s.Signature...),
			PublicKey: s.PublicKey,
		}
	}
	return cloned
}

type SignatureStatus struct {
	Slot               uint64
	Confirmations      uint64
	Err                string
	ConfirmationStatus string
}

// Message is the unsigned content of a transaction as the wallet tracks it.
// RecentBlockhash is empty until the transaction is approved.
type Message struct {
	RecentBlockhash      string
	LastValidBlockHeight uint64
	FeePayer             string
	Instructions         []solana.Instruction
}

// SetRecentBlockhash updates the blockhash and the block height past which
// the blockhash can no longer land.
func (m *Message) SetRecentBlockhash(hash string, lastValidBlockHeight uint64) {
	m.RecentBlockhash = hash
	m.LastValidBlockHeight = lastValidBlockHeight
}

// UsesDurableNonce reports whether the first instruction advances a nonce
// account, in which case the nonce value is used in place of a blockhash.
func (m *Message) UsesDurableNonce() bool {
	if len(m.Instructions) == 0 {
		return false
	}
	return system.IsAdvanceNonce(m.Instructions[0])
}

// NonceAccount returns the durable nonce account, if the message uses one.
func (m *Message) NonceAccount() string {
	if !m.UsesDurableNonce() {
		return ""
	}
	return chain.EncodeAddress(m.Instructions[0].Accounts[0].PublicKey)
}

// Compile builds the legacy wire transaction. The blockhash is left zeroed
// when it has not been assigned.
func (m *Message) Compile() (solana.Transaction, error) {
	if len(m.Instructions) == 0 {
		return solana.Transaction{}, errors.New("message has no instructions")
	}

	feePayer, err := chain.ParseAddress(m.FeePayer)
	if err != nil {
		return solana.Transaction{}, errors.Wrap(err, "invalid fee payer")
	}

	for i, instruction := range m.Instructions {
		if err := instruction.Validate(); err != nil {
			return solana.Transaction{}, errors.Wrapf(err, "invalid instruction %d", i)
		}
	}

	tx := solana.NewTransaction(feePayer, m.Instructions...)
	if len(tx.Message.Accounts) > 256 {
		return solana.Transaction{}, errors.New("message exceeds account limit")
	}

	if m.RecentBlockhash != "" {
		blockhash, err := solana.BlockhashFromBase58(m.RecentBlockhash)
		if err != nil {
			return solana.Transaction{}, errors.Wrap(err, "invalid recent blockhash")
		}
		tx.SetBlockhash(blockhash)
	}

	return tx, nil
}

// Serialize returns the wire encoding of the compiled message, which is the
// payload signers sign.
func (m *Message) Serialize() ([]byte, error) {
	tx, err := m.Compile()
	if err != nil {
		return nil, err
	}

	serialized := tx.Message.Marshal()
	if len(serialized) > solana.MaxTransactionSize {
		return nil, errors.Errorf("message size %d exceeds max transaction size", len(serialized))
	}
	return serialized, nil
}

// Signers returns the accounts that must sign the compiled message.
func (m *Message) Signers() ([]ed25519.PublicKey, error) {
	tx, err := m.Compile()
	if err != nil {
		return nil, err
	}
	return tx.Message.Signers(), nil
}

func (m Message) Clone() Message {
	cloned := Message{
		RecentBlockhash:      m.RecentBlockhash,
		LastValidBlockHeight: m.LastValidBlockHeight,
		FeePayer:             m.FeePayer,
	}
	if m.Instructions != nil {
		cloned.Instructions = make([]solana.Instruction, len(m.Instructions))
		for i, instruction := range m.Instructions {
			cloned.Instructions[i] = instruction.Clone()
		}
	}
	return cloned
}

// Equal compares the fee payer, blockhash state and instructions.
func (m *Message) Equal(other *Message) bool {
	if m.RecentBlockhash != other.RecentBlockhash ||
		m.LastValidBlockHeight != other.LastValidBlockHeight ||
		m.FeePayer != other.FeePayer ||
		len(m.Instructions) != len(other.Instructions) {
		return false
	}

	for i := range m.Instructions {
		a, b := m.Instructions[i], other.Instructions[i]
		if !bytes.Equal(a.Program, b.Program) || !bytes.Equal(a.Data, b.Data) || len(a.Accounts) != len(b.Accounts) {
			return false
		}
		for j := range a.Accounts {
			if !a.Accounts[j].Equal(b.Accounts[j]) {
				return false
			}
		}
	}

	return true
}

// Record is the lifecycle state of a single wallet transaction.
type Record struct {
	Id      string
	ChainId string
	From    string
	Origin  string

	Status Status
	TxType TxType

	Message       Message
	SendOptions   *solana.SendOptions
	SignTxParam   *SignTxParam
	RawSignatures []byte

	TxHash          string
	SignatureStatus SignatureStatus
	ErrorMessage    string

	CreatedAt   time.Time
	SubmittedAt time.Time
	ConfirmedAt time.Time
}

// IsRetriable reports whether a new transaction may be created from this one.
func (r *Record) IsRetriable() bool {
	switch r.Status {
	case StatusError, StatusDropped:
	default:
		return false
	}

	// A dApp transaction signed by other parties can only be rebuilt if its
	// validity does not depend on a blockhash we would replace.
	if r.SignTxParam != nil && hasForeignSignatures(r.SignTxParam) {
		return r.Message.UsesDurableNonce()
	}
	return true
}

func hasForeignSignatures(p *SignTxParam) bool {
	for _, s := range p.Signatures {
		if len(s.Signature) > 0 {
			return true
		}
	}
	return false
}

func (r *Record) Validate() error {
	if r.Id == "" {
		return errors.New("id is required")
	}
	if r.ChainId == "" {
		return errors.New("chain id is required")
	}
	if r.From == "" {
		return errors.New("from is required")
	}
	if r.Status > StatusSigned {
		return errors.New("invalid status")
	}
	return nil
}

func (r *Record) Clone() *Record {
	cloned := *r
	cloned.Message = r.Message.Clone()
	cloned.SignTxParam = r.SignTxParam.Clone()
	if r.RawSignatures != nil {
		cloned.RawSignatures = append([]byte{}, r.RawSignatures...)
	}
	if r.SendOptions != nil {
		cloned.SendOptions = &solana.SendOptions{
			MaxRetries:          pointer.Copy(r.SendOptions.MaxRetries),
			PreflightCommitment: pointer.Copy(r.SendOptions.PreflightCommitment),
			SkipPreflight:       pointer.Copy(r.SendOptions.SkipPreflight),
		}
	}
	return &cloned
}
