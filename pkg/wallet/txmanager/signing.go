package txmanager

import (
	"context"
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/wallet-server/pkg/solana"
	"github.com/code-payments/wallet-server/pkg/wallet/chain"
	"github.com/code-payments/wallet-server/pkg/wallet/data/transaction"
)

// buildTransaction returns the unsigned wire transaction. A dApp supplied
// message is used verbatim, with the signatures other parties already
// attached.
func buildTransaction(record *transaction.Record) (solana.Transaction, error) {
	param := record.SignTxParam
	if param == nil || param.EncodedSerializedMessage == "" {
		return record.Message.Compile()
	}

	raw, err := base58.Decode(param.EncodedSerializedMessage)
	if err != nil {
		return solana.Transaction{}, errors.Wrap(err, "invalid serialized message encoding")
	}

	var message solana.Message
	if err := message.Unmarshal(raw); err != nil {
		return solana.Transaction{}, errors.Wrap(err, "invalid serialized message")
	}

	tx := solana.Transaction{
		Signatures: make([]solana.Signature, message.Header.NumSignatures),
		Message:    message,
	}

	for _, pair := range param.Signatures {
		if len(pair.Signature) == 0 {
			continue
		}

		pub, err := chain.ParseAddress(pair.PublicKey)
		if err != nil {
			return solana.Transaction{}, errors.Wrap(err, "invalid signer")
		}
		if err := tx.AddSignature(pub, pair.Signature); err != nil {
			return solana.Transaction{}, err
		}
	}

	return tx, nil
}

// signTransaction returns the signed wire transaction. The signature of the
// from account comes from the keyring unless one is provided.
func (m *Manager) signTransaction(ctx context.Context, record *transaction.Record, signature []byte) ([]byte, error) {
	tx, err := buildTransaction(record)
	if err != nil {
		return nil, err
	}

	from, err := chain.ParseAddress(record.From)
	if err != nil {
		return nil, err
	}

	message := tx.Message.Marshal()
	if signature == nil {
		signature, err = m.keyring.SignMessage(ctx, record.From, message)
		if err != nil {
			return nil, err
		}
	} else if !ed25519.Verify(from, message, signature) {
		return nil, errors.New("signature does not match message")
	}

	if err := tx.AddSignature(from, signature); err != nil {
		return nil, err
	}

	signed := tx.Marshal()
	if len(signed) > solana.MaxTransactionSize {
		return nil, errors.Errorf("transaction size %d exceeds max transaction size", len(signed))
	}
	return signed, nil
}
