package txmanager

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"

	"github.com/mr-tron/base58"

	"github.com/code-payments/wallet-server/pkg/metrics"
	"github.com/code-payments/wallet-server/pkg/solana"
	"github.com/code-payments/wallet-server/pkg/solana/bubblegum"
	"github.com/code-payments/wallet-server/pkg/solana/compression"
	"github.com/code-payments/wallet-server/pkg/solana/system"
	"github.com/code-payments/wallet-server/pkg/solana/token"
	"github.com/code-payments/wallet-server/pkg/wallet/chain"
	"github.com/code-payments/wallet-server/pkg/wallet/data/transaction"
)

// MakeSystemProgramTransferTxData builds a SOL transfer.
func (m *Manager) MakeSystemProgramTransferTxData(ctx context.Context, from, to string, lamports uint64) (*TxData, error) {
	fromKey, toKey, err := m.parseTransferParties(ctx, from, to)
	if err != nil {
		return nil, err
	}

	instruction, err := system.Transfer(fromKey, toKey, lamports)
	if err != nil {
		return nil, invalidParams("error building transfer: %v", err)
	}

	return &TxData{
		Message: transaction.Message{
			FeePayer:     from,
			Instructions: []solana.Instruction{instruction},
		},
		TxType: transaction.TxTypeSystemTransfer,
	}, nil
}

// MakeTokenProgramTransferTxData builds an SPL token transfer between the
// associated token accounts of from and to, creating the destination account
// when it does not exist yet.
func (m *Manager) MakeTokenProgramTransferTxData(ctx context.Context, chainId, mint, from, to string, amount uint64) (txData *TxData, err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "MakeTokenProgramTransferTxData")
	defer func() {
		tracer.OnError(err)
		tracer.End()
	}()

	if !chain.IsSolana(chainId) {
		return nil, invalidParams("unsupported chain %s", chainId)
	}

	fromKey, toKey, err := m.parseTransferParties(ctx, from, to)
	if err != nil {
		return nil, err
	}
	mintKey, err := chain.ParseAddress(mint)
	if err != nil {
		return nil, invalidParams("invalid mint: %v", err)
	}

	fromAta, err := token.GetAssociatedAccount(fromKey, mintKey)
	if err != nil {
		return nil, internal(err, "error deriving source token account")
	}
	toAta, err := token.GetAssociatedAccount(toKey, mintKey)
	if err != nil {
		return nil, internal(err, "error deriving destination token account")
	}

	info, err := m.rpc.GetAccountInfo(ctx, chainId, chain.EncodeAddress(toAta))
	if err != nil {
		return nil, newProviderError(err)
	}

	var instructions []solana.Instruction
	txType := transaction.TxTypeSplTokenTransfer

	if info == nil || !bytes.Equal(info.Owner, token.ProgramKey) {
		create, err := token.CreateAssociatedTokenAccount(fromKey, toKey, toAta, mintKey)
		if err != nil {
			return nil, internal(err, "error building token account creation")
		}

		instructions = append(instructions, create)
		txType = transaction.TxTypeSplTokenTransferWithAssociatedTokenAccountCreation
	}

	transfer, err := token.Transfer(token.ProgramKey, fromAta, toAta, fromKey, nil, amount)
	if err != nil {
		return nil, internal(err, "error building token transfer")
	}
	instructions = append(instructions, transfer)

	return &TxData{
		Message: transaction.Message{
			FeePayer:     from,
			Instructions: instructions,
		},
		TxType: txType,
	}, nil
}

// MakeTxDataFromBase64EncodedTransaction decodes a serialized legacy
// transaction supplied by a dApp. The caller supplied blockhash or nonce
// value is kept.
func (m *Manager) MakeTxDataFromBase64EncodedTransaction(encoded string, txType transaction.TxType, sendOptions *solana.SendOptions) (*TxData, error) {
	tx, err := decodeBase64Transaction(encoded)
	if err != nil {
		return nil, err
	}

	instructions, err := tx.Message.DecompileInstructions()
	if err != nil {
		return nil, invalidParams("error decompiling instructions: %v", err)
	}

	message := transaction.Message{
		FeePayer:     chain.EncodeAddress(tx.Message.Accounts[0]),
		Instructions: instructions,
	}
	if tx.Message.RecentBlockhash != (solana.Blockhash{}) {
		message.RecentBlockhash = tx.Message.RecentBlockhash.String()
	}

	return &TxData{
		Message:     message,
		TxType:      txType,
		SendOptions: sendOptions,
	}, nil
}

// NewSignTxParam retains the serialized message of a dApp transaction along
// with the signatures already attached to it.
func NewSignTxParam(encoded string) (*transaction.SignTxParam, error) {
	tx, err := decodeBase64Transaction(encoded)
	if err != nil {
		return nil, err
	}

	param := &transaction.SignTxParam{
		EncodedSerializedMessage: base58.Encode(tx.Message.Marshal()),
	}

	signers := tx.Message.Signers()
	for i, signer := range signers {
		pair := transaction.SignaturePubkeyPair{PublicKey: chain.EncodeAddress(signer)}
		if i < len(tx.Signatures) && tx.Signatures[i] != (solana.Signature{}) {
			pair.Signature = append([]byte(nil), tx.Signatures[i][:]...)
		}
		param.Signatures = append(param.Signatures, pair)
	}

	return param, nil
}

func decodeBase64Transaction(encoded string) (solana.Transaction, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return solana.Transaction{}, invalidParams("invalid base64 transaction: %v", err)
	}
	if len(raw) == 0 {
		return solana.Transaction{}, invalidParams("empty transaction")
	}
	if len(raw) > solana.MaxTransactionSize {
		return solana.Transaction{}, invalidParams("transaction size %d exceeds max transaction size", len(raw))
	}

	var tx solana.Transaction
	if err := tx.Unmarshal(raw); err != nil {
		return solana.Transaction{}, invalidParams("invalid transaction: %v", err)
	}
	if len(tx.Message.Accounts) == 0 {
		return solana.Transaction{}, invalidParams("transaction has no accounts")
	}
	return tx, nil
}

// MakeBubbleGumProgramTransferTxData builds a compressed NFT transfer from
// the current proof of the asset. The proof owner pays the fee.
func (m *Manager) MakeBubbleGumProgramTransferTxData(ctx context.Context, chainId, tokenAddress, from, to string) (txData *TxData, err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "MakeBubbleGumProgramTransferTxData")
	defer func() {
		tracer.OnError(err)
		tracer.End()
	}()

	if !chain.IsSolana(chainId) {
		return nil, invalidParams("unsupported chain %s", chainId)
	}

	_, toKey, err := m.parseTransferParties(ctx, from, to)
	if err != nil {
		return nil, err
	}

	proof := m.nft.FetchSolCompressedNftProofData(ctx, tokenAddress)
	if proof == nil {
		return nil, internal(ErrNotFound, "error fetching compressed nft proof")
	}
	if proof.Owner != from {
		return nil, invalidParams("%s does not own %s", from, tokenAddress)
	}

	info, err := m.rpc.GetAccountInfo(ctx, chainId, proof.MerkleTree)
	if err != nil {
		return nil, internal(err, "error getting merkle tree account")
	}
	if info == nil {
		return nil, internal(ErrNotFound, "merkle tree account does not exist")
	}

	canopyDepth, treeAuthority, err := compression.DecodeMerkleTreeAuthorityAndDepth(info.Data)
	if err != nil {
		return nil, internal(err, "error decoding merkle tree account")
	}

	merkleTree, err := chain.ParseAddress(proof.MerkleTree)
	if err != nil {
		return nil, internal(err, "invalid merkle tree address")
	}
	expectedAuthority, _, err := bubblegum.GetTreeAuthority(merkleTree)
	if err != nil {
		return nil, internal(err, "error deriving tree authority")
	}
	if !bytes.Equal(treeAuthority, expectedAuthority) {
		return nil, internal(bubblegum.ErrInvalidAccount, "tree authority mismatch for "+proof.MerkleTree)
	}

	instruction, err := bubblegum.Transfer(canopyDepth, treeAuthority, toKey, &bubblegum.Proof{
		Root:        proof.Root,
		DataHash:    proof.DataHash,
		CreatorHash: proof.CreatorHash,
		Owner:       proof.Owner,
		Delegate:    proof.Delegate,
		MerkleTree:  proof.MerkleTree,
		LeafIndex:   proof.LeafIndex,
		Path:        proof.Proof,
	})
	if err != nil {
		return nil, internal(err, "error building compressed nft transfer")
	}

	return &TxData{
		Message: transaction.Message{
			FeePayer:     proof.Owner,
			Instructions: []solana.Instruction{instruction},
		},
		TxType: transaction.TxTypeCompressedNftTransfer,
	}, nil
}

func (m *Manager) parseTransferParties(ctx context.Context, from, to string) (ed25519.PublicKey, ed25519.PublicKey, error) {
	fromKey, err := chain.ParseAddress(from)
	if err != nil {
		return nil, nil, invalidParams("invalid from address: %v", err)
	}
	toKey, err := chain.ParseAddress(to)
	if err != nil {
		return nil, nil, invalidParams("invalid to address: %v", err)
	}
	if m.blocklist != nil && m.blocklist.IsBlocked(ctx, to) {
		return nil, nil, invalidParams("%s is a restricted address", to)
	}
	return fromKey, toKey, nil
}
