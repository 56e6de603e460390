package txmanager

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/wallet-server/pkg/metrics"
	"github.com/code-payments/wallet-server/pkg/nft/simplehash"
	"github.com/code-payments/wallet-server/pkg/solana"
	xsync "github.com/code-payments/wallet-server/pkg/sync"
	"github.com/code-payments/wallet-server/pkg/wallet/blocktracker"
	"github.com/code-payments/wallet-server/pkg/wallet/chain"
	"github.com/code-payments/wallet-server/pkg/wallet/data/transaction"
	"github.com/code-payments/wallet-server/pkg/wallet/events"
	"github.com/code-payments/wallet-server/pkg/wallet/keyring"
)

const (
	metricsStructName = "wallet.txmanager"

	statusChangeEventName = "WalletTransactionStatusChange"
)

// RPC is the chain RPC surface used by the manager. It is implemented by
// rpc.Router.
type RPC interface {
	GetBlockHeight(ctx context.Context, chainId string) (uint64, error)
	SendTransaction(ctx context.Context, chainId string, signed []byte, opts *solana.SendOptions) (string, error)
	GetSignatureStatuses(ctx context.Context, chainId string, sigs []string) ([]*solana.SignatureStatus, error)
	GetFeeForMessage(ctx context.Context, chainId, base64Message string) (uint64, error)
	GetAccountInfo(ctx context.Context, chainId, address string) (*solana.AccountInfo, error)
}

// BlockTracker is implemented by blocktracker.Tracker.
type BlockTracker interface {
	GetLatestBlockhash(ctx context.Context, chainId string, force bool) (string, uint64, error)
	Subscribe() (<-chan blocktracker.Update, func())
	Track(chains []string)
}

// NFTClient is implemented by simplehash.Client.
type NFTClient interface {
	FetchSolCompressedNftProofData(ctx context.Context, tokenAddress string) *simplehash.CompressedNftProof
}

// Blocklist is implemented by blocklist.Blocklist.
type Blocklist interface {
	IsBlocked(ctx context.Context, address string) bool
}

// TxData is an unapproved transaction produced by one of the Make*TxData
// builders.
type TxData struct {
	Message     transaction.Message
	TxType      transaction.TxType
	SendOptions *solana.SendOptions
}

// Manager drives Solana transactions through approval, submission and
// confirmation.
type Manager struct {
	log  *logrus.Entry
	conf *conf

	store      transaction.Store
	rpc        RPC
	tracker    BlockTracker
	keyring    keyring.Keyring
	nft        NFTClient
	blocklist  Blocklist
	publisher  events.Publisher
	collectors *metrics.Collectors

	locks *xsync.StripedLock

	pendingMu     sync.Mutex
	pendingChains map[string]struct{}
}

// New returns a Manager. The blocklist, publisher and collectors are
// optional.
func New(
	store transaction.Store,
	rpc RPC,
	tracker BlockTracker,
	keyring keyring.Keyring,
	nft NFTClient,
	blocklist Blocklist,
	publisher events.Publisher,
	collectors *metrics.Collectors,
	configProvider ConfigProvider,
) *Manager {
	conf := configProvider()

	return &Manager{
		log:           logrus.StandardLogger().WithField("type", "wallet/txmanager"),
		conf:          conf,
		store:         store,
		rpc:           rpc,
		tracker:       tracker,
		keyring:       keyring,
		nft:           nft,
		blocklist:     blocklist,
		publisher:     publisher,
		collectors:    collectors,
		locks:         xsync.NewStripedLock(uint(conf.lockStripes.Get(context.Background()))),
		pendingChains: make(map[string]struct{}),
	}
}

// AddUnapprovedTransaction stores a new transaction awaiting approval and
// returns its id.
func (m *Manager) AddUnapprovedTransaction(ctx context.Context, chainId string, txData *TxData, from, origin string, signParam *transaction.SignTxParam) (id string, err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "AddUnapprovedTransaction")
	defer func() {
		tracer.OnError(err)
		tracer.End()
	}()

	if !chain.IsSolana(chainId) {
		return "", invalidParams("unsupported chain %s", chainId)
	}
	if txData == nil {
		return "", invalidParams("missing transaction data")
	}

	fromKey, err := chain.ParseAddress(from)
	if err != nil {
		return "", invalidParams("invalid from address: %v", err)
	}

	message := txData.Message.Clone()
	signers, err := message.Signers()
	if err != nil {
		return "", invalidParams("invalid message: %v", err)
	}
	if !containsKey(signers, fromKey) {
		return "", invalidParams("%s is not a signer of the message", from)
	}

	record := &transaction.Record{
		Id:          uuid.New().String(),
		ChainId:     chain.Normalize(chainId),
		From:        from,
		Origin:      origin,
		Status:      transaction.StatusUnapproved,
		TxType:      txData.TxType,
		Message:     message,
		SendOptions: txData.SendOptions,
		SignTxParam: signParam.Clone(),
		CreatedAt:   time.Now(),
	}
	tracer.AddAttribute("id", record.Id)

	if err := m.store.Put(ctx, record); err != nil {
		return "", internal(err, "error persisting transaction")
	}
	m.onStatusChange(ctx, record)

	return record.Id, nil
}

// GetTransaction returns the transaction with the provided id.
func (m *Manager) GetTransaction(ctx context.Context, id string) (*transaction.Record, error) {
	return m.getRecord(ctx, id)
}

// ApproveTransaction assigns a blockhash, signs and sends an unapproved
// transaction.
func (m *Manager) ApproveTransaction(ctx context.Context, id string) (err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "ApproveTransaction")
	tracer.AddAttribute("id", id)
	defer func() {
		tracer.OnError(err)
		tracer.End()
	}()

	chainId, submitted, err := m.approve(ctx, id)
	if submitted {
		m.reconcileAfterSubmit(ctx, chainId)
	}
	return err
}

func (m *Manager) approve(ctx context.Context, id string) (string, bool, error) {
	unlock := m.locks.Lock(id)
	defer unlock()

	record, err := m.getRecord(ctx, id)
	if err != nil {
		return "", false, err
	}
	if record.Status != transaction.StatusUnapproved {
		return "", false, errors.Wrapf(ErrInvalidState, "status is %s", record.Status)
	}

	if err := m.assignBlockhash(ctx, record); err != nil {
		return "", false, err
	}

	record.Status = transaction.StatusApproved
	if err := m.store.Put(ctx, record); err != nil {
		return "", false, internal(err, "error persisting transaction")
	}
	m.onStatusChange(ctx, record)

	signed, err := m.signTransaction(ctx, record, nil)
	if err != nil {
		m.markError(ctx, record, err)
		return "", false, internal(err, "error signing transaction")
	}

	return m.send(ctx, record, signed)
}

// assignBlockhash sets the blockhash and last valid block height. A message
// without a blockhash gets the latest one; a message with a caller supplied
// blockhash or nonce value gets a validity window from the current height.
func (m *Manager) assignBlockhash(ctx context.Context, record *transaction.Record) error {
	if record.Message.RecentBlockhash == "" {
		blockhash, lastValidBlockHeight, err := m.tracker.GetLatestBlockhash(ctx, record.ChainId, true)
		if err != nil {
			return newProviderError(err)
		}
		record.Message.SetRecentBlockhash(blockhash, lastValidBlockHeight)
		return nil
	}

	height, err := m.rpc.GetBlockHeight(ctx, record.ChainId)
	if err != nil {
		return newProviderError(err)
	}
	record.Message.SetRecentBlockhash(record.Message.RecentBlockhash, height+m.conf.validBlockHeightThreshold.Get(ctx))
	return nil
}

func (m *Manager) send(ctx context.Context, record *transaction.Record, signed []byte) (string, bool, error) {
	txHash, sendErr := m.rpc.SendTransaction(ctx, record.ChainId, signed, record.SendOptions)
	if err := m.onSendTransaction(ctx, record.Id, txHash, sendErr); err != nil {
		return record.ChainId, false, err
	}
	return record.ChainId, true, nil
}

// onSendTransaction records the outcome of a send. The caller holds the
// transaction lock.
func (m *Manager) onSendTransaction(ctx context.Context, id, txHash string, sendErr error) error {
	record, err := m.getRecord(ctx, id)
	if err != nil {
		return err
	}

	if sendErr != nil {
		m.markError(ctx, record, sendErr)
		return newProviderError(sendErr)
	}

	record.Status = transaction.StatusSubmitted
	record.SubmittedAt = time.Now()
	record.TxHash = txHash
	if err := m.store.Put(ctx, record); err != nil {
		return internal(err, "error persisting transaction")
	}
	m.onStatusChange(ctx, record)

	return nil
}

func (m *Manager) reconcileAfterSubmit(ctx context.Context, chainId string) {
	if _, err := m.UpdatePendingTransactions(ctx, &chainId); err != nil {
		m.log.WithError(err).WithField("chain", chainId).Warn("failure updating pending transactions")
	}
}

func (m *Manager) markError(ctx context.Context, record *transaction.Record, cause error) {
	record.Status = transaction.StatusError
	record.ErrorMessage = cause.Error()
	if err := m.store.Put(ctx, record); err != nil {
		m.log.WithError(err).WithField("id", record.Id).Warn("failure persisting transaction error")
		return
	}
	m.onStatusChange(ctx, record)
}

// RejectTransaction rejects an unapproved transaction.
func (m *Manager) RejectTransaction(ctx context.Context, id string) (err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "RejectTransaction")
	tracer.AddAttribute("id", id)
	defer func() {
		tracer.OnError(err)
		tracer.End()
	}()

	unlock := m.locks.Lock(id)
	defer unlock()

	record, err := m.getRecord(ctx, id)
	if err != nil {
		return err
	}
	if record.Status != transaction.StatusUnapproved {
		return errors.Wrapf(ErrInvalidState, "status is %s", record.Status)
	}

	record.Status = transaction.StatusRejected
	if err := m.store.Put(ctx, record); err != nil {
		return internal(err, "error persisting transaction")
	}
	m.onStatusChange(ctx, record)

	return nil
}

// RetryTransaction creates a new unapproved transaction from a failed or
// dropped one and returns the new id.
func (m *Manager) RetryTransaction(ctx context.Context, id string) (newId string, err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "RetryTransaction")
	tracer.AddAttribute("id", id)
	defer func() {
		tracer.OnError(err)
		tracer.End()
	}()

	unlock := m.locks.Lock(id)
	defer unlock()

	record, err := m.getRecord(ctx, id)
	if err != nil {
		return "", err
	}
	if !record.IsRetriable() {
		return "", ErrNotRetriable
	}

	retried := record.Clone()

	// A nonce value stays valid until the nonce advances. A blockhash does
	// not, and a dApp serialized message carries the stale one.
	if !retried.Message.UsesDurableNonce() {
		retried.Message.SetRecentBlockhash("", 0)
		retried.SignTxParam = nil
	}
	retried.Message.LastValidBlockHeight = 0
	retried.RawSignatures = nil

	retried.Id = uuid.New().String()
	retried.Status = transaction.StatusUnapproved
	retried.CreatedAt = time.Now()
	retried.SubmittedAt = time.Time{}
	retried.ConfirmedAt = time.Time{}
	retried.TxHash = ""
	retried.SignatureStatus = transaction.SignatureStatus{}
	retried.ErrorMessage = ""

	if err := m.store.Put(ctx, retried); err != nil {
		return "", internal(err, "error persisting transaction")
	}
	m.onStatusChange(ctx, retried)

	return retried.Id, nil
}

// GetEstimatedTxFee returns the fee in lamports for the transaction using a
// fresh blockhash. The stored transaction is not modified.
func (m *Manager) GetEstimatedTxFee(ctx context.Context, id string) (fee uint64, err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetEstimatedTxFee")
	tracer.AddAttribute("id", id)
	defer func() {
		tracer.OnError(err)
		tracer.End()
	}()

	record, err := m.getRecord(ctx, id)
	if err != nil {
		return 0, err
	}

	blockhash, lastValidBlockHeight, err := m.tracker.GetLatestBlockhash(ctx, record.ChainId, true)
	if err != nil {
		return 0, newProviderError(err)
	}

	message := record.Message.Clone()
	message.SetRecentBlockhash(blockhash, lastValidBlockHeight)

	serialized, err := message.Serialize()
	if err != nil {
		return 0, internal(err, "error serializing message")
	}

	fee, err = m.rpc.GetFeeForMessage(ctx, record.ChainId, base64.StdEncoding.EncodeToString(serialized))
	if err != nil {
		return 0, newProviderError(err)
	}
	return fee, nil
}

// GetTransactionMessageToSign assigns a blockhash to an unapproved
// transaction and returns the base64 encoded message an external signer must
// sign.
func (m *Manager) GetTransactionMessageToSign(ctx context.Context, id string) (encoded string, err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetTransactionMessageToSign")
	tracer.AddAttribute("id", id)
	defer func() {
		tracer.OnError(err)
		tracer.End()
	}()

	unlock := m.locks.Lock(id)
	defer unlock()

	record, err := m.getRecord(ctx, id)
	if err != nil {
		return "", err
	}
	if record.Status != transaction.StatusUnapproved {
		return "", errors.Wrapf(ErrInvalidState, "status is %s", record.Status)
	}

	if err := m.assignBlockhash(ctx, record); err != nil {
		return "", err
	}
	if err := m.store.Put(ctx, record); err != nil {
		return "", internal(err, "error persisting transaction")
	}

	tx, err := buildTransaction(record)
	if err != nil {
		return "", internal(err, "error building transaction")
	}
	return base64.StdEncoding.EncodeToString(tx.Message.Marshal()), nil
}

// ProcessHardwareSignature completes a transaction signed by an external
// signer over the message from GetTransactionMessageToSign, and sends it.
func (m *Manager) ProcessHardwareSignature(ctx context.Context, id string, signature []byte) (err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "ProcessHardwareSignature")
	tracer.AddAttribute("id", id)
	defer func() {
		tracer.OnError(err)
		tracer.End()
	}()

	chainId, submitted, err := m.processHardwareSignature(ctx, id, signature)
	if submitted {
		m.reconcileAfterSubmit(ctx, chainId)
	}
	return err
}

func (m *Manager) processHardwareSignature(ctx context.Context, id string, signature []byte) (string, bool, error) {
	unlock := m.locks.Lock(id)
	defer unlock()

	record, err := m.getRecord(ctx, id)
	if err != nil {
		return "", false, err
	}
	if record.Status != transaction.StatusUnapproved {
		return "", false, errors.Wrapf(ErrInvalidState, "status is %s", record.Status)
	}
	if record.Message.RecentBlockhash == "" {
		return "", false, errors.Wrap(ErrInvalidState, "message to sign was never requested")
	}
	if len(signature) != 64 {
		return "", false, invalidParams("invalid signature length %d", len(signature))
	}

	signed, err := m.signTransaction(ctx, record, signature)
	if err != nil {
		return "", false, invalidParams("invalid signature: %v", err)
	}

	record.RawSignatures = append([]byte(nil), signature...)
	record.Status = transaction.StatusApproved
	if err := m.store.Put(ctx, record); err != nil {
		return "", false, internal(err, "error persisting transaction")
	}
	m.onStatusChange(ctx, record)

	return m.send(ctx, record, signed)
}

func (m *Manager) getRecord(ctx context.Context, id string) (*transaction.Record, error) {
	record, err := m.store.Get(ctx, id)
	if err == transaction.ErrNotFound {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, internal(err, "error getting transaction")
	}
	return record, nil
}

func (m *Manager) onStatusChange(ctx context.Context, record *transaction.Record) {
	m.collectors.RecordStatusTransition(record.ChainId, record.Status.String())

	metrics.RecordEvent(ctx, statusChangeEventName, map[string]interface{}{
		"id":      record.Id,
		"chain":   record.ChainId,
		"status":  record.Status.String(),
		"tx_type": record.TxType.String(),
	})

	if m.publisher == nil {
		return
	}
	if err := m.publisher.Publish(ctx, events.NewEvent(record)); err != nil {
		m.log.WithError(err).WithFields(logrus.Fields{
			"id":     record.Id,
			"status": record.Status.String(),
		}).Warn("failure publishing status change")
	}
}

func containsKey(keys []ed25519.PublicKey, key ed25519.PublicKey) bool {
	for _, k := range keys {
		if bytes.Equal(k, key) {
			return true
		}
	}
	return false
}
