package txmanager

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/code-payments/wallet-server/pkg/metrics"
	"github.com/code-payments/wallet-server/pkg/pointer"
	"github.com/code-payments/wallet-server/pkg/solana"
	"github.com/code-payments/wallet-server/pkg/wallet/chain"
	"github.com/code-payments/wallet-server/pkg/wallet/data/transaction"
)

const pendingMetricPrefix = "Custom/Wallet/PendingTransactions/"

// UpdatePendingTransactions reconciles submitted transactions against the
// chain. With a nil chain id every chain holding submitted transactions is
// reconciled. It returns the chains that still have submitted transactions
// and restricts block tracking to them.
func (m *Manager) UpdatePendingTransactions(ctx context.Context, chainId *string) (pending []string, err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "UpdatePendingTransactions")
	defer func() {
		tracer.OnError(err)
		tracer.End()
	}()

	var filter *string
	if chainId != nil {
		normalized := chain.Normalize(*chainId)
		filter = &normalized
		tracer.AddAttribute("chain", normalized)
	}

	records, err := m.store.GetAllByStatus(ctx, filter, transaction.StatusSubmitted)
	if err != nil {
		return nil, internal(err, "error getting submitted transactions")
	}

	byChain := make(map[string][]*transaction.Record)
	if filter != nil {
		byChain[*filter] = nil
	}
	for _, record := range records {
		byChain[record.ChainId] = append(byChain[record.ChainId], record)
	}

	var mu sync.Mutex
	remainingByChain := make(map[string]int)

	var g errgroup.Group
	for chainId, chainRecords := range byChain {
		chainId, chainRecords := chainId, chainRecords

		g.Go(func() error {
			remaining, err := m.reconcileChain(ctx, chainId, chainRecords)
			metrics.RecordCount(ctx, pendingMetricPrefix+chainId, uint64(remaining))

			mu.Lock()
			remainingByChain[chainId] = remaining
			mu.Unlock()

			return err
		})
	}
	err = g.Wait()

	pending = m.updatePendingChains(filter == nil, remainingByChain)
	m.tracker.Track(pending)

	return pending, err
}

func (m *Manager) updatePendingChains(replace bool, remainingByChain map[string]int) []string {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()

	if replace {
		for chainId := range m.pendingChains {
			if _, ok := remainingByChain[chainId]; !ok {
				m.collectors.SetPendingTransactions(chainId, 0)
			}
		}
		m.pendingChains = make(map[string]struct{})
	}

	for chainId, remaining := range remainingByChain {
		m.collectors.SetPendingTransactions(chainId, remaining)

		if remaining > 0 {
			m.pendingChains[chainId] = struct{}{}
		} else {
			delete(m.pendingChains, chainId)
		}
	}

	pending := make([]string, 0, len(m.pendingChains))
	for chainId := range m.pendingChains {
		pending = append(pending, chainId)
	}
	sort.Strings(pending)
	return pending
}

// reconcileChain performs one block height and one signature status round
// trip for the chain and returns how many transactions remain submitted.
func (m *Manager) reconcileChain(ctx context.Context, chainId string, records []*transaction.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	log := m.log.WithFields(logrus.Fields{
		"method": "reconcileChain",
		"chain":  chainId,
	})

	height, err := m.rpc.GetBlockHeight(ctx, chainId)
	if err != nil {
		return len(records), newProviderError(err)
	}

	sigs := make([]string, len(records))
	for i, record := range records {
		sigs[i] = record.TxHash
	}

	statuses, err := m.rpc.GetSignatureStatuses(ctx, chainId, sigs)
	if err != nil {
		return len(records), newProviderError(err)
	}
	if len(statuses) != len(records) {
		log.Warnf("signature status count mismatch: %d != %d", len(statuses), len(records))
		return len(records), nil
	}

	var remaining int
	for i, record := range records {
		stillPending, err := m.applySignatureStatus(ctx, record.Id, height, statuses[i])
		if err != nil {
			log.WithError(err).WithField("id", record.Id).Warn("failure applying signature status")
			remaining++
			continue
		}

		if stillPending {
			remaining++
		}
	}

	return remaining, nil
}

func (m *Manager) applySignatureStatus(ctx context.Context, id string, blockHeight uint64, status *solana.SignatureStatus) (bool, error) {
	unlock := m.locks.Lock(id)
	defer unlock()

	record, err := m.getRecord(ctx, id)
	if err != nil {
		return false, err
	}
	if record.Status != transaction.StatusSubmitted {
		return false, nil
	}

	if status == nil {
		lastValidBlockHeight := record.Message.LastValidBlockHeight
		if lastValidBlockHeight == 0 || lastValidBlockHeight >= blockHeight {
			return true, nil
		}

		record.Status = transaction.StatusDropped
		return false, m.persistStatusChange(ctx, record)
	}

	if status.ErrorResult != nil && status.ErrorResult.Error() != "" {
		record.SignatureStatus = toSignatureStatus(status)
		record.Status = transaction.StatusError
		record.ErrorMessage = status.ErrorResult.Error()
		return false, m.persistStatusChange(ctx, record)
	}

	if status.ConfirmationStatus == "" {
		return true, nil
	}

	record.SignatureStatus = toSignatureStatus(status)
	if status.ConfirmationStatus != solana.ConfirmationStatusFinalized {
		if err := m.store.Put(ctx, record); err != nil {
			return true, internal(err, "error persisting transaction")
		}
		return true, nil
	}

	record.Status = transaction.StatusConfirmed
	record.ConfirmedAt = time.Now()
	return false, m.persistStatusChange(ctx, record)
}

func (m *Manager) persistStatusChange(ctx context.Context, record *transaction.Record) error {
	if err := m.store.Put(ctx, record); err != nil {
		return internal(err, "error persisting transaction")
	}
	m.onStatusChange(ctx, record)
	return nil
}

func toSignatureStatus(status *solana.SignatureStatus) transaction.SignatureStatus {
	converted := transaction.SignatureStatus{
		Slot:               status.Slot,
		ConfirmationStatus: status.ConfirmationStatus,
	}
	if confirmations := pointer.ValueOrDefault(status.Confirmations, 0); confirmations > 0 {
		converted.Confirmations = uint64(confirmations)
	}
	if status.ErrorResult != nil {
		converted.Err = status.ErrorResult.Error()
		if encoded, err := status.ErrorResult.JSONString(); err == nil {
			converted.Err = encoded
		}
	}
	return converted
}
