package txmanager

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/wallet-server/pkg/metrics"
	"github.com/code-payments/wallet-server/pkg/retry"
	"github.com/code-payments/wallet-server/pkg/wallet/async"
	"github.com/code-payments/wallet-server/pkg/wallet/blocktracker"
)

var (
	ErrSubscriptionClosed = errors.New("block tracker subscription closed")
)

type reconciliationService struct {
	log     *logrus.Entry
	manager *Manager
}

// NewReconciliationService returns a service that reconciles a chain's
// submitted transactions whenever the block tracker reports a new blockhash
// for it, and sweeps every chain on the provided interval.
func NewReconciliationService(manager *Manager) async.Service {
	return &reconciliationService{
		log:     logrus.StandardLogger().WithField("service", "txmanager_reconciliation"),
		manager: manager,
	}
}

func (s *reconciliationService) Start(ctx context.Context, interval time.Duration) error {
	updates, unsubscribe := s.manager.tracker.Subscribe()
	defer unsubscribe()

	go func() {
		err := s.sweepWorker(ctx, interval)
		if err != nil && err != context.Canceled {
			s.log.WithError(err).Warn("reconciliation sweep loop terminated unexpectedly")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return ErrSubscriptionClosed
			}
			s.handleUpdate(ctx, update)
		}
	}
}

func (s *reconciliationService) handleUpdate(serviceCtx context.Context, update blocktracker.Update) {
	tracedCtx, end := metrics.StartTransaction(serviceCtx, "async__txmanager_service__handle_block_update")

	chainId := update.ChainId
	_, err := s.manager.UpdatePendingTransactions(tracedCtx, &chainId)
	end(err)

	if err != nil {
		s.log.WithError(err).WithField("chain", chainId).Warn("failure updating pending transactions")
	}
}

func (s *reconciliationService) sweepWorker(serviceCtx context.Context, interval time.Duration) error {
	delay := time.Duration(0)

	return retry.Loop(
		func() (err error) {
			select {
			case <-serviceCtx.Done():
				return serviceCtx.Err()
			case <-time.After(delay):
			}
			delay = interval

			tracedCtx, end := metrics.StartTransaction(serviceCtx, "async__txmanager_service__sweep")
			defer func() {
				end(err)
			}()

			pending, err := s.manager.UpdatePendingTransactions(tracedCtx, nil)
			if err != nil {
				s.log.WithError(err).Warn("failure sweeping pending transactions")
				return err
			}

			s.log.WithField("pending_chains", pending).Trace("swept pending transactions")
			return nil
		},
		retry.NonRetriableErrors(context.Canceled),
		retry.Context(serviceCtx),
	)
}
