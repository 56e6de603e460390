package main

import (
	"bufio"
	"bytes"
	"context"
	"database/sql"
	"strings"
	"sync"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/wallet-server/pkg/app"
	pg "github.com/code-payments/wallet-server/pkg/database/postgres"
	"github.com/code-payments/wallet-server/pkg/metrics"
	"github.com/code-payments/wallet-server/pkg/nft/simplehash"
	"github.com/code-payments/wallet-server/pkg/wallet/blocklist"
	"github.com/code-payments/wallet-server/pkg/wallet/blocktracker"
	"github.com/code-payments/wallet-server/pkg/wallet/data/transaction"
	memory_transaction_store "github.com/code-payments/wallet-server/pkg/wallet/data/transaction/memory"
	postgres_transaction_store "github.com/code-payments/wallet-server/pkg/wallet/data/transaction/postgres"
	"github.com/code-payments/wallet-server/pkg/wallet/events"
	"github.com/code-payments/wallet-server/pkg/wallet/keyring"
	"github.com/code-payments/wallet-server/pkg/wallet/rpc"
	"github.com/code-payments/wallet-server/pkg/wallet/txmanager"
)

type walletApp struct {
	log      *logrus.Entry
	registry prometheus.Registerer

	ctx    context.Context
	cancel context.CancelFunc

	db        *sql.DB
	tracker   *blocktracker.Tracker
	publisher events.Publisher
	manager   *txmanager.Manager

	shutdownCh chan struct{}
	stopOnce   sync.Once
	serviceWg  sync.WaitGroup
}

func newWalletApp(registry prometheus.Registerer) *walletApp {
	return &walletApp{
		log:        logrus.StandardLogger().WithField("type", "walletd"),
		registry:   registry,
		shutdownCh: make(chan struct{}),
	}
}

func (a *walletApp) Init(rawConfig app.Config, metricsProvider *newrelic.Application) error {
	config, err := decodeWalletConfig(rawConfig)
	if err != nil {
		return err
	}

	a.ctx, a.cancel = context.WithCancel(context.Background())
	if metricsProvider != nil {
		a.ctx = metrics.WithNewRelic(a.ctx, metricsProvider)
	}

	if err := a.init(config); err != nil {
		a.Stop()
		return err
	}
	return nil
}

func (a *walletApp) init(config walletConfig) error {
	collectors := metrics.NewCollectors(a.registry)

	router, err := rpc.NewRouterFromEndpoints(config.RpcEndpoints, collectors)
	if err != nil {
		return errors.Wrap(err, "error creating rpc router")
	}

	store, err := a.openStore(config.Postgres)
	if err != nil {
		return err
	}

	signer, err := loadKeyring(config.KeyringFile)
	if err != nil {
		return err
	}
	a.log.WithField("accounts", signer.Accounts()).Info("keyring loaded")

	restricted, err := loadBlocklist(config.BlocklistFile)
	if err != nil {
		return err
	}

	a.publisher, err = a.openPublisher(config, collectors)
	if err != nil {
		return err
	}

	a.tracker = blocktracker.New(router, blocktracker.WithEnvConfigs())
	a.tracker.WithNewRelic(a.ctx)

	nftClient := simplehash.NewClient(simplehash.WithEnvConfigs(), simplehash.WithCollectors(collectors))

	a.manager = txmanager.New(
		store,
		router,
		a.tracker,
		signer,
		nftClient,
		restricted,
		a.publisher,
		collectors,
		txmanager.WithEnvConfigs(),
	)

	service := txmanager.NewReconciliationService(a.manager)

	a.serviceWg.Add(1)
	go func() {
		defer a.serviceWg.Done()

		err := service.Start(a.ctx, config.ReconciliationInterval)
		if err != nil && err != context.Canceled {
			a.log.WithError(err).Warn("reconciliation service terminated unexpectedly")
			close(a.shutdownCh)
		}
	}()

	a.log.WithField("chains", router.Chains()).Info("wallet initialized")
	return nil
}

func (a *walletApp) openStore(config postgresConfig) (transaction.Store, error) {
	if config.Host == "" {
		a.log.Warn("no postgres host configured, using the in memory transaction store")
		return memory_transaction_store.New(), nil
	}

	db, err := pg.Open(a.ctx, pg.Config{
		User:               config.User,
		Password:           config.Password,
		Host:               config.Host,
		Port:               config.Port,
		DbName:             config.DbName,
		MaxOpenConnections: config.MaxOpenConnections,
		MaxIdleConnections: config.MaxIdleConnections,
		UseAwsIam:          config.UseAwsIam,
	})
	if err != nil {
		return nil, errors.Wrap(err, "error opening postgres")
	}

	a.db = db
	return postgres_transaction_store.New(db), nil
}

func (a *walletApp) openPublisher(config walletConfig, collectors *metrics.Collectors) (events.Publisher, error) {
	if config.NatsUrl == "" {
		a.log.Warn("no nats url configured, transaction events are not published")
		return nil, nil
	}

	js, err := events.NewJetStreamPublisher(a.ctx, config.NatsUrl)
	if err != nil {
		return nil, err
	}
	return events.NewAsyncPublisher(js, collectors, config.EventWorkers, config.EventQueueSize), nil
}

func loadKeyring(fileURL string) (*keyring.Memory, error) {
	if fileURL == "" {
		return keyring.NewMemory(), nil
	}

	data, err := app.LoadFile(fileURL)
	if err != nil {
		return nil, errors.Wrap(err, "error loading keyring file")
	}

	var keys []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		keys = append(keys, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "error reading keyring file")
	}

	return keyring.NewMemoryFromBase58(keys...)
}

func loadBlocklist(fileURL string) (*blocklist.Blocklist, error) {
	if fileURL == "" {
		return blocklist.New(), nil
	}

	data, err := app.LoadFile(fileURL)
	if err != nil {
		return nil, errors.Wrap(err, "error loading blocklist file")
	}
	return blocklist.Load(bytes.NewReader(data))
}

func (a *walletApp) ShutdownChan() <-chan struct{} {
	return a.shutdownCh
}

func (a *walletApp) Stop() {
	a.stopOnce.Do(func() {
		if a.cancel != nil {
			a.cancel()
		}
		a.serviceWg.Wait()

		if a.tracker != nil {
			a.tracker.Stop()
		}
		if a.publisher != nil {
			if err := a.publisher.Close(); err != nil {
				a.log.WithError(err).Warn("failure closing event publisher")
			}
		}
		if a.db != nil {
			if err := a.db.Close(); err != nil {
				a.log.WithError(err).Warn("failure closing database")
			}
		}
	})
}
