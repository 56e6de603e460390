package postgres

import (
	"database/sql"
	"os"
	"testing"

	"github.com/ory/dockertest/v3"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/wallet-server/pkg/wallet/data/transaction"
	"github.com/code-payments/wallet-server/pkg/wallet/data/transaction/tests"

	postgrestest "github.com/code-payments/wallet-server/pkg/database/postgres/test"
)

var (
	testStore transaction.Store
	teardown  func()
)

const (
	// Used for testing ONLY, the table and migrations are external to this repository
	tableCreate = `
	CREATE TABLE wallet__core_transaction (
		id text NOT NULL PRIMARY KEY,
		chain_id text NOT NULL,
		from_address text NOT NULL,
		origin text NOT NULL,
		status int NOT NULL,
		tx_type int NOT NULL,
		recent_blockhash text NOT NULL,
		last_valid_block_height int8 NOT NULL,
		fee_payer text NOT NULL,
		instructions bytea NOT NULL,
		send_options bytea,
		sign_tx_param bytea,
		raw_signatures bytea,
		tx_hash text NOT NULL,
		signature_slot int8 NOT NULL,
		signature_confirmations int8 NOT NULL,
		signature_err text NOT NULL,
		confirmation_status text NOT NULL,
		error_message text NOT NULL,
		created_at timestamp with time zone NOT NULL,
		submitted_at timestamp with time zone,
		confirmed_at timestamp with time zone
	);

	CREATE INDEX wallet__core_transaction_status ON wallet__core_transaction (status, chain_id);
	`

	// Used for testing ONLY, the table and migrations are external to this repository
	tableDestroy = `
		DROP TABLE wallet__core_transaction;
	`
)

func TestMain(m *testing.M) {
	log := logrus.StandardLogger()

	pool, err := dockertest.NewPool("")
	if err != nil {
		log.WithError(err).Error("error creating docker pool")
		os.Exit(1)
	}

	container, err := postgrestest.Start(pool)
	if err != nil {
		log.WithError(err).Error("error starting postgres container")
		os.Exit(1)
	}

	if _, err := container.DB.Exec(tableCreate); err != nil {
		log.WithError(err).Error("error creating test tables")
		container.Close()
		os.Exit(1)
	}

	testStore = New(container.DB)
	teardown = func() {
		if pc := recover(); pc != nil {
			container.Close()
			panic(pc)
		}

		if err := resetTestTables(container.DB); err != nil {
			log.WithError(err).Error("error resetting test tables")
			container.Close()
			os.Exit(1)
		}
	}

	code := m.Run()
	container.Close()
	os.Exit(code)
}

func TestTransactionPostgresStore(t *testing.T) {
	tests.RunTests(t, testStore, teardown)
}

func resetTestTables(db *sql.DB) error {
	_, err := db.Exec(tableDestroy + tableCreate)
	return err
}
