package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	pg "github.com/code-payments/wallet-server/pkg/database/postgres"
	"github.com/code-payments/wallet-server/pkg/wallet/data/transaction"
)

type store struct {
	db *sqlx.DB
}

func New(db *sql.DB) transaction.Store {
	return &store{
		db: sqlx.NewDb(db, "pgx"),
	}
}

func (s *store) Put(ctx context.Context, record *transaction.Record) error {
	m, err := toModel(record)
	if err != nil {
		return err
	}

	return pg.ExecuteRetryable(ctx, func() error {
		return pg.ExecuteInTx(ctx, s.db, sql.LevelDefault, func(tx *sqlx.Tx) error {
			return m.dbPut(ctx, tx)
		})
	})
}

func (s *store) Get(ctx context.Context, id string) (*transaction.Record, error) {
	m, err := dbGet(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	return fromModel(m)
}

func (s *store) GetAllByStatus(ctx context.Context, chainId *string, status transaction.Status) ([]*transaction.Record, error) {
	models, err := dbGetAllByStatus(ctx, s.db, chainId, status)
	if err != nil {
		return nil, err
	}

	res := make([]*transaction.Record, 0, len(models))
	for _, m := range models {
		record, err := fromModel(m)
		if err != nil {
			return nil, err
		}
		res = append(res, record)
	}
	return res, nil
}
