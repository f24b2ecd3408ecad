package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresStore runs each unit of work in a database transaction. Entity and
// order locks are row locks held until Commit or Rollback.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type pgUnitOfWork struct {
	*catalogRepository
	*ledgerRepository
	*orderRepository
	tx *sql.Tx
}

func (s *PostgresStore) Begin(ctx context.Context) (UnitOfWork, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: starting transaction: %v", ErrDatabaseError, err)
	}
	return &pgUnitOfWork{
		catalogRepository: &catalogRepository{executor: tx},
		ledgerRepository:  &ledgerRepository{executor: tx},
		orderRepository:   &orderRepository{executor: tx},
		tx:                tx,
	}, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (u *pgUnitOfWork) Commit() error {
	if err := u.tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing transaction: %v", ErrDatabaseError, err)
	}
	return nil
}

func (u *pgUnitOfWork) Rollback() error {
	if err := u.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("%w: rolling back transaction: %v", ErrDatabaseError, err)
	}
	return nil
}
