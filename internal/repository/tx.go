package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/order"
)

var _ order.TxManager = (*TxManager)(nil)

// TxManager implements order.TxManager on a pgx pool. The callback receives
// repositories bound to one transaction; everything they write commits or
// rolls back as a unit.
type TxManager struct {
	pool *pgxpool.Pool
}

// NewTxManager creates a TxManager using the given pool.
func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool}
}

// WithinTx begins a transaction, runs fn with tx-bound repositories, and
// commits. Any error from fn rolls the transaction back.
func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context, r order.TxRepos) error) (txErr error) {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}

	defer func() {
		if txErr != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				txErr = errors.Wrapf(txErr, "rollback failed: %v", rbErr)
			}
		}
	}()

	repos := order.TxRepos{
		Orders:   &OrderRepository{db: tx},
		Products: &ProductRepository{db: tx},
		Coupons:  &CouponRepository{db: tx},
		Carts:    &CartRepository{db: tx},
	}

	if err := fn(ctx, repos); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit transaction")
	}
	return nil
}
