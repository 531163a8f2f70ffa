package inventory

import (
	"context"
	"database/sql"
	"errors"

	"garmentshop-be/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrProductNotFound = errors.New("product not found")

// Ledger owns the stock counters. TryReserve is the only permitted way to
// take stock for an order line; the check-and-decrement is a single atomic
// step, so two concurrent reservations for the last unit cannot both succeed.
type Ledger interface {
	TryReserve(ctx context.Context, productID uuid.UUID, quantity int) (bool, error)
	Release(ctx context.Context, productID uuid.UUID, quantity int) error
	Stock(ctx context.Context, productID uuid.UUID) (int, error)
}

type postgresLedger struct {
	db *sql.DB
}

func NewPostgresLedger(db *sql.DB) Ledger {
	return &postgresLedger{db: db}
}

func (l *postgresLedger) TryReserve(ctx context.Context, productID uuid.UUID, quantity int) (bool, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "ledger"),
		zap.String("product_id", productID.String()),
		zap.Int("quantity", quantity),
	)

	// The conditional update is the atomic check-and-decrement.
	res, err := l.db.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - $2, updated_at = NOW()
		WHERE id = $1 AND stock >= $2
	`, productID, quantity)
	if err != nil {
		log.Error("failed to reserve stock", zap.Error(err))
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 1 {
		log.Debug("stock reserved")
		return true, nil
	}

	// Either the product is missing or stock is insufficient.
	var exists bool
	err = l.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, productID,
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, ErrProductNotFound
	}

	log.Debug("insufficient stock")
	return false, nil
}

func (l *postgresLedger) Release(ctx context.Context, productID uuid.UUID, quantity int) error {
	res, err := l.db.ExecContext(ctx, `
		UPDATE products
		SET stock = stock + $2, updated_at = NOW()
		WHERE id = $1
	`, productID, quantity)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to release stock",
			zap.String("product_id", productID.String()),
			zap.Int("quantity", quantity),
			zap.Error(err),
		)
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrProductNotFound
	}

	return nil
}

func (l *postgresLedger) Stock(ctx context.Context, productID uuid.UUID) (int, error) {
	var stock int
	err := l.db.QueryRowContext(ctx,
		`SELECT stock FROM products WHERE id = $1`, productID,
	).Scan(&stock)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrProductNotFound
	}
	if err != nil {
		return 0, err
	}
	return stock, nil
}
