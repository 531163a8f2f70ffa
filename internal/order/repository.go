package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"garmentshop-be/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ListOptions struct {
	OwnerID *uuid.UUID
	Status  *Status
	Limit   int32
	Page    int32
}

// UpdateFields carries the free-standing mutable order fields; nil means
// leave untouched.
type UpdateFields struct {
	Status         *Status
	PaymentStatus  *PaymentStatus
	TrackingNumber *string
	DeliveryAgent  *string
}

type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	List(ctx context.Context, opts ListOptions) ([]*Order, error)
	Update(ctx context.Context, id uuid.UUID, fields UpdateFields) error
	// ClaimCancel flips status to cancelled only while cancellation is still
	// legal, so two concurrent cancels cannot both claim the stock release.
	ClaimCancel(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, o *Order) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "CreateOrder"),
		zap.String("order_id", o.ID.String()),
		zap.Int("item_count", len(o.Items)),
	)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("failed to begin transaction", zap.Error(err))
		return err
	}

	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Error("failed to rollback transaction", zap.Error(rbErr))
			}
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, user_id, status, payment_status, payment_method,
			total_amount, ship_name, ship_phone, ship_address
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		o.ID,
		o.UserID,
		o.Status,
		o.PaymentStatus,
		o.PaymentMethod,
		o.TotalAmount,
		o.ShippingAddress.Name,
		o.ShippingAddress.Phone,
		o.ShippingAddress.Address,
	)
	if err != nil {
		log.Error("failed to insert order", zap.Error(err))
		return err
	}

	for i, item := range o.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, line_no, quantity, unit_price)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, item.ID, o.ID, item.ProductID, i, item.Quantity, item.UnitPrice)
		if err != nil {
			log.Error("failed to insert order item",
				zap.Int("item_index", i),
				zap.String("product_id", item.ProductID.String()),
				zap.Error(err),
			)
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		log.Error("failed to commit order transaction", zap.Error(err))
		return err
	}

	committed = true
	log.Info("order committed")

	return nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	var o Order
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, status, payment_status, payment_method, total_amount,
		       ship_name, ship_phone, ship_address,
		       tracking_number, delivery_agent, created_at, updated_at
		FROM orders
		WHERE id = $1
	`, id).Scan(
		&o.ID, &o.UserID, &o.Status, &o.PaymentStatus, &o.PaymentMethod, &o.TotalAmount,
		&o.ShippingAddress.Name, &o.ShippingAddress.Phone, &o.ShippingAddress.Address,
		&o.TrackingNumber, &o.DeliveryAgent, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, quantity, unit_price
		FROM order_items
		WHERE order_id = $1
		ORDER BY line_no
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item OrderLine
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, item)
	}

	return &o, rows.Err()
}

func (r *repository) List(ctx context.Context, opts ListOptions) ([]*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "ListOrders"),
	)

	query := `
		SELECT id, user_id, status, payment_status, payment_method, total_amount,
		       ship_name, ship_phone, ship_address,
		       tracking_number, delivery_agent, created_at, updated_at
		FROM orders
		WHERE 1=1
	`

	args := []any{}
	argIndex := 1

	if opts.OwnerID != nil {
		query += fmt.Sprintf(" AND user_id = $%d", argIndex)
		args = append(args, *opts.OwnerID)
		argIndex++
	}

	if opts.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, *opts.Status)
		argIndex++
	}

	query += " ORDER BY created_at DESC"
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, opts.Limit, (opts.Page-1)*opts.Limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query orders", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var orders []*Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(
			&o.ID, &o.UserID, &o.Status, &o.PaymentStatus, &o.PaymentMethod, &o.TotalAmount,
			&o.ShippingAddress.Name, &o.ShippingAddress.Phone, &o.ShippingAddress.Address,
			&o.TrackingNumber, &o.DeliveryAgent, &o.CreatedAt, &o.UpdatedAt,
		); err != nil {
			log.Error("failed to scan order row", zap.Error(err))
			return nil, err
		}
		orders = append(orders, &o)
	}

	return orders, rows.Err()
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, fields UpdateFields) error {
	query := "UPDATE orders SET updated_at = NOW()"
	args := []any{}
	argIndex := 1

	if fields.Status != nil {
		query += fmt.Sprintf(", status = $%d", argIndex)
		args = append(args, *fields.Status)
		argIndex++
	}
	if fields.PaymentStatus != nil {
		query += fmt.Sprintf(", payment_status = $%d", argIndex)
		args = append(args, *fields.PaymentStatus)
		argIndex++
	}
	if fields.TrackingNumber != nil {
		query += fmt.Sprintf(", tracking_number = $%d", argIndex)
		args = append(args, *fields.TrackingNumber)
		argIndex++
	}
	if fields.DeliveryAgent != nil {
		query += fmt.Sprintf(", delivery_agent = $%d", argIndex)
		args = append(args, *fields.DeliveryAgent)
		argIndex++
	}

	query += fmt.Sprintf(" WHERE id = $%d", argIndex)
	args = append(args, id)

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *repository) ClaimCancel(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status NOT IN ($3, $4, $5)
	`, id, StatusCancelled, StatusShipped, StatusDelivered, StatusCancelled)
	if err != nil {
		return err
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrInvalidTransition
	}
	return nil
}
