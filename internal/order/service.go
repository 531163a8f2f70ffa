package order

import (
	"context"
	"errors"
	"fmt"

	"garmentshop-be/internal/cache"
	"garmentshop-be/internal/inventory"
	"garmentshop-be/internal/logger"
	"garmentshop-be/internal/metrics"
	"garmentshop-be/internal/notification"
	"garmentshop-be/internal/product"
	"garmentshop-be/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	productPrefix = "/api/products"
	orderPrefix   = "/api/orders"
)

type CreateOrderLine struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

type CreateOrderInput struct {
	Items           []CreateOrderLine `json:"items"`
	ShippingAddress ShippingAddress   `json:"shipping_address"`
	PaymentMethod   string            `json:"payment_method"`
}

type UpdateStatusInput struct {
	Status         *Status        `json:"status,omitempty"`
	PaymentStatus  *PaymentStatus `json:"payment_status,omitempty"`
	TrackingNumber *string        `json:"tracking_number,omitempty"`
	DeliveryAgent  *string        `json:"delivery_agent,omitempty"`
}

// Notifier is the side channel for user-facing notifications. Emit must not
// block and must never surface a failure to the order path.
type Notifier interface {
	Emit(userID uuid.UUID, typ notification.Type, title, message, link string)
}

type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*Order, error)
	GetByID(ctx context.Context, orderID uuid.UUID) (*Order, error)
	List(ctx context.Context, status *Status, limit, page int32) ([]*Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, input UpdateStatusInput) (*Order, error)
	Cancel(ctx context.Context, orderID uuid.UUID) (*Order, error)
}

type service struct {
	repo      Repository
	products  product.Repository
	ledger    inventory.Ledger
	notifier  Notifier
	responses cache.Store
	metrics   *metrics.OrderMetrics
}

func NewService(
	repo Repository,
	products product.Repository,
	ledger inventory.Ledger,
	notifier Notifier,
	responses cache.Store,
	m *metrics.OrderMetrics,
) Service {
	if m == nil {
		m = &metrics.OrderMetrics{}
	}
	return &service{
		repo:      repo,
		products:  products,
		ledger:    ledger,
		notifier:  notifier,
		responses: responses,
		metrics:   m,
	}
}

// reservedLine tracks a successful reservation so it can be rolled back if a
// later line fails.
type reservedLine struct {
	productID uuid.UUID
	quantity  int
}

func (s *service) Create(ctx context.Context, input CreateOrderInput) (*Order, error) {
	ownerID, ok := utils.GetUserIDFromContext(ctx)
	if !ok {
		return nil, ErrNotAuthorized
	}

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "CreateOrder"),
		zap.String("owner_id", ownerID.String()),
		zap.Int("item_count", len(input.Items)),
	)

	// 1. Validate the request shape before touching inventory.
	if len(input.Items) == 0 {
		return nil, ErrEmptyOrder
	}
	for _, line := range input.Items {
		if line.Quantity < 1 {
			return nil, ErrInvalidQuantity
		}
	}
	if !input.ShippingAddress.Valid() {
		return nil, ErrInvalidShippingAddress
	}

	// 2. Reserve stock line by line; roll back everything on first failure.
	var reserved []reservedLine
	rollback := func() {
		for i := len(reserved) - 1; i >= 0; i-- {
			rl := reserved[i]
			if err := s.ledger.Release(ctx, rl.productID, rl.quantity); err != nil {
				log.Error("failed to release reservation during rollback",
					zap.String("product_id", rl.productID.String()),
					zap.Int("quantity", rl.quantity),
					zap.Error(err),
				)
			}
		}
	}

	items := make([]OrderLine, 0, len(input.Items))
	var total int64

	for _, line := range input.Items {
		p, err := s.products.GetByID(ctx, line.ProductID)
		if err != nil {
			rollback()
			if errors.Is(err, product.ErrNotFound) {
				s.metrics.Rejected.Inc()
				return nil, fmt.Errorf("%w: %s", ErrProductNotFound, line.ProductID)
			}
			return nil, err
		}

		ok, err := s.ledger.TryReserve(ctx, line.ProductID, line.Quantity)
		if err != nil {
			rollback()
			if errors.Is(err, inventory.ErrProductNotFound) {
				s.metrics.Rejected.Inc()
				return nil, fmt.Errorf("%w: %s", ErrProductNotFound, line.ProductID)
			}
			return nil, err
		}
		if !ok {
			rollback()
			s.metrics.Rejected.Inc()
			log.Info("insufficient stock",
				zap.String("product_id", line.ProductID.String()),
				zap.Int("requested", line.Quantity),
				zap.Int("available", p.Stock),
			)
			return nil, &InsufficientStockError{
				ProductID: line.ProductID,
				Requested: line.Quantity,
				Available: p.Stock,
			}
		}

		reserved = append(reserved, reservedLine{line.ProductID, line.Quantity})
		items = append(items, OrderLine{
			ID:        uuid.New(),
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: p.Price,
		})
		total += p.Price * int64(line.Quantity)
	}

	// 3. Commit the order; reservations are already durable.
	o := &Order{
		ID:              uuid.New(),
		UserID:          ownerID,
		Items:           items,
		TotalAmount:     total,
		Status:          StatusPending,
		PaymentStatus:   PaymentPending,
		PaymentMethod:   input.PaymentMethod,
		ShippingAddress: input.ShippingAddress,
	}
	for i := range o.Items {
		o.Items[i].OrderID = o.ID
	}

	if err := s.repo.Create(ctx, o); err != nil {
		rollback()
		return nil, err
	}

	// 4. Stock changed; drop cached catalog reads.
	s.invalidate(ctx, productPrefix, orderPrefix)

	s.metrics.Created.Inc()
	log.Info("order created",
		zap.String("order_id", o.ID.String()),
		zap.Int64("total_amount", o.TotalAmount),
	)

	// 5. Notify after the commit; never on its failure path.
	s.notifier.Emit(ownerID, notification.TypeOrderCreated,
		"Order placed",
		fmt.Sprintf("Your order %s has been placed and is pending.", o.ID),
		"/orders/"+o.ID.String(),
	)

	return o, nil
}

func (s *service) GetByID(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	userID, ok := utils.GetUserIDFromContext(ctx)
	if !ok {
		return nil, ErrNotAuthorized
	}
	if o.UserID != userID && !utils.IsAdmin(ctx) {
		return nil, ErrNotAuthorized
	}

	return o, nil
}

func (s *service) List(ctx context.Context, status *Status, limit, page int32) ([]*Order, error) {
	userID, ok := utils.GetUserIDFromContext(ctx)
	if !ok {
		return nil, ErrNotAuthorized
	}

	if limit <= 0 {
		limit = 20
	} else if limit > 100 {
		limit = 100
	}
	if page <= 0 {
		page = 1
	}

	opts := ListOptions{Status: status, Limit: limit, Page: page}
	if !utils.IsAdmin(ctx) {
		opts.OwnerID = &userID
	}

	return s.repo.List(ctx, opts)
}

func (s *service) UpdateStatus(ctx context.Context, orderID uuid.UUID, input UpdateStatusInput) (*Order, error) {
	if !utils.IsAdmin(ctx) {
		return nil, ErrNotAuthorized
	}

	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	statusChanged := false
	if input.Status != nil && *input.Status != o.Status {
		if !ValidStatus(*input.Status) || !CanTransition(o.Status, *input.Status) {
			return nil, ErrInvalidTransition
		}
		statusChanged = true
	}
	if input.PaymentStatus != nil && !ValidPaymentStatus(*input.PaymentStatus) {
		return nil, ErrInvalidTransition
	}

	fields := UpdateFields{
		PaymentStatus:  input.PaymentStatus,
		TrackingNumber: input.TrackingNumber,
		DeliveryAgent:  input.DeliveryAgent,
	}
	if statusChanged {
		fields.Status = input.Status
	}

	if err := s.repo.Update(ctx, orderID, fields); err != nil {
		return nil, err
	}

	s.invalidate(ctx, orderPrefix)

	if statusChanged {
		logger.FromCtx(ctx).Info("order status updated",
			zap.String("order_id", orderID.String()),
			zap.String("from", string(o.Status)),
			zap.String("to", string(*input.Status)),
		)

		s.notifier.Emit(o.UserID, notification.TypeOrderStatus,
			"Order "+string(*input.Status),
			fmt.Sprintf("Your order %s is now %s.", o.ID, *input.Status),
			"/orders/"+o.ID.String(),
		)
	}

	return s.repo.GetByID(ctx, orderID)
}

func (s *service) Cancel(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	userID, ok := utils.GetUserIDFromContext(ctx)
	if !ok {
		return nil, ErrNotAuthorized
	}

	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if o.UserID != userID && !utils.IsAdmin(ctx) {
		return nil, ErrNotAuthorized
	}
	if !CanCancel(o.Status) {
		return nil, ErrInvalidTransition
	}

	// Claim the cancellation first so a concurrent cancel cannot release the
	// same reservations twice.
	if err := s.repo.ClaimCancel(ctx, orderID); err != nil {
		return nil, err
	}

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "CancelOrder"),
		zap.String("order_id", orderID.String()),
	)

	// Exact inverse of the reservation, line by line, duplicates included.
	for _, item := range o.Items {
		if err := s.ledger.Release(ctx, item.ProductID, item.Quantity); err != nil {
			log.Error("failed to release stock on cancel",
				zap.String("product_id", item.ProductID.String()),
				zap.Int("quantity", item.Quantity),
				zap.Error(err),
			)
		}
	}

	s.invalidate(ctx, productPrefix, orderPrefix)
	s.metrics.Cancelled.Inc()

	log.Info("order cancelled")

	s.notifier.Emit(o.UserID, notification.TypeOrderCancelled,
		"Order cancelled",
		fmt.Sprintf("Your order %s has been cancelled.", o.ID),
		"/orders/"+o.ID.String(),
	)

	return s.repo.GetByID(ctx, orderID)
}

func (s *service) invalidate(ctx context.Context, prefixes ...string) {
	for _, prefix := range prefixes {
		if err := s.responses.InvalidatePrefix(ctx, prefix); err != nil {
			logger.FromCtx(ctx).Warn("failed to invalidate cache",
				zap.String("prefix", prefix),
				zap.Error(err),
			)
		}
	}
}
