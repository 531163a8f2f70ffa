package product

import (
	"context"
	"strings"
	"time"

	"garmentshop-be/internal/cache"
	"garmentshop-be/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// listingPrefix is the cache family invalidated whenever catalog data changes.
const listingPrefix = "/api/products"

type Service interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Product, error)
	List(ctx context.Context, opts ListOptions) ([]*Product, error)
	Create(ctx context.Context, name string, description *string, price int64, stock int, imageURL *string) (*Product, error)
	SetStock(ctx context.Context, id uuid.UUID, stock int) (*Product, error)
}

type service struct {
	repo      Repository
	responses cache.Store
}

func NewService(repo Repository, responses cache.Store) Service {
	return &service{repo: repo, responses: responses}
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) List(ctx context.Context, opts ListOptions) ([]*Product, error) {
	if opts.Page <= 0 {
		opts.Page = 1
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	} else if opts.Limit > 100 {
		opts.Limit = 100
	}

	return s.repo.List(ctx, opts)
}

func (s *service) Create(ctx context.Context, name string, description *string, price int64, stock int, imageURL *string) (*Product, error) {
	if strings.TrimSpace(name) == "" || price < 0 || stock < 0 {
		return nil, ErrInvalidInput
	}

	now := time.Now()
	p := &Product{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		Price:       price,
		Stock:       stock,
		ImageURL:    imageURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}

	s.invalidateListings(ctx)
	return p, nil
}

func (s *service) SetStock(ctx context.Context, id uuid.UUID, stock int) (*Product, error) {
	if stock < 0 {
		return nil, ErrInvalidInput
	}

	if err := s.repo.SetStock(ctx, id, stock); err != nil {
		return nil, err
	}

	s.invalidateListings(ctx)

	logger.FromCtx(ctx).Info("product stock set",
		zap.String("product_id", id.String()),
		zap.Int("stock", stock),
	)

	return s.repo.GetByID(ctx, id)
}

func (s *service) invalidateListings(ctx context.Context) {
	if err := s.responses.InvalidatePrefix(ctx, listingPrefix); err != nil {
		logger.FromCtx(ctx).Warn("failed to invalidate product cache", zap.Error(err))
	}
}
