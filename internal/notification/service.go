package notification

import (
	"context"

	"garmentshop-be/internal/cache"
	"garmentshop-be/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Service interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Notification, error)
	MarkRead(ctx context.Context, id, userID uuid.UUID) error
}

type service struct {
	repo      Repository
	responses cache.Store
}

func NewService(repo Repository, responses cache.Store) Service {
	return &service{repo: repo, responses: responses}
}

func (s *service) ListByUser(ctx context.Context, userID uuid.UUID) ([]*Notification, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *service) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	if err := s.repo.MarkRead(ctx, id, userID); err != nil {
		return err
	}

	if err := s.responses.InvalidatePrefix(ctx, cache.UserPrefix(userID, listPrefix)); err != nil {
		logger.FromCtx(ctx).Warn("failed to invalidate notification cache", zap.Error(err))
	}

	return nil
}
