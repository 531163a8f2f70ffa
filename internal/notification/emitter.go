package notification

import (
	"context"
	"sync"
	"time"

	"garmentshop-be/internal/cache"
	"garmentshop-be/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// listPrefix is the per-user cache family for notification reads.
const listPrefix = "/api/notifications"

// Emitter appends notification records off the caller's request path.
// Emit never blocks order processing and a failed write is logged, not
// propagated; the order the notification describes is already committed
// by the time Emit is called.
type Emitter struct {
	repo      Repository
	responses cache.Store

	mu     sync.RWMutex
	closed bool

	queue   chan *Notification
	wg      sync.WaitGroup
	once    sync.Once
	timeout time.Duration
}

func NewEmitter(repo Repository, responses cache.Store, buffer int) *Emitter {
	if buffer <= 0 {
		buffer = 64
	}

	e := &Emitter{
		repo:      repo,
		responses: responses,
		queue:     make(chan *Notification, buffer),
		timeout:   5 * time.Second,
	}

	e.wg.Add(1)
	go e.worker()

	return e
}

// Emit enqueues a notification for the user. If the queue is full the
// notification is dropped and logged; it is a best-effort side channel.
func (e *Emitter) Emit(userID uuid.UUID, typ Type, title, message, link string) {
	n := &Notification{
		ID:      uuid.New(),
		UserID:  userID,
		Type:    typ,
		Title:   title,
		Message: message,
		Link:    link,
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		logger.L().Warn("emitter closed, dropping notification",
			zap.String("user_id", userID.String()),
			zap.String("type", string(typ)),
		)
		return
	}

	select {
	case e.queue <- n:
	default:
		logger.L().Warn("notification queue full, dropping",
			zap.String("user_id", userID.String()),
			zap.String("type", string(typ)),
		)
	}
}

// Close stops accepting notifications and drains the queue.
func (e *Emitter) Close() {
	e.once.Do(func() {
		e.mu.Lock()
		e.closed = true
		close(e.queue)
		e.mu.Unlock()
	})
	e.wg.Wait()
}

func (e *Emitter) worker() {
	defer e.wg.Done()

	for n := range e.queue {
		ctx, cancel := context.WithTimeout(context.Background(), e.timeout)

		if err := e.repo.Append(ctx, n); err != nil {
			logger.L().Error("failed to write notification",
				zap.String("user_id", n.UserID.String()),
				zap.String("type", string(n.Type)),
				zap.Error(err),
			)
			cancel()
			continue
		}

		// The user's cached notification list is now stale.
		if err := e.responses.InvalidatePrefix(ctx, cache.UserPrefix(n.UserID, listPrefix)); err != nil {
			logger.L().Warn("failed to invalidate notification cache", zap.Error(err))
		}

		cancel()
	}
}
