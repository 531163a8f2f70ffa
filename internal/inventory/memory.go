package inventory

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryLedger keeps stock in process memory. Used by tests and by local
// development without a database.
type MemoryLedger struct {
	mu    sync.Mutex
	stock map[uuid.UUID]int
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{stock: make(map[uuid.UUID]int)}
}

// SetStock seeds or overwrites the counter for a product.
func (l *MemoryLedger) SetStock(productID uuid.UUID, stock int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stock[productID] = stock
}

func (l *MemoryLedger) TryReserve(ctx context.Context, productID uuid.UUID, quantity int) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	current, ok := l.stock[productID]
	if !ok {
		return false, ErrProductNotFound
	}
	if current < quantity {
		return false, nil
	}

	l.stock[productID] = current - quantity
	return true, nil
}

func (l *MemoryLedger) Release(ctx context.Context, productID uuid.UUID, quantity int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	current, ok := l.stock[productID]
	if !ok {
		return ErrProductNotFound
	}

	l.stock[productID] = current + quantity
	return nil
}

func (l *MemoryLedger) Stock(ctx context.Context, productID uuid.UUID) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	current, ok := l.stock[productID]
	if !ok {
		return 0, ErrProductNotFound
	}
	return current, nil
}
