package notification

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeOrderCreated   Type = "ORDER_CREATED"
	TypeOrderStatus    Type = "ORDER_STATUS"
	TypeOrderCancelled Type = "ORDER_CANCELLED"
)

// Notification is an append-only record; only Read ever changes after creation.
type Notification struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Type      Type      `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Link      string    `json:"link,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}
