package product

import (
	"time"

	"github.com/google/uuid"
)

// Product is a catalog item. Price is stored in minor units (cents).
// Stock is mutated only through the inventory ledger; SetStock is the
// administrative absolute override.
type Product struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Price       int64     `json:"price"`
	Stock       int       `json:"stock"`
	ImageURL    *string   `json:"image_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ListOptions struct {
	Limit  int32
	Page   int32
	Search *string
}
