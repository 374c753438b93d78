package catalog

import "github.com/google/uuid"

// Brand represents a product brand
type Brand struct {
	ID         uuid.UUID   `json:"id"`
	Name       string      `json:"name"`
	ProductIDs []uuid.UUID `json:"product_ids,omitempty"`
}

// Category represents a product category
type Category struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}
