package catalog

import "github.com/google/uuid"

// InventoryLevel is the stocked quantity of one inventory item at one location
type InventoryLevel struct {
	LocationID      uuid.UUID `json:"location_id"`
	InventoryItemID uuid.UUID `json:"inventory_item_id"`
	Stocked         int       `json:"stocked"`
}
