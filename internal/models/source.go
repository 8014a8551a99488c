package models

import "time"

// Source is a supplier lead attached to an ASIN. Sources have their own
// CRUD lifecycle and are never touched by the sync engine.
type Source struct {
	ID           uint     `json:"id" gorm:"primaryKey"`
	ASIN         string   `json:"asin" gorm:"index;not null"`
	SupplierName string   `json:"supplier_name"`
	URL          string   `json:"url"`
	Cost         *float64 `json:"cost"`
	Notes        string   `json:"notes"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
