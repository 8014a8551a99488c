package models

import "time"

// Setting is a key/value row for runtime configuration, including the
// Keepa API credential under the key "keepa_api_key".
type Setting struct {
	ID    uint   `json:"id" gorm:"primaryKey"`
	Key   string `json:"key" gorm:"uniqueIndex;not null"`
	Value string `json:"value"`

	UpdatedAt time.Time `json:"updated_at"`
}
