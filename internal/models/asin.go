package models

import "time"

// Asin is a tracked Amazon product. Rows are soft-deleted by flipping
// IsActive so historical snapshots keep a valid owner.
type Asin struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	ASIN     string `json:"asin" gorm:"uniqueIndex;not null"`
	Title    string `json:"title"`
	Brand    string `json:"brand"`
	Category string `json:"category"`
	ImageURL string `json:"image_url"`

	Weight *float64 `json:"weight"` // pounds
	Cost   *float64 `json:"cost"`
	Notes  string   `json:"notes"`

	// Fee inputs for margin estimates
	FBAFee              *float64 `json:"fba_fee"`
	ReferralFeeOverride *float64 `json:"referral_fee_override"`

	IsActive bool `json:"is_active" gorm:"default:true;index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Associations
	Snapshots []HistorySnapshot `json:"snapshots,omitempty" gorm:"foreignKey:ASIN;references:ASIN"`
	Sources   []Source          `json:"sources,omitempty" gorm:"foreignKey:ASIN;references:ASIN"`
}
