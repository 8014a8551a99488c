package models

import "time"

// HistorySnapshot stores one observation of an ASIN's market metrics.
// Rows are append-only; the (asin, captured_at) unique index is the only
// guard against duplicate inserts from overlapping syncs, and conflicting
// rows are dropped silently at insert time.
//
// A nil metric means the vendor had no data at that instant. Nil is never
// the same as zero: a rank of 0 is a real value, a missing rank is nil.
type HistorySnapshot struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	ASIN       string    `json:"asin" gorm:"not null;uniqueIndex:idx_history_asin_captured_at"`
	CapturedAt time.Time `json:"captured_at" gorm:"not null;index;uniqueIndex:idx_history_asin_captured_at"`

	BuyBoxPrice *float64 `json:"buybox_price"`
	NewPrice    *float64 `json:"new_price"`
	Rank        *int     `json:"rank"`
	SellerCount *int     `json:"seller_count"`
	Stock       *int     `json:"stock"`

	IsAmazonSelling bool `json:"is_amazon_selling"`
}
