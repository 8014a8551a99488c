package deltas

import (
	"errors"
	"fmt"
	"time"

	"asin-tracker/internal/models"

	"gorm.io/gorm"
)

// DefaultWindows are the lookback horizons in days.
var DefaultWindows = []int{30, 90, 180}

// Deltas carries the per-metric change against the closest snapshot at or
// before each lookback horizon. A nil field means the value could not be
// computed: either no snapshot exists that far back, or the metric was
// absent on one side of the comparison.
type Deltas struct {
	ASIN string `json:"asin"`

	PriceDelta30  *float64 `json:"price_delta_30"`
	PriceDelta90  *float64 `json:"price_delta_90"`
	PriceDelta180 *float64 `json:"price_delta_180"`

	NewPriceDelta30  *float64 `json:"new_price_delta_30"`
	NewPriceDelta90  *float64 `json:"new_price_delta_90"`
	NewPriceDelta180 *float64 `json:"new_price_delta_180"`

	RankDelta30  *float64 `json:"rank_delta_30"`
	RankDelta90  *float64 `json:"rank_delta_90"`
	RankDelta180 *float64 `json:"rank_delta_180"`

	SellerDelta30  *float64 `json:"seller_delta_30"`
	SellerDelta90  *float64 `json:"seller_delta_90"`
	SellerDelta180 *float64 `json:"seller_delta_180"`
}

// Engine computes snapshot deltas from persisted history. It never writes.
type Engine struct {
	db      *gorm.DB
	Windows []int

	now func() time.Time
}

func NewEngine(db *gorm.DB) *Engine {
	return &Engine{
		db:      db,
		Windows: DefaultWindows,
		now:     time.Now,
	}
}

// ForItem computes deltas for a single ASIN. "Current" is the most recent
// snapshot at or before now, so deltas still resolve on days without a
// fresh capture.
func (e *Engine) ForItem(asin string) (*Deltas, error) {
	now := e.now().UTC()

	current, err := e.closestBefore(asin, now)
	if err != nil {
		return nil, err
	}

	result := &Deltas{ASIN: asin}
	for _, window := range e.Windows {
		past, err := e.closestBefore(asin, now.AddDate(0, 0, -window))
		if err != nil {
			return nil, err
		}
		result.fill(window, current, past)
	}
	return result, nil
}

// ForActiveItems computes deltas for every active ASIN using one query per
// window across all items, not one per item per window.
func (e *Engine) ForActiveItems() (map[string]*Deltas, error) {
	var asins []string
	if err := e.db.Model(&models.Asin{}).Where("is_active = ?", true).Pluck("asin", &asins).Error; err != nil {
		return nil, fmt.Errorf("failed to load active asins: %w", err)
	}

	result := make(map[string]*Deltas, len(asins))
	if len(asins) == 0 {
		return result, nil
	}

	now := e.now().UTC()
	current, err := e.LatestSnapshots(asins, now)
	if err != nil {
		return nil, err
	}

	for _, asin := range asins {
		result[asin] = &Deltas{ASIN: asin}
	}
	for _, window := range e.Windows {
		past, err := e.LatestSnapshots(asins, now.AddDate(0, 0, -window))
		if err != nil {
			return nil, err
		}
		for _, asin := range asins {
			result[asin].fill(window, current[asin], past[asin])
		}
	}
	return result, nil
}

// closestBefore returns the most recent snapshot at or before cutoff, or
// nil when the item has no history that old.
func (e *Engine) closestBefore(asin string, cutoff time.Time) (*models.HistorySnapshot, error) {
	var snap models.HistorySnapshot
	err := e.db.Where("asin = ? AND captured_at <= ?", asin, cutoff).
		Order("captured_at desc").First(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return &snap, nil
}

// LatestSnapshots resolves the most recent snapshot at or before cutoff
// for every requested ASIN in a single window-function query.
func (e *Engine) LatestSnapshots(asins []string, cutoff time.Time) (map[string]*models.HistorySnapshot, error) {
	var rows []models.HistorySnapshot
	err := e.db.Raw(`
		SELECT * FROM (
			SELECT *, ROW_NUMBER() OVER (PARTITION BY asin ORDER BY captured_at DESC) AS rn
			FROM history_snapshots
			WHERE asin IN ? AND captured_at <= ?
		) ranked WHERE rn = 1`, asins, cutoff).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshots: %w", err)
	}

	byASIN := make(map[string]*models.HistorySnapshot, len(rows))
	for i := range rows {
		byASIN[rows[i].ASIN] = &rows[i]
	}
	return byASIN, nil
}

func (d *Deltas) fill(window int, current, past *models.HistorySnapshot) {
	price := metricDelta(current, past, func(s *models.HistorySnapshot) *float64 { return s.BuyBoxPrice })
	newPrice := metricDelta(current, past, func(s *models.HistorySnapshot) *float64 { return s.NewPrice })
	rank := metricDelta(current, past, func(s *models.HistorySnapshot) *float64 { return intValue(s.Rank) })
	seller := metricDelta(current, past, func(s *models.HistorySnapshot) *float64 { return intValue(s.SellerCount) })

	switch window {
	case 30:
		d.PriceDelta30, d.NewPriceDelta30, d.RankDelta30, d.SellerDelta30 = price, newPrice, rank, seller
	case 90:
		d.PriceDelta90, d.NewPriceDelta90, d.RankDelta90, d.SellerDelta90 = price, newPrice, rank, seller
	case 180:
		d.PriceDelta180, d.NewPriceDelta180, d.RankDelta180, d.SellerDelta180 = price, newPrice, rank, seller
	}
}

// metricDelta is current − past. Missing rows or absent metrics yield nil,
// never zero.
func metricDelta(current, past *models.HistorySnapshot, value func(*models.HistorySnapshot) *float64) *float64 {
	if current == nil || past == nil {
		return nil
	}
	cv, pv := value(current), value(past)
	if cv == nil || pv == nil {
		return nil
	}
	d := *cv - *pv
	return &d
}

func intValue(n *int) *float64 {
	if n == nil {
		return nil
	}
	v := float64(*n)
	return &v
}
