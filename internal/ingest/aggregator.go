package ingest

import (
	"sort"
	"time"

	"asin-tracker/internal/keepa"
)

// DailySnapshot holds the first observed value per metric for one UTC
// calendar day. Nil slots mean no data was seen that day.
type DailySnapshot struct {
	BuyBoxPrice *float64
	NewPrice    *float64
	Rank        *int
	SellerCount *int
}

// DailyAggregate maps UTC midnight to that day's snapshot.
type DailyAggregate map[time.Time]*DailySnapshot

// AggregateDaily folds decoded per-metric series into one snapshot per
// calendar day. Policy: the first value observed for a metric on a day
// wins and later same-day values are discarded, matching "first read of
// the day" semantics. Entries with an absent value never claim the slot.
func AggregateDaily(series map[keepa.MetricKind][]keepa.Point) DailyAggregate {
	daily := make(DailyAggregate)

	for kind, points := range series {
		for _, p := range points {
			day := p.At.UTC().Truncate(24 * time.Hour)
			snap, ok := daily[day]
			if !ok {
				snap = &DailySnapshot{}
				daily[day] = snap
			}
			snap.assign(kind, p.Value)
		}
	}
	return daily
}

func (s *DailySnapshot) assign(kind keepa.MetricKind, value *float64) {
	if value == nil {
		return
	}
	switch kind {
	case keepa.MetricBuyBoxPrice:
		if s.BuyBoxPrice == nil {
			v := *value
			s.BuyBoxPrice = &v
		}
	case keepa.MetricNewPrice:
		if s.NewPrice == nil {
			v := *value
			s.NewPrice = &v
		}
	case keepa.MetricSalesRank:
		if s.Rank == nil {
			n := int(*value)
			s.Rank = &n
		}
	case keepa.MetricSellerCount:
		if s.SellerCount == nil {
			n := int(*value)
			s.SellerCount = &n
		}
	}
}

// Days returns the aggregate's calendar days in ascending order, the order
// rows are handed to the bulk insert.
func (a DailyAggregate) Days() []time.Time {
	days := make([]time.Time, 0, len(a))
	for day := range a {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}
