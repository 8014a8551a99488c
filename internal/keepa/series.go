package keepa

import (
	"encoding/json"
	"time"
)

// Keepa timestamps are minutes since 2011-01-01 00:00 UTC.
var Epoch = time.Date(2011, 1, 1, 0, 0, 0, 0, time.UTC)

// MetricKind names one tracked column of the Keepa csv array. The csv
// format is positional, so the column index and the sentinel rules for a
// metric live here and nowhere else.
type MetricKind int

const (
	MetricNewPrice    MetricKind = iota // lowest new offer, cents
	MetricSalesRank                     // sales rank in root category
	MetricSellerCount                   // marketplace new offer count
	MetricBuyBoxPrice                   // buy box price incl. shipping, cents
)

// Column returns the metric's index into the csv array.
func (k MetricKind) Column() int {
	switch k {
	case MetricNewPrice:
		return 1
	case MetricSalesRank:
		return 3
	case MetricSellerCount:
		return 11
	case MetricBuyBoxPrice:
		return 18
	}
	return -1
}

func (k MetricKind) String() string {
	switch k {
	case MetricNewPrice:
		return "new_price"
	case MetricSalesRank:
		return "rank"
	case MetricSellerCount:
		return "seller_count"
	case MetricBuyBoxPrice:
		return "buybox_price"
	}
	return "unknown"
}

// priceScaled reports whether raw values are cents that need /100 scaling.
// Price columns also treat 0 and out-of-range values as absent; rank and
// seller counts only reserve -1, since 0 is a real observation for them.
func (k MetricKind) priceScaled() bool {
	return k == MetricNewPrice || k == MetricBuyBoxPrice
}

// decodeValue maps a raw csv integer to a metric value. ok=false means the
// sentinel for "no data", which must stay distinct from a literal zero.
func (k MetricKind) decodeValue(raw int64) (float64, bool) {
	if k.priceScaled() {
		if raw == -1 || raw == 0 || raw >= 1000000 {
			return 0, false
		}
		return float64(raw) / 100, true
	}
	if raw == -1 {
		return 0, false
	}
	return float64(raw), true
}

// Point is one decoded series entry. Value is nil when the vendor reported
// the sentinel for that instant.
type Point struct {
	At    time.Time
	Value *float64
}

// DecodeSeries turns a raw interleaved [t0, v0, t1, v1, ...] column into
// ordered points. Entries before cutoff are dropped outright. A malformed
// pair (non-numeric token, odd trailing element) is skipped without
// aborting the rest of the column; an empty or nil column decodes to nil.
func DecodeSeries(raw []any, kind MetricKind, cutoff time.Time) []Point {
	if len(raw) < 2 {
		return nil
	}
	points := make([]Point, 0, len(raw)/2)
	for i := 0; i+1 < len(raw); i += 2 {
		ts, ok := asInt64(raw[i])
		if !ok {
			continue
		}
		val, ok := asInt64(raw[i+1])
		if !ok {
			continue
		}
		at := Epoch.Add(time.Duration(ts) * time.Minute)
		if at.Before(cutoff) {
			continue
		}
		p := Point{At: at}
		if v, present := kind.decodeValue(val); present {
			p.Value = &v
		}
		points = append(points, p)
	}
	return points
}

// LatestValue returns the last non-absent value of a raw column, or nil if
// the column never carried data. Used by the steady-state append path.
func LatestValue(raw []any, kind MetricKind) *float64 {
	var latest *float64
	for i := 0; i+1 < len(raw); i += 2 {
		if _, ok := asInt64(raw[i]); !ok {
			continue
		}
		val, ok := asInt64(raw[i+1])
		if !ok {
			continue
		}
		if v, present := kind.decodeValue(val); present {
			latest = &v
		}
	}
	return latest
}

// asInt64 extracts an integer from a decoded JSON token. Keepa columns are
// integer arrays, but a defective payload can carry nulls or strings.
func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}
