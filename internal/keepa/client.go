package keepa

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	productURL = "https://api.keepa.com/product"
	imageHost  = "https://images-na.ssl-images-amazon.com/images/I/"
)

// BatchSize is the vendor's cap on ASINs per product request.
const BatchSize = 10

type Client struct {
	http *resty.Client
}

func NewClient(timeout time.Duration) *Client {
	client := resty.New()
	client.SetTimeout(timeout)

	return &Client{http: client}
}

type ProductResponse struct {
	Products   []Product `json:"products"`
	TokensLeft int       `json:"tokensLeft"`
}

// Product is the per-ASIN payload. CSV columns are interleaved
// (minute-offset, value) integer arrays indexed by MetricKind.Column;
// elements are decoded loosely so one bad token cannot fail the batch.
type Product struct {
	ASIN          string  `json:"asin"`
	Title         string  `json:"title"`
	PackageWeight int     `json:"packageWeight"` // grams
	RootCategory  int64   `json:"rootCategory"`
	ImagesCSV     string  `json:"imagesCSV"`
	CSV           [][]any `json:"csv"`
	Stats         *Stats  `json:"stats"`
}

type Stats struct {
	StockAmazon *int `json:"stockAmazon"`
	IsAmazon    bool `json:"isAmazon"`
}

// Column returns the raw csv column for a metric, or nil when the csv
// array is missing or shorter than the metric's index.
func (p *Product) Column(kind MetricKind) []any {
	idx := kind.Column()
	if idx < 0 || idx >= len(p.CSV) {
		return nil
	}
	return p.CSV[idx]
}

// Series decodes one metric's history, dropping entries before cutoff.
func (p *Product) Series(kind MetricKind, cutoff time.Time) []Point {
	return DecodeSeries(p.Column(kind), kind, cutoff)
}

// Latest returns the most recent non-absent value for a metric.
func (p *Product) Latest(kind MetricKind) *float64 {
	return LatestValue(p.Column(kind), kind)
}

// WeightPounds converts packageWeight grams to pounds, nil when unknown.
func (p *Product) WeightPounds() *float64 {
	if p.PackageWeight <= 0 {
		return nil
	}
	lbs := math.Round(float64(p.PackageWeight)/453.592*100) / 100
	return &lbs
}

// FirstImageURL builds the full URL of the first image, or "".
func (p *Product) FirstImageURL() string {
	if p.ImagesCSV == "" {
		return ""
	}
	first := strings.TrimSpace(strings.Split(p.ImagesCSV, ",")[0])
	if first == "" {
		return ""
	}
	return imageHost + first
}

// StockAmazon returns Amazon's own stock level, nil when unreported. The
// stats field uses -1 as its own sentinel.
func (p *Product) StockAmazon() *int {
	if p.Stats == nil || p.Stats.StockAmazon == nil || *p.Stats.StockAmazon == -1 {
		return nil
	}
	return p.Stats.StockAmazon
}

// IsAmazonSelling reports whether Amazon itself holds an offer.
func (p *Product) IsAmazonSelling() bool {
	return p.Stats != nil && p.Stats.IsAmazon
}

// FetchProducts pulls history and stats for up to BatchSize ASINs.
func (c *Client) FetchProducts(ctx context.Context, apiKey string, asins []string) (*ProductResponse, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"key":     apiKey,
			"domain":  "1",
			"asin":    strings.Join(asins, ","),
			"stats":   "1",
			"offers":  "20",
			"history": "1",
		}).
		Get(productURL)
	if err != nil {
		return nil, fmt.Errorf("keepa request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("keepa returned status %d", resp.StatusCode())
	}

	var result ProductResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("failed to decode keepa response: %w", err)
	}
	return &result, nil
}
