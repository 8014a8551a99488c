package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"asin-tracker/internal/keepa"
	"asin-tracker/internal/models"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNoCredential aborts a sync run before any batch is attempted.
var ErrNoCredential = errors.New("keepa API key not configured")

// CredentialSource supplies the vendor API key. The settings store
// implements it; tests inject a literal.
type CredentialSource interface {
	KeepaAPIKey() (string, error)
}

// Fetcher pulls one batch of products from the vendor.
type Fetcher func(ctx context.Context, apiKey string, asins []string) (*keepa.ProductResponse, error)

// Report summarizes a sync run. Errors carries one message per failed
// batch; a run with errors can still have updated items.
type Report struct {
	Updated int      `json:"updated"`
	Errors  []string `json:"errors"`
}

// Engine reconciles fetched Keepa history against stored snapshots. Per
// item it either backfills a bounded daily window (fewer than
// MinHistoryRows stored snapshots) or appends a single fresh snapshot.
// The branch is recomputed from the persisted row count on every run;
// there is no stored state.
type Engine struct {
	db    *gorm.DB
	fetch Fetcher
	creds CredentialSource

	BatchSize      int
	Workers        int
	BackfillDays   int
	MinHistoryRows int

	now func() time.Time
}

func NewEngine(db *gorm.DB, fetch Fetcher, creds CredentialSource) *Engine {
	return &Engine{
		db:    db,
		fetch: fetch,
		creds: creds,

		BatchSize:      keepa.BatchSize,
		Workers:        3,
		BackfillDays:   180,
		MinHistoryRows: 30,

		now: time.Now,
	}
}

// Run syncs every active ASIN in fetch batches. Batches run concurrently
// under the worker limit; a failed batch lands in the report's error list
// and the remaining batches proceed.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	apiKey, err := e.creds.KeepaAPIKey()
	if err != nil {
		return nil, fmt.Errorf("failed to read keepa API key: %w", err)
	}
	if apiKey == "" {
		return nil, ErrNoCredential
	}

	var asins []string
	if err := e.db.Model(&models.Asin{}).Where("is_active = ?", true).
		Order("created_at asc").Pluck("asin", &asins).Error; err != nil {
		return nil, fmt.Errorf("failed to load active asins: %w", err)
	}

	report := &Report{}
	if len(asins) == 0 {
		return report, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.Workers)

	for start := 0; start < len(asins); start += e.BatchSize {
		end := start + e.BatchSize
		if end > len(asins) {
			end = len(asins)
		}
		batch := asins[start:end]

		g.Go(func() error {
			updated, err := e.syncBatch(gctx, apiKey, batch)
			mu.Lock()
			defer mu.Unlock()
			report.Updated += updated
			if err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("batch %s: %v", strings.Join(batch, ","), err))
				log.Printf("[Sync] batch error: %v", err)
			}
			return nil
		})
	}

	// Workers never return errors; failures are collected in the report.
	_ = g.Wait()

	log.Printf("[Sync] completed: %d items updated, %d batch errors", report.Updated, len(report.Errors))
	return report, nil
}

// syncBatch fetches one batch and applies it inside a single transaction:
// either every product's snapshots and metadata commit, or none do.
func (e *Engine) syncBatch(ctx context.Context, apiKey string, asins []string) (int, error) {
	resp, err := e.fetch(ctx, apiKey, asins)
	if err != nil {
		return 0, err
	}
	if len(resp.Products) == 0 {
		return 0, fmt.Errorf("no products in response")
	}

	updated := 0
	err = e.db.Transaction(func(tx *gorm.DB) error {
		for i := range resp.Products {
			product := &resp.Products[i]
			if product.ASIN == "" {
				continue
			}
			if err := e.syncProduct(tx, product); err != nil {
				return fmt.Errorf("%s: %w", product.ASIN, err)
			}
			updated++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

func (e *Engine) syncProduct(tx *gorm.DB, product *keepa.Product) error {
	asin := strings.ToUpper(product.ASIN)

	if err := e.updateMetadata(tx, asin, product); err != nil {
		return err
	}

	var count int64
	if err := tx.Model(&models.HistorySnapshot{}).Where("asin = ?", asin).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count history: %w", err)
	}

	if count < int64(e.MinHistoryRows) {
		return e.backfill(tx, asin, product)
	}
	return e.appendCurrent(tx, asin, product)
}

// updateMetadata copies catalogue fields from the payload onto the asins
// row. Only non-empty fetched values overwrite; user-entered fields such
// as cost and notes are never touched here.
func (e *Engine) updateMetadata(tx *gorm.DB, asin string, product *keepa.Product) error {
	updates := map[string]any{}

	if product.Title != "" {
		updates["title"] = product.Title
	}
	if w := product.WeightPounds(); w != nil {
		updates["weight"] = *w
	}
	if product.RootCategory != 0 {
		updates["category"] = fmt.Sprintf("%d", product.RootCategory)
	}
	if img := product.FirstImageURL(); img != "" {
		updates["image_url"] = img
	}

	if len(updates) == 0 {
		return nil
	}
	if err := tx.Model(&models.Asin{}).Where("asin = ?", asin).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update metadata: %w", err)
	}
	return nil
}

// backfill is the cold-start path: decode the bounded historical window,
// collapse to daily snapshots and bulk insert. Duplicate capture instants
// are silently dropped, so re-running a partially completed backfill
// neither errors nor double-counts.
func (e *Engine) backfill(tx *gorm.DB, asin string, product *keepa.Product) error {
	cutoff := e.now().UTC().AddDate(0, 0, -e.BackfillDays)

	series := map[keepa.MetricKind][]keepa.Point{
		keepa.MetricBuyBoxPrice: product.Series(keepa.MetricBuyBoxPrice, cutoff),
		keepa.MetricNewPrice:    product.Series(keepa.MetricNewPrice, cutoff),
		keepa.MetricSalesRank:   product.Series(keepa.MetricSalesRank, cutoff),
		keepa.MetricSellerCount: product.Series(keepa.MetricSellerCount, cutoff),
	}

	daily := AggregateDaily(series)
	if len(daily) == 0 {
		return nil
	}

	isAmazon := product.IsAmazonSelling()
	rows := make([]models.HistorySnapshot, 0, len(daily))
	for _, day := range daily.Days() {
		snap := daily[day]
		rows = append(rows, models.HistorySnapshot{
			ASIN:            asin,
			CapturedAt:      day,
			BuyBoxPrice:     snap.BuyBoxPrice,
			NewPrice:        snap.NewPrice,
			Rank:            snap.Rank,
			SellerCount:     snap.SellerCount,
			IsAmazonSelling: isAmazon,
		})
	}

	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(rows, 200).Error; err != nil {
		return fmt.Errorf("failed to backfill history: %w", err)
	}
	log.Printf("[Sync] %s: backfilled %d days of history", asin, len(rows))
	return nil
}

// appendCurrent is the steady-state path: one snapshot timestamped now,
// built from the latest non-absent value of each series.
func (e *Engine) appendCurrent(tx *gorm.DB, asin string, product *keepa.Product) error {
	row := models.HistorySnapshot{
		ASIN:            asin,
		CapturedAt:      e.now().UTC(),
		BuyBoxPrice:     product.Latest(keepa.MetricBuyBoxPrice),
		NewPrice:        product.Latest(keepa.MetricNewPrice),
		Stock:           product.StockAmazon(),
		IsAmazonSelling: product.IsAmazonSelling(),
	}
	if v := product.Latest(keepa.MetricSalesRank); v != nil {
		n := int(*v)
		row.Rank = &n
	}
	if v := product.Latest(keepa.MetricSellerCount); v != nil {
		n := int(*v)
		row.SellerCount = &n
	}

	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to append snapshot: %w", err)
	}
	return nil
}
