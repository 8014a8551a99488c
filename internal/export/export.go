package export

import (
	"fmt"
	"time"

	"asin-tracker/internal/deltas"
	"asin-tracker/internal/fees"
	"asin-tracker/internal/models"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

const sheetName = "Tracked Items"

var headers = []string{
	"ASIN", "Title", "Brand", "Category", "Cost", "Weight (lb)",
	"Buy Box Price", "New Price", "Rank", "Sellers", "Stock",
	"Referral Fee %",
	"Price Δ30", "Price Δ90", "Price Δ180",
	"Rank Δ30", "Rank Δ90", "Rank Δ180",
}

// Workbook renders every active item with its current snapshot values and
// deltas into a spreadsheet.
func Workbook(db *gorm.DB, deltaEngine *deltas.Engine) (*excelize.File, error) {
	var items []models.Asin
	if err := db.Where("is_active = ?", true).Order("created_at desc").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to load items: %w", err)
	}

	asins := make([]string, 0, len(items))
	for _, item := range items {
		asins = append(asins, item.ASIN)
	}

	current := map[string]*models.HistorySnapshot{}
	allDeltas := map[string]*deltas.Deltas{}
	if len(asins) > 0 {
		var err error
		if current, err = deltaEngine.LatestSnapshots(asins, time.Now().UTC()); err != nil {
			return nil, err
		}
		if allDeltas, err = deltaEngine.ForActiveItems(); err != nil {
			return nil, err
		}
	}

	f := excelize.NewFile()
	f.SetSheetName(f.GetSheetName(0), sheetName)

	for col, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		_ = f.SetCellValue(sheetName, cell, header)
	}

	for i, item := range items {
		snap := current[item.ASIN]
		d := allDeltas[item.ASIN]

		row := []any{
			item.ASIN, item.Title, item.Brand, item.Category,
			floatCell(item.Cost), floatCell(item.Weight),
		}
		if snap != nil {
			row = append(row, floatCell(snap.BuyBoxPrice), floatCell(snap.NewPrice),
				intCell(snap.Rank), intCell(snap.SellerCount), intCell(snap.Stock))
		} else {
			row = append(row, nil, nil, nil, nil, nil)
		}
		row = append(row, referralPercent(item))
		if d != nil {
			row = append(row,
				floatCell(d.PriceDelta30), floatCell(d.PriceDelta90), floatCell(d.PriceDelta180),
				floatCell(d.RankDelta30), floatCell(d.RankDelta90), floatCell(d.RankDelta180))
		} else {
			row = append(row, nil, nil, nil, nil, nil, nil)
		}

		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row for %s: %w", item.ASIN, err)
		}
	}

	return f, nil
}

func referralPercent(item models.Asin) float64 {
	if item.ReferralFeeOverride != nil {
		return *item.ReferralFeeOverride * 100
	}
	return fees.ReferralRate(item.Category) * 100
}

// floatCell and intCell unwrap optional metrics; excelize leaves nil
// cells empty, which keeps "no data" distinct from zero in the sheet.
func floatCell(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func intCell(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
