package export

import (
	"path/filepath"
	"testing"
	"time"

	"asin-tracker/internal/deltas"
	"asin-tracker/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestWorkbook(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Asin{}, &models.HistorySnapshot{}))

	require.NoError(t, db.Create(&models.Asin{ASIN: "B000TEST01", Title: "Widget", Category: "Automotive", IsActive: true}).Error)
	price := 25.00
	require.NoError(t, db.Create(&models.HistorySnapshot{
		ASIN:        "B000TEST01",
		CapturedAt:  time.Now().UTC().Add(-time.Hour),
		BuyBoxPrice: &price,
	}).Error)

	f, err := Workbook(db, deltas.NewEngine(db))
	require.NoError(t, err)

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 2, "header plus one item")
	assert.Equal(t, "ASIN", rows[0][0])
	assert.Equal(t, "B000TEST01", rows[1][0])
	assert.Equal(t, "Widget", rows[1][1])
}

func TestWorkbookEmpty(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "empty.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Asin{}, &models.HistorySnapshot{}))

	f, err := Workbook(db, deltas.NewEngine(db))
	require.NoError(t, err)

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 1, "header only")
}
