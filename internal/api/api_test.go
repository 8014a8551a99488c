package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"asin-tracker/internal/deltas"
	"asin-tracker/internal/ingest"
	"asin-tracker/internal/keepa"
	"asin-tracker/internal/models"
	"asin-tracker/internal/settings"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Asin{}, &models.HistorySnapshot{}, &models.Source{}, &models.Setting{}))

	store := settings.NewStore(db)
	fetch := func(ctx context.Context, apiKey string, asins []string) (*keepa.ProductResponse, error) {
		return &keepa.ProductResponse{}, nil
	}
	engine := ingest.NewEngine(db, fetch, store)

	router := gin.New()
	SetupRoutes(router.Group("/api/v1"), db, engine, deltas.NewEngine(db), store)
	return router, db
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateAndListAsins(t *testing.T) {
	router, _ := testRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/asins", gin.H{"asin": " b000test01 ", "title": "Widget"})
	require.Equal(t, http.StatusCreated, w.Code)

	var created models.Asin
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "B000TEST01", created.ASIN, "ASIN must be trimmed and upcased")

	w = doJSON(t, router, http.MethodGet, "/api/v1/asins", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var listed []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "B000TEST01", listed[0]["asin"])
	assert.Nil(t, listed[0]["current_price"], "no snapshots yet")
	assert.EqualValues(t, 0.15, listed[0]["referral_fee"])
}

func TestCreateAsinRequiresCode(t *testing.T) {
	router, _ := testRouter(t)
	w := doJSON(t, router, http.MethodPost, "/api/v1/asins", gin.H{"title": "No code"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateAsinAllowlistsFields(t *testing.T) {
	router, db := testRouter(t)
	require.NoError(t, db.Create(&models.Asin{ASIN: "B000TEST01", IsActive: true}).Error)

	w := doJSON(t, router, http.MethodPatch, "/api/v1/asins/b000test01", gin.H{
		"cost":      12.5,
		"is_active": false, // not user-editable through PATCH
	})
	require.Equal(t, http.StatusOK, w.Code)

	var item models.Asin
	require.NoError(t, db.Where("asin = ?", "B000TEST01").First(&item).Error)
	require.NotNil(t, item.Cost)
	assert.Equal(t, 12.5, *item.Cost)
	assert.True(t, item.IsActive)
}

func TestDeleteAsinIsSoft(t *testing.T) {
	router, db := testRouter(t)
	require.NoError(t, db.Create(&models.Asin{ASIN: "B000TEST01", IsActive: true}).Error)

	w := doJSON(t, router, http.MethodDelete, "/api/v1/asins/B000TEST01", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var item models.Asin
	require.NoError(t, db.Where("asin = ?", "B000TEST01").First(&item).Error)
	assert.False(t, item.IsActive, "delete must deactivate, not remove")

	w = doJSON(t, router, http.MethodGet, "/api/v1/asins", nil)
	var listed []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	assert.Empty(t, listed)
}

func TestSyncWithoutCredential(t *testing.T) {
	router, db := testRouter(t)
	require.NoError(t, db.Create(&models.Asin{ASIN: "B000TEST01", IsActive: true}).Error)

	w := doJSON(t, router, http.MethodPost, "/api/v1/sync", nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Keepa API key not configured")
}

func TestSyncReportsPartialSuccess(t *testing.T) {
	router, db := testRouter(t)
	require.NoError(t, settings.NewStore(db).Set(settings.KeyKeepaAPIKey, "key"))

	w := doJSON(t, router, http.MethodPost, "/api/v1/sync", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success bool     `json:"success"`
		Updated int      `json:"updated"`
		Errors  []string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, 0, body.Updated)
	assert.NotNil(t, body.Errors)
}

func TestSettingsRoundTripHidesCredential(t *testing.T) {
	router, _ := testRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/settings", gin.H{
		"currency":      "USD",
		"keepa_api_key": "must-not-stick",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/settings", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var values map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &values))
	assert.Equal(t, "USD", values["currency"])
	assert.NotContains(t, values, "keepa_api_key")
}

func TestSourcesCRUD(t *testing.T) {
	router, db := testRouter(t)
	require.NoError(t, db.Create(&models.Asin{ASIN: "B000TEST01", IsActive: true}).Error)

	w := doJSON(t, router, http.MethodPost, "/api/v1/sources", gin.H{
		"asin": "b000test01", "supplier_name": "Acme", "url": "https://acme.example/item",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var source models.Source
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &source))
	assert.Equal(t, "B000TEST01", source.ASIN)

	w = doJSON(t, router, http.MethodGet, "/api/v1/sources/B000TEST01", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listed []models.Source
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	require.Len(t, listed, 1)

	w = doJSON(t, router, http.MethodDelete, "/api/v1/sources/1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var n int64
	require.NoError(t, db.Model(&models.Source{}).Count(&n).Error)
	assert.EqualValues(t, 0, n)
}

func TestHistoryEndpoint(t *testing.T) {
	router, db := testRouter(t)
	now := time.Now().UTC()
	price := 19.99
	require.NoError(t, db.Create(&models.HistorySnapshot{ASIN: "B000TEST01", CapturedAt: now.AddDate(0, 0, -1), BuyBoxPrice: &price}).Error)
	require.NoError(t, db.Create(&models.HistorySnapshot{ASIN: "B000TEST01", CapturedAt: now.AddDate(0, 0, -200)}).Error)

	w := doJSON(t, router, http.MethodGet, "/api/v1/history/b000test01?days=90", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var rows []models.HistorySnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rows))
	require.Len(t, rows, 1, "rows older than the window are excluded")
}

func TestDeltasEndpoints(t *testing.T) {
	router, db := testRouter(t)
	require.NoError(t, db.Create(&models.Asin{ASIN: "B000TEST01", IsActive: true}).Error)

	now := time.Now().UTC()
	cur, old := 25.00, 20.00
	require.NoError(t, db.Create(&models.HistorySnapshot{ASIN: "B000TEST01", CapturedAt: now.Add(-time.Hour), BuyBoxPrice: &cur}).Error)
	require.NoError(t, db.Create(&models.HistorySnapshot{ASIN: "B000TEST01", CapturedAt: now.AddDate(0, 0, -40), BuyBoxPrice: &old}).Error)

	w := doJSON(t, router, http.MethodGet, "/api/v1/deltas/B000TEST01", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var single map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &single))
	assert.EqualValues(t, 5.00, single["price_delta_30"])
	assert.Nil(t, single["price_delta_90"])

	w = doJSON(t, router, http.MethodGet, "/api/v1/deltas", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var bulk map[string]map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &bulk))
	require.Contains(t, bulk, "B000TEST01")
	assert.EqualValues(t, 5.00, bulk["B000TEST01"]["price_delta_30"])
}
