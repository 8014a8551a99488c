package api

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"asin-tracker/internal/deltas"
	"asin-tracker/internal/export"
	"asin-tracker/internal/fees"
	"asin-tracker/internal/ingest"
	"asin-tracker/internal/models"
	"asin-tracker/internal/settings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type APIHandler struct {
	db          *gorm.DB
	engine      *ingest.Engine
	deltaEngine *deltas.Engine
	settings    *settings.Store
}

func SetupRoutes(r *gin.RouterGroup, db *gorm.DB, engine *ingest.Engine, deltaEngine *deltas.Engine, store *settings.Store) *APIHandler {
	handler := &APIHandler{
		db:          db,
		engine:      engine,
		deltaEngine: deltaEngine,
		settings:    store,
	}

	asins := r.Group("/asins")
	{
		asins.GET("", handler.ListAsins)
		asins.POST("", handler.CreateAsin)
		asins.PATCH("/:asin", handler.UpdateAsin)
		asins.DELETE("/:asin", handler.DeleteAsin)
	}

	r.GET("/settings", handler.GetSettings)
	r.POST("/settings", handler.SaveSettings)

	r.POST("/sync", handler.Sync)

	r.GET("/history/:asin", handler.GetHistory)
	r.GET("/deltas", handler.GetAllDeltas)
	r.GET("/deltas/:asin", handler.GetDeltas)

	sources := r.Group("/sources")
	{
		sources.GET("", handler.ListAllSources)
		sources.GET("/:asin", handler.ListSources)
		sources.POST("", handler.CreateSource)
		sources.PATCH("/:id", handler.UpdateSource)
		sources.DELETE("/:id", handler.DeleteSource)
	}

	r.GET("/export", handler.Export)

	return handler
}

// asinView is an Asin row joined with its latest snapshot values and the
// referral fee estimate the frontend uses for margin math.
type asinView struct {
	models.Asin
	CurrentPrice    *float64 `json:"current_price"`
	CurrentNewPrice *float64 `json:"current_new_price"`
	CurrentRank     *int     `json:"current_rank"`
	CurrentSellers  *int     `json:"current_sellers"`
	CurrentStock    *int     `json:"current_stock"`
	AmazonSelling   bool     `json:"amazon_selling"`
	ReferralFee     float64  `json:"referral_fee"`
}

func (h *APIHandler) ListAsins(c *gin.Context) {
	var items []models.Asin
	if err := h.db.Where("is_active = ?", true).Order("created_at desc").Find(&items).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	asinCodes := make([]string, 0, len(items))
	for _, item := range items {
		asinCodes = append(asinCodes, item.ASIN)
	}

	current := map[string]*models.HistorySnapshot{}
	if len(asinCodes) > 0 {
		var err error
		current, err = h.deltaEngine.LatestSnapshots(asinCodes, time.Now().UTC())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	views := make([]asinView, 0, len(items))
	for _, item := range items {
		view := asinView{Asin: item, ReferralFee: fees.ReferralRate(item.Category)}
		if item.ReferralFeeOverride != nil {
			view.ReferralFee = *item.ReferralFeeOverride
		}
		if snap := current[item.ASIN]; snap != nil {
			view.CurrentPrice = snap.BuyBoxPrice
			view.CurrentNewPrice = snap.NewPrice
			view.CurrentRank = snap.Rank
			view.CurrentSellers = snap.SellerCount
			view.CurrentStock = snap.Stock
			view.AmazonSelling = snap.IsAmazonSelling
		}
		views = append(views, view)
	}

	c.JSON(http.StatusOK, views)
}

type createAsinRequest struct {
	ASIN     string   `json:"asin"`
	Title    string   `json:"title"`
	Brand    string   `json:"brand"`
	Category string   `json:"category"`
	Weight   *float64 `json:"weight"`
	Cost     *float64 `json:"cost"`
	Notes    string   `json:"notes"`
}

func (h *APIHandler) CreateAsin(c *gin.Context) {
	var req createAsinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	asin := strings.ToUpper(strings.TrimSpace(req.ASIN))
	if asin == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ASIN is required"})
		return
	}

	item := models.Asin{
		ASIN:     asin,
		Title:    req.Title,
		Brand:    req.Brand,
		Category: req.Category,
		Weight:   req.Weight,
		Cost:     req.Cost,
		Notes:    req.Notes,
		IsActive: true,
	}
	if err := h.db.Create(&item).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, item)
}

// asinPatchFields are the user-editable columns; metadata columns are
// owned by the sync engine.
var asinPatchFields = map[string]bool{
	"title":                 true,
	"cost":                  true,
	"weight":                true,
	"notes":                 true,
	"fba_fee":               true,
	"referral_fee_override": true,
}

func (h *APIHandler) UpdateAsin(c *gin.Context) {
	var payload map[string]any
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updates := map[string]any{}
	for field, value := range payload {
		if asinPatchFields[field] {
			updates[field] = value
		}
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No fields to update"})
		return
	}

	asin := strings.ToUpper(c.Param("asin"))
	if err := h.db.Model(&models.Asin{}).Where("asin = ?", asin).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *APIHandler) DeleteAsin(c *gin.Context) {
	asin := strings.ToUpper(c.Param("asin"))
	if err := h.db.Model(&models.Asin{}).Where("asin = ?", asin).Update("is_active", false).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *APIHandler) GetSettings(c *gin.Context) {
	values, err := h.settings.All()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, values)
}

func (h *APIHandler) SaveSettings(c *gin.Context) {
	var payload map[string]any
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	for key, value := range payload {
		if key == settings.KeyKeepaAPIKey {
			continue // never overwrite the credential via this route
		}
		if err := h.settings.Set(key, fmt.Sprintf("%v", value)); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *APIHandler) Sync(c *gin.Context) {
	report, err := h.engine.Run(c.Request.Context())
	if err != nil {
		if errors.Is(err, ingest.ErrNoCredential) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Keepa API key not configured"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	errs := report.Errors
	if errs == nil {
		errs = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"updated": report.Updated,
		"errors":  errs,
	})
}

func (h *APIHandler) GetHistory(c *gin.Context) {
	asin := strings.ToUpper(c.Param("asin"))
	days, err := strconv.Atoi(c.DefaultQuery("days", "90"))
	if err != nil || days <= 0 {
		days = 90
	}

	since := time.Now().UTC().AddDate(0, 0, -days)
	var rows []models.HistorySnapshot
	if err := h.db.Where("asin = ? AND captured_at >= ?", asin, since).
		Order("captured_at asc").Find(&rows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *APIHandler) GetAllDeltas(c *gin.Context) {
	result, err := h.deltaEngine.ForActiveItems()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *APIHandler) GetDeltas(c *gin.Context) {
	asin := strings.ToUpper(c.Param("asin"))
	result, err := h.deltaEngine.ForItem(asin)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *APIHandler) ListAllSources(c *gin.Context) {
	var rows []models.Source
	err := h.db.Joins("JOIN asins ON asins.asin = sources.asin").
		Where("asins.is_active = ?", true).
		Order("sources.supplier_name asc").Find(&rows).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *APIHandler) ListSources(c *gin.Context) {
	asin := strings.ToUpper(c.Param("asin"))
	var rows []models.Source
	if err := h.db.Where("asin = ?", asin).Order("created_at asc").Find(&rows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rows)
}

type createSourceRequest struct {
	ASIN         string   `json:"asin"`
	SupplierName string   `json:"supplier_name"`
	URL          string   `json:"url"`
	Cost         *float64 `json:"cost"`
	Notes        string   `json:"notes"`
}

func (h *APIHandler) CreateSource(c *gin.Context) {
	var req createSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	asin := strings.ToUpper(strings.TrimSpace(req.ASIN))
	url := strings.TrimSpace(req.URL)
	if asin == "" || url == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ASIN and URL are required"})
		return
	}

	source := models.Source{
		ASIN:         asin,
		SupplierName: req.SupplierName,
		URL:          url,
		Cost:         req.Cost,
		Notes:        req.Notes,
	}
	if err := h.db.Create(&source).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, source)
}

var sourcePatchFields = map[string]bool{
	"supplier_name": true,
	"url":           true,
	"cost":          true,
	"notes":         true,
}

func (h *APIHandler) UpdateSource(c *gin.Context) {
	var payload map[string]any
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updates := map[string]any{}
	for field, value := range payload {
		if sourcePatchFields[field] {
			updates[field] = value
		}
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No fields to update"})
		return
	}

	if err := h.db.Model(&models.Source{}).Where("id = ?", c.Param("id")).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *APIHandler) DeleteSource(c *gin.Context) {
	if err := h.db.Delete(&models.Source{}, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *APIHandler) Export(c *gin.Context) {
	workbook, err := export.Workbook(h.db, h.deltaEngine)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	filename := fmt.Sprintf("asin-tracker-%s.xlsx", time.Now().UTC().Format("2006-01-02"))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := workbook.Write(c.Writer); err != nil {
		log.Printf("[Export] failed to stream workbook: %v", err)
	}
}
