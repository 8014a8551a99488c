package main

import (
	"log"
	"net/http"
	"time"

	"asin-tracker/internal/api"
	"asin-tracker/internal/config"
	"asin-tracker/internal/database"
	"asin-tracker/internal/deltas"
	"asin-tracker/internal/ingest"
	"asin-tracker/internal/keepa"
	"asin-tracker/internal/settings"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	// Initialize configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.Initialize(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Wire the sync engine: settings-backed credential, Keepa client,
	// reconciler tuned from config
	store := settings.NewStore(db)
	client := keepa.NewClient(time.Duration(cfg.RequestTimeoutS) * time.Second)
	engine := ingest.NewEngine(db, client.FetchProducts, store)
	engine.BatchSize = cfg.SyncBatchSize
	engine.Workers = cfg.SyncWorkers
	engine.BackfillDays = cfg.BackfillDays
	engine.MinHistoryRows = cfg.MinHistoryRows

	deltaEngine := deltas.NewEngine(db)

	// Initialize Gin router
	r := gin.Default()

	// CORS middleware
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "ASIN Tracker API is running"})
	})

	// API routes
	apiGroup := r.Group("/api/v1")
	api.SetupRoutes(apiGroup, db, engine, deltaEngine, store)

	log.Printf("Server starting on port %s", cfg.Port)
	log.Fatal(http.ListenAndServe(":"+cfg.Port, r))
}
