package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"asin-tracker/internal/config"
	"asin-tracker/internal/database"
	"asin-tracker/internal/ingest"
	"asin-tracker/internal/keepa"
	"asin-tracker/internal/settings"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

var (
	schedule  = flag.String("schedule", "0 */6 * * *", "cron schedule for sync runs")
	runOnce   = flag.Bool("once", false, "run a single sync and exit")
	atStartup = flag.Bool("startup-sync", true, "run a sync immediately on start")
)

func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	cfg := config.Load()

	db, err := database.Initialize(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	store := settings.NewStore(db)
	client := keepa.NewClient(time.Duration(cfg.RequestTimeoutS) * time.Second)
	engine := ingest.NewEngine(db, client.FetchProducts, store)
	engine.BatchSize = cfg.SyncBatchSize
	engine.Workers = cfg.SyncWorkers
	engine.BackfillDays = cfg.BackfillDays
	engine.MinHistoryRows = cfg.MinHistoryRows

	if *runOnce {
		runSync(engine)
		return
	}

	log.Printf("[Daemon] starting, schedule %q (PID %d)", *schedule, os.Getpid())

	if *atStartup {
		runSync(engine)
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(*schedule, func() { runSync(engine) }); err != nil {
		log.Fatalf("[Daemon] bad schedule %q: %v", *schedule, err)
	}
	scheduler.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("[Daemon] shutdown signal received, stopping scheduler")
	ctx := scheduler.Stop()
	<-ctx.Done()
}

// runSync performs one sync pass. Failed batches are reported and left for
// the next scheduled run; there is no in-process retry.
func runSync(engine *ingest.Engine) {
	start := time.Now()
	report, err := engine.Run(context.Background())
	if err != nil {
		log.Printf("[Daemon] sync failed: %v", err)
		return
	}

	log.Printf("[Daemon] sync finished in %v: %d updated, %d errors", time.Since(start).Round(time.Millisecond), report.Updated, len(report.Errors))
	for _, msg := range report.Errors {
		log.Printf("[Daemon]   error: %s", msg)
	}
}
