// Command worker runs the extraction job queue standalone, separate from
// the HTTP API process so the two can scale independently.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"workcard-backend/internal/config"
	"workcard-backend/internal/database"
	"workcard-backend/internal/scheduler"
	"workcard-backend/internal/storage"
	"workcard-backend/internal/vision"
)

func main() {
	log := logrus.StandardLogger()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	pool := db.GetPool()

	chain := vision.ModelChain(cfg.Vision.PrimaryModel, cfg.Vision.FallbackModel, cfg.Vision.FastModel, cfg.Vision.ExtraChain)
	extractor := vision.NewAnthropicExtractor(cfg.Vision.APIKey, chain, log)

	var images scheduler.ImageStore
	if os.Getenv("STORAGE") == "r2" {
		r2Store, err := storage.NewR2Store(
			cfg.Upload.R2AccountID, cfg.Upload.R2AccessKey, cfg.Upload.R2SecretKey,
			cfg.Upload.R2Bucket, cfg.Upload.R2PublicURL,
		)
		if err != nil {
			log.Fatalf("failed to initialize R2 storage: %v", err)
		}
		images = scheduler.NewStorageImageStore(r2Store)
	} else {
		localStore, err := storage.NewLocalStore(cfg.Upload.LocalDir, "")
		if err != nil {
			log.Fatalf("failed to initialize local storage: %v", err)
		}
		images = scheduler.NewStorageImageStore(localStore)
	}

	worker := scheduler.NewWorker(
		scheduler.NewPGJobStore(pool),
		scheduler.NewPGWorkCardStore(pool),
		scheduler.NewPGEmployeeStore(pool),
		images,
		extractor,
		scheduler.Config{
			PollInterval:      cfg.WorkerPollInterval,
			MaxRetryAttempts:  cfg.MaxRetryAttempts,
			StaleLeaseWindow:  time.Duration(cfg.StaleLockMinutes) * time.Minute,
			PassportMinLength: cfg.PassportMinLength,
			PassportMaxLength: cfg.PassportMaxLength,
			NameSiteFallback:  cfg.NameSiteFallback,
			PoolSize:          cfg.WorkerPoolSize,
			GateConfig: vision.GateConfig{
				MinConfidence:  cfg.Vision.GateConfidence,
				MaxHoursDeltaH: cfg.Vision.GateHoursDeltaH,
			},
		},
		log,
	)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-done
		log.Info("worker stopping")
		cancel()
	}()

	log.Info("extraction worker started")
	worker.Run(ctx)
	log.Info("worker exited properly")
}
