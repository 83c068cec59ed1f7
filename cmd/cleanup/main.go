package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/qs3c/bible_search_server/config"
	"github.com/qs3c/bible_search_server/internal/database"
	"github.com/qs3c/bible_search_server/internal/pkg/logger"
	"github.com/qs3c/bible_search_server/internal/pkg/media"
	"github.com/qs3c/bible_search_server/internal/repository"
	"github.com/qs3c/bible_search_server/internal/service"
)

var (
	dryRun      = flag.Bool("dry-run", true, "Only count rows, don't delete them")
	purgeMedia  = flag.Bool("media", true, "Purge expired media cache rows")
	pruneUsage  = flag.Bool("usage", true, "Prune usage counters past the retention window")
	taskTimeout = flag.Duration("timeout", 5*time.Minute, "Deadline for the whole run")
)

func main() {
	flag.Parse()
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}
	log := logger.New(&cfg.Log)

	db, err := database.Open(&cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("failed to connect database")
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), *taskTimeout)
	defer cancel()

	usage := service.NewUsageService(repository.NewUsageRepository(db), cfg, log)
	// the upstream client is never called here, only the database cache is touched
	mediaSvc := service.NewMediaService(media.NewClient("", cfg.Media.Endpoint, cfg.Media.ResultCount),
		repository.NewMediaCacheRepository(db), nil, usage, cfg, log)

	log.WithField("dry_run", *dryRun).Info("cleanup started")

	failed := false
	summary := logrus.Fields{"dry_run": *dryRun}

	if *purgeMedia {
		n, err := mediaSvc.PurgeExpired(ctx, *dryRun)
		if err != nil {
			log.WithError(err).Error("media cache purge failed")
			failed = true
		}
		summary["media_rows"] = n
	}

	if *pruneUsage {
		n, err := usage.Prune(ctx, *dryRun)
		if err != nil {
			log.WithError(err).Error("usage prune failed")
			failed = true
		}
		summary["usage_rows"] = n
	}

	entry := log.WithFields(summary)
	if *dryRun {
		entry.Info("dry run complete, rerun with -dry-run=false to delete")
	} else {
		entry.Info("cleanup complete")
	}
	if failed {
		os.Exit(1)
	}
}
