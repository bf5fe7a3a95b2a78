package main

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/safar/go-bookshop/internal/config"
	"github.com/safar/go-bookshop/internal/database"
	"github.com/safar/go-bookshop/internal/logging"
	"github.com/safar/go-bookshop/internal/seed"
	"github.com/safar/go-bookshop/internal/store"
	"github.com/safar/go-bookshop/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	logger := logging.New(cfg.Log)

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		logger.Fatalf("Connect to database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := migrations.Up(ctx, db); err != nil {
		logger.Fatalf("Run migrations: %v", err)
	}

	repo := store.NewPostgres(db)
	res, err := seed.Run(ctx, repo, repo, cfg.Seed, cfg.Auth.BcryptCost, logger.WithField("component", "seed"))
	if err != nil {
		logger.Fatalf("Seed database: %v", err)
	}

	logger.WithFields(log.Fields{
		"admin_created": res.AdminCreated,
		"books_created": res.BooksCreated,
	}).Info("Database seeded")
}
