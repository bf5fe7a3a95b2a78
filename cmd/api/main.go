package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/safar/go-bookshop/internal/api"
	"github.com/safar/go-bookshop/internal/auth"
	"github.com/safar/go-bookshop/internal/config"
	"github.com/safar/go-bookshop/internal/database"
	"github.com/safar/go-bookshop/internal/logging"
	"github.com/safar/go-bookshop/internal/metrics"
	"github.com/safar/go-bookshop/internal/ordering"
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

	logger.Info("Connected to database successfully")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Database.AutoMigrate {
		if err := migrations.Up(ctx, db); err != nil {
			logger.Fatalf("Run migrations: %v", err)
		}
		logger.Info("Migrations applied")
	}

	m := metrics.New()
	repo := store.NewPostgres(db)
	transactor := store.NewOrderTransactor(db, cfg.Orders.MaxRetries,
		logger.WithField("component", "order_tx"), m.ObserveTxRetry)
	placer := ordering.NewService(transactor, logger.WithField("component", "ordering"),
		ordering.WithTimeout(cfg.Orders.Timeout),
		ordering.WithRecorder(m),
	)

	srv := api.NewServer(cfg, api.Deps{
		Users:     repo,
		Books:     repo,
		Orders:    repo,
		Addresses: repo,
		Wishlist:  repo,
		Placer:    placer,
		Tokens:    auth.NewTokens(cfg.Auth.SecretKey, cfg.Auth.AccessTokenTTL),
		Metrics:   m,
		Health: func(ctx context.Context) error {
			return database.Ping(ctx, db)
		},
		Logger: logger.WithField("component", "http"),
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      srv.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(log.Fields{
			"port":   cfg.Server.Port,
			"prefix": cfg.Server.APIPrefix,
			"env":    cfg.Env,
		}).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatalf("Server error: %v", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Server shutdown with error")
	}

	logger.Info("Server stopped")
}
