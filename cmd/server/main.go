package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/damon-houk/insurance-offer-system/internal/application/service"
	"github.com/damon-houk/insurance-offer-system/internal/domain/repository"
	domainservice "github.com/damon-houk/insurance-offer-system/internal/domain/service"
	"github.com/damon-houk/insurance-offer-system/internal/infrastructure/cache"
	"github.com/damon-houk/insurance-offer-system/internal/infrastructure/config"
	"github.com/damon-houk/insurance-offer-system/internal/infrastructure/db"
	"github.com/damon-houk/insurance-offer-system/internal/infrastructure/events"
	"github.com/damon-houk/insurance-offer-system/internal/infrastructure/handler"
	"github.com/damon-houk/insurance-offer-system/internal/infrastructure/logger"
	_ "github.com/joho/godotenv/autoload"
	"golang.org/x/sync/errgroup"
)

const clientID = "insurance-offer-system"

func main() {
	cfg, err := config.Parse()
	if err != nil {
		logger.Fatal("Invalid configuration", map[string]interface{}{
			"error": err.Error(),
		})
	}

	log := logger.NewJSONLogger(os.Stdout, cfg.Level())
	defer log.Sync()
	logger.SetDefaultLogger(log)

	log.Info("Starting insurance offer service", map[string]interface{}{
		"address":      cfg.RunAddress,
		"store":        cfg.StoreDriver,
		"expiry":       cfg.ExpiryWindow.String(),
		"sweep":        cfg.SweepInterval.String(),
		"premium_rate": cfg.PremiumRate,
	})

	if err := run(cfg, log); err != nil {
		log.Fatal("Server stopped with error", map[string]interface{}{
			"error": err.Error(),
		})
	}

	log.Info("Server stopped", nil)
}

func run(cfg *config.Config, log logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := repo.Close(); err != nil {
			log.Error("Error closing offer store", map[string]interface{}{"error": err.Error()})
		}
	}()

	publisher, err := openPublisher(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Error("Error closing event publisher", map[string]interface{}{"error": err.Error()})
		}
	}()

	rate, err := cfg.Rate()
	if err != nil {
		return err
	}
	policy := service.OfferPolicy{ExpiryWindow: cfg.ExpiryWindow, PremiumRate: rate}

	var statsCache *cache.ConversionStatsCache
	if cfg.StatsCacheTTL > 0 {
		statsCache = cache.NewConversionStatsCache(cfg.StatsCacheTTL)
	}

	offerService := service.NewOfferService(repo, publisher, policy, log)
	statsService := service.NewStatsService(repo, statsCache, log)
	sweeper := service.NewExpirySweeper(repo, publisher, cfg.ExpiryWindow, cfg.SweepInterval, log)

	router := handler.NewRouter(
		handler.NewOfferHandler(offerService, log),
		handler.NewStatsHandler(statsService, log),
		log,
	)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("Server listening", map[string]interface{}{"address": cfg.RunAddress})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return sweeper.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down", nil)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func openStore(ctx context.Context, cfg *config.Config, log logger.Logger) (repository.OfferRepository, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		repo, err := db.NewPostgresOfferRepository(ctx, cfg.DatabaseURI)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		log.Info("Using postgres offer store", nil)
		return repo, nil

	case config.StoreMemory:
		log.Warn("Using in-memory offer store, offers are lost on restart", nil)
		return db.NewMemoryOfferRepository(), nil

	default:
		if err := os.MkdirAll(cfg.BadgerPath, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		badgerDB, err := db.OpenBadger(cfg.BadgerPath)
		if err != nil {
			return nil, fmt.Errorf("open badger store: %w", err)
		}
		log.Info("Using badger offer store", map[string]interface{}{"path": cfg.BadgerPath})
		return db.NewBadgerOfferRepository(badgerDB), nil
	}
}

func openPublisher(ctx context.Context, cfg *config.Config, log logger.Logger) (domainservice.OfferEventPublisher, error) {
	if !cfg.KafkaEnabled() {
		log.Info("No Kafka brokers configured, logging offer events", nil)
		return events.NewLogPublisher(log), nil
	}

	publisher, err := events.NewKafkaPublisher(cfg.KafkaBrokers, clientID, cfg.KafkaOfferTopic, log)
	if err != nil {
		return nil, err
	}

	ensureCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	// -1 lets the broker pick its default partition count and replication factor
	if err := publisher.EnsureTopic(ensureCtx, -1, -1); err != nil {
		publisher.Close()
		return nil, err
	}

	return publisher, nil
}
