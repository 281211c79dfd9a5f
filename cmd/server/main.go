package main // Entry point package

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/avelora/checkout/internal/config"
	"github.com/avelora/checkout/internal/database"
	"github.com/avelora/checkout/internal/handler"
	"github.com/avelora/checkout/internal/payment"
	"github.com/avelora/checkout/internal/queue"
	"github.com/avelora/checkout/internal/repository"
	"github.com/avelora/checkout/internal/router"
	"github.com/avelora/checkout/internal/service"
)

func main() {
	// .env is a development convenience; in deployment the variables
	// come from the environment directly.
	_ = godotenv.Load()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg := config.Load()
	if cfg.Env == "dev" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()

	// Redis backs the rate limiter only; a nil client degrades the
	// limiter to pass-through instead of taking the service down.
	rdb := config.NewRedisClient()
	rlCfg := config.LoadRateLimitConfig()

	// Repositories.
	stockRepo := repository.NewStockRepo(db)
	orderRepo := repository.NewOrderRepo(db)
	productRepo := repository.NewProductRepo(db)
	cartRepo := repository.NewCartRepo(db)
	intentRepo := repository.NewIntentRepo(db)
	eventRepo := repository.NewWebhookEventRepo(db)

	// Collaborators.
	provider := payment.NewHTTPProvider(cfg.PaymentAPIURL, cfg.PaymentAPIKey, cfg.PaymentTimeout)
	notifier := queue.NewPublisher(cfg.RabbitURL)

	// Services.
	ledger := service.NewStockLedger(stockRepo, cfg.ReservationTTL)
	snapshotter := service.NewCartSnapshotter(cartRepo, productRepo)
	payments := service.NewPaymentCoordinator(provider, intentRepo)
	machine := service.NewOrderMachine(orderRepo, ledger, notifier)
	checkout := service.NewCheckoutService(snapshotter, ledger, payments, orderRepo, cartRepo)
	reconciler := service.NewWebhookReconciler(eventRepo, orderRepo, machine, payments, notifier)
	sweeper := service.NewSweeper(stockRepo, orderRepo, ledger, machine, payments, cfg.SweepInterval, cfg.WebhookGrace)

	// Background workers share a context that is cancelled on shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sweeper.Run(ctx)
	go func() {
		if err := queue.StartNotificationConsumer(cfg.RabbitURL); err != nil {
			log.Error().Err(err).Msg("notification consumer stopped")
		}
	}()

	e := echo.New()
	e.HideBanner = true
	router.RegisterRoutes(e)
	router.RegisterCheckout(e,
		handler.NewCheckoutHandler(checkout),
		handler.NewOrderHandler(orderRepo, machine, intentRepo),
		cfg.JWTSecret, rlCfg, rdb)
	router.RegisterWebhooks(e,
		handler.NewWebhookHandler(reconciler),
		cfg.WebhookSecret, rlCfg, rdb)

	go func() {
		addr := ":" + cfg.Port
		log.Info().Str("addr", addr).Str("env", cfg.Env).Msg("server listening")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}
