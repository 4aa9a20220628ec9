package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/citizenwallet/self-checkout/internal/catalog"
	"github.com/citizenwallet/self-checkout/internal/checkout"
	"github.com/citizenwallet/self-checkout/internal/config"
	"github.com/citizenwallet/self-checkout/internal/httpx"
	kafkax "github.com/citizenwallet/self-checkout/internal/kafka"
	"github.com/citizenwallet/self-checkout/internal/orders"
	"github.com/citizenwallet/self-checkout/internal/postgres"
	"github.com/citizenwallet/self-checkout/internal/redisx"
	"github.com/citizenwallet/self-checkout/internal/stripex"
	"github.com/citizenwallet/self-checkout/internal/telemetry"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	telemetry.InitLogger(cfg.ServiceName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers, one per lifecycle topic
	createdProd := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024)
	createdProd.Start(ctx)
	paidProd := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderPaid, 1024)
	paidProd.Start(ctx)

	placeRepo := &catalog.Repo{DB: db}
	orderRepo := &orders.Repo{DB: db}

	// The gateway is optional: without credentials only demo-slug
	// checkout works, everything else fails with a config error.
	var gateway checkout.Gateway
	if cfg.StripeSecretKey != "" && cfg.StripePriceID != "" {
		gateway = stripex.NewClient(cfg.StripeSecretKey, cfg.StripePriceID, cfg.BaseDomain)
	} else {
		slog.Warn("stripe credentials absent, hosted checkout disabled")
	}

	svc := &checkout.Service{
		Places:        placeRepo,
		Orders:        orderRepo,
		Gateway:       gateway,
		CreatedEvents: createdProd,
		PaidEvents:    paidProd,
		Redis:         rdb,
		Cfg:           &cfg,
	}

	router := httpx.NewRouter()
	oh := &httpx.OrdersHandler{
		Svc:    svc,
		Places: placeRepo,
		Orders: orderRepo,
		Redis:  rdb,
	}
	oh.Register(router)

	if cfg.StripeWebhookSecret != "" {
		wh := &httpx.WebhookHandler{
			Hook: stripex.Webhook{Secret: cfg.StripeWebhookSecret},
			Svc:  svc,
		}
		wh.Register(router)
	} else {
		// never serve an unverifiable webhook endpoint
		slog.Warn("STRIPE_WEBHOOK_SECRET absent, webhook endpoint disabled")
	}

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		slog.Info("HTTP listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	slog.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	createdProd.Close()
	paidProd.Close()
	cancel()
	createdProd.WaitClosed()
	paidProd.WaitClosed()
}
