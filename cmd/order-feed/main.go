package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/citizenwallet/self-checkout/internal/config"
	"github.com/citizenwallet/self-checkout/internal/feed"
	kafkax "github.com/citizenwallet/self-checkout/internal/kafka"
	"github.com/citizenwallet/self-checkout/internal/orders"
	"github.com/citizenwallet/self-checkout/internal/redisx"
	"github.com/citizenwallet/self-checkout/internal/telemetry"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	telemetry.InitLogger("order-feed")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &feed.Service{Redis: rdb, ServiceName: "order-feed"}

	group := getenv("FEED_GROUP", "order-feed")
	workers := mustAtoi(os.Getenv("FEED_WORKERS"), 4)

	for _, topic := range []string{orders.TopicOrderCreated, orders.TopicOrderPaid} {
		cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, topic, workers)
		go func(topic string) {
			slog.Info("feed consumer started", "group", group, "topic", topic, "workers", workers)
			if err := cons.Start(ctx, svc.HandleEvent); err != nil {
				slog.Error("consumer exit", "topic", topic, "error", err)
				cancel()
			}
		}(topic)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
		slog.Info("shutting down feed")
	case <-ctx.Done():
	}
	cancel()
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustAtoi(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil || i <= 0 {
		return def
	}
	return i
}
