// Package feed follows order lifecycle events off the bus and keeps the
// Redis status cache warm, so the vendor dashboard and pay-page polling
// read cheaply without hitting Postgres.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/citizenwallet/self-checkout/internal/kafka"
	"github.com/citizenwallet/self-checkout/internal/orders"
	"github.com/citizenwallet/self-checkout/internal/redisx"
)

type Service struct {
	Redis       *redis.Client
	ServiceName string
}

// HandleEvent is installed as the consumer handler for both lifecycle
// topics. Events are deduplicated by event id before acting.
func (s *Service) HandleEvent(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}

	var status orders.Status
	switch env.EventType {
	case orders.EventOrderCreated:
		status = orders.StatusPending
	case orders.EventOrderPaid:
		status = orders.StatusPaid
	default:
		return nil
	}

	if seen, _ := s.seen(ctx, env.EventID); seen {
		return nil
	}

	switch env.EventType {
	case orders.EventOrderCreated:
		p, err := kafkax.UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
		if err != nil {
			return err
		}
		s.cacheStatus(ctx, p.OrderID, status)
		slog.Info("order created", "order_id", p.OrderID, "place_id", p.PlaceID, "total_cents", p.TotalCents)
	case orders.EventOrderPaid:
		p, err := kafkax.UnwrapPayload[orders.OrderPaidPayload](env.Payload)
		if err != nil {
			return err
		}
		s.cacheStatus(ctx, p.OrderID, status)
		slog.Info("order paid", "order_id", p.OrderID, "place_id", p.PlaceID, "total_cents", p.TotalCents, "source", p.Source)
	}
	return nil
}

func (s *Service) seen(ctx context.Context, eventID string) (bool, error) {
	if s.Redis == nil || eventID == "" {
		return false, nil
	}
	key := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, eventID)
	exists, err := redisx.Exists(ctx, s.Redis, key)
	if err != nil {
		return false, err
	}
	if !exists {
		_ = s.Redis.Set(ctx, key, "1", redisx.TTLDedup).Err()
	}
	return exists, nil
}

func (s *Service) cacheStatus(ctx context.Context, orderID int64, status orders.Status) {
	if s.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	_ = s.Redis.Set(ctx, key, fmt.Sprintf(`{"status":%q}`, status), redisx.TTLStatusCache).Err()
}
