// Package checkout implements the order lifecycle: creating pending
// orders from a cart selection, minting payment sessions, and completing
// orders when the gateway (or the demo bypass) confirms payment.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/citizenwallet/self-checkout/internal/kafka"
	"github.com/citizenwallet/self-checkout/internal/cart"
	"github.com/citizenwallet/self-checkout/internal/catalog"
	"github.com/citizenwallet/self-checkout/internal/config"
	"github.com/citizenwallet/self-checkout/internal/orders"
	"github.com/citizenwallet/self-checkout/internal/redisx"
	"github.com/citizenwallet/self-checkout/internal/stripex"
)

var (
	// ErrEmptyOrder rejects carts whose lines all pruned to nothing.
	ErrEmptyOrder = errors.New("order has no items")

	// ErrMissingConfig means the payment gateway credentials required
	// for a hosted checkout are absent. A deployment fault, not a user
	// error.
	ErrMissingConfig = errors.New("payment gateway not configured")
)

type PlaceStore interface {
	PlaceByID(ctx context.Context, id int64) (*catalog.Place, error)
	PlaceBySlugOrAccount(ctx context.Context, slugOrAccount string) (*catalog.Place, error)
	ItemsByPlace(ctx context.Context, placeID int64) ([]catalog.Item, error)
}

type OrderStore interface {
	Create(ctx context.Context, placeID, totalCents int64, items []orders.Line, description string) (int64, error)
	Get(ctx context.Context, id int64) (*orders.Order, error)
	UpdateCart(ctx context.Context, id, totalCents int64, items []orders.Line) error
	Complete(ctx context.Context, id int64) error
	AttachTxHash(ctx context.Context, id int64, txHash string) error
}

// Gateway mints hosted checkout sessions. Satisfied by *stripex.Client.
type Gateway interface {
	CreateSession(ctx context.Context, req stripex.SessionRequest) (string, error)
}

// Publisher emits lifecycle events. Satisfied by *kafkax.Producer.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// Service coordinates the order lifecycle. Redis and the publishers are
// nil-safe collaborators: caching and event emission are skipped when
// they are absent (tests, degraded deployments).
type Service struct {
	Places PlaceStore
	Orders OrderStore

	Gateway       Gateway
	CreatedEvents Publisher
	PaidEvents    Publisher
	Redis         *redis.Client

	Cfg *config.Config
}

// CreateOrder validates the selection against the place's menu, prices
// it, and persists a pending order snapshot with due == total.
func (s *Service) CreateOrder(ctx context.Context, placeID int64, sel cart.Selection, description string) (int64, cart.Totals, error) {
	place, err := s.Places.PlaceByID(ctx, placeID)
	if err != nil {
		return 0, cart.Totals{}, fmt.Errorf("resolve place %d: %w", placeID, err)
	}

	menu, err := s.menu(ctx, place.ID)
	if err != nil {
		return 0, cart.Totals{}, err
	}

	lines := sel.Lines(menu)
	if len(lines) == 0 {
		return 0, cart.Totals{}, ErrEmptyOrder
	}
	totals := cart.ComputeTotals(sel, menu)

	id, err := s.Orders.Create(ctx, place.ID, totals.TotalCents, lines, description)
	if err != nil {
		return 0, cart.Totals{}, fmt.Errorf("create order: %w", err)
	}

	s.cacheStatus(ctx, id, orders.StatusPending)
	s.publish(s.CreatedEvents, orders.EventOrderCreated, id, orders.OrderCreatedPayload{
		OrderID:       id,
		PlaceID:       place.ID,
		Items:         lines,
		SubtotalCents: totals.SubtotalCents,
		VatCents:      totals.VatCents,
		TotalCents:    totals.TotalCents,
	})
	return id, totals, nil
}

// ConfirmPurchase re-prices the (possibly edited) cart, persists it, and
// initiates payment. Demo places bypass the gateway: completion is
// simulated after a fixed delay and a local success URL is returned.
func (s *Service) ConfirmPurchase(ctx context.Context, slugOrAccount string, orderID int64, sel cart.Selection) (string, error) {
	place, err := s.Places.PlaceBySlugOrAccount(ctx, slugOrAccount)
	if err != nil {
		return "", fmt.Errorf("resolve place %q: %w", slugOrAccount, err)
	}

	order, err := s.Orders.Get(ctx, orderID)
	if err != nil {
		return "", fmt.Errorf("load order %d: %w", orderID, err)
	}

	menu, err := s.menu(ctx, place.ID)
	if err != nil {
		return "", err
	}

	lines := sel.Lines(menu)
	if len(lines) == 0 {
		return "", ErrEmptyOrder
	}
	totals := cart.ComputeTotals(sel, menu)

	if err := s.Orders.UpdateCart(ctx, order.ID, totals.TotalCents, lines); err != nil {
		return "", fmt.Errorf("update cart: %w", err)
	}

	if s.Cfg.IsDemoSlug(place.Slug) {
		return s.demoCheckout(slugOrAccount, order.ID), nil
	}

	if s.Gateway == nil {
		return "", ErrMissingConfig
	}
	if len(place.Accounts) == 0 {
		return "", fmt.Errorf("%w: place %q has no payer account", ErrMissingConfig, place.Slug)
	}

	url, err := s.Gateway.CreateSession(ctx, stripex.SessionRequest{
		Account:     place.Accounts[0],
		Place:       place,
		OrderID:     order.ID,
		AmountCents: totals.TotalCents,
	})
	if err != nil {
		return "", err
	}
	return url, nil
}

// demoCheckout completes the order in the background after an artificial
// processing delay, while the payer is sent straight to the success page.
func (s *Service) demoCheckout(slugOrAccount string, orderID int64) string {
	go func() {
		time.Sleep(s.Cfg.DemoCompleteDelay)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Complete(ctx, orderID, "demo"); err != nil {
			slog.Error("demo checkout completion failed", "order_id", orderID, "error", err)
		}
	}()
	return fmt.Sprintf("https://%s/%s/pay/%d/success", s.Cfg.BaseDomain, slugOrAccount, orderID)
}

// Complete marks an order paid (due -> 0, completion timestamp set).
// The store guards the transition with a compare-and-set, so duplicate
// confirmations are no-ops.
func (s *Service) Complete(ctx context.Context, orderID int64, source string) error {
	if err := s.Orders.Complete(ctx, orderID); err != nil {
		return fmt.Errorf("complete order %d: %w", orderID, err)
	}

	s.cacheStatus(ctx, orderID, orders.StatusPaid)

	payload := orders.OrderPaidPayload{OrderID: orderID, Source: source}
	if o, err := s.Orders.Get(ctx, orderID); err == nil {
		payload.PlaceID = o.PlaceID
		payload.TotalCents = o.TotalCents
	}
	s.publish(s.PaidEvents, orders.EventOrderPaid, orderID, payload)
	return nil
}

// AttachTxHash records an external payment reference, independent of the
// order's status.
func (s *Service) AttachTxHash(ctx context.Context, orderID int64, txHash string) error {
	return s.Orders.AttachTxHash(ctx, orderID, txHash)
}

func (s *Service) menu(ctx context.Context, placeID int64) (map[int64]catalog.Item, error) {
	items, err := s.Places.ItemsByPlace(ctx, placeID)
	if err != nil {
		return nil, fmt.Errorf("load menu: %w", err)
	}
	return catalog.ItemMap(items), nil
}

func (s *Service) cacheStatus(ctx context.Context, orderID int64, status orders.Status) {
	if s.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	_ = s.Redis.Set(ctx, key, fmt.Sprintf(`{"status":%q}`, status), redisx.TTLStatusCache).Err()
}

func (s *Service) publish(p Publisher, eventType string, orderID int64, payload any) {
	if p == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.Cfg.ServiceName,
		CorrelationID: fmt.Sprintf("%d", orderID),
		Payload:       kafkax.MustMarshal(payload),
	}
	p.Publish(orders.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
