package httpx

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/citizenwallet/self-checkout/internal/catalog"
	"github.com/citizenwallet/self-checkout/internal/checkout"
	"github.com/citizenwallet/self-checkout/internal/config"
	"github.com/citizenwallet/self-checkout/internal/orders"
	"github.com/citizenwallet/self-checkout/internal/stripex"
)

// memStore is an in-memory stand-in for both the catalog and order
// repos, shared between the checkout service and the handlers under
// test.
type memStore struct {
	mu     sync.Mutex
	places map[int64]*catalog.Place
	items  map[int64][]catalog.Item
	nextID int64
	orders map[int64]*orders.Order
}

func newMemStore() *memStore {
	invite := "JOIN-CORNER"
	return &memStore{
		places: map[int64]*catalog.Place{
			1: {ID: 1, Slug: "corner-cafe", Name: "Corner Cafe", Accounts: []string{"0xcafe"}, InviteCode: &invite},
			2: {ID: 2, Slug: "demo-cafe", Name: "Demo Cafe", Accounts: []string{"0xdemo"}},
		},
		items: map[int64][]catalog.Item{
			1: {
				{ID: 10, PlaceID: 1, Name: "Espresso", PriceCents: 250, VatPercent: 21},
				{ID: 11, PlaceID: 1, Name: "Croissant", PriceCents: 300, VatPercent: 9},
			},
			2: {
				{ID: 20, PlaceID: 2, Name: "Demo Drink", PriceCents: 100, VatPercent: 0},
			},
		},
		nextID: 1,
		orders: map[int64]*orders.Order{},
	}
}

func (m *memStore) PlaceByID(_ context.Context, id int64) (*catalog.Place, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.places[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return p, nil
}

func (m *memStore) PlaceBySlug(_ context.Context, slug string) (*catalog.Place, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.places {
		if p.Slug == slug {
			return p, nil
		}
	}
	return nil, catalog.ErrNotFound
}

func (m *memStore) PlaceBySlugOrAccount(ctx context.Context, slugOrAccount string) (*catalog.Place, error) {
	if p, err := m.PlaceBySlug(ctx, slugOrAccount); err == nil {
		return p, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.places {
		for _, a := range p.Accounts {
			if a == slugOrAccount {
				return p, nil
			}
		}
	}
	return nil, catalog.ErrNotFound
}

func (m *memStore) PlaceByInviteCode(_ context.Context, code string) (*catalog.Place, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.places {
		if p.InviteCode != nil && *p.InviteCode == code {
			return p, nil
		}
	}
	return nil, catalog.ErrNotFound
}

func (m *memStore) SearchPlaces(_ context.Context, query string) ([]catalog.PlaceSearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []catalog.PlaceSearchResult
	for _, p := range m.places {
		if strings.Contains(strings.ToLower(p.Name), strings.ToLower(query)) {
			out = append(out, catalog.PlaceSearchResult{ID: p.ID, Name: p.Name, Slug: p.Slug})
		}
	}
	return out, nil
}

func (m *memStore) ItemsByPlace(_ context.Context, placeID int64) ([]catalog.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[placeID], nil
}

func (m *memStore) Create(_ context.Context, placeID, totalCents int64, items []orders.Line, description string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.orders[id] = &orders.Order{
		ID:          id,
		CreatedAt:   time.Now(),
		TotalCents:  totalCents,
		DueCents:    totalCents,
		PlaceID:     placeID,
		Items:       items,
		Status:      orders.StatusPending,
		Description: description,
	}
	return id, nil
}

func (m *memStore) Get(_ context.Context, id int64) (*orders.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, orders.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memStore) ListByPlace(_ context.Context, placeID int64, limit, offset int) ([]orders.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []orders.Order
	for _, o := range m.orders {
		if o.PlaceID == placeID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *memStore) UpdateCart(_ context.Context, id, totalCents int64, items []orders.Line) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.Status != orders.StatusPending {
		return orders.ErrNotFound
	}
	o.TotalCents = totalCents
	o.DueCents = totalCents
	o.Items = items
	return nil
}

func (m *memStore) Complete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return orders.ErrNotFound
	}
	if o.Status == orders.StatusPaid {
		return nil
	}
	now := time.Now()
	o.Status = orders.StatusPaid
	o.DueCents = 0
	o.CompletedAt = &now
	return nil
}

func (m *memStore) AttachTxHash(_ context.Context, id int64, txHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return orders.ErrNotFound
	}
	o.TxHash = &txHash
	return nil
}

// seedOrder inserts an order directly, bypassing the service.
func (m *memStore) seedOrder(o orders.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.ID >= m.nextID {
		m.nextID = o.ID + 1
	}
	m.orders[o.ID] = &o
}

const testWebhookSecret = "whsec_httpx_test"

func newTestRouter(t *testing.T, store *memStore) *chi.Mux {
	t.Helper()
	cfg := config.Config{
		ServiceName:       "checkout-test",
		BaseDomain:        "checkout.example.com",
		DemoCheckoutSlugs: []string{"demo-cafe"},
		DemoCompleteDelay: 5 * time.Millisecond,
	}
	svc := &checkout.Service{Places: store, Orders: store, Cfg: &cfg}

	r := chi.NewRouter()
	oh := &OrdersHandler{Svc: svc, Places: store, Orders: store}
	oh.Register(r)
	wh := &WebhookHandler{Hook: stripex.Webhook{Secret: testWebhookSecret}, Svc: svc}
	wh.Register(r)
	return r
}

func signPayload(t *testing.T, secret string, payload []byte) string {
	t.Helper()
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}
