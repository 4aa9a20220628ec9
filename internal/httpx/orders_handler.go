package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/citizenwallet/self-checkout/internal/cart"
	"github.com/citizenwallet/self-checkout/internal/catalog"
	"github.com/citizenwallet/self-checkout/internal/checkout"
	"github.com/citizenwallet/self-checkout/internal/orders"
	"github.com/citizenwallet/self-checkout/internal/redisx"
)

// PlaceDirectory is the read side of the catalog the storefront serves.
type PlaceDirectory interface {
	PlaceBySlug(ctx context.Context, slug string) (*catalog.Place, error)
	PlaceByInviteCode(ctx context.Context, code string) (*catalog.Place, error)
	SearchPlaces(ctx context.Context, query string) ([]catalog.PlaceSearchResult, error)
	ItemsByPlace(ctx context.Context, placeID int64) ([]catalog.Item, error)
}

// OrderReader serves order reads; writes go through the checkout service.
type OrderReader interface {
	Get(ctx context.Context, id int64) (*orders.Order, error)
	ListByPlace(ctx context.Context, placeID int64, limit, offset int) ([]orders.Order, error)
}

type OrdersHandler struct {
	Svc    *checkout.Service
	Places PlaceDirectory
	Orders OrderReader
	Redis  *redis.Client // optional status-cache fast path
}

type LineInput struct {
	ID       int64 `json:"id"`
	Quantity int   `json:"quantity"`
}

type CreateOrderReq struct {
	PlaceID     int64       `json:"place_id"`
	Items       []LineInput `json:"items"`
	Description string      `json:"description"`
}

type CreateOrderResp struct {
	OrderID       int64 `json:"order_id"`
	SubtotalCents int64 `json:"subtotal_cents"`
	VatCents      int64 `json:"vat_cents"`
	TotalCents    int64 `json:"total_cents"`
	DueCents      int64 `json:"due_cents"`
}

type ConfirmOrderReq struct {
	Slug  string      `json:"slug"` // slug or payer account of the place
	Items []LineInput `json:"items"`
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Get("/api/v1/places", h.searchPlaces)
	r.Get("/api/v1/invites/{code}", h.getPlaceByInvite)
	r.Get("/api/v1/places/{slug}", h.getPlace)
	r.Get("/api/v1/places/{slug}/orders", h.listPlaceOrders)
	r.Post("/api/v1/orders", h.createOrder)
	r.Get("/api/v1/orders/{id}", h.getOrder)
	r.Get("/api/v1/orders/{id}/status", h.getOrderStatus)
	r.Post("/api/v1/orders/{id}/confirm", h.confirmOrder)
}

func (h *OrdersHandler) getPlace(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	place, err := h.Places.PlaceBySlug(ctx, chi.URLParam(r, "slug"))
	if err != nil {
		h.placeError(w, err)
		return
	}
	items, err := h.Places.ItemsByPlace(ctx, place.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"place": place, "items": items})
}

func (h *OrdersHandler) searchPlaces(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("search")
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing search query")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	results, err := h.Places.SearchPlaces(ctx, query)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if results == nil {
		results = []catalog.PlaceSearchResult{}
	}
	writeJSON(w, http.StatusOK, results)
}

// getPlaceByInvite resolves a vendor onboarding invite code to its place.
func (h *OrdersHandler) getPlaceByInvite(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	place, err := h.Places.PlaceByInviteCode(ctx, chi.URLParam(r, "code"))
	if err != nil {
		h.placeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, place)
}

func (h *OrdersHandler) listPlaceOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	place, err := h.Places.PlaceBySlug(ctx, chi.URLParam(r, "slug"))
	if err != nil {
		h.placeError(w, err)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	list, err := h.Orders.ListByPlace(ctx, place.ID, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	now := time.Now()
	out := make([]orders.Order, 0, len(list))
	for _, o := range list {
		o.Status = orders.DisplayStatus(&o, now)
		out = append(out, o)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.PlaceID == 0 || len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "missing fields")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id, totals, err := h.Svc.CreateOrder(ctx, req.PlaceID, toSelection(req.Items), req.Description)
	if err != nil {
		h.lifecycleError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateOrderResp{
		OrderID:       id,
		SubtotalCents: totals.SubtotalCents,
		VatCents:      totals.VatCents,
		TotalCents:    totals.TotalCents,
		DueCents:      totals.TotalCents,
	})
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Orders.Get(ctx, id)
	if err != nil {
		h.orderError(w, err)
		return
	}
	o.Status = orders.DisplayStatus(o, time.Now())
	writeJSON(w, http.StatusOK, o)
}

// getOrderStatus backs the pay page's polling: cached status when warm,
// the derived display status otherwise.
func (h *OrdersHandler) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	key := fmt.Sprintf(redisx.KeyOrderStatus, id)
	if h.Redis != nil {
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			writeJSON(w, http.StatusOK, json.RawMessage(s))
			return
		}
	}

	o, err := h.Orders.Get(ctx, id)
	if err != nil {
		h.orderError(w, err)
		return
	}
	status := orders.DisplayStatus(o, time.Now())
	body := fmt.Sprintf(`{"status":%q}`, status)
	if h.Redis != nil {
		_ = h.Redis.Set(ctx, key, body, redisx.TTLStatusCache).Err()
	}
	writeJSON(w, http.StatusOK, json.RawMessage(body))
}

func (h *OrdersHandler) confirmOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	var req ConfirmOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Slug == "" || len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "missing fields")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	url, err := h.Svc.ConfirmPurchase(ctx, req.Slug, id, toSelection(req.Items))
	if err != nil {
		h.lifecycleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func toSelection(items []LineInput) cart.Selection {
	sel := cart.Selection{}
	for _, it := range items {
		if it.Quantity > 0 {
			sel[it.ID] = it.Quantity
		}
	}
	return sel
}

func orderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return 0, false
	}
	return id, true
}

func (h *OrdersHandler) placeError(w http.ResponseWriter, err error) {
	if errors.Is(err, catalog.ErrNotFound) {
		writeError(w, http.StatusNotFound, "place not found")
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func (h *OrdersHandler) orderError(w http.ResponseWriter, err error) {
	if errors.Is(err, orders.ErrNotFound) {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func (h *OrdersHandler) lifecycleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, checkout.ErrEmptyOrder):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, orders.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, checkout.ErrMissingConfig):
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
