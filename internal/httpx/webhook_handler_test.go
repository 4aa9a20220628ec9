package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citizenwallet/self-checkout/internal/orders"
	"github.com/citizenwallet/self-checkout/internal/stripex"
)

func completedSessionEvent(metadata string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "evt_hook_1",
		"object": "event",
		"api_version": "2024-06-20",
		"type": "checkout.session.completed",
		"data": {
			"object": {
				"id": "cs_hook_1",
				"object": "checkout.session",
				"metadata": %s
			}
		}
	}`, metadata))
}

func postWebhook(r http.Handler, payload []byte, sig string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader(payload))
	if sig != "" {
		req.Header.Set(stripex.SignatureHeader, sig)
	}
	r.ServeHTTP(w, req)
	return w
}

func seedPending(store *memStore, id int64) {
	store.seedOrder(orders.Order{
		ID:         id,
		CreatedAt:  time.Now(),
		TotalCents: 1500,
		DueCents:   1500,
		PlaceID:    1,
		Status:     orders.StatusPending,
	})
}

func TestWebhook_CompletesOrder(t *testing.T) {
	store := newMemStore()
	seedPending(store, 42)
	r := newTestRouter(t, store)

	payload := completedSessionEvent(`{"amount": "1500", "account": "0xcafe", "orderId": "42"}`)
	w := postWebhook(r, payload, signPayload(t, testWebhookSecret, payload))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Received bool `json:"received"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Received)

	o, err := store.Get(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPaid, o.Status)
	assert.Equal(t, int64(0), o.DueCents)
	assert.NotNil(t, o.CompletedAt)
}

func TestWebhook_MissingSignature(t *testing.T) {
	store := newMemStore()
	seedPending(store, 42)
	r := newTestRouter(t, store)

	payload := completedSessionEvent(`{"amount": "1500", "account": "0xcafe", "orderId": "42"}`)
	w := postWebhook(r, payload, "")

	assert.Equal(t, http.StatusBadRequest, w.Code)

	// no storage write happened
	o, err := store.Get(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPending, o.Status)
}

func TestWebhook_InvalidSignature(t *testing.T) {
	store := newMemStore()
	seedPending(store, 42)
	r := newTestRouter(t, store)

	payload := completedSessionEvent(`{"amount": "1500", "account": "0xcafe", "orderId": "42"}`)
	w := postWebhook(r, payload, signPayload(t, "whsec_wrong", payload))

	assert.Equal(t, http.StatusBadRequest, w.Code)

	o, err := store.Get(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPending, o.Status)
}

func TestWebhook_MissingOrderID(t *testing.T) {
	store := newMemStore()
	r := newTestRouter(t, store)

	payload := completedSessionEvent(`{"amount": "1500", "account": "0xcafe"}`)
	w := postWebhook(r, payload, signPayload(t, testWebhookSecret, payload))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhook_UnknownOrder(t *testing.T) {
	store := newMemStore()
	r := newTestRouter(t, store)

	payload := completedSessionEvent(`{"amount": "1500", "account": "0xcafe", "orderId": "404"}`)
	w := postWebhook(r, payload, signPayload(t, testWebhookSecret, payload))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestWebhook_DuplicateDelivery(t *testing.T) {
	store := newMemStore()
	seedPending(store, 42)
	r := newTestRouter(t, store)

	payload := completedSessionEvent(`{"amount": "1500", "account": "0xcafe", "orderId": "42"}`)
	first := postWebhook(r, payload, signPayload(t, testWebhookSecret, payload))
	require.Equal(t, http.StatusOK, first.Code)

	second := postWebhook(r, payload, signPayload(t, testWebhookSecret, payload))
	assert.Equal(t, http.StatusOK, second.Code)

	o, err := store.Get(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPaid, o.Status)
	assert.Equal(t, int64(0), o.DueCents)
}

func TestWebhook_IgnoredEventType(t *testing.T) {
	store := newMemStore()
	seedPending(store, 42)
	r := newTestRouter(t, store)

	payload := []byte(`{
		"id": "evt_hook_2",
		"object": "event",
		"api_version": "2024-06-20",
		"type": "payment_intent.created",
		"data": {"object": {"id": "pi_1", "object": "payment_intent"}}
	}`)
	w := postWebhook(r, payload, signPayload(t, testWebhookSecret, payload))

	require.Equal(t, http.StatusOK, w.Code)

	o, err := store.Get(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPending, o.Status)
}
