package httpx

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/citizenwallet/self-checkout/internal/checkout"
	"github.com/citizenwallet/self-checkout/internal/stripex"
)

const maxWebhookBody = 1 << 20

// WebhookHandler receives asynchronous payment notifications from the
// gateway and feeds completed sessions into the order lifecycle.
type WebhookHandler struct {
	Hook stripex.Webhook
	Svc  *checkout.Service
}

func (h *WebhookHandler) Register(r *chi.Mux) {
	r.Post("/api/v1/webhooks/stripe", h.handleStripe)
}

func (h *WebhookHandler) handleStripe(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body")
		return
	}

	session, err := h.Hook.ParseEvent(body, r.Header.Get(stripex.SignatureHeader))
	if err != nil {
		slog.Warn("webhook rejected", "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if session == nil {
		// an event type the lifecycle does not act on; acknowledge it
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	slog.Info("checkout session completed",
		"event_id", session.EventID,
		"order_id", session.OrderID,
		"account", session.Account,
		"amount_cents", session.AmountCents,
	)

	if err := h.Svc.Complete(r.Context(), session.OrderID, "webhook"); err != nil {
		slog.Error("order completion failed", "order_id", session.OrderID, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
