package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated = "OrderCreated"
	EventOrderPaid    = "OrderPaid"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type OrderCreatedPayload struct {
	OrderID       int64  `json:"order_id"`
	PlaceID       int64  `json:"place_id"`
	Items         []Line `json:"items"`
	SubtotalCents int64  `json:"subtotal_cents"`
	VatCents      int64  `json:"vat_cents"`
	TotalCents    int64  `json:"total_cents"`
}

type OrderPaidPayload struct {
	OrderID    int64  `json:"order_id"`
	PlaceID    int64  `json:"place_id"`
	TotalCents int64  `json:"total_cents"`
	Source     string `json:"source"` // "webhook" | "demo"
}
