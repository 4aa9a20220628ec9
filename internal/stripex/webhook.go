package stripex

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
)

// SignatureHeader is the header carrying the HMAC over the raw body.
const SignatureHeader = "Stripe-Signature"

var (
	ErrNoSignature      = errors.New("no signature")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrMissingMetadata  = errors.New("missing metadata")
)

// CompletedCheckout is the parsed payload of a checkout.session.completed
// event: the fields the order lifecycle needs to mark the order paid.
type CompletedCheckout struct {
	EventID     string
	SessionID   string
	OrderID     int64
	Account     string
	AmountCents int64
}

type Webhook struct {
	Secret string
}

// ParseEvent verifies the signature over the raw request body and, for a
// completed checkout session, extracts the order metadata. Event types
// the lifecycle does not handle return (nil, nil); the endpoint still
// acknowledges them.
func (w Webhook) ParseEvent(payload []byte, sigHeader string) (*CompletedCheckout, error) {
	if sigHeader == "" {
		return nil, ErrNoSignature
	}

	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, w.Secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	if event.Type != stripe.EventTypeCheckoutSessionCompleted {
		return nil, nil
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}

	amount, err := requireInt(session.Metadata, "amount")
	if err != nil {
		return nil, err
	}
	account := session.Metadata["account"]
	if account == "" {
		return nil, fmt.Errorf("%w: account", ErrMissingMetadata)
	}
	orderID, err := requireInt(session.Metadata, "orderId")
	if err != nil {
		return nil, err
	}

	return &CompletedCheckout{
		EventID:     event.ID,
		SessionID:   session.ID,
		OrderID:     orderID,
		Account:     account,
		AmountCents: amount,
	}, nil
}

func requireInt(metadata map[string]string, key string) (int64, error) {
	v, err := strconv.ParseInt(metadata[key], 10, 64)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("%w: %s", ErrMissingMetadata, key)
	}
	return v, nil
}
