// Package stripex adapts the hosted Stripe checkout to the order
// lifecycle: it mints payment sessions for pending orders and parses the
// asynchronous completion webhooks. All card handling and signature
// schemes stay on Stripe's side.
package stripex

import (
	"context"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"

	"github.com/citizenwallet/self-checkout/internal/catalog"
)

// SessionRequest carries everything the hosted checkout needs to know
// about an order. AmountCents is echoed back in the webhook metadata.
type SessionRequest struct {
	Account     string
	Place       *catalog.Place
	OrderID     int64
	AmountCents int64
}

type Client struct {
	api        *client.API
	priceID    string
	baseDomain string
}

func NewClient(secretKey, priceID, baseDomain string) *Client {
	return &Client{
		api:        client.New(secretKey, nil),
		priceID:    priceID,
		baseDomain: baseDomain,
	}
}

// CreateSession asks Stripe for a hosted checkout session and returns its
// redirect URL. The order is identified through session metadata; the
// charge itself is a single configured price repeated amount times.
func (c *Client) CreateSession(ctx context.Context, req SessionRequest) (string, error) {
	orderID := strconv.FormatInt(req.OrderID, 10)
	successURL := fmt.Sprintf("https://%s/%s/pay/%s/success", c.baseDomain, req.Place.Slug, orderID)
	cancelURL := fmt.Sprintf("https://%s/%s/pay/%s", c.baseDomain, req.Place.Slug, orderID)

	params := &stripe.CheckoutSessionParams{
		ClientReferenceID: stripe.String(req.Account),
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(successURL),
		CancelURL:         stripe.String(cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(c.priceID),
				Quantity: stripe.Int64(req.AmountCents),
			},
		},
	}
	params.Context = ctx
	params.AddMetadata("account", req.Account)
	params.AddMetadata("placeName", req.Place.Name)
	params.AddMetadata("placeId", strconv.FormatInt(req.Place.ID, 10))
	params.AddMetadata("orderId", orderID)
	params.AddMetadata("amount", strconv.FormatInt(req.AmountCents, 10))
	params.AddMetadata("forward_url", fmt.Sprintf("https://%s/api/v1/webhooks/stripe", c.baseDomain))

	session, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return session.URL, nil
}
