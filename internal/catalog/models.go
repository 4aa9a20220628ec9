package catalog

import "time"

// Place is a vendor storefront: it owns a menu and receives payments on
// its associated accounts. The slug is the public lookup key.
type Place struct {
	ID         int64     `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	BusinessID int64     `json:"business_id"`
	Slug       string    `json:"slug"`
	Name       string    `json:"name"`
	Accounts   []string  `json:"accounts"`
	InviteCode *string   `json:"invite_code"`
	TerminalID *int64    `json:"terminal_id"`
}

// Item is a purchasable menu entry. Checkout only ever reads items.
type Item struct {
	ID          int64  `json:"id"`
	PlaceID     int64  `json:"place_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	PriceCents  int64  `json:"price_cents"`
	VatPercent  int    `json:"vat_percent"`
	Category    string `json:"category"`
}

type PlaceSearchResult struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}
