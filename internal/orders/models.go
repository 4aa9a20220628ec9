package orders

import "time"

// Line is a snapshot of one ordered item: the quantity is frozen at
// order time, not a live reference into the menu.
type Line struct {
	ItemID   int64 `json:"id"`
	Quantity int   `json:"quantity"`
}

type Order struct {
	ID          int64      `json:"id"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at"`
	TotalCents  int64      `json:"total"`
	DueCents    int64      `json:"due"`
	PlaceID     int64      `json:"place_id"`
	Items       []Line     `json:"items"`
	Status      Status     `json:"status"`
	Description string     `json:"description"`
	TxHash      *string    `json:"tx_hash,omitempty"`
}
