package orders

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

// PendingTimeout is how long a pending order is still considered live.
// Past it, readers display the order as cancelled; the stored status is
// not rewritten, so a late payment confirmation can still complete it.
const PendingTimeout = 15 * time.Minute

var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusPaid: true, StatusCancelled: true},
	StatusPaid:      {},
	StatusCancelled: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// DisplayStatus is the read-time projection shown to viewers. It never
// mutates storage: two readers at different times may legitimately see
// different derived statuses for the same row.
func DisplayStatus(o *Order, now time.Time) Status {
	if o.Status == StatusPending && now.Sub(o.CreatedAt) > PendingTimeout {
		return StatusCancelled
	}
	return o.Status
}
