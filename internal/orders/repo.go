package orders

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("order not found")

const orderColumns = `id, created_at, completed_at, total_cents, due_cents, place_id, items, status, description, tx_hash`

type Repo struct{ DB *pgxpool.Pool }

// Create persists a new pending order with due == total. Items are stored
// as a JSONB snapshot; the caller has already pruned zero-quantity lines.
func (r *Repo) Create(ctx context.Context, placeID, totalCents int64, items []Line, description string) (int64, error) {
	var id int64
	err := r.DB.QueryRow(ctx, `
		INSERT INTO orders(place_id, total_cents, due_cents, items, status, description)
		VALUES ($1, $2, $2, $3, 'pending', $4)
		RETURNING id`,
		placeID, totalCents, items, description).Scan(&id)
	return id, err
}

func (r *Repo) Get(ctx context.Context, id int64) (*Order, error) {
	return scanOrder(r.DB.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
}

func (r *Repo) GetStatus(ctx context.Context, id int64) (Status, error) {
	var s string
	err := r.DB.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1`, id).Scan(&s)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return Status(s), nil
}

func (r *Repo) ListByPlace(ctx context.Context, placeID int64, limit, offset int) ([]Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.DB.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE place_id=$1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		placeID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// UpdateCart replaces the item snapshot and totals of a still-pending
// order, after the payer edits quantities on the summary screen.
func (r *Repo) UpdateCart(ctx context.Context, id, totalCents int64, items []Line) error {
	tag, err := r.DB.Exec(ctx, `
		UPDATE orders SET total_cents=$2, due_cents=$2, items=$3
		WHERE id=$1 AND status='pending'`,
		id, totalCents, items)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Complete transitions pending -> paid with a compare-and-set on the
// stored status, so duplicate payment notifications are harmless. An
// order that is already paid is a no-op success.
func (r *Repo) Complete(ctx context.Context, id int64) error {
	tag, err := r.DB.Exec(ctx, `
		UPDATE orders SET status='paid', due_cents=0, completed_at=NOW()
		WHERE id=$1 AND status='pending'`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	status, err := r.GetStatus(ctx, id)
	if err != nil {
		return err
	}
	if status == StatusPaid {
		return nil
	}
	return ErrNotFound
}

// AttachTxHash records the external payment transaction, independent of
// the order status.
func (r *Repo) AttachTxHash(ctx context.Context, id int64, txHash string) error {
	tag, err := r.DB.Exec(ctx,
		`UPDATE orders SET tx_hash=$2 WHERE id=$1`, id, txHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.CreatedAt, &o.CompletedAt, &o.TotalCents, &o.DueCents,
		&o.PlaceID, &o.Items, &o.Status, &o.Description, &o.TxHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}
