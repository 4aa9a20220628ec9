package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("place not found")

const placeColumns = `id, created_at, business_id, slug, name, accounts, invite_code, terminal_id`

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) PlaceByID(ctx context.Context, id int64) (*Place, error) {
	return r.scanPlace(r.DB.QueryRow(ctx,
		`SELECT `+placeColumns+` FROM places WHERE id=$1`, id))
}

func (r *Repo) PlaceBySlug(ctx context.Context, slug string) (*Place, error) {
	return r.scanPlace(r.DB.QueryRow(ctx,
		`SELECT `+placeColumns+` FROM places WHERE slug=$1`, slug))
}

// PlaceBySlugOrAccount resolves the public storefront identifier: it is
// usually a slug, but payment flows may address a place by one of its
// payer accounts.
func (r *Repo) PlaceBySlugOrAccount(ctx context.Context, slugOrAccount string) (*Place, error) {
	p, err := r.PlaceBySlug(ctx, slugOrAccount)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return r.scanPlace(r.DB.QueryRow(ctx,
		`SELECT `+placeColumns+` FROM places WHERE accounts @> ARRAY[$1]`, slugOrAccount))
}

func (r *Repo) PlaceByInviteCode(ctx context.Context, code string) (*Place, error) {
	return r.scanPlace(r.DB.QueryRow(ctx,
		`SELECT `+placeColumns+` FROM places WHERE invite_code=$1`, code))
}

func (r *Repo) SearchPlaces(ctx context.Context, query string) ([]PlaceSearchResult, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, name, slug FROM places
		WHERE name ILIKE '%'||$1||'%'
		ORDER BY name`, strings.TrimSpace(query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PlaceSearchResult
	for rows.Next() {
		var p PlaceSearchResult
		if err := rows.Scan(&p.ID, &p.Name, &p.Slug); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) ItemsByPlace(ctx context.Context, placeID int64) ([]Item, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, place_id, name, description, price_cents, vat_percent, category
		FROM items WHERE place_id=$1
		ORDER BY category, name`, placeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.PlaceID, &it.Name, &it.Description,
			&it.PriceCents, &it.VatPercent, &it.Category); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// ItemMap indexes a menu by item id, the shape the cart composer consumes.
func ItemMap(items []Item) map[int64]Item {
	m := make(map[int64]Item, len(items))
	for _, it := range items {
		m[it.ID] = it
	}
	return m
}

func (r *Repo) scanPlace(row pgx.Row) (*Place, error) {
	var p Place
	err := row.Scan(&p.ID, &p.CreatedAt, &p.BusinessID, &p.Slug, &p.Name,
		&p.Accounts, &p.InviteCode, &p.TerminalID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
