package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/neexbeast/weather-advisory/internal/property"
	"github.com/neexbeast/weather-advisory/internal/weather"
)

// Querier abstracts the subset of pgxpool.Pool used by Repository.
// This allows injection of a mock in tests.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository reads properties, their owners and their boarders.
type Repository struct {
	q Querier
}

// NewRepository constructs a Repository backed by the given pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{q: pool}
}

// NewRepositoryWithQuerier constructs a Repository with a custom Querier (for tests).
func NewRepositoryWithQuerier(q Querier) *Repository {
	return &Repository{q: q}
}

const propertyColumns = `
	SELECT p.id, p.name, p.address, p.latitude, p.longitude, u.name, u.email
	FROM properties p
	JOIN users u ON u.id = p.owner_id
`

// ListWithCoordinates returns every property that has both latitude and
// longitude, ordered by id, with its boarders attached.
func (r *Repository) ListWithCoordinates(ctx context.Context) ([]property.Property, error) {
	const q = propertyColumns + `
		WHERE p.latitude IS NOT NULL AND p.longitude IS NOT NULL
		ORDER BY p.id
	`

	rows, err := r.q.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("querying located properties: %w", err)
	}
	defer rows.Close()

	var props []property.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning property row: %w", err)
		}
		props = append(props, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating property rows: %w", err)
	}

	if len(props) == 0 {
		return props, nil
	}

	ids := make([]int64, len(props))
	for i, p := range props {
		ids[i] = p.ID
	}
	occupants, err := r.occupants(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range props {
		props[i].Occupants = occupants[props[i].ID]
	}

	return props, nil
}

// Get returns the property with id, located or not. Returns nil, nil when it does not exist.
func (r *Repository) Get(ctx context.Context, id int64) (*property.Property, error) {
	const q = propertyColumns + `
		WHERE p.id = $1
	`

	p, err := scanProperty(r.q.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying property %d: %w", id, err)
	}

	occupants, err := r.occupants(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	p.Occupants = occupants[id]

	return &p, nil
}

// occupants loads every boarder of the given properties, whatever their status.
func (r *Repository) occupants(ctx context.Context, propertyIDs []int64) (map[int64][]property.Occupant, error) {
	const q = `
		SELECT b.property_id, u.name, u.email, b.status
		FROM boarders b
		JOIN users u ON u.id = b.user_id
		WHERE b.property_id = ANY($1)
		ORDER BY b.property_id, b.id
	`

	rows, err := r.q.Query(ctx, q, propertyIDs)
	if err != nil {
		return nil, fmt.Errorf("querying boarders: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]property.Occupant)
	for rows.Next() {
		var (
			propertyID int64
			o          property.Occupant
			email      *string
		)
		if err := rows.Scan(&propertyID, &o.Name, &email, &o.Status); err != nil {
			return nil, fmt.Errorf("scanning boarder row: %w", err)
		}
		if email != nil {
			o.Email = *email
		}
		out[propertyID] = append(out[propertyID], o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating boarder rows: %w", err)
	}

	return out, nil
}

func scanProperty(row pgx.Row) (property.Property, error) {
	var (
		p          property.Property
		lat, lon   *float64
		ownerEmail *string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Address, &lat, &lon, &p.Owner.Name, &ownerEmail); err != nil {
		return property.Property{}, err
	}
	if lat != nil && lon != nil {
		p.Location = &weather.Coordinate{Latitude: *lat, Longitude: *lon}
	}
	if ownerEmail != nil {
		p.Owner.Email = *ownerEmail
	}
	return p, nil
}
