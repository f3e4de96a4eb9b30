package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/example/rideboard/internal/models"
)

// PostgresStore persists rides in a rides table. The *sql.DB handle is
// created once at startup and shared; its pool handles concurrent searches.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Close() error { return p.db.Close() }

func (p *PostgresStore) CreateRide(ctx context.Context, r *models.Ride) error {
	if r.PostedAt.IsZero() {
		r.PostedAt = time.Now().UTC()
	}
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO rides(driver_id, address, origin_lat, origin_lon, cost, is_active, description, posted_at)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		r.DriverID, r.Address, r.Origin.Lat, r.Origin.Lon, r.Cost, r.IsActive, nullable(r.Description), r.PostedAt,
	).Scan(&r.ID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (p *PostgresStore) GetRide(ctx context.Context, id int64) (models.Ride, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT id, driver_id, address, origin_lat, origin_lon, cost, is_active, description, posted_at
		 FROM rides WHERE id=$1`, id)
	r, err := scanRide(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Ride{}, ErrRideNotFound
	}
	if err != nil {
		return models.Ride{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return r, nil
}

func (p *PostgresStore) DeactivateRide(ctx context.Context, id int64) error {
	res, err := p.db.ExecContext(ctx, `UPDATE rides SET is_active=false WHERE id=$1 AND is_active`, id)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRideNotFound
	}
	return nil
}

func (p *PostgresStore) FindCandidates(ctx context.Context, box models.BoundingBox, center time.Time, window time.Duration) ([]models.Ride, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, driver_id, address, origin_lat, origin_lon, cost, is_active, description, posted_at
		 FROM rides
		 WHERE is_active
		   AND origin_lat BETWEEN $1 AND $2
		   AND origin_lon BETWEEN $3 AND $4
		   AND posted_at BETWEEN $5 AND $6`,
		box.MinLat, box.MaxLat, box.MinLon, box.MaxLon, center.Add(-window), center.Add(window))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var out []models.Ride
	for rows.Next() {
		r, err := scanRide(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRide(row rowScanner) (models.Ride, error) {
	var r models.Ride
	var desc sql.NullString
	err := row.Scan(&r.ID, &r.DriverID, &r.Address, &r.Origin.Lat, &r.Origin.Lon, &r.Cost, &r.IsActive, &desc, &r.PostedAt)
	if err != nil {
		return models.Ride{}, err
	}
	r.Description = desc.String
	return r, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
