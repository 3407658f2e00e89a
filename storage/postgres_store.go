package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/rotisserie/eris"

	"realestate-scraper/models"
)

// uniqueViolation is the PostgreSQL SQLSTATE for a duplicate key.
const uniqueViolation = "23505"

// PostgresStore persists listings and analytics snapshots to PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresStore.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: open")
	}

	for i := 0; i < 10; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, eris.Wrap(ctx.Err(), "postgres: ping cancelled")
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		_ = db.Close()
		return nil, eris.Wrap(err, "postgres: ping failed after retries")
	}

	ps := NewPostgresStoreFromDB(db)
	if err := ps.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return ps, nil
}

// NewPostgresStoreFromDB wraps an existing handle without migrating.
func NewPostgresStoreFromDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the listings and analytics_snapshots tables.
func (ps *PostgresStore) Migrate(ctx context.Context) error {
	_, err := ps.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS listings (
			url           TEXT PRIMARY KEY,
			title         TEXT             NOT NULL DEFAULT '',
			price         DOUBLE PRECISION,
			size_sqm      DOUBLE PRECISION,
			rooms         DOUBLE PRECISION,
			city          TEXT             NOT NULL DEFAULT '',
			neighborhood  TEXT             NOT NULL DEFAULT '',
			property_type TEXT             NOT NULL DEFAULT '',
			category      TEXT             NOT NULL DEFAULT '',
			deal_type     TEXT             NOT NULL DEFAULT '',
			features      TEXT[]           NOT NULL DEFAULT '{}',
			phone         TEXT             NOT NULL DEFAULT '',
			email         TEXT             NOT NULL DEFAULT '',
			whatsapp      TEXT             NOT NULL DEFAULT '',
			description   TEXT             NOT NULL DEFAULT '',
			source        TEXT             NOT NULL DEFAULT '',
			extracted_at  TIMESTAMPTZ      NOT NULL,
			first_seen    TIMESTAMPTZ      NOT NULL,
			last_seen     TIMESTAMPTZ      NOT NULL,
			run_id        TEXT             NOT NULL DEFAULT '',
			active        BOOLEAN          NOT NULL DEFAULT TRUE
		);

		CREATE INDEX IF NOT EXISTS idx_listings_first_seen    ON listings(first_seen);
		CREATE INDEX IF NOT EXISTS idx_listings_city          ON listings(city);
		CREATE INDEX IF NOT EXISTS idx_listings_property_type ON listings(property_type);
		CREATE INDEX IF NOT EXISTS idx_listings_source        ON listings(source);

		CREATE TABLE IF NOT EXISTS analytics_snapshots (
			run_id     TEXT PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL,
			payload    JSONB       NOT NULL
		);
	`)
	if err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

const listingColumns = `url, title, price, size_sqm, rooms, city, neighborhood, property_type,
	category, deal_type, features, phone, email, whatsapp, description, source,
	extracted_at, first_seen, last_seen, run_id, active`

func (ps *PostgresStore) Get(ctx context.Context, url string) (*models.PersistedListing, error) {
	row := ps.db.QueryRowContext(ctx, `SELECT `+listingColumns+` FROM listings WHERE url = $1`, url)
	l, err := scanListing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get %s", url)
	}
	return l, nil
}

// Insert adds a new listing. A duplicate URL surfaces as ErrIdentityConflict.
func (ps *PostgresStore) Insert(ctx context.Context, l *models.PersistedListing) error {
	_, err := ps.db.ExecContext(ctx, `
		INSERT INTO listings (`+listingColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
	`, listingArgs(l)...)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return eris.Wrapf(ErrIdentityConflict, "postgres: insert %s", l.URL)
	}
	if err != nil {
		return eris.Wrapf(err, "postgres: insert %s", l.URL)
	}
	return nil
}

// Update overwrites the stored row for l.URL with the merged listing.
func (ps *PostgresStore) Update(ctx context.Context, l *models.PersistedListing) error {
	res, err := ps.db.ExecContext(ctx, `
		UPDATE listings SET
			title = $2, price = $3, size_sqm = $4, rooms = $5, city = $6, neighborhood = $7,
			property_type = $8, category = $9, deal_type = $10, features = $11, phone = $12,
			email = $13, whatsapp = $14, description = $15, source = $16, extracted_at = $17,
			first_seen = $18, last_seen = $19, run_id = $20, active = $21
		WHERE url = $1
	`, listingArgs(l)...)
	if err != nil {
		return eris.Wrapf(err, "postgres: update %s", l.URL)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "postgres: update %s", l.URL)
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: update %s", l.URL)
	}
	return nil
}

// All retrieves every stored listing, oldest first.
func (ps *PostgresStore) All(ctx context.Context) ([]*models.PersistedListing, error) {
	rows, err := ps.db.QueryContext(ctx, `SELECT `+listingColumns+` FROM listings ORDER BY first_seen, url`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: fetch all")
	}
	defer rows.Close()

	var listings []*models.PersistedListing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan row")
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate rows")
	}
	return listings, nil
}

// WriteSnapshot appends a snapshot row. Rewriting a run's snapshot fails.
func (ps *PostgresStore) WriteSnapshot(ctx context.Context, s *models.AnalyticsSnapshot) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return eris.Wrap(err, "postgres: encode snapshot")
	}
	_, err = ps.db.ExecContext(ctx,
		`INSERT INTO analytics_snapshots (run_id, created_at, payload) VALUES ($1, $2, $3)`,
		s.RunID, s.Timestamp, payload)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert snapshot %s", s.RunID)
	}
	return nil
}

// LatestSnapshot returns the newest snapshot by creation time.
func (ps *PostgresStore) LatestSnapshot(ctx context.Context) (*models.AnalyticsSnapshot, error) {
	var payload []byte
	err := ps.db.QueryRowContext(ctx,
		`SELECT payload FROM analytics_snapshots ORDER BY created_at DESC LIMIT 1`).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: latest snapshot")
	}
	s := &models.AnalyticsSnapshot{}
	if err := json.Unmarshal(payload, s); err != nil {
		return nil, eris.Wrap(err, "postgres: decode snapshot")
	}
	return s, nil
}

func (ps *PostgresStore) Close() error {
	return ps.db.Close()
}

func listingArgs(l *models.PersistedListing) []any {
	features := l.Features
	if features == nil {
		features = []string{}
	}
	return []any{
		l.URL, l.Title, nullFloat(l.Price), nullFloat(l.Size), nullFloat(l.Rooms),
		l.Location.City, l.Location.Neighborhood, l.PropertyType, string(l.Category), l.DealType,
		pq.Array(features), l.Contact.Phone, l.Contact.Email, l.Contact.WhatsApp,
		l.Description, l.Source, l.ExtractedAt, l.FirstSeen, l.LastSeen, l.RunID, l.Active,
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanListing(s scanner) (*models.PersistedListing, error) {
	l := &models.PersistedListing{}
	var price, size, rooms sql.NullFloat64
	var category string
	var features pq.StringArray
	err := s.Scan(
		&l.URL, &l.Title, &price, &size, &rooms, &l.Location.City, &l.Location.Neighborhood,
		&l.PropertyType, &category, &l.DealType, &features, &l.Contact.Phone, &l.Contact.Email,
		&l.Contact.WhatsApp, &l.Description, &l.Source, &l.ExtractedAt, &l.FirstSeen,
		&l.LastSeen, &l.RunID, &l.Active,
	)
	if err != nil {
		return nil, err
	}
	l.Price = fromNull(price)
	l.Size = fromNull(size)
	l.Rooms = fromNull(rooms)
	l.Category = models.Category(category)
	if len(features) > 0 {
		l.Features = []string(features)
	}
	return l, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func fromNull(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
