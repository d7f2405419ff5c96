package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/foodbridge/dispatch/core/model"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS volunteers (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    karma INTEGER NOT NULL,
    capacity REAL NOT NULL,
    lat REAL,
    lon REAL
);
CREATE TABLE IF NOT EXISTS pickup_points (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    location TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS drop_off_points (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    location TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS storage_points (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    location TEXT NOT NULL,
    max_volume REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS item_variants (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    unit_volume REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS pickup_items (
    point_id TEXT NOT NULL,
    variant_id TEXT NOT NULL,
    quantity INTEGER NOT NULL,
    PRIMARY KEY (point_id, variant_id)
);
CREATE TABLE IF NOT EXISTS car_items (
    volunteer_id TEXT NOT NULL,
    variant_id TEXT NOT NULL,
    quantity INTEGER NOT NULL,
    PRIMARY KEY (volunteer_id, variant_id)
);
CREATE TABLE IF NOT EXISTS storage_items (
    storage_id TEXT NOT NULL,
    variant_id TEXT NOT NULL,
    quantity INTEGER NOT NULL,
    PRIMARY KEY (storage_id, variant_id)
);
CREATE TABLE IF NOT EXISTS pickup_requests (
    id TEXT PRIMARY KEY,
    pickup_point_id TEXT NOT NULL,
    created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS auctions (
    id TEXT PRIMARY KEY,
    pickup_request_id TEXT NOT NULL,
    status TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    expires_at INTEGER NOT NULL,
    winner_id TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS bids (
    auction_id TEXT NOT NULL,
    volunteer_id TEXT NOT NULL,
    accepted INTEGER NOT NULL,
    lat REAL,
    lon REAL,
    minutes REAL,
    score REAL,
    submitted_at INTEGER NOT NULL,
    PRIMARY KEY (auction_id, volunteer_id)
);
`

// querier is satisfied by both *sql.DB and *sql.Tx so the same statements
// serve direct calls and calls inside WithTx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLite persists engine state to a SQLite database.
type SQLite struct {
	db *sql.DB // nil inside a transaction
	q  querier
}

// NewSQLite opens or creates the database at path and ensures schema.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLite{db: db, q: db}, nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func nullCoord(c *model.Coordinate) (lat, lon sql.NullFloat64) {
	if c != nil {
		lat = sql.NullFloat64{Float64: c.Lat, Valid: true}
		lon = sql.NullFloat64{Float64: c.Lon, Valid: true}
	}
	return lat, lon
}

func coordFromNull(lat, lon sql.NullFloat64) *model.Coordinate {
	if !lat.Valid || !lon.Valid {
		return nil
	}
	return &model.Coordinate{Lat: lat.Float64, Lon: lon.Float64}
}

func (s *SQLite) CreateVolunteer(ctx context.Context, v model.Volunteer) error {
	lat, lon := nullCoord(v.Location)
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO volunteers (id, name, karma, capacity, lat, lon) VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET name=excluded.name, karma=excluded.karma,
         capacity=excluded.capacity, lat=excluded.lat, lon=excluded.lon`,
		v.ID, v.Name, v.Karma, v.Capacity, lat, lon)
	return err
}

func scanVolunteer(row interface{ Scan(...any) error }) (model.Volunteer, error) {
	var v model.Volunteer
	var lat, lon sql.NullFloat64
	if err := row.Scan(&v.ID, &v.Name, &v.Karma, &v.Capacity, &lat, &lon); err != nil {
		return model.Volunteer{}, err
	}
	v.Location = coordFromNull(lat, lon)
	return v, nil
}

func (s *SQLite) GetVolunteer(ctx context.Context, id string) (model.Volunteer, error) {
	v, err := scanVolunteer(s.q.QueryRowContext(ctx,
		`SELECT id, name, karma, capacity, lat, lon FROM volunteers WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return model.Volunteer{}, ErrNotFound
	}
	return v, err
}

func (s *SQLite) ListVolunteers(ctx context.Context) ([]model.Volunteer, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, name, karma, capacity, lat, lon FROM volunteers ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []model.Volunteer
	for rows.Next() {
		v, err := scanVolunteer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *SQLite) SetVolunteerLocation(ctx context.Context, id string, loc model.Coordinate) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE volunteers SET lat = ?, lon = ? WHERE id = ?`, loc.Lat, loc.Lon, id)
	if err != nil {
		return err
	}
	return notFoundIfZero(res)
}

func notFoundIfZero(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) CreatePickupPoint(ctx context.Context, p model.PickupPoint) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO pickup_points (id, name, location) VALUES (?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET name=excluded.name, location=excluded.location`,
		p.ID, p.Name, p.Location)
	return err
}

func (s *SQLite) GetPickupPoint(ctx context.Context, id string) (model.PickupPoint, error) {
	var p model.PickupPoint
	err := s.q.QueryRowContext(ctx,
		`SELECT id, name, location FROM pickup_points WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.Location)
	if err == sql.ErrNoRows {
		return model.PickupPoint{}, ErrNotFound
	}
	return p, err
}

func (s *SQLite) CreateDropOffPoint(ctx context.Context, p model.DropOffPoint) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO drop_off_points (id, name, location) VALUES (?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET name=excluded.name, location=excluded.location`,
		p.ID, p.Name, p.Location)
	return err
}

func (s *SQLite) ListDropOffPoints(ctx context.Context) ([]model.DropOffPoint, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, name, location FROM drop_off_points ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []model.DropOffPoint
	for rows.Next() {
		var p model.DropOffPoint
		if err := rows.Scan(&p.ID, &p.Name, &p.Location); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLite) CreateStoragePoint(ctx context.Context, p model.StoragePoint) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO storage_points (id, name, location, max_volume) VALUES (?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET name=excluded.name, location=excluded.location,
         max_volume=excluded.max_volume`,
		p.ID, p.Name, p.Location, p.MaxVolume)
	return err
}

func (s *SQLite) GetStoragePoint(ctx context.Context, id string) (model.StoragePoint, error) {
	var p model.StoragePoint
	err := s.q.QueryRowContext(ctx,
		`SELECT id, name, location, max_volume FROM storage_points WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.Location, &p.MaxVolume)
	if err == sql.ErrNoRows {
		return model.StoragePoint{}, ErrNotFound
	}
	return p, err
}

func (s *SQLite) CreateItemVariant(ctx context.Context, v model.ItemVariant) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO item_variants (id, name, unit_volume) VALUES (?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET name=excluded.name, unit_volume=excluded.unit_volume`,
		v.ID, v.Name, v.UnitVolume)
	return err
}

func (s *SQLite) GetItemVariant(ctx context.Context, id string) (model.ItemVariant, error) {
	var v model.ItemVariant
	err := s.q.QueryRowContext(ctx,
		`SELECT id, name, unit_volume FROM item_variants WHERE id = ?`, id).
		Scan(&v.ID, &v.Name, &v.UnitVolume)
	if err == sql.ErrNoRows {
		return model.ItemVariant{}, ErrNotFound
	}
	return v, err
}

func (s *SQLite) SetItemsAtPickupPoint(ctx context.Context, pointID, variantID string, quantity int) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO pickup_items (point_id, variant_id, quantity) VALUES (?, ?, ?)
         ON CONFLICT(point_id, variant_id) DO UPDATE SET quantity=excluded.quantity`,
		pointID, variantID, quantity)
	return err
}

func (s *SQLite) listQuantities(ctx context.Context, table, ownerCol, ownerID string) ([]model.ItemQuantity, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT variant_id, quantity FROM `+table+` WHERE `+ownerCol+` = ? ORDER BY rowid`, ownerID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []model.ItemQuantity
	for rows.Next() {
		var q model.ItemQuantity
		if err := rows.Scan(&q.VariantID, &q.Quantity); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *SQLite) ListItemsAtPickupPoint(ctx context.Context, pointID string) ([]model.ItemQuantity, error) {
	return s.listQuantities(ctx, "pickup_items", "point_id", pointID)
}

func (s *SQLite) addQuantity(ctx context.Context, table, ownerCol, ownerID, variantID string, delta int) error {
	if delta > 0 {
		_, err := s.q.ExecContext(ctx,
			`INSERT INTO `+table+` (`+ownerCol+`, variant_id, quantity) VALUES (?, ?, ?)
             ON CONFLICT(`+ownerCol+`, variant_id) DO UPDATE SET quantity = quantity + excluded.quantity`,
			ownerID, variantID, delta)
		return err
	}
	// A withdrawal from an absent record is a no-op, not a create.
	_, err := s.q.ExecContext(ctx,
		`UPDATE `+table+` SET quantity = quantity + ? WHERE `+ownerCol+` = ? AND variant_id = ?`,
		delta, ownerID, variantID)
	return err
}

func (s *SQLite) AddCarItems(ctx context.Context, volunteerID, variantID string, delta int) error {
	return s.addQuantity(ctx, "car_items", "volunteer_id", volunteerID, variantID, delta)
}

func (s *SQLite) ListCarItems(ctx context.Context, volunteerID string) ([]model.ItemQuantity, error) {
	return s.listQuantities(ctx, "car_items", "volunteer_id", volunteerID)
}

func (s *SQLite) AddStorageItems(ctx context.Context, storageID, variantID string, delta int) error {
	return s.addQuantity(ctx, "storage_items", "storage_id", storageID, variantID, delta)
}

func (s *SQLite) ListStorageItems(ctx context.Context, storageID string) ([]model.ItemQuantity, error) {
	return s.listQuantities(ctx, "storage_items", "storage_id", storageID)
}

func (s *SQLite) CreatePickupRequest(ctx context.Context, r model.PickupRequest) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO pickup_requests (id, pickup_point_id, created_at) VALUES (?, ?, ?)`,
		r.ID, r.PickupPointID, r.CreatedAt.UnixNano())
	return err
}

func (s *SQLite) GetPickupRequest(ctx context.Context, id string) (model.PickupRequest, error) {
	var r model.PickupRequest
	var createdAt int64
	err := s.q.QueryRowContext(ctx,
		`SELECT id, pickup_point_id, created_at FROM pickup_requests WHERE id = ?`, id).
		Scan(&r.ID, &r.PickupPointID, &createdAt)
	if err == sql.ErrNoRows {
		return model.PickupRequest{}, ErrNotFound
	}
	if err != nil {
		return model.PickupRequest{}, err
	}
	r.CreatedAt = time.Unix(0, createdAt)
	return r, nil
}

func (s *SQLite) DeletePickupRequest(ctx context.Context, id string) error {
	return s.WithTx(ctx, func(tx Store) error {
		t := tx.(*SQLite)
		if _, err := t.q.ExecContext(ctx,
			`DELETE FROM bids WHERE auction_id IN
             (SELECT id FROM auctions WHERE pickup_request_id = ?)`, id); err != nil {
			return err
		}
		if _, err := t.q.ExecContext(ctx,
			`DELETE FROM auctions WHERE pickup_request_id = ?`, id); err != nil {
			return err
		}
		res, err := t.q.ExecContext(ctx, `DELETE FROM pickup_requests WHERE id = ?`, id)
		if err != nil {
			return err
		}
		return notFoundIfZero(res)
	})
}

func (s *SQLite) CreateAuction(ctx context.Context, a model.Auction) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO auctions (id, pickup_request_id, status, created_at, expires_at, winner_id)
         VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.PickupRequestID, string(a.Status), a.CreatedAt.UnixNano(), a.ExpiresAt.UnixNano(), a.WinnerID)
	return err
}

func scanAuction(row interface{ Scan(...any) error }) (model.Auction, error) {
	var a model.Auction
	var status string
	var createdAt, expiresAt int64
	if err := row.Scan(&a.ID, &a.PickupRequestID, &status, &createdAt, &expiresAt, &a.WinnerID); err != nil {
		return model.Auction{}, err
	}
	a.Status = model.AuctionStatus(status)
	a.CreatedAt = time.Unix(0, createdAt)
	a.ExpiresAt = time.Unix(0, expiresAt)
	return a, nil
}

func (s *SQLite) GetAuction(ctx context.Context, id string) (model.Auction, error) {
	a, err := scanAuction(s.q.QueryRowContext(ctx,
		`SELECT id, pickup_request_id, status, created_at, expires_at, winner_id
         FROM auctions WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return model.Auction{}, ErrNotFound
	}
	return a, err
}

func (s *SQLite) ActiveAuctionForRequest(ctx context.Context, requestID string) (model.Auction, error) {
	a, err := scanAuction(s.q.QueryRowContext(ctx,
		`SELECT id, pickup_request_id, status, created_at, expires_at, winner_id
         FROM auctions WHERE pickup_request_id = ? AND status = ?`,
		requestID, string(model.AuctionActive)))
	if err == sql.ErrNoRows {
		return model.Auction{}, ErrNotFound
	}
	return a, err
}

func (s *SQLite) ListActiveAuctions(ctx context.Context) ([]model.Auction, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, pickup_request_id, status, created_at, expires_at, winner_id
         FROM auctions WHERE status = ? ORDER BY rowid`, string(model.AuctionActive))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []model.Auction
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLite) TransitionAuction(ctx context.Context, id string, from, to model.AuctionStatus, winnerID string) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE auctions SET status = ?, winner_id = ? WHERE id = ? AND status = ?`,
		string(to), winnerID, id, string(from))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var exists int
	if err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM auctions WHERE id = ?`, id).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return ErrNotFound
	}
	return ErrStaleTransition
}

func (s *SQLite) UpsertBid(ctx context.Context, b model.Bid) error {
	lat, lon := nullCoord(b.Location)
	var minutes, score sql.NullFloat64
	if b.EstimatedMinutes != nil {
		minutes = sql.NullFloat64{Float64: *b.EstimatedMinutes, Valid: true}
	}
	if b.Score != nil {
		score = sql.NullFloat64{Float64: *b.Score, Valid: true}
	}
	// ON CONFLICT keeps the original rowid so ListBids preserves first
	// submission order across re-bids.
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO bids (auction_id, volunteer_id, accepted, lat, lon, minutes, score, submitted_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(auction_id, volunteer_id) DO UPDATE SET accepted=excluded.accepted,
         lat=excluded.lat, lon=excluded.lon, minutes=excluded.minutes,
         score=excluded.score, submitted_at=excluded.submitted_at`,
		b.AuctionID, b.VolunteerID, b.Accepted, lat, lon, minutes, score, b.SubmittedAt.UnixNano())
	return err
}

func (s *SQLite) ListBids(ctx context.Context, auctionID string) ([]model.Bid, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT auction_id, volunteer_id, accepted, lat, lon, minutes, score, submitted_at
         FROM bids WHERE auction_id = ? ORDER BY rowid`, auctionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []model.Bid
	for rows.Next() {
		var b model.Bid
		var lat, lon, minutes, score sql.NullFloat64
		var submittedAt int64
		if err := rows.Scan(&b.AuctionID, &b.VolunteerID, &b.Accepted, &lat, &lon, &minutes, &score, &submittedAt); err != nil {
			return nil, err
		}
		b.Location = coordFromNull(lat, lon)
		if minutes.Valid {
			v := minutes.Float64
			b.EstimatedMinutes = &v
		}
		if score.Valid {
			v := score.Float64
			b.Score = &v
		}
		b.SubmittedAt = time.Unix(0, submittedAt)
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *SQLite) SetBidScore(ctx context.Context, auctionID, volunteerID string, minutes, score float64) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE bids SET minutes = ?, score = ? WHERE auction_id = ? AND volunteer_id = ?`,
		minutes, score, auctionID, volunteerID)
	if err != nil {
		return err
	}
	return notFoundIfZero(res)
}

// WithTx runs fn inside a database transaction. Nested calls reuse the
// ambient transaction.
func (s *SQLite) WithTx(ctx context.Context, fn func(Store) error) error {
	if s.db == nil {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(&SQLite{q: tx}); err != nil {
		if rErr := tx.Rollback(); rErr != nil {
			return fmt.Errorf("rollback: %v (cause: %w)", rErr, err)
		}
		return err
	}
	return tx.Commit()
}
