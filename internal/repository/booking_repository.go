// Package repository contains data access logic for bookings. This file
// defines the storage contract shared by every engine and the database/sql
// implementation used with MySQL (production) and SQLite (tests).
package repository

import (
	"context"      // context for controlling query lifetime
	"database/sql" // sql provides DB abstraction
	"errors"       // errors for sentinel comparisons

	"github.com/iliyamo/gym-booking/internal/model"
)

// BookingRepository is the keyed collection the booking core persists to.
// It stores exactly what it is given; validation, defaults and conflict
// checks live in the service.
//
// Implementations must be safe for concurrent use.  A single call is atomic
// from the caller's perspective, but there is no isolation between separate
// calls; callers that need check-then-write semantics must serialise
// themselves (see service.Locker).
type BookingRepository interface {
	// List returns every booking, unfiltered and in no particular order.
	List(ctx context.Context) ([]model.Booking, error)
	// Get returns the booking with the given ID or ErrNotFound.
	Get(ctx context.Context, id string) (model.Booking, error)
	// Insert stores a new booking.  Reusing an ID yields ErrConflict.
	Insert(ctx context.Context, b model.Booking) error
	// Update replaces the stored booking with the same ID or returns ErrNotFound.
	Update(ctx context.Context, b model.Booking) error
}

// SQLBookingRepo manages persistence for bookings on a database/sql handle.
// Queries only use portable SQL and '?' placeholders so that the same code
// runs against MySQL and SQLite.
type SQLBookingRepo struct {
	db *sql.DB
}

// NewSQLBookingRepo constructs a SQLBookingRepo with the given DB handle.
func NewSQLBookingRepo(db *sql.DB) *SQLBookingRepo {
	return &SQLBookingRepo{db: db}
}

// bookingsDDL creates the bookings table.  The (resource_id, start_time)
// index serves per-resource conflict scans.
var bookingsDDL = []string{
	`CREATE TABLE IF NOT EXISTS bookings (
		id          VARCHAR(64)  NOT NULL PRIMARY KEY,
		series_id   VARCHAR(64)  NULL,
		title       VARCHAR(255) NOT NULL,
		description TEXT         NOT NULL,
		start_time  DATETIME     NOT NULL,
		end_time    DATETIME     NOT NULL,
		resource_id VARCHAR(64)  NOT NULL,
		member_id   VARCHAR(64)  NULL,
		type        VARCHAR(32)  NOT NULL,
		status      VARCHAR(16)  NOT NULL,
		color       VARCHAR(32)  NOT NULL,
		created_at  DATETIME     NOT NULL,
		updated_at  DATETIME     NOT NULL
	)`,
	`CREATE INDEX idx_bookings_resource_start ON bookings (resource_id, start_time)`,
}

// Migrate creates the bookings table when it does not exist yet.  The index
// statement fails harmlessly when the index is already present, so its
// error is ignored.
func (r *SQLBookingRepo) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, bookingsDDL[0]); err != nil {
		return err
	}
	_, _ = r.db.ExecContext(ctx, bookingsDDL[1])
	return nil
}

const bookingColumns = `id, series_id, title, description, start_time, end_time, resource_id, member_id, type, status, color, created_at, updated_at`

// List returns all bookings.  Ordering and filtering are the caller's job.
func (r *SQLBookingRepo) List(ctx context.Context) ([]model.Booking, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+bookingColumns+` FROM bookings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Get retrieves a booking by its ID.  It returns ErrNotFound if there is
// no matching row.
func (r *SQLBookingRepo) Get(ctx context.Context, id string) (model.Booking, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Booking{}, ErrNotFound
		}
		return model.Booking{}, err
	}
	return b, nil
}

// Insert writes a new row.  A duplicate primary key is reported as
// ErrConflict; the check runs first so that the error does not depend on
// driver-specific duplicate-key codes.
func (r *SQLBookingRepo) Insert(ctx context.Context, b model.Booking) error {
	var exists int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM bookings WHERE id = ?`, b.ID).Scan(&exists)
	if err == nil {
		return ErrConflict
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	const q = `INSERT INTO bookings (` + bookingColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, q,
		b.ID, nullString(b.SeriesID), b.Title, b.Description,
		b.StartTime.UTC(), b.EndTime.UTC(), b.ResourceID, nullString(b.MemberID),
		b.Type, string(b.Status), b.Color, b.CreatedAt.UTC(), b.UpdatedAt.UTC(),
	)
	return err
}

// Update overwrites every mutable column of the booking.  When no row has
// the given ID it returns ErrNotFound.
func (r *SQLBookingRepo) Update(ctx context.Context, b model.Booking) error {
	const q = `UPDATE bookings
               SET series_id = ?, title = ?, description = ?, start_time = ?, end_time = ?,
                   resource_id = ?, member_id = ?, type = ?, status = ?, color = ?, updated_at = ?
               WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q,
		nullString(b.SeriesID), b.Title, b.Description, b.StartTime.UTC(), b.EndTime.UTC(),
		b.ResourceID, nullString(b.MemberID), b.Type, string(b.Status), b.Color, b.UpdatedAt.UTC(),
		b.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// MySQL reports 0 affected rows when nothing changed, so confirm
		// the row really is missing before failing.
		if _, err := r.Get(ctx, b.ID); err != nil {
			return err
		}
	}
	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(s rowScanner) (model.Booking, error) {
	var (
		b        model.Booking
		seriesID sql.NullString
		memberID sql.NullString
		status   string
	)
	err := s.Scan(
		&b.ID, &seriesID, &b.Title, &b.Description, &b.StartTime, &b.EndTime,
		&b.ResourceID, &memberID, &b.Type, &status, &b.Color, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return model.Booking{}, err
	}
	if seriesID.Valid {
		v := seriesID.String
		b.SeriesID = &v
	}
	if memberID.Valid {
		v := memberID.String
		b.MemberID = &v
	}
	b.Status = model.BookingStatus(status)
	b.StartTime = b.StartTime.UTC()
	b.EndTime = b.EndTime.UTC()
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	return b, nil
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}
