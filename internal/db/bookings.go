package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"slotbook/internal/model"
)

// DefaultFilterLimit caps FilterBookings when the filter sets no limit.
const DefaultFilterLimit = 5000

const bookingColumns = `id, business_id, staff_id, service_id, client_phone, client_name,
       date, time, duration, status, notes, is_first_booking, booked_by_owner,
       recurring_id, idempotency_key, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(s rowScanner) (*model.Booking, error) {
	var b model.Booking
	var date string
	var clock int
	var key sql.NullString
	if err := s.Scan(
		&b.ID, &b.BusinessID, &b.StaffID, &b.ServiceID, &b.ClientPhone, &b.ClientName,
		&date, &clock, &b.Duration, &b.Status, &b.Notes, &b.IsFirstBooking, &b.BookedByOwner,
		&b.RecurringID, &key, &b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return nil, err
	}
	d, err := model.ParseDate(date)
	if err != nil {
		return nil, fmt.Errorf("booking %s: bad date %q: %w", b.ID, date, err)
	}
	b.Date = d
	b.Time = model.Clock(clock)
	if key.Valid {
		b.IdempotencyKey = key.String
	}
	return &b, nil
}

// CreateBooking inserts a booking. A reused idempotency key returns
// model.ErrDuplicate.
func (db *DB) CreateBooking(ctx context.Context, b *model.Booking) error {
	if b == nil {
		return fmt.Errorf("booking is nil")
	}
	if err := b.Validate(); err != nil {
		return err
	}

	now := time.Now()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now

	_, err := db.ExecContext(ctx, `
        INSERT INTO bookings (
            id, business_id, staff_id, service_id, client_phone, client_phone_norm, client_name,
            date, time, duration, status, notes, is_first_booking, booked_by_owner,
            recurring_id, idempotency_key, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.BusinessID, b.StaffID, b.ServiceID, b.ClientPhone, model.NormalizePhone(b.ClientPhone), b.ClientName,
		model.FormatDate(b.Date), int(b.Time), b.Duration, string(b.Status), b.Notes,
		boolToInt(b.IsFirstBooking), boolToInt(b.BookedByOwner),
		b.RecurringID, sql.NullString{String: b.IdempotencyKey, Valid: b.IdempotencyKey != ""},
		b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create booking %s: %w", b.ID, model.ErrDuplicate)
		}
		return fmt.Errorf("create booking %s: %w", b.ID, err)
	}
	return nil
}

// GetBooking returns a booking by id.
func (db *DB) GetBooking(ctx context.Context, id string) (*model.Booking, error) {
	row := db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("booking %s: %w", id, model.ErrNotFound)
	}
	return b, err
}

// GetBookingByKey returns the booking created with an idempotency key.
func (db *DB) GetBookingByKey(ctx context.Context, key string) (*model.Booking, error) {
	row := db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE idempotency_key = ?`, key)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("booking with key %s: %w", key, model.ErrNotFound)
	}
	return b, err
}

// UpdateBooking rewrites the mutable fields of a booking in place.
func (db *DB) UpdateBooking(ctx context.Context, b *model.Booking) error {
	if b == nil {
		return fmt.Errorf("booking is nil")
	}
	if err := b.Validate(); err != nil {
		return err
	}
	b.UpdatedAt = time.Now()

	res, err := db.ExecContext(ctx, `
        UPDATE bookings
        SET staff_id = ?, service_id = ?, client_phone = ?, client_phone_norm = ?, client_name = ?,
            date = ?, time = ?, duration = ?, status = ?, notes = ?, updated_at = ?
        WHERE id = ?`,
		b.StaffID, b.ServiceID, b.ClientPhone, model.NormalizePhone(b.ClientPhone), b.ClientName,
		model.FormatDate(b.Date), int(b.Time), b.Duration, string(b.Status), b.Notes, b.UpdatedAt,
		b.ID,
	)
	if err != nil {
		return fmt.Errorf("update booking %s: %w", b.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("booking %s: %w", b.ID, model.ErrNotFound)
	}
	return nil
}

// FilterBookings returns bookings matching every set field of f, ordered by
// date and time.
func (db *DB) FilterBookings(ctx context.Context, f model.BookingFilter) ([]model.Booking, error) {
	var sb strings.Builder
	var args []any
	sb.WriteString(`SELECT ` + bookingColumns + ` FROM bookings WHERE 1 = 1`)

	if f.BusinessID != "" {
		sb.WriteString(` AND business_id = ?`)
		args = append(args, f.BusinessID)
	}
	if f.StaffID != "" {
		sb.WriteString(` AND staff_id = ?`)
		args = append(args, f.StaffID)
	}
	if f.ClientPhone != "" {
		sb.WriteString(` AND client_phone_norm = ?`)
		args = append(args, model.NormalizePhone(f.ClientPhone))
	}
	if !f.Date.IsZero() {
		sb.WriteString(` AND date = ?`)
		args = append(args, model.FormatDate(f.Date))
	}
	if !f.DateFrom.IsZero() {
		sb.WriteString(` AND date >= ?`)
		args = append(args, model.FormatDate(f.DateFrom))
	}
	if !f.DateTo.IsZero() {
		sb.WriteString(` AND date <= ?`)
		args = append(args, model.FormatDate(f.DateTo))
	}
	if len(f.Statuses) > 0 {
		sb.WriteString(` AND status IN (?` + strings.Repeat(`, ?`, len(f.Statuses)-1) + `)`)
		for _, s := range f.Statuses {
			args = append(args, string(s))
		}
	}

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultFilterLimit
	}
	sb.WriteString(` ORDER BY date, time, staff_id LIMIT ?`)
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("filter bookings: %w", err)
	}
	defer rows.Close()

	var bookings []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}
