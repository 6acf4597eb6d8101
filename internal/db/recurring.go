package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"slotbook/internal/model"
)

const recurringColumns = `id, business_id, client_name, client_phone, service_id, staff_id,
       day_of_week, time, duration, frequency, biweekly_start_date, is_active,
       last_booking_date, notes, created_at, updated_at`

func scanRecurring(s rowScanner) (*model.RecurringAppointment, error) {
	var r model.RecurringAppointment
	var weekday, clock int
	var anchor, last string
	if err := s.Scan(
		&r.ID, &r.BusinessID, &r.ClientName, &r.ClientPhone, &r.ServiceID, &r.StaffID,
		&weekday, &clock, &r.Duration, &r.Frequency, &anchor, &r.IsActive,
		&last, &r.Notes, &r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	r.DayOfWeek = time.Weekday(weekday)
	r.Time = model.Clock(clock)

	var err error
	if r.BiweeklyStartDate, err = parseOptionalDate(anchor); err != nil {
		return nil, fmt.Errorf("recurring %s biweekly_start_date: %w", r.ID, err)
	}
	if r.LastBookingDate, err = parseOptionalDate(last); err != nil {
		return nil, fmt.Errorf("recurring %s last_booking_date: %w", r.ID, err)
	}
	return &r, nil
}

func parseOptionalDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return model.ParseDate(s)
}

func formatOptionalDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return model.FormatDate(t)
}

// CreateRecurring stores a recurring rule.
func (db *DB) CreateRecurring(ctx context.Context, r *model.RecurringAppointment) error {
	if r == nil {
		return fmt.Errorf("recurring rule is nil")
	}
	if err := r.Validate(); err != nil {
		return err
	}
	now := time.Now()
	r.CreatedAt, r.UpdatedAt = now, now

	_, err := db.ExecContext(ctx, `
        INSERT INTO recurring_appointments (
            id, business_id, client_name, client_phone, service_id, staff_id,
            day_of_week, time, duration, frequency, biweekly_start_date, is_active,
            last_booking_date, notes, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.BusinessID, r.ClientName, r.ClientPhone, r.ServiceID, r.StaffID,
		int(r.DayOfWeek), int(r.Time), r.Duration, string(r.Frequency), formatOptionalDate(r.BiweeklyStartDate),
		boolToInt(r.IsActive), formatOptionalDate(r.LastBookingDate), r.Notes, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create recurring %s: %w", r.ID, model.ErrDuplicate)
		}
		return fmt.Errorf("create recurring %s: %w", r.ID, err)
	}
	return nil
}

// GetRecurring returns a rule by id.
func (db *DB) GetRecurring(ctx context.Context, id string) (*model.RecurringAppointment, error) {
	row := db.QueryRowContext(ctx, `SELECT `+recurringColumns+` FROM recurring_appointments WHERE id = ?`, id)
	r, err := scanRecurring(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("recurring %s: %w", id, model.ErrNotFound)
	}
	return r, err
}

// UpdateRecurring saves the mutable fields of a rule.
func (db *DB) UpdateRecurring(ctx context.Context, r *model.RecurringAppointment) error {
	if r == nil {
		return fmt.Errorf("recurring rule is nil")
	}
	r.UpdatedAt = time.Now()
	res, err := db.ExecContext(ctx, `
        UPDATE recurring_appointments
        SET is_active = ?, last_booking_date = ?, notes = ?, updated_at = ?
        WHERE id = ?`,
		boolToInt(r.IsActive), formatOptionalDate(r.LastBookingDate), r.Notes, r.UpdatedAt, r.ID,
	)
	if err != nil {
		return fmt.Errorf("update recurring %s: %w", r.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("recurring %s: %w", r.ID, model.ErrNotFound)
	}
	return nil
}

// ListActiveRecurring returns the active rules of a business.
func (db *DB) ListActiveRecurring(ctx context.Context, businessID string) ([]model.RecurringAppointment, error) {
	rows, err := db.QueryContext(ctx, `
        SELECT `+recurringColumns+` FROM recurring_appointments
        WHERE business_id = ? AND is_active = 1
        ORDER BY created_at`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []model.RecurringAppointment
	for rows.Next() {
		r, err := scanRecurring(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *r)
	}
	return rules, rows.Err()
}
