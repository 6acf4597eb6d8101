package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"slotbook/internal/model"
)

// GetBusiness returns a business with its policy and working hours.
func (db *DB) GetBusiness(ctx context.Context, id string) (*model.Business, error) {
	var b model.Business
	var hours string
	var requireApproval sql.NullBool
	err := db.QueryRowContext(ctx, `
        SELECT id, name, timezone, working_hours, require_approval_for_new_clients,
               cancellation_hours_limit, booking_window_enabled, booking_window_days, new_client_approval
        FROM businesses WHERE id = ?`, id,
	).Scan(
		&b.ID, &b.Name, &b.Timezone, &hours, &requireApproval,
		&b.Policy.CancellationHoursLimit, &b.Policy.BookingWindowEnabled, &b.Policy.BookingWindowDays,
		&b.Features.NewClientApproval,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("business %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if requireApproval.Valid {
		v := requireApproval.Bool
		b.Policy.RequireApprovalForNewClients = &v
	}
	if err := json.Unmarshal([]byte(hours), &b.WorkingHours); err != nil {
		return nil, fmt.Errorf("business %s working hours: %w", id, err)
	}
	return &b, nil
}

// UpsertBusiness inserts or updates a business, preserving created_at.
func (db *DB) UpsertBusiness(ctx context.Context, b model.Business) error {
	hours, err := json.Marshal(b.WorkingHours)
	if err != nil {
		return fmt.Errorf("encode working hours: %w", err)
	}
	var requireApproval sql.NullBool
	if b.Policy.RequireApprovalForNewClients != nil {
		requireApproval = sql.NullBool{Bool: *b.Policy.RequireApprovalForNewClients, Valid: true}
	}

	now := time.Now()
	_, err = db.ExecContext(ctx, `
        INSERT INTO businesses (
            id, name, timezone, working_hours, require_approval_for_new_clients,
            cancellation_hours_limit, booking_window_enabled, booking_window_days, new_client_approval,
            created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            name = excluded.name,
            timezone = excluded.timezone,
            working_hours = excluded.working_hours,
            require_approval_for_new_clients = excluded.require_approval_for_new_clients,
            cancellation_hours_limit = excluded.cancellation_hours_limit,
            booking_window_enabled = excluded.booking_window_enabled,
            booking_window_days = excluded.booking_window_days,
            new_client_approval = excluded.new_client_approval,
            updated_at = excluded.updated_at`,
		b.ID, b.Name, b.Timezone, string(hours), requireApproval,
		b.Policy.CancellationHoursLimit, boolToInt(b.Policy.BookingWindowEnabled), b.Policy.BookingWindowDays,
		boolToInt(b.Features.NewClientApproval), now, now,
	)
	return err
}

// GetStaff returns an active staff member.
func (db *DB) GetStaff(ctx context.Context, id string) (*model.Staff, error) {
	var s model.Staff
	var schedule string
	err := db.QueryRowContext(ctx, `
        SELECT id, business_id, name, schedule, uses_business_hours
        FROM staff WHERE id = ? AND is_active = 1`, id,
	).Scan(&s.ID, &s.BusinessID, &s.Name, &schedule, &s.UsesBusinessHours)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("staff %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(schedule), &s.Schedule); err != nil {
		return nil, fmt.Errorf("staff %s schedule: %w", id, err)
	}
	return &s, nil
}

// UpsertStaff inserts or updates a staff member and marks it active.
func (db *DB) UpsertStaff(ctx context.Context, s model.Staff) error {
	schedule, err := json.Marshal(s.Schedule)
	if err != nil {
		return fmt.Errorf("encode schedule: %w", err)
	}
	now := time.Now()
	_, err = db.ExecContext(ctx, `
        INSERT INTO staff (id, business_id, name, schedule, uses_business_hours, is_active, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, 1, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            business_id = excluded.business_id,
            name = excluded.name,
            schedule = excluded.schedule,
            uses_business_hours = excluded.uses_business_hours,
            is_active = 1,
            updated_at = excluded.updated_at`,
		s.ID, s.BusinessID, s.Name, string(schedule), boolToInt(s.UsesBusinessHours), now, now,
	)
	return err
}

// GetService returns an active service.
func (db *DB) GetService(ctx context.Context, id string) (*model.Service, error) {
	var s model.Service
	err := db.QueryRowContext(ctx, `
        SELECT id, business_id, name, duration, price, color
        FROM services WHERE id = ? AND is_active = 1`, id,
	).Scan(&s.ID, &s.BusinessID, &s.Name, &s.Duration, &s.Price, &s.Color)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("service %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListServices returns the active services of a business ordered by name.
func (db *DB) ListServices(ctx context.Context, businessID string) ([]model.Service, error) {
	rows, err := db.QueryContext(ctx, `
        SELECT id, business_id, name, duration, price, color
        FROM services WHERE business_id = ? AND is_active = 1
        ORDER BY name, id`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var services []model.Service
	for rows.Next() {
		var s model.Service
		if err := rows.Scan(&s.ID, &s.BusinessID, &s.Name, &s.Duration, &s.Price, &s.Color); err != nil {
			return nil, err
		}
		services = append(services, s)
	}
	return services, rows.Err()
}

// UpsertService inserts or updates a service and marks it active.
func (db *DB) UpsertService(ctx context.Context, s model.Service) error {
	if err := s.Validate(); err != nil {
		return err
	}
	now := time.Now()
	_, err := db.ExecContext(ctx, `
        INSERT INTO services (id, business_id, name, duration, price, color, is_active, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            business_id = excluded.business_id,
            name = excluded.name,
            duration = excluded.duration,
            price = excluded.price,
            color = excluded.color,
            is_active = 1,
            updated_at = excluded.updated_at`,
		s.ID, s.BusinessID, s.Name, s.Duration, s.Price, s.Color, now, now,
	)
	return err
}

// ListOverrides returns the overrides of a business between from and to inclusive.
func (db *DB) ListOverrides(ctx context.Context, businessID string, from, to time.Time) ([]model.ScheduleOverride, error) {
	rows, err := db.QueryContext(ctx, `
        SELECT id, business_id, date, staff_id, is_day_off, shifts, reason
        FROM schedule_overrides
        WHERE business_id = ? AND date >= ? AND date <= ?
        ORDER BY date, staff_id`,
		businessID, model.FormatDate(from), model.FormatDate(to),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var overrides []model.ScheduleOverride
	for rows.Next() {
		var o model.ScheduleOverride
		var date, shifts string
		if err := rows.Scan(&o.ID, &o.BusinessID, &date, &o.StaffID, &o.IsDayOff, &shifts, &o.Reason); err != nil {
			return nil, err
		}
		if o.Date, err = model.ParseDate(date); err != nil {
			return nil, fmt.Errorf("override %s: bad date %q: %w", o.ID, date, err)
		}
		if err := json.Unmarshal([]byte(shifts), &o.Shifts); err != nil {
			return nil, fmt.Errorf("override %s shifts: %w", o.ID, err)
		}
		overrides = append(overrides, o)
	}
	return overrides, rows.Err()
}

// UpsertOverride creates or replaces the override for (business, date, staff).
func (db *DB) UpsertOverride(ctx context.Context, o *model.ScheduleOverride) error {
	if o == nil {
		return fmt.Errorf("override is nil")
	}
	if err := o.Validate(); err != nil {
		return err
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	shifts := o.Shifts
	if shifts == nil {
		shifts = []model.Shift{}
	}
	encoded, err := json.Marshal(shifts)
	if err != nil {
		return fmt.Errorf("encode shifts: %w", err)
	}

	now := time.Now()
	_, err = db.ExecContext(ctx, `
        INSERT INTO schedule_overrides (id, business_id, date, staff_id, is_day_off, shifts, reason, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(business_id, date, staff_id) DO UPDATE SET
            is_day_off = excluded.is_day_off,
            shifts = excluded.shifts,
            reason = excluded.reason,
            updated_at = excluded.updated_at`,
		o.ID, o.BusinessID, model.FormatDate(o.Date), o.StaffID, boolToInt(o.IsDayOff), string(encoded), o.Reason, now, now,
	)
	return err
}

// SetDayOff marks a date closed for one staff member, or everyone when staffID is empty.
func (db *DB) SetDayOff(ctx context.Context, businessID, staffID string, date time.Time, reason string) error {
	return db.UpsertOverride(ctx, &model.ScheduleOverride{
		BusinessID: businessID,
		Date:       model.Day(date),
		StaffID:    staffID,
		IsDayOff:   true,
		Reason:     reason,
	})
}

// DeleteOverride removes the override for (business, date, staff).
func (db *DB) DeleteOverride(ctx context.Context, businessID, staffID string, date time.Time) error {
	_, err := db.ExecContext(ctx,
		"DELETE FROM schedule_overrides WHERE business_id = ? AND staff_id = ? AND date = ?",
		businessID, staffID, model.FormatDate(date),
	)
	return err
}
