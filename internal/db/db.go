// Package db is the SQLite store behind the booking service: bookings,
// the schedule catalog and recurring rules.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// DB wraps sql.DB for the booking service.
type DB struct {
	*sql.DB
	logger *zerolog.Logger
}

// NewDB opens database at path and runs migrations.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	conn, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer keeps SQLite from returning SQLITE_BUSY under concurrent submits.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := createTables(conn); err != nil {
		_ = conn.Close()
		return nil, err
	}

	logger.Info().Str("path", path).Msg("database ready")
	return &DB{DB: conn, logger: logger}, nil
}

// Ping checks the connection.
func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS businesses (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            timezone TEXT NOT NULL DEFAULT '',
            working_hours TEXT NOT NULL DEFAULT '{}',
            require_approval_for_new_clients BOOLEAN,
            cancellation_hours_limit INTEGER NOT NULL DEFAULT 0,
            booking_window_enabled BOOLEAN NOT NULL DEFAULT 0,
            booking_window_days INTEGER NOT NULL DEFAULT 0,
            new_client_approval BOOLEAN NOT NULL DEFAULT 0,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,

		`CREATE TABLE IF NOT EXISTS staff (
            id TEXT PRIMARY KEY,
            business_id TEXT NOT NULL,
            name TEXT NOT NULL,
            schedule TEXT NOT NULL DEFAULT '{}',
            uses_business_hours BOOLEAN NOT NULL DEFAULT 0,
            is_active BOOLEAN NOT NULL DEFAULT 1,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            FOREIGN KEY (business_id) REFERENCES businesses(id)
        )`,

		`CREATE TABLE IF NOT EXISTS services (
            id TEXT PRIMARY KEY,
            business_id TEXT NOT NULL,
            name TEXT NOT NULL,
            duration INTEGER NOT NULL,
            price REAL NOT NULL DEFAULT 0,
            color TEXT NOT NULL DEFAULT '',
            is_active BOOLEAN NOT NULL DEFAULT 1,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            FOREIGN KEY (business_id) REFERENCES businesses(id)
        )`,

		// staff_id is '' for overrides that apply to every staff member.
		`CREATE TABLE IF NOT EXISTS schedule_overrides (
            id TEXT PRIMARY KEY,
            business_id TEXT NOT NULL,
            date TEXT NOT NULL,
            staff_id TEXT NOT NULL DEFAULT '',
            is_day_off BOOLEAN NOT NULL DEFAULT 0,
            shifts TEXT NOT NULL DEFAULT '[]',
            reason TEXT NOT NULL DEFAULT '',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            UNIQUE (business_id, date, staff_id),
            FOREIGN KEY (business_id) REFERENCES businesses(id)
        )`,

		`CREATE TABLE IF NOT EXISTS bookings (
            id TEXT PRIMARY KEY,
            business_id TEXT NOT NULL,
            staff_id TEXT NOT NULL,
            service_id TEXT NOT NULL,
            client_phone TEXT NOT NULL DEFAULT '',
            client_phone_norm TEXT NOT NULL DEFAULT '',
            client_name TEXT NOT NULL DEFAULT '',
            date TEXT NOT NULL,
            time INTEGER NOT NULL,
            duration INTEGER NOT NULL,
            status TEXT NOT NULL,
            notes TEXT NOT NULL DEFAULT '',
            is_first_booking BOOLEAN NOT NULL DEFAULT 0,
            booked_by_owner BOOLEAN NOT NULL DEFAULT 0,
            recurring_id TEXT NOT NULL DEFAULT '',
            idempotency_key TEXT UNIQUE,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,

		`CREATE TABLE IF NOT EXISTS recurring_appointments (
            id TEXT PRIMARY KEY,
            business_id TEXT NOT NULL,
            client_name TEXT NOT NULL DEFAULT '',
            client_phone TEXT NOT NULL,
            service_id TEXT NOT NULL,
            staff_id TEXT NOT NULL,
            day_of_week INTEGER NOT NULL,
            time INTEGER NOT NULL,
            duration INTEGER NOT NULL,
            frequency TEXT NOT NULL,
            biweekly_start_date TEXT NOT NULL DEFAULT '',
            is_active BOOLEAN NOT NULL DEFAULT 1,
            last_booking_date TEXT NOT NULL DEFAULT '',
            notes TEXT NOT NULL DEFAULT '',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,

		// Indexes
		`CREATE INDEX IF NOT EXISTS idx_staff_business ON staff(business_id)`,
		`CREATE INDEX IF NOT EXISTS idx_services_business ON services(business_id)`,
		`CREATE INDEX IF NOT EXISTS idx_overrides_business_date ON schedule_overrides(business_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_staff_date ON bookings(staff_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_business_phone ON bookings(business_id, client_phone_norm)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,
		`CREATE INDEX IF NOT EXISTS idx_recurring_business ON recurring_appointments(business_id, is_active)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
