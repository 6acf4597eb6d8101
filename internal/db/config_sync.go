package db

import (
	"context"
	"fmt"
	"time"

	"slotbook/internal/config"
	"slotbook/internal/model"
)

// SyncCatalog applies catalog.yaml to the database. It upserts businesses,
// staff, services and overrides, deactivates staff and services that
// disappeared from the file, and deletes overrides no longer listed.
func (db *DB) SyncCatalog(ctx context.Context, cfg *config.CatalogConfig) error {
	if cfg == nil {
		return fmt.Errorf("catalog config is nil")
	}

	seenStaff := make(map[string]struct{})
	seenServices := make(map[string]struct{})

	for _, bc := range cfg.Businesses {
		if err := db.UpsertBusiness(ctx, bc.Business()); err != nil {
			return fmt.Errorf("sync business %s: %w", bc.ID, err)
		}

		for _, s := range bc.StaffMembers() {
			if err := db.UpsertStaff(ctx, s); err != nil {
				return fmt.Errorf("sync staff %s: %w", s.ID, err)
			}
			seenStaff[s.ID] = struct{}{}
		}

		for _, s := range bc.ServiceList() {
			if err := db.UpsertService(ctx, s); err != nil {
				return fmt.Errorf("sync service %s: %w", s.ID, err)
			}
			seenServices[s.ID] = struct{}{}
		}

		overrides := bc.OverrideList()
		for _, o := range overrides {
			if err := db.UpsertOverride(ctx, &o); err != nil {
				return fmt.Errorf("sync override %s %s: %w", bc.ID, o.Date.Format("2006-01-02"), err)
			}
		}
		if err := db.pruneOverrides(ctx, bc.ID, overrides); err != nil {
			return fmt.Errorf("prune overrides %s: %w", bc.ID, err)
		}
	}

	if err := db.deactivateMissing(ctx, "staff", seenStaff); err != nil {
		return err
	}
	if err := db.deactivateMissing(ctx, "services", seenServices); err != nil {
		return err
	}

	db.logger.Info().
		Int("businesses", len(cfg.Businesses)).
		Int("staff", len(seenStaff)).
		Int("services", len(seenServices)).
		Msg("catalog synced")
	return nil
}

// deactivateMissing flags rows of table whose id is not in seen. table is
// always a constant from this package.
func (db *DB) deactivateMissing(ctx context.Context, table string, seen map[string]struct{}) error {
	rows, err := db.QueryContext(ctx, `SELECT id FROM `+table+` WHERE is_active = 1`)
	if err != nil {
		return err
	}

	var missing []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		if _, ok := seen[id]; !ok {
			missing = append(missing, id)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	now := time.Now()
	for _, id := range missing {
		if _, err := db.ExecContext(ctx, `UPDATE `+table+` SET is_active = 0, updated_at = ? WHERE id = ?`, now, id); err != nil {
			return fmt.Errorf("deactivate %s %s: %w", table, id, err)
		}
	}
	return nil
}

// pruneOverrides deletes the overrides of a business whose (date, staff)
// is not in keep.
func (db *DB) pruneOverrides(ctx context.Context, businessID string, keep []model.ScheduleOverride) error {
	listed := make(map[string]struct{}, len(keep))
	for _, o := range keep {
		listed[model.FormatDate(o.Date)+"|"+o.StaffID] = struct{}{}
	}

	rows, err := db.QueryContext(ctx, `SELECT date, staff_id FROM schedule_overrides WHERE business_id = ?`, businessID)
	if err != nil {
		return err
	}

	type key struct{ date, staffID string }
	var stale []key
	for rows.Next() {
		var k key
		if err := rows.Scan(&k.date, &k.staffID); err != nil {
			rows.Close()
			return err
		}
		if _, ok := listed[k.date+"|"+k.staffID]; !ok {
			stale = append(stale, k)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, k := range stale {
		if _, err := db.ExecContext(ctx,
			"DELETE FROM schedule_overrides WHERE business_id = ? AND date = ? AND staff_id = ?",
			businessID, k.date, k.staffID,
		); err != nil {
			return err
		}
	}
	if len(stale) > 0 {
		db.logger.Info().Str("business_id", businessID).Int("removed", len(stale)).Msg("stale overrides removed")
	}
	return nil
}
