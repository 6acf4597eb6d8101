package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"slotbook/internal/model"
)

// BusinessConfig is one tenant in catalog.yaml.
type BusinessConfig struct {
	ID           string             `yaml:"id"`
	Name         string             `yaml:"name"`
	Timezone     string             `yaml:"timezone"`
	WorkingHours model.WorkingHours `yaml:"working_hours"`
	Policy       PolicyConfig       `yaml:"policy"`
	Features     struct {
		NewClientApproval bool `yaml:"new_client_approval"`
	} `yaml:"features"`
	Staff     []StaffConfig    `yaml:"staff"`
	Services  []ServiceConfig  `yaml:"services"`
	Overrides []OverrideConfig `yaml:"overrides"`
}

// PolicyConfig holds the owner's booking rules.
type PolicyConfig struct {
	RequireApprovalForNewClients *bool `yaml:"require_approval_for_new_clients,omitempty"`
	CancellationHoursLimit       int   `yaml:"cancellation_hours_limit"`
	BookingWindowEnabled         bool  `yaml:"booking_window_enabled"`
	BookingWindowDays            int   `yaml:"booking_window_days"`
}

// StaffConfig is a staff member. Schedule may be omitted when
// uses_business_hours is set.
type StaffConfig struct {
	ID                string             `yaml:"id"`
	Name              string             `yaml:"name"`
	UsesBusinessHours bool               `yaml:"uses_business_hours"`
	Schedule          model.WorkingHours `yaml:"schedule,omitempty"`
}

// ServiceConfig is a bookable service.
type ServiceConfig struct {
	ID       string  `yaml:"id"`
	Name     string  `yaml:"name"`
	Duration int     `yaml:"duration"` // minutes
	Price    float64 `yaml:"price"`
	Color    string  `yaml:"color,omitempty"`
}

// OverrideConfig replaces the schedule on one date.
type OverrideConfig struct {
	Date     string        `yaml:"date"` // "2026-01-01"
	StaffID  string        `yaml:"staff_id,omitempty"`
	IsDayOff bool          `yaml:"is_day_off"`
	Shifts   []model.Shift `yaml:"shifts,omitempty"`
	Reason   string        `yaml:"reason,omitempty"`
}

// CatalogConfig is the root of catalog.yaml.
type CatalogConfig struct {
	Businesses []BusinessConfig `yaml:"businesses"`
}

// LoadCatalog loads and validates catalog.yaml.
func LoadCatalog(path string) (*CatalogConfig, error) {
	if path == "" {
		path = "configs/catalog.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var cfg CatalogConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate catalog: %w", err)
	}

	return &cfg, nil
}

// Validate checks the catalog for errors.
func (c *CatalogConfig) Validate() error {
	if len(c.Businesses) == 0 {
		return fmt.Errorf("no businesses defined")
	}

	businessIDs := make(map[string]bool)
	staffIDs := make(map[string]bool)
	serviceIDs := make(map[string]bool)

	for i, b := range c.Businesses {
		prefix := fmt.Sprintf("business[%d]", i)
		if b.ID == "" {
			return fmt.Errorf("%s: id is required", prefix)
		}
		if businessIDs[b.ID] {
			return fmt.Errorf("%s: duplicate id %q", prefix, b.ID)
		}
		businessIDs[b.ID] = true

		if b.Timezone != "" {
			if _, err := time.LoadLocation(b.Timezone); err != nil {
				return fmt.Errorf("%s.timezone: %w", prefix, err)
			}
		}
		if err := b.WorkingHours.Validate(); err != nil {
			return fmt.Errorf("%s.working_hours: %w", prefix, err)
		}
		if b.Policy.CancellationHoursLimit < 0 {
			return fmt.Errorf("%s.policy: cancellation_hours_limit cannot be negative", prefix)
		}
		if b.Policy.BookingWindowEnabled && b.Policy.BookingWindowDays <= 0 {
			return fmt.Errorf("%s.policy: booking_window_days must be positive when the window is enabled", prefix)
		}

		localStaff := make(map[string]bool)
		for j, s := range b.Staff {
			sp := fmt.Sprintf("%s.staff[%d]", prefix, j)
			if s.ID == "" {
				return fmt.Errorf("%s: id is required", sp)
			}
			if staffIDs[s.ID] {
				return fmt.Errorf("%s: duplicate id %q", sp, s.ID)
			}
			staffIDs[s.ID] = true
			localStaff[s.ID] = true
			if err := s.Schedule.Validate(); err != nil {
				return fmt.Errorf("%s.schedule: %w", sp, err)
			}
		}

		for j, s := range b.Services {
			sp := fmt.Sprintf("%s.services[%d]", prefix, j)
			if s.ID == "" {
				return fmt.Errorf("%s: id is required", sp)
			}
			if serviceIDs[s.ID] {
				return fmt.Errorf("%s: duplicate id %q", sp, s.ID)
			}
			serviceIDs[s.ID] = true
			if err := (model.Service{Duration: s.Duration}).Validate(); err != nil {
				return fmt.Errorf("%s: %w", sp, err)
			}
		}

		overrideKeys := make(map[string]bool)
		for j, o := range b.Overrides {
			op := fmt.Sprintf("%s.overrides[%d]", prefix, j)
			date, err := model.ParseDate(o.Date)
			if err != nil {
				return fmt.Errorf("%s: invalid date format '%s', expected YYYY-MM-DD", op, o.Date)
			}
			if o.StaffID != "" && !localStaff[o.StaffID] {
				return fmt.Errorf("%s: unknown staff %q", op, o.StaffID)
			}
			key := model.FormatDate(date) + "|" + o.StaffID
			if overrideKeys[key] {
				return fmt.Errorf("%s: duplicate override for %s staff %q", op, model.FormatDate(date), o.StaffID)
			}
			overrideKeys[key] = true
			for _, sh := range o.Shifts {
				if err := sh.Validate(); err != nil {
					return fmt.Errorf("%s: %w", op, err)
				}
			}
		}
	}

	return nil
}

// Business converts the entry to the domain model.
func (b BusinessConfig) Business() model.Business {
	return model.Business{
		ID:           b.ID,
		Name:         b.Name,
		Timezone:     b.Timezone,
		WorkingHours: b.WorkingHours.Clone(),
		Policy: model.BusinessPolicy{
			RequireApprovalForNewClients: b.Policy.RequireApprovalForNewClients,
			CancellationHoursLimit:       b.Policy.CancellationHoursLimit,
			BookingWindowEnabled:         b.Policy.BookingWindowEnabled,
			BookingWindowDays:            b.Policy.BookingWindowDays,
		},
		Features: model.FeatureFlags{NewClientApproval: b.Features.NewClientApproval},
	}
}

// StaffMembers converts staff entries. Members using business hours get a
// copy of the business hours, not a link to them.
func (b BusinessConfig) StaffMembers() []model.Staff {
	out := make([]model.Staff, 0, len(b.Staff))
	for _, s := range b.Staff {
		schedule := s.Schedule.Clone()
		if s.UsesBusinessHours {
			schedule = b.WorkingHours.Clone()
		}
		out = append(out, model.Staff{
			ID:                s.ID,
			BusinessID:        b.ID,
			Name:              s.Name,
			Schedule:          schedule,
			UsesBusinessHours: s.UsesBusinessHours,
		})
	}
	return out
}

// ServiceList converts service entries.
func (b BusinessConfig) ServiceList() []model.Service {
	out := make([]model.Service, 0, len(b.Services))
	for _, s := range b.Services {
		out = append(out, model.Service{
			ID:         s.ID,
			BusinessID: b.ID,
			Name:       s.Name,
			Duration:   s.Duration,
			Price:      s.Price,
			Color:      s.Color,
		})
	}
	return out
}

// OverrideList converts override entries. Dates are assumed validated.
func (b BusinessConfig) OverrideList() []model.ScheduleOverride {
	out := make([]model.ScheduleOverride, 0, len(b.Overrides))
	for _, o := range b.Overrides {
		date, _ := model.ParseDate(o.Date)
		out = append(out, model.ScheduleOverride{
			BusinessID: b.ID,
			Date:       date,
			StaffID:    o.StaffID,
			IsDayOff:   o.IsDayOff,
			Shifts:     append([]model.Shift(nil), o.Shifts...),
			Reason:     o.Reason,
		})
	}
	return out
}
