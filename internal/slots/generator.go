package slots

import (
	"fmt"
	"sort"

	"slotbook/internal/model"
)

const (
	DefaultGranularity  = 15
	DefaultMinUsableGap = 30
)

// Reason explains why a candidate start time was accepted or rejected.
type Reason string

const (
	ReasonOK        Reason = "ok"
	ReasonOverlap   Reason = "overlap"
	ReasonGapBefore Reason = "gap_before"
	ReasonGapAfter  Reason = "gap_after"
)

// Candidate is one evaluated start time.
type Candidate struct {
	Start  model.Clock
	End    model.Clock
	Reason Reason
}

// Accepted reports whether the candidate can be offered.
func (c Candidate) Accepted() bool {
	return c.Reason == ReasonOK
}

// Options tunes slot stepping and the anti-fragmentation rule.
type Options struct {
	// Granularity is the step between candidate start times, in minutes.
	Granularity int
	// MinUsableGap is the shortest idle gap worth leaving next to a booking.
	// Gaps of 0 are always fine; 0 disables the rule.
	MinUsableGap int
}

// DefaultOptions returns 15-minute steps and a 30-minute minimum gap.
func DefaultOptions() Options {
	return Options{Granularity: DefaultGranularity, MinUsableGap: DefaultMinUsableGap}
}

// Request is the input for one staff member on one date.
type Request struct {
	Shifts   []model.Shift
	Duration int
	// Bookings are the staff member's bookings on the date. Inactive ones are ignored.
	Bookings []model.Booking
	// ExcludeBookingID drops a booking from the occupied set, used when
	// rescheduling it.
	ExcludeBookingID string
}

// Generator enumerates bookable start times.
type Generator struct {
	opts Options
}

// NewGenerator creates a new slot generator.
func NewGenerator(opts Options) *Generator {
	if opts.Granularity <= 0 {
		opts.Granularity = DefaultGranularity
	}
	if opts.MinUsableGap < 0 {
		opts.MinUsableGap = 0
	}
	return &Generator{opts: opts}
}

// Options returns the effective options.
func (g *Generator) Options() Options {
	return g.opts
}

// Generate returns the sorted accepted start times for the request.
func (g *Generator) Generate(req Request) ([]model.Clock, error) {
	candidates, err := g.Evaluate(req)
	if err != nil {
		return nil, err
	}

	var starts []model.Clock
	for _, c := range candidates {
		if c.Accepted() {
			starts = append(starts, c.Start)
		}
	}
	return starts, nil
}

// Evaluate steps through every shift and classifies each candidate.
func (g *Generator) Evaluate(req Request) ([]Candidate, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	occupied := occupiedIntervals(req.Bookings, req.ExcludeBookingID)
	seen := make(map[model.Clock]bool)
	var out []Candidate

	for _, s := range req.Shifts {
		for cursor := s.Start; cursor.Add(req.Duration) <= s.End; cursor = cursor.Add(g.opts.Granularity) {
			if seen[cursor] {
				continue
			}
			seen[cursor] = true
			end := cursor.Add(req.Duration)
			out = append(out, Candidate{Start: cursor, End: end, Reason: g.classify(cursor, end, occupied)})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out, nil
}

func (g *Generator) classify(start, end model.Clock, occupied []interval) Reason {
	prevEnd, hasPrev := model.Clock(-1), false
	nextStart, hasNext := model.Clock(model.MinutesPerDay*2), false

	for _, b := range occupied {
		if Overlaps(start, end, b.start, b.end) {
			return ReasonOverlap
		}
		if b.end <= start && (!hasPrev || b.end > prevEnd) {
			prevEnd, hasPrev = b.end, true
		}
		if b.start >= end && (!hasNext || b.start < nextStart) {
			nextStart, hasNext = b.start, true
		}
	}

	if hasPrev && g.tooShort(int(start-prevEnd)) {
		return ReasonGapBefore
	}
	if hasNext && g.tooShort(int(nextStart-end)) {
		return ReasonGapAfter
	}
	return ReasonOK
}

func (g *Generator) tooShort(gap int) bool {
	return gap > 0 && gap < g.opts.MinUsableGap
}

// Overlaps is the half-open interval test: [s1,e1) and [s2,e2) share time.
func Overlaps(s1, e1, s2, e2 model.Clock) bool {
	return s1 < e2 && e1 > s2
}

type interval struct {
	start, end model.Clock
}

func occupiedIntervals(bookings []model.Booking, excludeID string) []interval {
	out := make([]interval, 0, len(bookings))
	for _, b := range bookings {
		if !b.Active() || b.Duration <= 0 {
			continue
		}
		if excludeID != "" && b.ID == excludeID {
			continue
		}
		out = append(out, interval{start: b.Time, end: b.End()})
	}
	return out
}

func validate(req Request) error {
	if req.Duration <= 0 {
		return model.Invalid("duration", "must be positive, got %d", req.Duration)
	}
	if req.Duration > model.MinutesPerDay {
		return model.Invalid("duration", "longer than a day: %d", req.Duration)
	}
	for i, s := range req.Shifts {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("shift %d: %w", i, err)
		}
	}
	return nil
}
