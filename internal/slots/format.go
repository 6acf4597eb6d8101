package slots

import (
	"fmt"

	"slotbook/internal/model"
)

// SlotInfo is a simplified representation for clients.
type SlotInfo struct {
	Start string `json:"start"` // "10:00"
	End   string `json:"end"`   // "10:30"
}

// ToSlotInfo converts start times to SlotInfo for a service of the given duration.
func ToSlotInfo(starts []model.Clock, duration int) []SlotInfo {
	result := make([]SlotInfo, len(starts))
	for i, s := range starts {
		result[i] = SlotInfo{
			Start: s.String(),
			End:   s.Add(duration).String(),
		}
	}
	return result
}

// Labels renders start times as "HH:MM".
func Labels(starts []model.Clock) []string {
	out := make([]string, len(starts))
	for i, s := range starts {
		out[i] = s.String()
	}
	return out
}

// NotBefore drops start times earlier than min.
func NotBefore(starts []model.Clock, min model.Clock) []model.Clock {
	out := starts[:0:0]
	for _, s := range starts {
		if s >= min {
			out = append(out, s)
		}
	}
	return out
}

// Contains reports whether start is one of the offered times.
func Contains(starts []model.Clock, start model.Clock) bool {
	for _, s := range starts {
		if s == start {
			return true
		}
	}
	return false
}

// FormatDuration formats duration in minutes to human-readable string.
func FormatDuration(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%d min", minutes)
	}
	hours := minutes / 60
	mins := minutes % 60
	if mins == 0 {
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	return fmt.Sprintf("%d h %d min", hours, mins)
}
