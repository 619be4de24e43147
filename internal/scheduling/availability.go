// Package scheduling turns recurring availability into dated sessions and
// guards shared meeting resources against double booking.
package scheduling

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/tutorhub-api/internal/models"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

var dayNameIndex = map[string]time.Weekday{
	"MONDAY":    time.Monday,
	"TUESDAY":   time.Tuesday,
	"WEDNESDAY": time.Wednesday,
	"THURSDAY":  time.Thursday,
	"FRIDAY":    time.Friday,
	"SATURDAY":  time.Saturday,
	"SUNDAY":    time.Sunday,
}

// Window is a validated AvailabilityWindow with times as minutes past midnight.
type Window struct {
	Day   time.Weekday
	Start int
	End   int
}

// Minutes returns the window length.
func (w Window) Minutes() int {
	return w.End - w.Start
}

// Model converts the window back into its stored representation.
func (w Window) Model() models.AvailabilityWindow {
	return models.AvailabilityWindow{
		Day:       strings.ToUpper(w.Day.String()),
		StartTime: formatClock(w.Start),
		EndTime:   formatClock(w.End),
	}
}

// ParseDay resolves a weekday name case-insensitively.
func ParseDay(raw string) (time.Weekday, error) {
	day, ok := dayNameIndex[strings.ToUpper(strings.TrimSpace(raw))]
	if !ok {
		return 0, appErrors.Clone(appErrors.ErrInvalidAvailability, fmt.Sprintf("unknown day %q", raw))
	}
	return day, nil
}

// ParseClock parses a 24h HH:MM value into minutes past midnight.
func ParseClock(raw string) (int, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 2 || len(parts[0]) == 0 || len(parts[0]) > 2 || len(parts[1]) != 2 {
		return 0, appErrors.Clone(appErrors.ErrInvalidAvailability, fmt.Sprintf("invalid time %q", raw))
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, appErrors.Clone(appErrors.ErrInvalidAvailability, fmt.Sprintf("invalid hour in %q", raw))
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, appErrors.Clone(appErrors.ErrInvalidAvailability, fmt.Sprintf("invalid minute in %q", raw))
	}
	return hour*60 + minute, nil
}

// ParseWindow validates a stored window. StartTime must be strictly before EndTime.
func ParseWindow(w models.AvailabilityWindow) (Window, error) {
	day, err := ParseDay(w.Day)
	if err != nil {
		return Window{}, err
	}
	start, err := ParseClock(w.StartTime)
	if err != nil {
		return Window{}, err
	}
	end, err := ParseClock(w.EndTime)
	if err != nil {
		return Window{}, err
	}
	if start >= end {
		return Window{}, appErrors.Clone(appErrors.ErrInvalidAvailability,
			fmt.Sprintf("start %s must be before end %s", w.StartTime, w.EndTime))
	}
	return Window{Day: day, Start: start, End: end}, nil
}

// NormalizeWindows validates every window and returns them in canonical form.
func NormalizeWindows(windows []models.AvailabilityWindow) (models.AvailabilityWindows, error) {
	result := make(models.AvailabilityWindows, 0, len(windows))
	for _, w := range windows {
		parsed, err := ParseWindow(w)
		if err != nil {
			return nil, err
		}
		result = append(result, parsed.Model())
	}
	return result, nil
}

// Intersect returns the shared range of two windows on the same day.
func Intersect(a, b Window) (Window, bool) {
	if a.Day != b.Day {
		return Window{}, false
	}
	start := maxInt(a.Start, b.Start)
	end := minInt(a.End, b.End)
	if start >= end {
		return Window{}, false
	}
	return Window{Day: a.Day, Start: start, End: end}, true
}

// WindowsConflict reports whether two weekly windows overlap. Windows on
// different days never conflict.
func WindowsConflict(a, b models.AvailabilityWindow) (bool, error) {
	pa, err := ParseWindow(a)
	if err != nil {
		return false, err
	}
	pb, err := ParseWindow(b)
	if err != nil {
		return false, err
	}
	_, ok := Intersect(pa, pb)
	return ok, nil
}

// Overlaps returns the shared time between two availability sets. Each side is
// merged per day first, so repeated windows are not counted twice. Malformed
// windows on either side are ignored.
func Overlaps(a, b []models.AvailabilityWindow) []Window {
	left := merge(parseValid(a))
	right := merge(parseValid(b))
	var shared []Window
	for _, l := range left {
		for _, r := range right {
			if w, ok := Intersect(l, r); ok {
				shared = append(shared, w)
			}
		}
	}
	return shared
}

func parseValid(windows []models.AvailabilityWindow) []Window {
	parsed := make([]Window, 0, len(windows))
	for _, w := range windows {
		if p, err := ParseWindow(w); err == nil {
			parsed = append(parsed, p)
		}
	}
	return parsed
}

// merge folds overlapping or touching windows of the same day into one,
// ordered by day and start.
func merge(windows []Window) []Window {
	if len(windows) < 2 {
		return windows
	}
	sort.Slice(windows, func(i, j int) bool {
		if windows[i].Day != windows[j].Day {
			return windows[i].Day < windows[j].Day
		}
		return windows[i].Start < windows[j].Start
	})
	merged := windows[:1]
	for _, w := range windows[1:] {
		last := &merged[len(merged)-1]
		if w.Day == last.Day && w.Start <= last.End {
			if w.End > last.End {
				last.End = w.End
			}
			continue
		}
		merged = append(merged, w)
	}
	return merged
}

func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
