package search

import (
	"time"

	"github.com/ziadkadry99/docvault/internal/apperr"
)

// Presets lists the named date ranges accepted in Filters.DatePreset.
var Presets = []string{
	"today", "yesterday", "last_7_days", "last_30_days", "last_90_days",
	"this_week", "last_week", "this_month", "last_month",
	"this_quarter", "last_quarter", "this_year", "last_year", "last_2_years",
}

// PresetRange returns the inclusive day range [from, to] named by preset,
// relative to now. Weeks start on Monday.
func PresetRange(preset string, now time.Time) (from, to time.Time, err error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	daysBack := func(n int) (time.Time, time.Time, error) {
		return today.AddDate(0, 0, -n), today, nil
	}

	switch preset {
	case "today":
		return today, today, nil
	case "yesterday":
		y := today.AddDate(0, 0, -1)
		return y, y, nil
	case "last_7_days":
		return daysBack(7)
	case "last_30_days":
		return daysBack(30)
	case "last_90_days":
		return daysBack(90)
	case "last_2_years":
		return daysBack(730)

	case "this_week", "last_week":
		monday := today.AddDate(0, 0, -((int(today.Weekday()) + 6) % 7))
		if preset == "last_week" {
			monday = monday.AddDate(0, 0, -7)
		}
		return monday, monday.AddDate(0, 0, 6), nil

	case "this_month", "last_month":
		first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
		if preset == "last_month" {
			first = first.AddDate(0, -1, 0)
		}
		return first, first.AddDate(0, 1, -1), nil

	case "this_quarter", "last_quarter":
		startMonth := time.Month((int(today.Month())-1)/3*3 + 1)
		first := time.Date(today.Year(), startMonth, 1, 0, 0, 0, 0, today.Location())
		if preset == "last_quarter" {
			first = first.AddDate(0, -3, 0)
		}
		return first, first.AddDate(0, 3, -1), nil

	case "this_year", "last_year":
		year := today.Year()
		if preset == "last_year" {
			year--
		}
		return time.Date(year, 1, 1, 0, 0, 0, 0, today.Location()),
			time.Date(year, 12, 31, 0, 0, 0, 0, today.Location()), nil
	}
	return time.Time{}, time.Time{}, apperr.New(apperr.ValidationFailure, "search.preset", "unknown date preset %q", preset)
}
