// Package datex holds calendar-date arithmetic on time.Time values
// normalized to midnight UTC.
package datex

import (
	"fmt"
	"strings"
	"time"
)

const Layout = "2006-01-02"

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Parse reads a YYYY-MM-DD date, also accepting a full RFC3339 timestamp.
func Parse(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(Layout, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", raw)
	}
	return Day(t), nil
}

func Format(t time.Time) string {
	return t.UTC().Format(Layout)
}

// DaysInMonth returns the number of days in month of year.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ClipDay builds the date (year, month, day) with day clipped to the last
// valid day of the month.
func ClipDay(year int, month time.Month, day int) time.Time {
	if day < 1 {
		day = 1
	}
	if last := DaysInMonth(year, month); day > last {
		day = last
	}
	return Date(year, month, day)
}

// DaysBetween returns the whole calendar days from a to b (negative if b is before a).
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}

// MonthBounds returns the first and last day of (year, month).
func MonthBounds(year int, month time.Month) (time.Time, time.Time) {
	first := Date(year, month, 1)
	return first, Date(year, month, DaysInMonth(year, month))
}

// PrevMonth returns the (year, month) before the given one.
func PrevMonth(year int, month time.Month) (int, time.Month) {
	if month == time.January {
		return year - 1, time.December
	}
	return year, month - 1
}

// SameMonth reports whether t falls in (year, month).
func SameMonth(t time.Time, year int, month time.Month) bool {
	y, m, _ := t.UTC().Date()
	return y == year && m == month
}
