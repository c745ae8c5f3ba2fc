package report

import (
	"errors"
	"time"
)

const (
	PeriodToday  = "today"
	PeriodWeek   = "week"
	PeriodMonth  = "month"
	PeriodCustom = "custom"
)

var (
	ErrInvalidPeriod = errors.New("invalid period")
	ErrInvalidDate   = errors.New("invalid date, expected YYYY-MM-DD")
	ErrInvertedRange = errors.New("end date is before start date")
)

// Range is a half-open interval [Start, End).
type Range struct {
	Period string
	Start  time.Time
	End    time.Time
}

// ResolveRange turns a period name into a date range in loc. Week and month
// are the trailing 7 and 30 days including today. Custom ranges take
// inclusive YYYY-MM-DD dates.
func ResolveRange(period, start, end string, now time.Time, loc *time.Location) (Range, error) {
	if loc == nil {
		loc = time.UTC
	}
	tomorrow := startOfDay(now.In(loc)).AddDate(0, 0, 1)

	switch period {
	case "", PeriodToday:
		return Range{Period: PeriodToday, Start: tomorrow.AddDate(0, 0, -1), End: tomorrow}, nil
	case PeriodWeek:
		return Range{Period: PeriodWeek, Start: tomorrow.AddDate(0, 0, -7), End: tomorrow}, nil
	case PeriodMonth:
		return Trailing30(now, loc), nil
	case PeriodCustom:
		s, err := time.ParseInLocation(time.DateOnly, start, loc)
		if err != nil {
			return Range{}, ErrInvalidDate
		}
		e, err := time.ParseInLocation(time.DateOnly, end, loc)
		if err != nil {
			return Range{}, ErrInvalidDate
		}
		if e.Before(s) {
			return Range{}, ErrInvertedRange
		}
		return Range{Period: PeriodCustom, Start: s, End: e.AddDate(0, 0, 1)}, nil
	}
	return Range{}, ErrInvalidPeriod
}

// Trailing30 is the 30-day window ending today, used when a chosen range
// holds no orders.
func Trailing30(now time.Time, loc *time.Location) Range {
	if loc == nil {
		loc = time.UTC
	}
	tomorrow := startOfDay(now.In(loc)).AddDate(0, 0, 1)
	return Range{Period: PeriodMonth, Start: tomorrow.AddDate(0, 0, -30), End: tomorrow}
}
