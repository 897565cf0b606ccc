// Package daterange turns analytics query parameters into UTC day ranges.
package daterange

import (
	"errors"
	"fmt"
	"time"
)

// Presets accepted by Parse.
const (
	Today      = "today"
	Last7Days  = "last_7_days"
	Last30Days = "last_30_days"
	Custom     = "custom"
)

const dateLayout = "2006-01-02"

// maxDays bounds custom ranges.
const maxDays = 366

var ErrInvalidRange = errors.New("invalid date range")

// TimeProvider supplies the current time.
type TimeProvider interface {
	Now() time.Time
}

// DefaultTimeProvider uses the system clock.
type DefaultTimeProvider struct{}

func (DefaultTimeProvider) Now() time.Time { return time.Now() }

// Range is an inclusive span of whole UTC days.
type Range struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Params are the raw query values.
type Params struct {
	Preset   string
	FromDate string
	ToDate   string
}

// Parser resolves Params against a clock.
type Parser struct {
	timeProvider TimeProvider
}

// NewParser returns a Parser using the given clock, or the system clock.
func NewParser(timeProvider ...TimeProvider) *Parser {
	var provider TimeProvider = DefaultTimeProvider{}
	if len(timeProvider) > 0 && timeProvider[0] != nil {
		provider = timeProvider[0]
	}
	return &Parser{timeProvider: provider}
}

// Parse resolves params into a Range. An empty preset means last_7_days,
// unless both dates are given, which means custom.
func (p *Parser) Parse(params Params) (Range, error) {
	today := StartOfDay(p.timeProvider.Now())

	preset := params.Preset
	if preset == "" {
		preset = Last7Days
		if params.FromDate != "" && params.ToDate != "" {
			preset = Custom
		}
	}

	switch preset {
	case Today:
		return Range{From: today, To: today}, nil
	case Last7Days:
		return Range{From: today.AddDate(0, 0, -6), To: today}, nil
	case Last30Days:
		return Range{From: today.AddDate(0, 0, -29), To: today}, nil
	case Custom:
		return parseCustom(params)
	default:
		return Range{}, fmt.Errorf("%w: unknown range %q", ErrInvalidRange, preset)
	}
}

func parseCustom(params Params) (Range, error) {
	from, err := time.Parse(dateLayout, params.FromDate)
	if err != nil {
		return Range{}, fmt.Errorf("%w: invalid 'from' date: %v", ErrInvalidRange, err)
	}
	to, err := time.Parse(dateLayout, params.ToDate)
	if err != nil {
		return Range{}, fmt.Errorf("%w: invalid 'to' date: %v", ErrInvalidRange, err)
	}
	r := Range{From: from.UTC(), To: to.UTC()}
	if r.To.Before(r.From) {
		return Range{}, fmt.Errorf("%w: 'from' is after 'to'", ErrInvalidRange)
	}
	if len(r.Days()) > maxDays {
		return Range{}, fmt.Errorf("%w: range exceeds %d days", ErrInvalidRange, maxDays)
	}
	return r, nil
}

// Days returns the start of every day in the range.
func (r Range) Days() []time.Time {
	var days []time.Time
	for d := r.From; !d.After(r.To); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// EndExclusive returns the first instant after the range.
func (r Range) EndExclusive() time.Time {
	return r.To.AddDate(0, 0, 1)
}

// StartOfDay truncates t to midnight UTC.
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// FormatDay renders a day as YYYY-MM-DD.
func FormatDay(t time.Time) string {
	return t.UTC().Format(dateLayout)
}
