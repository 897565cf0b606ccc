package daterange

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

func TestParsePresets(t *testing.T) {
	clock := fixedClock{now: time.Date(2024, 3, 15, 18, 30, 0, 0, time.UTC)}
	parser := NewParser(clock)
	day := func(d int) time.Time { return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC) }

	tests := []struct {
		name     string
		params   Params
		expected Range
		days     int
	}{
		{"default is last 7 days", Params{}, Range{From: day(9), To: day(15)}, 7},
		{"today", Params{Preset: Today}, Range{From: day(15), To: day(15)}, 1},
		{"last 7 days", Params{Preset: Last7Days}, Range{From: day(9), To: day(15)}, 7},
		{"last 30 days", Params{Preset: Last30Days}, Range{From: time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC), To: day(15)}, 30},
		{"custom", Params{Preset: Custom, FromDate: "2024-03-01", ToDate: "2024-03-03"}, Range{From: day(1), To: day(3)}, 3},
		{"implicit custom", Params{FromDate: "2024-03-01", ToDate: "2024-03-01"}, Range{From: day(1), To: day(1)}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := parser.Parse(tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, r)
			assert.Len(t, r.Days(), tt.days)
			assert.Equal(t, tt.expected.To.AddDate(0, 0, 1), r.EndExclusive())
		})
	}
}

func TestParseRejectsBadInput(t *testing.T) {
	parser := NewParser(fixedClock{now: time.Now()})

	cases := []Params{
		{Preset: "yesterday"},
		{Preset: Custom, FromDate: "2024-03-01"},
		{Preset: Custom, FromDate: "03/01/2024", ToDate: "2024-03-02"},
		{Preset: Custom, FromDate: "2024-03-05", ToDate: "2024-03-01"},
		{Preset: Custom, FromDate: "2020-01-01", ToDate: "2024-01-01"},
	}
	for _, params := range cases {
		_, err := parser.Parse(params)
		assert.ErrorIs(t, err, ErrInvalidRange, "params: %+v", params)
	}
}

func TestStartOfDayConvertsToUTC(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	local := time.Date(2024, 3, 15, 2, 0, 0, 0, tokyo)

	assert.Equal(t, time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC), StartOfDay(local))
	assert.Equal(t, "2024-03-14", FormatDay(local))
}
