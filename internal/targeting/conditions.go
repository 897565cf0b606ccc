package targeting

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"stayboost/internal/pkg/visitor"
)

// Category names a top-level clause of a condition tree.
type Category string

const (
	CategoryGeographic    Category = "geographic"
	CategoryBehavioral    Category = "behavioral"
	CategoryDevice        Category = "device"
	CategoryTrafficSource Category = "trafficSource"
	CategoryTiming        Category = "timing"
)

// Clause is one category of a condition tree. The set of implementations is
// closed: Geographic, Behavioral, Device, TrafficSource and Timing.
type Clause interface {
	Category() Category
	criteria(attrs visitor.Attributes, now time.Time) []Criterion
}

// Criterion is a single check inside a clause and whether the visitor met it.
type Criterion struct {
	Category Category `json:"category"`
	Name     string   `json:"name"`
	Met      bool     `json:"met"`
}

// Geographic restricts visitors by country.
type Geographic struct {
	Countries []string `json:"countries,omitempty"`
}

// Behavioral bounds the visitor's engagement counters. Nil bounds are absent.
type Behavioral struct {
	MinVisitCount      *int `json:"minVisitCount,omitempty"`
	MaxVisitCount      *int `json:"maxVisitCount,omitempty"`
	MinSessionDuration *int `json:"minSessionDuration,omitempty"`
	MinPagesViewed     *int `json:"minPagesViewed,omitempty"`
}

// Device restricts device types and browsers.
type Device struct {
	Types    []string `json:"types,omitempty"`
	Browsers []string `json:"browsers,omitempty"`
}

// TrafficSource restricts referrer sources and UTM campaigns.
type TrafficSource struct {
	Sources   []string `json:"sources,omitempty"`
	Campaigns []string `json:"campaigns,omitempty"`
}

// Timing restricts the evaluation time. Days are 0 (Sunday) to 6, hours 0 to 23.
type Timing struct {
	DaysOfWeek []int `json:"daysOfWeek,omitempty"`
	HoursOfDay []int `json:"hoursOfDay,omitempty"`
}

func (*Geographic) Category() Category    { return CategoryGeographic }
func (*Behavioral) Category() Category    { return CategoryBehavioral }
func (*Device) Category() Category        { return CategoryDevice }
func (*TrafficSource) Category() Category { return CategoryTrafficSource }
func (*Timing) Category() Category        { return CategoryTiming }

func (g *Geographic) criteria(attrs visitor.Attributes, _ time.Time) []Criterion {
	if len(g.Countries) == 0 {
		return nil
	}
	met := slices.ContainsFunc(g.Countries, func(c string) bool {
		return strings.EqualFold(c, attrs.Country)
	})
	return []Criterion{{CategoryGeographic, "countries", met}}
}

func (b *Behavioral) criteria(attrs visitor.Attributes, _ time.Time) []Criterion {
	var out []Criterion
	if b.MinVisitCount != nil {
		out = append(out, Criterion{CategoryBehavioral, "minVisitCount", attrs.VisitCount >= *b.MinVisitCount})
	}
	if b.MaxVisitCount != nil {
		out = append(out, Criterion{CategoryBehavioral, "maxVisitCount", attrs.VisitCount <= *b.MaxVisitCount})
	}
	if b.MinSessionDuration != nil {
		out = append(out, Criterion{CategoryBehavioral, "minSessionDuration", attrs.SessionDuration >= *b.MinSessionDuration})
	}
	if b.MinPagesViewed != nil {
		out = append(out, Criterion{CategoryBehavioral, "minPagesViewed", attrs.PagesViewed >= *b.MinPagesViewed})
	}
	return out
}

func (d *Device) criteria(attrs visitor.Attributes, _ time.Time) []Criterion {
	var out []Criterion
	if len(d.Types) > 0 {
		out = append(out, Criterion{CategoryDevice, "types", containsFold(d.Types, attrs.DeviceType)})
	}
	if len(d.Browsers) > 0 {
		out = append(out, Criterion{CategoryDevice, "browsers", containsFold(d.Browsers, attrs.Browser)})
	}
	return out
}

func (s *TrafficSource) criteria(attrs visitor.Attributes, _ time.Time) []Criterion {
	var out []Criterion
	if len(s.Sources) > 0 {
		out = append(out, Criterion{CategoryTrafficSource, "sources", containsFold(s.Sources, attrs.TrafficSource)})
	}
	if len(s.Campaigns) > 0 {
		out = append(out, Criterion{CategoryTrafficSource, "campaigns", slices.Contains(s.Campaigns, attrs.Campaign)})
	}
	return out
}

func (t *Timing) criteria(_ visitor.Attributes, now time.Time) []Criterion {
	var out []Criterion
	if len(t.DaysOfWeek) > 0 {
		out = append(out, Criterion{CategoryTiming, "daysOfWeek", slices.Contains(t.DaysOfWeek, int(now.Weekday()))})
	}
	if len(t.HoursOfDay) > 0 {
		out = append(out, Criterion{CategoryTiming, "hoursOfDay", slices.Contains(t.HoursOfDay, now.Hour())})
	}
	return out
}

func containsFold(list []string, value string) bool {
	return slices.ContainsFunc(list, func(s string) bool {
		return strings.EqualFold(s, value)
	})
}

// ConditionTree is the set of clauses of a rule or segment. Absent clauses
// always pass; present clauses are AND-ed.
type ConditionTree struct {
	Geographic    *Geographic    `json:"geographic,omitempty"`
	Behavioral    *Behavioral    `json:"behavioral,omitempty"`
	Device        *Device        `json:"device,omitempty"`
	TrafficSource *TrafficSource `json:"trafficSource,omitempty"`
	Timing        *Timing        `json:"timing,omitempty"`
}

// Clauses returns the present clauses in evaluation order.
func (t ConditionTree) Clauses() []Clause {
	var out []Clause
	if t.Geographic != nil {
		out = append(out, t.Geographic)
	}
	if t.Behavioral != nil {
		out = append(out, t.Behavioral)
	}
	if t.Device != nil {
		out = append(out, t.Device)
	}
	if t.TrafficSource != nil {
		out = append(out, t.TrafficSource)
	}
	if t.Timing != nil {
		out = append(out, t.Timing)
	}
	return out
}

// ParseConditions decodes a stored condition tree. Empty input and JSON null
// decode to an empty tree. Unknown categories, unknown clause fields and
// mistyped values are errors.
func ParseConditions(raw []byte) (ConditionTree, error) {
	var tree ConditionTree
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return tree, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&tree); err != nil {
		return ConditionTree{}, fmt.Errorf("%w: conditions: %v", ErrInvalidInput, err)
	}
	return tree, nil
}

// Validate checks values that decode cleanly but can never match.
func (t ConditionTree) Validate() error {
	if t.Geographic != nil {
		for _, c := range t.Geographic.Countries {
			if !visitor.IsKnownCountry(c) {
				return fmt.Errorf("%w: unknown country code %q", ErrInvalidInput, c)
			}
		}
	}
	if t.Device != nil {
		for _, d := range t.Device.Types {
			switch strings.ToLower(d) {
			case visitor.DeviceMobile, visitor.DeviceTablet, visitor.DeviceDesktop:
			default:
				return fmt.Errorf("%w: unknown device type %q", ErrInvalidInput, d)
			}
		}
	}
	if t.Timing != nil {
		for _, d := range t.Timing.DaysOfWeek {
			if d < 0 || d > 6 {
				return fmt.Errorf("%w: day of week %d out of range", ErrInvalidInput, d)
			}
		}
		for _, h := range t.Timing.HoursOfDay {
			if h < 0 || h > 23 {
				return fmt.Errorf("%w: hour of day %d out of range", ErrInvalidInput, h)
			}
		}
	}
	return nil
}
