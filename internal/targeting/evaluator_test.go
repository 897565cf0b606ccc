package targeting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"stayboost/internal/pkg/visitor"
)

// monday10 is a Monday at 10:30 UTC.
var monday10 = time.Date(2024, 6, 3, 10, 30, 0, 0, time.UTC)

func TestEvaluateEmptyTreeAlwaysPasses(t *testing.T) {
	visitors := []visitor.Attributes{
		{},
		{Country: visitor.UnknownCountry, DeviceType: visitor.DeviceDesktop},
		{Country: "US", VisitCount: 100, SessionDuration: 3600, PagesViewed: 50},
	}
	for _, attrs := range visitors {
		assert.True(t, Evaluate(ConditionTree{}, attrs, monday10))
	}
}

func TestEvaluateCategories(t *testing.T) {
	attrs := visitor.Attributes{
		Country:         "US",
		DeviceType:      visitor.DeviceMobile,
		Browser:         visitor.BrowserSafari,
		TrafficSource:   visitor.SourceGoogle,
		Campaign:        "spring",
		VisitCount:      5,
		SessionDuration: 120,
		PagesViewed:     3,
	}

	tests := []struct {
		name     string
		tree     ConditionTree
		expected bool
	}{
		{"country in list", ConditionTree{Geographic: &Geographic{Countries: []string{"US", "CA"}}}, true},
		{"country case-insensitive", ConditionTree{Geographic: &Geographic{Countries: []string{"us"}}}, true},
		{"country not in list", ConditionTree{Geographic: &Geographic{Countries: []string{"DE"}}}, false},
		{"empty country list passes", ConditionTree{Geographic: &Geographic{}}, true},
		{"min visits met", ConditionTree{Behavioral: &Behavioral{MinVisitCount: intPtr(5)}}, true},
		{"min visits unmet", ConditionTree{Behavioral: &Behavioral{MinVisitCount: intPtr(6)}}, false},
		{"max visits met", ConditionTree{Behavioral: &Behavioral{MaxVisitCount: intPtr(5)}}, true},
		{"max visits exceeded", ConditionTree{Behavioral: &Behavioral{MaxVisitCount: intPtr(4)}}, false},
		{"session duration unmet", ConditionTree{Behavioral: &Behavioral{MinSessionDuration: intPtr(121)}}, false},
		{"pages viewed met", ConditionTree{Behavioral: &Behavioral{MinPagesViewed: intPtr(3)}}, true},
		{"device type", ConditionTree{Device: &Device{Types: []string{"mobile"}}}, true},
		{"device type mismatch", ConditionTree{Device: &Device{Types: []string{"desktop"}}}, false},
		{"browser mismatch", ConditionTree{Device: &Device{Types: []string{"mobile"}, Browsers: []string{"chrome"}}}, false},
		{"traffic source", ConditionTree{TrafficSource: &TrafficSource{Sources: []string{"google"}}}, true},
		{"campaign mismatch", ConditionTree{TrafficSource: &TrafficSource{Campaigns: []string{"summer"}}}, false},
		{"day of week", ConditionTree{Timing: &Timing{DaysOfWeek: []int{1}}}, true},
		{"day of week mismatch", ConditionTree{Timing: &Timing{DaysOfWeek: []int{0, 6}}}, false},
		{"hour of day", ConditionTree{Timing: &Timing{HoursOfDay: []int{10, 11}}}, true},
		{"hour of day mismatch", ConditionTree{Timing: &Timing{HoursOfDay: []int{9}}}, false},
		{
			"one failing category fails the tree",
			ConditionTree{
				Geographic: &Geographic{Countries: []string{"US"}},
				Device:     &Device{Types: []string{"desktop"}},
			},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Evaluate(tt.tree, attrs, monday10))
		})
	}
}

func TestEvaluateMinVisitCountDominates(t *testing.T) {
	tree := ConditionTree{
		Behavioral: &Behavioral{MinVisitCount: intPtr(10)},
	}
	for visits := 0; visits < 10; visits++ {
		attrs := visitor.Attributes{Country: "US", VisitCount: visits, SessionDuration: 9999, PagesViewed: 99}
		assert.False(t, Evaluate(tree, attrs, monday10), "visits=%d", visits)
	}
}

func TestScoringPolicies(t *testing.T) {
	attrs := visitor.Attributes{
		Country:         "US",
		DeviceType:      visitor.DeviceDesktop,
		VisitCount:      5,
		SessionDuration: 120,
		PagesViewed:     3,
	}

	t.Run("behavioral criteria counted individually", func(t *testing.T) {
		tree := ConditionTree{Behavioral: &Behavioral{MinVisitCount: intPtr(3), MinSessionDuration: intPtr(60)}}
		assert.Equal(t, 100.0, GeoBehavioralPolicy{}.Score(tree, attrs, monday10))
	})

	t.Run("partial affinity without a match", func(t *testing.T) {
		tree := ConditionTree{
			Geographic: &Geographic{Countries: []string{"US"}},
			Behavioral: &Behavioral{MinVisitCount: intPtr(10)},
		}
		assert.False(t, Evaluate(tree, attrs, monday10))
		assert.Equal(t, 50.0, GeoBehavioralPolicy{}.Score(tree, attrs, monday10))
	})

	t.Run("geo behavioral ignores other categories", func(t *testing.T) {
		tree := ConditionTree{
			Behavioral: &Behavioral{MinVisitCount: intPtr(3), MaxVisitCount: intPtr(1)},
			Device:     &Device{Types: []string{"mobile"}},
		}
		assert.Equal(t, 100.0, GeoBehavioralPolicy{}.Score(tree, attrs, monday10))
		assert.InDelta(t, 33.33, AllCategoriesPolicy{}.Score(tree, attrs, monday10), 0.01)
	})

	t.Run("no scored criteria is zero", func(t *testing.T) {
		assert.Equal(t, 0.0, GeoBehavioralPolicy{}.Score(ConditionTree{}, attrs, monday10))
		tree := ConditionTree{Device: &Device{Types: []string{"desktop"}}}
		assert.Equal(t, 0.0, GeoBehavioralPolicy{}.Score(tree, attrs, monday10))
		assert.Equal(t, 100.0, AllCategoriesPolicy{}.Score(tree, attrs, monday10))
	})

	t.Run("policy lookup", func(t *testing.T) {
		assert.IsType(t, AllCategoriesPolicy{}, PolicyFor("all"))
		assert.IsType(t, GeoBehavioralPolicy{}, PolicyFor("geo_behavioral"))
		assert.IsType(t, GeoBehavioralPolicy{}, PolicyFor("unknown"))
	})
}
