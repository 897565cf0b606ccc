package targeting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stayboost/internal/pkg/visitor"
)

func intPtr(v int) *int { return &v }

func TestParseConditions(t *testing.T) {
	t.Run("empty input and null are empty trees", func(t *testing.T) {
		for _, raw := range []string{"", "  ", "null", "{}"} {
			tree, err := ParseConditions([]byte(raw))
			require.NoError(t, err, raw)
			assert.Empty(t, tree.Clauses(), raw)
		}
	})

	t.Run("decodes every category", func(t *testing.T) {
		tree, err := ParseConditions([]byte(`{
			"geographic": {"countries": ["US", "CA"]},
			"behavioral": {"minVisitCount": 3, "maxVisitCount": 10},
			"device": {"types": ["mobile"], "browsers": ["safari"]},
			"trafficSource": {"sources": ["google"], "campaigns": ["spring"]},
			"timing": {"daysOfWeek": [1, 2], "hoursOfDay": [9]}
		}`))
		require.NoError(t, err)

		clauses := tree.Clauses()
		require.Len(t, clauses, 5)
		assert.Equal(t, CategoryGeographic, clauses[0].Category())
		assert.Equal(t, CategoryBehavioral, clauses[1].Category())
		assert.Equal(t, CategoryDevice, clauses[2].Category())
		assert.Equal(t, CategoryTrafficSource, clauses[3].Category())
		assert.Equal(t, CategoryTiming, clauses[4].Category())
		assert.Equal(t, 3, *tree.Behavioral.MinVisitCount)
		assert.Nil(t, tree.Behavioral.MinPagesViewed)
	})

	t.Run("rejects malformed and unknown input", func(t *testing.T) {
		for _, raw := range []string{
			"{not json",
			`{"weather": {"sunny": true}}`,
			`{"behavioral": {"minVisits": 3}}`,
			`{"behavioral": {"minVisitCount": "three"}}`,
			`["geographic"]`,
		} {
			_, err := ParseConditions([]byte(raw))
			assert.ErrorIs(t, err, ErrInvalidInput, raw)
		}
	})
}

func TestConditionTreeValidate(t *testing.T) {
	tests := []struct {
		name    string
		tree    ConditionTree
		wantErr bool
	}{
		{"empty", ConditionTree{}, false},
		{"known countries", ConditionTree{Geographic: &Geographic{Countries: []string{"US", "de"}}}, false},
		{"unknown country", ConditionTree{Geographic: &Geographic{Countries: []string{"XX"}}}, true},
		{"device types", ConditionTree{Device: &Device{Types: []string{"Mobile", "tablet", "desktop"}}}, false},
		{"unknown device type", ConditionTree{Device: &Device{Types: []string{"watch"}}}, true},
		{"day out of range", ConditionTree{Timing: &Timing{DaysOfWeek: []int{7}}}, true},
		{"hour out of range", ConditionTree{Timing: &Timing{HoursOfDay: []int{24}}}, true},
		{"valid timing", ConditionTree{Timing: &Timing{DaysOfWeek: []int{0, 6}, HoursOfDay: []int{0, 23}}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tree.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestExplainListsCriteriaInClauseOrder(t *testing.T) {
	tree := ConditionTree{
		Geographic: &Geographic{Countries: []string{"US"}},
		Behavioral: &Behavioral{MinVisitCount: intPtr(3), MinPagesViewed: intPtr(5)},
	}
	attrs := visitor.Attributes{Country: "US", VisitCount: 4, PagesViewed: 2}

	criteria := Explain(tree, attrs, time.Now().UTC())

	assert.Equal(t, []Criterion{
		{CategoryGeographic, "countries", true},
		{CategoryBehavioral, "minVisitCount", true},
		{CategoryBehavioral, "minPagesViewed", false},
	}, criteria)
}
