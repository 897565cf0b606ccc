package targeting

import (
	"time"

	"stayboost/internal/config"
	"stayboost/internal/pkg/visitor"
)

// ScoringPolicy computes a 0-100 affinity score for a visitor against a
// condition tree. The score is independent of Evaluate: a rule can score
// above zero and still fail to match.
type ScoringPolicy interface {
	Score(tree ConditionTree, attrs visitor.Attributes, now time.Time) float64
}

// GeoBehavioralPolicy scores only the geographic country list and the
// behavioral floors (minVisitCount, minSessionDuration, minPagesViewed).
// maxVisitCount and the device, traffic source and timing clauses are not
// scored.
type GeoBehavioralPolicy struct{}

func (GeoBehavioralPolicy) Score(tree ConditionTree, attrs visitor.Attributes, now time.Time) float64 {
	return scoreCriteria(Explain(tree, attrs, now), func(c Criterion) bool {
		switch c.Category {
		case CategoryGeographic:
			return true
		case CategoryBehavioral:
			return c.Name != "maxVisitCount"
		default:
			return false
		}
	})
}

// AllCategoriesPolicy scores every criterion of every clause.
type AllCategoriesPolicy struct{}

func (AllCategoriesPolicy) Score(tree ConditionTree, attrs visitor.Attributes, now time.Time) float64 {
	return scoreCriteria(Explain(tree, attrs, now), func(Criterion) bool { return true })
}

func scoreCriteria(criteria []Criterion, counted func(Criterion) bool) float64 {
	var total, met int
	for _, c := range criteria {
		if !counted(c) {
			continue
		}
		total++
		if c.Met {
			met++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(met) / float64(total) * 100
}

// PolicyFor returns the scoring policy registered under name, defaulting to
// GeoBehavioralPolicy.
func PolicyFor(name string) ScoringPolicy {
	if name == config.ScoringPolicyAll {
		return AllCategoriesPolicy{}
	}
	return GeoBehavioralPolicy{}
}
