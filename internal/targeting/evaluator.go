package targeting

import (
	"time"

	"stayboost/internal/pkg/visitor"
)

// Evaluate reports whether attrs satisfy every present clause of tree.
// It stops at the first failing clause. An empty tree always passes.
// Timing clauses are checked against now, which callers pass in UTC.
func Evaluate(tree ConditionTree, attrs visitor.Attributes, now time.Time) bool {
	for _, clause := range tree.Clauses() {
		if !clausePasses(clause, attrs, now) {
			return false
		}
	}
	return true
}

func clausePasses(clause Clause, attrs visitor.Attributes, now time.Time) bool {
	for _, c := range clause.criteria(attrs, now) {
		if !c.Met {
			return false
		}
	}
	return true
}

// Explain returns every criterion of tree with its outcome, in clause order.
func Explain(tree ConditionTree, attrs visitor.Attributes, now time.Time) []Criterion {
	var out []Criterion
	for _, clause := range tree.Clauses() {
		out = append(out, clause.criteria(attrs, now)...)
	}
	return out
}
