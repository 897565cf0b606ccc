package targeting

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/oschwald/geoip2-golang"
	"gorm.io/gorm"

	"stayboost/internal/metrics"
	"stayboost/internal/models"
	"stayboost/internal/pkg/visitor"
)

// Outcome of evaluating one rule.
type Outcome string

const (
	OutcomeMatched    Outcome = "matched"
	OutcomeNotMatched Outcome = "not_matched"
	OutcomeErrored    Outcome = "errored"
)

// Match is a rule that applies to the visitor.
type Match struct {
	RuleID     uint     `json:"ruleId"`
	Name       string   `json:"name"`
	RuleType   RuleType `json:"ruleType"`
	Priority   int      `json:"priority"`
	MatchScore float64  `json:"matchScore"`
}

// EvaluationResult records what happened to one rule during a selection.
type EvaluationResult struct {
	RuleID  uint    `json:"ruleId"`
	Outcome Outcome `json:"outcome"`
	Score   float64 `json:"score"`
	Err     error   `json:"-"`
}

// Selection is the result of SelectMatchingRules. Matches are ordered by
// priority descending; Results holds one entry per active rule in the same
// order the rules were evaluated.
type Selection struct {
	EvaluationID string             `json:"evaluationId"`
	Attributes   visitor.Attributes `json:"attributes"`
	Matches      []Match            `json:"applicableRules"`
	Results      []EvaluationResult `json:"results"`
}

// Selector evaluates a shop's active rules for a visitor.
type Selector struct {
	db              *gorm.DB
	logger          *slog.Logger
	policy          ScoringPolicy
	auditNonMatches bool
	geoDB           *geoip2.Reader
	now             func() time.Time
}

// SelectorOption configures a Selector.
type SelectorOption func(*Selector)

// WithScoringPolicy replaces the default GeoBehavioralPolicy.
func WithScoringPolicy(p ScoringPolicy) SelectorOption {
	return func(s *Selector) { s.policy = p }
}

// WithAuditNonMatches also writes execution rows for rules that did not match.
func WithAuditNonMatches(enabled bool) SelectorOption {
	return func(s *Selector) { s.auditNonMatches = enabled }
}

// WithGeoDB enables the GeoLite2 country fallback.
func WithGeoDB(db *geoip2.Reader) SelectorOption {
	return func(s *Selector) { s.geoDB = db }
}

// WithClock overrides the time source used for timing clauses.
func WithClock(now func() time.Time) SelectorOption {
	return func(s *Selector) { s.now = now }
}

// NewSelector creates a Selector backed by db.
func NewSelector(db *gorm.DB, logger *slog.Logger, opts ...SelectorOption) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Selector{
		db:     db,
		logger: logger,
		policy: GeoBehavioralPolicy{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SelectMatchingRules evaluates every active rule of vc.Shop, highest
// priority first, and returns the ones that match with their scores.
//
// A rule whose conditions cannot be decoded is evaluated as an empty tree.
// A rule that fails during evaluation is logged, reported as errored and
// skipped. Audit rows are written for matches (and for non-matches when
// configured); failing to write one is logged and does not fail the call.
// Failing to load the rules is returned as an error.
func (s *Selector) SelectMatchingRules(ctx context.Context, vc visitor.Context) (Selection, error) {
	start := time.Now()
	defer func() { metrics.SelectionDuration.Observe(time.Since(start).Seconds()) }()

	db := s.db.WithContext(ctx)
	rules, err := ListActiveRules(db, vc.Shop)
	if err != nil {
		return Selection{}, err
	}

	now := s.now().UTC()
	selection := Selection{
		EvaluationID: NewEvaluationID(),
		Attributes:   visitor.Normalize(vc, s.geoDB),
		Matches:      []Match{},
		Results:      make([]EvaluationResult, 0, len(rules)),
	}

	for _, rule := range rules {
		result := s.evaluateRule(rule, selection.Attributes, now)
		selection.Results = append(selection.Results, result)
		metrics.RuleEvaluations.WithLabelValues(string(result.Outcome)).Inc()

		switch result.Outcome {
		case OutcomeMatched:
			selection.Matches = append(selection.Matches, Match{
				RuleID:     rule.ID,
				Name:       rule.Name,
				RuleType:   rule.RuleType,
				Priority:   rule.Priority,
				MatchScore: result.Score,
			})
			s.audit(ctx, selection.EvaluationID, rule, vc, selection.Attributes, result, now)
		case OutcomeNotMatched:
			if s.auditNonMatches {
				s.audit(ctx, selection.EvaluationID, rule, vc, selection.Attributes, result, now)
			}
		case OutcomeErrored:
			s.logger.Warn("Targeting rule evaluation failed",
				slog.Uint64("rule_id", uint64(rule.ID)),
				slog.String("shop", rule.Shop),
				slog.Any("error", result.Err))
		}
	}

	s.logger.Debug("Selected targeting rules",
		slog.String("shop", vc.Shop),
		slog.String("evaluation_id", selection.EvaluationID),
		slog.Int("rules", len(rules)),
		slog.Int("matches", len(selection.Matches)))

	return selection, nil
}

func (s *Selector) evaluateRule(rule TargetingRule, attrs visitor.Attributes, now time.Time) (result EvaluationResult) {
	result.RuleID = rule.ID
	defer func() {
		if r := recover(); r != nil {
			result = EvaluationResult{
				RuleID:  rule.ID,
				Outcome: OutcomeErrored,
				Err:     fmt.Errorf("panic evaluating rule %d: %v", rule.ID, r),
			}
		}
	}()

	tree, err := ParseConditions(rule.Conditions)
	if err != nil {
		s.logger.Warn("Malformed rule conditions, evaluating as empty",
			slog.Uint64("rule_id", uint64(rule.ID)),
			slog.Any("error", err))
		tree = ConditionTree{}
	}

	result.Score = s.policy.Score(tree, attrs, now)
	if Evaluate(tree, attrs, now) {
		result.Outcome = OutcomeMatched
	} else {
		result.Outcome = OutcomeNotMatched
	}
	return result
}

func (s *Selector) audit(ctx context.Context, evaluationID string, rule TargetingRule, vc visitor.Context, attrs visitor.Attributes, result EvaluationResult, now time.Time) {
	execution, err := newExecution(evaluationID, rule, vc, attrs, result.Outcome == OutcomeMatched, result.Score, now)
	if err == nil {
		err = models.PerformWriteContext(ctx, s.logger, s.db, func(tx *gorm.DB) error {
			return tx.Create(execution).Error
		})
	}
	if err != nil {
		metrics.AuditWriteFailures.Inc()
		s.logger.Error("Failed to record targeting execution",
			slog.Uint64("rule_id", uint64(rule.ID)),
			slog.String("evaluation_id", evaluationID),
			slog.Any("error", err))
	}
}
