package targeting

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"stayboost/internal/pkg/visitor"
)

// TargetingExecution is the immutable audit record of one rule evaluated
// against one visitor.
type TargetingExecution struct {
	ID             uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	RuleID         uint           `gorm:"not null;index" json:"ruleId"`
	Shop           string         `gorm:"not null;index:idx_executions_shop_time" json:"shop"`
	EvaluationID   string         `gorm:"size:26;index" json:"evaluationId"`
	UserID         string         `json:"userId"`
	SessionID      string         `json:"sessionId"`
	Matched        bool           `gorm:"not null" json:"matched"`
	Score          float64        `json:"score"`
	ExecutedAt     time.Time      `gorm:"not null;index:idx_executions_shop_time" json:"executedAt"`
	Conditions     datatypes.JSON `json:"conditions"`
	VisitorContext datatypes.JSON `json:"visitorContext"`
}

// VisitorSnapshot is what an execution remembers about the visitor.
type VisitorSnapshot struct {
	Context    visitor.Context    `json:"context"`
	Attributes visitor.Attributes `json:"attributes"`
}

// ExecutionSummary aggregates the executions of one rule.
type ExecutionSummary struct {
	Total        int64   `json:"total"`
	Matched      int64   `json:"matched"`
	AverageScore float64 `json:"averageScore"`
}

// NewEvaluationID returns a sortable id shared by all executions written by
// one selection call.
func NewEvaluationID() string {
	return ulid.Make().String()
}

func newExecution(evaluationID string, rule TargetingRule, vc visitor.Context, attrs visitor.Attributes, matched bool, score float64, at time.Time) (*TargetingExecution, error) {
	snapshot, err := json.Marshal(VisitorSnapshot{Context: vc, Attributes: attrs})
	if err != nil {
		return nil, fmt.Errorf("failed to encode visitor snapshot: %w", err)
	}
	conditions := rule.Conditions
	if len(conditions) == 0 {
		conditions = datatypes.JSON("{}")
	}
	return &TargetingExecution{
		RuleID:         rule.ID,
		Shop:           rule.Shop,
		EvaluationID:   evaluationID,
		UserID:         vc.UserID,
		SessionID:      vc.SessionID,
		Matched:        matched,
		Score:          score,
		ExecutedAt:     at,
		Conditions:     conditions,
		VisitorContext: datatypes.JSON(snapshot),
	}, nil
}

// Snapshot decodes the stored visitor snapshot.
func (e TargetingExecution) Snapshot() (VisitorSnapshot, error) {
	var s VisitorSnapshot
	if err := json.Unmarshal(e.VisitorContext, &s); err != nil {
		return VisitorSnapshot{}, fmt.Errorf("failed to decode visitor snapshot: %w", err)
	}
	return s, nil
}

// ListExecutions returns the most recent executions of a rule, newest first.
func ListExecutions(db *gorm.DB, shop string, ruleID uint, limit int) ([]TargetingExecution, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var executions []TargetingExecution
	if err := db.Where("shop = ? AND rule_id = ?", shop, ruleID).
		Order("executed_at DESC, id DESC").
		Limit(limit).
		Find(&executions).Error; err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	return executions, nil
}

// SummarizeExecutions counts a rule's executions and averages the scores of
// the matched ones.
func SummarizeExecutions(db *gorm.DB, shop string, ruleID uint) (ExecutionSummary, error) {
	var summary ExecutionSummary
	err := db.Raw(`
		SELECT
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN matched THEN 1 ELSE 0 END), 0) AS matched,
			COALESCE(AVG(CASE WHEN matched THEN score END), 0) AS average_score
		FROM targeting_executions
		WHERE shop = ? AND rule_id = ?`, shop, ruleID).Scan(&summary).Error
	if err != nil {
		return ExecutionSummary{}, fmt.Errorf("failed to summarize executions: %w", err)
	}
	return summary, nil
}

// PruneExecutions deletes executions older than cutoff and returns how many
// rows were removed.
func PruneExecutions(db *gorm.DB, cutoff time.Time) (int64, error) {
	result := db.Where("executed_at < ?", cutoff).Delete(&TargetingExecution{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to prune executions: %w", result.Error)
	}
	return result.RowsAffected, nil
}
