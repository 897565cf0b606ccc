package targeting

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"stayboost/internal/pkg/validation"
)

// RuleType is the frequency model a rule's popup follows.
type RuleType string

const (
	RuleTypePerUser       RuleType = "per_user"
	RuleTypePerSession    RuleType = "per_session"
	RuleTypePerPage       RuleType = "per_page"
	RuleTypeSmartAdaptive RuleType = "smart_adaptive"
	RuleTypeGlobal        RuleType = "global"
)

// TargetingRule decides which shop visitors see a popup.
type TargetingRule struct {
	ID         uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	Shop       string         `gorm:"not null;index:idx_rules_shop_active" json:"shop"`
	Name       string         `gorm:"not null" json:"name"`
	RuleType   RuleType       `gorm:"not null;default:'global'" json:"ruleType"`
	Conditions datatypes.JSON `json:"conditions"`
	Priority   int            `gorm:"not null" json:"priority"`
	IsActive   bool           `gorm:"not null;index:idx_rules_shop_active" json:"isActive"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// RuleInput carries the merchant-editable fields of a rule.
type RuleInput struct {
	Name       string          `json:"name" validate:"required,max=255"`
	RuleType   RuleType        `json:"ruleType" validate:"omitempty,oneof=per_user per_session per_page smart_adaptive global"`
	Conditions json.RawMessage `json:"conditions"`
	Priority   *int            `json:"priority" validate:"omitempty,min=-1000,max=1000"`
	IsActive   *bool           `json:"isActive"`
}

func (in RuleInput) validate() (datatypes.JSON, error) {
	if err := validation.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	tree, err := ParseConditions(in.Conditions)
	if err != nil {
		return nil, err
	}
	if err := tree.Validate(); err != nil {
		return nil, err
	}
	normalized, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("failed to encode conditions: %w", err)
	}
	return datatypes.JSON(normalized), nil
}

// ListRules returns all rules of a shop, highest priority first.
func ListRules(db *gorm.DB, shop string) ([]TargetingRule, error) {
	var rules []TargetingRule
	if err := db.Where("shop = ?", shop).
		Order("priority DESC, id ASC").
		Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("failed to list targeting rules: %w", err)
	}
	return rules, nil
}

// ListActiveRules returns the active rules of a shop in evaluation order:
// priority descending, ties in creation order.
func ListActiveRules(db *gorm.DB, shop string) ([]TargetingRule, error) {
	var rules []TargetingRule
	if err := db.Where("shop = ? AND is_active = ?", shop, true).
		Order("priority DESC, id ASC").
		Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("failed to load active targeting rules: %w", err)
	}
	return rules, nil
}

// GetRule returns a rule owned by shop.
func GetRule(db *gorm.DB, shop string, id uint) (*TargetingRule, error) {
	var rule TargetingRule
	if err := db.Where("shop = ? AND id = ?", shop, id).First(&rule).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrRuleNotFound, id)
		}
		return nil, fmt.Errorf("failed to get targeting rule: %w", err)
	}
	return &rule, nil
}

// CreateRule validates input and stores a new rule for shop. Rules are
// active unless input says otherwise.
func CreateRule(db *gorm.DB, shop string, in RuleInput) (*TargetingRule, error) {
	conditions, err := in.validate()
	if err != nil {
		return nil, err
	}

	rule := TargetingRule{
		Shop:       shop,
		Name:       in.Name,
		RuleType:   in.RuleType,
		Conditions: conditions,
		IsActive:   true,
	}
	if rule.RuleType == "" {
		rule.RuleType = RuleTypeGlobal
	}
	if in.Priority != nil {
		rule.Priority = *in.Priority
	}
	if in.IsActive != nil {
		rule.IsActive = *in.IsActive
	}

	if err := db.Create(&rule).Error; err != nil {
		return nil, fmt.Errorf("failed to create targeting rule: %w", err)
	}
	return &rule, nil
}

// UpdateRule replaces the editable fields of an existing rule. Nil priority
// and active flags keep their stored values.
func UpdateRule(db *gorm.DB, shop string, id uint, in RuleInput) (*TargetingRule, error) {
	conditions, err := in.validate()
	if err != nil {
		return nil, err
	}

	rule, err := GetRule(db, shop, id)
	if err != nil {
		return nil, err
	}

	rule.Name = in.Name
	if in.RuleType != "" {
		rule.RuleType = in.RuleType
	}
	rule.Conditions = conditions
	if in.Priority != nil {
		rule.Priority = *in.Priority
	}
	if in.IsActive != nil {
		rule.IsActive = *in.IsActive
	}

	if err := db.Save(rule).Error; err != nil {
		return nil, fmt.Errorf("failed to update targeting rule: %w", err)
	}
	return rule, nil
}

// DeleteRule removes a rule. Its executions are kept as audit history until
// the retention job prunes them.
func DeleteRule(db *gorm.DB, shop string, id uint) error {
	result := db.Where("shop = ? AND id = ?", shop, id).Delete(&TargetingRule{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete targeting rule: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: id %d", ErrRuleNotFound, id)
	}
	return nil
}
