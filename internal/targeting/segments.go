package targeting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"stayboost/internal/pkg/validation"
)

// CustomerSegment is a named group of visitors described by criteria of the
// same shape as a rule's condition tree.
type CustomerSegment struct {
	ID            uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	Shop          string         `gorm:"not null;index" json:"shop"`
	Name          string         `gorm:"not null" json:"name"`
	Description   string         `json:"description"`
	Criteria      datatypes.JSON `json:"criteria"`
	EstimatedSize int64          `gorm:"not null" json:"estimatedSize"`
	IsActive      bool           `gorm:"not null" json:"isActive"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// SegmentInput carries the merchant-editable fields of a segment.
type SegmentInput struct {
	Name        string          `json:"name" validate:"required,max=255"`
	Description string          `json:"description" validate:"max=1000"`
	Criteria    json.RawMessage `json:"criteria"`
	IsActive    *bool           `json:"isActive"`
}

func (in SegmentInput) validate() (datatypes.JSON, error) {
	if err := validation.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	tree, err := ParseConditions(in.Criteria)
	if err != nil {
		return nil, err
	}
	if err := tree.Validate(); err != nil {
		return nil, err
	}
	normalized, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("failed to encode criteria: %w", err)
	}
	return datatypes.JSON(normalized), nil
}

// ListSegments returns the segments of a shop as stored.
func ListSegments(db *gorm.DB, shop string) ([]CustomerSegment, error) {
	var segments []CustomerSegment
	if err := db.Where("shop = ?", shop).Order("id ASC").Find(&segments).Error; err != nil {
		return nil, fmt.Errorf("failed to list segments: %w", err)
	}
	return segments, nil
}

// GetSegment returns a segment owned by shop as stored.
func GetSegment(db *gorm.DB, shop string, id uint) (*CustomerSegment, error) {
	var segment CustomerSegment
	if err := db.Where("shop = ? AND id = ?", shop, id).First(&segment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrSegmentNotFound, id)
		}
		return nil, fmt.Errorf("failed to get segment: %w", err)
	}
	return &segment, nil
}

// CreateSegment validates input and stores a new segment for shop.
func CreateSegment(db *gorm.DB, shop string, in SegmentInput) (*CustomerSegment, error) {
	criteria, err := in.validate()
	if err != nil {
		return nil, err
	}
	segment := CustomerSegment{
		Shop:        shop,
		Name:        in.Name,
		Description: in.Description,
		Criteria:    criteria,
		IsActive:    true,
	}
	if in.IsActive != nil {
		segment.IsActive = *in.IsActive
	}
	if err := db.Create(&segment).Error; err != nil {
		return nil, fmt.Errorf("failed to create segment: %w", err)
	}
	return &segment, nil
}

// UpdateSegment replaces the editable fields of a segment.
func UpdateSegment(db *gorm.DB, shop string, id uint, in SegmentInput) (*CustomerSegment, error) {
	criteria, err := in.validate()
	if err != nil {
		return nil, err
	}
	segment, err := GetSegment(db, shop, id)
	if err != nil {
		return nil, err
	}
	segment.Name = in.Name
	segment.Description = in.Description
	segment.Criteria = criteria
	if in.IsActive != nil {
		segment.IsActive = *in.IsActive
	}
	if err := db.Save(segment).Error; err != nil {
		return nil, fmt.Errorf("failed to update segment: %w", err)
	}
	return segment, nil
}

// DeleteSegment removes a segment.
func DeleteSegment(db *gorm.DB, shop string, id uint) error {
	result := db.Where("shop = ? AND id = ?", shop, id).Delete(&CustomerSegment{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete segment: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: id %d", ErrSegmentNotFound, id)
	}
	return nil
}

// SegmentEstimator recomputes segment sizes from recent audit executions.
type SegmentEstimator struct {
	db     *gorm.DB
	logger *slog.Logger
	window time.Duration
	now    func() time.Time
}

// NewSegmentEstimator creates an estimator looking back over window.
func NewSegmentEstimator(db *gorm.DB, logger *slog.Logger, window time.Duration) *SegmentEstimator {
	if logger == nil {
		logger = slog.Default()
	}
	return &SegmentEstimator{db: db, logger: logger, window: window, now: time.Now}
}

// Estimate counts distinct visitors of shop, seen within the window, whose
// recorded attributes satisfy criteria at the time they were recorded.
// Visitors are identified by user id, then session id, then evaluation id.
func (e *SegmentEstimator) Estimate(ctx context.Context, shop string, criteria ConditionTree) (int64, error) {
	since := e.now().UTC().Add(-e.window)
	seen := make(map[string]struct{})

	var batch []TargetingExecution
	result := e.db.WithContext(ctx).
		Select("id", "user_id", "session_id", "evaluation_id", "executed_at", "visitor_context").
		Where("shop = ? AND executed_at >= ?", shop, since).
		FindInBatches(&batch, 500, func(tx *gorm.DB, _ int) error {
			for _, execution := range batch {
				key := visitorKey(execution)
				if _, ok := seen[key]; ok {
					continue
				}
				snapshot, err := execution.Snapshot()
				if err != nil {
					continue
				}
				if Evaluate(criteria, snapshot.Attributes, execution.ExecutedAt.UTC()) {
					seen[key] = struct{}{}
				}
			}
			return nil
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to estimate segment size: %w", result.Error)
	}
	return int64(len(seen)), nil
}

func visitorKey(e TargetingExecution) string {
	switch {
	case e.UserID != "":
		return "u:" + e.UserID
	case e.SessionID != "":
		return "s:" + e.SessionID
	default:
		return "e:" + e.EvaluationID
	}
}

// Refresh recomputes segment.EstimatedSize and stores it. Failures are
// logged and leave the cached value in place.
func (e *SegmentEstimator) Refresh(ctx context.Context, segment *CustomerSegment) {
	criteria, err := ParseConditions(segment.Criteria)
	if err != nil {
		e.logger.Warn("Malformed segment criteria, estimating as empty",
			slog.Uint64("segment_id", uint64(segment.ID)),
			slog.Any("error", err))
		criteria = ConditionTree{}
	}

	size, err := e.Estimate(ctx, segment.Shop, criteria)
	if err != nil {
		e.logger.Error("Failed to estimate segment size",
			slog.Uint64("segment_id", uint64(segment.ID)),
			slog.Any("error", err))
		return
	}
	segment.EstimatedSize = size

	if err := e.db.WithContext(ctx).Model(&CustomerSegment{}).
		Where("id = ?", segment.ID).
		UpdateColumn("estimated_size", size).Error; err != nil {
		e.logger.Error("Failed to store segment size",
			slog.Uint64("segment_id", uint64(segment.ID)),
			slog.Any("error", err))
	}
}

// RefreshActive refreshes the size of every active segment of every shop and
// returns how many were refreshed.
func (e *SegmentEstimator) RefreshActive(ctx context.Context) (int, error) {
	var segments []CustomerSegment
	if err := e.db.WithContext(ctx).Where("is_active = ?", true).Order("id ASC").Find(&segments).Error; err != nil {
		return 0, fmt.Errorf("failed to list active segments: %w", err)
	}
	for i := range segments {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		e.Refresh(ctx, &segments[i])
	}
	return len(segments), nil
}
