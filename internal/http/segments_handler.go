package http

import (
	"net/http"
	"time"

	"github.com/karloscodes/cartridge"

	"stayboost/internal/config"
	"stayboost/internal/targeting"
)

func segmentEstimator(ctx *cartridge.Context) *targeting.SegmentEstimator {
	window := 30 * 24 * time.Hour
	if cfg, ok := ctx.Config.(*config.Config); ok {
		window = cfg.SegmentEstimationWindow()
	}
	return targeting.NewSegmentEstimator(ctx.DB(), ctx.Logger, window)
}

// SegmentsIndexAction lists the shop's segments with fresh size estimates.
func SegmentsIndexAction(ctx *cartridge.Context) error {
	segments, err := targeting.ListSegments(ctx.DB(), shopOf(ctx))
	if err != nil {
		return RespondError(ctx, err)
	}
	estimator := segmentEstimator(ctx)
	for i := range segments {
		estimator.Refresh(ctx.UserContext(), &segments[i])
	}
	return ctx.JSON(segments)
}

// SegmentShowAction returns one segment with a fresh size estimate.
func SegmentShowAction(ctx *cartridge.Context) error {
	id, ok := idParam(ctx)
	if !ok {
		return invalidID(ctx)
	}
	segment, err := targeting.GetSegment(ctx.DB(), shopOf(ctx), id)
	if err != nil {
		return RespondError(ctx, err)
	}
	segmentEstimator(ctx).Refresh(ctx.UserContext(), segment)
	return ctx.JSON(segment)
}

// SegmentCreateAction stores a new segment and estimates its size.
func SegmentCreateAction(ctx *cartridge.Context) error {
	var in targeting.SegmentInput
	if err := ctx.BodyParser(&in); err != nil {
		return BadRequest(ctx, "Invalid request body")
	}
	segment, err := targeting.CreateSegment(ctx.DB(), shopOf(ctx), in)
	if err != nil {
		return RespondError(ctx, err)
	}
	segmentEstimator(ctx).Refresh(ctx.UserContext(), segment)
	return ctx.Status(http.StatusCreated).JSON(segment)
}

// SegmentUpdateAction replaces a segment's editable fields.
func SegmentUpdateAction(ctx *cartridge.Context) error {
	id, ok := idParam(ctx)
	if !ok {
		return invalidID(ctx)
	}
	var in targeting.SegmentInput
	if err := ctx.BodyParser(&in); err != nil {
		return BadRequest(ctx, "Invalid request body")
	}
	segment, err := targeting.UpdateSegment(ctx.DB(), shopOf(ctx), id, in)
	if err != nil {
		return RespondError(ctx, err)
	}
	segmentEstimator(ctx).Refresh(ctx.UserContext(), segment)
	return ctx.JSON(segment)
}

// SegmentDeleteAction removes a segment.
func SegmentDeleteAction(ctx *cartridge.Context) error {
	id, ok := idParam(ctx)
	if !ok {
		return invalidID(ctx)
	}
	if err := targeting.DeleteSegment(ctx.DB(), shopOf(ctx), id); err != nil {
		return RespondError(ctx, err)
	}
	return ctx.SendStatus(http.StatusNoContent)
}
