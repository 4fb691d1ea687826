// Package usage implements the billing meter: plan limits, the
// request-scoped consume-once guard and refund bookkeeping.
package usage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pleia/cache"
	"pleia/logger"
	"pleia/model"
	"pleia/repository"

	"github.com/google/uuid"
)

// ErrLimitReached is returned when a consumption attempt exceeds the plan
// allowance.
var ErrLimitReached = errors.New("usage limit reached")

// Monthly generation allowances per plan. Unlimited plans never meter.
const (
	FreeMonthlyLimit = 5
	ProMonthlyLimit  = 200
)

// PlanLimit returns the monthly unit limit for a plan; -1 means unlimited.
func PlanLimit(plan model.Plan) int {
	switch plan {
	case model.PlanUnlimited:
		return -1
	case model.PlanPro:
		return ProMonthlyLimit
	default:
		return FreeMonthlyLimit
	}
}

// monthStart returns the first instant of t's month in UTC.
func monthStart(t time.Time) time.Time {
	y, m, _ := t.UTC().Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

// Run is the per-request billing guard. It wraps the user's plan context
// and guarantees at most one successful consumption per request; a request
// that fails after consuming triggers a refund of that consumption.
type Run struct {
	user   *model.User
	ledger repository.UsageRepository

	limit    int // -1 = unlimited
	used     int
	consumed bool
	units    int
	eventID  string
	limitHit bool
}

// NewRun snapshots the user's current usage. The Redis tally is consulted
// first; on a miss the SQL ledger is summed and the tally resynced.
func NewRun(ctx context.Context, user *model.User, ledger repository.UsageRepository) (*Run, error) {
	run := &Run{
		user:   user,
		ledger: ledger,
		limit:  PlanLimit(user.Plan),
	}
	if run.limit < 0 {
		return run, nil
	}

	now := time.Now()
	used, hit, err := cache.GetUsage(ctx, user.ID, now)
	if err != nil {
		logger.Warn("[Usage] Tally read failed, falling back to ledger",
			logger.Int64("userID", user.ID),
			logger.ErrorField(err))
		hit = false
	}
	if !hit {
		used, err = ledger.CountUnitsSince(user.ID, monthStart(now))
		if err != nil {
			return nil, fmt.Errorf("failed to load usage for user %d: %w", user.ID, err)
		}
		if err := cache.SetUsage(ctx, user.ID, now, used); err != nil {
			logger.Warn("[Usage] Tally resync failed", logger.ErrorField(err))
		}
	}

	run.used = used
	return run, nil
}

// HasAllowance reports whether at least one more unit can be consumed.
func (r *Run) HasAllowance() bool {
	if r.limit < 0 {
		return true
	}
	return r.used < r.limit
}

// IsUnlimited reports whether the plan never meters.
func (r *Run) IsUnlimited() bool {
	return r.limit < 0
}

// HasConsumed reports whether this run already consumed its unit.
func (r *Run) HasConsumed() bool {
	return r.consumed
}

// WasLimitReached reports whether a consumption attempt was rejected for
// lack of allowance.
func (r *Run) WasLimitReached() bool {
	return r.limitHit
}

// EventID returns the ledger event ID of the consumption, or "".
func (r *Run) EventID() string {
	return r.eventID
}

// Remaining returns how many units are left this month; -1 when unlimited.
func (r *Run) Remaining() int {
	if r.limit < 0 {
		return -1
	}
	left := r.limit - r.used
	if left < 0 {
		return 0
	}
	return left
}

// ConsumeOnFirstTrack records the single billing unit for this request.
// Idempotent: repeat calls after a successful consumption are no-ops.
// Unlimited plans record a zero-unit event for analytics but never hit the
// limit.
func (r *Run) ConsumeOnFirstTrack(ctx context.Context, count int, meta map[string]interface{}) error {
	if r.consumed {
		return nil
	}
	if !r.HasAllowance() {
		r.limitHit = true
		return ErrLimitReached
	}

	units := 1
	if r.IsUnlimited() {
		units = 0
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		metaJSON = []byte("{}")
	}

	event := &model.UsageEvent{
		EventID: uuid.NewString(),
		UserID:  r.user.ID,
		Units:   units,
		Kind:    "playlist_generation",
		Meta:    string(metaJSON),
	}
	if err := r.ledger.RecordEvent(event); err != nil {
		return fmt.Errorf("failed to consume usage unit: %w", err)
	}

	r.consumed = true
	r.units = units
	r.eventID = event.EventID
	r.used += units

	if units > 0 {
		if _, err := cache.IncrUsage(ctx, r.user.ID, time.Now(), units); err != nil {
			logger.Warn("[Usage] Tally increment failed", logger.ErrorField(err))
		}
	}

	logger.Info("[Usage] Unit consumed",
		logger.Int64("userID", r.user.ID),
		logger.String("eventID", r.eventID),
		logger.Int("trackCount", count))
	return nil
}

// Refund reverses the consumption recorded by this run. Best-effort: a
// refund failure is logged by the caller, never retried.
func (r *Run) Refund(ctx context.Context) error {
	if !r.consumed || r.eventID == "" {
		return nil
	}

	if err := r.ledger.RefundEvent(r.eventID); err != nil {
		return fmt.Errorf("failed to refund usage event %s: %w", r.eventID, err)
	}
	if r.units > 0 {
		if err := cache.DecrUsage(ctx, r.user.ID, time.Now(), r.units); err != nil {
			logger.Warn("[Usage] Tally decrement failed", logger.ErrorField(err))
		}
		r.used -= r.units
	}

	r.consumed = false
	logger.Info("[Usage] Unit refunded",
		logger.Int64("userID", r.user.ID),
		logger.String("eventID", r.eventID))
	return nil
}

// Summary builds the usage view for the usage endpoint.
func (r *Run) Summary() model.UsageSummary {
	return model.UsageSummary{
		UserID:    r.user.ID,
		Used:      r.used,
		Limit:     r.limit,
		Remaining: r.Remaining(),
		Unlimited: r.IsUnlimited(),
	}
}
