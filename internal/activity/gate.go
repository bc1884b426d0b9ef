// internal/activity/gate.go
package activity

import (
	"context"
	"log/slog"

	custom_errors "github-activity-tracker/internal/errors"
	"github-activity-tracker/internal/model"
)

// RateLimitGate decides whether a cycle may issue any account-level request.
type RateLimitGate struct {
	logger *slog.Logger
}

func NewRateLimitGate(logger *slog.Logger) *RateLimitGate {
	return &RateLimitGate{logger: logger}
}

// Check refreshes the quota. A nil status means the check itself failed.
// An exhausted quota returns the status together with a *QuotaExceededError.
func (g *RateLimitGate) Check(ctx context.Context, src Source) (*model.RateLimitStatus, error) {
	status, err := src.RateLimit(ctx)
	if err != nil {
		g.logger.Error("Rate limit check failed", "error", err)
		return nil, err
	}

	g.logger.Info("Rate limit status", "limit", status.Limit, "remaining", status.Remaining, "reset_at", status.ResetAt)
	if status.Exhausted() {
		return &status, &custom_errors.QuotaExceededError{Limit: status.Limit, ResetAt: status.ResetAt}
	}
	return &status, nil
}
