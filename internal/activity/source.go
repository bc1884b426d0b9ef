// internal/activity/source.go
package activity

import (
	"context"
	"time"

	"github-activity-tracker/internal/model"
)

// Source is the remote API surface the engine consumes. It is implemented
// by *github.Client; one Source carries exactly one credential.
type Source interface {
	RateLimit(ctx context.Context) (model.RateLimitStatus, error)
	GetProfile(ctx context.Context, account string) (model.Profile, error)
	ListRepositories(ctx context.Context, account string) ([]model.Repository, error)
	ListCommits(ctx context.Context, account, repo string, since time.Time) ([]model.Commit, error)
}
