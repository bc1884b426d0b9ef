// internal/activity/commits.go
package activity

import (
	"context"
	"time"

	"github-activity-tracker/internal/model"
)

// CommitFetcher lists the commits of one repository since the reference date.
type CommitFetcher struct{}

// Fetch filters server side with since and drops anything older that
// still slips through.
func (CommitFetcher) Fetch(ctx context.Context, src Source, account, repo string, since time.Time) ([]model.Commit, error) {
	commits, err := src.ListCommits(ctx, account, repo, since)
	if err != nil {
		return nil, err
	}

	qualifying := make([]model.Commit, 0, len(commits))
	for _, c := range commits {
		if !c.AuthorDate.Before(since) {
			qualifying = append(qualifying, c)
		}
	}
	return qualifying, nil
}
