// internal/activity/aggregator.go
package activity

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github-activity-tracker/internal/model"
)

// Aggregator builds the activity of every tracked account. Failures are
// scoped to the account they happened in.
type Aggregator struct {
	discoverer  RepositoryDiscoverer
	fetcher     CommitFetcher
	since       time.Time
	concurrency int
	logger      *slog.Logger
}

// NewAggregator creates an Aggregator. concurrency bounds how many accounts
// are processed at once; 1 processes them strictly one after another.
func NewAggregator(since time.Time, concurrency int, logger *slog.Logger) *Aggregator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Aggregator{
		since:       since,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Since returns the reference date.
func (a *Aggregator) Since() time.Time {
	return a.since
}

type accountOutcome struct {
	records []model.ActivityRecord
	err     error
}

// Aggregate processes all accounts and joins their outcomes in account
// order, so identical remote data always yields an identical result.
func (a *Aggregator) Aggregate(ctx context.Context, src Source, accounts []string) model.CycleResult {
	outcomes := make([]accountOutcome, len(accounts))

	var g errgroup.Group
	g.SetLimit(a.concurrency)
	for i, account := range accounts {
		g.Go(func() error {
			records, err := a.aggregateAccount(ctx, src, account)
			outcomes[i] = accountOutcome{records: records, err: err}
			return nil
		})
	}
	_ = g.Wait() // workers never fail; errors are per account

	result := model.CycleResult{
		Activities: []model.ActivityRecord{},
		Errors:     map[string]string{},
	}
	for i, account := range accounts {
		if err := outcomes[i].err; err != nil {
			result.Errors[account] = err.Error()
			continue
		}
		result.Activities = append(result.Activities, outcomes[i].records...)
	}
	return result
}

// aggregateAccount is all-or-nothing: the first failing repository voids
// the records already built for this account.
func (a *Aggregator) aggregateAccount(ctx context.Context, src Source, account string) ([]model.ActivityRecord, error) {
	logger := a.logger.With("account", account)
	logger.Info("Aggregating account activity")

	profile, repos, err := a.discoverer.Discover(ctx, src, account)
	if err != nil {
		logger.Warn("Repository discovery failed", "error", err)
		return nil, err
	}

	var records []model.ActivityRecord
	for _, repo := range repos {
		commits, err := a.fetcher.Fetch(ctx, src, account, repo.Name, a.since)
		if err != nil {
			logger.Warn("Commit fetch failed, dropping account results", "repo", repo.Name, "error", err)
			return nil, err
		}
		if len(commits) == 0 {
			continue
		}
		records = append(records, newActivityRecord(account, profile, repo, commits))
	}

	logger.Info("Account aggregated", "repositories", len(repos), "active_repositories", len(records))
	return records, nil
}

func newActivityRecord(account string, profile model.Profile, repo model.Repository, commits []model.Commit) model.ActivityRecord {
	var last time.Time
	for _, c := range commits {
		if c.AuthorDate.After(last) {
			last = c.AuthorDate
		}
	}
	return model.ActivityRecord{
		Account:     account,
		Repository:  repo,
		Commits:     commits,
		RepoCount:   profile.PublicRepos,
		LastUpdated: last,
		CreatedAt:   repo.CreatedAt,
	}
}
