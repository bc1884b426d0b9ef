// internal/activity/discover.go
package activity

import (
	"context"

	custom_errors "github-activity-tracker/internal/errors"
	"github-activity-tracker/internal/model"
)

// RepositoryDiscoverer resolves an account and lists its repositories in the
// order GitHub returns them (newest created first).
type RepositoryDiscoverer struct{}

// Discover looks the profile up first; when that fails no listing request is made.
func (RepositoryDiscoverer) Discover(ctx context.Context, src Source, account string) (model.Profile, []model.Repository, error) {
	profile, err := src.GetProfile(ctx, account)
	if err != nil {
		return model.Profile{}, nil, err
	}

	repos, err := src.ListRepositories(ctx, account)
	if err != nil {
		return profile, nil, err
	}
	if len(repos) == 0 {
		return profile, nil, &custom_errors.EmptyRepositorySetError{Account: account}
	}
	return profile, repos, nil
}
