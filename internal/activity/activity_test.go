// internal/activity/activity_test.go
package activity

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	custom_errors "github-activity-tracker/internal/errors"
	"github-activity-tracker/internal/model"
)

// MockSource is a mock of the Source interface.
type MockSource struct {
	mock.Mock
}

func (m *MockSource) RateLimit(ctx context.Context) (model.RateLimitStatus, error) {
	args := m.Called(ctx)
	return args.Get(0).(model.RateLimitStatus), args.Error(1)
}
func (m *MockSource) GetProfile(ctx context.Context, account string) (model.Profile, error) {
	args := m.Called(ctx, account)
	return args.Get(0).(model.Profile), args.Error(1)
}
func (m *MockSource) ListRepositories(ctx context.Context, account string) ([]model.Repository, error) {
	args := m.Called(ctx, account)
	return args.Get(0).([]model.Repository), args.Error(1)
}
func (m *MockSource) ListCommits(ctx context.Context, account, repo string, since time.Time) ([]model.Commit, error) {
	args := m.Called(ctx, account, repo, since)
	return args.Get(0).([]model.Commit), args.Error(1)
}

var referenceDate = time.Date(2024, 9, 27, 0, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func at(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestRateLimitGate_Check(t *testing.T) {
	ctx := context.Background()
	gate := NewRateLimitGate(testLogger())

	t.Run("passes when quota remains", func(t *testing.T) {
		src := new(MockSource)
		src.On("RateLimit", ctx).Return(model.RateLimitStatus{Limit: 60, Remaining: 1}, nil).Once()

		status, err := gate.Check(ctx, src)

		require.NoError(t, err)
		assert.Equal(t, 1, status.Remaining)
		src.AssertExpectations(t)
	})

	t.Run("reports quota exceeded with the status", func(t *testing.T) {
		src := new(MockSource)
		reset := at("2024-09-28T11:00:00Z")
		src.On("RateLimit", ctx).Return(model.RateLimitStatus{Limit: 60, Remaining: 0, ResetAt: reset}, nil).Once()

		status, err := gate.Check(ctx, src)

		require.NotNil(t, status)
		assert.Equal(t, 0, status.Remaining)
		var quotaErr *custom_errors.QuotaExceededError
		require.ErrorAs(t, err, &quotaErr)
		assert.Equal(t, reset, quotaErr.ResetAt)
	})

	t.Run("returns no status when the check fails", func(t *testing.T) {
		src := new(MockSource)
		transportErr := &custom_errors.TransportError{Op: "check rate limit", Err: errors.New("connection refused")}
		src.On("RateLimit", ctx).Return(model.RateLimitStatus{}, transportErr).Once()

		status, err := gate.Check(ctx, src)

		assert.Nil(t, status)
		assert.Equal(t, transportErr, err)
	})
}

func TestRepositoryDiscoverer_Discover(t *testing.T) {
	ctx := context.Background()

	t.Run("skips listing when the profile lookup fails", func(t *testing.T) {
		src := new(MockSource)
		src.On("GetProfile", ctx, "ghost").Return(model.Profile{}, &custom_errors.NotFoundError{Account: "ghost"}).Once()

		_, repos, err := RepositoryDiscoverer{}.Discover(ctx, src, "ghost")

		assert.Nil(t, repos)
		assert.EqualError(t, err, "User ghost not found")
		src.AssertNotCalled(t, "ListRepositories", mock.Anything, mock.Anything)
	})

	t.Run("reports an empty repository set", func(t *testing.T) {
		src := new(MockSource)
		src.On("GetProfile", ctx, "alice").Return(model.Profile{Login: "alice"}, nil).Once()
		src.On("ListRepositories", ctx, "alice").Return([]model.Repository{}, nil).Once()

		_, _, err := RepositoryDiscoverer{}.Discover(ctx, src, "alice")

		var emptyErr *custom_errors.EmptyRepositorySetError
		require.ErrorAs(t, err, &emptyErr)
		assert.EqualError(t, err, "No public repositories found for alice")
	})

	t.Run("keeps the API order", func(t *testing.T) {
		src := new(MockSource)
		repos := []model.Repository{
			{Name: "old", CreatedAt: at("2020-01-01T00:00:00Z")},
			{Name: "new", CreatedAt: at("2024-01-01T00:00:00Z")},
		}
		src.On("GetProfile", ctx, "alice").Return(model.Profile{Login: "alice", PublicRepos: 2}, nil).Once()
		src.On("ListRepositories", ctx, "alice").Return(repos, nil).Once()

		profile, got, err := RepositoryDiscoverer{}.Discover(ctx, src, "alice")

		require.NoError(t, err)
		assert.Equal(t, 2, profile.PublicRepos)
		assert.Equal(t, repos, got)
	})
}

func TestCommitFetcher_Fetch(t *testing.T) {
	ctx := context.Background()
	src := new(MockSource)
	src.On("ListCommits", ctx, "alice", "x", referenceDate).Return([]model.Commit{
		{Message: "new", AuthorDate: at("2024-09-28T10:00:00Z")},
		{Message: "boundary", AuthorDate: referenceDate},
		{Message: "stale", AuthorDate: at("2024-09-26T23:59:59Z")},
	}, nil).Once()

	commits, err := CommitFetcher{}.Fetch(ctx, src, "alice", "x", referenceDate)

	require.NoError(t, err)
	require.Len(t, commits, 2)
	assert.Equal(t, "new", commits[0].Message)
	assert.Equal(t, "boundary", commits[1].Message)
}

// newScenarioSource wires alice (repo x active, repo y quiet) and bob (404).
func newScenarioSource(ctx context.Context) *MockSource {
	src := new(MockSource)
	src.On("GetProfile", ctx, "alice").Return(model.Profile{Login: "alice", PublicRepos: 5}, nil)
	src.On("ListRepositories", ctx, "alice").Return([]model.Repository{
		{Name: "x", HTMLURL: "https://github.com/alice/x", CreatedAt: at("2024-01-01T00:00:00Z")},
		{Name: "y", HTMLURL: "https://github.com/alice/y", CreatedAt: at("2023-01-01T00:00:00Z")},
	}, nil)
	src.On("ListCommits", ctx, "alice", "x", referenceDate).Return([]model.Commit{
		{Message: "feat: x", AuthorDate: at("2024-09-28T10:00:00Z"), HTMLURL: "c1"},
	}, nil)
	src.On("ListCommits", ctx, "alice", "y", referenceDate).Return([]model.Commit{}, nil)
	src.On("GetProfile", ctx, "bob").Return(model.Profile{}, &custom_errors.NotFoundError{Account: "bob"})
	return src
}

func TestAggregator_Aggregate(t *testing.T) {
	ctx := context.Background()

	t.Run("isolates a missing account from a healthy one", func(t *testing.T) {
		src := newScenarioSource(ctx)
		agg := NewAggregator(referenceDate, 1, testLogger())

		result := agg.Aggregate(ctx, src, []string{"alice", "bob"})

		require.Len(t, result.Activities, 1)
		record := result.Activities[0]
		assert.Equal(t, "alice", record.Account)
		assert.Equal(t, "x", record.Repository.Name)
		assert.Len(t, record.Commits, 1)
		assert.Equal(t, at("2024-09-28T10:00:00Z"), record.LastUpdated)
		assert.Equal(t, 5, record.RepoCount)
		assert.Equal(t, at("2024-01-01T00:00:00Z"), record.CreatedAt)
		assert.Equal(t, map[string]string{"bob": "User bob not found"}, result.Errors)
		src.AssertNotCalled(t, "ListRepositories", ctx, "bob")
	})

	t.Run("takes the latest author date regardless of order", func(t *testing.T) {
		src := new(MockSource)
		src.On("GetProfile", ctx, "carol").Return(model.Profile{Login: "carol", PublicRepos: 9}, nil)
		src.On("ListRepositories", ctx, "carol").Return([]model.Repository{{Name: "z"}}, nil)
		src.On("ListCommits", ctx, "carol", "z", referenceDate).Return([]model.Commit{
			{Message: "b", AuthorDate: at("2024-10-01T00:00:00Z")},
			{Message: "c", AuthorDate: at("2024-10-03T00:00:00Z")},
			{Message: "a", AuthorDate: at("2024-10-02T00:00:00Z")},
		}, nil)

		result := NewAggregator(referenceDate, 1, testLogger()).Aggregate(ctx, src, []string{"carol"})

		require.Len(t, result.Activities, 1)
		assert.Equal(t, at("2024-10-03T00:00:00Z"), result.Activities[0].LastUpdated)
		assert.Equal(t, 9, result.Activities[0].RepoCount)
		assert.Equal(t, []string{"b", "c", "a"}, messages(result.Activities[0].Commits))
	})

	t.Run("quiet repositories produce neither records nor errors", func(t *testing.T) {
		src := new(MockSource)
		src.On("GetProfile", ctx, "dave").Return(model.Profile{Login: "dave", PublicRepos: 2}, nil)
		src.On("ListRepositories", ctx, "dave").Return([]model.Repository{{Name: "p"}, {Name: "q"}}, nil)
		src.On("ListCommits", ctx, "dave", mock.Anything, referenceDate).Return([]model.Commit{}, nil)

		result := NewAggregator(referenceDate, 1, testLogger()).Aggregate(ctx, src, []string{"dave"})

		assert.Empty(t, result.Activities)
		assert.Empty(t, result.Errors)
	})

	t.Run("an account without repositories is an error", func(t *testing.T) {
		src := new(MockSource)
		src.On("GetProfile", ctx, "erin").Return(model.Profile{Login: "erin"}, nil)
		src.On("ListRepositories", ctx, "erin").Return([]model.Repository{}, nil)

		result := NewAggregator(referenceDate, 1, testLogger()).Aggregate(ctx, src, []string{"erin"})

		assert.Empty(t, result.Activities)
		assert.Equal(t, "No public repositories found for erin", result.Errors["erin"])
	})

	t.Run("a commit failure voids the whole account", func(t *testing.T) {
		src := newScenarioSource(ctx)
		src.On("GetProfile", ctx, "frank").Return(model.Profile{Login: "frank", PublicRepos: 3}, nil)
		src.On("ListRepositories", ctx, "frank").Return([]model.Repository{{Name: "ok"}, {Name: "broken"}, {Name: "never"}}, nil)
		src.On("ListCommits", ctx, "frank", "ok", referenceDate).Return([]model.Commit{{Message: "m", AuthorDate: at("2024-10-01T00:00:00Z")}}, nil)
		fetchErr := &custom_errors.TransportError{Op: "list commits for frank/broken", Err: errors.New("409 Git Repository is empty")}
		src.On("ListCommits", ctx, "frank", "broken", referenceDate).Return([]model.Commit(nil), fetchErr)

		result := NewAggregator(referenceDate, 1, testLogger()).Aggregate(ctx, src, []string{"frank", "alice"})

		assert.Equal(t, fetchErr.Error(), result.Errors["frank"])
		for _, a := range result.Activities {
			assert.NotEqual(t, "frank", a.Account)
		}
		require.Len(t, result.Activities, 1)
		assert.Equal(t, "alice", result.Activities[0].Account)
		src.AssertNotCalled(t, "ListCommits", ctx, "frank", "never", referenceDate)
	})

	t.Run("a bounded pool returns the same result as sequential processing", func(t *testing.T) {
		accounts := []string{"alice", "bob"}
		sequential := NewAggregator(referenceDate, 1, testLogger()).Aggregate(ctx, newScenarioSource(ctx), accounts)
		parallel := NewAggregator(referenceDate, 4, testLogger()).Aggregate(ctx, newScenarioSource(ctx), accounts)

		assert.Equal(t, sequential, parallel)
	})

	t.Run("re-running with identical data is idempotent", func(t *testing.T) {
		src := newScenarioSource(ctx)
		agg := NewAggregator(referenceDate, 1, testLogger())

		first := agg.Aggregate(ctx, src, []string{"alice", "bob"})
		second := agg.Aggregate(ctx, src, []string{"alice", "bob"})

		assert.Equal(t, first, second)
	})
}

func messages(commits []model.Commit) []string {
	out := make([]string, len(commits))
	for i, c := range commits {
		out[i] = c.Message
	}
	return out
}
