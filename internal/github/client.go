// internal/github/client.go
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"

	custom_errors "github-activity-tracker/internal/errors"
	"github-activity-tracker/internal/model"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultMaxAttempts = 3
	defaultBackoff     = 500 * time.Millisecond

	// GitHub expects "Authorization: token <value>" for personal access tokens.
	tokenType = "token"
)

// Client is a wrapper around the go-github client.
type Client struct {
	gh     *github.Client
	logger *slog.Logger
}

type clientOptions struct {
	baseURL     string
	timeout     time.Duration
	maxAttempts int
	backoff     time.Duration
}

// Option configures a Client.
type Option func(*clientOptions)

// WithBaseURL points the client at a GitHub Enterprise or test server.
func WithBaseURL(baseURL string) Option {
	return func(o *clientOptions) { o.baseURL = baseURL }
}

// WithTimeout bounds every single HTTP request.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) { o.timeout = d }
}

// WithRetryPolicy sets the total number of attempts per request and the
// initial backoff between them.
func WithRetryPolicy(attempts int, initialBackoff time.Duration) Option {
	return func(o *clientOptions) {
		o.maxAttempts = attempts
		o.backoff = initialBackoff
	}
}

// NewClient creates and configures a new Client instance.
// An empty token yields an anonymous client with the lower rate limit.
func NewClient(token string, logger *slog.Logger, opts ...Option) (*Client, error) {
	o := clientOptions{
		timeout:     defaultTimeout,
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultBackoff,
	}
	for _, opt := range opts {
		opt(&o)
	}

	var transport http.RoundTripper = &retryTransport{
		base:        http.DefaultTransport,
		maxAttempts: o.maxAttempts,
		backoff:     o.backoff,
		logger:      logger,
	}
	if token != "" {
		transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: tokenType}),
			Base:   transport,
		}
	}

	gh := github.NewClient(&http.Client{Transport: transport, Timeout: o.timeout})
	if o.baseURL != "" {
		u, err := url.Parse(strings.TrimSuffix(o.baseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub base URL %q: %w", o.baseURL, err)
		}
		gh.BaseURL = u
	}

	return &Client{gh: gh, logger: logger}, nil
}

// RateLimit fetches the current core quota.
func (c *Client) RateLimit(ctx context.Context) (model.RateLimitStatus, error) {
	limits, _, err := c.gh.RateLimit.Get(ctx)
	if err != nil {
		return model.RateLimitStatus{}, &custom_errors.TransportError{Op: "check rate limit", Err: err}
	}
	core := limits.GetCore()
	if core == nil {
		return model.RateLimitStatus{}, &custom_errors.TransportError{Op: "check rate limit", Err: errors.New("response has no core resource")}
	}
	return model.RateLimitStatus{
		Limit:     core.Limit,
		Remaining: core.Remaining,
		ResetAt:   core.Reset.Time,
	}, nil
}

// GetProfile fetches the account profile. Any non-success status means the
// account is treated as not found.
func (c *Client) GetProfile(ctx context.Context, account string) (model.Profile, error) {
	user, _, err := c.gh.Users.Get(ctx, account)
	if err != nil {
		var respErr *github.ErrorResponse
		if errors.As(err, &respErr) {
			return model.Profile{}, &custom_errors.NotFoundError{Account: account, Err: err}
		}
		return model.Profile{}, &custom_errors.TransportError{Op: "get user " + account, Err: err}
	}
	return model.Profile{
		Login:       user.GetLogin(),
		PublicRepos: user.GetPublicRepos(),
	}, nil
}

// ListRepositories lists the account's repositories, newest-created first.
// Only the first page is read.
func (c *Client) ListRepositories(ctx context.Context, account string) ([]model.Repository, error) {
	opts := &github.RepositoryListByUserOptions{
		Sort:      "created",
		Direction: "desc",
	}
	c.logger.Debug("Listing repositories", "account", account)

	repos, _, err := c.gh.Repositories.ListByUser(ctx, account, opts)
	if err != nil {
		return nil, &custom_errors.TransportError{Op: "list repositories for " + account, Err: err}
	}

	out := make([]model.Repository, 0, len(repos))
	for _, r := range repos {
		out = append(out, toInternalRepository(r))
	}
	return out, nil
}

// ListCommits lists commits of one repository since the given instant.
// Only the first page is read.
func (c *Client) ListCommits(ctx context.Context, account, repo string, since time.Time) ([]model.Commit, error) {
	opts := &github.CommitsListOptions{Since: since}
	c.logger.Debug("Listing commits", "account", account, "repo", repo, "since", since.Format(time.RFC3339))

	commits, _, err := c.gh.Repositories.ListCommits(ctx, account, repo, opts)
	if err != nil {
		return nil, &custom_errors.TransportError{Op: fmt.Sprintf("list commits for %s/%s", account, repo), Err: err}
	}

	out := make([]model.Commit, 0, len(commits))
	for _, commit := range commits {
		out = append(out, toInternalCommit(commit))
	}
	return out, nil
}

// toInternalRepository translates a github.Repository object to our internal model.Repository.
func toInternalRepository(r *github.Repository) model.Repository {
	return model.Repository{
		Name:      r.GetName(),
		HTMLURL:   r.GetHTMLURL(),
		Homepage:  nonEmpty(r.Homepage),
		Language:  nonEmpty(r.Language),
		CreatedAt: r.GetCreatedAt().Time,
	}
}

// toInternalCommit translates a github.RepositoryCommit object to our internal model.Commit.
func toInternalCommit(c *github.RepositoryCommit) model.Commit {
	return model.Commit{
		Message:    c.GetCommit().GetMessage(),
		AuthorDate: c.GetCommit().GetAuthor().GetDate().Time,
		HTMLURL:    c.GetHTMLURL(),
	}
}

// nonEmpty maps both a missing and an empty string to nil.
func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
