// internal/model/models.go
package model

import "time"

// RateLimitStatus is the core API quota as reported by GitHub at the start of a cycle.
type RateLimitStatus struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// Exhausted reports whether no requests are left in the current window.
func (s RateLimitStatus) Exhausted() bool {
	return s.Remaining == 0
}

// Profile is the subset of a GitHub user profile the tracker needs.
type Profile struct {
	Login       string `json:"login"`
	PublicRepos int    `json:"public_repos"`
}

// Repository represents the metadata of a GitHub repository.
type Repository struct {
	Name      string    `json:"name"`
	HTMLURL   string    `json:"html_url"`
	Homepage  *string   `json:"homepage,omitempty"`
	Language  *string   `json:"language,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Commit struct {
	Message    string    `json:"message"`
	AuthorDate time.Time `json:"author_date"`
	HTMLURL    string    `json:"html_url"`
}

// ActivityRecord is one account/repository pair with at least one commit
// on or after the reference date.
type ActivityRecord struct {
	Account     string     `json:"account"`
	Repository  Repository `json:"repository"`
	Commits     []Commit   `json:"commits"`
	RepoCount   int        `json:"repo_count"`
	LastUpdated time.Time  `json:"last_updated"`
	CreatedAt   time.Time  `json:"created_at"`
}

// CycleResult is everything a single successful cycle produced.
type CycleResult struct {
	Activities []ActivityRecord  `json:"activities"`
	Errors     map[string]string `json:"errors"`
}

// ForAccount returns the records and error message (if any) for one account.
func (r CycleResult) ForAccount(account string) ([]ActivityRecord, string) {
	var records []ActivityRecord
	for _, a := range r.Activities {
		if a.Account == account {
			records = append(records, a)
		}
	}
	return records, r.Errors[account]
}

// Snapshot is the published, read-only view of the tracker.
// GlobalError is set when the last cycle was aborted before any account
// was processed; Result then still holds the previous successful cycle.
type Snapshot struct {
	Result      CycleResult      `json:"result"`
	RateLimit   *RateLimitStatus `json:"rate_limit,omitempty"`
	GlobalError string           `json:"global_error,omitempty"`
	CompletedAt time.Time        `json:"completed_at"`
}
