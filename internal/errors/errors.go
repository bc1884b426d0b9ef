// internal/errors/errors.go
package errors

import (
	"fmt"
	"time"
)

// TransportError is returned when a GitHub endpoint could not be reached or
// answered with a non-success status.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// QuotaExceededError is returned when the core rate limit has no requests left.
type QuotaExceededError struct {
	Limit   int
	ResetAt time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("GitHub API rate limit exceeded (limit %d), resets at %s", e.Limit, e.ResetAt.Format(time.RFC3339))
}

// NotFoundError is returned when an account profile lookup fails with a non-success status.
type NotFoundError struct {
	Account string
	Err     error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("User %s not found", e.Account)
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}

// EmptyRepositorySetError is returned for an existing account without public repositories.
type EmptyRepositorySetError struct {
	Account string
}

func (e *EmptyRepositorySetError) Error() string {
	return fmt.Sprintf("No public repositories found for %s", e.Account)
}
