// internal/github/retry.go
package github

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// retryTransport re-issues requests that failed at the network level or
// with a 5xx status. After the last attempt the final 5xx response is
// returned as is so go-github can turn it into an *ErrorResponse.
type retryTransport struct {
	base        http.RoundTripper
	maxAttempts int
	backoff     time.Duration
	logger      *slog.Logger
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Requests with a body cannot be replayed safely.
	if t.maxAttempts <= 1 || req.Body != nil && req.Body != http.NoBody {
		return t.base.RoundTrip(req)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = t.backoff
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(t.maxAttempts-1)), req.Context())

	var (
		resp    *http.Response
		attempt int
	)
	err := backoff.Retry(func() error {
		attempt++
		if resp != nil {
			drain(resp)
			resp = nil
		}

		r, err := t.base.RoundTrip(req)
		if err != nil {
			t.logger.Warn("GitHub request failed", "url", req.URL.Path, "attempt", attempt, "error", err)
			return err
		}
		resp = r
		if r.StatusCode >= http.StatusInternalServerError {
			t.logger.Warn("GitHub server error", "url", req.URL.Path, "attempt", attempt, "status", r.StatusCode)
			return fmt.Errorf("server error: %s", r.Status)
		}
		return nil
	}, policy)

	if resp != nil {
		return resp, nil
	}
	return nil, err
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
