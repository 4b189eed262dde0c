package spotify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/ewilliams-labs/melomatch/internal/logging"
	"github.com/ewilliams-labs/melomatch/internal/metrics"
)

const (
	defaultMaxRetries   = 3
	defaultRetryBackoff = 500 * time.Millisecond

	// maxRetryAfter bounds how long a single artwork lookup waits on a 429.
	maxRetryAfter = 30 * time.Second
)

var errRetryAfterTooLong = errors.New("spotify adapter: retry-after exceeds limit")

// send issues a bodyless request, retrying transport errors, 429 and 5xx
// responses. The delay doubles per attempt unless Spotify sends Retry-After.
func (c *Client) send(req *http.Request) (*http.Response, error) {
	attempts := c.maxRetries
	if attempts <= 0 {
		attempts = defaultMaxRetries
	}
	backoff := c.baseBackoff
	if backoff <= 0 {
		backoff = defaultRetryBackoff
	}

	ctx := req.Context()
	for attempt := 1; ; attempt++ {
		resp, err := c.httpClient.Do(req)
		if err != nil && ctx.Err() != nil {
			return nil, fmt.Errorf("spotify adapter: request canceled: %w", ctx.Err())
		}
		if err == nil && !retryableStatus(resp.StatusCode) {
			return resp, nil
		}

		cause := err
		delay := backoff << (attempt - 1)
		if resp != nil {
			cause = fmt.Errorf("status %d", resp.StatusCode)
			if wait, ok := retryAfter(resp.Header.Get("Retry-After"), time.Now()); ok {
				delay = wait
			}
			drain(resp)
		}

		if attempt >= attempts {
			return nil, fmt.Errorf("spotify adapter: giving up after %d attempts: %w", attempts, cause)
		}
		if delay > maxRetryAfter {
			return nil, fmt.Errorf("%w: %s", errRetryAfterTooLong, delay)
		}

		metrics.UpstreamRequests.WithLabelValues(upstreamName, "retry").Inc()
		logging.Ctx(ctx).Warn().
			Err(cause).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Dur("delay", delay).
			Msg("spotify adapter: retrying search")

		if err := sleepContext(ctx, delay); err != nil {
			return nil, err
		}
	}
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// retryAfter parses a Retry-After value given in seconds or as an HTTP date.
func retryAfter(value string, now time.Time) (time.Duration, bool) {
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		if d := when.Sub(now); d > 0 {
			return d, true
		}
		return 0, true
	}
	return 0, false
}

// drain lets the transport reuse the connection.
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	_ = resp.Body.Close()
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("spotify adapter: request canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
