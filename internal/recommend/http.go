package recommend

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jackzampolin/popsci/internal/failure"
)

const maxBody = 8 << 20

// client is the throttled HTTP client shared by the network tiers.
type client struct {
	http      *http.Client
	limiter   *rate.Limiter
	userAgent string
}

func newClient(hc *http.Client, limiter *rate.Limiter, userAgent string) client {
	if hc == nil {
		hc = &http.Client{}
	}
	if limiter == nil {
		limiter = NewLimiter(1)
	}
	if userAgent == "" {
		userAgent = "popsci"
	}
	return client{http: hc, limiter: limiter, userAgent: userAgent}
}

// NewLimiter returns a limiter allowing rps requests per second.
func NewLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

// get fetches url. A 429 or 503 becomes a RateLimited error.
func (c client) get(ctx context.Context, op, url string, header http.Header) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
		return nil, failure.RateLimit(op, retryAfter(resp.Header.Get("Retry-After")), fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: status %d", op, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBody))
}

func retryAfter(v string) time.Duration {
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
