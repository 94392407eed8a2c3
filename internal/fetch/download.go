package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/jackzampolin/popsci/internal/bounded"
	"github.com/jackzampolin/popsci/internal/pdf"
)

// permanentError marks download failures that retrying cannot fix.
type permanentError struct{ error }

func (e permanentError) Unwrap() error { return e.error }

func permanent(format string, args ...any) error {
	return permanentError{fmt.Errorf(format, args...)}
}

// download fetches pdfURL into dest with retries and validates the result.
func (f *Fetcher) download(ctx context.Context, pdfURL, dest string) (*pdf.Info, error) {
	policy := bounded.Policy{
		Timeout:  f.cfg.Timeout,
		Attempts: f.cfg.Attempts,
		Delay:    f.cfg.RetryDelay,
		RetryIf: func(err error) bool {
			var p permanentError
			return !errors.As(err, &p)
		},
		OnRetry: func(n uint, err error) {
			f.logger.Warn("download attempt failed", "attempt", n+1, "url", pdfURL, "error", err)
		},
	}
	return bounded.Call(ctx, policy, func(ctx context.Context) (*pdf.Info, error) {
		return f.downloadOnce(ctx, pdfURL, dest)
	})
}

func (f *Fetcher) downloadOnce(ctx context.Context, pdfURL, dest string) (*pdf.Info, error) {
	limit := int64(f.cfg.MaxSizeMB) * 1024 * 1024

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pdfURL, nil)
	if err != nil {
		return nil, permanent("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "application/pdf,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request pdf: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("pdf host returned %s", resp.Status)
	default:
		return nil, permanent("pdf host returned %s", resp.Status)
	}
	if resp.ContentLength > limit {
		return nil, permanent("pdf too large: %d bytes > %d MB", resp.ContentLength, f.cfg.MaxSizeMB)
	}

	tmp := dest + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return nil, permanent("failed to create %s: %w", tmp, err)
	}
	n, err := io.Copy(out, io.LimitReader(resp.Body, limit+1))
	closeErr := out.Close()
	if err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("read pdf body: %w", err)
	}
	if closeErr != nil {
		os.Remove(tmp)
		return nil, permanent("failed to write pdf: %w", closeErr)
	}
	if n > limit {
		os.Remove(tmp)
		return nil, permanent("pdf too large: more than %d MB", f.cfg.MaxSizeMB)
	}

	info, err := pdf.Validate(tmp)
	if err != nil {
		os.Remove(tmp)
		return nil, permanent("%w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		return nil, permanent("failed to move pdf into place: %w", err)
	}
	return info, nil
}
