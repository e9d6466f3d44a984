package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"feedimport/internal/ratelimiter"
)

const (
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36"

	defaultFetchTimeout = 20 * time.Second
	defaultMaxBodyBytes = 10 << 20
)

var ErrBodyTooLarge = errors.New("response body exceeds limit")

// Fetcher performs uncached GET requests with a browser User-Agent.
type Fetcher struct {
	client       *http.Client
	limiter      *ratelimiter.RateLimiter
	userAgent    string
	timeout      time.Duration
	maxBodyBytes int64
	log          *slog.Logger
}

type FetcherOptions struct {
	Timeout      time.Duration
	UserAgent    string
	Limiter      *ratelimiter.RateLimiter
	Client       *http.Client
	MaxBodyBytes int64
}

func NewFetcher(opts FetcherOptions, log *slog.Logger) *Fetcher {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}

	userAgent := strings.TrimSpace(opts.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}

	maxBodyBytes := opts.MaxBodyBytes
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}

	return &Fetcher{
		client:       client,
		limiter:      opts.Limiter,
		userAgent:    userAgent,
		timeout:      timeout,
		maxBodyBytes: maxBodyBytes,
		log:          log,
	}
}

// Fetch returns the response body of a 2xx response. Any other outcome is an
// error describing the cause; callers degrade it to "nothing found".
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	return f.FetchWithTimeout(ctx, rawURL, f.timeout)
}

func (f *Fetcher) FetchWithTimeout(
	ctx context.Context,
	rawURL string,
	timeout time.Duration,
) ([]byte, error) {
	rawURL = strings.TrimSpace(rawURL)

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}

	if timeout <= 0 {
		timeout = f.timeout
	}

	// Pacing is bounded by the caller's context; timeout covers the request only.
	if err = f.limiter.Wait(ctx, u.Host); err != nil {
		return nil, fmt.Errorf("wait for host slot: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("request timed out after %s: %w", timeout, err)
		}

		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			f.log.WarnContext(ctx, "Failed to close response body",
				"error", closeErr,
				"url", rawURL)
		}
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("unexpected status: %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.maxBodyBytes {
		return nil, fmt.Errorf("%w: over %d bytes", ErrBodyTooLarge, f.maxBodyBytes)
	}

	return body, nil
}
