package fetcher

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/time/rate"

	"github.com/sells-group/guardianship-cli/internal/resilience"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent         string
	Timeout           time.Duration
	Retry             resilience.RetryConfig
	RequestsPerSecond float64
	Burst             int
}

// AdaptiveLimiter wraps a rate.Limiter that backs off on 429 responses.
// The rate never exceeds the configured one: a 429 halves it (down to a
// quarter of the configured rate) and each success recovers 20% of it.
type AdaptiveLimiter struct {
	mu          sync.Mutex
	limiter     *rate.Limiter
	initialRate rate.Limit
	minRate     rate.Limit
	currentRate rate.Limit
}

// NewAdaptiveLimiter creates a limiter that starts at, and is capped by,
// initialRate.
func NewAdaptiveLimiter(initialRate rate.Limit, burst int) *AdaptiveLimiter {
	return &AdaptiveLimiter{
		limiter:     rate.NewLimiter(initialRate, burst),
		initialRate: initialRate,
		minRate:     initialRate / 4,
		currentRate: initialRate,
	}
}

// Wait blocks until the limiter allows an event.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// OnSuccess moves the rate 20% back toward the configured rate.
func (a *AdaptiveLimiter) OnSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.currentRate >= a.initialRate {
		return
	}
	newRate := a.currentRate * 1.2
	if newRate > a.initialRate {
		newRate = a.initialRate
	}
	a.currentRate = newRate
	a.limiter.SetLimit(newRate)
}

// OnRateLimit halves the rate on 429 responses.
func (a *AdaptiveLimiter) OnRateLimit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	newRate := a.currentRate * 0.5
	if newRate < a.minRate {
		newRate = a.minRate
	}
	a.currentRate = newRate
	a.limiter.SetLimit(newRate)
	zap.L().Warn("fetcher: portal rate limited, slowing down",
		zap.Float64("new_rate", float64(newRate)),
	)
}

func (a *AdaptiveLimiter) limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentRate
}

// HTTPFetcher implements Fetcher using net/http with retry and rate limiting.
type HTTPFetcher struct {
	client  *http.Client
	opts    HTTPOptions
	limiter *AdaptiveLimiter
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "guardianship-cli/1.0"
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 2
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: 4,
		MaxConnsPerHost:     8,
		IdleConnTimeout:     90 * time.Second,
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts:    opts,
		limiter: NewAdaptiveLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst),
	}
}

// WithJar returns a copy of f that stores cookies in jar. The copy shares
// the transport and the rate limiter with f.
func (f *HTTPFetcher) WithJar(jar http.CookieJar) *HTTPFetcher {
	client := *f.client
	client.Jar = jar
	return &HTTPFetcher{
		client:  &client,
		opts:    f.opts,
		limiter: f.limiter,
	}
}

// Session returns a copy of f with a fresh cookie jar.
func (f *HTTPFetcher) Session() (Fetcher, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: create cookie jar")
	}
	return f.WithJar(jar), nil
}

// Get fetches the URL.
func (f *HTTPFetcher) Get(ctx context.Context, rawURL string) (*Response, error) {
	return f.do(ctx, http.MethodGet, rawURL, nil)
}

// PostForm submits form values as application/x-www-form-urlencoded.
func (f *HTTPFetcher) PostForm(ctx context.Context, rawURL string, form url.Values) (*Response, error) {
	return f.do(ctx, http.MethodPost, rawURL, form)
}

func (f *HTTPFetcher) do(ctx context.Context, method, rawURL string, form url.Values) (*Response, error) {
	var encoded string
	if form != nil {
		encoded = form.Encode()
	}

	retryCfg := f.opts.Retry
	if retryCfg.OnRetry == nil {
		retryCfg.OnRetry = resilience.RetryLogger(strings.ToLower(method), rawURL)
	}

	// The last transient-status response is handed back once retries run out
	// so callers can still inspect it.
	var last *Response
	resp, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*Response, error) {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fetcher: rate limiter wait")
		}

		var body io.Reader
		if form != nil {
			body = strings.NewReader(encoded)
		}
		req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
		if err != nil {
			return nil, eris.Wrap(err, "fetcher: create request")
		}
		req.Header.Set("User-Agent", f.opts.UserAgent)
		if form != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}

		r, err := f.read(req)
		if err != nil {
			return nil, err
		}

		if r.StatusCode == http.StatusTooManyRequests {
			f.limiter.OnRateLimit()
		}
		if resilience.IsTransientHTTPStatus(r.StatusCode) {
			last = r
			te := resilience.NewTransientError(
				eris.Errorf("fetcher: http %d from %s", r.StatusCode, rawURL), r.StatusCode)
			te.RetryAfter = resilience.ParseRetryAfter(r.Header.Get("Retry-After"), time.Now())
			return nil, te
		}

		f.limiter.OnSuccess()
		return r, nil
	})
	if err != nil {
		var te *resilience.TransientError
		if last != nil && errors.As(err, &te) && te.StatusCode == last.StatusCode {
			zap.L().Warn("fetcher: retries exhausted, returning last response",
				zap.String("url", rawURL),
				zap.Int("status", last.StatusCode),
			)
			return last, nil
		}
		return nil, eris.Wrapf(err, "fetcher: %s %s", strings.ToLower(method), rawURL)
	}
	return resp, nil
}

func (f *HTTPFetcher) read(req *http.Request) (*Response, error) {
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: do request")
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: read body")
	}

	body, err := decodeCharset(resp.Header.Get("Content-Type"), raw)
	if err != nil {
		return nil, err
	}

	return &Response{
		URL:        resp.Request.URL,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// decodeCharset converts body to UTF-8 using the charset parameter of the
// Content-Type header. Unknown or missing charsets pass the body through.
func decodeCharset(contentType string, body []byte) ([]byte, error) {
	if contentType == "" {
		return body, nil
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return body, nil
	}
	cs := strings.ToLower(strings.TrimSpace(params["charset"]))
	if cs == "" || cs == "utf-8" || cs == "utf8" {
		return body, nil
	}

	enc, err := htmlindex.Get(cs)
	if err != nil {
		zap.L().Debug("fetcher: unknown charset, using raw body", zap.String("charset", cs))
		return body, nil
	}
	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: decode %s body", cs)
	}
	return decoded, nil
}
