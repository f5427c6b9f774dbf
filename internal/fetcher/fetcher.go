package fetcher

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spider-crawler/seoaudit/internal/config"
	"github.com/spider-crawler/seoaudit/internal/logger"
)

// Fetcher performs rate-limited GET requests, following redirects by hand so
// every hop is recorded.
type Fetcher struct {
	client    *http.Client
	transport *http.Transport
	cfg       config.CrawlConfig
	limiter   *HostRateLimiter
	cache     *responseCache
	log       logger.Logger
}

// Option configures a Fetcher.
type Option func(*options)

type options struct {
	store     Store
	log       logger.Logger
	cacheSize int
	cacheTTL  time.Duration
	transport *http.Transport
}

// WithStore adds a persistent response cache behind the in-memory one.
func WithStore(s Store) Option {
	return func(o *options) { o.store = s }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithCache keeps up to size responses in memory for ttl. A zero ttl
// disables caching entirely.
func WithCache(size int, ttl time.Duration) Option {
	return func(o *options) {
		o.cacheSize = size
		o.cacheTTL = ttl
	}
}

// WithTransport replaces the HTTP transport.
func WithTransport(t *http.Transport) Option {
	return func(o *options) { o.transport = t }
}

// New creates a fetcher for cfg.
func New(cfg config.CrawlConfig, opts ...Option) (*Fetcher, error) {
	o := options{log: logger.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	transport := o.transport
	if transport == nil {
		transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: time.Second,
		}
	}

	cache, err := newResponseCache(o.cacheSize, o.cacheTTL, o.store)
	if err != nil {
		return nil, err
	}

	f := &Fetcher{
		transport: transport,
		cfg:       cfg,
		limiter:   NewHostRateLimiter(cfg.RequestsPerSecond),
		cache:     cache,
		log:       o.log,
	}
	f.client = &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return f, nil
}

// Fetch retrieves rawURL. Transport failures are reported in Response.Error;
// the returned error is only set when ctx ends first.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	cached, err := f.cache.get(ctx, rawURL)
	if err != nil {
		f.log.Warn("Response cache read failed", logger.String("url", rawURL), logger.Error(err))
	}
	if cached != nil {
		hit := *cached
		hit.FromCache = true
		return &hit, nil
	}

	resp, err := f.fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if err := f.cache.put(ctx, resp); err != nil {
		f.log.Warn("Response cache write failed", logger.String("url", rawURL), logger.Error(err))
	}
	return resp, nil
}

func (f *Fetcher) fetch(ctx context.Context, rawURL string) (*Response, error) {
	start := time.Now()
	response := &Response{
		RequestURL: rawURL,
		FinalURL:   rawURL,
		FetchedAt:  start,
	}

	current := rawURL
	for hop := 0; hop <= f.cfg.MaxRedirects; hop++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, current, nil)
		if err != nil {
			response.Error = fmt.Errorf("failed to create request: %w", err)
			return response, nil
		}
		f.setRequestHeaders(req)

		if err := f.limiter.Wait(ctx, req.URL.Host); err != nil {
			return nil, err
		}

		reqStart := time.Now()
		resp, err := f.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			response.Error = categorizeError(err)
			response.Retryable = isRetryableError(err)
			response.FinalURL = current
			response.ResponseTime = time.Since(start)
			return response, nil
		}
		if hop == 0 {
			response.TTFB = time.Since(reqStart)
		}

		location := resp.Header.Get("Location")
		if resp.StatusCode >= 300 && resp.StatusCode < 400 && location != "" {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
			resp.Body.Close()

			response.Redirects = append(response.Redirects, RedirectHop{
				URL:        current,
				StatusCode: resp.StatusCode,
				Location:   location,
			})
			next, err := resolveRedirectURL(current, location)
			if err != nil {
				response.Error = fmt.Errorf("invalid redirect location: %w", err)
				response.StatusCode = resp.StatusCode
				response.Headers = resp.Header
				response.FinalURL = current
				return response, nil
			}
			current = next
			continue
		}

		response.FinalURL = current
		response.StatusCode = resp.StatusCode
		response.Headers = resp.Header
		response.ContentType = contentType(resp.Header.Get("Content-Type"))

		body, truncated, err := f.readBody(resp)
		resp.Body.Close()
		if err != nil {
			response.Error = fmt.Errorf("failed to read body: %w", err)
			response.Retryable = true
		}
		response.Body = body
		response.Truncated = truncated
		response.ResponseTime = time.Since(start)

		f.log.Debug("Fetched page",
			logger.String("url", rawURL),
			logger.Int("status", response.StatusCode),
			logger.Int("redirects", len(response.Redirects)),
			logger.Duration("duration", response.ResponseTime),
		)
		return response, nil
	}

	response.Error = fmt.Errorf("max redirects (%d) exceeded", f.cfg.MaxRedirects)
	response.FinalURL = current
	response.ResponseTime = time.Since(start)
	return response, nil
}

func (f *Fetcher) setRequestHeaders(req *http.Request) {
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	// Set explicitly so the transport leaves Content-Encoding intact for the
	// compression check; readBody decodes.
	req.Header.Set("Accept-Encoding", "gzip, deflate")
	for k, v := range f.cfg.Headers {
		req.Header.Set(k, v)
	}
}

// readBody decodes and reads at most MaxResponseSize bytes.
func (f *Fetcher) readBody(resp *http.Response) ([]byte, bool, error) {
	var reader io.Reader = resp.Body

	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, false, fmt.Errorf("gzip decode error: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "deflate":
		fl := flate.NewReader(resp.Body)
		defer fl.Close()
		reader = fl
	}

	limit := f.cfg.MaxResponseSize
	if limit <= 0 {
		body, err := io.ReadAll(reader)
		return body, false, err
	}
	body, err := io.ReadAll(io.LimitReader(reader, limit+1))
	if err != nil {
		return nil, false, err
	}
	if int64(len(body)) > limit {
		return body[:limit], true, nil
	}
	return body, false, nil
}

// Close releases idle connections.
func (f *Fetcher) Close() {
	f.transport.CloseIdleConnections()
}

func categorizeError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("timeout: %w", err)
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return fmt.Errorf("DNS error: %w", err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return fmt.Errorf("connection failed: %w", err)
	}
	if strings.Contains(err.Error(), "tls:") || strings.Contains(err.Error(), "certificate") {
		return fmt.Errorf("TLS error: %w", err)
	}
	return err
}

func isRetryableError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{"connection reset", "connection refused", "no such host", "eof", "broken pipe"} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

func resolveRedirectURL(base, location string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	loc, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(loc).String(), nil
}
