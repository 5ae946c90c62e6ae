package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
)

const (
	// DefaultTimeout bounds a single fetch.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxChars is the body ceiling in characters.
	DefaultMaxChars = 200000

	userAgent = "agentmatrix/1.0"
)

// Document is a fetched resource.
type Document struct {
	ContentType string
	Body        string
}

// Fetcher retrieves the text behind a URL.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Document, error)
}

// HTTPFetcher fetches URLs with a resty client and caps the body it reads.
type HTTPFetcher struct {
	client   *resty.Client
	timeout  time.Duration
	maxChars int
	logger   *slog.Logger
}

var _ Fetcher = (*HTTPFetcher)(nil)

// Option configures an HTTPFetcher.
type Option func(*HTTPFetcher)

// WithTimeout sets the per-fetch timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *HTTPFetcher) {
		f.timeout = d
	}
}

// WithMaxChars sets the body ceiling in characters.
func WithMaxChars(n int) Option {
	return func(f *HTTPFetcher) {
		f.maxChars = n
	}
}

// WithClient replaces the underlying resty client.
// The client's own timeout is overridden by WithTimeout.
func WithClient(c *resty.Client) Option {
	return func(f *HTTPFetcher) {
		f.client = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *HTTPFetcher) {
		f.logger = logger
	}
}

// NewHTTPFetcher creates a fetcher with a 10s timeout and a 200,000-character ceiling.
func NewHTTPFetcher(opts ...Option) *HTTPFetcher {
	f := &HTTPFetcher{
		timeout:  DefaultTimeout,
		maxChars: DefaultMaxChars,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.client == nil {
		f.client = resty.New().
			SetHeader("User-Agent", userAgent).
			SetRetryCount(0)
	}
	f.client.SetTimeout(f.timeout)
	f.logger = f.logger.With("component", "fetcher")
	return f
}

// Fetch performs a GET and returns at most maxChars characters of the body.
// Non-2xx responses are errors wrapping ErrUnexpectedStatus.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Document, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	resp, err := f.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(u.String())
	if err != nil {
		return nil, err
	}
	rawBody := resp.RawBody()
	defer rawBody.Close()

	if !resp.IsSuccess() {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status())
	}

	// A character is at most utf8.UTFMax bytes, so this bounds memory without cutting text short.
	limit := int64(f.maxChars) * utf8.UTFMax
	raw, err := io.ReadAll(io.LimitReader(rawBody, limit))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}

	body := strings.ToValidUTF8(string(raw), "\uFFFD")
	if utf8.RuneCountInString(body) > f.maxChars {
		body = string([]rune(body)[:f.maxChars])
	}

	doc := &Document{
		ContentType: strings.ToLower(resp.Header().Get("Content-Type")),
		Body:        body,
	}
	f.logger.Debug("fetched url", "url", u.String(), "content_type", doc.ContentType, "bytes", len(raw))
	return doc, nil
}

// IsTextual reports whether a content type carries text the pipeline can use.
// Any type mentioning text, json, xml or html qualifies; an empty type does not.
func IsTextual(contentType string) bool {
	ct := strings.ToLower(contentType)
	for _, marker := range []string{"text", "json", "xml", "html"} {
		if strings.Contains(ct, marker) {
			return true
		}
	}
	return false
}
