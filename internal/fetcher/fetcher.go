package fetcher

import (
	"context"
	"net/http"
	"net/url"
)

// Response is a fully read HTTP response with its body decoded to UTF-8.
type Response struct {
	URL        *url.URL
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Fetcher defines the interface for talking to the court portal.
type Fetcher interface {
	// Get fetches the URL.
	Get(ctx context.Context, rawURL string) (*Response, error)

	// PostForm submits form values to the URL.
	PostForm(ctx context.Context, rawURL string, form url.Values) (*Response, error)

	// Session returns a Fetcher that shares transport and rate limiting but
	// keeps its own cookies.
	Session() (Fetcher, error)
}
