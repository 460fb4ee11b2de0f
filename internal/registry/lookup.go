package registry

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/guardianship-cli/internal/fetcher"
	"github.com/sells-group/guardianship-cli/internal/model"
	"github.com/sells-group/guardianship-cli/internal/resilience"
)

const (
	// DefaultSearchURL is the portal's search endpoint.
	DefaultSearchURL = "https://public.courts.in.gov/grp/"
	// DefaultDetailURLTemplate builds a party detail URL from a party id.
	DefaultDetailURLTemplate = "https://public.courts.in.gov/grp/Search/Detail/%s"
)

// Looker runs a single case lookup.
type Looker interface {
	Lookup(ctx context.Context, id Identifier) (model.CaseRecord, error)
}

// Client looks cases up on the portal.
type Client struct {
	fetcher        fetcher.Fetcher
	searchURL      *url.URL
	detailTemplate string
	policy         DisambiguationPolicy
	breaker        *resilience.CircuitBreaker
}

// Option configures a Client.
type Option func(*Client)

// WithDetailURLTemplate sets the party detail URL template. It must contain
// a single %s verb.
func WithDetailURLTemplate(tmpl string) Option {
	return func(c *Client) { c.detailTemplate = tmpl }
}

// WithPolicy sets the disambiguation policy for search results listings.
func WithPolicy(p DisambiguationPolicy) Option {
	return func(c *Client) {
		if p != nil {
			c.policy = p
		}
	}
}

// WithBreaker guards portal requests with cb.
func WithBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *Client) { c.breaker = cb }
}

// NewClient creates a Client that sends case-number searches to searchURL.
func NewClient(f fetcher.Fetcher, searchURL string, opts ...Option) (*Client, error) {
	if f == nil {
		return nil, eris.New("registry: nil fetcher")
	}
	if searchURL == "" {
		searchURL = DefaultSearchURL
	}
	u, err := url.Parse(searchURL)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: parse search url %q", searchURL)
	}
	if !u.IsAbs() {
		return nil, eris.Errorf("registry: search url %q is not absolute", searchURL)
	}

	c := &Client{
		fetcher:        f,
		searchURL:      u,
		detailTemplate: DefaultDetailURLTemplate,
		policy:         SelectFirst,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Lookup fetches and extracts the case for id. Classified failures (non-200
// status, no results, validation banner) return the empty record and a nil
// error. Transport errors and pages without a detail container return the
// empty record and an error.
func (c *Client) Lookup(ctx context.Context, id Identifier) (model.CaseRecord, error) {
	if id == nil {
		return model.EmptyRecord(""), ErrEmptyIdentifier
	}
	supplied := suppliedCaseNumber(id)
	empty := model.EmptyRecord(supplied)
	if id.Value() == "" {
		return empty, ErrEmptyIdentifier
	}

	log := zap.L().With(zap.String("mode", string(id.Mode())), zap.String("identifier", id.Value()))

	// Each lookup gets its own cookie session.
	sess, err := c.fetcher.Session()
	if err != nil {
		return empty, err
	}

	var page *Page
	switch v := id.(type) {
	case CaseNumber:
		form := url.Values{
			"SearchMode": {"CaseNumber"},
			"CaseNumber": {v.Value()},
		}
		page, err = c.fetch(ctx, func(ctx context.Context) (*fetcher.Response, error) {
			return sess.PostForm(ctx, c.searchURL.String(), form)
		})
		if err != nil {
			return empty, err
		}
		if failed, fallback := Classify(page, supplied); failed {
			return fallback, nil
		}

		if IsResultsListing(page) {
			href, err := c.policy(page)
			if err != nil {
				return empty, eris.Wrap(err, "registry: disambiguate")
			}
			target, err := c.searchURL.Parse(href)
			if err != nil {
				return empty, eris.Wrapf(err, "registry: resolve result link %q", href)
			}
			log.Debug("registry: following first search result", zap.String("url", target.String()))

			page, err = c.fetch(ctx, func(ctx context.Context) (*fetcher.Response, error) {
				return sess.Get(ctx, target.String())
			})
			if err != nil {
				return empty, err
			}
			if failed, fallback := Classify(page, supplied); failed {
				return fallback, nil
			}
		}

	case PartyID:
		detailURL := c.DetailURL(v)
		page, err = c.fetch(ctx, func(ctx context.Context) (*fetcher.Response, error) {
			return sess.Get(ctx, detailURL)
		})
		if err != nil {
			return empty, err
		}
		if failed, fallback := Classify(page, supplied); failed {
			return fallback, nil
		}

	default:
		return empty, eris.Errorf("registry: unsupported identifier %T", id)
	}

	ext, err := ExtractDetailed(page.Doc, supplied)
	if err != nil {
		log.Warn("registry: detail page could not be parsed", zap.Error(err))
		return empty, err
	}
	if len(ext.Missing) > 0 {
		log.Warn("registry: detail page missing fields", zap.Strings("fields", ext.Missing))
	}
	return ext.Record, nil
}

// DetailURL returns the detail page URL for a party id.
func (c *Client) DetailURL(id PartyID) string {
	return fmt.Sprintf(c.detailTemplate, url.PathEscape(id.Value()))
}

func (c *Client) fetch(ctx context.Context, fn func(ctx context.Context) (*fetcher.Response, error)) (*Page, error) {
	var (
		resp *fetcher.Response
		err  error
	)
	if c.breaker == nil {
		resp, err = fn(ctx)
	}
	// An open circuit pauses the lookup until a probe is admitted, so a
	// portal outage delays rows instead of failing them.
	for c.breaker != nil {
		if d := c.breaker.Cooldown(); d > 0 {
			zap.L().Info("registry: portal circuit open, pausing", zap.Duration("cooldown", d))
		}
		if err := c.breaker.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "registry: wait for portal")
		}
		resp, err = resilience.ExecuteVal(ctx, c.breaker, fn)
		if !errors.Is(err, resilience.ErrCircuitOpen) {
			break
		}
	}
	if err != nil {
		return nil, eris.Wrap(err, "registry: fetch")
	}
	return NewPage(resp)
}
