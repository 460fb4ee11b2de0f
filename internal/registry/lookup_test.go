package registry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/guardianship-cli/internal/fetcher"
	"github.com/sells-group/guardianship-cli/internal/model"
	"github.com/sells-group/guardianship-cli/internal/resilience"
)

type portal struct {
	t       *testing.T
	srv     *httptest.Server
	posts   atomic.Int32
	details atomic.Int32
}

// newPortal serves fixture pages keyed by the submitted case number or the
// requested party id.
func newPortal(t *testing.T) *portal {
	t.Helper()
	p := &portal{t: t}

	searches := map[string]struct {
		status  int
		fixture string
	}{
		"49D08-1901-GU-000123": {http.StatusOK, "detail_single.html"},
		"02D01-2003-GU-000045": {http.StatusOK, "detail_two_guardians.html"},
		"LISTING":              {http.StatusOK, "results_listing.html"},
		"NONE":                 {http.StatusOK, "no_results.html"},
		"BAD":                  {http.StatusOK, "validation_error.html"},
		"BROKEN":               {http.StatusOK, "no_container.html"},
		"MISSING":              {http.StatusNotFound, "detail_single.html"},
	}
	details := map[string]struct {
		status  int
		fixture string
	}{
		"1001": {http.StatusOK, "detail_single.html"},
		"1002": {http.StatusOK, "detail_two_guardians.html"},
		"gone": {http.StatusOK, "no_results.html"},
		"404":  {http.StatusNotFound, "no_container.html"},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /grp/", func(w http.ResponseWriter, r *http.Request) {
		p.posts.Add(1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "CaseNumber", r.PostForm.Get("SearchMode"))
		page, ok := searches[r.PostForm.Get("CaseNumber")]
		if !ok {
			page.status, page.fixture = http.StatusOK, "no_results.html"
		}
		w.WriteHeader(page.status)
		w.Write([]byte(fixture(t, page.fixture)))
	})
	mux.HandleFunc("GET /grp/Search/Detail/{id}", func(w http.ResponseWriter, r *http.Request) {
		p.details.Add(1)
		page, ok := details[r.PathValue("id")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(page.status)
		w.Write([]byte(fixture(t, page.fixture)))
	})

	p.srv = httptest.NewServer(mux)
	t.Cleanup(p.srv.Close)
	return p
}

func (p *portal) client(opts ...Option) *Client {
	p.t.Helper()
	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		Timeout:           5 * time.Second,
		RequestsPerSecond: 1000,
		Burst:             10,
		Retry:             resilience.RetryConfig{MaxAttempts: 1},
	})
	opts = append([]Option{WithDetailURLTemplate(p.srv.URL + "/grp/Search/Detail/%s")}, opts...)
	c, err := NewClient(f, p.srv.URL+"/grp/", opts...)
	require.NoError(p.t, err)
	return c
}

func TestLookup_CaseNumberDetail(t *testing.T) {
	p := newPortal(t)

	rec, err := p.client().Lookup(context.Background(), CaseNumber("49D08-1901-GU-000123"))
	require.NoError(t, err)
	assert.Equal(t, "49D08-1901-GU-000123", rec.CaseNumber)
	assert.Equal(t, "Marion Superior Court 1", rec.Court)
	assert.Equal(t, "Jane Doe", rec.Guardians)
	assert.Equal(t, int32(1), p.posts.Load())
	assert.Equal(t, int32(0), p.details.Load())
}

func TestLookup_CaseNumberUsesInputNotScraped(t *testing.T) {
	p := newPortal(t)

	rec, err := p.client().Lookup(context.Background(), CaseNumber("  02D01-2003-GU-000045 "))
	require.NoError(t, err)
	assert.Equal(t, "02D01-2003-GU-000045", rec.CaseNumber)
	assert.Equal(t, "Alice Roe; Bob Roe", rec.Guardians)
}

func TestLookup_ListingFollowsFirstResult(t *testing.T) {
	p := newPortal(t)

	rec, err := p.client().Lookup(context.Background(), CaseNumber("LISTING"))
	require.NoError(t, err)
	assert.Equal(t, "LISTING", rec.CaseNumber)
	assert.Equal(t, "Doe, John Q.", rec.WardName)
	assert.Equal(t, int32(1), p.details.Load())
}

func TestLookup_CustomPolicy(t *testing.T) {
	p := newPortal(t)

	second := func(page *Page) (string, error) {
		href, _ := page.Doc.Find("td.view a").Eq(1).Attr("href")
		return href, nil
	}
	rec, err := p.client(WithPolicy(second)).Lookup(context.Background(), CaseNumber("LISTING"))
	require.NoError(t, err)
	assert.Equal(t, "Roe, Richard", rec.WardName)
}

func TestLookup_ReclassifiesAfterHop(t *testing.T) {
	p := newPortal(t)

	toGone := func(*Page) (string, error) { return "/grp/Search/Detail/gone", nil }
	rec, err := p.client(WithPolicy(toGone)).Lookup(context.Background(), CaseNumber("LISTING"))
	require.NoError(t, err)
	assert.Equal(t, model.EmptyRecord("LISTING"), rec)
}

func TestLookup_PolicyError(t *testing.T) {
	p := newPortal(t)

	none := func(*Page) (string, error) { return "", ErrNoResultLink }
	rec, err := p.client(WithPolicy(none)).Lookup(context.Background(), CaseNumber("LISTING"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoResultLink))
	assert.Equal(t, model.EmptyRecord("LISTING"), rec)
}

func TestLookup_SoftFailures(t *testing.T) {
	p := newPortal(t)
	c := p.client()

	for _, cn := range []string{"NONE", "BAD", "MISSING"} {
		t.Run(cn, func(t *testing.T) {
			rec, err := c.Lookup(context.Background(), CaseNumber(cn))
			require.NoError(t, err)
			assert.Equal(t, model.EmptyRecord(cn), rec)
		})
	}
}

func TestLookup_MissingContainerIsError(t *testing.T) {
	p := newPortal(t)

	rec, err := p.client().Lookup(context.Background(), CaseNumber("BROKEN"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingDetail))
	assert.Equal(t, model.EmptyRecord("BROKEN"), rec)
}

func TestLookup_PartyID(t *testing.T) {
	p := newPortal(t)

	rec, err := p.client().Lookup(context.Background(), PartyID("1002"))
	require.NoError(t, err)
	assert.Equal(t, "02D01-2003-GU-000045", rec.CaseNumber, "scraped from the page")
	assert.Equal(t, "Allen Circuit Court", rec.Court)
	assert.Equal(t, int32(0), p.posts.Load())
}

func TestLookup_PartyIDFailures(t *testing.T) {
	p := newPortal(t)
	c := p.client()

	for _, id := range []string{"404", "gone", "unknown"} {
		t.Run(id, func(t *testing.T) {
			rec, err := c.Lookup(context.Background(), PartyID(id))
			require.NoError(t, err)
			assert.Equal(t, model.EmptyRecord(""), rec)
		})
	}
}

func TestLookup_EmptyIdentifier(t *testing.T) {
	p := newPortal(t)
	c := p.client()

	rec, err := c.Lookup(context.Background(), CaseNumber("   "))
	assert.True(t, errors.Is(err, ErrEmptyIdentifier))
	assert.Len(t, rec.Map(), len(model.Columns))

	_, err = c.Lookup(context.Background(), PartyID(""))
	assert.True(t, errors.Is(err, ErrEmptyIdentifier))

	_, err = c.Lookup(context.Background(), nil)
	assert.True(t, errors.Is(err, ErrEmptyIdentifier))
	assert.Equal(t, int32(0), p.posts.Load()+p.details.Load())
}

func TestLookup_AlwaysTenKeys(t *testing.T) {
	p := newPortal(t)
	c := p.client()

	ids := []Identifier{
		CaseNumber("49D08-1901-GU-000123"),
		CaseNumber("LISTING"),
		CaseNumber("NONE"),
		CaseNumber("BAD"),
		CaseNumber("BROKEN"),
		CaseNumber("MISSING"),
		PartyID("1001"),
		PartyID("404"),
	}
	for _, id := range ids {
		rec, _ := c.Lookup(context.Background(), id)
		m := rec.Map()
		assert.Len(t, m, 10, id.Value())
		for _, col := range model.Columns {
			assert.Contains(t, m, col)
		}
	}
}

func TestLookup_OpenBreakerPausesUntilContextDone(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		Timeout:           time.Second,
		RequestsPerSecond: 1000,
		Retry:             resilience.RetryConfig{MaxAttempts: 1},
	})
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Minute,
	})
	c, err := NewClient(f, addr+"/grp/", WithBreaker(cb))
	require.NoError(t, err)

	rec, err := c.Lookup(context.Background(), CaseNumber("A"))
	require.Error(t, err)
	assert.Equal(t, model.EmptyRecord("A"), rec)
	assert.Equal(t, resilience.CircuitOpen, cb.State())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err = c.Lookup(ctx, CaseNumber("B"))
	require.Error(t, err)
	assert.ErrorContains(t, err, context.DeadlineExceeded.Error())
	assert.NotContains(t, err.Error(), resilience.ErrCircuitOpen.Error())
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
}

func TestNewClient_Validation(t *testing.T) {
	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{})

	_, err := NewClient(nil, "")
	assert.Error(t, err)

	_, err = NewClient(f, "/grp/")
	assert.Error(t, err)

	c, err := NewClient(f, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultSearchURL, c.searchURL.String())
	assert.Equal(t, "https://public.courts.in.gov/grp/Search/Detail/a%2Fb", c.DetailURL(PartyID(" a/b ")))
}
