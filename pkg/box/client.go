// Package box provides a minimal client for the Box content API: downloading
// files and reading spreadsheets without a local copy.
package box

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/guardianship-cli/internal/fetcher"
)

// Default endpoints.
const (
	DefaultBaseURL = "https://api.box.com"
	DefaultAuthURL = "https://api.box.com/oauth2/token"
)

// ErrNoCredentials is returned when neither an access token nor a
// client-credentials grant is configured.
var ErrNoCredentials = eris.New("box: no access token or enterprise id configured")

// Config holds Box credentials and endpoints.
type Config struct {
	ClientID     string
	ClientSecret string
	// AccessToken is a developer or otherwise pre-issued token. When empty,
	// a client-credentials grant for EnterpriseID is used.
	AccessToken  string
	EnterpriseID string
	BaseURL      string
	AuthURL      string
}

// Client defines the Box operations used by the CLI.
type Client interface {
	// Content returns the full content of a file.
	Content(ctx context.Context, fileID string) ([]byte, error)
	// Download writes a file's content to path and returns the bytes written.
	Download(ctx context.Context, fileID, path string) (int64, error)
	// ReadSpreadsheet returns the rows of the first sheet of an XLSX file.
	ReadSpreadsheet(ctx context.Context, fileID string) ([][]string, error)
}

// Option configures the Box client.
type Option func(*httpClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	cfg  Config
	http *http.Client

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewClient creates a Box client. It fails when cfg carries no usable
// credentials.
func NewClient(cfg Config, opts ...Option) (Client, error) {
	if cfg.AccessToken == "" && (cfg.EnterpriseID == "" || cfg.ClientID == "" || cfg.ClientSecret == "") {
		return nil, ErrNoCredentials
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = DefaultAuthURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	c := &httpClient{
		cfg:   cfg,
		token: cfg.AccessToken,
		http: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// accessToken returns the static token, or a cached client-credentials token
// refreshed a minute before it expires.
func (c *httpClient) accessToken(ctx context.Context) (string, error) {
	if c.cfg.AccessToken != "" {
		return c.cfg.AccessToken, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Now().Before(c.expires) {
		return c.token, nil
	}

	form := url.Values{
		"grant_type":       {"client_credentials"},
		"client_id":        {c.cfg.ClientID},
		"client_secret":    {c.cfg.ClientSecret},
		"box_subject_type": {"enterprise"},
		"box_subject_id":   {c.cfg.EnterpriseID},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.AuthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", eris.Wrap(err, "box: create token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "box: token request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "box: read token response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("box: token request status %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", eris.Wrap(err, "box: decode token response")
	}
	if tok.AccessToken == "" {
		return "", eris.New("box: token response has no access_token")
	}

	c.token = tok.AccessToken
	c.expires = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - time.Minute)
	zap.L().Debug("box: obtained access token", zap.Int("expires_in", tok.ExpiresIn))
	return c.token, nil
}

// open starts a content download. The caller closes the body.
func (c *httpClient) open(ctx context.Context, fileID string) (io.ReadCloser, error) {
	fileID = strings.TrimSpace(fileID)
	if fileID == "" {
		return nil, eris.New("box: empty file id")
	}

	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/2.0/files/%s/content", c.cfg.BaseURL, url.PathEscape(fileID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, eris.Wrap(err, "box: create content request")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "box: get content for file %s", fileID)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close() //nolint:errcheck
		return nil, eris.Errorf("box: get content for file %s: status %d: %s", fileID, resp.StatusCode, truncate(body, 200))
	}
	return resp.Body, nil
}

func (c *httpClient) Content(ctx context.Context, fileID string) ([]byte, error) {
	body, err := c.open(ctx, fileID)
	if err != nil {
		return nil, err
	}
	defer body.Close() //nolint:errcheck

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, eris.Wrapf(err, "box: read content for file %s", fileID)
	}
	return data, nil
}

func (c *httpClient) Download(ctx context.Context, fileID, path string) (int64, error) {
	body, err := c.open(ctx, fileID)
	if err != nil {
		return 0, err
	}
	defer body.Close() //nolint:errcheck

	f, err := os.Create(path)
	if err != nil {
		return 0, eris.Wrapf(err, "box: create %s", path)
	}

	n, err := io.Copy(f, body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path) //nolint:errcheck
		return 0, eris.Wrapf(err, "box: write file %s to %s", fileID, path)
	}

	zap.L().Info("box: downloaded file",
		zap.String("file_id", fileID),
		zap.String("path", path),
		zap.Int64("bytes", n),
	)
	return n, nil
}

func (c *httpClient) ReadSpreadsheet(ctx context.Context, fileID string) ([][]string, error) {
	data, err := c.Content(ctx, fileID)
	if err != nil {
		return nil, err
	}
	rows, err := fetcher.ReadXLSXBytes(data, fetcher.XLSXOptions{})
	if err != nil {
		return nil, eris.Wrapf(err, "box: read spreadsheet %s", fileID)
	}
	return rows, nil
}

func truncate(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
