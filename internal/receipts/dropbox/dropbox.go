// Package dropbox stores receipts in Dropbox through its HTTP API.
package dropbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"expensetracker/internal/core"
	"expensetracker/internal/receipts"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/oauth2"
)

const (
	defaultAPIURL     = "https://api.dropboxapi.com"
	defaultContentURL = "https://content.dropboxapi.com"
	defaultTokenURL   = "https://api.dropboxapi.com/oauth2/token"

	maxRetries = 3
)

// Credentials for Dropbox. The refresh token flow is used when the refresh
// token, app key and app secret are all set; otherwise AccessToken.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	AppKey       string
	AppSecret    string
}

func (c Credentials) usesRefresh() bool {
	return c.RefreshToken != "" && c.AppKey != "" && c.AppSecret != ""
}

// Configured reports whether any usable credential set is present.
func (c Credentials) Configured() bool {
	return c.usesRefresh() || c.AccessToken != ""
}

type Client struct {
	http       *http.Client
	folder     string
	apiURL     string
	contentURL string
	newBackOff func() backoff.BackOff
}

var _ receipts.Uploader = (*Client)(nil)

type Option func(*clientOptions)

type clientOptions struct {
	apiURL     string
	contentURL string
	tokenURL   string
	baseClient *http.Client
	newBackOff func() backoff.BackOff
}

// WithBaseURLs points the client at other API hosts.
func WithBaseURLs(apiURL, contentURL, tokenURL string) Option {
	return func(o *clientOptions) {
		o.apiURL = strings.TrimRight(apiURL, "/")
		o.contentURL = strings.TrimRight(contentURL, "/")
		o.tokenURL = tokenURL
	}
}

// WithHTTPClient sets the transport used for API and token calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *clientOptions) { o.baseClient = c }
}

// WithBackOff overrides the retry policy for transient failures.
func WithBackOff(f func() backoff.BackOff) Option {
	return func(o *clientOptions) { o.newBackOff = f }
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	return backoff.WithMaxRetries(b, maxRetries)
}

// New builds a client. folder is the destination folder hint; an empty
// folder uploads to the app root.
func New(ctx context.Context, creds Credentials, folder string, opts ...Option) (*Client, error) {
	o := clientOptions{
		apiURL:     defaultAPIURL,
		contentURL: defaultContentURL,
		tokenURL:   defaultTokenURL,
		newBackOff: defaultBackOff,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.baseClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, o.baseClient)
	}

	var httpClient *http.Client
	switch {
	case creds.usesRefresh():
		cfg := &oauth2.Config{
			ClientID:     creds.AppKey,
			ClientSecret: creds.AppSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  o.tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		}
		httpClient = cfg.Client(ctx, &oauth2.Token{RefreshToken: creds.RefreshToken})
		slog.InfoContext(ctx, "Using Dropbox refresh token flow")
	case creds.AccessToken != "":
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: creds.AccessToken}))
		slog.InfoContext(ctx, "Using Dropbox static access token")
	default:
		return nil, fmt.Errorf("%w: missing Dropbox credentials (set DROPBOX_REFRESH_TOKEN, DROPBOX_APP_KEY and DROPBOX_APP_SECRET, or DROPBOX_API_TOKEN)", core.ErrConfiguration)
	}
	httpClient.Timeout = 60 * time.Second

	return &Client{
		http:       httpClient,
		folder:     strings.Trim(folder, "/"),
		apiURL:     o.apiURL,
		contentURL: o.contentURL,
		newBackOff: o.newBackOff,
	}, nil
}

// Upload writes the file in overwrite mode and returns a shared link to it.
// If no link can be obtained the Dropbox path is returned instead.
func (c *Client) Upload(ctx context.Context, f receipts.File) (string, error) {
	dest := c.destination(f.Name)

	arg, err := json.Marshal(uploadArg{Path: dest, Mode: "overwrite", Mute: true})
	if err != nil {
		return "", fmt.Errorf("%w: encode upload arguments: %v", core.ErrUploadFailure, err)
	}

	var meta fileMetadata
	err = c.call(ctx, c.contentURL+"/2/files/upload", func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.contentURL+"/2/files/upload", bytes.NewReader(f.Data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/octet-stream")
		req.Header.Set("Dropbox-API-Arg", string(arg))
		return req, nil
	}, &meta)
	if err != nil {
		return "", fmt.Errorf("%w: dropbox upload: %v", core.ErrUploadFailure, err)
	}

	slog.InfoContext(ctx, "Receipt stored in Dropbox", "path", meta.PathDisplay, "size", len(f.Data))

	link, err := c.sharedLink(ctx, dest)
	if err != nil {
		slog.WarnContext(ctx, "Dropbox shared link unavailable, using path", "path", dest, "error", err)
		return dest, nil
	}
	return link, nil
}

func (c *Client) destination(name string) string {
	if c.folder == "" {
		return "/" + name
	}
	return path.Join("/", c.folder, name)
}

func (c *Client) sharedLink(ctx context.Context, dest string) (string, error) {
	var link sharedLinkMetadata
	err := c.postJSON(ctx, c.apiURL+"/2/sharing/create_shared_link_with_settings", map[string]any{"path": dest}, &link)
	if err == nil {
		return link.URL, nil
	}

	var apiErr *apiError
	if !errors.As(err, &apiErr) || !strings.HasPrefix(apiErr.Summary, "shared_link_already_exists") {
		return "", err
	}

	var existing listSharedLinksResult
	if err := c.postJSON(ctx, c.apiURL+"/2/sharing/list_shared_links", map[string]any{"path": dest, "direct_only": true}, &existing); err != nil {
		return "", err
	}
	if len(existing.Links) == 0 {
		return "", fmt.Errorf("no shared link returned for %s", dest)
	}
	return existing.Links[0].URL, nil
}

func (c *Client) postJSON(ctx context.Context, url string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return c.call(ctx, url, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, out)
}

// call performs the request, retrying 429 and 5xx responses.
func (c *Client) call(ctx context.Context, url string, newReq func() (*http.Request, error), out any) error {
	op := func() error {
		req, err := newReq()
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return err
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			slog.WarnContext(ctx, "Dropbox transient error, retrying", "url", url, "status", resp.StatusCode)
			return newAPIError(resp.StatusCode, body)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(newAPIError(resp.StatusCode, body))
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode response: %w", err))
		}
		return nil
	}
	return backoff.Retry(op, backoff.WithContext(c.newBackOff(), ctx))
}

type uploadArg struct {
	Path       string `json:"path"`
	Mode       string `json:"mode"`
	Autorename bool   `json:"autorename"`
	Mute       bool   `json:"mute"`
}

type fileMetadata struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	PathDisplay string `json:"path_display"`
}

type sharedLinkMetadata struct {
	URL string `json:"url"`
}

type listSharedLinksResult struct {
	Links []sharedLinkMetadata `json:"links"`
}

type apiError struct {
	Status  int
	Summary string
}

func newAPIError(status int, body []byte) *apiError {
	e := &apiError{Status: status}
	var payload struct {
		ErrorSummary string `json:"error_summary"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.ErrorSummary != "" {
		e.Summary = payload.ErrorSummary
	} else {
		e.Summary = strings.TrimSpace(string(body))
	}
	return e
}

func (e *apiError) Error() string {
	return fmt.Sprintf("dropbox api status %d: %s", e.Status, e.Summary)
}
