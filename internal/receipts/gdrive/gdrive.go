// Package gdrive stores receipts in Google Drive.
package gdrive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"expensetracker/internal/core"
	"expensetracker/internal/receipts"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
)

// Credentials for Drive. A service account is preferred; otherwise an OAuth
// client plus a previously issued token (see cmd/oauth-init) is used.
type Credentials struct {
	ServiceAccountJSON []byte
	OAuthClientJSON    []byte
	OAuthTokenJSON     []byte
}

// Configured reports whether any usable credential set is present.
func (c Credentials) Configured() bool {
	return len(c.ServiceAccountJSON) > 0 || (len(c.OAuthClientJSON) > 0 && len(c.OAuthTokenJSON) > 0)
}

type Client struct {
	svc      *drive.Service
	folderID string
}

var _ receipts.Uploader = (*Client)(nil)

// New creates a Drive client. folderID may be empty to upload into the
// root of the authenticated account.
func New(ctx context.Context, creds Credentials, folderID string) (*Client, error) {
	opts, err := clientOptions(ctx, creds)
	if err != nil {
		return nil, err
	}
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}

	slog.InfoContext(ctx, "Google Drive receipt store ready", "folder_id", folderID)
	return &Client{svc: svc, folderID: folderID}, nil
}

// NewWithService wraps an existing Drive service.
func NewWithService(svc *drive.Service, folderID string) *Client {
	return &Client{svc: svc, folderID: folderID}
}

func clientOptions(ctx context.Context, creds Credentials) ([]goption.ClientOption, error) {
	switch {
	case len(creds.ServiceAccountJSON) > 0:
		slog.InfoContext(ctx, "Using service account credentials for Drive",
			"credentials_size", len(creds.ServiceAccountJSON),
			"scope", drive.DriveFileScope)
		return []goption.ClientOption{
			goption.WithCredentialsJSON(creds.ServiceAccountJSON),
			goption.WithScopes(drive.DriveFileScope),
		}, nil

	case len(creds.OAuthClientJSON) > 0:
		if len(creds.OAuthTokenJSON) == 0 {
			return nil, fmt.Errorf("%w: missing oauth token (set GOOGLE_OAUTH_TOKEN_JSON)", core.ErrConfiguration)
		}
		cfg, err := google.ConfigFromJSON(creds.OAuthClientJSON, drive.DriveFileScope)
		if err != nil {
			return nil, fmt.Errorf("oauth config: %w", err)
		}
		var tok oauth2.Token
		if err := json.Unmarshal(creds.OAuthTokenJSON, &tok); err != nil {
			return nil, fmt.Errorf("decode oauth token: %w", err)
		}
		ctx = context.WithValue(ctx, oauth2.HTTPClient, newHTTPClient())
		slog.InfoContext(ctx, "Using OAuth credentials for Drive", "scope", drive.DriveFileScope)
		return []goption.ClientOption{
			goption.WithTokenSource(cfg.TokenSource(ctx, &tok)),
		}, nil

	default:
		return nil, fmt.Errorf("%w: missing Google credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_OAUTH_CLIENT_JSON and GOOGLE_OAUTH_TOKEN_JSON)", core.ErrConfiguration)
	}
}

// newHTTPClient bounds token refresh calls.
func newHTTPClient() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Client{
		Transport: &http.Transport{
			DialContext:           dialer.DialContext,
			MaxIdleConnsPerHost:   4,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
			ForceAttemptHTTP2:     true,
		},
		Timeout: 60 * time.Second,
	}
}

// Upload creates the file and returns its web view link, or its id when
// Drive does not return a link.
func (c *Client) Upload(ctx context.Context, f receipts.File) (string, error) {
	if c.svc == nil {
		return "", fmt.Errorf("%w: drive service not initialized", core.ErrUploadFailure)
	}

	meta := &drive.File{Name: f.Name}
	if c.folderID != "" {
		meta.Parents = []string{c.folderID}
	}

	contentType := f.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	created, err := c.svc.Files.Create(meta).
		Media(bytes.NewReader(f.Data), googleapi.ContentType(contentType)).
		Fields("id", "webViewLink").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", describeError(err)
	}

	slog.InfoContext(ctx, "Receipt stored in Google Drive",
		"file_id", created.Id,
		"name", f.Name,
		"size", len(f.Data))

	if created.WebViewLink != "" {
		return created.WebViewLink, nil
	}
	return created.Id, nil
}

func describeError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusForbidden {
		for _, item := range gerr.Errors {
			if item.Reason == "storageQuotaExceeded" {
				return fmt.Errorf("%w: Drive storage quota exceeded; service accounts have no storage of their own, share a folder from a user account or use a shared drive and set GOOGLE_DRIVE_FOLDER_ID", core.ErrUploadFailure)
			}
		}
	}
	return fmt.Errorf("%w: google drive: %v", core.ErrUploadFailure, err)
}
