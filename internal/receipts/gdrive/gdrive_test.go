package gdrive

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"expensetracker/internal/core"
	"expensetracker/internal/receipts"

	"google.golang.org/api/drive/v3"
	goption "google.golang.org/api/option"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, folderID string) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := drive.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("drive service: %v", err)
	}
	return NewWithService(svc, folderID)
}

func TestNew_MissingCredentials(t *testing.T) {
	_, err := New(context.Background(), Credentials{}, "")
	if !errors.Is(err, core.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}

	_, err = New(context.Background(), Credentials{OAuthClientJSON: []byte(`{}`)}, "")
	if !errors.Is(err, core.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for missing token, got %v", err)
	}
}

func TestNew_InvalidOAuthClient(t *testing.T) {
	_, err := New(context.Background(), Credentials{
		OAuthClientJSON: []byte(`not json`),
		OAuthTokenJSON:  []byte(`{"access_token":"x"}`),
	}, "")
	if err == nil || !strings.Contains(err.Error(), "oauth config") {
		t.Fatalf("expected oauth config error, got %v", err)
	}
}

func TestCredentials_Configured(t *testing.T) {
	if (Credentials{}).Configured() {
		t.Fatalf("empty credentials must not be configured")
	}
	if (Credentials{OAuthClientJSON: []byte("x")}).Configured() {
		t.Fatalf("client without token must not be configured")
	}
	if !(Credentials{ServiceAccountJSON: []byte("x")}).Configured() {
		t.Fatalf("service account must be configured")
	}
}

func TestUpload_ReturnsWebViewLink(t *testing.T) {
	var body string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"file-1","webViewLink":"https://drive.google.com/file/d/file-1/view"}`)
	}, "folder-123")

	ref, err := c.Upload(context.Background(), receipts.File{
		Name:        "2024-01-15_abcd1234_bill.pdf",
		ContentType: "application/pdf",
		Data:        []byte("%PDF-1.4"),
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if ref != "https://drive.google.com/file/d/file-1/view" {
		t.Fatalf("unexpected reference %q", ref)
	}
	if !strings.Contains(body, "folder-123") || !strings.Contains(body, "2024-01-15_abcd1234_bill.pdf") {
		t.Fatalf("metadata missing from upload body: %s", body)
	}
}

func TestUpload_FallsBackToID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"file-2"}`)
	}, "")

	ref, err := c.Upload(context.Background(), receipts.File{Name: "a.png", Data: []byte("png")})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if ref != "file-2" {
		t.Fatalf("expected file id, got %q", ref)
	}
}

func TestUpload_QuotaExceeded(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, `{"error":{"code":403,"message":"quota","errors":[{"reason":"storageQuotaExceeded","message":"quota"}]}}`)
	}, "")

	_, err := c.Upload(context.Background(), receipts.File{Name: "a.png", Data: []byte("png")})
	if !errors.Is(err, core.ErrUploadFailure) {
		t.Fatalf("expected ErrUploadFailure, got %v", err)
	}
	if !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("expected quota message, got %v", err)
	}
}

func TestUpload_NotInitialized(t *testing.T) {
	_, err := (&Client{}).Upload(context.Background(), receipts.File{Name: "a", Data: []byte("a")})
	if !errors.Is(err, core.ErrUploadFailure) {
		t.Fatalf("expected ErrUploadFailure, got %v", err)
	}
}
