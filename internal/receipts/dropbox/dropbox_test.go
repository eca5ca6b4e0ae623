package dropbox

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"expensetracker/internal/core"
	"expensetracker/internal/receipts"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noWait() backoff.BackOff {
	return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 3)
}

func newTestClient(t *testing.T, mux *http.ServeMux, creds Credentials) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), creds, "/receipts/",
		WithBaseURLs(srv.URL, srv.URL, srv.URL+"/oauth2/token"),
		WithHTTPClient(srv.Client()),
		WithBackOff(noWait))
	require.NoError(t, err)
	return c
}

func TestNew_MissingCredentials(t *testing.T) {
	_, err := New(context.Background(), Credentials{AppKey: "k", AppSecret: "s"}, "")
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

func TestCredentials_Configured(t *testing.T) {
	assert.False(t, Credentials{}.Configured())
	assert.False(t, Credentials{RefreshToken: "r", AppKey: "k"}.Configured())
	assert.True(t, Credentials{AccessToken: "t"}.Configured())
	assert.True(t, Credentials{RefreshToken: "r", AppKey: "k", AppSecret: "s"}.Configured())
}

func TestUpload_CreatesSharedLink(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/2/files/upload", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer static-token", r.Header.Get("Authorization"))

		var arg uploadArg
		require.NoError(t, json.Unmarshal([]byte(r.Header.Get("Dropbox-API-Arg")), &arg))
		assert.Equal(t, "/receipts/bill.pdf", arg.Path)
		assert.Equal(t, "overwrite", arg.Mode)

		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "%PDF", string(body))
		io.WriteString(w, `{"id":"id:1","name":"bill.pdf","path_display":"/receipts/bill.pdf"}`)
	})
	mux.HandleFunc("/2/sharing/create_shared_link_with_settings", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"url":"https://www.dropbox.com/s/abc/bill.pdf?dl=0"}`)
	})

	c := newTestClient(t, mux, Credentials{AccessToken: "static-token"})
	ref, err := c.Upload(context.Background(), receipts.File{Name: "bill.pdf", Data: []byte("%PDF")})
	require.NoError(t, err)
	assert.Equal(t, "https://www.dropbox.com/s/abc/bill.pdf?dl=0", ref)
}

func TestUpload_ReusesExistingLink(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/2/files/upload", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"id":"id:1","name":"bill.pdf","path_display":"/receipts/bill.pdf"}`)
	})
	mux.HandleFunc("/2/sharing/create_shared_link_with_settings", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		io.WriteString(w, `{"error_summary":"shared_link_already_exists/metadata/.."}`)
	})
	mux.HandleFunc("/2/sharing/list_shared_links", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"links":[{"url":"https://www.dropbox.com/s/existing/bill.pdf?dl=0"}]}`)
	})

	c := newTestClient(t, mux, Credentials{AccessToken: "static-token"})
	ref, err := c.Upload(context.Background(), receipts.File{Name: "bill.pdf", Data: []byte("x")})
	require.NoError(t, err)
	assert.Equal(t, "https://www.dropbox.com/s/existing/bill.pdf?dl=0", ref)
}

func TestUpload_LinkFailureFallsBackToPath(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/2/files/upload", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"id":"id:1"}`)
	})
	mux.HandleFunc("/2/sharing/create_shared_link_with_settings", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		io.WriteString(w, `{"error_summary":"email_not_verified/.."}`)
	})

	c := newTestClient(t, mux, Credentials{AccessToken: "static-token"})
	ref, err := c.Upload(context.Background(), receipts.File{Name: "bill.pdf", Data: []byte("x")})
	require.NoError(t, err)
	assert.Equal(t, "/receipts/bill.pdf", ref)
}

func TestUpload_RetriesTransientErrors(t *testing.T) {
	var attempts int32
	mux := http.NewServeMux()
	mux.HandleFunc("/2/files/upload", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, `{"id":"id:1"}`)
	})
	mux.HandleFunc("/2/sharing/create_shared_link_with_settings", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"url":"https://www.dropbox.com/s/abc/a.png?dl=0"}`)
	})

	c := newTestClient(t, mux, Credentials{AccessToken: "static-token"})
	_, err := c.Upload(context.Background(), receipts.File{Name: "a.png", Data: []byte("x")})
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestUpload_PermanentFailure(t *testing.T) {
	var attempts int32
	mux := http.NewServeMux()
	mux.HandleFunc("/2/files/upload", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error_summary":"invalid_access_token/"}`)
	})

	c := newTestClient(t, mux, Credentials{AccessToken: "expired"})
	_, err := c.Upload(context.Background(), receipts.File{Name: "a.png", Data: []byte("x")})
	assert.ErrorIs(t, err, core.ErrUploadFailure)
	assert.Contains(t, err.Error(), "invalid_access_token")
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestUpload_RefreshTokenFlow(t *testing.T) {
	var refreshed int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "rt", r.Form.Get("refresh_token"))
		assert.Equal(t, "app-key", r.Form.Get("client_id"))
		atomic.AddInt32(&refreshed, 1)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"access_token":"fresh","token_type":"bearer","expires_in":14400}`)
	})
	mux.HandleFunc("/2/files/upload", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer fresh", r.Header.Get("Authorization"))
		io.WriteString(w, `{"id":"id:1"}`)
	})
	mux.HandleFunc("/2/sharing/create_shared_link_with_settings", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"url":"https://www.dropbox.com/s/abc/a.png?dl=0"}`)
	})

	c := newTestClient(t, mux, Credentials{
		AccessToken:  "ignored",
		RefreshToken: "rt",
		AppKey:       "app-key",
		AppSecret:    "app-secret",
	})
	_, err := c.Upload(context.Background(), receipts.File{Name: "a.png", Data: []byte("x")})
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&refreshed))
}
