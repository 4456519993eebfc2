package direct

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pagerelay/pagerelay/internal/relay"
)

func TestFetch_ReturnsBody(t *testing.T) {
	t.Parallel()

	var gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte("<html><body><h1>Hi</h1></body></html>"))
	}))
	t.Cleanup(srv.Close)

	f := New(Config{})
	resp, err := f.Fetch(context.Background(), relay.FetchRequest{URL: srv.URL})
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	require.Contains(t, string(resp.Body), "<h1>Hi</h1>")
	require.Equal(t, DefaultUserAgent, gotAgent)
}

func TestFetch_ErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	f := New(Config{})
	_, err := f.Fetch(context.Background(), relay.FetchRequest{URL: srv.URL})
	require.ErrorIs(t, err, relay.ErrUpstreamFailed)
}

func TestFetch_ContextCancellation(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	f := New(Config{})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := f.Fetch(ctx, relay.FetchRequest{URL: srv.URL})
	require.ErrorIs(t, err, relay.ErrUpstreamFailed)
}

func TestFetch_ConcurrentRequestsIsolated(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("page " + r.URL.Path))
	}))
	t.Cleanup(srv.Close)

	f := New(Config{})
	done := make(chan error, 2)
	for _, path := range []string{"/a", "/b"} {
		go func() {
			resp, err := f.Fetch(context.Background(), relay.FetchRequest{URL: srv.URL + path})
			if err == nil && string(resp.Body) != "page "+path {
				t.Errorf("body %q for path %s", resp.Body, path)
			}
			done <- err
		}()
	}
	for range 2 {
		require.NoError(t, <-done)
	}
}
