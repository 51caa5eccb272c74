package cdn

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joacominatel/dataprism-demo/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testCDN(baseURL string) config.CDN {
	return config.CDN{
		BaseURL:       baseURL,
		Version:       config.DefaultVersion,
		RetryAttempts: 3,
		RetryDelay:    time.Millisecond,
		Timeout:       time.Second,
	}
}

func TestFetchManifest_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/dist/manifest.json", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"dataprism","version":"1.0.0","files":{"core":"dataprism.umd.js"}}`))
	}))
	defer srv.Close()

	l := NewLoader(testCDN(srv.URL+"/dist"), zaptest.NewLogger(t))
	m, err := l.FetchManifest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", m.Version)
	assert.Equal(t, "dataprism.umd.js", m.Files["core"])
}

func TestFetchManifest_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"version":"1.0.0"}`))
	}))
	defer srv.Close()

	l := NewLoader(testCDN(srv.URL), zaptest.NewLogger(t))
	_, err := l.FetchManifest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchManifest_GivesUpAfterRetryBudget(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	l := NewLoader(testCDN(srv.URL), zaptest.NewLogger(t))
	_, err := l.FetchManifest(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchManifest_NotFoundIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	l := NewLoader(testCDN(srv.URL), zaptest.NewLogger(t))
	_, err := l.FetchManifest(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchManifest_VersionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"version":"2.0.0"}`))
	}))
	defer srv.Close()

	cfg := testCDN(srv.URL)
	cfg.Version = "1.0.0"
	l := NewLoader(cfg, zaptest.NewLogger(t))
	_, err := l.FetchManifest(context.Background())
	assert.ErrorIs(t, err, ErrVersionMismatch)
	assert.NotErrorIs(t, err, ErrUnavailable)
}

func TestFetchManifest_TimeoutPerAttempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	cfg := testCDN(srv.URL)
	cfg.RetryAttempts = 1
	cfg.Timeout = 20 * time.Millisecond
	l := NewLoader(cfg, zaptest.NewLogger(t))

	start := time.Now()
	_, err := l.FetchManifest(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Less(t, time.Since(start), 900*time.Millisecond)
}

func TestFetchManifest_MissingVersion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	l := NewLoader(testCDN(srv.URL), zaptest.NewLogger(t))
	_, err := l.FetchManifest(context.Background())
	assert.ErrorContains(t, err, "no version")
}
