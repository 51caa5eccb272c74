// Package cdn checks that the hosted engine bundle is reachable before the
// real engine is brought up.
package cdn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/joacominatel/dataprism-demo/internal/config"
	"go.uber.org/zap"
)

// maxManifestSize bounds the manifest body read from the CDN.
const maxManifestSize = 1 << 20

var (
	// ErrUnavailable means the manifest could not be fetched within the retry budget.
	ErrUnavailable = errors.New("cdn unavailable")
	// ErrVersionMismatch means the CDN serves a different release than the pinned one.
	ErrVersionMismatch = errors.New("cdn version mismatch")
)

// Manifest describes a published engine bundle.
type Manifest struct {
	Name      string            `json:"name,omitempty"`
	Version   string            `json:"version"`
	BuildTime string            `json:"buildTime,omitempty"`
	Files     map[string]string `json:"files,omitempty"`
	Integrity map[string]string `json:"integrity,omitempty"`
}

// Loader fetches and validates the CDN manifest.
type Loader struct {
	cfg    config.CDN
	client *http.Client
	logger *zap.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(l *Loader) {
		l.client = c
	}
}

// NewLoader creates a manifest loader.
func NewLoader(cfg config.CDN, logger *zap.Logger, opts ...Option) *Loader {
	l := &Loader{
		cfg:    cfg,
		client: &http.Client{},
		logger: logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Assets returns the URLs derived from the configured base URL.
func (l *Loader) Assets() config.Assets {
	return l.cfg.Assets()
}

// FetchManifest downloads the manifest, retrying transient failures with a
// constant delay. Each attempt is bounded by the configured timeout.
func (l *Loader) FetchManifest(ctx context.Context) (*Manifest, error) {
	attempts := l.cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	var manifest *Manifest
	attempt := 0
	op := func() error {
		attempt++
		m, err := l.fetchOnce(ctx)
		if err != nil {
			return err
		}
		manifest = m
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(l.cfg.RetryDelay), uint64(attempts-1)),
		ctx,
	)
	notify := func(err error, wait time.Duration) {
		l.logger.Warn("cdn manifest fetch failed, retrying",
			zap.String("url", l.cfg.ManifestURL()),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		if errors.Is(err, ErrVersionMismatch) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	l.logger.Info("cdn manifest loaded",
		zap.String("url", l.cfg.ManifestURL()),
		zap.String("version", manifest.Version),
		zap.Int("attempts", attempt))
	return manifest, nil
}

func (l *Loader) fetchOnce(ctx context.Context) (*Manifest, error) {
	timeout := l.cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.cfg.ManifestURL(), nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get manifest: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("get manifest: unexpected status %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	var m Manifest
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxManifestSize)).Decode(&m); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode manifest: %w", err))
	}
	if m.Version == "" {
		return nil, backoff.Permanent(errors.New("manifest has no version"))
	}
	if l.cfg.PinnedVersion() && m.Version != l.cfg.Version {
		return nil, backoff.Permanent(fmt.Errorf("%w: want %s, got %s", ErrVersionMismatch, l.cfg.Version, m.Version))
	}
	return &m, nil
}
