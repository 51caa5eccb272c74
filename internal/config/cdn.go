package config

import (
	"strings"
	"time"
)

// CDN defaults. DATAPRISM_CDN_URL and DATAPRISM_VERSION override the first two.
const (
	DefaultCDNBaseURL    = "https://cdn.jsdelivr.net/gh/srnarasim/dataprism-core@main/cdn/dist"
	DefaultVersion       = "latest"
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = time.Second
	DefaultTimeout       = 30 * time.Second
)

// CDN locates the hosted engine bundle.
type CDN struct {
	BaseURL       string        `mapstructure:"base_url" yaml:"base_url"`
	Version       string        `mapstructure:"version" yaml:"version"`
	RetryAttempts int           `mapstructure:"retry_attempts" yaml:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// Assets lists the URLs derived from the base URL.
type Assets struct {
	Manifest        string `json:"manifest"`
	CoreBundle      string `json:"coreBundle"`
	ESMBundle       string `json:"esmBundle"`
	AssetsDir       string `json:"assetsDir"`
	PluginsManifest string `json:"pluginsManifest"`
	WorkersDir      string `json:"workersDir"`
}

func (c CDN) url(path string) string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + path
}

// ManifestURL returns the manifest location.
func (c CDN) ManifestURL() string { return c.url("manifest.json") }

// AssetsURL returns the binary runtime payload directory.
func (c CDN) AssetsURL() string { return c.url("assets/") }

// Assets returns every derived asset URL.
func (c CDN) Assets() Assets {
	return Assets{
		Manifest:        c.ManifestURL(),
		CoreBundle:      c.url("dataprism.umd.js"),
		ESMBundle:       c.url("dataprism.min.js"),
		AssetsDir:       c.AssetsURL(),
		PluginsManifest: c.url("plugins/manifest.json"),
		WorkersDir:      c.url("workers/"),
	}
}

// PinnedVersion reports whether a specific release (not "latest") is requested.
func (c CDN) PinnedVersion() bool {
	return c.Version != "" && c.Version != DefaultVersion
}
