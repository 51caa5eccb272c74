package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	configDir  = ".dataprism"
	configFile = "config"
	configType = "yaml"
	envPrefix  = "DATAPRISM"
)

// Load reads the configuration from path, or ~/.dataprism/config.yaml when
// path is empty. A missing file yields the defaults. Environment variables
// prefixed with DATAPRISM_ override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("cdn.base_url", envPrefix+"_CDN_URL")
	_ = v.BindEnv("cdn.version", envPrefix+"_VERSION")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		dir, err := DirPath()
		if err != nil {
			return nil, fmt.Errorf("config dir: %w", err)
		}
		v.SetConfigName(configFile)
		v.SetConfigType(configType)
		v.AddConfigPath(dir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to path, or ~/.dataprism/config.yaml when
// path is empty. Connection passwords are never written.
func Save(cfg *Config, path string) error {
	if path == "" {
		dir, err := DirPath()
		if err != nil {
			return fmt.Errorf("config dir: %w", err)
		}
		path = filepath.Join(dir, configFile+"."+configType)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	conns := make([]Connection, len(cfg.Connections))
	for i, c := range cfg.Connections {
		c.Password = ""
		conns[i] = c
	}

	v := viper.New()
	v.SetConfigType(configType)
	v.Set("cdn", cfg.CDN)
	v.Set("engine", cfg.Engine)
	v.Set("server", cfg.Server)
	v.Set("log", cfg.Log)
	v.Set("connections", conns)
	v.Set("preferences", cfg.Preferences)

	return v.WriteConfigAs(path)
}

// Default returns the configuration used when no file or environment is present.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}

// DefaultConnection returns the default connection from config, or the first one.
func DefaultConnection(cfg *Config) *Connection {
	if len(cfg.Connections) == 0 {
		return nil
	}

	if cfg.Preferences.DefaultConnection != "" {
		for i := range cfg.Connections {
			if cfg.Connections[i].Name == cfg.Preferences.DefaultConnection {
				return &cfg.Connections[i]
			}
		}
	}

	return &cfg.Connections[0]
}

// DirPath returns the directory holding the config file and logs.
func DirPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configDir), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("cdn.base_url", DefaultCDNBaseURL)
	v.SetDefault("cdn.version", DefaultVersion)
	v.SetDefault("cdn.retry_attempts", DefaultRetryAttempts)
	v.SetDefault("cdn.retry_delay", DefaultRetryDelay)
	v.SetDefault("cdn.timeout", DefaultTimeout)

	v.SetDefault("engine.driver", DriverAuto)
	v.SetDefault("engine.duckdb_path", "")
	v.SetDefault("engine.connection", "")
	v.SetDefault("engine.dsn", "")
	v.SetDefault("engine.mock_init_delay", 500*time.Millisecond)
	v.SetDefault("engine.mock_load_delay", 200*time.Millisecond)
	v.SetDefault("engine.load_samples", true)
	v.SetDefault("engine.data_files", []string{})

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.basename", "")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.rate_limit_rps", 20.0)
	v.SetDefault("server.rate_limit_burst", 40)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")

	v.SetDefault("preferences.theme", "default")
	v.SetDefault("preferences.default_page", "/")
	v.SetDefault("preferences.chart_type", "bar")
}
