package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Engine drivers selectable in configuration.
const (
	DriverAuto     = "auto"
	DriverDuckDB   = "duckdb"
	DriverPostgres = "postgres"
	DriverMock     = "mock"
)

// Config represents the application configuration.
type Config struct {
	CDN         CDN          `mapstructure:"cdn" yaml:"cdn"`
	Engine      EngineConfig `mapstructure:"engine" yaml:"engine"`
	Server      ServerConfig `mapstructure:"server" yaml:"server"`
	Log         LogConfig    `mapstructure:"log" yaml:"log"`
	Connections []Connection `mapstructure:"connections" yaml:"connections"`
	Preferences Preferences  `mapstructure:"preferences" yaml:"preferences"`
}

// EngineConfig selects and tunes the analytics engine.
type EngineConfig struct {
	Driver        string        `mapstructure:"driver" yaml:"driver"`
	DuckDBPath    string        `mapstructure:"duckdb_path" yaml:"duckdb_path"`
	Connection    string        `mapstructure:"connection" yaml:"connection"` // saved postgres profile name
	DSN           string        `mapstructure:"dsn" yaml:"dsn,omitempty"`
	MockInitDelay time.Duration `mapstructure:"mock_init_delay" yaml:"mock_init_delay"`
	MockLoadDelay time.Duration `mapstructure:"mock_load_delay" yaml:"mock_load_delay"`
	LoadSamples   bool          `mapstructure:"load_samples" yaml:"load_samples"`
	DataFiles     []string      `mapstructure:"data_files" yaml:"data_files"`
}

// ServerConfig configures the HTTP dashboard.
type ServerConfig struct {
	Addr           string   `mapstructure:"addr" yaml:"addr"`
	Basename       string   `mapstructure:"basename" yaml:"basename"`
	CORSOrigins    []string `mapstructure:"cors_origins" yaml:"cors_origins"`
	RateLimitRPS   float64  `mapstructure:"rate_limit_rps" yaml:"rate_limit_rps"`
	RateLimitBurst int      `mapstructure:"rate_limit_burst" yaml:"rate_limit_burst"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
}

// Connection represents a saved PostgreSQL connection profile.
// Passwords live in the OS keyring, not in the config file.
type Connection struct {
	Name     string `mapstructure:"name" yaml:"name"`
	Driver   string `mapstructure:"driver" yaml:"driver"`
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Database string `mapstructure:"database" yaml:"database"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`
	SSLMode  string `mapstructure:"sslmode" yaml:"sslmode"`
}

// Preferences holds user preferences.
type Preferences struct {
	Theme             string `mapstructure:"theme" yaml:"theme"`
	DefaultConnection string `mapstructure:"default_connection" yaml:"default_connection"`
	DefaultPage       string `mapstructure:"default_page" yaml:"default_page"`
	ChartType         string `mapstructure:"chart_type" yaml:"chart_type"`
}

// Validate checks that the configuration is internally consistent.
func (cfg *Config) Validate() error {
	switch cfg.Engine.Driver {
	case DriverAuto, DriverDuckDB, DriverMock:
	case DriverPostgres:
		if cfg.Engine.DSN == "" && cfg.Engine.Connection == "" && len(cfg.Connections) == 0 {
			return fmt.Errorf("engine driver %q requires a dsn or a saved connection", DriverPostgres)
		}
	default:
		return fmt.Errorf("unknown engine driver %q", cfg.Engine.Driver)
	}
	if _, err := url.Parse(cfg.CDN.BaseURL); err != nil {
		return fmt.Errorf("invalid cdn base url: %w", err)
	}
	if cfg.CDN.RetryAttempts < 1 {
		return fmt.Errorf("cdn retry attempts must be at least 1")
	}
	if cfg.Server.Basename != "" && !strings.HasPrefix(cfg.Server.Basename, "/") {
		return fmt.Errorf("server basename %q must start with /", cfg.Server.Basename)
	}
	return nil
}

// DSN builds a PostgreSQL connection string from the connection profile.
func (c Connection) DSN() string {
	dsn := "postgresql://"
	if c.Username != "" {
		user := url.User(c.Username)
		if c.Password != "" {
			user = url.UserPassword(c.Username, c.Password)
		}
		dsn += user.String() + "@"
	}
	dsn += c.Host
	if c.Port > 0 {
		dsn += ":" + strconv.Itoa(c.Port)
	}
	dsn += "/" + c.Database
	if c.SSLMode != "" {
		dsn += "?sslmode=" + c.SSLMode
	}
	return dsn
}

// DisplayString returns a human-readable summary of the connection.
func (c Connection) DisplayString() string {
	s := c.Host
	if c.Port > 0 {
		s += ":" + strconv.Itoa(c.Port)
	}
	s += "/" + c.Database
	if c.Username != "" {
		s = c.Username + "@" + s
	}
	return s
}

// ParseDSN parses a PostgreSQL connection string into a Connection.
func ParseDSN(dsn string) (Connection, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return Connection{}, fmt.Errorf("invalid DSN: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return Connection{}, fmt.Errorf("invalid DSN: unsupported scheme %q", u.Scheme)
	}

	conn := Connection{
		Driver:   DriverPostgres,
		Host:     u.Hostname(),
		Database: strings.TrimPrefix(u.Path, "/"),
		SSLMode:  u.Query().Get("sslmode"),
	}

	if u.User != nil {
		conn.Username = u.User.Username()
		if p, ok := u.User.Password(); ok {
			conn.Password = p
		}
	}

	if portStr := u.Port(); portStr != "" {
		conn.Port, _ = strconv.Atoi(portStr)
	}
	if conn.Port == 0 {
		conn.Port = 5432
	}

	// Auto-generate a name
	conn.Name = fmt.Sprintf("postgres-%s-%d-%s", conn.Host, conn.Port, conn.Database)

	return conn, nil
}

// HasConnection checks if a connection with the given name already exists.
func (cfg *Config) HasConnection(name string) bool {
	_, ok := cfg.FindConnection(name)
	return ok
}

// FindConnection returns the saved connection with the given name.
func (cfg *Config) FindConnection(name string) (Connection, bool) {
	for _, c := range cfg.Connections {
		if c.Name == name {
			return c, true
		}
	}
	return Connection{}, false
}

// AddConnection appends a connection if it doesn't already exist.
func (cfg *Config) AddConnection(conn Connection) {
	if !cfg.HasConnection(conn.Name) {
		cfg.Connections = append(cfg.Connections, conn)
	}
}
