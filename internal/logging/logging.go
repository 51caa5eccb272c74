// Package logging builds the zap loggers used across the application and
// scrubs credentials before they reach a log line.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"unicode/utf8"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// MaxQueryLogLength is the maximum length of a query to log
	MaxQueryLogLength = 100
	// RedactedText is the replacement text for sensitive data
	RedactedText = "[REDACTED]"
)

var (
	passwordPattern   = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)
	connStringPattern = regexp.MustCompile(`://[^:/@\s]+:[^@\s]+@`)
)

// New returns a JSON logger at the given level. An empty file logs to stderr;
// otherwise output is appended to file, creating its directory.
func New(level, file string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0o700); err != nil {
			return nil, fmt.Errorf("log dir: %w", err)
		}
		cfg.OutputPaths = []string{file}
		cfg.ErrorOutputPaths = []string{file}
	}

	return cfg.Build()
}

// SanitizeConnectionString removes credentials from connection strings.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}
	sanitized := passwordPattern.ReplaceAllString(connStr, "${1}="+RedactedText)
	return connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@")
}

// SanitizeQuery truncates a SQL query for logging and masks password literals.
func SanitizeQuery(query string) string {
	if len(query) > MaxQueryLogLength {
		cut := MaxQueryLogLength
		for cut > 0 && !utf8.RuneStart(query[cut]) {
			cut--
		}
		query = query[:cut] + "..."
	}
	return passwordPattern.ReplaceAllString(query, "${1}="+RedactedText)
}
