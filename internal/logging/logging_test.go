package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeConnectionString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"url credentials", "postgresql://ada:secret@db:5432/sales", "postgresql://[REDACTED]@db:5432/sales"},
		{"key value password", "host=db password=secret dbname=x", "host=db password=[REDACTED] dbname=x"},
		{"no credentials", "postgresql://db:5432/sales", "postgresql://db:5432/sales"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeConnectionString(tt.input))
		})
	}
}

func TestSanitizeQuery(t *testing.T) {
	long := "SELECT " + strings.Repeat("x", 200)
	got := SanitizeQuery(long)
	assert.Len(t, got, MaxQueryLogLength+3)
	assert.True(t, strings.HasSuffix(got, "..."))

	assert.Equal(t, "ALTER ROLE a password=[REDACTED]", SanitizeQuery("ALTER ROLE a password=abc"))
}

func TestSanitizeQuery_KeepsRunesWhole(t *testing.T) {
	// "é" is two bytes; the byte limit lands in the middle of one
	query := "SELECT " + strings.Repeat("é", 100)
	got := SanitizeQuery(query)

	assert.True(t, utf8.ValidString(got))
	assert.True(t, strings.HasSuffix(got, "é..."))
	assert.LessOrEqual(t, len(got), MaxQueryLogLength+3)
}

func TestNew_FileOutput(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logs", "app.log")
	logger, err := New("debug", file)
	require.NoError(t, err)

	logger.Info("hello")
	_ = logger.Sync()

	raw, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"msg":"hello"`)
}

func TestNew_BadLevel(t *testing.T) {
	_, err := New("chatty", "")
	assert.Error(t, err)
}
