package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultsToInfo(t *testing.T) {
	tests := []string{"", "bogus"}
	for _, level := range tests {
		log, err := New(Config{Level: level})
		require.NoError(t, err)
		require.Equal(t, zerolog.InfoLevel, log.GetLevel())
	}
}

func TestNewParsesLevel(t *testing.T) {
	log, err := New(Config{Level: "debug"})
	require.NoError(t, err)
	require.Equal(t, zerolog.DebugLevel, log.GetLevel())
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.log")
	log, err := New(Config{Level: "info", File: path})
	require.NoError(t, err)

	log.Info().Str("probe", "value").Msg("file sink check")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(data), "file sink check"))
}

func TestNewBadFilePath(t *testing.T) {
	_, err := New(Config{File: filepath.Join(t.TempDir(), "missing", "engine.log")})
	require.Error(t, err)
}
