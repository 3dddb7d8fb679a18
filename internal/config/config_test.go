package config

import (
	"bytes"
	"encoding/json"
	"flag"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhdewitt/reflect-server/internal/routes"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("httpserver", nil, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, routes.ModeRouted, cfg.Mode)
}

func TestLoadFlags(t *testing.T) {
	cfg, err := Load("httpserver", []string{
		"-port", "8080",
		"-mode", "reflect",
		"-header-timeout", "2s",
		"-body-timeout", "0",
		"-max-body", "1024",
		"-log-level", "debug",
		"-log-format", "console",
	}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, routes.ModeReflect, cfg.Mode)
	assert.Equal(t, 2*time.Second, cfg.HeaderTimeout)
	assert.Equal(t, time.Duration(0), cfg.BodyTimeout)
	assert.Equal(t, int64(1024), cfg.MaxBodySize)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
}

func TestLoadInvalid(t *testing.T) {
	cases := [][]string{
		{"-port", "70000"},
		{"-mode", "proxy"},
		{"-body-timeout", "-1s"},
		{"-max-body", "0"},
		{"-log-level", "loud"},
		{"-log-format", "xml"},
		{"-unknown"},
	}
	for _, args := range cases {
		_, err := Load("httpserver", args, io.Discard)
		assert.Error(t, err, args)
	}
}

func TestLoadUsage(t *testing.T) {
	var out bytes.Buffer
	_, err := Load("httpserver", []string{"-help"}, &out)
	require.ErrorIs(t, err, flag.ErrHelp)
	assert.Contains(t, out.String(), "Usage of httpserver")
	assert.Contains(t, out.String(), "-port")
	assert.Contains(t, out.String(), "-log-format")

	out.Reset()
	_, err = Load("httpserver", []string{"-unknown"}, &out)
	require.Error(t, err)
	assert.Contains(t, out.String(), "flag provided but not defined: -unknown")
	assert.Contains(t, out.String(), "-mode")

	// Validation failures are not flag syntax errors and print nothing.
	out.Reset()
	_, err = Load("httpserver", []string{"-mode", "proxy"}, &out)
	require.Error(t, err)
	assert.Zero(t, out.Len())
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := Default()
	cfg.LogLevel = "warn"
	log := cfg.Logger(&buf)

	log.Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	log.Warn().Str("remote", "127.0.0.1:1234").Msg("body stream failed")
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "body stream failed", entry["message"])
	assert.Equal(t, "127.0.0.1:1234", entry["remote"])
	assert.Contains(t, entry, "time")
}
