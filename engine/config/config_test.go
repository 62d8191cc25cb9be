package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prismgfx/prism/engine/core"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prism.toml")
	content := `
[window]
title = "Demo"
width = 1280
height = 720

[renderer]
clear_color = [1.0, 0.0, 0.0, 1.0]
validation = true

[log]
level = "warn"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Demo", cfg.Window.Title)
	assert.Equal(t, uint32(1280), cfg.Window.Width)
	assert.Equal(t, uint32(720), cfg.Window.Height)
	assert.Equal(t, [4]float32{1, 0, 0, 1}, cfg.Renderer.ClearColor)
	assert.True(t, cfg.Renderer.Validation)
	// Untouched fields keep their defaults.
	assert.Equal(t, "shaders", cfg.Renderer.ShaderDir)
	assert.Equal(t, core.WarnLevel, cfg.LogLevel())
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("window = not toml"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateRejectsZeroWindow(t *testing.T) {
	cfg := Default()
	cfg.Window.Width = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Window.Height = 0
	assert.Error(t, cfg.Validate())

	assert.NoError(t, Default().Validate())
}

func TestLogLevelMapping(t *testing.T) {
	cases := map[string]core.LogLevel{
		"debug": core.DebugLevel,
		"info":  core.InfoLevel,
		"warn":  core.WarnLevel,
		"error": core.ErrorLevel,
		"bogus": core.DebugLevel,
		"":      core.DebugLevel,
	}
	for input, want := range cases {
		cfg := Default()
		cfg.Log.Level = input
		assert.Equal(t, want, cfg.LogLevel(), "level %q", input)
	}
}
