package config

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"

	"github.com/prismgfx/prism/engine/core"
)

// Config drives application startup. All fields have working defaults so a
// missing or partial file is not an error.
type Config struct {
	Window   WindowConfig   `toml:"window"`
	Renderer RendererConfig `toml:"renderer"`
	Log      LogConfig      `toml:"log"`
}

type WindowConfig struct {
	Title  string `toml:"title"`
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
	PosX   uint32 `toml:"pos_x"`
	PosY   uint32 `toml:"pos_y"`
}

type RendererConfig struct {
	// ClearColor is RGBA in [0,1], applied to attachment 0 each frame.
	ClearColor [4]float32 `toml:"clear_color"`
	// Validation enables the Vulkan validation layer and debug messenger.
	Validation bool `toml:"validation"`
	// ShaderDir is watched for recompiled SPIR-V binaries.
	ShaderDir string `toml:"shader_dir"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

func Default() *Config {
	return &Config{
		Window: WindowConfig{
			Title:  "Prism",
			Width:  800,
			Height: 600,
			PosX:   100,
			PosY:   100,
		},
		Renderer: RendererConfig{
			ClearColor: [4]float32{0.0, 0.0, 0.2, 1.0},
			Validation: false,
			ShaderDir:  "shaders",
		},
		Log: LogConfig{
			Level: "debug",
		},
	}
}

// Load reads a TOML file over the defaults. A missing file yields the
// defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrapf(err, "reading config %q", path)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing config %q", path)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Window.Width == 0 || c.Window.Height == 0 {
		return errors.Newf("window size must be non-zero, got %dx%d", c.Window.Width, c.Window.Height)
	}
	return nil
}

// LogLevel maps the configured level string onto the logger's levels.
// Unknown values fall back to debug.
func (c *Config) LogLevel() core.LogLevel {
	switch c.Log.Level {
	case "info":
		return core.InfoLevel
	case "warn":
		return core.WarnLevel
	case "error":
		return core.ErrorLevel
	default:
		return core.DebugLevel
	}
}
