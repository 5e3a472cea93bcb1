package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/shouni/go-utils/envutil"
)

const (
	DefaultPort           = "8080"
	DefaultGeminiModel    = "gemini-2.5-flash"
	DefaultCaptionTimeout = 20 * time.Second
	DefaultCaptionRate    = 2 * time.Second
	DefaultMeteringURL    = "https://api.mulerun.com/sessions/metering"
	DefaultFontTimeout    = 2 * time.Second
	DefaultDateLayout     = "1/2/2006"
	DefaultJPEGQuality    = 90
	DefaultWallTTL        = 24 * time.Hour
	DefaultCropMode       = "center"
)

// Duration decodes TOML strings such as "2s" or "24h".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config is the whole service configuration. Values come from defaults, then
// an optional TOML file, then environment variables.
type Config struct {
	Port      string `toml:"port"`
	PublicURL string `toml:"public_url"`

	Gemini   Gemini   `toml:"gemini"`
	Metering Metering `toml:"metering"`
	Compose  Compose  `toml:"compose"`
	Wall     Wall     `toml:"wall"`
	Log      Log      `toml:"log"`
}

type Gemini struct {
	APIKey string `toml:"api_key"`
	Model  string `toml:"model"`
	// Timeout bounds one background caption request.
	Timeout Duration `toml:"timeout"`
	// RateInterval is the minimum spacing between caption requests.
	RateInterval Duration `toml:"rate_interval"`
}

type Metering struct {
	AgentKey string `toml:"agent_key"`
	URL      string `toml:"url"`
	// Cost units charged per million tokens.
	InputRate  float64 `toml:"input_rate"`
	OutputRate float64 `toml:"output_rate"`
}

type Compose struct {
	CaptionFont string   `toml:"caption_font"`
	FontTimeout Duration `toml:"font_timeout"`
	CropMode    string   `toml:"crop_mode"`
	DateLayout  string   `toml:"date_layout"`
	Timezone    string   `toml:"timezone"`
	Quality     int      `toml:"quality"`
}

type Wall struct {
	TTL Duration `toml:"ttl"`
}

type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port: DefaultPort,
		Gemini: Gemini{
			Model:        DefaultGeminiModel,
			Timeout:      Duration{DefaultCaptionTimeout},
			RateInterval: Duration{DefaultCaptionRate},
		},
		Metering: Metering{
			URL:        DefaultMeteringURL,
			InputRate:  30,
			OutputRate: 250,
		},
		Compose: Compose{
			FontTimeout: Duration{DefaultFontTimeout},
			CropMode:    DefaultCropMode,
			DateLayout:  DefaultDateLayout,
			Quality:     DefaultJPEGQuality,
		},
		Wall: Wall{TTL: Duration{DefaultWallTTL}},
		Log:  Log{Level: "info", Format: "text"},
	}
}

// Load builds the configuration. path may be empty, in which case only
// defaults and the environment are used.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("decoding config file %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Port = envutil.GetEnv("PORT", c.Port)
	c.PublicURL = envutil.GetEnv("PUBLIC_URL", c.PublicURL)

	// API_KEY wins over GEMINI_API_KEY.
	c.Gemini.APIKey = envutil.GetEnv("API_KEY", envutil.GetEnv("GEMINI_API_KEY", c.Gemini.APIKey))
	c.Gemini.Model = envutil.GetEnv("GEMINI_MODEL", c.Gemini.Model)

	c.Metering.AgentKey = envutil.GetEnv("MULE_AGENT_KEY", c.Metering.AgentKey)
	c.Metering.URL = envutil.GetEnv("METERING_URL", c.Metering.URL)

	c.Compose.CaptionFont = envutil.GetEnv("CAPTION_FONT", c.Compose.CaptionFont)
	c.Compose.CropMode = envutil.GetEnv("CROP_MODE", c.Compose.CropMode)
	c.Compose.DateLayout = envutil.GetEnv("DATE_LAYOUT", c.Compose.DateLayout)
	c.Compose.Timezone = envutil.GetEnv("TIMEZONE", c.Compose.Timezone)
	if v := envutil.GetEnv("FONT_TIMEOUT", ""); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("FONT_TIMEOUT: %w", err)
		}
		c.Compose.FontTimeout = Duration{d}
	}
	if v := envutil.GetEnv("JPEG_QUALITY", ""); v != "" {
		q, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("JPEG_QUALITY: %w", err)
		}
		c.Compose.Quality = q
	}

	c.Log.Level = envutil.GetEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = envutil.GetEnv("LOG_FORMAT", c.Log.Format)
	c.Log.File = envutil.GetEnv("LOG_FILE", c.Log.File)
	return nil
}

// Validate rejects values the service cannot run with.
func (c *Config) Validate() error {
	switch c.Compose.CropMode {
	case "center", "smart":
	default:
		return fmt.Errorf("unknown crop mode %q", c.Compose.CropMode)
	}
	if c.Compose.Quality < 1 || c.Compose.Quality > 100 {
		return fmt.Errorf("jpeg quality %d out of range 1-100", c.Compose.Quality)
	}
	if c.Compose.FontTimeout.Duration <= 0 {
		return fmt.Errorf("font timeout must be positive")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// CaptionsEnabled reports whether AI captions are available. It is decided
// once at startup from the presence of an API key.
func (c *Config) CaptionsEnabled() bool {
	return c.Gemini.APIKey != ""
}

// MeteringEnabled reports whether usage can be forwarded to the billing API.
func (c *Config) MeteringEnabled() bool {
	return c.Metering.AgentKey != ""
}

// Location resolves the timezone used for card dates. Empty means local time.
func (c *Config) Location() (*time.Location, error) {
	if c.Compose.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Compose.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Compose.Timezone, err)
	}
	return loc, nil
}
