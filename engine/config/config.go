package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/labstack/gommon/log"
	"gopkg.in/yaml.v3"
)

const (
	SourceScreen  = "screen"
	SourcePattern = "pattern"
	SourceShm     = "shm"
)

// Config is the complete service configuration.
type Config struct {
	Addr          string        `yaml:"addr"`
	Source        string        `yaml:"source"`         // screen, pattern, shm
	PollInterval  time.Duration `yaml:"poll_interval"`  // retry delay when the device has no frame
	FrameInterval time.Duration `yaml:"frame_interval"` // minimum time between captures
	Capacity      int           `yaml:"capacity"`       // frames buffered per viewer
	Quality       int           `yaml:"quality"`        // JPEG quality, 1-100
	LogLevel      string        `yaml:"log_level"`
	Pattern       PatternConfig `yaml:"pattern"`
	Shm           ShmConfig     `yaml:"shm"`
	Relay         RelayConfig   `yaml:"relay"`
}

type PatternConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

type ShmConfig struct {
	Path string `yaml:"path"`
}

// RelayConfig enables pushing the feed through ffmpeg when URL is set.
type RelayConfig struct {
	URL    string `yaml:"url"`
	LogDir string `yaml:"log_dir"`
	FPS    int    `yaml:"fps"`
}

// Default returns the configuration used when no file or environment overrides it.
func Default() *Config {
	return &Config{
		Addr:          ":3030",
		Source:        SourceScreen,
		PollInterval:  16 * time.Millisecond,
		FrameInterval: 16 * time.Millisecond,
		Capacity:      16,
		Quality:       75,
		LogLevel:      "info",
		Pattern:       PatternConfig{Width: 1280, Height: 720},
		Shm:           ShmConfig{Path: "/dev/shm/screencast_frame"},
		Relay:         RelayConfig{LogDir: "./debug", FPS: 30},
	}
}

// Load reads the YAML file at path (if any) over the defaults, applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if port := getenv("PORT"); port != "" {
		if !strings.Contains(port, ":") {
			port = ":" + port
		}
		c.Addr = port
	}
	if url := getenv("STREAM_URL"); url != "" {
		c.Relay.URL = url
	}
	if source := getenv("SCREENCAST_SOURCE"); source != "" {
		c.Source = source
	}
	if level := getenv("SCREENCAST_LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	switch c.Source {
	case SourceScreen, SourceShm:
	case SourcePattern:
		if c.Pattern.Width <= 0 || c.Pattern.Height <= 0 {
			errs = append(errs, fmt.Errorf("pattern size must be positive, got %dx%d", c.Pattern.Width, c.Pattern.Height))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown source %q (want screen, pattern or shm)", c.Source))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("poll_interval must be positive"))
	}
	if c.FrameInterval < 0 {
		errs = append(errs, errors.New("frame_interval must not be negative"))
	}
	if c.Capacity <= 0 {
		errs = append(errs, errors.New("capacity must be positive"))
	}
	if c.Quality < 1 || c.Quality > 100 {
		errs = append(errs, fmt.Errorf("quality must be within 1-100, got %d", c.Quality))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ParseLevel maps a level name to a gommon log level.
func ParseLevel(level string) (log.Lvl, error) {
	switch strings.ToLower(level) {
	case "debug":
		return log.DEBUG, nil
	case "", "info":
		return log.INFO, nil
	case "warn", "warning":
		return log.WARN, nil
	case "error":
		return log.ERROR, nil
	case "off":
		return log.OFF, nil
	default:
		return log.INFO, fmt.Errorf("unknown log level %q", level)
	}
}

// NewLogger returns a component logger at the configured level.
func (c *Config) NewLogger(component string) *log.Logger {
	l := log.New(component)
	lvl, _ := ParseLevel(c.LogLevel)
	l.SetLevel(lvl)
	l.SetHeader("${time_rfc3339} ${level} ${prefix}")
	return l
}
