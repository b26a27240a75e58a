// Package config provides configuration management for the roadwatch agent.
// Configuration is loaded from an optional TOML file, then environment
// variables, on top of sensible defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	// Default values
	DefaultPort              = 8787
	DefaultLogLevel          = "info"
	DefaultDataDir           = ".roadwatch"
	DefaultDemoDays          = 5
	DefaultTrackPreviewLimit = 5
	DefaultFetchTimeout      = 30 * time.Second
	DefaultRefreshInterval   = time.Second / 60
	DefaultFallbackWidth     = 1920
	DefaultFallbackHeight    = 1080
	DefaultFallbackFPS       = 30.0
	DefaultFallbackDuration  = 10.0
	DefaultDisplayWidth      = 960
	DefaultDisplayHeight     = 540

	// Environment variable names
	EnvConfigFile        = "ROADWATCH_CONFIG"
	EnvPort              = "ROADWATCH_PORT"
	EnvLogLevel          = "ROADWATCH_LOG_LEVEL"
	EnvDataDir           = "ROADWATCH_DATA_DIR"
	EnvBackendURL        = "ROADWATCH_BACKEND_URL"
	EnvMediaDir          = "ROADWATCH_MEDIA_DIR"
	EnvHeadless          = "ROADWATCH_HEADLESS"
	EnvSeedDemo          = "ROADWATCH_SEED_DEMO"
	EnvDemoDays          = "ROADWATCH_DEMO_DAYS"
	EnvRoadTotalLength   = "ROADWATCH_ROAD_TOTAL_LENGTH"
	EnvRoadTotalCount    = "ROADWATCH_ROAD_TOTAL_COUNT"
	EnvTrackPreviewLimit = "ROADWATCH_TRACK_PREVIEW_LIMIT"
	EnvFetchTimeout      = "ROADWATCH_FETCH_TIMEOUT"
	EnvRefreshInterval   = "ROADWATCH_REFRESH_INTERVAL"
	EnvFrameCallbacks    = "ROADWATCH_FRAME_CALLBACKS"
	EnvAutoplayBlocked   = "ROADWATCH_AUTOPLAY_BLOCKED"
	EnvFFprobePath       = "ROADWATCH_FFPROBE_PATH"
	EnvFallbackWidth     = "ROADWATCH_FALLBACK_WIDTH"
	EnvFallbackHeight    = "ROADWATCH_FALLBACK_HEIGHT"
	EnvFallbackFPS       = "ROADWATCH_FALLBACK_FPS"
	EnvFallbackDuration  = "ROADWATCH_FALLBACK_DURATION"
	EnvDisplayWidth      = "ROADWATCH_DISPLAY_WIDTH"
	EnvDisplayHeight     = "ROADWATCH_DISPLAY_HEIGHT"

	// Database filename
	DBFilename = "roadwatch.db"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	MediaDir() string
	BackendURL() string
	Headless() bool

	SeedDemo() bool
	DemoDays() int
	RoadTotalLength() float64
	RoadTotalCount() int
	TrackPreviewLimit() int

	FetchTimeout() time.Duration
	RefreshInterval() time.Duration
	FrameCallbacks() bool
	AutoplayBlocked() bool
	FFprobePath() string
	FallbackWidth() int
	FallbackHeight() int
	FallbackFPS() float64
	FallbackDuration() float64
	DisplayWidth() int
	DisplayHeight() int
}

// values mirrors the TOML file layout.
type values struct {
	Port       int    `toml:"port"`
	LogLevel   string `toml:"log_level"`
	DataDir    string `toml:"data_dir"`
	BackendURL string `toml:"backend_url"`
	MediaDir   string `toml:"media_dir"`
	Headless   bool   `toml:"headless"`

	SeedDemo          bool    `toml:"seed_demo"`
	DemoDays          int     `toml:"demo_days"`
	RoadTotalLength   float64 `toml:"road_total_length"`
	RoadTotalCount    int     `toml:"road_total_count"`
	TrackPreviewLimit int     `toml:"track_preview_limit"`

	FetchTimeout     string  `toml:"fetch_timeout"`
	RefreshInterval  string  `toml:"refresh_interval"`
	FrameCallbacks   bool    `toml:"frame_callbacks"`
	AutoplayBlocked  bool    `toml:"autoplay_blocked"`
	FFprobePath      string  `toml:"ffprobe_path"`
	FallbackWidth    int     `toml:"fallback_width"`
	FallbackHeight   int     `toml:"fallback_height"`
	FallbackFPS      float64 `toml:"fallback_fps"`
	FallbackDuration float64 `toml:"fallback_duration"`
	DisplayWidth     int     `toml:"display_width"`
	DisplayHeight    int     `toml:"display_height"`
}

// EnvConfig reads configuration from a TOML file and environment variables
type EnvConfig struct {
	v               values
	fetchTimeout    time.Duration
	refreshInterval time.Duration
}

// New creates a new EnvConfig with defaults, the file named by
// ROADWATCH_CONFIG when set, and environment variable overrides
func New() (*EnvConfig, error) {
	return Load(os.Getenv(EnvConfigFile))
}

// Load is New with an explicit config file path; an empty path skips the file.
func Load(path string) (*EnvConfig, error) {
	v := values{
		Port:              DefaultPort,
		LogLevel:          DefaultLogLevel,
		DataDir:           defaultDataDir(),
		SeedDemo:          true,
		DemoDays:          DefaultDemoDays,
		TrackPreviewLimit: DefaultTrackPreviewLimit,
		FetchTimeout:      DefaultFetchTimeout.String(),
		RefreshInterval:   DefaultRefreshInterval.String(),
		FrameCallbacks:    true,
		FallbackWidth:     DefaultFallbackWidth,
		FallbackHeight:    DefaultFallbackHeight,
		FallbackFPS:       DefaultFallbackFPS,
		FallbackDuration:  DefaultFallbackDuration,
		DisplayWidth:      DefaultDisplayWidth,
		DisplayHeight:     DefaultDisplayHeight,
	}

	if path != "" {
		if err := decodeFile(path, &v); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(&v); err != nil {
		return nil, err
	}

	cfg := &EnvConfig{v: v}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeFile(path string, v *values) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	dec := toml.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("config file %s: %s", path, strict.String())
		}
		return fmt.Errorf("config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(v *values) error {
	var errs []error
	str := func(name string, dst *string) {
		if s := os.Getenv(name); s != "" {
			*dst = s
		}
	}
	num := func(name string, dst *int) {
		if s := os.Getenv(name); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %w", name, err))
				return
			}
			*dst = n
		}
	}
	float := func(name string, dst *float64) {
		if s := os.Getenv(name); s != "" {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %w", name, err))
				return
			}
			*dst = f
		}
	}
	flag := func(name string, dst *bool) {
		if s := os.Getenv(name); s != "" {
			b, err := strconv.ParseBool(s)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %w", name, err))
				return
			}
			*dst = b
		}
	}

	num(EnvPort, &v.Port)
	str(EnvLogLevel, &v.LogLevel)
	str(EnvDataDir, &v.DataDir)
	str(EnvBackendURL, &v.BackendURL)
	str(EnvMediaDir, &v.MediaDir)
	flag(EnvHeadless, &v.Headless)
	flag(EnvSeedDemo, &v.SeedDemo)
	num(EnvDemoDays, &v.DemoDays)
	float(EnvRoadTotalLength, &v.RoadTotalLength)
	num(EnvRoadTotalCount, &v.RoadTotalCount)
	num(EnvTrackPreviewLimit, &v.TrackPreviewLimit)
	str(EnvFetchTimeout, &v.FetchTimeout)
	str(EnvRefreshInterval, &v.RefreshInterval)
	flag(EnvFrameCallbacks, &v.FrameCallbacks)
	flag(EnvAutoplayBlocked, &v.AutoplayBlocked)
	str(EnvFFprobePath, &v.FFprobePath)
	num(EnvFallbackWidth, &v.FallbackWidth)
	num(EnvFallbackHeight, &v.FallbackHeight)
	float(EnvFallbackFPS, &v.FallbackFPS)
	float(EnvFallbackDuration, &v.FallbackDuration)
	num(EnvDisplayWidth, &v.DisplayWidth)
	num(EnvDisplayHeight, &v.DisplayHeight)

	return errors.Join(errs...)
}

func (c *EnvConfig) validate() error {
	if c.v.Port < 1 || c.v.Port > 65535 {
		return fmt.Errorf("invalid port %d: port must be between 1 and 65535", c.v.Port)
	}
	var err error
	if c.fetchTimeout, err = time.ParseDuration(c.v.FetchTimeout); err != nil || c.fetchTimeout <= 0 {
		return fmt.Errorf("invalid fetch_timeout %q", c.v.FetchTimeout)
	}
	if c.refreshInterval, err = time.ParseDuration(c.v.RefreshInterval); err != nil || c.refreshInterval <= 0 {
		return fmt.Errorf("invalid refresh_interval %q", c.v.RefreshInterval)
	}
	if c.v.DemoDays < 0 || c.v.TrackPreviewLimit < 0 {
		return fmt.Errorf("demo_days and track_preview_limit must not be negative")
	}
	if c.v.DisplayWidth < 0 || c.v.DisplayHeight < 0 {
		return fmt.Errorf("display size must not be negative")
	}
	return nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.v.Port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.v.LogLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.v.DataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.v.DataDir, DBFilename)
}

// MediaDir returns the directory served under /media, by default inside the
// data directory
func (c *EnvConfig) MediaDir() string {
	if c.v.MediaDir != "" {
		return c.v.MediaDir
	}
	return filepath.Join(c.v.DataDir, "media")
}

// BackendURL returns the inspection API base URL, by default this agent's own
// loopback listener
func (c *EnvConfig) BackendURL() string {
	if c.v.BackendURL != "" {
		return strings.TrimRight(c.v.BackendURL, "/")
	}
	return fmt.Sprintf("http://127.0.0.1:%d", c.v.Port)
}

func (c *EnvConfig) Headless() bool {
	return c.v.Headless
}

func (c *EnvConfig) SeedDemo() bool {
	return c.v.SeedDemo
}

func (c *EnvConfig) DemoDays() int {
	if c.v.DemoDays == 0 {
		return DefaultDemoDays
	}
	return c.v.DemoDays
}

func (c *EnvConfig) RoadTotalLength() float64 {
	return c.v.RoadTotalLength
}

func (c *EnvConfig) RoadTotalCount() int {
	return c.v.RoadTotalCount
}

func (c *EnvConfig) TrackPreviewLimit() int {
	if c.v.TrackPreviewLimit == 0 {
		return DefaultTrackPreviewLimit
	}
	return c.v.TrackPreviewLimit
}

func (c *EnvConfig) FetchTimeout() time.Duration {
	return c.fetchTimeout
}

func (c *EnvConfig) RefreshInterval() time.Duration {
	return c.refreshInterval
}

// FrameCallbacks reports whether the video may expose per-frame callbacks.
// Turning it off forces the display-refresh render strategy.
func (c *EnvConfig) FrameCallbacks() bool {
	return c.v.FrameCallbacks
}

func (c *EnvConfig) AutoplayBlocked() bool {
	return c.v.AutoplayBlocked
}

func (c *EnvConfig) FFprobePath() string {
	return c.v.FFprobePath
}

func (c *EnvConfig) FallbackWidth() int {
	return c.v.FallbackWidth
}

func (c *EnvConfig) FallbackHeight() int {
	return c.v.FallbackHeight
}

func (c *EnvConfig) FallbackFPS() float64 {
	return c.v.FallbackFPS
}

func (c *EnvConfig) FallbackDuration() float64 {
	return c.v.FallbackDuration
}

func (c *EnvConfig) DisplayWidth() int {
	return c.v.DisplayWidth
}

func (c *EnvConfig) DisplayHeight() int {
	return c.v.DisplayHeight
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
