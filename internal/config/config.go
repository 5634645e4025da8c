package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Refresh modes.
const (
	// ModeScheduled downloads the multi-station latest observations report and
	// replaces the whole station set on every refresh.
	ModeScheduled = "scheduled"
	// ModeDirectory downloads the station table and appends new stations;
	// observations are fetched per station on demand.
	ModeDirectory = "directory"
)

// Config holds all service settings. Values come from environment variables,
// falling back to an optional YAML file and then to built-in defaults.
type Config struct {
	RefreshMode     string
	RefreshSchedule string

	NDBCBaseURL   string
	NDBCTimeout   time.Duration
	NDBCMirrorDir string

	NWSBaseURL   string
	NWSUserAgent string
	NWSTimeout   time.Duration
	NWSCacheSize int

	CursorTolerance float64

	// Kafka snapshot publishing, optional.
	KafkaBrokers       []string
	KafkaEnabled       bool
	KafkaSnapshotTopic string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// fileConfig is the YAML layout of CONFIG_FILE.
type fileConfig struct {
	Refresh struct {
		Mode     string `yaml:"mode"`
		Schedule string `yaml:"schedule"`
	} `yaml:"refresh"`
	NDBC struct {
		BaseURL   string `yaml:"base_url"`
		Timeout   string `yaml:"timeout"`
		MirrorDir string `yaml:"mirror_dir"`
	} `yaml:"ndbc"`
	NWS struct {
		BaseURL   string `yaml:"base_url"`
		UserAgent string `yaml:"user_agent"`
		Timeout   string `yaml:"timeout"`
		CacheSize *int   `yaml:"cache_size"`
	} `yaml:"nws"`
	Cursor struct {
		ToleranceDeg float64 `yaml:"tolerance_deg"`
	} `yaml:"cursor"`
	Kafka struct {
		Brokers       []string `yaml:"brokers"`
		Enabled       *bool    `yaml:"enabled"`
		SnapshotTopic string   `yaml:"snapshot_topic"`
	} `yaml:"kafka"`
	HTTPAddr string `yaml:"http_addr"`
	Log      struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

var builtinDefaults = map[string]string{
	"REFRESH_MODE":         ModeScheduled,
	"REFRESH_SCHEDULE":     "*/30 * * * *",
	"NDBC_BASE_URL":        "https://www.ndbc.noaa.gov",
	"NDBC_TIMEOUT":         "10s",
	"NDBC_MIRROR_DIR":      "",
	"NWS_BASE_URL":         "https://api.weather.gov",
	"NWS_USER_AGENT":       "noaa-buoy-overlay",
	"NWS_TIMEOUT":          "10s",
	"NWS_CACHE_SIZE":       "256",
	"CURSOR_TOLERANCE_DEG": "0.15",
	"KAFKA_BROKERS":        "",
	"KAFKA_ENABLED":        "",
	"KAFKA_SNAPSHOT_TOPIC": "buoy-observations",
	"HTTP_ADDR":            ":8080",
	"LOG_LEVEL":            "info",
	"LOG_FORMAT":           "json",
	"SHUTDOWN_TIMEOUT":     "10s",
}

// Load reads configuration, applying defaults where unset. A .env file in the
// working directory is loaded first if present; it never overrides variables
// already set in the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	defaults, err := loadDefaults(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return nil, err
	}
	env := func(key string) string {
		return sharedcfg.EnvOrDefault(key, defaults[key])
	}

	shutdownTimeout, err := parseShutdownTimeout(defaults["SHUTDOWN_TIMEOUT"])
	if err != nil {
		return nil, err
	}
	ndbcTimeout, err := parseDuration("NDBC_TIMEOUT", env("NDBC_TIMEOUT"))
	if err != nil {
		return nil, err
	}
	nwsTimeout, err := parseDuration("NWS_TIMEOUT", env("NWS_TIMEOUT"))
	if err != nil {
		return nil, err
	}

	cacheSize, err := strconv.Atoi(env("NWS_CACHE_SIZE"))
	if err != nil || cacheSize < 0 {
		return nil, errors.New("invalid NWS_CACHE_SIZE")
	}

	tolerance, err := strconv.ParseFloat(env("CURSOR_TOLERANCE_DEG"), 64)
	if err != nil || tolerance <= 0 || tolerance > 10 {
		return nil, errors.New("invalid CURSOR_TOLERANCE_DEG")
	}

	var brokers []string
	if s := strings.TrimSpace(env("KAFKA_BROKERS")); s != "" {
		brokers = sharedcfg.ParseBrokers(s)
	}
	kafkaEnabled := len(brokers) > 0
	if v := env("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		RefreshMode:     strings.ToLower(env("REFRESH_MODE")),
		RefreshSchedule: env("REFRESH_SCHEDULE"),

		NDBCBaseURL:   env("NDBC_BASE_URL"),
		NDBCTimeout:   ndbcTimeout,
		NDBCMirrorDir: env("NDBC_MIRROR_DIR"),

		NWSBaseURL:   env("NWS_BASE_URL"),
		NWSUserAgent: env("NWS_USER_AGENT"),
		NWSTimeout:   nwsTimeout,
		NWSCacheSize: cacheSize,

		CursorTolerance: tolerance,

		KafkaBrokers:       brokers,
		KafkaEnabled:       kafkaEnabled,
		KafkaSnapshotTopic: env("KAFKA_SNAPSHOT_TOPIC"),

		HTTPAddr:        env("HTTP_ADDR"),
		LogLevel:        env("LOG_LEVEL"),
		LogFormat:       env("LOG_FORMAT"),
		ShutdownTimeout: shutdownTimeout,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.RefreshMode {
	case ModeScheduled, ModeDirectory:
	default:
		return fmt.Errorf("invalid REFRESH_MODE %q: want %s or %s", c.RefreshMode, ModeScheduled, ModeDirectory)
	}
	if c.RefreshSchedule != "" {
		if _, err := cron.ParseStandard(c.RefreshSchedule); err != nil {
			return fmt.Errorf("invalid REFRESH_SCHEDULE: %w", err)
		}
	}
	if c.NDBCBaseURL == "" {
		return errors.New("NDBC_BASE_URL is required")
	}
	if c.NWSBaseURL == "" {
		return errors.New("NWS_BASE_URL is required")
	}
	if c.NWSUserAgent == "" {
		return errors.New("NWS_USER_AGENT is required")
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if c.KafkaEnabled && c.KafkaSnapshotTopic == "" {
		return errors.New("KAFKA_SNAPSHOT_TOPIC is required when Kafka is enabled")
	}
	return nil
}

// loadDefaults overlays values from the YAML file at path onto the built-in
// defaults. An empty path skips the file.
func loadDefaults(path string) (map[string]string, error) {
	defaults := make(map[string]string, len(builtinDefaults))
	for k, v := range builtinDefaults {
		defaults[k] = v
	}
	if path == "" {
		return defaults, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	set := func(key, value string) {
		if value != "" {
			defaults[key] = value
		}
	}
	set("REFRESH_MODE", fc.Refresh.Mode)
	set("REFRESH_SCHEDULE", fc.Refresh.Schedule)
	set("NDBC_BASE_URL", fc.NDBC.BaseURL)
	set("NDBC_TIMEOUT", fc.NDBC.Timeout)
	set("NDBC_MIRROR_DIR", fc.NDBC.MirrorDir)
	set("NWS_BASE_URL", fc.NWS.BaseURL)
	set("NWS_USER_AGENT", fc.NWS.UserAgent)
	set("NWS_TIMEOUT", fc.NWS.Timeout)
	if fc.NWS.CacheSize != nil {
		set("NWS_CACHE_SIZE", strconv.Itoa(*fc.NWS.CacheSize))
	}
	if fc.Cursor.ToleranceDeg != 0 {
		set("CURSOR_TOLERANCE_DEG", strconv.FormatFloat(fc.Cursor.ToleranceDeg, 'f', -1, 64))
	}
	set("KAFKA_BROKERS", strings.Join(fc.Kafka.Brokers, ","))
	if fc.Kafka.Enabled != nil {
		set("KAFKA_ENABLED", strconv.FormatBool(*fc.Kafka.Enabled))
	}
	set("KAFKA_SNAPSHOT_TOPIC", fc.Kafka.SnapshotTopic)
	set("HTTP_ADDR", fc.HTTPAddr)
	set("LOG_LEVEL", fc.Log.Level)
	set("LOG_FORMAT", fc.Log.Format)
	set("SHUTDOWN_TIMEOUT", fc.ShutdownTimeout)
	return defaults, nil
}

// parseShutdownTimeout prefers SHUTDOWN_TIMEOUT from the environment and
// falls back to the file or built-in default.
func parseShutdownTimeout(fallback string) (time.Duration, error) {
	if os.Getenv("SHUTDOWN_TIMEOUT") != "" {
		return sharedcfg.ParseShutdownTimeout()
	}
	return parseDuration("SHUTDOWN_TIMEOUT", fallback)
}

func parseDuration(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}
