package startup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"image-editor/internal/logging"

	"github.com/creasty/defaults"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Counter stores for the rate limiter.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// DatabaseFileName is the SQLite file created inside DatabaseDir.
const DatabaseFileName = "image-editor.db"

// Config holds all application configuration. Values come from struct
// defaults, then the optional YAML file, then environment variables.
type Config struct {
	UploadsDir     string `yaml:"uploads_dir" default:"/uploads"`
	DatabaseDir    string `yaml:"database_dir" default:"/database"`
	Port           string `yaml:"port" default:"8080"`
	MetricsPort    string `yaml:"metrics_port" default:"9090"`
	MetricsEnabled bool   `yaml:"metrics_enabled" default:"true"`
	PublicURL      string `yaml:"public_url"`

	MaxFileSize           int64  `yaml:"max_file_size" default:"10485760"`
	MaxImageWidth         int    `yaml:"max_image_width" default:"4096"`
	MaxImageHeight        int    `yaml:"max_image_height" default:"4096"`
	PreviewQuality        int    `yaml:"preview_quality" default:"90"`
	ProcessingMemoryLimit int64  `yaml:"processing_memory_limit" default:"268435456"`
	ImageBackend          string `yaml:"image_backend" default:"imaging"`

	RateLimitRequests     int64         `yaml:"rate_limit_requests" default:"30"`
	SaveRateLimitRequests int64         `yaml:"save_rate_limit_requests" default:"30"`
	RateLimitWindow       time.Duration `yaml:"rate_limit_window" default:"60s"`
	RateLimitStore        string        `yaml:"rate_limit_store" default:"memory"`
	RedisAddr             string        `yaml:"redis_addr" default:"localhost:6379"`
	RedisPassword         string        `yaml:"redis_password"`
	RedisDB               int           `yaml:"redis_db"`

	NonceSecret     string        `yaml:"nonce_secret"`
	SessionDuration time.Duration `yaml:"session_duration" default:"168h"`
	LoginAttempts   int           `yaml:"login_attempts_per_minute" default:"5"`
	LogFile         string        `yaml:"log_file"`
	LogStaticFiles  bool          `yaml:"log_static_files" default:"false"`
	LogHealthChecks bool          `yaml:"log_health_checks" default:"true"`

	// Derived paths
	DatabasePath string `yaml:"-"`
}

// Validate checks ranges and cross-field requirements.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.UploadsDir, validation.Required),
		validation.Field(&c.DatabaseDir, validation.Required),
		validation.Field(&c.Port, validation.Required, is.Port),
		validation.Field(&c.MetricsPort, validation.Required.When(c.MetricsEnabled), is.Port),
		validation.Field(&c.PublicURL, is.URL),
		validation.Field(&c.MaxFileSize, validation.Required, validation.Min(int64(1))),
		validation.Field(&c.MaxImageWidth, validation.Required, validation.Min(1)),
		validation.Field(&c.MaxImageHeight, validation.Required, validation.Min(1)),
		validation.Field(&c.PreviewQuality, validation.Required, validation.Min(1), validation.Max(100)),
		validation.Field(&c.ImageBackend, validation.Required, validation.In("imaging", "vips")),
		validation.Field(&c.RateLimitRequests, validation.Required, validation.Min(int64(1))),
		validation.Field(&c.SaveRateLimitRequests, validation.Required, validation.Min(int64(1))),
		validation.Field(&c.RateLimitWindow, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.RateLimitStore, validation.Required, validation.In(StoreMemory, StoreSQLite, StoreRedis)),
		validation.Field(&c.RedisAddr, validation.Required.When(c.RateLimitStore == StoreRedis)),
		validation.Field(&c.RedisDB, validation.Min(0)),
		validation.Field(&c.SessionDuration, validation.Required, validation.Min(time.Minute)),
		validation.Field(&c.LoginAttempts, validation.Required, validation.Min(1)),
	)
}

// LoadConfig builds the configuration. configFile may be empty.
func LoadConfig(configFile string) (*Config, error) {
	printBanner()
	section("CONFIGURATION")

	cfg, err := readConfig(configFile)
	if err != nil {
		return nil, err
	}
	logConfig(cfg, configFile)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	section("DIRECTORIES")

	if cfg.UploadsDir, err = filepath.Abs(cfg.UploadsDir); err != nil {
		return nil, fmt.Errorf("failed to resolve uploads directory path: %w", err)
	}
	logging.Info("  Uploads directory (absolute): %s", cfg.UploadsDir)

	if cfg.DatabaseDir, err = filepath.Abs(cfg.DatabaseDir); err != nil {
		return nil, fmt.Errorf("failed to resolve database directory path: %w", err)
	}
	logging.Info("  Database directory (absolute): %s", cfg.DatabaseDir)
	cfg.DatabasePath = filepath.Join(cfg.DatabaseDir, DatabaseFileName)

	for _, dir := range []struct{ path, name string }{
		{cfg.UploadsDir, "uploads"},
		{cfg.DatabaseDir, "database"},
	} {
		if err := prepareDirectory(dir.path); err != nil {
			return nil, fmt.Errorf("%s directory error: %w", dir.name, err)
		}
		logging.Info("  [OK] %s directory is writable", dir.name)
	}

	return cfg, nil
}

// readConfig applies defaults, the YAML file and the environment, in that order.
func readConfig(configFile string) (*Config, error) {
	loadDotEnv(".env")

	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("failed to set config defaults: %w", err)
	}

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configFile, err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

// loadDotEnv loads variables from path without overriding the environment.
func loadDotEnv(path string) {
	if err := godotenv.Load(path); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logging.Warn("  Failed to load %s: %v", path, err)
		}
		return
	}
	logging.Info("  Loaded environment from %s", path)
}

func applyEnv(c *Config) {
	c.UploadsDir = getEnv("UPLOADS_DIR", c.UploadsDir)
	c.DatabaseDir = getEnv("DATABASE_DIR", c.DatabaseDir)
	c.Port = getEnv("PORT", c.Port)
	c.MetricsPort = getEnv("METRICS_PORT", c.MetricsPort)
	c.MetricsEnabled = getEnvBool("METRICS_ENABLED", c.MetricsEnabled)
	c.PublicURL = strings.TrimRight(getEnv("PUBLIC_URL", c.PublicURL), "/")

	c.MaxFileSize = getEnvBytes("MAX_FILE_SIZE", c.MaxFileSize)
	c.MaxImageWidth = getEnvInt("MAX_IMAGE_WIDTH", c.MaxImageWidth)
	c.MaxImageHeight = getEnvInt("MAX_IMAGE_HEIGHT", c.MaxImageHeight)
	c.PreviewQuality = getEnvInt("PREVIEW_QUALITY", c.PreviewQuality)
	c.ProcessingMemoryLimit = getEnvBytes("PROCESSING_MEMORY_LIMIT", c.ProcessingMemoryLimit)
	c.ImageBackend = strings.ToLower(getEnv("IMAGE_BACKEND", c.ImageBackend))

	c.RateLimitRequests = int64(getEnvInt("RATE_LIMIT_REQUESTS", int(c.RateLimitRequests)))
	c.SaveRateLimitRequests = int64(getEnvInt("SAVE_RATE_LIMIT_REQUESTS", int(c.SaveRateLimitRequests)))
	c.RateLimitWindow = getEnvDuration("RATE_LIMIT_WINDOW", c.RateLimitWindow)
	c.RateLimitStore = strings.ToLower(getEnv("RATE_LIMIT_STORE", c.RateLimitStore))
	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = getEnvInt("REDIS_DB", c.RedisDB)

	c.NonceSecret = getEnv("NONCE_SECRET", c.NonceSecret)
	c.SessionDuration = getEnvDuration("SESSION_DURATION", c.SessionDuration)
	c.LoginAttempts = getEnvInt("LOGIN_ATTEMPTS_PER_MINUTE", c.LoginAttempts)
	c.LogFile = getEnv("LOG_FILE", c.LogFile)
	c.LogStaticFiles = getEnvBool("LOG_STATIC_FILES", c.LogStaticFiles)
	c.LogHealthChecks = getEnvBool("LOG_HEALTH_CHECKS", c.LogHealthChecks)
}

func logConfig(c *Config, configFile string) {
	if configFile != "" {
		logging.Info("  CONFIG_FILE:              %s", configFile)
	}
	logging.Info("  UPLOADS_DIR:              %s", c.UploadsDir)
	logging.Info("  DATABASE_DIR:             %s", c.DatabaseDir)
	logging.Info("  PORT:                     %s", c.Port)
	logging.Info("  METRICS_PORT:             %s", c.MetricsPort)
	logging.Info("  METRICS_ENABLED:          %v", c.MetricsEnabled)
	logging.Info("  PUBLIC_URL:               %s", c.PublicURL)
	logging.Info("  MAX_FILE_SIZE:            %d", c.MaxFileSize)
	logging.Info("  MAX_IMAGE_WIDTH/HEIGHT:   %dx%d", c.MaxImageWidth, c.MaxImageHeight)
	logging.Info("  PREVIEW_QUALITY:          %d", c.PreviewQuality)
	logging.Info("  PROCESSING_MEMORY_LIMIT:  %d", c.ProcessingMemoryLimit)
	logging.Info("  IMAGE_BACKEND:            %s", c.ImageBackend)
	logging.Info("  RATE_LIMIT:               %d preview / %d save per %s", c.RateLimitRequests, c.SaveRateLimitRequests, c.RateLimitWindow)
	logging.Info("  RATE_LIMIT_STORE:         %s", c.RateLimitStore)
	if c.RateLimitStore == StoreRedis {
		logging.Info("  REDIS_ADDR:               %s (db %d)", c.RedisAddr, c.RedisDB)
	}
	logging.Info("  NONCE_SECRET:             %s", redacted(c.NonceSecret))
	logging.Info("  SESSION_DURATION:         %s", c.SessionDuration)
	logging.Info("  LOG_STATIC_FILES:         %v", c.LogStaticFiles)
	logging.Info("  LOG_HEALTH_CHECKS:        %v", c.LogHealthChecks)
	logging.Info("  LOG_LEVEL:                %s", logging.GetLevel())
}

func redacted(secret string) string {
	if secret == "" {
		return "(random per process)"
	}
	return "(set)"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		logging.Warn("Invalid duration for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvBytes(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := ParseByteSize(value)
	if err != nil {
		logging.Warn("Invalid size for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

// ParseByteSize parses sizes such as "1048576", "512K", "256M", "10MiB" or
// "1GB". Units are binary.
func ParseByteSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	i := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsDigit(r) })
	if i == 0 {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	num, unit := s, ""
	if i > 0 {
		num, unit = s[:i], strings.ToUpper(strings.TrimSpace(s[i:]))
	}

	n, err := strconv.ParseInt(num, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}

	var mult int64
	switch strings.TrimSuffix(strings.TrimSuffix(unit, "B"), "I") {
	case "":
		mult = 1
	case "K":
		mult = 1 << 10
	case "M":
		mult = 1 << 20
	case "G":
		mult = 1 << 30
	default:
		return 0, fmt.Errorf("invalid size unit in %q", s)
	}
	return n * mult, nil
}
