package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the lostmatch service configuration.
type Config struct {
	HTTP            HTTPConfig            `yaml:"http"`
	Database        DatabaseConfig        `yaml:"database"`
	Storage         StorageConfig         `yaml:"storage"`
	Auth            AuthConfig            `yaml:"auth"`
	Logging         LoggingConfig         `yaml:"logging"`
	Matching        MatchingConfig        `yaml:"matching"`
	ImageComparator ImageComparatorConfig `yaml:"image_comparator"`
	TextSimilarity  TextSimilarityConfig  `yaml:"text_similarity"`
	Scheduler       SchedulerConfig       `yaml:"scheduler"`
	Email           EmailConfig           `yaml:"email"`
	Notifications   NotificationsConfig   `yaml:"notifications"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// MatchingConfig holds orchestration settings.
type MatchingConfig struct {
	DefaultThreshold  int  `yaml:"default_threshold"` // percent
	MaxConcurrency    int  `yaml:"max_concurrency"`
	CompareTimeoutSec int  `yaml:"compare_timeout_sec"`
	TextEnabled       bool `yaml:"text_enabled"`
	TopN              int  `yaml:"top_n"`
}

// ImageComparatorConfig holds the feature comparison service settings.
type ImageComparatorConfig struct {
	BaseURL    string `yaml:"base_url"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// TextSimilarityConfig holds text similarity backend settings.
type TextSimilarityConfig struct {
	Provider         string       `yaml:"provider"` // local, http, openai (default: local)
	URL              string       `yaml:"url"`
	HealthTimeoutSec int          `yaml:"health_timeout_sec"`
	CompareTimeout   int          `yaml:"compare_timeout_sec"`
	ProbeTTLSec      int          `yaml:"probe_ttl_sec"`
	OpenAI           OpenAIConfig `yaml:"openai"`
}

// OpenAIConfig holds embedding provider settings for the openai text backend.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	// CacheTTLSec keeps embeddings in the store; negative disables the cache.
	CacheTTLSec int `yaml:"cache_ttl_sec"`
}

// SchedulerConfig holds periodic re-matching settings.
type SchedulerConfig struct {
	Enabled     bool   `yaml:"enabled"`
	IntervalMin int    `yaml:"interval_min"`
	Lock        string `yaml:"lock"` // none, file, redis (default: none)
	LockPath    string `yaml:"lock_path"`
	LockTTLSec  int    `yaml:"lock_ttl_sec"`
}

// EmailConfig holds SMTP settings. Email is disabled without credentials.
type EmailConfig struct {
	Host      string `yaml:"smtp_host"`
	Port      int    `yaml:"smtp_port"`
	Username  string `yaml:"smtp_username"`
	Password  string `yaml:"smtp_password"`
	From      string `yaml:"from"`
	PublicURL string `yaml:"public_url"`
}

// NotificationsConfig holds in-app and realtime settings.
type NotificationsConfig struct {
	RealtimeEnabled bool `yaml:"realtime_enabled"`
	HeartbeatSec    int  `yaml:"heartbeat_sec"`
	MaxRecords      int  `yaml:"max_records"`
}

// Interval returns the scheduler interval as a duration.
func (s SchedulerConfig) Interval() time.Duration {
	return time.Duration(s.IntervalMin) * time.Minute
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse decodes YAML config bytes, expanding env variables and applying defaults.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		// long enough for a synchronous match run
		c.HTTP.WriteTimeoutSec = 120
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "valkey"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "lostmatch:"
	}
	c.Matching.applyDefaults()
	if c.ImageComparator.TimeoutSec <= 0 {
		c.ImageComparator.TimeoutSec = 60
	}
	c.TextSimilarity.applyDefaults()
	if c.Scheduler.IntervalMin <= 0 {
		c.Scheduler.IntervalMin = 360
	}
	if c.Scheduler.Lock == "" {
		c.Scheduler.Lock = "none"
	}
	if c.Scheduler.LockPath == "" {
		c.Scheduler.LockPath = filepath.Join(os.TempDir(), "lostmatch-rematch.lock")
	}
	if c.Scheduler.LockTTLSec <= 0 {
		c.Scheduler.LockTTLSec = 3600
	}
	if c.Email.Port <= 0 {
		c.Email.Port = 587
	}
	if c.Email.PublicURL == "" {
		c.Email.PublicURL = "http://localhost:3000"
	}
	if c.Notifications.HeartbeatSec <= 0 {
		c.Notifications.HeartbeatSec = 25
	}
	if c.Notifications.MaxRecords <= 0 {
		c.Notifications.MaxRecords = 200
	}
}

func (m *MatchingConfig) applyDefaults() {
	if m.DefaultThreshold <= 0 {
		m.DefaultThreshold = 15
	}
	if m.MaxConcurrency <= 0 {
		m.MaxConcurrency = 5
	}
	if m.CompareTimeoutSec <= 0 {
		m.CompareTimeoutSec = 60
	}
	if m.TopN <= 0 {
		m.TopN = 3
	}
}

func (t *TextSimilarityConfig) applyDefaults() {
	if t.Provider == "" {
		t.Provider = "local"
	}
	if t.HealthTimeoutSec <= 0 {
		t.HealthTimeoutSec = 10
	}
	if t.CompareTimeout <= 0 {
		t.CompareTimeout = 10
	}
	if t.ProbeTTLSec <= 0 {
		t.ProbeTTLSec = 30
	}
	if t.OpenAI.Model == "" {
		t.OpenAI.Model = "text-embedding-3-small"
	}
	if t.OpenAI.CacheTTLSec == 0 {
		t.OpenAI.CacheTTLSec = 7 * 24 * 3600
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	switch c.Database.Driver {
	case "", "valkey", "redis":
	default:
		return fmt.Errorf("database.driver must be \"valkey\" or \"redis\", got %q", c.Database.Driver)
	}
	if c.Matching.DefaultThreshold < 0 || c.Matching.DefaultThreshold > 100 {
		return fmt.Errorf("matching.default_threshold must be between 0 and 100, got %d", c.Matching.DefaultThreshold)
	}
	if c.Matching.TopN > 3 {
		return fmt.Errorf("matching.top_n must be at most 3, got %d", c.Matching.TopN)
	}
	if c.ImageComparator.BaseURL == "" {
		return fmt.Errorf("image_comparator.base_url is required")
	}
	switch c.TextSimilarity.Provider {
	case "", "local":
	case "http":
		if c.TextSimilarity.URL == "" {
			return fmt.Errorf("text_similarity.url is required for provider \"http\"")
		}
	case "openai":
		if c.TextSimilarity.OpenAI.APIKey == "" {
			return fmt.Errorf("text_similarity.openai.api_key is required for provider \"openai\"")
		}
	default:
		return fmt.Errorf(
			"text_similarity.provider must be \"local\", \"http\" or \"openai\", got %q",
			c.TextSimilarity.Provider,
		)
	}
	switch c.Scheduler.Lock {
	case "", "none", "file", "redis":
	default:
		return fmt.Errorf("scheduler.lock must be \"none\", \"file\" or \"redis\", got %q", c.Scheduler.Lock)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
