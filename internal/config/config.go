package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the nlquery API configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Generation GenerationConfig `yaml:"generation"`
	Structure  StructureConfig  `yaml:"structure"`
	Retrieve   RetrieveConfig   `yaml:"retrieve"`
	Collection CollectionConfig `yaml:"collection"`
	Lock       LockConfig       `yaml:"lock"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
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

// DatabaseConfig holds index service connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // redis, valkey, memory (default: redis)
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	DialTimeoutMs    int      `yaml:"dial_timeout_ms"` // 0 keeps the driver default
	KeyPrefix        string   `yaml:"key_prefix"`
}

// GenerationConfig holds generative service settings.
type GenerationConfig struct {
	BaseURL           string       `yaml:"base_url"`
	APIKey            string       `yaml:"api_key"`
	Models            []string     `yaml:"models"`
	DefaultModel      string       `yaml:"default_model"`
	TimeoutSec        int          `yaml:"timeout_sec"`
	Temperature       float32      `yaml:"temperature"`
	MaxTokens         int          `yaml:"max_tokens"`
	RequestsPerSecond float64      `yaml:"requests_per_second"` // 0 = unlimited
	Burst             int          `yaml:"burst"`
	CacheTTLSec       int          `yaml:"cache_ttl_sec"` // 0 = never expires
	CacheDisabled     bool         `yaml:"cache_disabled"`
	Budget            BudgetConfig `yaml:"budget"`
}

// BudgetConfig holds token budget settings.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"` // 0 = unlimited
	Action            string `yaml:"action"`              // "reject" | "warn" (default)
}

// StructureConfig holds line structuring settings.
type StructureConfig struct {
	MaxRetries  int `yaml:"max_retries"` // extra attempts per line (default: 2)
	Concurrency int `yaml:"concurrency"`
}

// RetrieveConfig holds query settings.
type RetrieveConfig struct {
	Limit         int `yaml:"limit"`
	MatchAllLimit int `yaml:"match_all_limit"`
	AnswerTopK    int `yaml:"answer_top_k"`
}

// CollectionConfig names the served collection.
type CollectionConfig struct {
	Name            string `yaml:"name"`
	RecreateOnStart bool   `yaml:"recreate_on_start"`
}

// LockConfig selects the recreate lock.
type LockConfig struct {
	Driver string `yaml:"driver"` // none, redis (default: none)
	TTLSec int    `yaml:"ttl_sec"`
}

// IngestConfig holds ingestion settings.
type IngestConfig struct {
	DeterministicIDs bool `yaml:"deterministic_ids"`
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

// Parse decodes YAML with ${VAR} substitution, applies defaults and validates.
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
		c.HTTP.WriteTimeoutSec = 120
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "redis"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Database.KeyPrefix == "" {
		c.Database.KeyPrefix = "nlq:"
	}
	if c.Generation.DefaultModel == "" && len(c.Generation.Models) > 0 {
		c.Generation.DefaultModel = c.Generation.Models[0]
	}
	if c.Generation.TimeoutSec <= 0 {
		c.Generation.TimeoutSec = 30
	}
	if c.Generation.MaxTokens <= 0 {
		c.Generation.MaxTokens = 1024
	}
	if c.Generation.Burst <= 0 {
		c.Generation.Burst = 1
	}
	if c.Structure.MaxRetries <= 0 {
		c.Structure.MaxRetries = 2
	}
	if c.Structure.Concurrency <= 0 {
		c.Structure.Concurrency = 4
	}
	if c.Retrieve.Limit <= 0 {
		c.Retrieve.Limit = 10
	}
	if c.Retrieve.MatchAllLimit <= 0 {
		c.Retrieve.MatchAllLimit = 100
	}
	if c.Retrieve.AnswerTopK <= 0 {
		c.Retrieve.AnswerTopK = 5
	}
	if c.Collection.Name == "" {
		c.Collection.Name = "people"
	}
	if c.Lock.Driver == "" {
		c.Lock.Driver = "none"
	}
	if c.Lock.TTLSec <= 0 {
		c.Lock.TTLSec = 30
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case "redis", "valkey":
		if len(c.Database.Addrs) == 0 {
			return errors.New("database.addrs is required")
		}
	case "memory":
	default:
		return fmt.Errorf("database.driver must be redis, valkey or memory, got %q", c.Database.Driver)
	}
	if c.Generation.BaseURL == "" {
		return errors.New("generation.base_url is required")
	}
	if len(c.Generation.Models) == 0 {
		return errors.New("generation.models must list at least one model")
	}
	if !slices.Contains(c.Generation.Models, c.Generation.DefaultModel) {
		return fmt.Errorf("generation.default_model %q is not in generation.models", c.Generation.DefaultModel)
	}
	if c.Generation.RequestsPerSecond < 0 {
		return fmt.Errorf("generation.requests_per_second must not be negative, got %v", c.Generation.RequestsPerSecond)
	}
	switch c.Generation.Budget.Action {
	case "", "warn", "reject":
		// ok
	default:
		return fmt.Errorf("generation.budget.action must be \"warn\" or \"reject\", got %q", c.Generation.Budget.Action)
	}
	switch c.Lock.Driver {
	case "none":
	case "redis":
		if len(c.Database.Addrs) == 0 {
			return errors.New("lock.driver redis requires database.addrs")
		}
	default:
		return fmt.Errorf("lock.driver must be none or redis, got %q", c.Lock.Driver)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
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
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
