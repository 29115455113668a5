package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	AI         AIConfig         `yaml:"ai"`
	Generation GenerationConfig `yaml:"generation"`
	Persona    PersonaConfig    `yaml:"persona"`
	Resilience ResilienceConfig `yaml:"resilience"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	MySQL MySQLConfig `yaml:"mysql"`
	Redis RedisConfig `yaml:"redis"`
}

type MySQLConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type AIConfig struct {
	BaseURL       string        `yaml:"base_url"`
	APIKey        string        `yaml:"api_key"`
	Model         string        `yaml:"model"`
	FallbackModel string        `yaml:"fallback_model"`
	MaxTokens     int           `yaml:"max_tokens"`
	Temperature   float64       `yaml:"temperature"`
	Timeout       time.Duration `yaml:"timeout"`
}

type GenerationConfig struct {
	MaxAttempts      int           `yaml:"max_attempts"`
	QualityThreshold int           `yaml:"quality_threshold"`
	TempIncrement    float64       `yaml:"temp_increment"`
	TokenIncrement   int           `yaml:"token_increment"`
	HistoryWindow    int           `yaml:"history_window"`
	CacheTTL         time.Duration `yaml:"cache_ttl"`
}

type PersonaConfig struct {
	MemoryTTL time.Duration `yaml:"memory_ttl"`
	MinScore  int           `yaml:"min_score"`
}

type ResilienceConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	OpenTimeout      time.Duration `yaml:"open_timeout"`
	DegradedFailures int           `yaml:"degraded_failures"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Apply environment variable overrides
	if apiKey := os.Getenv("COMPLETION_API_KEY"); apiKey != "" {
		cfg.AI.APIKey = apiKey
	}
	if baseURL := os.Getenv("COMPLETION_BASE_URL"); baseURL != "" {
		cfg.AI.BaseURL = baseURL
	}
	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		cfg.Database.Redis.Password = pw
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a config with working defaults, used by tests and as the
// base when no config file is supplied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 180 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.AI.Model == "" {
		c.AI.Model = "gpt-4o"
	}
	if c.AI.FallbackModel == "" {
		c.AI.FallbackModel = "gpt-4o-mini"
	}
	if c.AI.MaxTokens == 0 {
		c.AI.MaxTokens = 500
	}
	if c.AI.Temperature == 0 {
		c.AI.Temperature = 0.8
	}
	if c.AI.Timeout == 0 {
		c.AI.Timeout = 120 * time.Second
	}
	if c.Generation.MaxAttempts == 0 {
		c.Generation.MaxAttempts = 3
	}
	if c.Generation.QualityThreshold == 0 {
		c.Generation.QualityThreshold = 70
	}
	if c.Generation.TempIncrement == 0 {
		c.Generation.TempIncrement = 0.1
	}
	if c.Generation.TokenIncrement == 0 {
		c.Generation.TokenIncrement = 100
	}
	if c.Generation.HistoryWindow == 0 {
		c.Generation.HistoryWindow = 10
	}
	if c.Generation.CacheTTL == 0 {
		c.Generation.CacheTTL = time.Hour
	}
	if c.Persona.MemoryTTL == 0 {
		c.Persona.MemoryTTL = 7 * 24 * time.Hour
	}
	if c.Persona.MinScore == 0 {
		c.Persona.MinScore = 75
	}
	if c.Resilience.FailureThreshold == 0 {
		c.Resilience.FailureThreshold = 5
	}
	if c.Resilience.OpenTimeout == 0 {
		c.Resilience.OpenTimeout = 60 * time.Second
	}
	if c.Resilience.DegradedFailures == 0 {
		c.Resilience.DegradedFailures = 2
	}
}
