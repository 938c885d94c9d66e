// Package config loads process settings from a .env file and the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	// Server
	Port              string        `mapstructure:"PORT"`
	Env               string        `mapstructure:"ENV"`
	CorsOrigins       []string      `mapstructure:"CORS_ORIGINS"`
	RequestTimeout    time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	SimulationTimeout time.Duration `mapstructure:"SIMULATION_TIMEOUT"`
	LiveFullUpdates   bool          `mapstructure:"LIVE_FULL_UPDATES"`

	// Logging
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// Storage. An empty REDIS_URL keeps matches in memory; an empty
	// DATABASE_URL disables ratings and projection history.
	DatabaseURL string        `mapstructure:"DATABASE_URL"`
	RedisURL    string        `mapstructure:"REDIS_URL"`
	MatchTTL    time.Duration `mapstructure:"MATCH_TTL"`

	// Simulation
	Workers         int           `mapstructure:"WORKERS"`
	SimulationRuns  int           `mapstructure:"SIMULATION_RUNS"`
	CacheCapacity   int           `mapstructure:"CACHE_CAPACITY"`
	PhaseScaling    bool          `mapstructure:"PHASE_SCALING"`
	BallDelay       time.Duration `mapstructure:"BALL_DELAY"`
	PlayerModifiers string        `mapstructure:"PLAYER_MODIFIERS"`

	// Generative strategy
	GenerativeThreshold int           `mapstructure:"GENERATIVE_THRESHOLD"`
	GenerativeAPIURL    string        `mapstructure:"GENERATIVE_API_URL"`
	GenerativeAPIKey    string        `mapstructure:"GENERATIVE_API_KEY"`
	GenerativeModel     string        `mapstructure:"GENERATIVE_MODEL"`
	GenerativeRateLimit float64       `mapstructure:"GENERATIVE_RATE_LIMIT"` // requests per second
	GenerativeTimeout   time.Duration `mapstructure:"GENERATIVE_TIMEOUT"`

	// Weather
	OpenWeatherAPIKey      string  `mapstructure:"OPENWEATHER_API_KEY"`
	DefaultRainProbability float64 `mapstructure:"DEFAULT_RAIN_PROBABILITY"`
	RainTargetJitter       float64 `mapstructure:"RAIN_TARGET_JITTER"`
}

// LoadConfig reads .env from the working directory or its parent, then lets
// the environment override it.
func LoadConfig() (*Config, error) {
	return load(viper.New(), ".", "..")
}

func load(v *viper.Viper, paths ...string) (*Config, error) {
	v.SetConfigName(".env")
	v.SetConfigType("env")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("REQUEST_TIMEOUT", "10s")
	v.SetDefault("SIMULATION_TIMEOUT", "60s")
	v.SetDefault("LIVE_FULL_UPDATES", false)

	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("LOG_FORMAT", "")

	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("MATCH_TTL", "24h")

	v.SetDefault("WORKERS", 4)
	v.SetDefault("SIMULATION_RUNS", 1000)
	v.SetDefault("CACHE_CAPACITY", 100)
	v.SetDefault("PHASE_SCALING", false)
	v.SetDefault("BALL_DELAY", "500ms")
	v.SetDefault("PLAYER_MODIFIERS", "")

	v.SetDefault("GENERATIVE_THRESHOLD", 7)
	v.SetDefault("GENERATIVE_API_URL", "")
	v.SetDefault("GENERATIVE_API_KEY", "")
	v.SetDefault("GENERATIVE_MODEL", "default")
	v.SetDefault("GENERATIVE_RATE_LIMIT", 1)
	v.SetDefault("GENERATIVE_TIMEOUT", "60s")

	v.SetDefault("OPENWEATHER_API_KEY", "")
	v.SetDefault("DEFAULT_RAIN_PROBABILITY", 15)
	v.SetDefault("RAIN_TARGET_JITTER", 0.05)

	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	config.CorsOrigins = splitList(v.GetString("CORS_ORIGINS"))

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate rejects settings the simulator cannot run with
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("WORKERS must be at least 1, got %d", c.Workers)
	}
	if c.SimulationRuns < 1 {
		return fmt.Errorf("SIMULATION_RUNS must be at least 1, got %d", c.SimulationRuns)
	}
	if c.CacheCapacity < 1 {
		return fmt.Errorf("CACHE_CAPACITY must be at least 1, got %d", c.CacheCapacity)
	}
	if c.DefaultRainProbability < 0 || c.DefaultRainProbability > 100 {
		return fmt.Errorf("DEFAULT_RAIN_PROBABILITY must be between 0 and 100, got %v", c.DefaultRainProbability)
	}
	if c.RainTargetJitter < 0 || c.RainTargetJitter >= 1 {
		return fmt.Errorf("RAIN_TARGET_JITTER must be in [0, 1), got %v", c.RainTargetJitter)
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// GenerativeEnabled reports whether a generation service is configured
func (c *Config) GenerativeEnabled() bool {
	return c.GenerativeAPIKey != "" && c.GenerativeAPIURL != ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
