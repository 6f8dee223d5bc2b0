package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server     Server     `mapstructure:"server"`
	Database   Database   `mapstructure:"database"`
	Logger     Logger     `mapstructure:"logger"`
	Instrument Instrument `mapstructure:"instrument"`
	Portfolio  Portfolio  `mapstructure:"portfolio"`
	Feed       Feed       `mapstructure:"feed"`
}

// Server holds the configuration for the HTTP server.
type Server struct {
	Port int `mapstructure:"port"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Instrument holds the instrument search and cache settings.
type Instrument struct {
	SearchLimit  int `mapstructure:"search_limit"`
	CacheMaxSize int `mapstructure:"cache_max_size"`
	CacheTTLMin  int `mapstructure:"cache_ttl_min"`
}

// Portfolio holds the portfolio aggregation policy. When FailOnDataCorruption
// is true, negative computed holdings fail the whole portfolio read; when
// false, the affected instrument is skipped with a warning.
type Portfolio struct {
	FailOnDataCorruption bool `mapstructure:"fail_on_data_corruption"`
}

// Feed holds the configuration for the market-data feed client.
type Feed struct {
	Enabled        bool    `mapstructure:"enabled"`
	BaseURL        string  `mapstructure:"base_url"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
	IntervalMin    int     `mapstructure:"interval_min"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")

	// Allow environment variables to override config file
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("instrument.search_limit", 10)
	viper.SetDefault("instrument.cache_max_size", 1000)
	viper.SetDefault("instrument.cache_ttl_min", 3)
	viper.SetDefault("portfolio.fail_on_data_corruption", false)
	viper.SetDefault("feed.rate_limit", 5) // requests per second
	viper.SetDefault("feed.rate_limit_burst", 2)
	viper.SetDefault("feed.interval_min", 60)

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
