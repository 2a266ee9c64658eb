package config

import (
	"github.com/spf13/viper"
	"strings"
)

// Config stores all configuration for the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Server    ServerConfig
	SampleLog SampleLogConfig `mapstructure:"sample_log"`
	Collector CollectorConfig
	Database  DatabaseConfig
	Exchanges map[string]ExchangeConfig
}

// ServerConfig defines the HTTP API settings.
type ServerConfig struct {
	ListenAddr    string `mapstructure:"listen_addr"`
	DefaultWindow int    `mapstructure:"default_window"`
}

// SampleLogConfig defines where the CSV sample log lives and how to read it.
// Layout is "auto", "named" or "positional"; auto sniffs the first row.
type SampleLogConfig struct {
	Path   string
	Layout string
}

// CollectorConfig defines the spread collector settings.
type CollectorConfig struct {
	Enabled    bool
	Pair       string
	IntervalMS int `mapstructure:"interval_ms"`
}

// DatabaseConfig defines the optional Postgres sample sink.
type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

// ExchangeConfig defines settings for a specific exchange.
type ExchangeConfig struct {
	PairSymbol string `mapstructure:"pair_symbol"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("server.listen_addr", ":8080")
	viper.SetDefault("server.default_window", 300)
	viper.SetDefault("sample_log.path", "spread_log.csv")
	viper.SetDefault("sample_log.layout", "auto")
	viper.SetDefault("collector.pair", "BTC/USDT")
	viper.SetDefault("collector.interval_ms", 500)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
