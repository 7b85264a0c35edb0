package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"mabacktester/internal/engine"
	"mabacktester/internal/repository"
)

var ErrInvalidConfig = errors.New("invalid config")

const envPrefix = "BACKTESTER"

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	AlphaVantage AlphaVantageConfig `mapstructure:"alphavantage"`
	Backtest     BacktestConfig     `mapstructure:"backtest"`
	Archive      ArchiveConfig      `mapstructure:"archive"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type AlphaVantageConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	Function   string `mapstructure:"function"`
	APIKey     string `mapstructure:"api_key"`
	OutputSize string `mapstructure:"output_size"`
}

type BacktestConfig struct {
	ShortWindow       int     `mapstructure:"short_window"`
	LongWindow        int     `mapstructure:"long_window"`
	InitialInvestment float64 `mapstructure:"initial_investment"`
	HistoryDays       int     `mapstructure:"history_days"`
	Workers           int     `mapstructure:"workers"`
	RiskFreeRate      float64 `mapstructure:"risk_free_rate"`
}

// ArchiveConfig enables the DynamoDB report archive when DynamoDBTable is set.
type ArchiveConfig struct {
	DynamoDBTable string `mapstructure:"dynamodb_table"`
	Region        string `mapstructure:"region"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":9095")
	v.SetDefault("database.driver", repository.DriverSQLite)
	v.SetDefault("database.dsn", "file:backtester.db?_fk=1")
	v.SetDefault("alphavantage.base_url", "https://www.alphavantage.co/query")
	v.SetDefault("alphavantage.function", "TIME_SERIES_DAILY")
	v.SetDefault("alphavantage.api_key", "")
	v.SetDefault("alphavantage.output_size", "full")
	v.SetDefault("backtest.short_window", engine.DefaultShortWindow)
	v.SetDefault("backtest.long_window", engine.DefaultLongWindow)
	v.SetDefault("backtest.initial_investment", engine.DefaultInitialInvestment)
	v.SetDefault("backtest.history_days", 730)
	v.SetDefault("backtest.workers", 4)
	v.SetDefault("backtest.risk_free_rate", 0.0)
	v.SetDefault("archive.dynamodb_table", "")
	v.SetDefault("archive.region", "us-east-1")
}

// Load reads defaults, then the config file, then BACKTESTER_* environment variables.
// With an empty path backtester.yaml is looked up in the working directory and
// $HOME/.backtester and may be absent.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("backtester")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.backtester")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings the engine does not validate itself.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case repository.DriverPostgres, repository.DriverSQLite:
	default:
		return fmt.Errorf("%w: database.driver %q", ErrInvalidConfig, c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("%w: database.dsn is empty", ErrInvalidConfig)
	}
	if c.Backtest.Workers <= 0 {
		return fmt.Errorf("%w: backtest.workers must be positive", ErrInvalidConfig)
	}
	if c.Backtest.HistoryDays < 0 {
		return fmt.Errorf("%w: backtest.history_days is negative", ErrInvalidConfig)
	}
	return nil
}

func (c Config) EngineConfig() engine.Config {
	return engine.NewConfig(c.Backtest.ShortWindow, c.Backtest.LongWindow, c.Backtest.InitialInvestment)
}

func (c Config) ReportingConfig(csvDir string) engine.ReportingConfig {
	return engine.NewReportingConfig(c.Backtest.RiskFreeRate, csvDir)
}
