package config

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"microstat-go/concentration"
	"microstat-go/imbalance"
	"microstat-go/infrastructure/logger"
	"microstat-go/markout"
)

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Env            string               `yaml:"env"`
	Logger         logger.Config        `yaml:"logger"`
	Metrics        MetricsConfig        `yaml:"metrics"`
	Concentration  ConcentrationConfig  `yaml:"concentration"`
	QueueImbalance QueueImbalanceConfig `yaml:"queueImbalance"`
	Markout        MarkoutConfig        `yaml:"markout"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type ConcentrationConfig struct {
	WindowMs int64 `yaml:"windowMs"`
}

// QueueImbalanceConfig keeps tick size and half-life as strings so exact
// decimal values survive the YAML round trip.
type QueueImbalanceConfig struct {
	KLevels       int    `yaml:"kLevels"`
	TickSize      string `yaml:"tickSize"`
	HalfLifeTicks string `yaml:"halfLifeTicks"`
	WindowMs      int64  `yaml:"windowMs"`
}

type MarkoutConfig struct {
	Horizon  string `yaml:"horizon"` // clock or event
	TauMs    int64  `yaml:"tauMs"`
	KTrades  int64  `yaml:"kTrades"`
	WindowMs int64  `yaml:"windowMs"`
}

// Calculator converts to the concentration package config.
func (c ConcentrationConfig) Calculator() concentration.Config {
	return concentration.Config{WindowMs: c.WindowMs}
}

// Calculator converts to the imbalance package config, parsing the decimal
// string fields.
func (c QueueImbalanceConfig) Calculator() (imbalance.Config, error) {
	tick, err := decimal.NewFromString(c.TickSize)
	if err != nil {
		return imbalance.Config{}, fmt.Errorf("queueImbalance.tickSize: %w", err)
	}
	halfLife, err := decimal.NewFromString(c.HalfLifeTicks)
	if err != nil {
		return imbalance.Config{}, fmt.Errorf("queueImbalance.halfLifeTicks: %w", err)
	}
	return imbalance.Config{
		KLevels:       c.KLevels,
		TickSize:      tick,
		HalfLifeTicks: halfLife,
		WindowMs:      c.WindowMs,
	}, nil
}

// Calculator converts to the markout package config.
func (c MarkoutConfig) Calculator() markout.Config {
	return markout.Config{
		Horizon:  markout.HorizonType(c.Horizon),
		TauMs:    c.TauMs,
		KTrades:  c.KTrades,
		WindowMs: c.WindowMs,
	}
}

// Load reads YAML config from path and applies basic validation.
func Load(path string) (AppConfig, error) {
	var cfg AppConfig
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	cfg.Logger = logger.DefaultConfig()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides selected fields from env
// vars if present.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv("MS_LOG_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("MS_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	return cfg, Validate(cfg)
}
