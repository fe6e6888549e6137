package config

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Validate ensures required fields are present and the per-calculator blocks
// would produce valid calculator configs.
func Validate(cfg AppConfig) error {
	if cfg.Env == "" {
		return errors.New("env is required")
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		return errors.New("metrics.addr is required when metrics are enabled")
	}
	if cfg.Concentration.WindowMs <= 0 {
		return errors.New("concentration.windowMs must be > 0")
	}
	if err := validateQueueImbalance(cfg.QueueImbalance); err != nil {
		return err
	}
	return validateMarkout(cfg.Markout)
}

func validateQueueImbalance(qi QueueImbalanceConfig) error {
	if qi.KLevels <= 0 {
		return errors.New("queueImbalance.kLevels must be > 0")
	}
	tick, err := decimal.NewFromString(qi.TickSize)
	if err != nil {
		return fmt.Errorf("queueImbalance.tickSize: %w", err)
	}
	if tick.Sign() <= 0 {
		return errors.New("queueImbalance.tickSize must be > 0")
	}
	halfLife, err := decimal.NewFromString(qi.HalfLifeTicks)
	if err != nil {
		return fmt.Errorf("queueImbalance.halfLifeTicks: %w", err)
	}
	if halfLife.Sign() <= 0 {
		return errors.New("queueImbalance.halfLifeTicks must be > 0")
	}
	if qi.WindowMs <= 0 {
		return errors.New("queueImbalance.windowMs must be > 0")
	}
	return nil
}

func validateMarkout(mo MarkoutConfig) error {
	switch mo.Horizon {
	case "clock":
		if mo.TauMs <= 0 {
			return errors.New("markout.tauMs must be > 0 for clock horizon")
		}
	case "event":
		if mo.KTrades <= 0 {
			return errors.New("markout.kTrades must be > 0 for event horizon")
		}
	default:
		return fmt.Errorf("markout.horizon must be clock or event, got %q", mo.Horizon)
	}
	if mo.WindowMs <= 0 {
		return errors.New("markout.windowMs must be > 0")
	}
	return nil
}
