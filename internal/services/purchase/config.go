package purchase

import (
	"errors"
	"fmt"
	"time"

	"github.com/fastprodman/propledger/internal/config"
	"github.com/fastprodman/propledger/pkg/backoff"
	"github.com/shopspring/decimal"
)

// Config tunes the coordinator.
type Config struct {
	MaxAttempts int
	Backoff     backoff.Policy
	GrowthRate  decimal.Decimal
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts: 5,
		Backoff:     backoff.Policy{Base: 10 * time.Millisecond, Max: 500 * time.Millisecond},
		GrowthRate:  DefaultGrowthRate,
	}
}

// ConfigFrom converts the env-loaded settings.
func ConfigFrom(c config.PurchaseConfig) Config {
	return Config{
		MaxAttempts: c.MaxAttempts,
		Backoff:     backoff.Policy{Base: c.BaseBackoff, Max: c.MaxBackoff},
		GrowthRate:  c.GrowthRate,
	}
}

func (c Config) validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be >= 1, got %d", c.MaxAttempts)
	}

	if !c.GrowthRate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("growth rate must be > 1, got %s", c.GrowthRate)
	}

	if c.Backoff.Base < 0 || c.Backoff.Max < 0 {
		return errors.New("backoff durations must not be negative")
	}

	return nil
}
