package config

import (
	"time"

	"github.com/shopspring/decimal"
)

type PostgresConfig struct {
	DSN             string        `env:"PG_DSN"`
	MaxOpenConns    int           `env:"PG_MAX_OPEN_CONNS" envDefault:"20"`
	MaxIdleConns    int           `env:"PG_MAX_IDLE_CONNS" envDefault:"10"`
	ConnMaxIdleTime time.Duration `env:"PG_CONN_MAX_IDLE_TIME" envDefault:"1m"`
	ConnMaxLifetime time.Duration `env:"PG_CONN_MAX_LIFETIME" envDefault:"30m"`
}

// RedisConfig configures the property read cache. An empty Addr disables it.
type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR,optional"`
	Password string        `env:"REDIS_PASSWORD,optional"`
	DB       int           `env:"REDIS_DB" envDefault:"0"`
	TTL      time.Duration `env:"PROPERTY_CACHE_TTL" envDefault:"30s"`
}

type AuthConfig struct {
	JWTSecret string `env:"AUTH_JWT_SECRET"`
	Issuer    string `env:"AUTH_JWT_ISSUER,optional"`
}

type PurchaseConfig struct {
	MaxAttempts int             `env:"PURCHASE_MAX_ATTEMPTS" envDefault:"5"`
	BaseBackoff time.Duration   `env:"PURCHASE_BASE_BACKOFF" envDefault:"10ms"`
	MaxBackoff  time.Duration   `env:"PURCHASE_MAX_BACKOFF" envDefault:"500ms"`
	GrowthRate  decimal.Decimal `env:"PURCHASE_GROWTH_RATE" envDefault:"1.15"`
}
