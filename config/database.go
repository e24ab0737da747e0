package config

import (
	"strings"
	"time"
)

// DBConfig contains PostgreSQL database configuration.
type DBConfig struct {
	Host     string `env:"HOST"                    envDefault:"localhost"`
	Port     int    `env:"PORT"                    envDefault:"5432"`
	User     string `env:"USER"                    envDefault:"enrichment"`
	Password string `env:"PASSWORD"                envDefault:"enrichment"`
	Name     string `env:"NAME"                    envDefault:"enrichment"`
	SSLMode  string `env:"SSL_MODE"                envDefault:"disable"` // Use 'disable' for local dev, 'require' for production
	// RunMigrationsOnStart controls whether the application automatically applies migrations during startup.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`

	MaxOpenConns    int           `env:"MAX_OPEN_CONNS"    envDefault:"25"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS"    envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"5m"`
}

// RedisConfig contains Redis configuration.
type RedisConfig struct {
	// Enabled turns on the Redis read-through layer for the intent cache.
	// Postgres stays the source of truth either way.
	Enabled bool `env:"ENABLED" envDefault:"false"`
	// URL is a redis:// or rediss:// URL. It takes precedence over Addrs.
	URL   string   `env:"URL"`
	Addrs []string `env:"ADDRS" envDefault:"localhost:6379"`
	// MasterName selects sentinel failover. Addrs are then sentinel addresses.
	MasterName string `env:"MASTER_NAME"`
	// Cluster selects a cluster client over Addrs.
	Cluster          bool          `env:"CLUSTER"           envDefault:"false"`
	Username         string        `env:"USERNAME"`
	Password         string        `env:"PASSWORD"`
	SentinelPassword string        `env:"SENTINEL_PASSWORD"`
	DB               int           `env:"DB"                envDefault:"0"`
	DialTimeout      time.Duration `env:"DIAL_TIMEOUT"      envDefault:"5s"`
}

// Sanitize drops blank addresses and clamps DB and DialTimeout.
func (r *RedisConfig) Sanitize() {
	addrs := r.Addrs[:0]
	for _, a := range r.Addrs {
		if a = strings.TrimSpace(a); a != "" {
			addrs = append(addrs, a)
		}
	}
	r.Addrs = addrs
	r.URL = strings.TrimSpace(r.URL)
	if r.DB < 0 {
		r.DB = 0
	}
	if r.DialTimeout <= 0 {
		r.DialTimeout = 5 * time.Second
	}
}

// CacheConfig controls the Redis layer in front of the intent cache table.
type CacheConfig struct {
	// IntentTTL is how long a cached intent entry stays in Redis.
	IntentTTL time.Duration `env:"INTENT_TTL" envDefault:"24h"`

	// KeyPrefix namespaces intent cache keys in a shared Redis.
	KeyPrefix string `env:"KEY_PREFIX" envDefault:"enrichment:intent:"`

	// OpTimeout bounds each Redis call so a slow Redis falls back to Postgres.
	OpTimeout time.Duration `env:"OP_TIMEOUT" envDefault:"250ms"`
}

// Sanitize applies guardrails to cache configuration values.
func (c *CacheConfig) Sanitize() {
	if c.IntentTTL < time.Minute {
		c.IntentTTL = time.Minute
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "enrichment:intent:"
	}
	c.OpTimeout = min(max(c.OpTimeout, 10*time.Millisecond), 5*time.Second)
}
