package identsync

import (
	"errors"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config carries every tunable knob of the engine. Zero values are replaced
// with the documented defaults by New.
type Config struct {
	// CacheTTL bounds how long a cached flag value stays valid.
	CacheTTL time.Duration `env:"IDENTSYNC_CACHE_TTL" envDefault:"5m"`

	// DebounceInterval is the quiet period before a coalesced group write.
	DebounceInterval time.Duration `env:"IDENTSYNC_DEBOUNCE_INTERVAL" envDefault:"300ms"`

	// SettleDelay is the pause between reset and re-identify on an
	// identity switch.
	SettleDelay time.Duration `env:"IDENTSYNC_SETTLE_DELAY" envDefault:"200ms"`

	// RequestTimeout is enforced on every remote provider call.
	RequestTimeout time.Duration `env:"IDENTSYNC_REQUEST_TIMEOUT" envDefault:"10s"`

	// MaxRetries caps flag refresh retries after the initial attempt.
	MaxRetries int `env:"IDENTSYNC_MAX_RETRIES" envDefault:"2"`

	// RetryInitialInterval is the first flag refresh backoff delay.
	RetryInitialInterval time.Duration `env:"IDENTSYNC_RETRY_INITIAL_INTERVAL" envDefault:"2s"`

	// RetryMaxInterval caps the flag refresh backoff delay.
	RetryMaxInterval time.Duration `env:"IDENTSYNC_RETRY_MAX_INTERVAL" envDefault:"10s"`

	// Namespace prefixes every persisted key, enabling bulk invalidation.
	Namespace string `env:"IDENTSYNC_NAMESPACE" envDefault:"identsync"`
}

// ErrParsingConfig wraps environment parsing failures.
var ErrParsingConfig = errors.New("failed to parse engine configuration")

var defaultEnvLoaded sync.Once

// DefaultConfig returns the engine defaults without touching the environment.
func DefaultConfig() Config {
	return Config{
		CacheTTL:             5 * time.Minute,
		DebounceInterval:     300 * time.Millisecond,
		SettleDelay:          200 * time.Millisecond,
		RequestTimeout:       10 * time.Second,
		MaxRetries:           2,
		RetryInitialInterval: 2 * time.Second,
		RetryMaxInterval:     10 * time.Second,
		Namespace:            "identsync",
	}
}

// LoadConfig reads the configuration from environment variables, loading a
// .env file first when one exists.
func LoadConfig() (Config, error) {
	defaultEnvLoaded.Do(func() {
		// The .env file is optional; missing is fine.
		_ = godotenv.Load()
	})

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Join(ErrParsingConfig, err)
	}
	return cfg, nil
}
