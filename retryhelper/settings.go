// Package retryhelper holds what the nethttp and listener retry helpers share:
// retry settings, client ownership, the non-2xx ResponseError, the two-tier retry
// classification, the retry warning policy and call tracking.
package retryhelper

import (
	"fmt"
	"time"

	"github.com/gaborage/go-restclient/config"
	"github.com/gaborage/go-restclient/retry"
)

// Settings is the retry policy of a helper. It is fixed at construction.
type Settings struct {
	MaxRetries       int
	InitialRetryWait time.Duration
	MaxRetryWait     time.Duration
	// Randomization spreads each wait by this factor; zero keeps the schedule exact.
	Randomization float64
}

// DefaultSettings mirrors the defaults of the retry section of the configuration.
func DefaultSettings() Settings {
	return Settings{
		MaxRetries:       7,
		InitialRetryWait: time.Second,
		MaxRetryWait:     60 * time.Second,
	}
}

// SettingsFromConfig converts the retry section of the configuration.
func SettingsFromConfig(cfg config.RetryConfig) Settings {
	return Settings{
		MaxRetries:       cfg.MaxRetries,
		InitialRetryWait: cfg.InitialWait,
		MaxRetryWait:     cfg.MaxWait,
		Randomization:    cfg.Randomization,
	}
}

// Validate rejects settings the executor could not honour as written.
func (s Settings) Validate() error {
	switch {
	case s.MaxRetries < 0:
		return fmt.Errorf("retryhelper: max retries must be at least 0 (got %d)", s.MaxRetries)
	case s.InitialRetryWait <= 0:
		return fmt.Errorf("retryhelper: initial retry wait must be positive (got %s)", s.InitialRetryWait)
	case s.MaxRetryWait < s.InitialRetryWait:
		return fmt.Errorf("retryhelper: max retry wait %s is smaller than initial retry wait %s",
			s.MaxRetryWait, s.InitialRetryWait)
	case s.Randomization < 0 || s.Randomization >= 1:
		return fmt.Errorf("retryhelper: randomization must be in [0, 1) (got %g)", s.Randomization)
	}
	return nil
}

func (s Settings) executor(o *options) *retry.Executor {
	b := retry.New().
		WithRetryLimit(s.MaxRetries).
		WithInitialRetryWait(s.InitialRetryWait).
		WithMaxRetryWait(s.MaxRetryWait).
		WithRandomizationFactor(s.Randomization).
		WithRateLimiter(o.limiter)
	if o.sleep != nil {
		b.WithSleep(o.sleep)
	}
	return b.Build()
}

// Ownership says whether a helper may shut its client down.
type Ownership int

const (
	// Owned clients were created by the helper and are shut down by Close.
	Owned Ownership = iota
	// Borrowed clients belong to the caller; Close leaves them alone.
	Borrowed
)

func (o Ownership) String() string {
	switch o {
	case Owned:
		return "owned"
	case Borrowed:
		return "borrowed"
	default:
		return fmt.Sprintf("Ownership(%d)", int(o))
	}
}
