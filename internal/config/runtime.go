package config

import (
	"errors"
	"time"
)

// Runtime defaults applied when the document omits a key.
const (
	DefaultParallelWorkers = 8
	DefaultRetries         = 2
	DefaultRetryBackoffSec = 1.5
	DefaultTimeoutSec      = 90
	DefaultTemperature     = 0.2
	DefaultMaxTokens       = 1200
)

// RuntimeConfig holds the per-run call policy shared by every role.
type RuntimeConfig struct {
	ParallelWorkers   int     `mapstructure:"parallel_workers"`    // max in-flight calls per stage
	Retries           int     `mapstructure:"retries"`             // extra attempts after the first
	RetryBackoffSec   float64 `mapstructure:"retry_backoff_sec"`   // delay before attempt k is backoff*k
	TimeoutSec        float64 `mapstructure:"timeout_sec"`         // per-call deadline
	Temperature       float64 `mapstructure:"temperature"`
	MaxTokens         int     `mapstructure:"max_tokens"`
	AllowMockFallback bool    `mapstructure:"allow_mock_fallback"` // placeholder instead of [ERROR] after final failure
	CAFile            string  `mapstructure:"ca_file"`             // optional PEM bundle for outbound TLS
}

// DefaultRuntime returns the runtime policy used when nothing is configured.
func DefaultRuntime() RuntimeConfig {
	return RuntimeConfig{
		ParallelWorkers: DefaultParallelWorkers,
		Retries:         DefaultRetries,
		RetryBackoffSec: DefaultRetryBackoffSec,
		TimeoutSec:      DefaultTimeoutSec,
		Temperature:     DefaultTemperature,
		MaxTokens:       DefaultMaxTokens,
	}
}

// Validate rejects values that cannot describe a call policy.
func (r RuntimeConfig) Validate() error {
	if r.Retries < 0 {
		return errors.New("runtime.retries must be >= 0")
	}
	if r.RetryBackoffSec < 0 {
		return errors.New("runtime.retry_backoff_sec must be >= 0")
	}
	if r.TimeoutSec < 0 {
		return errors.New("runtime.timeout_sec must be >= 0")
	}
	if r.Temperature < 0 || r.Temperature > 2 {
		return errors.New("runtime.temperature must be within [0,2]")
	}
	if r.MaxTokens < 0 {
		return errors.New("runtime.max_tokens cannot be negative")
	}
	return nil
}

// Workers returns the stage concurrency cap, at least 1.
func (r RuntimeConfig) Workers() int {
	if r.ParallelWorkers < 1 {
		return 1
	}
	return r.ParallelWorkers
}

// Timeout returns the per-call deadline; zero means none.
func (r RuntimeConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSec * float64(time.Second))
}

// Backoff returns the delay before retry attempt k (k starts at 1).
func (r RuntimeConfig) Backoff(attempt int) time.Duration {
	return time.Duration(r.RetryBackoffSec * float64(attempt) * float64(time.Second))
}
