/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package httpserver

import (
	"fmt"
	"time"

	"github.com/acronis/go-rawhttp/config"
	"github.com/acronis/go-rawhttp/internal/ratelimit"
)

const cfgDefaultKeyPrefix = "server"

const (
	cfgKeyServerAddress                = "address"
	cfgKeyServerWorkers                = "workers"
	cfgKeyServerLimitsMaxBodySize      = "limits.maxBodySize"
	cfgKeyServerTimeoutsShutdown       = "timeouts.shutdown"
	cfgKeyServerRateLimitEnabled       = "rateLimit.enabled"
	cfgKeyServerRateLimitAlgorithm     = "rateLimit.algorithm"
	cfgKeyServerRateLimitWindow        = "rateLimit.window"
	cfgKeyServerRateLimitMaxRequests   = "rateLimit.maxRequests"
	cfgKeyServerRateLimitMaxBurst      = "rateLimit.maxBurst"
	cfgKeyServerRateLimitMaxKeys       = "rateLimit.maxKeys"
	cfgKeyServerRateLimitSweepInterval = "rateLimit.sweepInterval"
)

const (
	defaultServerAddress              = ":8080"
	defaultServerWorkers              = 4
	defaultServerLimitsMaxBodySize    = 10 * 1024 * 1024
	defaultServerTimeoutsShutdown     = time.Second * 5
	defaultServerRateLimitWindow      = time.Minute
	defaultServerRateLimitMaxRequests = 100
)

// Config represents a set of configuration parameters for HTTPServer.
type Config struct {
	Address   string          `mapstructure:"address" yaml:"address" json:"address"`
	Workers   int             `mapstructure:"workers" yaml:"workers" json:"workers"`
	Limits    LimitsConfig    `mapstructure:"limits" yaml:"limits" json:"limits"`
	Timeouts  TimeoutsConfig  `mapstructure:"timeouts" yaml:"timeouts" json:"timeouts"`
	RateLimit RateLimitConfig `mapstructure:"rateLimit" yaml:"rateLimit" json:"rateLimit"`
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// NewConfig creates a new instance of the Config.
func NewConfig() *Config {
	return &Config{}
}

// NewDefaultConfig creates a new instance of the Config with default values.
func NewDefaultConfig() *Config {
	return &Config{
		Address: defaultServerAddress,
		Workers: defaultServerWorkers,
		Limits: LimitsConfig{
			MaxBodySize: defaultServerLimitsMaxBodySize,
		},
		Timeouts: TimeoutsConfig{
			Shutdown: config.TimeDuration(defaultServerTimeoutsShutdown),
		},
		RateLimit: RateLimitConfig{
			Enabled:     true,
			Algorithm:   ratelimit.AlgorithmSlidingLog,
			Window:      config.TimeDuration(defaultServerRateLimitWindow),
			MaxRequests: defaultServerRateLimitMaxRequests,
		},
	}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
func (c *Config) KeyPrefix() string {
	return cfgDefaultKeyPrefix
}

// SetProviderDefaults sets default configuration values for HTTPServer in config.DataProvider.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyServerAddress, defaultServerAddress)
	dp.SetDefault(cfgKeyServerWorkers, defaultServerWorkers)
	dp.SetDefault(cfgKeyServerLimitsMaxBodySize, config.ByteSize(defaultServerLimitsMaxBodySize).String())
	dp.SetDefault(cfgKeyServerTimeoutsShutdown, defaultServerTimeoutsShutdown)
	dp.SetDefault(cfgKeyServerRateLimitEnabled, true)
	dp.SetDefault(cfgKeyServerRateLimitAlgorithm, string(ratelimit.AlgorithmSlidingLog))
	dp.SetDefault(cfgKeyServerRateLimitWindow, defaultServerRateLimitWindow)
	dp.SetDefault(cfgKeyServerRateLimitMaxRequests, defaultServerRateLimitMaxRequests)
}

// LimitsConfig represents a set of configuration parameters for HTTPServer relating to limits.
type LimitsConfig struct {
	// MaxBodySize is the maximum size of the request body.
	MaxBodySize config.ByteSize `mapstructure:"maxBodySize" yaml:"maxBodySize" json:"maxBodySize"`
}

// Set sets limit server configuration values from config.DataProvider.
func (l *LimitsConfig) Set(dp config.DataProvider) error {
	var err error
	if l.MaxBodySize, err = dp.GetByteSize(cfgKeyServerLimitsMaxBodySize); err != nil {
		return err
	}
	if uint64(l.MaxBodySize) > uint64(int(^uint(0)>>1))-8192 {
		return dp.WrapKeyErr(cfgKeyServerLimitsMaxBodySize, fmt.Errorf("value %s is too big", l.MaxBodySize))
	}
	return nil
}

// TimeoutsConfig represents a set of configuration parameters for HTTPServer relating to timeouts.
type TimeoutsConfig struct {
	Shutdown config.TimeDuration `mapstructure:"shutdown" yaml:"shutdown" json:"shutdown"`
}

// Set sets timeout server configuration values from config.DataProvider.
func (t *TimeoutsConfig) Set(dp config.DataProvider) error {
	dur, err := dp.GetDuration(cfgKeyServerTimeoutsShutdown)
	if err != nil {
		return err
	}
	if dur < 0 {
		return dp.WrapKeyErr(cfgKeyServerTimeoutsShutdown, fmt.Errorf("cannot be negative"))
	}
	t.Shutdown = config.TimeDuration(dur)
	return nil
}

// RateLimitConfig represents a set of configuration parameters for per-client rate limiting.
type RateLimitConfig struct {
	Enabled     bool                `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Algorithm   ratelimit.Algorithm `mapstructure:"algorithm" yaml:"algorithm" json:"algorithm"`
	Window      config.TimeDuration `mapstructure:"window" yaml:"window" json:"window"`
	MaxRequests int                 `mapstructure:"maxRequests" yaml:"maxRequests" json:"maxRequests"`
	// MaxBurst is used by leaky_bucket and token_bucket algorithms only.
	MaxBurst int `mapstructure:"maxBurst" yaml:"maxBurst" json:"maxBurst"`
	// MaxKeys bounds the number of tracked clients (LRU eviction). Zero means no bound.
	MaxKeys int `mapstructure:"maxKeys" yaml:"maxKeys" json:"maxKeys"`
	// SweepInterval is the period of forgetting idle clients by the sliding_log algorithm. Zero disables sweeping.
	SweepInterval config.TimeDuration `mapstructure:"sweepInterval" yaml:"sweepInterval" json:"sweepInterval"`
}

// Set sets rate limiting configuration values from config.DataProvider.
func (r *RateLimitConfig) Set(dp config.DataProvider) error {
	var err error
	if r.Enabled, err = dp.GetBool(cfgKeyServerRateLimitEnabled); err != nil {
		return err
	}

	var alg string
	if alg, err = dp.GetStringFromSet(cfgKeyServerRateLimitAlgorithm, ratelimit.Algorithms, true); err != nil {
		return err
	}
	r.Algorithm = ratelimit.Algorithm(alg)

	var dur time.Duration
	if dur, err = dp.GetDuration(cfgKeyServerRateLimitWindow); err != nil {
		return err
	}
	r.Window = config.TimeDuration(dur)

	if r.MaxRequests, err = dp.GetInt(cfgKeyServerRateLimitMaxRequests); err != nil {
		return err
	}
	if r.MaxBurst, err = dp.GetInt(cfgKeyServerRateLimitMaxBurst); err != nil {
		return err
	}
	if r.MaxBurst < 0 {
		return dp.WrapKeyErr(cfgKeyServerRateLimitMaxBurst, fmt.Errorf("cannot be negative"))
	}
	if r.MaxKeys, err = dp.GetInt(cfgKeyServerRateLimitMaxKeys); err != nil {
		return err
	}
	if r.MaxKeys < 0 {
		return dp.WrapKeyErr(cfgKeyServerRateLimitMaxKeys, fmt.Errorf("cannot be negative"))
	}
	if dur, err = dp.GetDuration(cfgKeyServerRateLimitSweepInterval); err != nil {
		return err
	}
	if dur < 0 {
		return dp.WrapKeyErr(cfgKeyServerRateLimitSweepInterval, fmt.Errorf("cannot be negative"))
	}
	r.SweepInterval = config.TimeDuration(dur)

	if !r.Enabled {
		return nil
	}
	if r.Window <= 0 {
		return dp.WrapKeyErr(cfgKeyServerRateLimitWindow, fmt.Errorf("must be positive"))
	}
	if r.MaxRequests <= 0 {
		return dp.WrapKeyErr(cfgKeyServerRateLimitMaxRequests, fmt.Errorf("must be positive"))
	}
	return nil
}

// LimiterParams returns parameters for building a limiter with ratelimit.New.
func (r *RateLimitConfig) LimiterParams() ratelimit.Params {
	return ratelimit.Params{
		Algorithm: r.Algorithm,
		Rate:      ratelimit.Rate{Count: r.MaxRequests, Duration: time.Duration(r.Window)},
		MaxBurst:  r.MaxBurst,
		MaxKeys:   r.MaxKeys,
	}
}

// Set sets HTTPServer configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) error {
	var err error

	if c.Address, err = dp.GetString(cfgKeyServerAddress); err != nil {
		return err
	}
	if c.Address == "" {
		return dp.WrapKeyErr(cfgKeyServerAddress, fmt.Errorf("cannot be empty"))
	}

	// Zero or negative number of workers is checked when the pool is created and is fatal for the process.
	if c.Workers, err = dp.GetInt(cfgKeyServerWorkers); err != nil {
		return err
	}

	if err = c.Limits.Set(dp); err != nil {
		return err
	}
	if err = c.Timeouts.Set(dp); err != nil {
		return err
	}
	return c.RateLimit.Set(dp)
}
