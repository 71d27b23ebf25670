package core

import (
	"fmt"
	"strings"
	"time"
)

type ProcessManagerConfig struct {
	BatchSize        int `koanf:"batch_size" mapstructure:"batch_size"`
	Workers          int `koanf:"workers" mapstructure:"workers"`
	PollIntervalMS   int `koanf:"poll_interval_ms" mapstructure:"poll_interval_ms"`
	LeaseSeconds     int `koanf:"lease_seconds" mapstructure:"lease_seconds"`
	// MaxRetries 0 selects the default; a negative value disables retries.
	MaxRetries       int `koanf:"max_retries" mapstructure:"max_retries"`
	InitialBackoffMS int `koanf:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMS     int `koanf:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

func (c ProcessManagerConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

func (c ProcessManagerConfig) LeaseDuration() time.Duration {
	return time.Duration(c.LeaseSeconds) * time.Second
}

func (c ProcessManagerConfig) InitialBackoff() time.Duration {
	return time.Duration(c.InitialBackoffMS) * time.Millisecond
}

func (c ProcessManagerConfig) MaxBackoff() time.Duration {
	return time.Duration(c.MaxBackoffMS) * time.Millisecond
}

type WatchdogConfig struct {
	// PeriodSeconds <= 0 disables the watchdog.
	PeriodSeconds int `koanf:"period_seconds" mapstructure:"period_seconds"`
	// DelaySeconds <= 0 selects a random delay of 1..5 seconds.
	DelaySeconds int `koanf:"delay_seconds" mapstructure:"delay_seconds"`
}

type RevocationConfig struct {
	MaxConflictRetries int `koanf:"max_conflict_retries" mapstructure:"max_conflict_retries"`
}

type Config struct {
	ServiceName    string               `koanf:"service_name" mapstructure:"service_name"`
	IssuerDID      string               `koanf:"issuer_did" mapstructure:"issuer_did"`
	ProcessManager ProcessManagerConfig `koanf:"process_manager" mapstructure:"process_manager"`
	Watchdog       WatchdogConfig       `koanf:"watchdog" mapstructure:"watchdog"`
	Revocation     RevocationConfig     `koanf:"revocation" mapstructure:"revocation"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "issuer",
		ProcessManager: ProcessManagerConfig{
			BatchSize:        10,
			Workers:          4,
			PollIntervalMS:   1000,
			LeaseSeconds:     60,
			MaxRetries:       5,
			InitialBackoffMS: 500,
			MaxBackoffMS:     30000,
		},
		Watchdog: WatchdogConfig{
			PeriodSeconds: 60,
		},
		Revocation: RevocationConfig{
			MaxConflictRetries: 5,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	pm := c.ProcessManager
	if pm.BatchSize <= 0 {
		return fmt.Errorf("core: process_manager.batch_size must be positive")
	}
	if pm.Workers <= 0 {
		return fmt.Errorf("core: process_manager.workers must be positive")
	}
	if pm.LeaseSeconds <= 0 {
		return fmt.Errorf("core: process_manager.lease_seconds must be positive")
	}
	if pm.InitialBackoffMS < 0 || pm.MaxBackoffMS < 0 {
		return fmt.Errorf("core: process_manager backoff must not be negative")
	}
	if c.Revocation.MaxConflictRetries < 0 {
		return fmt.Errorf("core: revocation.max_conflict_retries must not be negative")
	}
	return nil
}
