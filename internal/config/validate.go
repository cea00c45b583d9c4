package config

import (
	"errors"
	"fmt"
)

// EvictionPolicies lists the accepted cache.eviction_policy values.
var EvictionPolicies = []string{"lru", "ttl", "lru+ttl", "none"}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateQueue() error {
	if err := ensurePositiveMap(map[string]int{
		"queue.max_concurrent":       c.Queue.MaxConcurrent,
		"queue.max_size":             c.Queue.MaxSize,
		"queue.wait_timeout_seconds": c.Queue.WaitTimeoutSeconds,
	}); err != nil {
		return err
	}
	if c.Queue.LaunchRatePerSecond < 0 {
		return errors.New("queue.launch_rate_per_second must not be negative")
	}
	return nil
}

func (c *Config) validateCache() error {
	valid := false
	for _, policy := range EvictionPolicies {
		if c.Cache.EvictionPolicy == policy {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("cache.eviction_policy must be one of %v, got %q", EvictionPolicies, c.Cache.EvictionPolicy)
	}
	if c.Cache.MaxEntries < 0 || c.Cache.MaxSizeMB < 0 || c.Cache.TTLDays < 0 {
		return errors.New("cache budgets must not be negative; use 0 to disable a budget")
	}
	if c.Cache.EvictionIntervalHours <= 0 {
		return errors.New("cache.eviction_interval_hours must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
