package config

import (
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	urlutil "github.com/law-makers/catalog/internal/utils/url"
)

func validate(c *Config) error {
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	if err := urlutil.ValidateURL(c.CatalogURL); err != nil {
		return fmt.Errorf("catalog url: %w", err)
	}
	if c.LoginURL != "" {
		if err := urlutil.ValidateURL(c.LoginURL); err != nil {
			return fmt.Errorf("login url: %w", err)
		}
	}
	if c.NavigationTimeout <= 0 {
		return fmt.Errorf("navigation timeout must be > 0")
	}
	if c.ScrapeTimeout <= 0 {
		return fmt.Errorf("scrape timeout must be > 0")
	}
	if c.ScrapeTimeout < c.NavigationTimeout {
		return fmt.Errorf("scrape timeout (%s) must not be shorter than the navigation timeout (%s)", c.ScrapeTimeout, c.NavigationTimeout)
	}
	if c.KeystrokeDelay < 0 || c.SettleIdle < 0 || c.SettleTimeout < 0 || c.SelectorTimeout < 0 {
		return fmt.Errorf("timings must not be negative")
	}
	if c.RetryAttempts < 1 || c.RetryAttempts > MaxRetryAttempts {
		return fmt.Errorf("retries must be between 1 and %d", MaxRetryAttempts)
	}
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("rate limit must be >= 0")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache ttl must be > 0")
	}
	if c.RefreshInterval < 0 {
		return fmt.Errorf("refresh interval must be >= 0")
	}
	if c.MarkupRate < 0 || c.MarkupRate > MaxMarkupRate {
		return fmt.Errorf("markup rate must be between 0 and %g", MaxMarkupRate)
	}
	port, err := strconv.Atoi(c.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid port %q", c.Port)
	}
	return nil
}
