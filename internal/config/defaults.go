package config

import "time"

// Default constants for application configuration
const (
	DefaultLogLevel   = "info"
	DefaultJSONLog    = false
	DefaultEnvFile    = ".env"
	DefaultLoginURL   = "https://onyxcoffeelab.com/account/login"
	DefaultCatalogURL = "https://onyxcoffeelab.com/collections/coffee"
	DefaultUserAgent  = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

	DefaultNavigationTimeout = 30 * time.Second
	DefaultSettleIdle        = 500 * time.Millisecond
	DefaultSettleTimeout     = 30 * time.Second
	DefaultSelectorTimeout   = 10 * time.Second
	DefaultActionTimeout     = 5 * time.Second
	DefaultKeystrokeDelay    = 50 * time.Millisecond
	DefaultScrapeTimeout     = 3 * time.Minute
	DefaultRetryAttempts     = 2

	DefaultRateLimitRPS   = 0.5
	DefaultRateLimitBurst = 2
	DefaultHeadless       = true

	DefaultCacheTTL   = time.Hour
	DefaultMarkupRate = 0.05
	DefaultServeStale = true

	DefaultPort                = "5000"
	DefaultCORSOrigin          = "*"
	DefaultPaymentInstructions = "Send payment via Venmo and include your order number in the note."

	MaxMarkupRate    = 10.0
	MaxRetryAttempts = 10
)
