package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/law-makers/catalog/internal/proxy"
	"github.com/law-makers/catalog/internal/utils/headers"
	"github.com/law-makers/catalog/pkg/models"
)

// Config holds application configuration values
type Config struct {
	// Logging
	LogLevel string
	JSONLog  bool

	// Vendor
	LoginURL   string
	CatalogURL string

	// Browser
	UserAgent   string
	ChromePath  string
	Headless    bool
	Proxies     []string
	Headers     map[string]string
	SessionName string

	// Timings
	NavigationTimeout time.Duration
	SettleIdle        time.Duration
	SettleTimeout     time.Duration
	SelectorTimeout   time.Duration
	ActionTimeout     time.Duration
	KeystrokeDelay    time.Duration
	ScrapeTimeout     time.Duration
	RetryAttempts     int

	// Rate limiting
	RateLimitRPS   float64
	RateLimitBurst int

	// Caching and pricing
	CacheTTL        time.Duration
	RefreshInterval time.Duration
	ServeStale      bool
	MarkupRate      float64

	// HTTP
	Port       string
	CORSOrigin string
	Warm       bool

	// Payment info
	VenmoUsername       string
	PaymentInstructions string

	credentials models.Credentials
}

// Credentials returns a copy of the vendor login, or nil when none is configured
func (c *Config) Credentials() *models.Credentials {
	if c.credentials.Identifier == "" && c.credentials.Secret == "" {
		return nil
	}
	creds := c.credentials
	return &creds
}

// ListenAddr is the address the HTTP server binds to
func (c *Config) ListenAddr() string {
	return ":" + c.Port
}

// PaymentInfo is the static record served to the storefront
func (c *Config) PaymentInfo() models.PaymentInfo {
	return models.PaymentInfo{
		Method:        "venmo",
		VenmoUsername: c.VenmoUsername,
		Instructions:  c.PaymentInstructions,
	}
}

// Default returns a Config populated with defaults only
func Default() *Config {
	return &Config{
		LogLevel:            DefaultLogLevel,
		JSONLog:             DefaultJSONLog,
		LoginURL:            DefaultLoginURL,
		CatalogURL:          DefaultCatalogURL,
		UserAgent:           DefaultUserAgent,
		Headless:            DefaultHeadless,
		Headers:             map[string]string{},
		NavigationTimeout:   DefaultNavigationTimeout,
		SettleIdle:          DefaultSettleIdle,
		SettleTimeout:       DefaultSettleTimeout,
		SelectorTimeout:     DefaultSelectorTimeout,
		ActionTimeout:       DefaultActionTimeout,
		KeystrokeDelay:      DefaultKeystrokeDelay,
		ScrapeTimeout:       DefaultScrapeTimeout,
		RetryAttempts:       DefaultRetryAttempts,
		RateLimitRPS:        DefaultRateLimitRPS,
		RateLimitBurst:      DefaultRateLimitBurst,
		CacheTTL:            DefaultCacheTTL,
		ServeStale:          DefaultServeStale,
		MarkupRate:          DefaultMarkupRate,
		Port:                DefaultPort,
		CORSOrigin:          DefaultCORSOrigin,
		PaymentInstructions: DefaultPaymentInstructions,
	}
}

// Load builds a Config by layering defaults, an optional .env file, the
// environment and CLI flags, later sources winning. The caller passes the
// executing *cobra.Command so flags can be read.
func Load(cmd *cobra.Command) (*Config, error) {
	cfg := Default()

	envFile := DefaultEnvFile
	if cmd != nil {
		if f := cmd.Flags().Lookup("env-file"); f != nil {
			envFile = f.Value.String()
		}
	}

	dotenv, err := readEnvFile(envFile)
	if err != nil {
		return nil, err
	}
	env := envSource{dotenv: dotenv}

	if err := cfg.applyEnv(env); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}
	if cmd != nil {
		if err := cfg.applyFlags(cmd); err != nil {
			return nil, fmt.Errorf("invalid flags: %w", err)
		}
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// readEnvFile parses a .env file without touching the process environment
func readEnvFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return values, nil
}

// envSource looks a key up in the environment first, then in the .env values
type envSource struct {
	dotenv map[string]string
}

func (e envSource) get(key string) (string, bool) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v, true
	}
	v, ok := e.dotenv[key]
	return v, ok && v != ""
}

func (c *Config) applyEnv(env envSource) error {
	strs := map[string]*string{
		"CATALOG_LOG_LEVEL":            &c.LogLevel,
		"CATALOG_LOGIN_URL":            &c.LoginURL,
		"CATALOG_CATALOG_URL":          &c.CatalogURL,
		"CATALOG_USER_AGENT":           &c.UserAgent,
		"CATALOG_CHROME_PATH":          &c.ChromePath,
		"CATALOG_SESSION":              &c.SessionName,
		"CATALOG_EMAIL":                &c.credentials.Identifier,
		"CATALOG_PASSWORD":             &c.credentials.Secret,
		"PORT":                         &c.Port,
		"CATALOG_CORS_ORIGIN":          &c.CORSOrigin,
		"VENMO_USERNAME":               &c.VenmoUsername,
		"CATALOG_PAYMENT_INSTRUCTIONS": &c.PaymentInstructions,
	}
	for key, dst := range strs {
		if v, ok := env.get(key); ok {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"CATALOG_CACHE_TTL":        &c.CacheTTL,
		"CATALOG_REFRESH_INTERVAL": &c.RefreshInterval,
		"CATALOG_NAV_TIMEOUT":      &c.NavigationTimeout,
		"CATALOG_SCRAPE_TIMEOUT":   &c.ScrapeTimeout,
		"CATALOG_SELECTOR_TIMEOUT": &c.SelectorTimeout,
		"CATALOG_KEYSTROKE_DELAY":  &c.KeystrokeDelay,
	}
	for key, dst := range durations {
		if v, ok := env.get(key); ok {
			d, err := parseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = d
		}
	}

	if v, ok := env.get("CATALOG_MARKUP_RATE"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("CATALOG_MARKUP_RATE: %w", err)
		}
		c.MarkupRate = f
	}
	if v, ok := env.get("CATALOG_RETRIES"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CATALOG_RETRIES: %w", err)
		}
		c.RetryAttempts = n
	}
	if v, ok := env.get("CATALOG_RATE_LIMIT"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("CATALOG_RATE_LIMIT: %w", err)
		}
		c.RateLimitRPS = f
	}
	if v, ok := env.get("CATALOG_HEADLESS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("CATALOG_HEADLESS: %w", err)
		}
		c.Headless = b
	}
	if v, ok := env.get("CATALOG_SERVE_STALE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("CATALOG_SERVE_STALE: %w", err)
		}
		c.ServeStale = b
	}
	if v, ok := env.get("CATALOG_PROXY"); ok {
		c.Proxies = proxy.ParseList(v)
	}
	if v, ok := env.get("CATALOG_HEADERS"); ok {
		h, err := headers.ParseHeaders(strings.Split(v, ";"))
		if err != nil {
			return fmt.Errorf("CATALOG_HEADERS: %w", err)
		}
		c.Headers = h
	}
	return nil
}

// applyFlags overrides values with flags the user actually set
func (c *Config) applyFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()
	changed := func(name string) bool {
		f := flags.Lookup(name)
		return f != nil && f.Changed
	}

	if changed("verbose") {
		if v, _ := flags.GetBool("verbose"); v {
			c.LogLevel = "debug"
		}
	}
	if changed("quiet") {
		if v, _ := flags.GetBool("quiet"); v {
			c.LogLevel = "error"
		}
	}
	if changed("json-log") {
		c.JSONLog, _ = flags.GetBool("json-log")
	}
	if changed("headless") {
		c.Headless, _ = flags.GetBool("headless")
	}
	if changed("warm") {
		c.Warm, _ = flags.GetBool("warm")
	}

	strs := map[string]*string{
		"login-url":   &c.LoginURL,
		"catalog-url": &c.CatalogURL,
		"user-agent":  &c.UserAgent,
		"chrome-path": &c.ChromePath,
		"session":     &c.SessionName,
		"port":        &c.Port,
		"cors-origin": &c.CORSOrigin,
	}
	for name, dst := range strs {
		if changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}

	durations := map[string]*time.Duration{
		"timeout":          &c.NavigationTimeout,
		"scrape-timeout":   &c.ScrapeTimeout,
		"cache-ttl":        &c.CacheTTL,
		"refresh-interval": &c.RefreshInterval,
	}
	for name, dst := range durations {
		if !changed(name) {
			continue
		}
		s, _ := flags.GetString(name)
		d, err := parseDuration(s)
		if err != nil {
			return fmt.Errorf("--%s: %w", name, err)
		}
		*dst = d
	}

	if changed("proxy") {
		s, _ := flags.GetString("proxy")
		c.Proxies = proxy.ParseList(s)
	}
	if changed("header") {
		raw, _ := flags.GetStringArray("header")
		h, err := headers.ParseHeaders(raw)
		if err != nil {
			return fmt.Errorf("--header: %w", err)
		}
		for k, v := range h {
			c.Headers[k] = v
		}
	}
	if changed("retries") {
		c.RetryAttempts, _ = flags.GetInt("retries")
	}
	if changed("rate-limit") {
		c.RateLimitRPS, _ = flags.GetFloat64("rate-limit")
	}
	if changed("markup") {
		c.MarkupRate, _ = flags.GetFloat64("markup")
	}
	return nil
}

// parseDuration accepts Go durations ("90s", "1h") or a bare number of seconds
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(s)
}
