package config

import "github.com/spf13/cobra"

// RegisterFlags registers the flags shared by every command on the root command
func RegisterFlags(cmd *cobra.Command) {
	if cmd == nil {
		return
	}

	f := cmd.PersistentFlags()
	f.BoolP("verbose", "v", false, "Enable debug logging")
	f.BoolP("quiet", "q", false, "Suppress all output except errors")
	f.Bool("json-log", false, "Write logs as JSON lines")
	f.String("env-file", DefaultEnvFile, "Path to a .env file (ignored if missing)")

	f.String("login-url", "", "Vendor login page")
	f.String("catalog-url", "", "Vendor catalog page")
	f.String("proxy", "", "Comma separated HTTP/SOCKS5 proxies, rotated per scrape")
	f.StringArrayP("header", "H", nil, "Extra request header \"Key: Value\" (repeatable)")
	f.String("user-agent", "", "Browser user agent")
	f.String("chrome-path", "", "Chrome/Chromium executable")
	f.Bool("headless", DefaultHeadless, "Run the browser headless")
	f.String("session", "", "Saved cookie session to reuse and refresh")

	f.String("timeout", "", "Per-navigation timeout (e.g. 30s)")
	f.String("scrape-timeout", "", "Upper bound for one whole scrape (e.g. 3m)")
	f.Int("retries", DefaultRetryAttempts, "Catalog page load attempts")
	f.Float64("rate-limit", DefaultRateLimitRPS, "Page loads per second per host (0 = unlimited)")

	f.String("cache-ttl", "", "How long a scraped catalog stays fresh (e.g. 1h)")
	f.Float64("markup", DefaultMarkupRate, "Markup rate applied to prices (0.05 = 5%)")
}

// RegisterServeFlags registers the HTTP server flags on the serve command
func RegisterServeFlags(cmd *cobra.Command) {
	if cmd == nil {
		return
	}

	f := cmd.Flags()
	f.StringP("port", "p", "", "Listen port (default $PORT or "+DefaultPort+")")
	f.String("refresh-interval", "", "Refresh the catalog in the background at this interval (0 = off)")
	f.String("cors-origin", "", "Access-Control-Allow-Origin value")
	f.Bool("warm", false, "Scrape once at startup")
}
