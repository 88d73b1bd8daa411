package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/law-makers/catalog/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the marked-up catalog over HTTP",
	Long: `Starts the storefront API. The catalog is scraped on the first request
(or at startup with --warm) and cached for --cache-ttl.

Endpoints:
- GET  /api/products          cached catalog with markup
- POST /api/products/refresh  scrape now and return the new catalog
- GET  /api/payment-info      payment instructions
- GET  /healthz               cache statistics`,
	Example: `  # Serve on the default port (5000 or $PORT)
  catalog serve

  # Warm the cache at startup and refresh every 30 minutes
  catalog serve --warm --refresh-interval=30m

  # Only allow one storefront origin
  catalog serve --cors-origin=https://shop.example.com`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	config.RegisterServeFlags(serveCmd)
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a := GetApp(cmd)
	if a == nil {
		return fmt.Errorf("application not initialized")
	}
	ctx := cmd.Context()

	if a.Config.Warm {
		go func() {
			warmCtx, cancel := context.WithTimeout(ctx, a.Config.ScrapeTimeout)
			defer cancel()
			if err := a.Catalog.Warm(warmCtx); err != nil {
				log.Warn().Err(err).Msg("Initial scrape failed; will retry on first request")
			}
		}()
	}

	return a.Server().ListenAndServe(ctx)
}
