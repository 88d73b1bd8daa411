// internal/cli/root.go
package cli

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/law-makers/catalog/internal/app"
	"github.com/law-makers/catalog/internal/config"
)

const shutdownTimeout = 15 * time.Second

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Scrape a vendor catalog and serve it with a markup",
	Long: `Catalog logs in to a vendor storefront with a headless browser, extracts
the product listings, applies a markup and serves the result to a storefront
over HTTP.

Credentials are read from CATALOG_EMAIL and CATALOG_PASSWORD (environment or .env).`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute runs the root command. ctx is cancelled on SIGINT/SIGTERM.
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func init() {
	config.RegisterFlags(rootCmd)

	rootCmd.Flags().BoolP("help", "h", false, "Help for catalog")
	rootCmd.Flags().Bool("version", false, "Version for catalog")

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetHelpFunc(customHelpFunc)
	rootCmd.SetUsageFunc(customUsageFunc)

	// the application is built lazily so -h and --version never touch config
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if GetApp(cmd) != nil {
			return nil
		}

		cfg, err := config.Load(cmd)
		if err != nil {
			return err
		}

		a, err := app.New(cfg)
		if err != nil {
			return err
		}
		SetApp(cmd, a)
		return nil
	}

	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		a := GetApp(cmd)
		if a == nil {
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.Close(ctx)
	}
}
