package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/law-makers/catalog/internal/app"
	"github.com/law-makers/catalog/internal/downloader"
	"github.com/law-makers/catalog/internal/ui"
	"github.com/law-makers/catalog/internal/utils/output"
	"github.com/law-makers/catalog/pkg/models"
)

var (
	fetchJSON      bool
	fetchOutput    string
	fetchImages    string
	fetchImageJobs int
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Scrape the catalog once and print it",
	Long: `Runs one scrape (login, catalog page, extraction, markup) and prints the
marked-up listings as a table, as JSON, or saves them to a file.`,
	Example: `  # Print a table
  catalog fetch

  # JSON on stdout
  catalog fetch --json

  # Save to a file (.json or .csv)
  catalog fetch -o catalog.csv

  # Mirror product images for the storefront
  catalog fetch -o catalog.json --images ./public/images

  # Watch the browser while it works
  catalog fetch --headless=false -v`,
	Args: cobra.NoArgs,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().BoolVar(&fetchJSON, "json", false, "Print listings as JSON")
	fetchCmd.Flags().StringVarP(&fetchOutput, "output", "o", "", "Save listings to a file (.json or .csv)")
	fetchCmd.Flags().StringVar(&fetchImages, "images", "", "Download product images into this directory")
	fetchCmd.Flags().IntVar(&fetchImageJobs, "image-concurrency", 4, "Parallel image downloads")
}

func runFetch(cmd *cobra.Command, args []string) error {
	a := GetApp(cmd)
	if a == nil {
		return fmt.Errorf("application not initialized")
	}

	log.Info().Str("url", a.Config.CatalogURL).Msg("Fetching catalog")

	stop := startSpinner(os.Stderr, "Scraping "+a.Config.CatalogURL, fetchJSON)
	start := time.Now()
	listings, err := a.Catalog.GetCatalog(cmd.Context())
	stop()
	if err != nil {
		return fmt.Errorf("failed to fetch catalog: %w", err)
	}

	if fetchImages != "" {
		mirrorImages(cmd, a, listings)
	}

	if fetchOutput != "" {
		if err := output.Save(listings, fetchOutput); err != nil {
			return fmt.Errorf("failed to save output: %w", err)
		}
		log.Info().Str("file", fetchOutput).Int("listings", len(listings)).Msg("Output saved")
		fmt.Fprintf(cmd.OutOrStdout(), "%s %d listings saved to %s\n", ui.Success("✓"), len(listings), fetchOutput)
		return nil
	}

	if fetchJSON {
		return output.WriteJSON(cmd.OutOrStdout(), listings)
	}

	renderTable(cmd.OutOrStdout(), listings)
	fmt.Fprintf(cmd.OutOrStdout(), "%s\n", ui.Dim(fmt.Sprintf("%d listings in %s", len(listings), time.Since(start).Round(time.Millisecond))))
	return nil
}

// mirrorImages downloads listing images; failures are reported, not fatal
func mirrorImages(cmd *cobra.Command, a *app.Application, listings []models.MarkedUpListing) {
	jobs := downloader.JobsFromListings(listings)
	pool := downloader.NewWorkerPool(fetchImageJobs, downloader.NewDownloader(downloader.Options{
		Timeout:   a.Config.NavigationTimeout,
		UserAgent: a.Config.UserAgent,
		Headers:   a.Config.Headers,
		Limiter:   a.RateLimiter,
	}))

	stop := startSpinner(os.Stderr, fmt.Sprintf("Downloading %d images", len(jobs)), fetchJSON)
	results := pool.DownloadAll(cmd.Context(), jobs, fetchImages)
	stop()

	saved := 0
	for _, r := range results {
		if r.Err != nil {
			log.Warn().Err(r.Err).Str("name", r.Job.Name).Str("url", r.Job.URL).Msg("Image download failed")
			continue
		}
		saved++
	}
	log.Info().Int("saved", saved).Int("failed", len(results)-saved).Str("dir", fetchImages).Msg("Images mirrored")
}

// renderTable prints listings with their original and marked-up prices
func renderTable(w io.Writer, listings []models.MarkedUpListing) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"#", "Name", "Price", "Original", "URL"})
	for i, l := range listings {
		t.AppendRow(table.Row{i + 1, l.Name, ui.Price(l.Price), ui.Price(l.OriginalPrice), l.URL})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, WidthMax: 48},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})
	t.SetStyle(table.StyleRounded)
	t.Render()
}

// startSpinner shows an indeterminate progress spinner until the returned
// func is called. It stays silent when quiet is set.
func startSpinner(w io.Writer, description string, quiet bool) func() {
	if quiet {
		return func() {}
	}

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionEnableColorCodes(ui.Enabled),
	)

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = bar.Add(1)
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		<-stopped
		_ = bar.Finish()
	}
}
