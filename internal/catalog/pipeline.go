package catalog

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/law-makers/catalog/internal/engine"
	"github.com/law-makers/catalog/internal/extract"
	"github.com/law-makers/catalog/pkg/models"
)

// PageFetcher is satisfied by *engine.Navigator
type PageFetcher interface {
	FetchCatalogPage(ctx context.Context, creds *models.Credentials) (*engine.RenderedPage, error)
}

// CredentialsFunc hands out credentials for a single scrape
type CredentialsFunc func() *models.Credentials

// Result is one scrape's listings with the counters behind them
type Result struct {
	Listings   []models.Listing
	Login      engine.LoginResult
	Extract    extract.Stats
	Rejected   int // records without a usable name or price
	Duplicates int
	PageURL    string
	Elapsed    time.Duration
}

// Pipeline runs navigation, extraction, validation and dedupe
type Pipeline struct {
	fetcher     PageFetcher
	extractor   *extract.Extractor
	credentials CredentialsFunc
}

// NewPipeline creates a Pipeline. A nil extractor uses the default strategies
// and nil credentials skip login.
func NewPipeline(fetcher PageFetcher, extractor *extract.Extractor, creds CredentialsFunc) *Pipeline {
	if extractor == nil {
		extractor = extract.New()
	}
	if creds == nil {
		creds = func() *models.Credentials { return nil }
	}
	return &Pipeline{fetcher: fetcher, extractor: extractor, credentials: creds}
}

// Run performs one scrape. Only navigation and capture failures are errors;
// an empty catalog is a valid result.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	page, err := p.fetcher.FetchCatalogPage(ctx, p.credentials())
	if err != nil {
		return nil, err
	}

	records, stats, err := p.extractor.ExtractWithStats(page.HTML, page.URL)
	if err != nil {
		return nil, engine.NewError(engine.ErrCodeParse, "failed to read catalog page", err)
	}

	res := &Result{
		Login:   page.Login,
		Extract: stats,
		PageURL: page.URL,
	}

	valid := make([]models.Listing, 0, len(records))
	for _, rec := range records {
		l, err := NewListing(rec)
		if err != nil {
			res.Rejected++
			log.Debug().Err(err).Str("name", rec.Name).Msg("Dropping record")
			continue
		}
		valid = append(valid, l)
	}

	res.Listings = Dedupe(valid)
	res.Duplicates = len(valid) - len(res.Listings)
	res.Elapsed = time.Since(start)

	ev := log.Info()
	if len(res.Listings) == 0 {
		ev = log.Warn()
	}
	ev.
		Int("listings", len(res.Listings)).
		Int("containers", stats.Containers).
		Int("rejected", res.Rejected).
		Int("duplicates", res.Duplicates).
		Str("login", string(res.Login.Outcome)).
		Dur("elapsed", res.Elapsed).
		Msg("Scrape completed")

	return res, nil
}
