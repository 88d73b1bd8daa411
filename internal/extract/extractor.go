// Package extract pulls product records out of rendered catalog markup.
//
// The markup belongs to the vendor and changes without notice, so every field
// is located through an ordered list of named strategies and any container
// that doesn't yield both a name and a price is simply skipped.
package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"github.com/law-makers/catalog/internal/engine"
	urlutil "github.com/law-makers/catalog/internal/utils/url"
	"github.com/law-makers/catalog/pkg/models"
)

// Stats summarises one extraction pass
type Stats struct {
	Containers int // elements matched by the container strategies
	Records    int // containers that yielded a record
	Skipped    int // containers without a name or price
	Failed     int // containers that blew up while being read
}

// Extractor applies container and field strategies to a document
type Extractor struct {
	Containers []ContainerStrategy
	Name       []Strategy
	Price      []Strategy
	Link       []Strategy
	Image      []Strategy
}

// New creates an Extractor with the default strategy lists
func New() *Extractor {
	return &Extractor{
		Containers: DefaultContainers,
		Name:       DefaultName,
		Price:      DefaultPrice,
		Link:       DefaultLink,
		Image:      DefaultImage,
	}
}

// Extract returns the raw records found on a rendered page
func (e *Extractor) Extract(page *engine.RenderedPage) ([]models.RawRecord, error) {
	if page == nil {
		return nil, nil
	}
	return e.ExtractHTML(page.HTML, page.URL)
}

// ExtractHTML returns raw records found in html; relative links resolve against baseURL
func (e *Extractor) ExtractHTML(html, baseURL string) ([]models.RawRecord, error) {
	records, _, err := e.ExtractWithStats(html, baseURL)
	return records, err
}

// ExtractWithStats is Extract plus counters for logging
func (e *Extractor) ExtractWithStats(html, baseURL string) ([]models.RawRecord, Stats, error) {
	var stats Stats

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, stats, fmt.Errorf("failed to parse HTML: %w", err)
	}

	containers := doc.Find(e.containerSelector())
	stats.Containers = containers.Length()

	records := make([]models.RawRecord, 0, stats.Containers)
	containers.Each(func(i int, s *goquery.Selection) {
		rec, ok, err := e.readContainer(s, baseURL)
		switch {
		case err != nil:
			stats.Failed++
			log.Debug().Err(err).Int("container", i).Msg("Skipping malformed container")
		case !ok:
			stats.Skipped++
		default:
			stats.Records++
			records = append(records, rec)
		}
	})

	log.Debug().
		Int("containers", stats.Containers).
		Int("records", stats.Records).
		Int("skipped", stats.Skipped).
		Int("failed", stats.Failed).
		Msg("Extraction completed")

	return records, stats, nil
}

// containerSelector joins container strategies into one group selector so
// matches come back once each, in document order
func (e *Extractor) containerSelector() string {
	selectors := make([]string, 0, len(e.Containers))
	for _, c := range e.Containers {
		selectors = append(selectors, c.Selector)
	}
	return strings.Join(selectors, ", ")
}

// readContainer isolates one container so a failure can't abort the pass
func (e *Extractor) readContainer(s *goquery.Selection, baseURL string) (rec models.RawRecord, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic reading container: %v", r)
			ok = false
		}
	}()

	name, _, found := firstMatch(e.Name, s)
	if !found {
		return rec, false, nil
	}
	price, _, found := firstMatch(e.Price, s)
	if !found {
		return rec, false, nil
	}

	rec = models.RawRecord{Name: name, RawPrice: price}
	if href, _, found := firstMatch(e.Link, s); found {
		rec.URL = urlutil.ResolveURL(baseURL, href)
	}
	if src, _, found := firstMatch(e.Image, s); found {
		rec.Image = urlutil.ResolveURL(baseURL, src)
	}
	return rec, true, nil
}
