package pricing

import (
	"math"

	"github.com/law-makers/catalog/pkg/models"
)

// DefaultMarkupRate is the surcharge applied when none is configured
const DefaultMarkupRate = 0.05

// roundingGuard absorbs binary representation error so that values which are
// exactly on a half cent in decimal (0.125) still round away from zero
const roundingGuard = 1e-9

// RoundCents rounds to two decimals, half away from zero
func RoundCents(v float64) float64 {
	scaled := v * 100
	if scaled < 0 {
		return -math.Round(-scaled+roundingGuard) / 100
	}
	return math.Round(scaled+roundingGuard) / 100
}

// Apply derives the display listing: price = round(original × (1 + rate), 2).
func Apply(l models.Listing, markupRate float64) models.MarkedUpListing {
	return models.MarkedUpListing{
		Name:          l.Name,
		Price:         RoundCents(l.Price * (1 + markupRate)),
		OriginalPrice: l.Price,
		MarkupRate:    markupRate,
		URL:           l.URL,
		Image:         l.Image,
	}
}

// ApplyAll maps Apply over listings, keeping order
func ApplyAll(listings []models.Listing, markupRate float64) []models.MarkedUpListing {
	out := make([]models.MarkedUpListing, 0, len(listings))
	for _, l := range listings {
		out = append(out, Apply(l, markupRate))
	}
	return out
}
